package digitransit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/fheinonen/helsinki-moves/internal/core/domain"
)

// geocoderResultSize is how many features one search requests.
const geocoderResultSize = 5

// focusLat and focusLon bias the geocoder toward central Helsinki.
const (
	focusLat = 60.1699
	focusLon = 24.9384
)

// Geocoder implements ports.Geocoder over the Digitransit Pelias API.
type Geocoder struct {
	client *Client
}

// NewGeocoder creates a Geocoder adapter.
func NewGeocoder(client *Client) *Geocoder {
	return &Geocoder{client: client}
}

type peliasFeature struct {
	Geometry *struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
	Properties *struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	} `json:"properties"`
}

type peliasResponse struct {
	Features []peliasFeature `json:"features"`
}

// Search geocodes one text variant. Malformed features are dropped
// rather than failing the whole search.
func (g *Geocoder) Search(ctx context.Context, text, lang string) ([]domain.GeocodeCandidate, error) {
	params := url.Values{}
	params.Set("text", text)
	params.Set("size", strconv.Itoa(geocoderResultSize))
	params.Set("focus.point.lat", strconv.FormatFloat(focusLat, 'f', -1, 64))
	params.Set("focus.point.lon", strconv.FormatFloat(focusLon, 'f', -1, 64))
	if lang != "" {
		params.Set("lang", lang)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.client.geocodingEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	req.Header.Set(subscriptionKeyHeader, g.client.apiKey)

	resp, err := g.client.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, classifyTransportError(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: geocoding HTTP %d", domain.ErrUpstream, resp.StatusCode)
	}

	var payload peliasResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: invalid geocoding response", domain.ErrUpstream)
	}

	var candidates []domain.GeocodeCandidate
	for _, feature := range payload.Features {
		if cand := parseFeature(feature); cand != nil {
			candidates = append(candidates, *cand)
		}
	}
	return candidates, nil
}

// parseFeature converts one Pelias feature, or returns nil when the
// feature lacks usable coordinates or a label.
func parseFeature(feature peliasFeature) *domain.GeocodeCandidate {
	if feature.Geometry == nil || feature.Properties == nil {
		return nil
	}
	if len(feature.Geometry.Coordinates) < 2 {
		return nil
	}
	// GeoJSON order is lon, lat.
	point := domain.GeoPoint{
		Lat: feature.Geometry.Coordinates[1],
		Lon: feature.Geometry.Coordinates[0],
	}
	if !point.Valid() || feature.Properties.Label == "" {
		return nil
	}
	confidence := feature.Properties.Confidence
	if confidence < 0 || confidence > 1 {
		return nil
	}
	return &domain.GeocodeCandidate{
		Point:      point,
		Label:      feature.Properties.Label,
		Confidence: confidence,
	}
}
