package digitransit

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/fheinonen/helsinki-moves/internal/core/domain"
)

func TestGeocoderSearch_MapsFeatures(t *testing.T) {
	var gotQuery map[string]string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"text": r.URL.Query().Get("text"),
			"lang": r.URL.Query().Get("lang"),
			"size": r.URL.Query().Get("size"),
			"key":  r.Header.Get("digitransit-subscription-key"),
		}
		_, _ = w.Write([]byte(`{"features":[
			{"geometry":{"coordinates":[24.8444,60.2239]},"properties":{"label":"Alepa Vihdintie, Helsinki","confidence":0.93}},
			{"geometry":{"coordinates":[24.9384]},"properties":{"label":"broken coords","confidence":0.5}},
			{"geometry":{"coordinates":[24.9384,60.1699]},"properties":{"label":"","confidence":0.5}},
			{"geometry":{"coordinates":[24.9384,60.1699]},"properties":{"label":"bad confidence","confidence":1.5}},
			{"properties":{"label":"no geometry","confidence":0.5}}
		]}`))
	})

	candidates, err := NewGeocoder(client).Search(context.Background(), "alepa vihdintie", "fi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotQuery["text"] != "alepa vihdintie" || gotQuery["lang"] != "fi" || gotQuery["size"] != "5" {
		t.Errorf("unexpected request parameters: %v", gotQuery)
	}
	if gotQuery["key"] != "test-key" {
		t.Errorf("subscription key header missing")
	}
	if len(candidates) != 1 {
		t.Fatalf("expected malformed features dropped, got %d candidates", len(candidates))
	}

	cand := candidates[0]
	if cand.Label != "Alepa Vihdintie, Helsinki" || cand.Confidence != 0.93 {
		t.Errorf("feature not mapped: %+v", cand)
	}
	// GeoJSON coordinate order is lon, lat.
	if cand.Point.Lat != 60.2239 || cand.Point.Lon != 24.8444 {
		t.Errorf("coordinates swapped or dropped: %+v", cand.Point)
	}
}

func TestGeocoderSearch_OmitsEmptyLang(t *testing.T) {
	var hadLang bool
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hadLang = r.URL.Query().Has("lang")
		_, _ = w.Write([]byte(`{"features":[]}`))
	})

	if _, err := NewGeocoder(client).Search(context.Background(), "kamppi", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hadLang {
		t.Error("empty lang must not be sent")
	}
}

func TestGeocoderSearch_HTTPError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := NewGeocoder(client).Search(context.Background(), "kamppi", "fi")
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}
