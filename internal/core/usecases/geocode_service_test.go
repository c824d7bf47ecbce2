package usecases_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/fheinonen/helsinki-moves/internal/core/domain"
	"github.com/fheinonen/helsinki-moves/internal/core/usecases"
)

// --- Mock Geocoder ---

type mockGeocoder struct {
	searchFn func(ctx context.Context, text, lang string) ([]domain.GeocodeCandidate, error)
	queries  []string
}

func (m *mockGeocoder) Search(ctx context.Context, text, lang string) ([]domain.GeocodeCandidate, error) {
	m.queries = append(m.queries, text)
	if m.searchFn != nil {
		return m.searchFn(ctx, text, lang)
	}
	return nil, nil
}

// --- Tests ---

func TestBuildTextVariants(t *testing.T) {
	svc := usecases.NewGeocodeService(&mockGeocoder{}, nil)

	got := svc.BuildTextVariants("alepa vihdintie")
	want := []string{
		"alepa vihdintie",
		"alepavihdintie",
		"alepa vihdintiehelsinki",
		"alepa vihdintie helsinki",
		"alepa vihdintieespoo",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestBuildTextVariants_SingleToken(t *testing.T) {
	svc := usecases.NewGeocodeService(&mockGeocoder{}, nil)

	got := svc.BuildTextVariants("  Kamppi ")
	want := []string{
		"kamppi",
		"kamppihelsinki",
		"kamppi helsinki",
		"kamppiespoo",
		"kamppi espoo",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestBuildTextVariants_EmptyQuery(t *testing.T) {
	svc := usecases.NewGeocodeService(&mockGeocoder{}, nil)

	if got := svc.BuildTextVariants("   "); got != nil {
		t.Errorf("expected nil for whitespace-only query, got %v", got)
	}
}

func TestRankCandidates_TokenEvidenceBeatsConfidence(t *testing.T) {
	candidates := []domain.GeocodeCandidate{
		{
			Point:        domain.GeoPoint{Lat: 60.169175, Lon: 24.948634},
			Label:        "Alepa, Aleksanterinkatu 9, Helsinki",
			Confidence:   1,
			VariantIndex: 1,
		},
		{
			Point:        domain.GeoPoint{Lat: 60.210205, Lon: 24.889042},
			Label:        "Alepa (Alepa Vihdintie), Etelä-Haaga, Helsinki",
			Confidence:   0.927,
			VariantIndex: 0,
		},
	}

	ranked := usecases.RankCandidates(candidates, "alepa vihdintie")
	if len(ranked) != 2 {
		t.Fatalf("expected 2 ranked candidates, got %d", len(ranked))
	}
	if ranked[0].Candidate.Label != "Alepa (Alepa Vihdintie), Etelä-Haaga, Helsinki" {
		t.Errorf("expected vihdintie-specific Alepa first, got %s", ranked[0].Candidate.Label)
	}
	if ranked[0].StrongTokenMatches != 2 {
		t.Errorf("expected 2 strong matches, got %d", ranked[0].StrongTokenMatches)
	}
}

func TestRankCandidates_CityCenter(t *testing.T) {
	candidates := []domain.GeocodeCandidate{
		{
			Point:      domain.GeoPoint{Lat: 60.169626, Lon: 24.941783},
			Label:      "Citycenter, Kaivokatu 8, Helsinki",
			Confidence: 1,
		},
		{
			Point:      domain.GeoPoint{Lat: 60.221288, Lon: 25.079348},
			Label:      "Arena Center Myllypuro (Fat Pipe Center), Alakiventie 2, Helsinki",
			Confidence: 0.94,
		},
	}

	ranked := usecases.RankCandidates(candidates, "city center helsinki")
	if ranked[0].Candidate.Label != "Citycenter, Kaivokatu 8, Helsinki" {
		t.Errorf("expected Citycenter first, got %s", ranked[0].Candidate.Label)
	}
}

func TestRankCandidates_ZeroOverlapRanksLast(t *testing.T) {
	candidates := []domain.GeocodeCandidate{
		{Point: domain.GeoPoint{Lat: 60.2, Lon: 24.9}, Label: "Pasila, Helsinki", Confidence: 1},
		{Point: domain.GeoPoint{Lat: 60.1, Lon: 24.9}, Label: "Kamppi, Helsinki", Confidence: 0.3},
	}

	ranked := usecases.RankCandidates(candidates, "kamppi")
	if ranked[0].Candidate.Label != "Kamppi, Helsinki" {
		t.Errorf("zero-overlap candidate outranked a matching one: %s first", ranked[0].Candidate.Label)
	}
}

func TestRankCandidates_Deterministic(t *testing.T) {
	candidates := []domain.GeocodeCandidate{
		{Point: domain.GeoPoint{Lat: 60.1, Lon: 24.9}, Label: "Kamppi, Helsinki", Confidence: 0.9},
		{Point: domain.GeoPoint{Lat: 60.2, Lon: 24.8}, Label: "Kamppi, Espoo", Confidence: 0.9},
		{Point: domain.GeoPoint{Lat: 60.3, Lon: 24.7}, Label: "Kamppi M", Confidence: 0.9},
	}

	first := usecases.RankCandidates(candidates, "kamppi")
	second := usecases.RankCandidates(candidates, "kamppi")
	if !reflect.DeepEqual(first, second) {
		t.Error("ranking is not deterministic for identical input")
	}
}

func TestRankCandidates_DropsMalformed(t *testing.T) {
	candidates := []domain.GeocodeCandidate{
		{Point: domain.GeoPoint{Lat: 200, Lon: 24.9}, Label: "Broken", Confidence: 1},
		{Point: domain.GeoPoint{Lat: 60.1, Lon: 24.9}, Label: "", Confidence: 1},
	}

	if ranked := usecases.RankCandidates(candidates, "kamppi"); len(ranked) != 0 {
		t.Errorf("expected malformed candidates dropped, got %d", len(ranked))
	}
}

func TestBuildAmbiguityChoices(t *testing.T) {
	ranked := []domain.RankedCandidate{
		{
			Candidate:          domain.GeocodeCandidate{Point: domain.GeoPoint{Lat: 60.1699, Lon: 24.9384}, Label: "Kamppi, Helsinki", Confidence: 1},
			StrongTokenMatches: 2,
			Score:              100,
		},
		{
			Candidate:          domain.GeocodeCandidate{Point: domain.GeoPoint{Lat: 60.1688, Lon: 24.9325}, Label: "Kamppi Center, Helsinki", Confidence: 0.95},
			StrongTokenMatches: 2,
			Score:              96,
		},
		{
			Candidate:          domain.GeocodeCandidate{Point: domain.GeoPoint{Lat: 60.19, Lon: 24.95}, Label: "Ruoholahti, Helsinki", Confidence: 0.9},
			StrongTokenMatches: 1,
			Score:              95,
		},
	}

	choices := usecases.BuildAmbiguityChoices(ranked)
	if len(choices) != 2 {
		t.Fatalf("expected 2 choices, got %d", len(choices))
	}
	if choices[0].Label != "Kamppi, Helsinki" || choices[1].Label != "Kamppi Center, Helsinki" {
		t.Errorf("unexpected choice labels: %s | %s", choices[0].Label, choices[1].Label)
	}
}

func TestBuildAmbiguityChoices_ClearWinner(t *testing.T) {
	ranked := []domain.RankedCandidate{
		{Candidate: domain.GeocodeCandidate{Point: domain.GeoPoint{Lat: 60.1, Lon: 24.9}, Label: "Kamppi, Helsinki"}, Score: 100},
		{Candidate: domain.GeocodeCandidate{Point: domain.GeoPoint{Lat: 60.2, Lon: 24.8}, Label: "Kannelmäki, Helsinki"}, Score: 60},
	}

	if choices := usecases.BuildAmbiguityChoices(ranked); choices != nil {
		t.Errorf("expected no ambiguity for a clear winner, got %v", choices)
	}
}

func TestBuildAmbiguityChoices_DuplicateLabelsSkipped(t *testing.T) {
	ranked := []domain.RankedCandidate{
		{Candidate: domain.GeocodeCandidate{Point: domain.GeoPoint{Lat: 60.1, Lon: 24.9}, Label: "Kamppi, Helsinki"}, Score: 100},
		{Candidate: domain.GeocodeCandidate{Point: domain.GeoPoint{Lat: 60.1, Lon: 24.9}, Label: "Kamppi, Helsinki"}, Score: 99},
	}

	if choices := usecases.BuildAmbiguityChoices(ranked); choices != nil {
		t.Errorf("expected no ambiguity when only one distinct label qualifies, got %v", choices)
	}
}

func TestNormalizeLanguage(t *testing.T) {
	if got := usecases.NormalizeLanguage("finnish"); got != "" {
		t.Errorf("expected empty hint for 'finnish', got %q", got)
	}
	if got := usecases.NormalizeLanguage(" FI "); got != "fi" {
		t.Errorf("expected 'fi', got %q", got)
	}
}

func TestResolve_VariantFailureIsNotFatal(t *testing.T) {
	geocoder := &mockGeocoder{
		searchFn: func(ctx context.Context, text, lang string) ([]domain.GeocodeCandidate, error) {
			if text == "kamppi" {
				return nil, errors.New("provider 502")
			}
			if text == "kamppihelsinki" {
				return []domain.GeocodeCandidate{
					{Point: domain.GeoPoint{Lat: 60.1699, Lon: 24.9384}, Label: "Kamppi, Helsinki", Confidence: 0.9},
				}, nil
			}
			return nil, nil
		},
	}

	svc := usecases.NewGeocodeService(geocoder, nil)
	res, err := svc.Resolve(context.Background(), "Kamppi", "fi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Location == nil {
		t.Fatal("expected a resolved location")
	}
	if res.Location.Label != "Kamppi, Helsinki" {
		t.Errorf("expected Kamppi, Helsinki, got %s", res.Location.Label)
	}
}

func TestResolve_EmptyQuery(t *testing.T) {
	geocoder := &mockGeocoder{}
	svc := usecases.NewGeocodeService(geocoder, nil)

	res, err := svc.Resolve(context.Background(), "   ", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Location != nil || res.Choices != nil {
		t.Errorf("expected empty resolution, got %+v", res)
	}
	if len(geocoder.queries) != 0 {
		t.Errorf("expected no geocoder calls for empty query, got %d", len(geocoder.queries))
	}
}
