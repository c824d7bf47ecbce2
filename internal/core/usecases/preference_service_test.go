package usecases_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/fheinonen/helsinki-moves/internal/core/domain"
	"github.com/fheinonen/helsinki-moves/internal/core/usecases"
)

type failingStore struct{}

func (failingStore) Get(ctx context.Context, key string) (string, error) {
	return "", errors.New("storage down")
}

func (failingStore) Set(ctx context.Context, key, value string) error {
	return errors.New("storage down")
}

func TestHydrate_Defaults(t *testing.T) {
	svc := usecases.NewPreferenceService(newMapStore(), &mapQuery{values: map[string][]string{}})
	prefs := svc.Hydrate(context.Background())

	if prefs.Mode != domain.ModeRail {
		t.Errorf("expected rail default, got %s", prefs.Mode)
	}
	if prefs.HelsinkiOnly {
		t.Error("expected helsinkiOnly default false")
	}
	if got := prefs.ActiveResultsLimit(domain.ModeRail); got != 8 {
		t.Errorf("expected rail results default 8, got %d", got)
	}
	if got := prefs.ActiveResultsLimit(domain.ModeBus); got != 10 {
		t.Errorf("expected bus results default 10, got %d", got)
	}
}

func TestHydrate_URLWinsOverStorage(t *testing.T) {
	store := newMapStore()
	_ = store.Set(context.Background(), "prefs:mode", "bus")
	_ = store.Set(context.Background(), "prefs:helsinkiOnly", "1")

	query := &mapQuery{values: map[string][]string{"mode": {"rail"}}}
	svc := usecases.NewPreferenceService(store, query)
	prefs := svc.Hydrate(context.Background())

	if prefs.Mode != domain.ModeRail {
		t.Errorf("URL mode should win, got %s", prefs.Mode)
	}
	// helsinkiOnly absent from URL, so the stored value applies.
	if !prefs.HelsinkiOnly {
		t.Error("expected stored helsinkiOnly to apply")
	}
}

func TestHydrate_ModeCouplingForcesHelsinkiOnlyOff(t *testing.T) {
	query := &mapQuery{values: map[string][]string{
		"mode":         {"bus"},
		"helsinkiOnly": {"1"},
	}}
	svc := usecases.NewPreferenceService(newMapStore(), query)
	prefs := svc.Hydrate(context.Background())

	if prefs.HelsinkiOnly {
		t.Error("helsinkiOnly must be forced off outside rail mode")
	}
}

func TestHydrate_StopPresenceOverridesStorage(t *testing.T) {
	store := newMapStore()
	_ = store.Set(context.Background(), "prefs:busStopId", "HSL:9999")

	// "stop" present but empty clears the stored selection.
	query := &mapQuery{values: map[string][]string{"mode": {"bus"}, "stop": {""}}}
	svc := usecases.NewPreferenceService(store, query)
	prefs := svc.Hydrate(context.Background())

	if prefs.BusStopID != "" {
		t.Errorf("expected empty stop from URL, got %q", prefs.BusStopID)
	}
}

func TestHydrate_InvalidResultsFallsBack(t *testing.T) {
	store := newMapStore()
	_ = store.Set(context.Background(), "prefs:results:rail", "7")

	svc := usecases.NewPreferenceService(store, &mapQuery{values: map[string][]string{}})
	prefs := svc.Hydrate(context.Background())
	if got := prefs.ActiveResultsLimit(domain.ModeRail); got != 8 {
		t.Errorf("invalid stored limit should fall back to 8, got %d", got)
	}
}

func TestPersist_MinimalURLProjection(t *testing.T) {
	query := &mapQuery{values: map[string][]string{}}
	svc := usecases.NewPreferenceService(newMapStore(), query)

	svc.Persist(context.Background(), usecases.Preferences{
		Mode:                  domain.ModeRail,
		BusStopID:             "HSL:1234",
		BusLineFilters:        []string{"550"},
		BusDestinationFilters: []string{"Pasila"},
		ResultsLimit:          map[domain.Mode]int{domain.ModeRail: 8},
	})

	if len(query.last) != 0 {
		t.Errorf("rail defaults should project an empty query, got %v", query.last)
	}
}

func TestPersist_BusProjection(t *testing.T) {
	query := &mapQuery{values: map[string][]string{}}
	svc := usecases.NewPreferenceService(newMapStore(), query)

	svc.Persist(context.Background(), usecases.Preferences{
		Mode:                  domain.ModeBus,
		BusStopID:             "HSL:1234",
		BusLineFilters:        []string{"550", "18"},
		BusDestinationFilters: []string{"Pasila"},
		ResultsLimit:          map[domain.Mode]int{domain.ModeBus: 15},
	})

	want := [][2]string{
		{"mode", "bus"},
		{"results", "15"},
		{"stop", "HSL:1234"},
		{"line", "550"},
		{"line", "18"},
		{"dest", "Pasila"},
	}
	if !reflect.DeepEqual(query.last, want) {
		t.Errorf("expected %v, got %v", want, query.last)
	}
}

func TestPersistHydrate_URLRoundTrip(t *testing.T) {
	query := &mapQuery{values: map[string][]string{}}
	svc := usecases.NewPreferenceService(newMapStore(), query)

	original := usecases.Preferences{
		Mode:         domain.ModeRail,
		HelsinkiOnly: true,
		ResultsLimit: map[domain.Mode]int{domain.ModeRail: 8},
	}
	svc.Persist(context.Background(), original)

	// Rebuild a query source from the projection and hydrate with empty
	// storage.
	values := make(map[string][]string)
	for _, pair := range query.last {
		values[pair[0]] = append(values[pair[0]], pair[1])
	}
	rehydrated := usecases.NewPreferenceService(newMapStore(), &mapQuery{values: values}).Hydrate(context.Background())

	if rehydrated.Mode != original.Mode {
		t.Errorf("mode did not round-trip: %s", rehydrated.Mode)
	}
	if rehydrated.HelsinkiOnly != original.HelsinkiOnly {
		t.Error("helsinkiOnly did not round-trip")
	}
	if rehydrated.ActiveResultsLimit(domain.ModeRail) != 8 {
		t.Errorf("results limit did not round-trip: %d", rehydrated.ActiveResultsLimit(domain.ModeRail))
	}
}

func TestSynchronizer_StorageFailuresAbsorbed(t *testing.T) {
	query := &mapQuery{values: map[string][]string{"mode": {"bus"}}}
	svc := usecases.NewPreferenceService(failingStore{}, query)

	prefs := svc.Hydrate(context.Background())
	if prefs.Mode != domain.ModeBus {
		t.Errorf("hydration should survive storage failure, got mode %s", prefs.Mode)
	}

	// Must not panic or error.
	svc.Persist(context.Background(), prefs)
}
