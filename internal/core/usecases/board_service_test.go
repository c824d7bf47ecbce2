package usecases_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fheinonen/helsinki-moves/internal/core/domain"
	"github.com/fheinonen/helsinki-moves/internal/core/usecases"
)

// --- Mock DeparturesProvider ---

type mockProvider struct {
	mu      sync.Mutex
	fn      func(ctx context.Context, q domain.BoardQuery) (*domain.BoardResponse, error)
	queries []domain.BoardQuery
}

func (m *mockProvider) Departures(ctx context.Context, q domain.BoardQuery) (*domain.BoardResponse, error) {
	m.mu.Lock()
	m.queries = append(m.queries, q)
	fn := m.fn
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, q)
	}
	return &domain.BoardResponse{Mode: q.Mode.Upstream()}, nil
}

// --- Mock stores ---

type mapStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMapStore() *mapStore { return &mapStore{data: make(map[string]string)} }

func (s *mapStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key], nil
}

func (s *mapStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

type mapQuery struct {
	values map[string][]string
	last   [][2]string
}

func (q *mapQuery) Get(key string) (string, bool) {
	vs, ok := q.values[key]
	if !ok || len(vs) == 0 {
		return "", ok
	}
	return vs[0], true
}

func (q *mapQuery) Values(key string) []string { return q.values[key] }

func (q *mapQuery) Replace(pairs [][2]string) { q.last = pairs }

func newBoard(t *testing.T, provider *mockProvider) *usecases.BoardService {
	t.Helper()
	prefs := usecases.NewPreferenceService(newMapStore(), &mapQuery{values: map[string][]string{}})
	return usecases.NewBoardService(context.Background(), provider, prefs, nil)
}

// --- Tests ---

func railResponse(destination string) *domain.BoardResponse {
	return &domain.BoardResponse{
		Mode: "RAIL",
		Station: &domain.StationBoard{
			Name: "Huopalahti",
			Departures: []domain.Departure{
				{Line: "I", Destination: destination, Track: "2", Departure: time.Now().Add(7 * time.Minute)},
			},
		},
	}
}

func TestLoad_StaleResponseDiscarded(t *testing.T) {
	aStarted := make(chan struct{})
	releaseA := make(chan struct{})
	provider := &mockProvider{}
	calls := 0
	var callsMu sync.Mutex
	provider.fn = func(ctx context.Context, q domain.BoardQuery) (*domain.BoardResponse, error) {
		callsMu.Lock()
		calls++
		n := calls
		callsMu.Unlock()
		if n == 1 {
			close(aStarted)
			<-releaseA
			return railResponse("Stale Destination"), nil
		}
		return railResponse("Helsinki"), nil
	}

	svc := newBoard(t, provider)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = svc.Load(context.Background(), 60.17, 24.94) // load A, blocked
	}()

	// Wait until A's request is in flight so B gets a newer token.
	<-aStarted

	if err := svc.Load(context.Background(), 60.17, 24.94); err != nil { // load B
		t.Fatalf("load B failed: %v", err)
	}

	close(releaseA)
	wg.Wait()

	state := svc.Snapshot()
	if state.LatestResponse == nil || state.LatestResponse.Station == nil {
		t.Fatal("expected a stored response")
	}
	if got := state.LatestResponse.Station.Departures[0].Destination; got != "Helsinki" {
		t.Errorf("stale response was applied: destination %q", got)
	}
	if state.Loading {
		t.Error("superseded load cleared or set the loading flag")
	}
	if state.LatestLoadToken != 2 {
		t.Errorf("expected token 2, got %d", state.LatestLoadToken)
	}
}

func TestLoad_SnapshotProtectsRequestFilters(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	provider := &mockProvider{}
	provider.fn = func(ctx context.Context, q domain.BoardQuery) (*domain.BoardResponse, error) {
		close(started)
		<-release
		return &domain.BoardResponse{Mode: "BUS"}, nil
	}

	prefs := usecases.NewPreferenceService(newMapStore(), &mapQuery{values: map[string][]string{
		"mode": {"bus"},
		"line": {"550"},
	}})
	svc := usecases.NewBoardService(context.Background(), provider, prefs, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Load(context.Background(), 60.17, 24.94)
	}()

	<-started
	svc.SetBusFilters(context.Background(), []string{"18"}, nil)
	close(release)
	<-done

	provider.mu.Lock()
	defer provider.mu.Unlock()
	if len(provider.queries) != 1 {
		t.Fatalf("expected 1 request, got %d", len(provider.queries))
	}
	if len(provider.queries[0].Lines) != 1 || provider.queries[0].Lines[0] != "550" {
		t.Errorf("request snapshot did not capture filters at load start: %v", provider.queries[0].Lines)
	}
}

func TestLoad_BusCatalogPrunesStaleFilters(t *testing.T) {
	provider := &mockProvider{}
	provider.fn = func(ctx context.Context, q domain.BoardQuery) (*domain.BoardResponse, error) {
		return &domain.BoardResponse{
			Mode:           "BUS",
			SelectedStopID: "HSL:1234",
			Stops: []domain.Stop{
				{ID: "HSL:1234", Name: "Kamppi", Code: "H1234"},
			},
			FilterOptions: &domain.FilterCatalog{
				Lines:        []domain.FilterOption{{Value: "550", Count: 2}},
				Destinations: []domain.FilterOption{{Value: "Pasila", Count: 1}},
			},
			Station: &domain.StationBoard{StopName: "Kamppi", StopCode: "H1234"},
		}, nil
	}

	prefs := usecases.NewPreferenceService(newMapStore(), &mapQuery{values: map[string][]string{
		"mode": {"bus"},
		"line": {"550", "18"},
		"dest": {"Itäkeskus"},
	}})
	svc := usecases.NewBoardService(context.Background(), provider, prefs, nil)

	if err := svc.Load(context.Background(), 60.17, 24.94); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	state := svc.Snapshot()
	if len(state.BusLineFilters) != 1 || state.BusLineFilters[0] != "550" {
		t.Errorf("expected line filters pruned to [550], got %v", state.BusLineFilters)
	}
	if len(state.BusDestinationFilters) != 0 {
		t.Errorf("expected destination filters pruned, got %v", state.BusDestinationFilters)
	}
	if state.BusStopID != "HSL:1234" {
		t.Errorf("expected selected stop HSL:1234, got %q", state.BusStopID)
	}
}

func TestLoad_FailureClearsResponse(t *testing.T) {
	provider := &mockProvider{}
	svc := newBoard(t, provider)
	if err := svc.Load(context.Background(), 60.17, 24.94); err != nil {
		t.Fatalf("seed load failed: %v", err)
	}

	provider.mu.Lock()
	provider.fn = func(ctx context.Context, q domain.BoardQuery) (*domain.BoardResponse, error) {
		return nil, domain.ErrUpstreamTimeout
	}
	provider.mu.Unlock()

	if err := svc.Load(context.Background(), 60.17, 24.94); err == nil {
		t.Fatal("expected load error")
	}

	state := svc.Snapshot()
	if state.LatestResponse != nil {
		t.Error("failed load left a stored response")
	}
	if state.Status != "Request timed out. Please try again." {
		t.Errorf("unexpected status: %q", state.Status)
	}
	if state.Loading {
		t.Error("loading flag not cleared after failure")
	}
}

func TestSetMode_ForcesHelsinkiOnlyOff(t *testing.T) {
	svc := newBoard(t, &mockProvider{})
	svc.SetHelsinkiOnly(context.Background(), true)
	if !svc.Snapshot().HelsinkiOnly {
		t.Fatal("helsinkiOnly not set in rail mode")
	}

	svc.SetMode(context.Background(), domain.ModeBus)
	if svc.Snapshot().HelsinkiOnly {
		t.Error("helsinkiOnly survived a switch away from rail")
	}
}

func TestHandleLocationFailure(t *testing.T) {
	svc := newBoard(t, &mockProvider{})
	svc.HandleLocationFailure(domain.ErrLocationDenied)

	state := svc.Snapshot()
	if !state.PermissionRequired {
		t.Error("expected permission card for a denied location")
	}
	if state.Status != "Location permission denied." {
		t.Errorf("unexpected status: %q", state.Status)
	}

	svc.HandleLocationFailure(domain.ErrLocationTimeout)
	state = svc.Snapshot()
	if state.PermissionRequired {
		t.Error("timeout should not require permission")
	}
	if state.Status != "Location request timed out. Please try again." {
		t.Errorf("unexpected status: %q", state.Status)
	}
}

func TestVisibleDepartures_HelsinkiOnly(t *testing.T) {
	svc := newBoard(t, &mockProvider{})
	svc.SetHelsinkiOnly(context.Background(), true)

	resp := &domain.BoardResponse{
		Mode: "RAIL",
		Station: &domain.StationBoard{
			Departures: []domain.Departure{
				{Line: "I", Destination: "Helsinki"},
				{Line: "I", Destination: "Helsinki via Huopalahti"},
				{Line: "Y", Destination: "Siuntio"},
			},
		},
	}

	visible := svc.VisibleDepartures(resp)
	if len(visible) != 2 {
		t.Fatalf("expected 2 Helsinki-bound departures, got %d", len(visible))
	}
	for _, dep := range visible {
		if !containsHelsinki(dep.Destination) {
			t.Errorf("non-Helsinki departure kept: %q", dep.Destination)
		}
	}
}

func containsHelsinki(destination string) bool {
	for i := 0; i+len("Helsinki") <= len(destination); i++ {
		if destination[i:i+len("Helsinki")] == "Helsinki" {
			return true
		}
	}
	return false
}
