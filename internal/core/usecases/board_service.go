package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/fheinonen/helsinki-moves/internal/core/domain"
	"github.com/fheinonen/helsinki-moves/internal/core/ports"
)

var helsinkiBoundPattern = regexp.MustCompile(`(?i)\bhelsinki\b`)

// BoardState is the observable state of one board session.
type BoardState struct {
	Mode                  domain.Mode
	HelsinkiOnly          bool
	BusStopID             string
	BusLineFilters        []string
	BusDestinationFilters []string
	BusStops              []domain.Stop
	FilterCatalog         domain.FilterCatalog
	ResultsLimit          map[domain.Mode]int
	CurrentCoords         *domain.GeoPoint
	LatestResponse        *domain.BoardResponse
	Loading               bool
	PermissionRequired    bool
	Status                string
	LastUpdated           time.Time
	LatestLoadToken       int64
}

// BoardService owns board state and coordinates departure loads. A
// monotonic token identifies the most recently started load; responses
// carrying an older token are discarded entirely, so state transitions
// happen in load-initiation order even when responses arrive out of
// order. The original runs on a single-threaded event loop; here a mutex
// serializes mutation instead.
type BoardService struct {
	provider ports.DeparturesProvider
	prefs    *PreferenceService
	sink     ports.BoardSink

	mu    sync.Mutex
	state BoardState
}

// NewBoardService creates a board session hydrated from prefs. sink may
// be nil for headless use.
func NewBoardService(ctx context.Context, provider ports.DeparturesProvider, prefs *PreferenceService, sink ports.BoardSink) *BoardService {
	s := &BoardService{provider: provider, prefs: prefs, sink: sink}
	p := prefs.Hydrate(ctx)
	s.state = BoardState{
		Mode:                  p.Mode,
		HelsinkiOnly:          p.HelsinkiOnly,
		BusStopID:             p.BusStopID,
		BusLineFilters:        p.BusLineFilters,
		BusDestinationFilters: p.BusDestinationFilters,
		ResultsLimit:          p.ResultsLimit,
	}
	if s.state.ResultsLimit == nil {
		s.state.ResultsLimit = make(map[domain.Mode]int)
	}
	return s
}

// Snapshot returns a copy of the current state.
func (s *BoardService) Snapshot() BoardState {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.state
	state.BusLineFilters = append([]string(nil), s.state.BusLineFilters...)
	state.BusDestinationFilters = append([]string(nil), s.state.BusDestinationFilters...)
	state.BusStops = append([]domain.Stop(nil), s.state.BusStops...)
	return state
}

// Load runs one departures load for the given coordinates. The request
// snapshot (mode, stop, filters, limit) is captured up front so filter
// changes mid-flight cannot be attributed to this response. Only the most
// recently started load may mutate state when it completes.
func (s *BoardService) Load(ctx context.Context, lat, lon float64) error {
	s.mu.Lock()
	s.state.LatestLoadToken++
	token := s.state.LatestLoadToken
	point := domain.GeoPoint{Lat: lat, Lon: lon}
	s.state.CurrentCoords = &point
	s.state.Loading = true
	query := domain.BoardQuery{
		Point:        point,
		Mode:         s.state.Mode,
		ResultsLimit: s.activeResultsLimitLocked(s.state.Mode),
		StopID:       s.state.BusStopID,
		Lines:        append([]string(nil), s.state.BusLineFilters...),
		Destinations: append([]string(nil), s.state.BusDestinationFilters...),
	}
	s.mu.Unlock()

	s.render(func(sink ports.BoardSink) {
		sink.RenderLoading(true)
		sink.RenderStatus("Loading departures...")
	})

	resp, err := s.provider.Departures(ctx, query)

	s.mu.Lock()
	defer s.mu.Unlock()

	if token != s.state.LatestLoadToken {
		// Superseded: a newer load owns the loading flag and all state.
		return nil
	}
	defer func() {
		s.state.Loading = false
		s.render(func(sink ports.BoardSink) { sink.RenderLoading(false) })
	}()

	if err != nil {
		s.state.LatestResponse = nil
		s.state.Status = loadErrorStatus(err)
		slog.Warn("departure load failed", "mode", query.Mode, "error", err)
		s.render(func(sink ports.BoardSink) {
			sink.RenderBoard(nil)
			sink.RenderStatus(s.state.Status)
		})
		return err
	}

	if query.Mode == domain.ModeBus {
		s.applyBusResponseLocked(resp)
		s.prefs.Persist(ctx, s.preferencesLocked())
	}

	s.state.LatestResponse = resp
	s.state.PermissionRequired = false
	s.state.LastUpdated = time.Now()
	s.state.Status = s.statusFromResponseLocked(resp)
	s.render(func(sink ports.BoardSink) {
		sink.RenderBoard(resp)
		sink.RenderPermissionRequired(false)
		sink.RenderStatus(s.state.Status)
	})
	return nil
}

// Refresh reloads departures for the last known coordinates.
func (s *BoardService) Refresh(ctx context.Context) error {
	s.mu.Lock()
	coords := s.state.CurrentCoords
	s.mu.Unlock()
	if coords == nil {
		return domain.ErrLocationUnavailable
	}
	return s.Load(ctx, coords.Lat, coords.Lon)
}

// RunAutoRefresh reloads the board at the given interval until ctx is
// done. Periodic refreshes share the load token with user-triggered
// loads, so they cannot race each other into inconsistent state.
func (s *BoardService) RunAutoRefresh(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil && !errors.Is(err, domain.ErrLocationUnavailable) {
				slog.Debug("auto refresh failed", "error", err)
			}
		}
	}
}

// SetMode switches the board mode. Leaving rail clears the
// Helsinki-only filter, which is meaningful only for rail.
func (s *BoardService) SetMode(ctx context.Context, mode domain.Mode) {
	s.mu.Lock()
	s.state.Mode = mode
	if mode != domain.ModeRail {
		s.state.HelsinkiOnly = false
	}
	prefs := s.preferencesLocked()
	s.mu.Unlock()
	s.prefs.Persist(ctx, prefs)
}

// SetHelsinkiOnly toggles the rail-only Helsinki-bound filter. Ignored
// outside rail mode.
func (s *BoardService) SetHelsinkiOnly(ctx context.Context, on bool) {
	s.mu.Lock()
	if s.state.Mode != domain.ModeRail {
		on = false
	}
	s.state.HelsinkiOnly = on
	prefs := s.preferencesLocked()
	s.mu.Unlock()
	s.prefs.Persist(ctx, prefs)
}

// SetBusStop selects a bus stop from the current catalog.
func (s *BoardService) SetBusStop(ctx context.Context, stopID string) {
	s.mu.Lock()
	s.state.BusStopID = stopID
	prefs := s.preferencesLocked()
	s.mu.Unlock()
	s.prefs.Persist(ctx, prefs)
}

// SetBusFilters replaces the active line and destination filters.
func (s *BoardService) SetBusFilters(ctx context.Context, lines, destinations []string) {
	s.mu.Lock()
	s.state.BusLineFilters = append([]string(nil), lines...)
	s.state.BusDestinationFilters = append([]string(nil), destinations...)
	prefs := s.preferencesLocked()
	s.mu.Unlock()
	s.prefs.Persist(ctx, prefs)
}

// SetResultsLimit sets the result count for a mode. Values outside the
// option set fall back to the mode default.
func (s *BoardService) SetResultsLimit(ctx context.Context, mode domain.Mode, limit int) {
	if !ValidResultsLimit(limit) {
		limit = DefaultResultsLimit(mode)
	}
	s.mu.Lock()
	s.state.ResultsLimit[mode] = limit
	prefs := s.preferencesLocked()
	s.mu.Unlock()
	s.prefs.Persist(ctx, prefs)
}

// HandleLocationFailure records a geolocation failure: permission denial
// shows the permission card, everything else only a status message. The
// stored response is cleared either way.
func (s *BoardService) HandleLocationFailure(err error) {
	s.mu.Lock()
	s.state.LatestResponse = nil
	s.state.PermissionRequired = errors.Is(err, domain.ErrLocationDenied)
	s.state.Status = locationErrorStatus(err)
	required := s.state.PermissionRequired
	status := s.state.Status
	s.mu.Unlock()

	s.render(func(sink ports.BoardSink) {
		sink.RenderBoard(nil)
		sink.RenderPermissionRequired(required)
		sink.RenderStatus(status)
	})
}

// VisibleDepartures applies the rail Helsinki-only filter to a response.
// Bus filtering already happened server-side.
func (s *BoardService) VisibleDepartures(resp *domain.BoardResponse) []domain.Departure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visibleDeparturesLocked(resp)
}

func (s *BoardService) visibleDeparturesLocked(resp *domain.BoardResponse) []domain.Departure {
	if resp == nil || resp.Station == nil {
		return nil
	}
	departures := resp.Station.Departures
	if s.state.Mode != domain.ModeRail || !s.state.HelsinkiOnly {
		return departures
	}
	var out []domain.Departure
	for _, dep := range departures {
		if helsinkiBoundPattern.MatchString(dep.Destination) {
			out = append(out, dep)
		}
	}
	return out
}

// applyBusResponseLocked reconciles the bus stop catalog and filter
// catalog from a fresh response and prunes stale selections.
func (s *BoardService) applyBusResponseLocked(resp *domain.BoardResponse) {
	s.state.BusStops = resp.Stops

	stopExists := func(id string) bool {
		for _, stop := range resp.Stops {
			if stop.ID == id {
				return true
			}
		}
		return false
	}
	switch {
	case resp.SelectedStopID != "" && stopExists(resp.SelectedStopID):
		s.state.BusStopID = resp.SelectedStopID
	case s.state.BusStopID == "" || !stopExists(s.state.BusStopID):
		s.state.BusStopID = ""
		if len(resp.Stops) > 0 {
			s.state.BusStopID = resp.Stops[0].ID
		}
	}

	if resp.FilterOptions != nil {
		s.state.FilterCatalog = *resp.FilterOptions
	} else {
		s.state.FilterCatalog = domain.FilterCatalog{}
	}
	s.pruneFiltersLocked()
}

// pruneFiltersLocked drops filter values no longer advertised by the
// catalog, so stale selections never persist past a catalog change.
func (s *BoardService) pruneFiltersLocked() {
	s.state.BusLineFilters = intersectOptions(s.state.BusLineFilters, s.state.FilterCatalog.Lines)
	s.state.BusDestinationFilters = intersectOptions(s.state.BusDestinationFilters, s.state.FilterCatalog.Destinations)
}

func intersectOptions(selected []string, options []domain.FilterOption) []string {
	if len(selected) == 0 {
		return selected
	}
	allowed := make(map[string]struct{}, len(options))
	for _, option := range options {
		allowed[option.Value] = struct{}{}
	}
	out := selected[:0]
	for _, value := range selected {
		if _, ok := allowed[value]; ok {
			out = append(out, value)
		}
	}
	return out
}

func (s *BoardService) preferencesLocked() Preferences {
	limits := make(map[domain.Mode]int, len(s.state.ResultsLimit))
	for mode, v := range s.state.ResultsLimit {
		limits[mode] = v
	}
	return Preferences{
		Mode:                  s.state.Mode,
		HelsinkiOnly:          s.state.HelsinkiOnly,
		BusStopID:             s.state.BusStopID,
		BusLineFilters:        append([]string(nil), s.state.BusLineFilters...),
		BusDestinationFilters: append([]string(nil), s.state.BusDestinationFilters...),
		ResultsLimit:          limits,
	}
}

func (s *BoardService) activeResultsLimitLocked(mode domain.Mode) int {
	if v, ok := s.state.ResultsLimit[mode]; ok && ValidResultsLimit(v) {
		return v
	}
	return DefaultResultsLimit(mode)
}

func (s *BoardService) render(fn func(ports.BoardSink)) {
	if s.sink != nil {
		fn(s.sink)
	}
}

// statusFromResponseLocked builds the one-line board status shown under
// the mode controls.
func (s *BoardService) statusFromResponseLocked(resp *domain.BoardResponse) string {
	if resp == nil || resp.Station == nil {
		if resp != nil && resp.Message != "" {
			return resp.Message
		}
		if s.state.Mode == domain.ModeBus {
			return "No nearby bus stops found."
		}
		return "No nearby train stations found."
	}

	visible := s.visibleDeparturesLocked(resp)
	if len(visible) == 0 {
		if s.state.Mode == domain.ModeBus {
			if len(s.state.BusLineFilters) > 0 || len(s.state.BusDestinationFilters) > 0 {
				return "No upcoming buses match selected filters."
			}
			return "No upcoming buses right now."
		}
		if s.state.HelsinkiOnly {
			return "No Helsinki-bound trains in upcoming departures."
		}
		return "No upcoming commuter trains right now."
	}

	next := visible[0]
	line := next.Line
	if line == "" {
		if s.state.Mode == domain.ModeBus {
			line = "bus"
		} else {
			line = "train"
		}
	}
	status := fmt.Sprintf("Next %s in %s", line, formatMinutes(next.Departure))
	if next.Destination != "" {
		status += " • " + next.Destination
	}
	if s.state.Mode == domain.ModeRail {
		if next.Track != "" {
			status += " • Track " + next.Track
		}
	} else if resp.Station.StopName != "" || resp.Station.StopCode != "" {
		status += " • Stop " + busStopDisplay(resp.Station)
	}
	return status
}

func busStopDisplay(station *domain.StationBoard) string {
	switch {
	case station.StopName != "" && station.StopCode != "":
		return fmt.Sprintf("%s (%s)", station.StopName, station.StopCode)
	case station.StopName != "":
		return station.StopName
	default:
		return station.StopCode
	}
}

func formatMinutes(departure time.Time) string {
	mins := int(time.Until(departure).Minutes())
	if mins <= 0 {
		return "Now"
	}
	return fmt.Sprintf("%dm", mins)
}

// loadErrorStatus maps a classified load failure to its user-facing
// status line. Unclassified failures get the generic retry message.
func loadErrorStatus(err error) string {
	switch {
	case errors.Is(err, domain.ErrUpstreamTimeout):
		return "Request timed out. Please try again."
	case errors.Is(err, domain.ErrInvalidCoordinates):
		return "Location coordinates were invalid. Please refresh your location."
	case errors.Is(err, domain.ErrInvalidMode):
		return "Unsupported transport mode."
	case errors.Is(err, domain.ErrUpstream):
		return "Temporary server error. Please try again."
	default:
		return "Could not refresh departures. Please try again."
	}
}

func locationErrorStatus(err error) string {
	switch {
	case errors.Is(err, domain.ErrLocationDenied):
		return "Location permission denied."
	case errors.Is(err, domain.ErrLocationUnavailable):
		return "Location unavailable. Please try again."
	case errors.Is(err, domain.ErrLocationTimeout):
		return "Location request timed out. Please try again."
	default:
		return "Unable to get your location."
	}
}
