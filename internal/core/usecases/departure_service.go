package usecases

import (
	"context"
	"sort"

	"github.com/fheinonen/helsinki-moves/internal/core/domain"
	"github.com/fheinonen/helsinki-moves/internal/core/ports"
)

// Search radii for stopsByRadius, meters. Rail stations are sparse so
// the rail radius is wider.
const (
	railSearchRadius = 2500
	busSearchRadius  = 800
)

// maxBusStops bounds the stop selector catalog.
const maxBusStops = 8

// DepartureService assembles a departure board from the upstream routing
// API: nearest rail station or nearby bus stop catalog, departures, and
// the line/destination filter catalog.
type DepartureService struct {
	routing ports.RoutingAPI
}

// NewDepartureService creates a DepartureService.
func NewDepartureService(routing ports.RoutingAPI) *DepartureService {
	return &DepartureService{routing: routing}
}

// Departures implements ports.DeparturesProvider.
func (s *DepartureService) Departures(ctx context.Context, q domain.BoardQuery) (*domain.BoardResponse, error) {
	if !q.Point.Valid() {
		return nil, domain.ErrInvalidCoordinates
	}
	if q.ResultsLimit <= 0 {
		q.ResultsLimit = DefaultResultsLimit(q.Mode)
	}

	switch q.Mode {
	case domain.ModeRail:
		return s.railBoard(ctx, q)
	case domain.ModeBus:
		return s.busBoard(ctx, q)
	}
	return nil, domain.ErrInvalidMode
}

func (s *DepartureService) railBoard(ctx context.Context, q domain.BoardQuery) (*domain.BoardResponse, error) {
	nearby, err := s.routing.NearbyStops(ctx, q.Point, railSearchRadius)
	if err != nil {
		return nil, err
	}

	var nearest *domain.NearbyStop
	for i := range nearby {
		stop := &nearby[i]
		if stop.VehicleMode != "RAIL" {
			continue
		}
		if nearest == nil || stop.DistanceMeters < nearest.DistanceMeters {
			nearest = stop
		}
	}
	if nearest == nil {
		return &domain.BoardResponse{Mode: q.Mode.Upstream()}, nil
	}

	// Commuter stations group platforms under a parent station; board
	// the whole station when one is known.
	var board *domain.UpstreamBoard
	name := nearest.Name
	if nearest.StationID != "" {
		if nearest.StationName != "" {
			name = nearest.StationName
		}
		board, err = s.routing.StationDepartures(ctx, nearest.StationID, q.ResultsLimit)
	} else {
		board, err = s.routing.StopDepartures(ctx, nearest.ID, q.ResultsLimit)
	}
	if err != nil {
		return nil, err
	}
	if board.Name != "" {
		name = board.Name
	}

	return &domain.BoardResponse{
		Mode: q.Mode.Upstream(),
		Station: &domain.StationBoard{
			Name:           name,
			DistanceMeters: nearest.DistanceMeters,
			Departures:     toDepartures(board.Departures, q.ResultsLimit),
		},
	}, nil
}

func (s *DepartureService) busBoard(ctx context.Context, q domain.BoardQuery) (*domain.BoardResponse, error) {
	nearby, err := s.routing.NearbyStops(ctx, q.Point, busSearchRadius)
	if err != nil {
		return nil, err
	}

	stops := buildBusStopCatalog(nearby)
	if len(stops) == 0 {
		return &domain.BoardResponse{Mode: q.Mode.Upstream()}, nil
	}

	selected := stops[0]
	if q.StopID != "" {
		for _, stop := range stops {
			if stop.ID == q.StopID {
				selected = stop
				break
			}
		}
	}

	// Fetch beyond the display limit so the filter catalog reflects the
	// actual spread of lines and destinations at the stop.
	board, err := s.routing.StopDepartures(ctx, selected.ID, q.ResultsLimit*3)
	if err != nil {
		return nil, err
	}

	catalog := buildFilterCatalog(board.Departures)
	filtered := applyBusFilters(board.Departures, q.Lines, q.Destinations)

	return &domain.BoardResponse{
		Mode:           q.Mode.Upstream(),
		Stops:          stops,
		SelectedStopID: selected.ID,
		FilterOptions:  &catalog,
		Station: &domain.StationBoard{
			StopName:       selected.Name,
			StopCode:       selected.Code,
			DistanceMeters: selected.DistanceMeters,
			Departures:     toDepartures(filtered, q.ResultsLimit),
		},
	}, nil
}

// buildBusStopCatalog keeps BUS stops, merges duplicate platforms that
// share a name, and orders the catalog by distance.
func buildBusStopCatalog(nearby []domain.NearbyStop) []domain.Stop {
	byName := make(map[string]*domain.Stop)
	var stops []*domain.Stop

	sort.SliceStable(nearby, func(i, j int) bool {
		return nearby[i].DistanceMeters < nearby[j].DistanceMeters
	})

	for _, ns := range nearby {
		if ns.VehicleMode != "BUS" || ns.ID == "" || ns.Name == "" {
			continue
		}
		if existing, ok := byName[ns.Name]; ok {
			if ns.Code != "" && !containsString(existing.StopCodes, ns.Code) {
				existing.StopCodes = append(existing.StopCodes, ns.Code)
			}
			continue
		}
		stop := &domain.Stop{
			ID:             ns.ID,
			Name:           ns.Name,
			Code:           ns.Code,
			DistanceMeters: ns.DistanceMeters,
		}
		if ns.Code != "" {
			stop.StopCodes = []string{ns.Code}
		}
		byName[ns.Name] = stop
		stops = append(stops, stop)
		if len(stops) == maxBusStops {
			break
		}
	}

	out := make([]domain.Stop, len(stops))
	for i, s := range stops {
		out[i] = *s
	}
	return out
}

// buildFilterCatalog counts line and destination values over the
// unfiltered departure set, ordered by count descending then value.
func buildFilterCatalog(departures []domain.UpstreamDeparture) domain.FilterCatalog {
	lineCounts := make(map[string]int)
	destCounts := make(map[string]int)
	for _, dep := range departures {
		if dep.Line != "" {
			lineCounts[dep.Line]++
		}
		if dep.Headsign != "" {
			destCounts[dep.Headsign]++
		}
	}
	return domain.FilterCatalog{
		Lines:        toFilterOptions(lineCounts),
		Destinations: toFilterOptions(destCounts),
	}
}

func toFilterOptions(counts map[string]int) []domain.FilterOption {
	options := make([]domain.FilterOption, 0, len(counts))
	for value, count := range counts {
		options = append(options, domain.FilterOption{Value: value, Count: count})
	}
	sort.Slice(options, func(i, j int) bool {
		if options[i].Count != options[j].Count {
			return options[i].Count > options[j].Count
		}
		return options[i].Value < options[j].Value
	})
	return options
}

func applyBusFilters(departures []domain.UpstreamDeparture, lines, destinations []string) []domain.UpstreamDeparture {
	if len(lines) == 0 && len(destinations) == 0 {
		return departures
	}
	var out []domain.UpstreamDeparture
	for _, dep := range departures {
		if len(lines) > 0 && !containsString(lines, dep.Line) {
			continue
		}
		if len(destinations) > 0 && !containsString(destinations, dep.Headsign) {
			continue
		}
		out = append(out, dep)
	}
	return out
}

func toDepartures(rows []domain.UpstreamDeparture, limit int) []domain.Departure {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Departure.Before(rows[j].Departure)
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]domain.Departure, len(rows))
	for i, row := range rows {
		out[i] = domain.Departure{
			Line:         row.Line,
			Destination:  row.Headsign,
			Track:        row.Track,
			StopCode:     row.StopCode,
			Departure:    row.Departure,
			RealtimeUsed: row.RealtimeUsed,
			DelaySeconds: row.DelaySeconds,
		}
	}
	return out
}

func containsString(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
