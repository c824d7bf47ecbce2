package digitransit

import (
	"context"
	"time"

	"github.com/fheinonen/helsinki-moves/internal/core/domain"
)

// Routing implements ports.RoutingAPI over the Digitransit GraphQL API.
type Routing struct {
	client *Client
}

// NewRouting creates a Routing adapter.
func NewRouting(client *Client) *Routing {
	return &Routing{client: client}
}

type stopNode struct {
	GtfsID        string `json:"gtfsId"`
	Name          string `json:"name"`
	Code          string `json:"code"`
	VehicleMode   string `json:"vehicleMode"`
	ParentStation *struct {
		GtfsID string `json:"gtfsId"`
		Name   string `json:"name"`
	} `json:"parentStation"`
}

type nearbyStopsData struct {
	StopsByRadius struct {
		Edges []struct {
			Node struct {
				Distance float64  `json:"distance"`
				Stop     stopNode `json:"stop"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"stopsByRadius"`
}

type stoptimeRow struct {
	ServiceDay         int64  `json:"serviceDay"`
	ScheduledDeparture int64  `json:"scheduledDeparture"`
	RealtimeDeparture  int64  `json:"realtimeDeparture"`
	DepartureDelay     int    `json:"departureDelay"`
	Realtime           bool   `json:"realtime"`
	PickupType         any    `json:"pickupType"`
	Headsign           string `json:"headsign"`
	Stop               *struct {
		Code         string `json:"code"`
		PlatformCode string `json:"platformCode"`
	} `json:"stop"`
	Trip *struct {
		Route struct {
			Mode      string `json:"mode"`
			ShortName string `json:"shortName"`
		} `json:"route"`
	} `json:"trip"`
}

type boardNode struct {
	Name                     string        `json:"name"`
	PlatformCode             string        `json:"platformCode"`
	StoptimesWithoutPatterns []stoptimeRow `json:"stoptimesWithoutPatterns"`
}

// NearbyStops lists stops within radiusMeters of p, nearest first as
// returned by the API.
func (r *Routing) NearbyStops(ctx context.Context, p domain.GeoPoint, radiusMeters int) ([]domain.NearbyStop, error) {
	var data nearbyStopsData
	err := r.client.graphql(ctx, nearbyStopsQuery, map[string]any{
		"lat":    p.Lat,
		"lon":    p.Lon,
		"radius": radiusMeters,
	}, &data)
	if err != nil {
		return nil, err
	}

	var stops []domain.NearbyStop
	for _, edge := range data.StopsByRadius.Edges {
		stop := edge.Node.Stop
		if stop.GtfsID == "" {
			continue
		}
		ns := domain.NearbyStop{
			ID:             stop.GtfsID,
			Name:           stop.Name,
			Code:           stop.Code,
			VehicleMode:    stop.VehicleMode,
			DistanceMeters: edge.Node.Distance,
		}
		if stop.ParentStation != nil {
			ns.StationID = stop.ParentStation.GtfsID
			ns.StationName = stop.ParentStation.Name
		}
		stops = append(stops, ns)
	}
	return stops, nil
}

// StopDepartures fetches upcoming departures for a single stop.
func (r *Routing) StopDepartures(ctx context.Context, stopID string, count int) (*domain.UpstreamBoard, error) {
	var data struct {
		Stop *boardNode `json:"stop"`
	}
	err := r.client.graphql(ctx, stopDeparturesQuery, map[string]any{
		"id":         stopID,
		"departures": count,
	}, &data)
	if err != nil {
		return nil, err
	}
	if data.Stop == nil {
		return &domain.UpstreamBoard{}, nil
	}
	return toBoard(data.Stop), nil
}

// StationDepartures fetches upcoming departures across all platforms of
// a parent station.
func (r *Routing) StationDepartures(ctx context.Context, stationID string, count int) (*domain.UpstreamBoard, error) {
	var data struct {
		Station *boardNode `json:"station"`
	}
	err := r.client.graphql(ctx, stationDeparturesQuery, map[string]any{
		"id":         stationID,
		"departures": count,
	}, &data)
	if err != nil {
		return nil, err
	}
	if data.Station == nil {
		return &domain.UpstreamBoard{}, nil
	}
	return toBoard(data.Station), nil
}

func toBoard(node *boardNode) *domain.UpstreamBoard {
	board := &domain.UpstreamBoard{
		Name:         node.Name,
		PlatformCode: node.PlatformCode,
	}
	for _, row := range node.StoptimesWithoutPatterns {
		if !boardable(row.PickupType) {
			continue
		}
		dep := domain.UpstreamDeparture{
			Headsign:     row.Headsign,
			Departure:    departureTime(row),
			RealtimeUsed: row.Realtime,
			DelaySeconds: row.DepartureDelay,
		}
		if row.Trip != nil {
			dep.Line = row.Trip.Route.ShortName
		}
		if row.Stop != nil {
			dep.Track = row.Stop.PlatformCode
			dep.StopCode = row.Stop.Code
		}
		board.Departures = append(board.Departures, dep)
	}
	return board
}

// boardable filters out stoptimes passengers cannot board. The API
// reports pickupType as either an enum string or a GTFS numeric code.
func boardable(pickupType any) bool {
	switch v := pickupType.(type) {
	case string:
		return v != "NONE"
	case float64:
		return int(v) != 1
	}
	return true
}

// departureTime resolves a stoptime to wall-clock time: seconds past
// the service day start, using the realtime estimate when one exists.
func departureTime(row stoptimeRow) time.Time {
	seconds := row.ScheduledDeparture
	if row.Realtime {
		seconds = row.RealtimeDeparture
	}
	return time.Unix(row.ServiceDay+seconds, 0)
}
