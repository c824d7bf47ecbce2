package ports

import (
	"context"

	"github.com/fheinonen/helsinki-moves/internal/core/domain"
)

// RoutingAPI is the upstream transit routing surface (Digitransit).
// Implementations classify failures with the domain sentinel errors.
type RoutingAPI interface {
	NearbyStops(ctx context.Context, p domain.GeoPoint, radiusMeters int) ([]domain.NearbyStop, error)
	StopDepartures(ctx context.Context, stopID string, count int) (*domain.UpstreamBoard, error)
	StationDepartures(ctx context.Context, stationID string, count int) (*domain.UpstreamBoard, error)
}
