package http

import (
	"time"

	"github.com/fheinonen/helsinki-moves/internal/adapters/valkey"
	"github.com/fheinonen/helsinki-moves/internal/core/ports"
	"github.com/fheinonen/helsinki-moves/internal/core/usecases"
	"github.com/nats-io/nats.go"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Geocode    *usecases.GeocodeService
	Departures ports.DeparturesProvider
	Publisher  ports.EventPublisher
	NATS       *nats.Conn
	Prefs      *valkey.PrefStore

	// RefreshInterval is the auto-refresh cadence for board sessions.
	RefreshInterval time.Duration
}
