package ports

import (
	"context"

	"github.com/fheinonen/helsinki-moves/internal/core/domain"
)

// Geocoder turns one text variant into location candidates. A failure for
// a single variant is reported as an error but callers treat it as "zero
// candidates for that variant", never as a fatal overall failure.
type Geocoder interface {
	Search(ctx context.Context, text, lang string) ([]domain.GeocodeCandidate, error)
}

// DeparturesProvider fetches a departure board for a request snapshot.
type DeparturesProvider interface {
	Departures(ctx context.Context, q domain.BoardQuery) (*domain.BoardResponse, error)
}

// PreferenceStore is per-device key-value storage for board preferences.
// Implementations may fail; the synchronizer degrades to in-memory state
// and never propagates storage errors.
type PreferenceStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// QueryState reads and replaces the canonical query string for a board
// session without any navigation semantics.
type QueryState interface {
	Get(key string) (string, bool)
	Values(key string) []string
	Replace(pairs [][2]string)
}

// EventPublisher pushes telemetry and board events to a message broker.
type EventPublisher interface {
	PublishClientError(ctx context.Context, report []byte) error
	PublishBoardUpdate(ctx context.Context, payload []byte) error
}

// BoardSink receives board engine output. The rendering side of the
// board client sits behind this interface. Implementations must not call
// back into the board service; they may be invoked while it holds its
// state lock.
type BoardSink interface {
	RenderBoard(resp *domain.BoardResponse)
	RenderStatus(text string)
	RenderLoading(loading bool)
	RenderPermissionRequired(required bool)
}
