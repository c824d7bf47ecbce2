package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gofiber/websocket/v2"

	"github.com/fheinonen/helsinki-moves/internal/adapters/memory"
	"github.com/fheinonen/helsinki-moves/internal/adapters/urlstate"
	"github.com/fheinonen/helsinki-moves/internal/core/domain"
	"github.com/fheinonen/helsinki-moves/internal/core/ports"
	"github.com/fheinonen/helsinki-moves/internal/core/usecases"
	"github.com/fheinonen/helsinki-moves/internal/pkg/geospatial"
	"github.com/fheinonen/helsinki-moves/internal/pkg/metrics"
)

// minMoveMeters is how far a reported position must move before a
// location update triggers a fresh load.
const minMoveMeters = 25.0

// boardCommand is a client-to-server board session message.
type boardCommand struct {
	Action       string   `json:"action"`
	Lat          float64  `json:"lat"`
	Lon          float64  `json:"lon"`
	Reason       string   `json:"reason"`
	Mode         string   `json:"mode"`
	On           bool     `json:"on"`
	StopID       string   `json:"stopId"`
	Lines        []string `json:"lines"`
	Destinations []string `json:"destinations"`
	Limit        int      `json:"limit"`
}

// wsSink renders board engine output as JSON events on the socket.
type wsSink struct {
	mu        sync.Mutex
	conn      *websocket.Conn
	publisher ports.EventPublisher
}

func (s *wsSink) send(event string, payload any) {
	data, err := json.Marshal(map[string]any{"event": event, "data": payload})
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *wsSink) RenderBoard(resp *domain.BoardResponse) {
	s.send("board", resp)
	if s.publisher != nil && resp != nil {
		if data, err := json.Marshal(resp); err == nil {
			_ = s.publisher.PublishBoardUpdate(context.Background(), data)
		}
	}
}

func (s *wsSink) RenderStatus(text string)          { s.send("status", text) }
func (s *wsSink) RenderLoading(loading bool)        { s.send("loading", loading) }
func (s *wsSink) RenderPermissionRequired(req bool) { s.send("permission", req) }

// BoardSocketHandler runs one live board session per connection. The
// upgrade URL's query string seeds preferences; a device parameter binds
// the session to its persisted preference record.
func BoardSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		rawQuery, _ := c.Locals("rawquery").(string)
		query := urlstate.New(rawQuery)

		var store ports.PreferenceStore = memory.NewPrefStore()
		if device := c.Query("device"); device != "" && deps.Prefs != nil {
			store = deps.Prefs.ForDevice(device)
		}

		sink := &wsSink{conn: c, publisher: deps.Publisher}
		prefs := usecases.NewPreferenceService(store, query)
		board := usecases.NewBoardService(ctx, deps.Departures, prefs, sink)

		slog.Info("board session opened", "remote", c.RemoteAddr().String())

		if deps.RefreshInterval > 0 {
			go board.RunAutoRefresh(ctx, deps.RefreshInterval)
		}

		// Tell the client what its canonical query string looks like
		// after hydration.
		syncQuery := func() { sink.send("query", query.Encode()) }
		syncQuery()

		var lastPoint *domain.GeoPoint

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var cmd boardCommand
			if err := json.Unmarshal(msg, &cmd); err != nil {
				sink.send("error", "invalid JSON")
				continue
			}

			switch cmd.Action {
			case "locate":
				point := domain.GeoPoint{Lat: cmd.Lat, Lon: cmd.Lon}
				if !point.Valid() {
					sink.send("error", "invalid coordinates")
					continue
				}
				if lastPoint != nil && board.Snapshot().LatestResponse != nil {
					moved := geospatial.Haversine(lastPoint.Lat, lastPoint.Lon, point.Lat, point.Lon)
					if moved < minMoveMeters {
						continue
					}
				}
				lastPoint = &point
				go func() { _ = board.Load(ctx, point.Lat, point.Lon) }()

			case "locationError":
				board.HandleLocationFailure(locationError(cmd.Reason))

			case "mode":
				mode := domain.ParseMode(cmd.Mode)
				if mode == "" {
					sink.send("error", "mode must be rail or bus")
					continue
				}
				board.SetMode(ctx, mode)
				syncQuery()
				go func() { _ = board.Refresh(ctx) }()

			case "helsinkiOnly":
				board.SetHelsinkiOnly(ctx, cmd.On)
				syncQuery()

			case "stop":
				board.SetBusStop(ctx, cmd.StopID)
				syncQuery()
				go func() { _ = board.Refresh(ctx) }()

			case "filters":
				board.SetBusFilters(ctx, cmd.Lines, cmd.Destinations)
				syncQuery()
				go func() { _ = board.Refresh(ctx) }()

			case "results":
				mode := domain.ParseMode(cmd.Mode)
				if mode == "" {
					mode = board.Snapshot().Mode
				}
				board.SetResultsLimit(ctx, mode, cmd.Limit)
				syncQuery()
				go func() { _ = board.Refresh(ctx) }()

			case "refresh":
				go func() { _ = board.Refresh(ctx) }()

			default:
				sink.send("error", "unknown action: "+cmd.Action)
			}
		}

		slog.Info("board session closed", "remote", c.RemoteAddr().String())
	}
}

func locationError(reason string) error {
	switch reason {
	case "denied":
		return domain.ErrLocationDenied
	case "timeout":
		return domain.ErrLocationTimeout
	default:
		return domain.ErrLocationUnavailable
	}
}
