package domain

import (
	"strings"
	"time"
)

// Mode is the transport mode shown on the board.
type Mode string

const (
	ModeRail Mode = "rail"
	ModeBus  Mode = "bus"
)

// ParseMode normalizes a mode value from a URL or storage.
// Unknown values return "" so callers can fall through to a default.
func ParseMode(raw string) Mode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ModeRail):
		return ModeRail
	case string(ModeBus):
		return ModeBus
	}
	return ""
}

// Upstream returns the mode name used by the Digitransit routing API.
func (m Mode) Upstream() string {
	return strings.ToUpper(string(m))
}

// Stop is a transit stop offered in the bus stop selector.
type Stop struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Code           string   `json:"code,omitempty"`
	StopCodes      []string `json:"stopCodes,omitempty"`
	DistanceMeters float64  `json:"distanceMeters"`
}

// Departure is a single upcoming departure at a stop or station.
type Departure struct {
	Line         string    `json:"line"`
	Destination  string    `json:"destination"`
	Track        string    `json:"track,omitempty"`
	StopCode     string    `json:"stopCode,omitempty"`
	Departure    time.Time `json:"departureIso"`
	RealtimeUsed bool      `json:"realtime"`
	DelaySeconds int       `json:"delaySeconds,omitempty"`
}

// StationBoard is the departure list for one resolved station or stop.
type StationBoard struct {
	Name           string      `json:"name,omitempty"`
	StopName       string      `json:"stopName,omitempty"`
	StopCode       string      `json:"stopCode,omitempty"`
	PlatformCode   string      `json:"platformCode,omitempty"`
	DistanceMeters float64     `json:"distanceMeters,omitempty"`
	Departures     []Departure `json:"departures"`
}

// FilterOption is one selectable line or destination value with its
// occurrence count in the current departure set.
type FilterOption struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// FilterCatalog advertises the filter values valid for the latest response.
// Active filters are pruned against it on every refresh.
type FilterCatalog struct {
	Lines        []FilterOption `json:"lines"`
	Destinations []FilterOption `json:"destinations"`
}

// BoardResponse is the proxy payload handed to the board engine and to
// HTTP clients.
type BoardResponse struct {
	Mode           string         `json:"mode"`
	Station        *StationBoard  `json:"station,omitempty"`
	Stops          []Stop         `json:"stops,omitempty"`
	SelectedStopID string         `json:"selectedStopId,omitempty"`
	FilterOptions  *FilterCatalog `json:"filterOptions,omitempty"`
	Message        string         `json:"message,omitempty"`
}

// BoardQuery is the request snapshot sent to the departures provider.
// It is captured when a load starts so filter changes mid-flight cannot
// be attributed to the wrong response.
type BoardQuery struct {
	Point        GeoPoint
	Mode         Mode
	ResultsLimit int
	StopID       string
	Lines        []string
	Destinations []string
}
