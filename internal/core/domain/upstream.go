package domain

import "time"

// NearbyStop is one stopsByRadius result from the routing API.
type NearbyStop struct {
	ID             string
	Name           string
	Code           string
	VehicleMode    string
	DistanceMeters float64
	StationID      string
	StationName    string
}

// UpstreamDeparture is one boardable stoptime row from the routing API.
type UpstreamDeparture struct {
	Line         string
	Headsign     string
	Track        string
	StopCode     string
	Departure    time.Time
	RealtimeUsed bool
	DelaySeconds int
}

// UpstreamBoard is the raw departure listing for one stop or station.
type UpstreamBoard struct {
	Name         string
	PlatformCode string
	Departures   []UpstreamDeparture
}
