package domain

import "time"

// Location is an immutable position sample. Updates never mutate an existing
// value; a fresh reading is always a fresh Location.
type Location struct {
	Latitude       float64
	Longitude      float64
	AccuracyMeters float64
	Timestamp      time.Time
	AltitudeMeters *float64
	SpeedKMH       *float64
	BearingDegrees *float64
	IsMoving       *bool
}

// NewLocation constructs a Location from the required fields. Optional fields
// are attached with the With* helpers, which return a copy.
func NewLocation(latitude, longitude, accuracyMeters float64, timestamp time.Time) Location {
	return Location{
		Latitude:       latitude,
		Longitude:      longitude,
		AccuracyMeters: accuracyMeters,
		Timestamp:      timestamp,
	}
}

// WithAltitude returns a copy of the location with altitude_meters set.
func (l Location) WithAltitude(meters float64) Location {
	l.AltitudeMeters = &meters
	return l
}

// WithSpeed returns a copy of the location with speed_kmh set.
func (l Location) WithSpeed(kmh float64) Location {
	l.SpeedKMH = &kmh
	return l
}

// WithBearing returns a copy of the location with bearing_degrees set.
func (l Location) WithBearing(degrees float64) Location {
	l.BearingDegrees = &degrees
	return l
}

// WithMoving returns a copy of the location with the is_moving flag set.
func (l Location) WithMoving(moving bool) Location {
	l.IsMoving = &moving
	return l
}

// LocationRecord is the wire shape read from and written to the remote
// record store. Timestamps travel as milliseconds since epoch.
type LocationRecord struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  float64  `json:"accuracy"`
	Timestamp int64    `json:"timestamp"`
	Altitude  *float64 `json:"altitude,omitempty"`
}

// ToRecord converts a Location to its remote record representation.
func (l Location) ToRecord() LocationRecord {
	return LocationRecord{
		Latitude:  l.Latitude,
		Longitude: l.Longitude,
		Accuracy:  l.AccuracyMeters,
		Timestamp: l.Timestamp.UnixMilli(),
		Altitude:  l.AltitudeMeters,
	}
}

// ToLocation converts a remote record back to a domain Location.
func (r LocationRecord) ToLocation() Location {
	loc := Location{
		Latitude:       r.Latitude,
		Longitude:      r.Longitude,
		AccuracyMeters: r.Accuracy,
		Timestamp:      time.UnixMilli(r.Timestamp).UTC(),
	}
	if r.Altitude != nil {
		alt := *r.Altitude
		loc.AltitudeMeters = &alt
	}
	return loc
}
