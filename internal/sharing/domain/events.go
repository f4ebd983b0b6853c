package domain

import "time"

// LocationEvent is the message published to the location_topic exchange
// after every successful broadcast, for downstream consumers (archiver).
type LocationEvent struct {
	EventID        string    `json:"event_id"`
	OwnerID        string    `json:"owner_id"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	AccuracyMeters float64   `json:"accuracy_meters"`
	Altitude       *float64  `json:"altitude_meters,omitempty"`
	SpeedKMH       *float64  `json:"speed_kmh,omitempty"`
	BearingDegrees *float64  `json:"bearing_degrees,omitempty"`
	RecordedAt     time.Time `json:"recorded_at"`
	PublishedAt    time.Time `json:"published_at"`
}
