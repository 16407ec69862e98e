package models

import "time"

// Direction of a trade intent.
type Direction string

const (
	DirectionCall Direction = "CALL"
	DirectionPut  Direction = "PUT"
	DirectionNone Direction = ""
)

// Signal is one channel message after parsing. Structured fields are
// best-effort: absence means "not found in the text", never an error.
// Immutable once built.
type Signal struct {
	ReceivedAt    time.Time `json:"received_at"`
	ChannelID     int64     `json:"channel_id"`
	Asset         string    `json:"asset,omitempty"`
	Direction     Direction `json:"direction,omitempty"`
	ExpirySeconds int       `json:"expiry_seconds,omitempty"`
	Raw           string    `json:"raw"`
}

// Parsed reports whether any structured field was extracted.
func (s Signal) Parsed() bool {
	return s.Asset != "" || s.Direction != DirectionNone || s.ExpirySeconds > 0
}
