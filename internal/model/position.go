package model

import "time"

// Position is a single fix from the device location provider. Positions are
// ephemeral: only derived trace points ever leave the process.
type Position struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
	Altitude  float64   `json:"altitude,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
