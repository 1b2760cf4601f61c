package gps

import "time"

// Fix represents the receiver's current view: position from RMC/GGA plus the
// UTC date/time it reported.
type Fix struct {
	Valid      bool    `json:"valid"`      // position lock (RMC status "A")
	Latitude   float64 `json:"lat"`        // decimal degrees
	Longitude  float64 `json:"lon"`        // decimal degrees
	Altitude   float64 `json:"alt"`        // metres above MSL (GGA)
	Satellites int64   `json:"satellites"` // satellites in use (GGA)

	DateTimeValid bool      `json:"datetime_valid"` // both RMC date and time fields present
	Time          time.Time `json:"time"`           // UTC
}
