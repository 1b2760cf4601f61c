// Package snapshot defines the per-cycle data product of the station and
// its exported form.
package snapshot

import (
	"sync/atomic"
	"time"

	"github.com/relabs-tech/bat_weather/internal/atmos"
	"github.com/relabs-tech/bat_weather/internal/env"
	"github.com/relabs-tech/bat_weather/internal/gps"
	"github.com/relabs-tech/bat_weather/internal/operator"
)

// NoWindDirection is reported when no wind vane supplies a label.
const NoWindDirection = "---"

// Wind holds the wind values of one interval.
type Wind struct {
	Average   float64 // m/s over the interval
	Gust      float64 // m/s, supplied externally
	Direction string  // compass label, supplied externally
}

// Snapshot is one sampling cycle. It is built once by the sampler and
// never modified afterwards; a newer cycle replaces it.
type Snapshot struct {
	Seq      uint64
	Taken    time.Time // RTC time at the end of the cycle
	RunID    string
	Interval time.Duration // since the previous drain

	Environment    env.Reading
	HasEnvironment bool
	DewPoint       float64
	HasDewPoint    bool
	Attenuation    atmos.Set

	Wind      Wind
	RainMM    float64
	WindTicks uint64
	RainTips  uint64

	Location   gps.Fix
	Operator   operator.Config
	TimeSynced bool
}

// Status is the one-line summary shown next to the data: mode plus clock
// source.
func (s Snapshot) Status() string {
	return StatusLine(s.Operator, s.TimeSynced)
}

// StatusLine formats the status for a config and sync state, e.g.
// "STAT (GPS-TIME)".
func StatusLine(cfg operator.Config, synced bool) string {
	if synced {
		return cfg.ModeLabel() + " (GPS-TIME)"
	}
	return cfg.ModeLabel() + " (RTC-MODE)"
}

// Store holds the latest snapshot for concurrent readers.
type Store struct {
	latest atomic.Pointer[Snapshot]
}

// Publish replaces the latest snapshot.
func (st *Store) Publish(s Snapshot) {
	st.latest.Store(&s)
}

// Latest returns the most recent snapshot, if any.
func (st *Store) Latest() (Snapshot, bool) {
	p := st.latest.Load()
	if p == nil {
		return Snapshot{}, false
	}
	return *p, true
}
