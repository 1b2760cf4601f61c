// Package timesync sets the station's real-time clock from GPS time the
// first time a plausible fix arrives.
package timesync

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/relabs-tech/bat_weather/internal/gps"
)

// minPlausibleYear guards against receivers that report their reset date
// before they have decoded the almanac.
const minPlausibleYear = 2020

// RTC is the battery-backed clock.
type RTC interface {
	Set(t time.Time) error
	Now() (time.Time, error)
}

// Syncer performs a one-shot RTC adjustment from GPS time.
type Syncer struct {
	rtc    RTC
	synced atomic.Bool
	logger *slog.Logger
}

// NewSyncer returns an unsynced Syncer for rtc.
func NewSyncer(rtc RTC, logger *slog.Logger) *Syncer {
	return &Syncer{rtc: rtc, logger: logger}
}

// TrySync sets the RTC from fix if the fix carries a valid date/time with
// a year after 2020. It reports whether this call performed the sync.
// Once synced, further calls do nothing.
func (s *Syncer) TrySync(fix gps.Fix) bool {
	if s.synced.Load() {
		return false
	}
	if !fix.DateTimeValid || fix.Time.Year() <= minPlausibleYear {
		return false
	}

	t := fix.Time.UTC().Truncate(time.Second)
	if err := s.rtc.Set(t); err != nil {
		s.logger.Debug("rtc set failed, will retry on next fix", "error", err)
		return false
	}
	s.synced.Store(true)
	s.logger.Info("rtc synchronised to gps time", "time", t.Format(time.RFC3339))
	return true
}

// Synced reports whether the RTC has been set from GPS time.
func (s *Syncer) Synced() bool { return s.synced.Load() }

// Now reads the RTC. On a read error it falls back to the host clock so
// log records always carry a timestamp.
func (s *Syncer) Now() time.Time {
	t, err := s.rtc.Now()
	if err != nil {
		s.logger.Debug("rtc read failed, using host clock", "error", err)
		return time.Now().UTC()
	}
	return t
}

// SystemClock is an RTC backed by the host clock. Set records an offset
// instead of touching the system time, so the process needs no privileges.
type SystemClock struct {
	offset atomic.Int64
}

// Set adjusts the clock so that Now returns t at this instant.
func (c *SystemClock) Set(t time.Time) error {
	c.offset.Store(int64(t.Sub(time.Now())))
	return nil
}

// Now returns the host time plus the offset recorded by Set.
func (c *SystemClock) Now() (time.Time, error) {
	return time.Now().Add(time.Duration(c.offset.Load())).UTC(), nil
}
