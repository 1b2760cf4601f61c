// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sampler runs the fixed-interval measurement cycle: poll the
// environment sensor, derive dew point and attenuation, drain the pulse
// counters and assemble one Snapshot.
package sampler

import (
	"log/slog"
	"time"

	"github.com/relabs-tech/bat_weather/internal/atmos"
	"github.com/relabs-tech/bat_weather/internal/env"
	"github.com/relabs-tech/bat_weather/internal/gps"
	"github.com/relabs-tech/bat_weather/internal/logstore"
	"github.com/relabs-tech/bat_weather/internal/observability"
	"github.com/relabs-tech/bat_weather/internal/operator"
	"github.com/relabs-tech/bat_weather/internal/pulse"
	"github.com/relabs-tech/bat_weather/internal/snapshot"
)

const (
	// DefaultInterval is the time between the end of one cycle and the
	// start of the next.
	DefaultInterval = 8000 * time.Millisecond

	// WindFactor converts anemometer ticks per second into m/s.
	WindFactor = 0.6667
	// RainPerTip is the rain gauge bucket volume in mm.
	RainPerTip = 0.2794
)

// EnvSensor delivers one environment reading per call.
type EnvSensor interface {
	Poll() (env.Reading, error)
}

// FixSource reports the latest satellite fix.
type FixSource interface {
	CurrentFix() gps.Fix
}

// Clock is the real-time clock used to timestamp snapshots.
type Clock interface {
	Now() time.Time
}

// WindExtras supplies wind values this station does not measure itself.
type WindExtras interface {
	Wind() (gust float64, direction string)
}

// Options configures a Sampler. Env, Extras, Metrics and Logger may be nil.
type Options struct {
	Interval time.Duration
	Env      EnvSensor
	Wind     *pulse.Counter
	Rain     *pulse.Counter
	Fix      FixSource
	Clock    Clock
	Extras   WindExtras
	Metrics  *observability.Metrics
	Logger   *slog.Logger

	// Monotonic is the time source for scheduling; defaults to time.Now.
	Monotonic func() time.Time
}

// Sampler is driven from the foreground loop only.
type Sampler struct {
	opts    Options
	run     *logstore.Run
	lastEnd time.Time
	started bool
	seq     uint64
}

// New returns a Sampler. It does not run until Start is called.
func New(opts Options) *Sampler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Monotonic == nil {
		opts.Monotonic = time.Now
	}
	return &Sampler{opts: opts}
}

// SetRun attaches the log of the current run. A nil run disables logging.
func (s *Sampler) SetRun(r *logstore.Run) { s.run = r }

// Start makes now the reference point of the first interval and discards
// edges counted before it.
func (s *Sampler) Start(now time.Time) {
	s.opts.Wind.Reset(now)
	s.opts.Rain.Reset(now)
	s.lastEnd = now
	s.started = true
}

// Started reports whether Start has been called.
func (s *Sampler) Started() bool { return s.started }

// Due reports whether a full interval has passed since the end of the
// previous cycle.
func (s *Sampler) Due(now time.Time) bool {
	return s.started && now.Sub(s.lastEnd) >= s.opts.Interval
}

// Cycle performs one sampling cycle at monotonic time now and returns the
// resulting snapshot.
func (s *Sampler) Cycle(now time.Time, cfg operator.Config, synced bool, runID string) snapshot.Snapshot {
	s.seq++
	snap := snapshot.Snapshot{
		Seq:        s.seq,
		RunID:      runID,
		Operator:   cfg,
		TimeSynced: synced,
	}

	if s.opts.Env != nil {
		r, err := s.opts.Env.Poll()
		if err != nil {
			s.opts.Metrics.EnvPollFailed()
			s.opts.Logger.Debug("environment poll failed", "error", err)
		} else {
			snap.Environment = r
			snap.HasEnvironment = true
			snap.Attenuation = atmos.Compute(r)
			if r.Humidity > 0 {
				snap.DewPoint = atmos.DewPoint(r.Temperature, r.Humidity)
				snap.HasDewPoint = true
			}
		}
	}

	ticks, interval := s.opts.Wind.Drain(now)
	tips, _ := s.opts.Rain.Drain(now)
	snap.WindTicks = ticks
	snap.RainTips = tips
	snap.Interval = interval
	snap.Wind.Average = WindSpeed(ticks, interval)
	snap.RainMM = RainAmount(tips)
	snap.Wind.Direction = snapshot.NoWindDirection
	if s.opts.Extras != nil {
		gust, dir := s.opts.Extras.Wind()
		snap.Wind.Gust = gust
		if dir != "" {
			snap.Wind.Direction = dir
		}
	}

	if s.opts.Fix != nil {
		snap.Location = s.opts.Fix.CurrentFix()
	}
	snap.Taken = s.opts.Clock.Now()

	if s.run != nil {
		if err := s.run.Append(snap); err != nil {
			s.opts.Metrics.LogAppendFailed()
			s.opts.Logger.Debug("log append failed", "log", s.run.Name(), "error", err)
		}
	}

	s.opts.Metrics.CycleDone()
	s.lastEnd = s.opts.Monotonic()
	return snap
}

// WindSpeed converts ticks counted over interval into an average speed
// in m/s.
func WindSpeed(ticks uint64, interval time.Duration) float64 {
	secs := interval.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(ticks) / secs * WindFactor
}

// RainAmount converts bucket tips into mm of rain.
func RainAmount(tips uint64) float64 {
	return float64(tips) * RainPerTip
}
