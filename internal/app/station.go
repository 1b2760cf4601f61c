// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/bat_weather/internal/display"
	"github.com/relabs-tech/bat_weather/internal/gps"
	"github.com/relabs-tech/bat_weather/internal/logstore"
	"github.com/relabs-tech/bat_weather/internal/observability"
	"github.com/relabs-tech/bat_weather/internal/operator"
	"github.com/relabs-tech/bat_weather/internal/sampler"
	"github.com/relabs-tech/bat_weather/internal/snapshot"
	"github.com/relabs-tech/bat_weather/internal/timesync"
)

// Expander is the digital input register carrying the operator controls.
type Expander interface {
	ReadRegister() (byte, error)
}

// Exporter receives every snapshot together with its status line.
type Exporter interface {
	Export(s snapshot.Snapshot, status string) error
}

// ByteSource delivers buffered receiver bytes without blocking.
type ByteSource interface {
	Drain(feed func(byte)) int
}

// StationDeps are the collaborators of the foreground loop. Optional
// collaborators are nil when the hardware was not found at boot.
type StationDeps struct {
	Receiver *gps.Receiver
	GPS      ByteSource // optional
	Syncer   *timesync.Syncer
	Expander Expander // optional
	Machine  *operator.Machine
	Sampler  *sampler.Sampler
	Medium   logstore.Medium // optional
	Panel    *display.Panel  // optional
	Store    *snapshot.Store
	Export   []Exporter
	Metrics  *observability.Metrics // optional
	Logger   *slog.Logger

	// NewRunID names a measurement run; defaults to a random UUID.
	NewRunID func() string
}

// Station is the single foreground context: everything except edge
// counting, serial reads and HTTP serving runs here, one iteration at a
// time.
type Station struct {
	d     StationDeps
	edges *operator.EdgeDetector
	runID string
	run   *logstore.Run
}

// NewStation logs the capability flags once and returns the station.
func NewStation(d StationDeps) *Station {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.NewRunID == nil {
		d.NewRunID = func() string { return uuid.NewString() }
	}
	s := &Station{d: d, edges: operator.NewEdgeDetector()}

	caps := []struct {
		name string
		ok   bool
	}{
		{"gps", d.GPS != nil},
		{"expander", d.Expander != nil},
		{"log", d.Medium != nil},
		{"display", d.Panel != nil},
	}
	for _, c := range caps {
		if !c.ok {
			d.Logger.Warn("capability unavailable, continuing without it", "capability", c.name)
		}
	}

	if d.Expander == nil {
		d.Logger.Warn("no operator input, measuring with default configuration",
			"mode", d.Machine.Config().ModeLabel(), "cloud_cover", d.Machine.Config().CloudCover)
		s.execute(d.Machine.Skip(), time.Now())
	} else {
		s.showConfig()
	}
	return s
}

// RunID returns the id of the current measurement run, "" before
// measuring starts.
func (s *Station) RunID() string { return s.runID }

// Step runs one foreground iteration at monotonic time now.
func (s *Station) Step(now time.Time) {
	// The receiver parser is stateful: drain every iteration, every phase.
	if s.d.GPS != nil {
		s.d.GPS.Drain(s.d.Receiver.Feed)
	}

	if !s.d.Syncer.Synced() && s.d.Syncer.TrySync(s.d.Receiver.CurrentFix()) {
		s.d.Metrics.SetTimeSynced(true)
	}

	if s.d.Machine.NeedsInput() {
		s.readInput(now)
	}

	if s.d.Sampler.Due(now) {
		snap := s.d.Sampler.Cycle(now, s.d.Machine.Config(), s.d.Syncer.Synced(), s.runID)
		s.export(snap)
	}
}

func (s *Station) readInput(now time.Time) {
	if s.d.Expander == nil {
		return
	}
	reg, err := s.d.Expander.ReadRegister()
	if err != nil {
		s.d.Logger.Debug("expander read failed", "error", err)
		return
	}
	e := s.edges.Update(reg)
	if !e.Any() {
		return
	}

	before := s.d.Machine.Phase()
	cmds := s.d.Machine.Step(e, now)
	if after := s.d.Machine.Phase(); after != before {
		s.d.Logger.Info("operator phase changed", "from", before, "to", after,
			"cloud_cover", s.d.Machine.Config().CloudCover, "mode", s.d.Machine.Config().ModeLabel())
	}
	s.execute(cmds, now)
	if s.d.Machine.NeedsInput() {
		s.showConfig()
	}
}

func (s *Station) execute(cmds []operator.Command, now time.Time) {
	for _, c := range cmds {
		switch c {
		case operator.CommandOpenLog:
			s.openLog()
		case operator.CommandResetCounters:
			s.d.Sampler.Start(now)
		default:
			s.d.Logger.Warn("unknown command", "command", c)
		}
	}
}

func (s *Station) openLog() {
	s.runID = s.d.NewRunID()
	log := s.d.Logger.With("run", s.runID)
	if s.d.Medium == nil {
		log.Info("measuring started without log medium")
		return
	}
	run, err := logstore.OpenRun(s.d.Medium, s.d.Syncer.Now())
	if err != nil {
		log.Warn("could not open run log, measuring without it", "error", err)
		return
	}
	s.run = run
	s.d.Sampler.SetRun(run)
	log.Info("measuring started", "log", run.Name())
}

// logRunSummary reports how many records of the current run reached the
// log medium.
func (s *Station) logRunSummary() {
	if s.run == nil {
		return
	}
	appended, failed := s.run.Counts()
	s.d.Logger.Info("run log closed", "run", s.runID, "log", s.run.Name(),
		"appended", appended, "failed", failed)
}

func (s *Station) showConfig() {
	if s.d.Panel == nil {
		return
	}
	sc := display.Config(s.d.Machine.Phase(), s.d.Machine.Config())
	if err := s.d.Panel.Show(sc); err != nil {
		s.d.Logger.Debug("display update failed", "error", err)
	}
}

func (s *Station) export(snap snapshot.Snapshot) {
	s.d.Store.Publish(snap)
	status := snap.Status()

	if s.d.Panel != nil {
		if err := s.d.Panel.Export(snap, status); err != nil {
			s.d.Logger.Debug("display update failed", "error", err)
		}
	}
	for _, e := range s.d.Export {
		if err := e.Export(snap, status); err != nil {
			s.d.Logger.Debug("export failed", "exporter", fmt.Sprintf("%T", e), "error", err)
		}
	}
	s.d.Logger.Debug("cycle exported", "seq", snap.Seq, "status", status,
		"wind", snap.Wind.Average, "rain", snap.RainMM, "env", snap.HasEnvironment)
}

// Run drives Step every interval until ctx is cancelled. kick is called
// after every iteration.
func (s *Station) Run(ctx context.Context, interval time.Duration, kick func()) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		start := time.Now()
		s.Step(start)
		s.d.Metrics.ObserveIteration(time.Since(start))
		if kick != nil {
			kick()
		}

		select {
		case <-ctx.Done():
			s.logRunSummary()
			return nil
		case <-ticker.C:
		}
	}
}
