// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package operator implements the pre-measurement menu: cloud cover entry,
// stationary/mobile selection, then the measuring state.
package operator

import (
	"fmt"
	"time"
)

// Phase is the operator menu state.
type Phase int

const (
	PhaseCloudCover Phase = iota
	PhaseMode
	PhaseMeasuring
)

func (p Phase) String() string {
	switch p {
	case PhaseCloudCover:
		return "cloud_cover"
	case PhaseMode:
		return "mode"
	case PhaseMeasuring:
		return "measuring"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MaxCloudCover is the okta scale maximum.
const MaxCloudCover = 8

// DefaultConfirmDebounce is the minimum spacing between accepted button
// presses.
const DefaultConfirmDebounce = 500 * time.Millisecond

// Config is the operator's choice for the run.
type Config struct {
	CloudCover int  `json:"cloud_cover"` // oktas, 0..8
	Stationary bool `json:"stationary"`
}

// ModeLabel returns the short mode label used on the status line.
func (c Config) ModeLabel() string {
	if c.Stationary {
		return "STAT"
	}
	return "MOB"
}

// Command is a side effect requested by a transition. The caller executes
// commands; the machine never touches hardware.
type Command int

const (
	// CommandOpenLog opens the run log, named after the current RTC time.
	CommandOpenLog Command = iota + 1
	// CommandResetCounters discards pulses accumulated before measuring.
	CommandResetCounters
)

func (c Command) String() string {
	switch c {
	case CommandOpenLog:
		return "open_log"
	case CommandResetCounters:
		return "reset_counters"
	default:
		return fmt.Sprintf("command(%d)", int(c))
	}
}

// Machine is the operator state machine. Not safe for concurrent use.
type Machine struct {
	phase           Phase
	cfg             Config
	confirmDebounce time.Duration
	lastConfirm     time.Time
	haveConfirm     bool
}

// NewMachine returns a machine in PhaseCloudCover with cloud cover 0 and
// mobile mode.
func NewMachine(confirmDebounce time.Duration) *Machine {
	return &Machine{confirmDebounce: confirmDebounce}
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase { return m.phase }

// Config returns a copy of the operator configuration.
func (m *Machine) Config() Config { return m.cfg }

// NeedsInput reports whether the expander should be polled. Measuring
// takes no further input.
func (m *Machine) NeedsInput() bool { return m.phase != PhaseMeasuring }

// Step applies one set of input edges observed at now and returns the
// commands produced by the transition, if any.
func (m *Machine) Step(e Edges, now time.Time) []Command {
	var (
		next Phase
		cmds []Command
	)
	switch m.phase {
	case PhaseCloudCover:
		next, cmds = m.stepCloudCover(e, now)
	case PhaseMode:
		next, cmds = m.stepMode(e, now)
	default:
		next, cmds = m.phase, nil
	}
	m.phase = next
	return cmds
}

// Skip enters PhaseMeasuring with the current configuration. It is used
// when no input device is present, so the station still measures with the
// default configuration. Skip in PhaseMeasuring does nothing.
func (m *Machine) Skip() []Command {
	if m.phase == PhaseMeasuring {
		return nil
	}
	m.phase = PhaseMeasuring
	return []Command{CommandOpenLog, CommandResetCounters}
}

func (m *Machine) stepCloudCover(e Edges, now time.Time) (Phase, []Command) {
	if e.Step {
		if e.Clockwise {
			m.cfg.CloudCover = min(m.cfg.CloudCover+1, MaxCloudCover)
		} else {
			m.cfg.CloudCover = max(m.cfg.CloudCover-1, 0)
		}
	}
	if m.acceptConfirm(e, now) {
		return PhaseMode, nil
	}
	return PhaseCloudCover, nil
}

func (m *Machine) stepMode(e Edges, now time.Time) (Phase, []Command) {
	if e.Step {
		m.cfg.Stationary = !m.cfg.Stationary
	}
	if m.acceptConfirm(e, now) {
		return PhaseMeasuring, []Command{CommandOpenLog, CommandResetCounters}
	}
	return PhaseMode, nil
}

func (m *Machine) acceptConfirm(e Edges, now time.Time) bool {
	if !e.Confirm {
		return false
	}
	if m.haveConfirm && now.Sub(m.lastConfirm) < m.confirmDebounce {
		return false
	}
	m.lastConfirm = now
	m.haveConfirm = true
	return true
}
