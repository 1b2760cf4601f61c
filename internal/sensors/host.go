// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors adapts the station hardware (environment sensor,
// expander, RTC, pulse lines) to the interfaces used by the engine.
package sensors

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// ErrUnavailable marks a device that is not present or did not answer at
// boot. Callers treat it as a capability flag, not a failure.
var ErrUnavailable = errors.New("sensor unavailable")

var (
	hostOnce sync.Once
	hostErr  error
)

// InitHost initializes periph drivers once per process.
func InitHost() error {
	hostOnce.Do(func() {
		if _, err := host.Init(); err != nil {
			hostErr = fmt.Errorf("periph host init: %w", err)
		}
	})
	return hostErr
}

// OpenI2C opens an I2C bus by name; "" selects the default bus.
func OpenI2C(name string) (i2c.BusCloser, error) {
	if err := InitHost(); err != nil {
		return nil, err
	}
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("i2c open %q: %w", name, err)
	}
	return bus, nil
}
