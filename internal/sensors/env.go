package sensors

import (
	"fmt"
	"math"
	"time"

	"github.com/relabs-tech/bat_weather/internal/env"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
)

// EnvSensor is a BME280 on I2C.
type EnvSensor struct {
	dev *bmxx80.Dev
}

// NewEnvSensor probes the sensor at addr.
func NewEnvSensor(bus i2c.Bus, addr uint16) (*EnvSensor, error) {
	dev, err := bmxx80.NewI2C(bus, addr, &bmxx80.DefaultOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: bme280 at 0x%02X: %v", ErrUnavailable, addr, err)
	}
	return &EnvSensor{dev: dev}, nil
}

// Poll performs one forced measurement.
func (s *EnvSensor) Poll() (env.Reading, error) {
	var e physic.Env
	if err := s.dev.Sense(&e); err != nil {
		return env.Reading{}, fmt.Errorf("bme280 sense: %w", err)
	}
	return FromPhysic(e), nil
}

// Halt puts the sensor to sleep.
func (s *EnvSensor) Halt() error {
	return s.dev.Halt()
}

// FromPhysic converts periph units to °C, % and hPa.
func FromPhysic(e physic.Env) env.Reading {
	pressurePa := float64(e.Pressure) / float64(physic.Pascal)
	return env.Reading{
		Temperature: e.Temperature.Celsius(),
		Humidity:    float64(e.Humidity) / float64(physic.PercentRH),
		Pressure:    pressurePa / 100.0, // 1 hPa = 100 Pa
	}
}

// MockEnv generates a slowly drifting night-time climate for running the
// station without hardware.
type MockEnv struct {
	start time.Time
	now   func() time.Time
}

// NewMockEnv creates a mock sensor starting now.
func NewMockEnv() *MockEnv {
	return &MockEnv{start: time.Now(), now: time.Now}
}

// Poll never fails.
func (m *MockEnv) Poll() (env.Reading, error) {
	elapsed := m.now().Sub(m.start).Seconds()

	return env.Reading{
		Temperature: 14 + 3*math.Sin(elapsed/600),
		Humidity:    72 + 10*math.Cos(elapsed/900),
		Pressure:    1006 + 2*math.Sin(elapsed/1800),
	}, nil
}
