package sensors

import (
	"context"
	"fmt"
	"time"

	"github.com/relabs-tech/bat_weather/internal/observability"
	"github.com/relabs-tech/bat_weather/internal/pulse"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// edgeWait bounds each WaitForEdge call so cancellation is noticed.
const edgeWait = 250 * time.Millisecond

// PulsePin looks up a GPIO line by name, e.g. "GPIO17".
func PulsePin(name string) (gpio.PinIn, error) {
	if err := InitHost(); err != nil {
		return nil, err
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("%w: gpio %q not found", ErrUnavailable, name)
	}
	return p, nil
}

// WatchPulses configures pin as a pulled-up input interrupting on falling
// edges and feeds every edge into c until ctx is cancelled.
func WatchPulses(ctx context.Context, pin gpio.PinIn, c *pulse.Counter, m *observability.Metrics) error {
	if err := pin.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return fmt.Errorf("%s line %s: %w", c.Name(), pin.Name(), err)
	}
	for {
		if ctx.Err() != nil {
			return nil
		}
		if !pin.WaitForEdge(edgeWait) {
			continue
		}
		m.Pulse(c.Name(), c.RecordEdge(time.Now()))
	}
}
