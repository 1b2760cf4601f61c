package sensors

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
)

// PCF8574 is the 8-bit I/O expander carrying the rotary encoder and the
// confirm button.
type PCF8574 struct {
	dev *i2c.Dev
}

// NewPCF8574 configures all eight lines as inputs. The chip has no
// direction register: writing 1 releases a line to its weak pull-up.
func NewPCF8574(bus i2c.Bus, addr uint16) (*PCF8574, error) {
	d := &i2c.Dev{Bus: bus, Addr: addr}
	if err := d.Tx([]byte{0xFF}, nil); err != nil {
		return nil, fmt.Errorf("%w: pcf8574 at 0x%02X: %v", ErrUnavailable, addr, err)
	}
	return &PCF8574{dev: d}, nil
}

// ReadRegister returns the current level of all eight lines.
func (p *PCF8574) ReadRegister() (byte, error) {
	var b [1]byte
	if err := p.dev.Tx(nil, b[:]); err != nil {
		return 0, fmt.Errorf("pcf8574 read: %w", err)
	}
	return b[0], nil
}
