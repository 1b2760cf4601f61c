package sensors

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
)

// PCF8563 registers
const (
	pcfRegControl1 = 0x00
	pcfRegSeconds  = 0x02

	pcfVoltageLow = 0x80 // seconds bit 7: oscillator stopped, time invalid
	pcfCentury    = 0x80 // months bit 7
)

// ErrClockLost is returned while the RTC reports that its oscillator
// stopped since the last Set.
var ErrClockLost = errors.New("rtc oscillator stopped, time invalid")

// PCF8563 is the battery-backed real-time clock. It holds UTC.
type PCF8563 struct {
	dev *i2c.Dev
}

// NewPCF8563 starts the oscillator and returns the clock.
func NewPCF8563(bus i2c.Bus, addr uint16) (*PCF8563, error) {
	d := &i2c.Dev{Bus: bus, Addr: addr}
	if err := d.Tx([]byte{pcfRegControl1, 0x00}, nil); err != nil {
		return nil, fmt.Errorf("%w: pcf8563 at 0x%02X: %v", ErrUnavailable, addr, err)
	}
	return &PCF8563{dev: d}, nil
}

// Set writes t (second resolution) and clears the voltage-low flag.
func (r *PCF8563) Set(t time.Time) error {
	regs := encodeRTC(t.UTC())
	w := append([]byte{pcfRegSeconds}, regs[:]...)
	if err := r.dev.Tx(w, nil); err != nil {
		return fmt.Errorf("pcf8563 set: %w", err)
	}
	return nil
}

// Now reads the current time.
func (r *PCF8563) Now() (time.Time, error) {
	var regs [7]byte
	if err := r.dev.Tx([]byte{pcfRegSeconds}, regs[:]); err != nil {
		return time.Time{}, fmt.Errorf("pcf8563 read: %w", err)
	}
	return decodeRTC(regs)
}

func toBCD(v int) byte   { return byte(v/10)<<4 | byte(v%10) }
func fromBCD(b byte) int { return int(b>>4)*10 + int(b&0x0F) }

// encodeRTC lays out seconds..years as the chip stores them.
func encodeRTC(t time.Time) [7]byte {
	month := toBCD(int(t.Month()))
	if t.Year() >= 2100 {
		month |= pcfCentury
	}
	return [7]byte{
		toBCD(t.Second()),
		toBCD(t.Minute()),
		toBCD(t.Hour()),
		toBCD(t.Day()),
		byte(t.Weekday()),
		month,
		toBCD(t.Year() % 100),
	}
}

func decodeRTC(regs [7]byte) (time.Time, error) {
	if regs[0]&pcfVoltageLow != 0 {
		return time.Time{}, ErrClockLost
	}
	year := 2000 + fromBCD(regs[6])
	if regs[5]&pcfCentury != 0 {
		year += 100
	}
	return time.Date(
		year,
		time.Month(fromBCD(regs[5]&0x1F)),
		fromBCD(regs[3]&0x3F),
		fromBCD(regs[2]&0x3F),
		fromBCD(regs[1]&0x7F),
		fromBCD(regs[0]&0x7F),
		0, time.UTC,
	), nil
}
