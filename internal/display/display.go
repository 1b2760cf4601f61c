// Package display renders the station screens on a 128x64 SSD1306 OLED.
package display

import (
	"fmt"
	"image"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/bat_weather/internal/operator"
	"github.com/relabs-tech/bat_weather/internal/snapshot"
)

const (
	width  = 128
	height = 64
)

// Line is one text row; Y is the baseline.
type Line struct {
	X, Y int
	Text string
}

// Screen is a full frame of text.
type Screen []Line

func (s Screen) String() string {
	parts := make([]string, len(s))
	for i, l := range s {
		parts[i] = l.Text
	}
	return strings.Join(parts, "\n")
}

// Splash is shown while the station boots.
func Splash() Screen {
	return Screen{
		{X: 8, Y: 26, Text: "BAT WEATHER"},
		{X: 8, Y: 43, Text: "INITIALIZING..."},
	}
}

// CloudCover is the first configuration screen.
func CloudCover(n int) Screen {
	return Screen{
		{X: 25, Y: 12, Text: "BEWOELKUNG"},
		{X: 50, Y: 35, Text: fmt.Sprintf("%d/%d", n, operator.MaxCloudCover)},
		{X: 4, Y: 60, Text: "<Drehen+Druecken>"},
	}
}

// Mode is the second configuration screen.
func Mode(stationary bool) Screen {
	label := ">> MOBIL <<"
	if stationary {
		label = ">> STATIONAER <<"
	}
	return Screen{
		{X: 45, Y: 12, Text: "MODUS"},
		{X: 4, Y: 35, Text: label},
	}
}

// Config returns the screen for a configuration phase.
func Config(phase operator.Phase, cfg operator.Config) Screen {
	if phase == operator.PhaseCloudCover {
		return CloudCover(cfg.CloudCover)
	}
	return Mode(cfg.Stationary)
}

// Measuring shows the latest snapshot. Stationary runs show wind, mobile
// runs show the position.
func Measuring(s snapshot.Snapshot, status string) Screen {
	sc := Screen{}
	if s.HasEnvironment {
		sc = append(sc,
			Line{Y: 12, Text: fmt.Sprintf("T:%.1fC H:%.0f%%", s.Environment.Temperature, s.Environment.Humidity)},
		)
		dp := "--"
		if s.HasDewPoint {
			dp = fmt.Sprintf("%.1f", s.DewPoint)
		}
		sc = append(sc, Line{Y: 26, Text: fmt.Sprintf("P:%.0fhPa DP:%s", s.Environment.Pressure, dp)})
	} else {
		sc = append(sc, Line{Y: 12, Text: "NO SENSOR"})
	}

	switch {
	case s.Operator.Stationary:
		sc = append(sc, Line{Y: 42, Text: fmt.Sprintf("WIND: %.1f m/s", s.Wind.Average)})
	case s.Location.Valid:
		sc = append(sc, Line{Y: 42, Text: fmt.Sprintf("%.4f %.4f", s.Location.Latitude, s.Location.Longitude)})
	default:
		sc = append(sc, Line{Y: 42, Text: "WAIT FOR GPS..."})
	}
	return append(sc, Line{Y: 60, Text: status})
}

// Render draws a screen into a 1-bit frame.
func Render(sc Screen) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, width, height))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for _, l := range sc {
		drawer.Dot = fixed.P(l.X, l.Y)
		drawer.DrawString(l.Text)
	}
	return img
}

// Device is the part of ssd1306.Dev the panel needs.
type Device interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// Panel is the OLED attached to the station.
type Panel struct {
	dev  Device
	last string
}

// I2CAddr is the only bus address the ssd1306 driver talks to.
const I2CAddr = 0x3C

// Open initializes the SSD1306 at I2CAddr.
func Open(bus i2c.Bus) (*Panel, error) {
	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return nil, fmt.Errorf("ssd1306 at 0x%02X: %w", I2CAddr, err)
	}
	return New(dev), nil
}

// New wraps an already initialized device.
func New(dev Device) *Panel {
	return &Panel{dev: dev}
}

// Show draws sc unless it is identical to the frame already shown.
func (p *Panel) Show(sc Screen) error {
	key := sc.String()
	if key == p.last {
		return nil
	}
	if err := p.dev.Draw(p.dev.Bounds(), Render(sc), image.Point{}); err != nil {
		return fmt.Errorf("display draw: %w", err)
	}
	p.last = key
	return nil
}

// Export shows the measuring screen for a snapshot.
func (p *Panel) Export(s snapshot.Snapshot, status string) error {
	return p.Show(Measuring(s, status))
}
