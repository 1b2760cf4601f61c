package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/bat_weather/internal/config"
	"github.com/relabs-tech/bat_weather/internal/gps"
	"github.com/relabs-tech/bat_weather/internal/logging"
)

// RunGPSMonitor opens the GPS serial port, feeds the receiver exactly as
// the station does and prints the fix once per second.
func RunGPSMonitor() error {
	cfg := config.Get()
	if cfg.GPSSerialPort == "" {
		return fmt.Errorf("GPS_SERIAL_PORT is not set")
	}

	logger, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat, "gps_monitor")
	if err != nil {
		return err
	}

	stream, err := gps.OpenSerial(cfg.GPSSerialPort, cfg.GPSBaudRate, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- stream.Run(ctx) }()

	rx := gps.NewReceiver()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("gps monitor: shutting down")
			return nil
		case err := <-errCh:
			return err
		case <-ticker.C:
			stream.Drain(rx.Feed)
			printFix(os.Stdout, rx)
		}
	}
}

func printFix(w io.Writer, rx *gps.Receiver) {
	fmt.Fprintln(w, formatFix(rx))
}

// formatFix renders the receiver state on one line.
func formatFix(rx *gps.Receiver) string {
	f := rx.CurrentFix()
	sentences, errs := rx.Stats()

	when := "no date/time"
	if f.DateTimeValid {
		when = f.Time.Format(time.RFC3339)
	}
	if !f.Valid {
		return fmt.Sprintf("[GPS ] %s  no fix  (sentences=%d errors=%d)", when, sentences, errs)
	}
	return fmt.Sprintf("[GPS ] %s  lat=%.6f lon=%.6f alt=%.1fm sats=%d  (sentences=%d errors=%d)",
		when, f.Latitude, f.Longitude, f.Altitude, f.Satellites, sentences, errs)
}
