// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"periph.io/x/conn/v3/i2c"

	"github.com/relabs-tech/bat_weather/internal/config"
	"github.com/relabs-tech/bat_weather/internal/display"
	"github.com/relabs-tech/bat_weather/internal/gps"
	"github.com/relabs-tech/bat_weather/internal/logging"
	"github.com/relabs-tech/bat_weather/internal/logstore"
	"github.com/relabs-tech/bat_weather/internal/observability"
	"github.com/relabs-tech/bat_weather/internal/operator"
	"github.com/relabs-tech/bat_weather/internal/pulse"
	"github.com/relabs-tech/bat_weather/internal/sampler"
	"github.com/relabs-tech/bat_weather/internal/sensors"
	"github.com/relabs-tech/bat_weather/internal/snapshot"
	"github.com/relabs-tech/bat_weather/internal/timesync"
	"github.com/relabs-tech/bat_weather/internal/watchdog"
)

// hardware is what was found at boot. Absent devices stay nil.
type hardware struct {
	bus      i2c.BusCloser
	env      sampler.EnvSensor
	rtc      timesync.RTC
	expander Expander
	panel    *display.Panel
	gps      *gps.Stream
	medium   logstore.Medium

	closers []func() error
}

func (h *hardware) close(logger *slog.Logger) {
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i](); err != nil {
			logger.Debug("close failed", "error", err)
		}
	}
}

// RunStation boots the station from the global configuration and runs it
// until SIGINT/SIGTERM or a watchdog starvation.
func RunStation() error {
	cfg := config.Get()

	logger, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat, "station")
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := observability.NewMetrics(reg)
	if err != nil {
		return err
	}

	hw := openHardware(cfg, logger)
	defer hw.close(logger)

	boot := time.Now()
	wind := pulse.NewCounter("wind", cfg.WindDebounce, boot)
	rain := pulse.NewCounter("rain", cfg.RainDebounce, boot)

	rx := gps.NewReceiver()
	syncer := timesync.NewSyncer(hw.rtc, logging.Component(logger, "timesync"))

	smp := sampler.New(sampler.Options{
		Interval: cfg.SampleInterval,
		Env:      hw.env,
		Wind:     wind,
		Rain:     rain,
		Fix:      rx,
		Clock:    syncer,
		Metrics:  metrics,
		Logger:   logging.Component(logger, "sampler"),
	})

	store := &snapshot.Store{}
	web := NewWeb(store, metrics, logging.Component(logger, "web"))
	exporters := []Exporter{web}

	if cfg.MQTTEnabled {
		pub, disconnect, err := ConnectPublisher(cfg, logging.Component(logger, "mqtt"))
		if err != nil {
			logger.Warn("mqtt disabled", "error", err)
		} else {
			defer disconnect()
			exporters = append(exporters, pub)
		}
	}

	deps := StationDeps{
		Receiver: rx,
		Syncer:   syncer,
		Expander: hw.expander,
		Machine:  operator.NewMachine(cfg.ConfirmDebounce),
		Sampler:  smp,
		Medium:   hw.medium,
		Panel:    hw.panel,
		Store:    store,
		Export:   exporters,
		Metrics:  metrics,
		Logger:   logging.Component(logger, "station"),
	}
	if hw.gps != nil {
		deps.GPS = hw.gps
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	if hw.gps != nil {
		g.Go(func() error {
			if err := hw.gps.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("gps stream stopped, continuing without gps", "error", err)
			}
			return nil
		})
	}

	for _, line := range []struct {
		pin     string
		counter *pulse.Counter
	}{{cfg.WindPin, wind}, {cfg.RainPin, rain}} {
		line := line // per-iteration copy; go directive is below 1.22
		pin, err := sensors.PulsePin(line.pin)
		if err != nil {
			logger.Warn("pulse line unavailable, it will read zero", "line", line.counter.Name(), "error", err)
			continue
		}
		g.Go(func() error {
			if err := sensors.WatchPulses(ctx, pin, line.counter, metrics); err != nil {
				logger.Warn("pulse line stopped, it will read zero", "line", line.counter.Name(), "error", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		if err := web.Serve(ctx, fmt.Sprintf(":%d", cfg.WebServerPort)); err != nil {
			logger.Warn("web server stopped, measuring continues", "error", err)
		}
		return nil
	})

	starved := make(chan struct{})
	wd := watchdog.New(cfg.WatchdogTimeout, func(timeout time.Duration) {
		metrics.Starved()
		logger.Error("foreground loop starved, stopping", "timeout", timeout)
		close(starved)
	})
	g.Go(func() error {
		return wd.Run(ctx)
	})

	station := NewStation(deps)
	g.Go(func() error {
		return station.Run(ctx, cfg.LoopInterval, wd.Kick)
	})

	logger.Info("station running", "web_port", cfg.WebServerPort, "sample_interval", cfg.SampleInterval)
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err = <-done:
		logger.Info("station stopped", "run", station.RunID())
	case <-starved:
		// the foreground loop may never return
		err = watchdog.ErrStarved
	}
	return err
}

// openHardware probes every configured device. A device that does not
// answer is logged and left out.
func openHardware(cfg *config.Config, logger *slog.Logger) *hardware {
	hw := &hardware{}
	log := logging.Component(logger, "hardware")

	if bus, err := sensors.OpenI2C(cfg.I2CBus); err != nil {
		log.Warn("i2c bus unavailable", "bus", cfg.I2CBus, "error", err)
	} else {
		hw.bus = bus
		hw.closers = append(hw.closers, bus.Close)
	}

	switch cfg.EnvSensor {
	case "mock":
		hw.env = sensors.NewMockEnv()
		log.Info("using mock environment sensor")
	case "bme280":
		if hw.bus == nil {
			break
		}
		s, err := sensors.NewEnvSensor(hw.bus, cfg.EnvI2CAddr)
		if err != nil {
			log.Warn("environment sensor unavailable", "error", err)
			break
		}
		hw.env = s
		hw.closers = append(hw.closers, s.Halt)
	}

	hw.rtc = &timesync.SystemClock{}
	if cfg.RTCDevice == "pcf8563" && hw.bus != nil {
		if r, err := sensors.NewPCF8563(hw.bus, cfg.RTCI2CAddr); err != nil {
			log.Warn("rtc unavailable, using host clock", "error", err)
		} else {
			hw.rtc = r
		}
	}

	if hw.bus != nil {
		if e, err := sensors.NewPCF8574(hw.bus, cfg.ExpanderI2CAddr); err != nil {
			log.Warn("input expander unavailable", "error", err)
		} else {
			hw.expander = e
		}
	}

	if cfg.DisplayEnabled && hw.bus != nil {
		if p, err := display.Open(hw.bus); err != nil {
			log.Warn("display unavailable", "error", err)
		} else {
			hw.panel = p
			if err := p.Show(display.Splash()); err != nil {
				log.Debug("splash failed", "error", err)
			}
		}
	}

	if cfg.GPSSerialPort != "" {
		if s, err := gps.OpenSerial(cfg.GPSSerialPort, cfg.GPSBaudRate, logging.Component(logger, "gps")); err != nil {
			log.Warn("gps unavailable", "error", err)
		} else {
			hw.gps = s
		}
	}

	switch cfg.LogBackend {
	case "dir":
		if d, err := logstore.OpenDir(cfg.LogDir); err != nil {
			log.Warn("log directory unavailable", "dir", cfg.LogDir, "error", err)
		} else {
			hw.medium = d
		}
	case "sqlite":
		if s, err := logstore.OpenSQLite(cfg.LogSQLitePath); err != nil {
			log.Warn("sqlite log unavailable", "path", cfg.LogSQLitePath, "error", err)
		} else {
			hw.medium = s
		}
	}
	if hw.medium != nil {
		hw.closers = append(hw.closers, hw.medium.Close)
	}

	return hw
}
