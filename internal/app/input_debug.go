// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/bat_weather/internal/config"
	"github.com/relabs-tech/bat_weather/internal/operator"
	"github.com/relabs-tech/bat_weather/internal/sensors"
)

// RunInputDebug polls the input expander and prints every register change
// together with the decoded edges and the operator menu state they drive.
// The menu is simulated only; nothing is measured or logged.
func RunInputDebug() error {
	cfg := config.Get()

	bus, err := sensors.OpenI2C(cfg.I2CBus)
	if err != nil {
		return err
	}
	defer bus.Close()

	exp, err := sensors.NewPCF8574(bus, cfg.ExpanderI2CAddr)
	if err != nil {
		return err
	}
	log.Printf("input debug: expander at 0x%02X, polling every %s", cfg.ExpanderI2CAddr, cfg.LoopInterval)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return watchInputs(ctx, exp, operator.NewMachine(cfg.ConfirmDebounce), cfg.LoopInterval, func(line string) {
		fmt.Println(line)
	})
}

// watchInputs polls exp until ctx is done and reports each register change.
func watchInputs(ctx context.Context, exp Expander, m *operator.Machine, interval time.Duration, report func(string)) error {
	edges := operator.NewEdgeDetector()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last byte
	first := true
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			reg, err := exp.ReadRegister()
			if err != nil {
				report(fmt.Sprintf("read error: %v", err))
				continue
			}
			e := edges.Update(reg)
			var cmds []operator.Command
			if e.Any() && m.NeedsInput() {
				cmds = m.Step(e, now)
			}
			if first || reg != last {
				report(formatInput(reg, e, m, cmds))
			}
			last, first = reg, false
		}
	}
}

// formatInput renders one register read.
func formatInput(reg byte, e operator.Edges, m *operator.Machine, cmds []operator.Command) string {
	cfg := m.Config()
	line := fmt.Sprintf("reg=0x%02X bits=%08b step=%t cw=%t confirm=%t phase=%s cloud=%d mode=%s",
		reg, reg, e.Step, e.Clockwise, e.Confirm, m.Phase(), cfg.CloudCover, cfg.ModeLabel())
	if len(cmds) > 0 {
		line += fmt.Sprintf(" commands=%v", cmds)
	}
	return line
}
