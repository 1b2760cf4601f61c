// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"log"

	"github.com/relabs-tech/bat_weather/internal/app"
	"github.com/relabs-tech/bat_weather/internal/config"
)

func main() {
	log.Println("starting bat-weather station")

	// Load configuration
	if err := config.InitGlobal("bat_weather_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunStation(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
