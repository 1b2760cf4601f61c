package main

import (
	"log"

	"github.com/relabs-tech/bat_weather/internal/app"
	"github.com/relabs-tech/bat_weather/internal/config"
)

func main() {
	log.Println("starting bat-weather console (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal("bat_weather_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunConsoleMQTT(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
