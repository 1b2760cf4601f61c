package app

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/bat_weather/internal/atmos"
	"github.com/relabs-tech/bat_weather/internal/config"
	"github.com/relabs-tech/bat_weather/internal/snapshot"
)

// RunConsoleMQTT subscribes to the station topics and prints every
// snapshot and status line until interrupted.
func RunConsoleMQTT() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	snapToken := client.Subscribe(cfg.TopicSnapshot, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var d snapshot.Data
		if err := json.Unmarshal(msg.Payload(), &d); err != nil {
			log.Printf("console: snapshot unmarshal error: %v", err)
			return
		}
		printData(os.Stdout, d, time.Now())
	})
	snapToken.Wait()
	if snapToken.Error() != nil {
		return snapToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicSnapshot)

	statusToken := client.Subscribe(cfg.TopicStatus, 0, func(_ mqtt.Client, msg mqtt.Message) {
		fmt.Printf("[STAT] %s\n", msg.Payload())
	})
	statusToken.Wait()
	if statusToken.Error() != nil {
		return statusToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicStatus)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}

func printData(w io.Writer, d snapshot.Data, now time.Time) {
	fmt.Fprint(w, formatData(d, now))
}

// formatData renders one data object as console lines.
func formatData(d snapshot.Data, now time.Time) string {
	var b strings.Builder

	age := d.Time
	if t, err := time.Parse(time.RFC3339, d.Time); err == nil {
		age = humanize.RelTime(t, now, "ago", "from now")
	}
	fmt.Fprintf(&b, "[SNAP] #%s run=%s taken %s  %s\n", humanize.Comma(int64(d.Seq)), shortRun(d.RunID), age, d.Status)

	fmt.Fprintf(&b, "[ENV ] T=%sC H=%s%% DP=%sC P=%shPa\n",
		optional(d.Temp, 1), optional(d.Hum, 0), optional(d.Dew, 1), optional(d.Pres, 1))
	fmt.Fprintf(&b, "[WIND] avg=%.2fm/s gust=%.2fm/s dir=%s rain=%.2fmm\n", d.WindAvg, d.WindGst, d.WindDir, d.Rain)

	bands := []*float64{d.A20, d.A40, d.A55, d.A80, d.A110}
	parts := make([]string, len(bands))
	for i, v := range bands {
		parts[i] = humanHz(atmos.Frequencies[i]) + "=" + optional(v, 2)
	}
	fmt.Fprintf(&b, "[ATT ] dB/m %s\n", strings.Join(parts, " "))

	if d.GPSValid {
		fmt.Fprintf(&b, "[GPS ] lat=%.6f lon=%.6f alt=%.0fm sats=%d\n", d.Lat, d.Lon, d.Alt, d.Satellites)
	} else {
		fmt.Fprintln(&b, "[GPS ] no fix")
	}
	return b.String()
}

func optional(v *float64, prec int) string {
	if v == nil {
		return "--"
	}
	return fmt.Sprintf("%.*f", prec, *v)
}

func humanHz(hz float64) string {
	v, suffix := humanize.ComputeSI(hz)
	return fmt.Sprintf("%g%sHz", v, suffix)
}

func shortRun(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "-"
	}
	return id
}
