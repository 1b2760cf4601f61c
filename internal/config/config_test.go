package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_KeyValue(t *testing.T) {
	path := writeFile(t, "bat_weather_config.txt", `
# station
MQTT_ENABLED=true
MQTT_BROKER=tcp://10.0.0.2:1883
ENV_I2C_ADDR=0x77
WIND_DEBOUNCE_MS=15
SAMPLE_INTERVAL_MS=10000
LOG_BACKEND=sqlite
LOG_SQLITE_PATH=/var/lib/bat/station.db
LOG_LEVEL=DEBUG
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !cfg.MQTTEnabled || cfg.MQTTBroker != "tcp://10.0.0.2:1883" {
		t.Errorf("mqtt = %v %q", cfg.MQTTEnabled, cfg.MQTTBroker)
	}
	if cfg.EnvI2CAddr != 0x77 {
		t.Errorf("env addr = 0x%X", cfg.EnvI2CAddr)
	}
	if cfg.WindDebounce != 15*time.Millisecond || cfg.SampleInterval != 10*time.Second {
		t.Errorf("durations = %v %v", cfg.WindDebounce, cfg.SampleInterval)
	}
	if cfg.LogBackend != "sqlite" || cfg.LogLevel != "debug" {
		t.Errorf("backend/level = %q %q", cfg.LogBackend, cfg.LogLevel)
	}
	// untouched keys keep their defaults
	if cfg.RainDebounce != 200*time.Millisecond || cfg.ConfirmDebounce != 500*time.Millisecond {
		t.Errorf("defaults lost: rain %v confirm %v", cfg.RainDebounce, cfg.ConfirmDebounce)
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "station.yaml", `
env_sensor: mock
expander_i2c_addr: 0x21
display_enabled: false
gps_serial_port: /dev/ttyUSB0
gps_baud_rate: 38400
web_server_port: 9090
log_format: json
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.EnvSensor != "mock" || cfg.ExpanderI2CAddr != 0x21 || cfg.DisplayEnabled {
		t.Errorf("devices = %q 0x%X %v", cfg.EnvSensor, cfg.ExpanderI2CAddr, cfg.DisplayEnabled)
	}
	if cfg.GPSSerialPort != "/dev/ttyUSB0" || cfg.GPSBaudRate != 38400 {
		t.Errorf("gps = %q %d", cfg.GPSSerialPort, cfg.GPSBaudRate)
	}
	if cfg.WebServerPort != 9090 || cfg.LogFormat != "json" {
		t.Errorf("web/log = %d %q", cfg.WebServerPort, cfg.LogFormat)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{"unknown key", "c.txt", "FOO=1", "unknown config key"},
		{"missing equals", "c.txt", "MQTT_BROKER", "invalid config line 1"},
		{"bad address", "c.txt", "ENV_I2C_ADDR=0x80", "out of range"},
		{"unsupported display address", "c.txt", "DISPLAY_I2C_ADDR=0x3D", "DISPLAY_I2C_ADDR must be 0x3C"},
		{"bad backend", "c.txt", "LOG_BACKEND=s3", "invalid LOG_BACKEND"},
		{"bad duration", "c.txt", "SAMPLE_INTERVAL_MS=fast", "invalid SAMPLE_INTERVAL_MS"},
		{"watchdog shorter than loop", "c.txt", "LOOP_INTERVAL_MS=500\nWATCHDOG_TIMEOUT_MS=400", "must exceed"},
		{"mqtt without broker", "c.txt", "MQTT_ENABLED=true\nMQTT_BROKER=", "MQTT_BROKER is required"},
		{"nested yaml", "c.yml", "mqtt:\n  broker: x\n", "nested values"},
		{"unknown yaml key", "c.yaml", "colour: blue\n", "unknown config key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestInitGlobal(t *testing.T) {
	path := writeFile(t, "c.txt", "WEB_SERVER_PORT=8181\n")
	if err := InitGlobal(path); err != nil {
		t.Fatal(err)
	}
	if got := Get(); got == nil || got.WebServerPort != 8181 {
		t.Errorf("Get() = %+v", got)
	}
	// later calls keep the first configuration
	InitGlobal(writeFile(t, "d.txt", "WEB_SERVER_PORT=9999\n"))
	if Get().WebServerPort != 8181 {
		t.Error("InitGlobal replaced the configuration")
	}
}
