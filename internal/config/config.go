package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all station configuration values.
type Config struct {
	// MQTT
	MQTTEnabled         bool
	MQTTBroker          string
	MQTTClientIDStation string
	MQTTClientIDConsole string
	MQTTPublishTimeout  time.Duration

	// Topics
	TopicSnapshot string
	TopicStatus   string

	// I2C devices
	I2CBus          string // "" selects the default bus
	EnvSensor       string // "bme280", "mock" or "none"
	EnvI2CAddr      uint16
	ExpanderI2CAddr uint16
	RTCDevice       string // "pcf8563" or "system"
	RTCI2CAddr      uint16
	DisplayEnabled  bool
	DisplayI2CAddr  uint16

	// Pulse lines
	WindPin      string
	RainPin      string
	WindDebounce time.Duration
	RainDebounce time.Duration

	// GPS
	GPSSerialPort string // "" disables the receiver
	GPSBaudRate   int

	// Timing
	SampleInterval  time.Duration
	LoopInterval    time.Duration
	ConfirmDebounce time.Duration
	WatchdogTimeout time.Duration

	// Log medium
	LogBackend    string // "dir", "sqlite" or "none"
	LogDir        string
	LogSQLitePath string

	// Web Server
	WebServerPort int

	// Process logging
	LogLevel  string // debug, info, warn, error
	LogFormat string // text or json
}

// Default returns the configuration used for keys missing from the file.
func Default() *Config {
	return &Config{
		MQTTBroker:          "tcp://localhost:1883",
		MQTTClientIDStation: "bat-weather-station",
		MQTTClientIDConsole: "bat-weather-console",
		MQTTPublishTimeout:  500 * time.Millisecond,

		TopicSnapshot: "batweather/snapshot",
		TopicStatus:   "batweather/status",

		EnvSensor:       "bme280",
		EnvI2CAddr:      0x76,
		ExpanderI2CAddr: 0x20,
		RTCDevice:       "pcf8563",
		RTCI2CAddr:      0x51,
		DisplayEnabled:  true,
		DisplayI2CAddr:  displayI2CAddr,

		WindPin:      "GPIO17",
		RainPin:      "GPIO27",
		WindDebounce: 12 * time.Millisecond,
		RainDebounce: 200 * time.Millisecond,

		GPSSerialPort: "/dev/serial0",
		GPSBaudRate:   9600,

		SampleInterval:  8000 * time.Millisecond,
		LoopInterval:    20 * time.Millisecond,
		ConfirmDebounce: 500 * time.Millisecond,
		WatchdogTimeout: 10 * time.Second,

		LogBackend:    "dir",
		LogDir:        "/media/sdcard",
		LogSQLitePath: "bat_weather.db",

		WebServerPort: 8080,

		LogLevel:  "info",
		LogFormat: "text",
	}
}

// displayI2CAddr is fixed by the ssd1306 driver.
const displayI2CAddr = 0x3C

// Package-level singleton. InitGlobal sets it once, Get reads it under
// the read lock.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads a configuration file on top of Default. Files ending in
// .yaml or .yml hold a flat mapping of lower-case keys; anything else is
// KEY=VALUE lines with # comments.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		err = cfg.loadYAML(file)
	default:
		err = cfg.loadKeyValue(file)
	}
	if err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadKeyValue(file *os.File) error {
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := c.setValue(key, value); err != nil {
			return fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

func (c *Config) loadYAML(file *os.File) error {
	var raw map[string]any
	if err := yaml.NewDecoder(file).Decode(&raw); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		var value string
		switch v := raw[k].(type) {
		case nil:
			value = ""
		case map[string]any, []any:
			return fmt.Errorf("config key %q: nested values are not supported", k)
		default:
			value = fmt.Sprint(v)
		}
		if err := c.setValue(strings.ToUpper(k), value); err != nil {
			return err
		}
	}
	return nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// MQTT
	case "MQTT_ENABLED":
		c.MQTTEnabled, err = boolValue(key, value)
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_STATION":
		c.MQTTClientIDStation = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_PUBLISH_TIMEOUT_MS":
		c.MQTTPublishTimeout, err = msValue(key, value, 1, 60000)

	// Topics
	case "TOPIC_SNAPSHOT":
		c.TopicSnapshot = value
	case "TOPIC_STATUS":
		c.TopicStatus = value

	// I2C devices
	case "I2C_BUS":
		c.I2CBus = value
	case "ENV_SENSOR":
		c.EnvSensor, err = oneOf(key, value, "bme280", "mock", "none")
	case "ENV_I2C_ADDR":
		c.EnvI2CAddr, err = addrValue(key, value)
	case "EXPANDER_I2C_ADDR":
		c.ExpanderI2CAddr, err = addrValue(key, value)
	case "RTC_DEVICE":
		c.RTCDevice, err = oneOf(key, value, "pcf8563", "system")
	case "RTC_I2C_ADDR":
		c.RTCI2CAddr, err = addrValue(key, value)
	case "DISPLAY_ENABLED":
		c.DisplayEnabled, err = boolValue(key, value)
	case "DISPLAY_I2C_ADDR":
		c.DisplayI2CAddr, err = addrValue(key, value)

	// Pulse lines
	case "WIND_PIN":
		c.WindPin = value
	case "RAIN_PIN":
		c.RainPin = value
	case "WIND_DEBOUNCE_MS":
		c.WindDebounce, err = msValue(key, value, 0, 1000)
	case "RAIN_DEBOUNCE_MS":
		c.RainDebounce, err = msValue(key, value, 0, 5000)

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		baud, perr := strconv.Atoi(value)
		if perr != nil || baud <= 0 {
			return fmt.Errorf("invalid GPS_BAUD_RATE %q", value)
		}
		c.GPSBaudRate = baud

	// Timing
	case "SAMPLE_INTERVAL_MS":
		c.SampleInterval, err = msValue(key, value, 100, 3600000)
	case "LOOP_INTERVAL_MS":
		c.LoopInterval, err = msValue(key, value, 1, 1000)
	case "CONFIRM_DEBOUNCE_MS":
		c.ConfirmDebounce, err = msValue(key, value, 0, 10000)
	case "WATCHDOG_TIMEOUT_MS":
		c.WatchdogTimeout, err = msValue(key, value, 100, 600000)

	// Log medium
	case "LOG_BACKEND":
		c.LogBackend, err = oneOf(key, value, "dir", "sqlite", "none")
	case "LOG_DIR":
		c.LogDir = value
	case "LOG_SQLITE_PATH":
		c.LogSQLitePath = value

	// Web Server
	case "WEB_SERVER_PORT":
		port, perr := strconv.Atoi(value)
		if perr != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, perr)
		}
		if port < 0 || port > 65535 {
			return fmt.Errorf("WEB_SERVER_PORT out of range: %d", port)
		}
		c.WebServerPort = port

	// Process logging
	case "LOG_LEVEL":
		c.LogLevel, err = oneOf(key, strings.ToLower(value), "debug", "info", "warn", "error")
	case "LOG_FORMAT":
		c.LogFormat, err = oneOf(key, strings.ToLower(value), "text", "json")

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

func boolValue(key, value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return b, nil
}

func addrValue(key, value string) (uint16, error) {
	addr, err := strconv.ParseUint(value, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if addr > 0x7F {
		return 0, fmt.Errorf("%s out of range (0x00-0x7F): 0x%X", key, addr)
	}
	return uint16(addr), nil
}

func msValue(key, value string, lo, hi int) (time.Duration, error) {
	ms, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if ms < lo || ms > hi {
		return 0, fmt.Errorf("%s out of range (%d-%d): %d", key, lo, hi, ms)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func oneOf(key, value string, allowed ...string) (string, error) {
	for _, a := range allowed {
		if value == a {
			return value, nil
		}
	}
	return "", fmt.Errorf("invalid %s %q (want one of %s)", key, value, strings.Join(allowed, ", "))
}

// validate checks cross-field requirements.
func (c *Config) validate() error {
	if c.MQTTEnabled && c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required when MQTT_ENABLED is set")
	}
	if c.MQTTEnabled && (c.TopicSnapshot == "" || c.TopicStatus == "") {
		return fmt.Errorf("TOPIC_SNAPSHOT and TOPIC_STATUS are required when MQTT_ENABLED is set")
	}
	if c.LogBackend == "dir" && c.LogDir == "" {
		return fmt.Errorf("LOG_DIR is required for LOG_BACKEND=dir")
	}
	if c.LogBackend == "sqlite" && c.LogSQLitePath == "" {
		return fmt.Errorf("LOG_SQLITE_PATH is required for LOG_BACKEND=sqlite")
	}
	if c.GPSSerialPort != "" && c.GPSBaudRate == 0 {
		return fmt.Errorf("GPS_BAUD_RATE is required")
	}
	if c.DisplayI2CAddr != displayI2CAddr {
		return fmt.Errorf("DISPLAY_I2C_ADDR must be 0x%02X, the ssd1306 driver does not support other addresses", displayI2CAddr)
	}
	if c.WatchdogTimeout <= c.LoopInterval {
		return fmt.Errorf("WATCHDOG_TIMEOUT_MS must exceed LOOP_INTERVAL_MS")
	}
	return nil
}

// InitGlobal initializes the global configuration from file. Only the
// first call has any effect.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
