// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config holds all application configuration values.
type Config struct {
	// Transport: "serial", "i2c" or "sim"
	Transport string

	// Serial
	SerialPort         string // empty: enumerate USB ports by Pololu VID/PID
	SerialBaudRate     int
	SerialDeviceNumber int // -1 selects the compact protocol

	// I2C
	I2CBus       string
	I2CAddresses []uint16
	TicVariant   string

	// Timing
	PollInterval           int // milliseconds
	DeviceListRefreshTicks int

	// Calibration
	CalibrationSampleCount int

	LogLevel string

	// Web Server, 0 disables
	WebServerPort int
	// Settings files loaded and saved through the web API live here
	SettingsDir string

	// MQTT, empty broker disables
	MQTTBroker            string
	MQTTClientID          string
	MQTTClientIDConsole   string
	TopicStatus           string
	TopicVariables        string
	TopicCommand          string
	MQTTPublishEveryTicks int

	// Display
	DisplayEnabled     bool
	DisplayI2CBus      string
	DisplayUpdateTicks int
}

// Default returns a configuration that works without a file.
func Default() *Config {
	return &Config{
		Transport:              "serial",
		SerialBaudRate:         115200,
		SerialDeviceNumber:     14,
		I2CAddresses:           []uint16{0x0E},
		TicVariant:             "T825",
		PollInterval:           50,
		DeviceListRefreshTicks: 20,
		CalibrationSampleCount: 20,
		LogLevel:               "info",
		WebServerPort:          8080,
		SettingsDir:            ".",
		MQTTClientID:           "tic-controller",
		MQTTClientIDConsole:    "tic-console",
		TopicStatus:            "tic/status",
		TopicVariables:         "tic/variables",
		TopicCommand:           "tic/command",
		MQTTPublishEveryTicks:  4,
		DisplayUpdateTicks:     10,
	}
}

// PollPeriod is PollInterval as a duration.
func (c *Config) PollPeriod() time.Duration {
	return time.Duration(c.PollInterval) * time.Millisecond
}

// Package-level state for the process-wide configuration. InitGlobal sets it
// once; Get reads it under the read lock.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct. Keys missing
// from the file keep their defaults.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// intIn parses value as an integer in [lo, hi].
func intIn(key, value string, lo, hi int) (int, error) {
	val, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if val < lo || val > hi {
		return 0, fmt.Errorf("%s must be %d-%d, got %d", key, lo, hi, val)
	}
	return val, nil
}

func i2cAddr(key, value string) (uint16, error) {
	addr, err := strconv.ParseUint(value, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if addr > 0x7F {
		return 0, fmt.Errorf("%s must be a 7-bit address, got %#x", key, addr)
	}
	return uint16(addr), nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) (err error) {
	switch key {
	case "TRANSPORT":
		switch value {
		case "serial", "i2c", "sim":
			c.Transport = value
		default:
			return fmt.Errorf("TRANSPORT must be serial, i2c or sim, got %q", value)
		}

	// Serial
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		c.SerialBaudRate, err = intIn(key, value, 200, 115385)
	case "SERIAL_DEVICE_NUMBER":
		c.SerialDeviceNumber, err = intIn(key, value, -1, 127)

	// I2C
	case "I2C_BUS":
		c.I2CBus = value
	case "I2C_ADDRESSES":
		var addrs []uint16
		for _, field := range strings.Split(value, ",") {
			addr, err := i2cAddr(key, strings.TrimSpace(field))
			if err != nil {
				return err
			}
			addrs = append(addrs, addr)
		}
		c.I2CAddresses = addrs
	case "TIC_VARIANT":
		c.TicVariant = value

	// Timing
	case "POLL_INTERVAL":
		c.PollInterval, err = intIn(key, value, 10, 10000)
	case "DEVICE_LIST_REFRESH_TICKS":
		c.DeviceListRefreshTicks, err = intIn(key, value, 1, 1000)

	case "CALIBRATION_SAMPLE_COUNT":
		c.CalibrationSampleCount, err = intIn(key, value, 1, 1000)

	case "LOG_LEVEL":
		c.LogLevel = value

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = intIn(key, value, 0, 65535)
	case "SETTINGS_DIR":
		c.SettingsDir = value

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "TOPIC_STATUS":
		c.TopicStatus = value
	case "TOPIC_VARIABLES":
		c.TopicVariables = value
	case "TOPIC_COMMAND":
		c.TopicCommand = value
	case "MQTT_PUBLISH_EVERY_TICKS":
		c.MQTTPublishEveryTicks, err = intIn(key, value, 1, 1000)

	// Display
	case "DISPLAY_ENABLED":
		enabled, perr := strconv.ParseBool(value)
		if perr != nil {
			return fmt.Errorf("invalid DISPLAY_ENABLED %q: %w", value, perr)
		}
		c.DisplayEnabled = enabled
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_UPDATE_TICKS":
		c.DisplayUpdateTicks, err = intIn(key, value, 1, 1000)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// validate checks the settings that depend on each other.
func (c *Config) validate() error {
	if c.Transport == "i2c" && len(c.I2CAddresses) == 0 {
		return fmt.Errorf("I2C_ADDRESSES is required for the i2c transport")
	}
	if c.MQTTBroker != "" && c.MQTTClientID == "" {
		return fmt.Errorf("MQTT_CLIENT_ID is required when MQTT_BROKER is set")
	}
	if c.MQTTBroker != "" && c.TopicStatus == "" {
		return fmt.Errorf("TOPIC_STATUS is required when MQTT_BROKER is set")
	}
	return nil
}

// InitGlobal initializes the global configuration from file. Only the first
// call has any effect. An empty path selects the defaults.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		if configPath == "" {
			globalConfig = Default()
			return
		}
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
