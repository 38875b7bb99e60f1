// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/relabs-tech/motion_node/internal/calibration"
)

// EnvPrefix is prepended to config keys when read from the environment,
// e.g. MOTION_SENSOR_ID.
const EnvPrefix = "MOTION"

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker          string
	MQTTClientID        string
	MQTTClientIDConsole string

	// Topics
	TopicOrientation        string
	TopicCalibration        string
	TopicCalibrationRequest string
	TopicInspection         string

	// IMU Hardware
	SensorID        int
	IMUI2CBus       string // "" selects the first bus
	IMUI2CAddr      uint16
	DMPFirmwarePath string

	// Orientation
	IMURotationDeg  float64 // mounting yaw of the sensor
	OptimizeUpdates bool
	QuatEpsilon     float64
	// EnableInspection streams raw accel/gyro readings alongside orientation.
	EnableInspection bool

	// Calibration
	CalibrationStrategy calibration.Strategy
	CalibrationFileDir  string
	CalibrationSettle   int // milliseconds

	// Timing
	TickInterval int // milliseconds

	// Stillness / power
	StillnessWindow         int     // milliseconds
	StillnessJitter         int     // milliseconds
	StillnessNoiseThreshold float64 // raw gyro counts
	SleepEnabled            bool
	SleepDuration           int // seconds, 0 = until woken

	// Status LED
	StatusLEDPin string // "" disables the LED

	// Web Server
	WebServerPort int

	LogLevel string
}

// defaults are applied before the file is read; every known key has one so
// the environment can override keys the file does not mention.
var defaults = map[string]string{
	"MQTT_BROKER":               "tcp://localhost:1883",
	"MQTT_CLIENT_ID":            "motion-node",
	"MQTT_CLIENT_ID_CONSOLE":    "motion-console",
	"TOPIC_ORIENTATION":         "motion/orientation",
	"TOPIC_CALIBRATION":         "motion/calibration",
	"TOPIC_CALIBRATION_REQUEST": "motion/calibration/request",
	"TOPIC_INSPECTION":          "",
	"SENSOR_ID":                 "0",
	"IMU_I2C_BUS":               "",
	"IMU_I2C_ADDR":              "0x68",
	"DMP_FIRMWARE_PATH":         "firmware/mpu6050_dmp.bin",
	"IMU_ROTATION_DEG":          "0",
	"OPTIMIZE_UPDATES":          "true",
	"QUAT_EPSILON":              "0.0001",
	"ENABLE_INSPECTION":         "false",
	"CALIBRATION_STRATEGY":      "automatic",
	"CALIBRATION_FILE_DIR":      "calibration",
	"CALIBRATION_SETTLE":        "2000",
	"TICK_INTERVAL":             "10",
	"STILLNESS_WINDOW":          "10000",
	"STILLNESS_JITTER":          "10",
	"STILLNESS_NOISE_THRESHOLD": "8",
	"SLEEP_ENABLED":             "false",
	"SLEEP_DURATION":            "0",
	"STATUS_LED_PIN":            "",
	"WEB_SERVER_PORT":           "8080",
	"LOG_LEVEL":                 "info",
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads a KEY=VALUE configuration file and returns a Config struct.
// MOTION_<KEY> environment variables take precedence over the file. An
// empty path loads the defaults and the environment only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("env")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	keys := v.AllKeys()
	sort.Strings(keys)

	cfg := &Config{}
	for _, key := range keys {
		// viper lowercases keys; the file and the switch use upper case.
		name := strings.ToUpper(key)
		if err := cfg.setValue(name, strings.TrimSpace(v.GetString(key))); err != nil {
			return nil, fmt.Errorf("config %s: %w", name, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseMillis(key, value string, min int) (int, error) {
	ms, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if ms < min {
		return 0, fmt.Errorf("%s must be at least %d, got %d", key, min, ms)
	}
	return ms, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value

	// Topics
	case "TOPIC_ORIENTATION":
		c.TopicOrientation = value
	case "TOPIC_CALIBRATION":
		c.TopicCalibration = value
	case "TOPIC_CALIBRATION_REQUEST":
		c.TopicCalibrationRequest = value
	case "TOPIC_INSPECTION":
		c.TopicInspection = value

	// IMU Hardware
	case "SENSOR_ID":
		id, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SENSOR_ID %q: %w", value, err)
		}
		if id < 0 || id > 255 {
			return fmt.Errorf("SENSOR_ID must be 0-255, got %d", id)
		}
		c.SensorID = id
	case "IMU_I2C_BUS":
		c.IMUI2CBus = value
	case "IMU_I2C_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid IMU_I2C_ADDR %q: %w", value, err)
		}
		if addr != 0x68 && addr != 0x69 {
			return fmt.Errorf("IMU_I2C_ADDR must be 0x68 or 0x69 (AD0 low/high), got 0x%02x", addr)
		}
		c.IMUI2CAddr = uint16(addr)
	case "DMP_FIRMWARE_PATH":
		c.DMPFirmwarePath = value

	// Orientation
	case "IMU_ROTATION_DEG":
		deg, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid IMU_ROTATION_DEG %q: %w", value, err)
		}
		if deg < -360 || deg > 360 {
			return fmt.Errorf("IMU_ROTATION_DEG must be within ±360, got %v", deg)
		}
		c.IMURotationDeg = deg
	case "OPTIMIZE_UPDATES":
		if c.OptimizeUpdates, err = strconv.ParseBool(value); err != nil {
			return fmt.Errorf("invalid OPTIMIZE_UPDATES %q: %w", value, err)
		}
	case "QUAT_EPSILON":
		eps, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid QUAT_EPSILON %q: %w", value, err)
		}
		if eps <= 0 || eps >= 1 {
			return fmt.Errorf("QUAT_EPSILON must be in (0, 1), got %v", eps)
		}
		c.QuatEpsilon = eps
	case "ENABLE_INSPECTION":
		if c.EnableInspection, err = strconv.ParseBool(value); err != nil {
			return fmt.Errorf("invalid ENABLE_INSPECTION %q: %w", value, err)
		}

	// Calibration
	case "CALIBRATION_STRATEGY":
		if c.CalibrationStrategy, err = calibration.ParseStrategy(value); err != nil {
			return err
		}
	case "CALIBRATION_FILE_DIR":
		c.CalibrationFileDir = value
	case "CALIBRATION_SETTLE":
		if c.CalibrationSettle, err = parseMillis(key, value, 0); err != nil {
			return err
		}

	// Timing
	case "TICK_INTERVAL":
		if c.TickInterval, err = parseMillis(key, value, 1); err != nil {
			return err
		}

	// Stillness / power
	case "STILLNESS_WINDOW":
		if c.StillnessWindow, err = parseMillis(key, value, 1); err != nil {
			return err
		}
	case "STILLNESS_JITTER":
		if c.StillnessJitter, err = parseMillis(key, value, 0); err != nil {
			return err
		}
	case "STILLNESS_NOISE_THRESHOLD":
		th, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid STILLNESS_NOISE_THRESHOLD %q: %w", value, err)
		}
		if th < 0 {
			return fmt.Errorf("STILLNESS_NOISE_THRESHOLD must not be negative, got %v", th)
		}
		c.StillnessNoiseThreshold = th
	case "SLEEP_ENABLED":
		if c.SleepEnabled, err = strconv.ParseBool(value); err != nil {
			return fmt.Errorf("invalid SLEEP_ENABLED %q: %w", value, err)
		}
	case "SLEEP_DURATION":
		if c.SleepDuration, err = parseMillis(key, value, 0); err != nil {
			return err
		}

	// Status LED
	case "STATUS_LED_PIN":
		c.StatusLEDPin = value

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		if port < 0 || port > 65535 {
			return fmt.Errorf("WEB_SERVER_PORT must be 0-65535 (0 disables), got %d", port)
		}
		c.WebServerPort = port

	case "LOG_LEVEL":
		c.LogLevel = strings.ToLower(value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set and consistent.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TopicOrientation == "" {
		return fmt.Errorf("TOPIC_ORIENTATION is required")
	}
	if c.CalibrationStrategy == calibration.Manual && c.CalibrationFileDir == "" {
		return fmt.Errorf("CALIBRATION_FILE_DIR is required with the manual strategy")
	}
	if c.StillnessWindow < c.TickInterval {
		return fmt.Errorf("STILLNESS_WINDOW (%dms) must be at least one TICK_INTERVAL (%dms)", c.StillnessWindow, c.TickInterval)
	}
	return nil
}

// Tick returns the tick interval as a duration.
func (c *Config) Tick() time.Duration {
	return time.Duration(c.TickInterval) * time.Millisecond
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
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
