// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/relabs-tech/motion_node/internal/calibration"
)

func writeConfig(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "motion.env")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.IMUI2CAddr != 0x68 {
		t.Errorf("IMUI2CAddr = 0x%02x, want 0x68", cfg.IMUI2CAddr)
	}
	if cfg.CalibrationStrategy != calibration.Automatic {
		t.Errorf("CalibrationStrategy = %v, want automatic", cfg.CalibrationStrategy)
	}
	if !cfg.OptimizeUpdates || cfg.QuatEpsilon != 0.0001 {
		t.Errorf("orientation defaults = %t/%v", cfg.OptimizeUpdates, cfg.QuatEpsilon)
	}
	if cfg.StillnessWindow != 10000 || cfg.TickInterval != 10 {
		t.Errorf("timing defaults = %d/%d", cfg.StillnessWindow, cfg.TickInterval)
	}
	if cfg.SleepEnabled {
		t.Error("sleep must be opt-in")
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t,
		"# node on the left wrist",
		"SENSOR_ID=3",
		"IMU_I2C_ADDR=0x69",
		"IMU_ROTATION_DEG=90",
		"CALIBRATION_STRATEGY=manual",
		"CALIBRATION_FILE_DIR=/var/lib/motion",
		"TICK_INTERVAL=20",
		"STILLNESS_WINDOW=5000",
		"SLEEP_ENABLED=true",
		"LOG_LEVEL=DEBUG",
	)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SensorID != 3 || cfg.IMUI2CAddr != 0x69 || cfg.IMURotationDeg != 90 {
		t.Errorf("hardware = %d/0x%02x/%v", cfg.SensorID, cfg.IMUI2CAddr, cfg.IMURotationDeg)
	}
	if cfg.CalibrationStrategy != calibration.Manual || cfg.CalibrationFileDir != "/var/lib/motion" {
		t.Errorf("calibration = %v/%q", cfg.CalibrationStrategy, cfg.CalibrationFileDir)
	}
	if cfg.Tick().Milliseconds() != 20 {
		t.Errorf("Tick() = %v", cfg.Tick())
	}
	if !cfg.SleepEnabled || cfg.LogLevel != "debug" {
		t.Errorf("sleep/log = %t/%q", cfg.SleepEnabled, cfg.LogLevel)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "SENSOR_ID=3")
	t.Setenv("MOTION_SENSOR_ID", "7")
	t.Setenv("MOTION_WEB_SERVER_PORT", "0")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SensorID != 7 {
		t.Errorf("SensorID = %d, want 7 from the environment", cfg.SensorID)
	}
	if cfg.WebServerPort != 0 {
		t.Errorf("WebServerPort = %d, want 0", cfg.WebServerPort)
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"unknown key", "IMU_INT_PIN=GPIO17"},
		{"address", "IMU_I2C_ADDR=0x70"},
		{"sensor id", "SENSOR_ID=300"},
		{"epsilon", "QUAT_EPSILON=0"},
		{"strategy", "CALIBRATION_STRATEGY=sometimes"},
		{"tick", "TICK_INTERVAL=0"},
		{"window shorter than a tick", "STILLNESS_WINDOW=5"},
		{"negative threshold", "STILLNESS_NOISE_THRESHOLD=-1"},
		{"bool", "SLEEP_ENABLED=maybe"},
		{"port", "WEB_SERVER_PORT=70000"},
	}
	for _, tt := range tests {
		if _, err := Load(writeConfig(t, tt.line)); err == nil {
			t.Errorf("%s: Load accepted %q", tt.name, tt.line)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.env")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
