// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package calibration runs sensor offset calibration and keeps the persisted
// offsets for each sensor.
package calibration

import (
	"errors"
	"fmt"
	"strings"

	"github.com/relabs-tech/motion_node/internal/imu"
)

var (
	// ErrIO reports that calibration offsets could not be persisted.
	ErrIO = errors.New("calibration storage I/O error")
	// ErrDmpInitFailed reports that the DMP could not be (re)started.
	ErrDmpInitFailed = errors.New("DMP initialization failed")
)

// Target selects which sensor a calibration run refines.
type Target int

const (
	Accel Target = iota
	Gyro
)

func (t Target) String() string {
	switch t {
	case Accel:
		return "accel"
	case Gyro:
		return "gyro"
	default:
		return fmt.Sprintf("target(%d)", int(t))
	}
}

// ParseTarget accepts "accel"/"accelerometer" and "gyro"/"gyroscope".
func ParseTarget(s string) (Target, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "accel", "accelerometer":
		return Accel, nil
	case "gyro", "gyroscope":
		return Gyro, nil
	default:
		return 0, fmt.Errorf("unknown calibration target %q", s)
	}
}

// Strategy is chosen per build/deployment.
type Strategy int

const (
	// Automatic leaves offset tracking to the DMP itself.
	Automatic Strategy = iota
	// Manual runs the PID offset search on request and persists the result.
	Manual
)

func (s Strategy) String() string {
	switch s {
	case Automatic:
		return "automatic"
	case Manual:
		return "manual"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy parses the CALIBRATION_STRATEGY config value.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "automatic", "auto", "":
		return Automatic, nil
	case "manual":
		return Manual, nil
	default:
		return 0, fmt.Errorf("unknown calibration strategy %q", s)
	}
}

// Kind tags the Record variant.
type Kind string

const (
	KindNone    Kind = "none"
	KindMPU6050 Kind = "mpu6050"
)

// Offsets are the hardware offset register values of an MPU-6050.
type Offsets struct {
	Accel imu.Axes `yaml:"accel" json:"accel"`
	Gyro  imu.Axes `yaml:"gyro" json:"gyro"`
}

// Record is the persisted calibration of one sensor.
type Record struct {
	Kind    Kind     `yaml:"kind" json:"kind"`
	MPU6050 *Offsets `yaml:"mpu6050,omitempty" json:"mpu6050,omitempty"`
}

// Offsets returns the MPU-6050 offsets, or zero offsets when the record is
// empty or for another sensor type.
func (r Record) Offsets() (Offsets, bool) {
	if r.Kind != KindMPU6050 || r.MPU6050 == nil {
		return Offsets{}, false
	}
	return *r.MPU6050, true
}

// withTarget returns a copy of r where only target's offsets are replaced.
func (r Record) withTarget(t Target, v imu.Axes) Record {
	off, _ := r.Offsets()
	switch t {
	case Accel:
		off.Accel = v
	case Gyro:
		off.Gyro = v
	}
	return Record{Kind: KindMPU6050, MPU6050: &off}
}

// OutcomeKind tells how a Start request ended.
type OutcomeKind int

const (
	// Acknowledged: nothing was measured (automatic strategy).
	Acknowledged OutcomeKind = iota
	// Completed: the offset search ran and Offsets holds the result.
	Completed
)

func (k OutcomeKind) String() string {
	if k == Completed {
		return "completed"
	}
	return "acknowledged"
}

// Outcome is the result of a calibration request.
type Outcome struct {
	Kind    OutcomeKind
	Target  Target
	Offsets imu.Axes
}
