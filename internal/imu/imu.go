// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import "fmt"

// StatusCode is the result of DMP initialization. Zero means success.
type StatusCode uint8

const (
	StatusOK StatusCode = 0
	// StatusMemoryLoadFailed: the firmware image did not verify after upload.
	StatusMemoryLoadFailed StatusCode = 1
	// StatusConfigUpdateFailed: the DMP configuration writes were rejected.
	StatusConfigUpdateFailed StatusCode = 2
)

func (s StatusCode) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusMemoryLoadFailed:
		return "memory load failed"
	case StatusConfigUpdateFailed:
		return "config update failed"
	}
	return fmt.Sprintf("status %d", uint8(s))
}

// Axes is a raw per-axis triple in device counts (rates, accelerations or offsets).
type Axes struct {
	X int16 `json:"x" yaml:"x"`
	Y int16 `json:"y" yaml:"y"`
	Z int16 `json:"z" yaml:"z"`
}

// RawQuaternion is the fused orientation as decoded from one DMP FIFO packet.
type RawQuaternion struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Sample represents a single raw accel+gyro reading, used for inspection streams.
type Sample struct {
	Sensor int   `json:"sensor"`
	Ax     int16 `json:"ax"` // accel
	Ay     int16 `json:"ay"`
	Az     int16 `json:"az"`
	Gx     int16 `json:"gx"` // gyro
	Gy     int16 `json:"gy"`
	Gz     int16 `json:"gz"`
}
