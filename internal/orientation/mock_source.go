// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"time"

	"github.com/relabs-tech/motion_node/internal/imu"
)

// MockSource generates smoothly changing DMP quaternions for --mock runs.
type MockSource struct {
	start time.Time
	now   func() time.Time
}

// NewMockSource creates a mock source that starts its motion now.
func NewMockSource(now func() time.Time) *MockSource {
	if now == nil {
		now = time.Now
	}
	return &MockSource{start: now(), now: now}
}

// Next returns the raw quaternion for the current instant. The output is in
// the sensor frame, as the DMP would report it.
func (m *MockSource) Next() imu.RawQuaternion {
	elapsed := m.now().Sub(m.start).Seconds()
	return FromEuler(
		20*math.Sin(elapsed),
		15*math.Cos(elapsed*0.7),
		math.Mod(elapsed*30, 360),
	)
}

// gyroCountsPerDeg is the DMP's ±2000°/s gyro sensitivity.
const gyroCountsPerDeg = 16.4

// Rates returns raw gyro counts matching the motion of Next, so the
// stillness guard sees a moving device.
func (m *MockSource) Rates() imu.Axes {
	elapsed := m.now().Sub(m.start).Seconds()
	return imu.Axes{
		X: int16(20 * math.Cos(elapsed) * gyroCountsPerDeg),
		Y: int16(-10.5 * math.Sin(elapsed*0.7) * gyroCountsPerDeg),
		Z: int16(30 * gyroCountsPerDeg),
	}
}

// FromEuler builds a quaternion from roll, pitch and yaw in degrees.
func FromEuler(rollDeg, pitchDeg, yawDeg float64) imu.RawQuaternion {
	r := rollDeg * math.Pi / 360
	p := pitchDeg * math.Pi / 360
	y := yawDeg * math.Pi / 360
	cr, sr := math.Cos(r), math.Sin(r)
	cp, sp := math.Cos(p), math.Sin(p)
	cy, sy := math.Cos(y), math.Sin(y)
	return imu.RawQuaternion{
		W: cr*cp*cy + sr*sp*sy,
		X: sr*cp*cy - cr*sp*sy,
		Y: cr*sp*cy + sr*cp*sy,
		Z: cr*cp*sy - sr*sp*cy,
	}
}
