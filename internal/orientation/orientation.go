// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"time"

	"github.com/westphae/quaternion"

	"github.com/relabs-tech/motion_node/internal/imu"
)

// DefaultEpsilon is the per-component change below which an update is
// considered a repeat.
const DefaultEpsilon = 1e-4

// Sample is a corrected orientation ready to be transmitted.
type Sample struct {
	W    float64   `json:"w"`
	X    float64   `json:"x"`
	Y    float64   `json:"y"`
	Z    float64   `json:"z"`
	Time time.Time `json:"time"`
}

// Quaternion returns the sample as a quaternion value.
func (s Sample) Quaternion() quaternion.Quaternion {
	return quaternion.Quaternion{W: s.W, X: s.X, Y: s.Y, Z: s.Z}
}

// Pose is the Euler-angle view of an orientation, in degrees, used by the
// console and web display.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Pose converts the sample to roll/pitch/yaw (aerospace sequence).
//
//	roll  = atan2(2(wx + yz), 1 − 2(x² + y²))
//	pitch = asin(2(wy − zx))
//	yaw   = atan2(2(wz + xy), 1 − 2(y² + z²))
func (s Sample) Pose() Pose {
	w, x, y, z := s.W, s.X, s.Y, s.Z
	sinp := 2 * (w*y - z*x)
	if sinp > 1 {
		sinp = 1
	} else if sinp < -1 {
		sinp = -1
	}
	return Pose{
		Roll:  math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y)) * 180.0 / math.Pi,
		Pitch: math.Asin(sinp) * 180.0 / math.Pi,
		Yaw:   math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z)) * 180.0 / math.Pi,
	}
}

// FilterConfig configures a Filter.
type FilterConfig struct {
	// MountingDeg is the yaw of the sensor relative to the body segment.
	MountingDeg float64
	// OptimizeUpdates suppresses samples that did not change.
	OptimizeUpdates bool
	// Epsilon is the change threshold; zero means DefaultEpsilon.
	Epsilon float64
}

// Filter maps raw DMP quaternions into the body frame and decides whether
// each one is worth transmitting.
type Filter struct {
	cfg    FilterConfig
	offset quaternion.Quaternion

	last    quaternion.Quaternion
	hasLast bool
}

// NewFilter builds a filter. The mounting offset is a rotation about Z.
func NewFilter(cfg FilterConfig) *Filter {
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = DefaultEpsilon
	}
	half := cfg.MountingDeg * math.Pi / 360.0
	return &Filter{
		cfg:    cfg,
		offset: quaternion.Quaternion{W: math.Cos(half), Z: math.Sin(half)},
	}
}

// Correct applies the axis remap and the mounting rotation without touching
// the change-detection state.
func (f *Filter) Correct(raw imu.RawQuaternion) quaternion.Quaternion {
	// Sensor X/Y are swapped relative to the body frame.
	remapped := quaternion.Quaternion{W: raw.W, X: -raw.Y, Y: raw.X, Z: raw.Z}
	return quaternion.Prod(remapped, f.offset)
}

// Update corrects raw and reports whether the result should be emitted.
// The first update always emits. Inputs are not normalised.
func (f *Filter) Update(raw imu.RawQuaternion, t time.Time) (Sample, bool) {
	q := f.Correct(raw)
	s := Sample{W: q.W, X: q.X, Y: q.Y, Z: q.Z, Time: t}

	if f.cfg.OptimizeUpdates && f.hasLast && !f.changed(q) {
		return s, false
	}
	f.last, f.hasLast = q, true
	return s, true
}

// Last returns the last emitted quaternion.
func (f *Filter) Last() (quaternion.Quaternion, bool) {
	return f.last, f.hasLast
}

func (f *Filter) changed(q quaternion.Quaternion) bool {
	eps := f.cfg.Epsilon
	return math.Abs(q.W-f.last.W) > eps ||
		math.Abs(q.X-f.last.X) > eps ||
		math.Abs(q.Y-f.last.Y) > eps ||
		math.Abs(q.Z-f.last.Z) > eps
}
