// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math"
	"time"

	"github.com/felixge/pidctrl"
)

const (
	pidSamplesPerLoop = 100
	pidSampleDt       = time.Millisecond
	// A loop whose error never settles is restarted at most this many times.
	pidMaxRestarts = 10
	gravityCounts  = 16384 // 1g at ±2g full scale
)

// pidAxes describes one offset search: which data registers to drive to
// zero and which offset registers to adjust.
type pidAxes struct {
	name      string
	readReg   byte
	offsetReg byte
	scale     float64 // counts of PID output per offset LSB
	accel     bool
	kP, kI    float64
}

// CalibrateGyro searches gyro offsets that zero the resting rates. The device
// must be still.
func (m *MPU6050) CalibrateGyro(loops int) error {
	x := loopGainScale(loops)
	return m.runPID(pidAxes{
		name: "gyro", readReg: regGyroXoutH, offsetReg: regXGOffsUsrH,
		scale: 4, kP: 0.3 * x, kI: 90 * x,
	}, loops)
}

// CalibrateAccel searches accel offsets that read (0, 0, +1g) with the
// device lying flat.
func (m *MPU6050) CalibrateAccel(loops int) error {
	x := loopGainScale(loops)
	return m.runPID(pidAxes{
		name: "accel", readReg: regAccelXoutH, offsetReg: regXAOffsH,
		scale: 8, accel: true, kP: 0.3 * x, kI: 20 * x,
	}, loops)
}

// loopGainScale raises the gains with the loop count: 1 loop is the most
// cautious, 5 and above are at or over nominal.
func loopGainScale(loops int) float64 {
	return (100 - (20 - float64(loops-1)*5)) * 0.01
}

func (m *MPU6050) runPID(ax pidAxes, loops int) error {
	start, err := m.readAxes(ax.offsetReg)
	if err != nil {
		return err
	}

	base := [3]float64{float64(start.X), float64(start.Y), float64(start.Z)}
	// Accel offset bit 0 is reserved for temperature compensation.
	var bit0 [3]int16
	if ax.accel {
		bit0 = [3]int16{start.X & 1, start.Y & 1, start.Z & 1}
	}

	kP, kI := ax.kP, ax.kI
	for l := 0; l < loops; l++ {
		var ctrls [3]*pidctrl.PIDController
		var lastOut, lastErr [3]float64
		for i := range ctrls {
			ctrls[i] = pidctrl.NewPIDController(kP, kI, 0)
			ctrls[i].SetOutputLimits(-math.MaxInt16*ax.scale, math.MaxInt16*ax.scale)
			ctrls[i].Set(0)
		}

		settled, restarts := 0, 0
		for c := 0; c < pidSamplesPerLoop; c++ {
			sample, err := m.readAxes(ax.readReg)
			if err != nil {
				return err
			}
			values := [3]float64{float64(sample.X), float64(sample.Y), float64(sample.Z)}
			if ax.accel {
				values[2] -= gravityCounts
			}

			var eSum float64
			for i, v := range values {
				eSum += math.Abs(v)
				out := ctrls[i].UpdateDuration(v, pidSampleDt)
				lastOut[i], lastErr[i] = out, -v
				if err := m.writeWord(ax.offsetReg+byte(2*i), ax.offsetWord(base[i]+out/ax.scale, bit0[i])); err != nil {
					return err
				}
			}

			if c == pidSamplesPerLoop-1 && eSum > 1000 && restarts < pidMaxRestarts {
				restarts++
				c = -1
			}
			if ax.accel {
				eSum *= 0.05
			}
			if eSum < 5 {
				settled++
			}
			if eSum < 100 && c > 10 && settled >= 10 {
				break
			}
			m.opts.Sleep(pidSampleDt)
		}

		// Keep only the integral part and carry it into the next, gentler loop.
		for i := range base {
			base[i] += (lastOut[i] - kP*lastErr[i]) / ax.scale
			if err := m.writeWord(ax.offsetReg+byte(2*i), ax.offsetWord(base[i], bit0[i])); err != nil {
				return err
			}
		}
		m.logger.Debugf("calibration: %s loop %d/%d done (restarts %d)", ax.name, l+1, loops, restarts)
		kP *= 0.75
		kI *= 0.75
	}

	return m.resetFIFOAndDMP()
}

func (ax pidAxes) offsetWord(v float64, bit0 int16) int16 {
	v = math.Round(v)
	if v > math.MaxInt16 {
		v = math.MaxInt16
	} else if v < math.MinInt16 {
		v = math.MinInt16
	}
	w := int16(v)
	if ax.accel {
		w = w&^1 | bit0
	}
	return w
}
