// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"sync"

	"github.com/relabs-tech/motion_node/internal/imu"
)

// Fake is an in-memory Transport. Tests script it through the exported
// fields; --mock runs use it with a Source.
type Fake struct {
	mu sync.Mutex

	// Trace records every method call for Calls. NewFake turns it on;
	// long-running users turn it off.
	Trace bool

	ID         byte
	ConnectErr error
	InitStatus imu.StatusCode
	// EnableErr is returned when the DMP is switched on.
	EnableErr error

	// Packets is consumed one per FetchPacket. When empty, Source is used
	// if set; otherwise no packet is available.
	Packets  []imu.RawQuaternion
	Source   func() imu.RawQuaternion
	FetchErr error

	// Rates is consumed one per ReadRawRates; the last value repeats. When
	// empty, RateSource is used if set.
	Rates      []imu.Axes
	RateSource func() imu.Axes
	RatesErr   error
	Accel      imu.Axes

	AccelOffset imu.Axes
	GyroOffset  imu.Axes
	// CalibrateAccel and CalibrateGyro install these as the new offsets.
	CalibratedAccel imu.Axes
	CalibratedGyro  imu.Axes
	CalibrateErr    error

	DMPEnabled bool

	calls []string
}

var _ Transport = (*Fake)(nil)

// NewFake returns a fake that answers as a healthy MPU-6050.
func NewFake() *Fake {
	return &Fake{ID: whoAmIValue, Trace: true}
}

func (f *Fake) record(format string, args ...interface{}) {
	if !f.Trace {
		return
	}
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

// Calls returns the recorded calls in order, e.g. "CalibrateGyro(6)".
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallCount returns how many methods have been called so far.
func (f *Fake) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *Fake) Connect(addr uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Connect(0x%02x)", addr)
	return f.ConnectErr
}

func (f *Fake) DeviceID() (byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeviceID()")
	return f.ID, nil
}

func (f *Fake) InitDMP() imu.StatusCode {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("InitDMP()")
	if f.InitStatus == imu.StatusOK {
		// The device reset clears the offset registers.
		f.AccelOffset, f.GyroOffset = imu.Axes{}, imu.Axes{}
	}
	return f.InitStatus
}

func (f *Fake) SetDMPEnabled(enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SetDMPEnabled(%t)", enabled)
	if enabled && f.EnableErr != nil {
		return f.EnableErr
	}
	f.DMPEnabled = enabled
	return nil
}

func (f *Fake) FetchPacket() (imu.RawQuaternion, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("FetchPacket()")
	if f.FetchErr != nil {
		return imu.RawQuaternion{}, false, f.FetchErr
	}
	if len(f.Packets) > 0 {
		q := f.Packets[0]
		f.Packets = f.Packets[1:]
		return q, true, nil
	}
	if f.Source != nil {
		return f.Source(), true, nil
	}
	return imu.RawQuaternion{}, false, nil
}

func (f *Fake) ReadRawRates() (imu.Axes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ReadRawRates()")
	if f.RatesErr != nil {
		return imu.Axes{}, f.RatesErr
	}
	if len(f.Rates) == 0 {
		if f.RateSource != nil {
			return f.RateSource(), nil
		}
		return imu.Axes{}, nil
	}
	r := f.Rates[0]
	if len(f.Rates) > 1 {
		f.Rates = f.Rates[1:]
	}
	return r, nil
}

func (f *Fake) ReadRawAccel() (imu.Axes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ReadRawAccel()")
	return f.Accel, nil
}

func (f *Fake) CalibrateGyro(loops int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CalibrateGyro(%d)", loops)
	if f.CalibrateErr != nil {
		return f.CalibrateErr
	}
	f.GyroOffset = f.CalibratedGyro
	return nil
}

func (f *Fake) CalibrateAccel(loops int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CalibrateAccel(%d)", loops)
	if f.CalibrateErr != nil {
		return f.CalibrateErr
	}
	f.AccelOffset = f.CalibratedAccel
	return nil
}

func (f *Fake) AccelOffsets() (imu.Axes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("AccelOffsets()")
	return f.AccelOffset, nil
}

func (f *Fake) GyroOffsets() (imu.Axes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GyroOffsets()")
	return f.GyroOffset, nil
}

func (f *Fake) SetAccelOffsets(a imu.Axes) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SetAccelOffsets(%d,%d,%d)", a.X, a.Y, a.Z)
	f.AccelOffset = a
	return nil
}

func (f *Fake) SetGyroOffsets(a imu.Axes) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SetGyroOffsets(%d,%d,%d)", a.X, a.Y, a.Z)
	f.GyroOffset = a
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Close()")
	return nil
}
