// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"math"
	"testing"

	"periph.io/x/conn/v3/i2c/i2ctest"

	"github.com/relabs-tech/motion_node/internal/imu"
)

const quatTolerance = 1e-4

// packet builds a MotionApps packet carrying the Q14 quaternion q.
func packet(w, x, y, z int16) []byte {
	p := make([]byte, dmpPacketSize)
	for i, v := range []int16{w, x, y, z} {
		p[4*i] = byte(uint16(v) >> 8)
		p[4*i+1] = byte(uint16(v))
	}
	return p
}

func TestDecodeQuaternion(t *testing.T) {
	tests := []struct {
		name       string
		w, x, y, z int16
		want       imu.RawQuaternion
	}{
		{"identity", 16384, 0, 0, 0, imu.RawQuaternion{W: 1}},
		{"half turn about Z", 0, 0, 0, 16384, imu.RawQuaternion{Z: 1}},
		{"negative", -8192, 8192, -16384, 0, imu.RawQuaternion{W: -0.5, X: 0.5, Y: -1}},
	}
	for _, tt := range tests {
		got, err := DecodeQuaternion(packet(tt.w, tt.x, tt.y, tt.z))
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if math.Abs(got.W-tt.want.W) > quatTolerance || math.Abs(got.X-tt.want.X) > quatTolerance ||
			math.Abs(got.Y-tt.want.Y) > quatTolerance || math.Abs(got.Z-tt.want.Z) > quatTolerance {
			t.Errorf("%s: got %+v, want %+v", tt.name, got, tt.want)
		}
	}
}

func TestDecodeQuaternionShortPacket(t *testing.T) {
	_, err := DecodeQuaternion(make([]byte, 16))
	if !errors.Is(err, ErrMalformedPacket) {
		t.Fatalf("err = %v, want ErrMalformedPacket", err)
	}
}

func TestFetchPacketEmpty(t *testing.T) {
	m, bus := connected(i2ctest.IO{Addr: testAddr, W: []byte{regFIFOCountH}, R: []byte{0x00, 0x10}})
	_, ok, err := m.FetchPacket()
	if err != nil || ok {
		t.Fatalf("FetchPacket = ok %t err %v, want no packet", ok, err)
	}
	if err := bus.Close(); err != nil {
		t.Error(err)
	}
}

func TestFetchPacketKeepsNewest(t *testing.T) {
	fifo := append(packet(16384, 0, 0, 0), packet(0, 16384, 0, 0)...)
	m, bus := connected(
		i2ctest.IO{Addr: testAddr, W: []byte{regFIFOCountH}, R: []byte{0x00, byte(len(fifo))}},
		i2ctest.IO{Addr: testAddr, W: []byte{regFIFORW}, R: fifo},
	)
	q, ok, err := m.FetchPacket()
	if err != nil || !ok {
		t.Fatalf("FetchPacket = ok %t err %v", ok, err)
	}
	if q.X != 1 || q.W != 0 {
		t.Errorf("got %+v, want the second packet", q)
	}
	if err := bus.Close(); err != nil {
		t.Error(err)
	}
}

func TestFetchPacketResetsFIFO(t *testing.T) {
	tests := []struct {
		name  string
		count []byte
		want  error
	}{
		{"overflow", []byte{0x04, 0x00}, ErrFIFOOverflow},
		{"misaligned", []byte{0x00, 50}, ErrMalformedPacket},
	}
	for _, tt := range tests {
		m, bus := connected(
			i2ctest.IO{Addr: testAddr, W: []byte{regFIFOCountH}, R: tt.count},
			i2ctest.IO{Addr: testAddr, W: []byte{regUserCtrl}, R: []byte{userCtrlDMPEn | userCtrlFIFOEn}},
			i2ctest.IO{Addr: testAddr, W: []byte{regUserCtrl, userCtrlDMPEn | userCtrlFIFOEn | userCtrlFIFOReset}},
		)
		_, ok, err := m.FetchPacket()
		if ok || !errors.Is(err, tt.want) {
			t.Errorf("%s: ok %t err %v, want %v", tt.name, ok, err, tt.want)
		}
		if err := bus.Close(); err != nil {
			t.Errorf("%s: %v", tt.name, err)
		}
	}
}

func TestInitDMPWithoutFirmware(t *testing.T) {
	m, _ := connected(
		i2ctest.IO{Addr: testAddr, W: []byte{regPwrMgmt1, pwrDeviceReset}},
		i2ctest.IO{Addr: testAddr, W: []byte{regPwrMgmt1, pwrClockPLLZ}},
	)
	if got := m.InitDMP(); got != imu.StatusMemoryLoadFailed {
		t.Fatalf("InitDMP = %v, want %v", got, imu.StatusMemoryLoadFailed)
	}
}

func TestInitDMPVerifyFailure(t *testing.T) {
	m, bus := connected(
		i2ctest.IO{Addr: testAddr, W: []byte{regPwrMgmt1, pwrDeviceReset}},
		i2ctest.IO{Addr: testAddr, W: []byte{regPwrMgmt1, pwrClockPLLZ}},
		i2ctest.IO{Addr: testAddr, W: []byte{regBankSel, 0}},
		i2ctest.IO{Addr: testAddr, W: []byte{regMemStart, 0}},
		i2ctest.IO{Addr: testAddr, W: []byte{regMemRW, 0xFB, 0x00}},
		i2ctest.IO{Addr: testAddr, W: []byte{regBankSel, 0}},
		i2ctest.IO{Addr: testAddr, W: []byte{regMemStart, 0}},
		i2ctest.IO{Addr: testAddr, W: []byte{regMemRW}, R: []byte{0xFB, 0x01}},
	)
	m.opts.Firmware = []byte{0xFB, 0x00}
	if got := m.InitDMP(); got != imu.StatusMemoryLoadFailed {
		t.Fatalf("InitDMP = %v, want %v", got, imu.StatusMemoryLoadFailed)
	}
	if err := bus.Close(); err != nil {
		t.Error(err)
	}
}

func TestInitDMPConfigFailure(t *testing.T) {
	m, _ := connected(
		i2ctest.IO{Addr: testAddr, W: []byte{regPwrMgmt1, pwrDeviceReset}},
		i2ctest.IO{Addr: testAddr, W: []byte{regPwrMgmt1, pwrClockPLLZ}},
		i2ctest.IO{Addr: testAddr, W: []byte{regBankSel, 0}},
		i2ctest.IO{Addr: testAddr, W: []byte{regMemStart, 0}},
		i2ctest.IO{Addr: testAddr, W: []byte{regMemRW, 0xFB}},
		i2ctest.IO{Addr: testAddr, W: []byte{regBankSel, 0}},
		i2ctest.IO{Addr: testAddr, W: []byte{regMemStart, 0}},
		i2ctest.IO{Addr: testAddr, W: []byte{regMemRW}, R: []byte{0xFB}},
		// The bus runs dry during the configuration writes.
	)
	m.opts.Firmware = []byte{0xFB}
	if got := m.InitDMP(); got != imu.StatusConfigUpdateFailed {
		t.Fatalf("InitDMP = %v, want %v", got, imu.StatusConfigUpdateFailed)
	}
}
