// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/pkg/errors"

	"github.com/relabs-tech/motion_node/internal/imu"
)

var (
	// ErrMalformedPacket means the FIFO content was not a whole number of packets.
	ErrMalformedPacket = errors.New("malformed DMP FIFO packet")
	// ErrFIFOOverflow means the FIFO filled up and was reset.
	ErrFIFOOverflow = errors.New("DMP FIFO overflow")
)

// InitDMP resets the device, uploads the firmware image and configures the
// DMP. The DMP is left disabled; call SetDMPEnabled(true) to start it.
func (m *MPU6050) InitDMP() imu.StatusCode {
	if err := m.reset(); err != nil {
		m.logger.Errorf("DMP: device reset: %v", err)
		return imu.StatusMemoryLoadFailed
	}
	if err := m.writeMemory(m.opts.Firmware); err != nil {
		m.logger.Errorf("DMP: firmware upload: %v", err)
		return imu.StatusMemoryLoadFailed
	}
	m.logger.Debugf("DMP: %d bytes of firmware verified", len(m.opts.Firmware))
	if err := m.configureDMP(); err != nil {
		m.logger.Errorf("DMP: configuration: %v", err)
		return imu.StatusConfigUpdateFailed
	}
	return imu.StatusOK
}

// SetDMPEnabled starts or stops the DMP. Enabling also flushes the FIFO so
// the first packet fetched is fresh.
func (m *MPU6050) SetDMPEnabled(enabled bool) error {
	if enabled {
		if err := m.setBits(regUserCtrl, userCtrlFIFOReset, true); err != nil {
			return err
		}
	}
	return m.setBits(regUserCtrl, userCtrlDMPEn, enabled)
}

// FetchPacket returns the newest complete packet in the FIFO and drops any
// older ones.
func (m *MPU6050) FetchPacket() (imu.RawQuaternion, bool, error) {
	count, err := m.fifoCount()
	if err != nil {
		return imu.RawQuaternion{}, false, err
	}
	switch {
	case count < dmpPacketSize:
		return imu.RawQuaternion{}, false, nil
	case count >= fifoSize:
		return imu.RawQuaternion{}, false, m.flushFIFO(ErrFIFOOverflow)
	case count%dmpPacketSize != 0:
		return imu.RawQuaternion{}, false, m.flushFIFO(ErrMalformedPacket)
	}

	buf := m.fifoBuf[:count]
	if err := m.tx([]byte{regFIFORW}, buf); err != nil {
		return imu.RawQuaternion{}, false, err
	}
	q, err := DecodeQuaternion(buf[count-dmpPacketSize:])
	if err != nil {
		return imu.RawQuaternion{}, false, err
	}
	return q, true, nil
}

// DecodeQuaternion extracts the Q14 quaternion from a MotionApps 2.0 packet.
func DecodeQuaternion(pkt []byte) (imu.RawQuaternion, error) {
	if len(pkt) < dmpPacketSize {
		return imu.RawQuaternion{}, errors.Wrapf(ErrMalformedPacket, "%d bytes", len(pkt))
	}
	c := func(off int) float64 {
		return float64(int16(binary.BigEndian.Uint16(pkt[off:]))) / 16384.0
	}
	return imu.RawQuaternion{W: c(0), X: c(4), Y: c(8), Z: c(12)}, nil
}

func (m *MPU6050) fifoCount() (int, error) {
	v, err := m.readWord(regFIFOCountH)
	if err != nil {
		return 0, err
	}
	return int(uint16(v)), nil
}

func (m *MPU6050) flushFIFO(cause error) error {
	if err := m.resetFIFO(); err != nil {
		return errors.Wrap(err, cause.Error())
	}
	return cause
}

func (m *MPU6050) resetFIFO() error {
	return m.setBits(regUserCtrl, userCtrlFIFOReset, true)
}

func (m *MPU6050) resetFIFOAndDMP() error {
	return m.setBits(regUserCtrl, userCtrlFIFOReset|userCtrlDMPReset, true)
}

func (m *MPU6050) reset() error {
	if err := m.writeByte(regPwrMgmt1, pwrDeviceReset); err != nil {
		return err
	}
	m.opts.Sleep(30 * time.Millisecond)
	return m.writeByte(regPwrMgmt1, pwrClockPLLZ)
}

// writeMemory uploads img into DMP memory starting at bank 0 and reads every
// chunk back to verify it.
func (m *MPU6050) writeMemory(img []byte) error {
	if len(img) == 0 {
		return errors.New("no firmware image configured")
	}
	readBack := make([]byte, dmpMemChunkSize)
	for addr := 0; addr < len(img); {
		n := dmpMemChunkSize
		if rem := dmpMemBankSize - addr%dmpMemBankSize; n > rem {
			n = rem
		}
		if rem := len(img) - addr; n > rem {
			n = rem
		}
		chunk := img[addr : addr+n]

		if err := m.selectMemory(addr); err != nil {
			return err
		}
		if err := m.tx(append([]byte{regMemRW}, chunk...), nil); err != nil {
			return err
		}
		if err := m.selectMemory(addr); err != nil {
			return err
		}
		if err := m.tx([]byte{regMemRW}, readBack[:n]); err != nil {
			return err
		}
		if !bytes.Equal(chunk, readBack[:n]) {
			return errors.Errorf("verify failed at bank %d address 0x%02x", addr/dmpMemBankSize, addr%dmpMemBankSize)
		}
		addr += n
	}
	return nil
}

func (m *MPU6050) selectMemory(addr int) error {
	if err := m.writeByte(regBankSel, byte(addr/dmpMemBankSize)); err != nil {
		return err
	}
	return m.writeByte(regMemStart, byte(addr%dmpMemBankSize))
}

func (m *MPU6050) configureDMP() error {
	steps := []struct {
		reg, val byte
	}{
		{regIntEnable, 0x12},  // FIFO overflow + DMP interrupt
		{regSmplrtDiv, 0x04},  // 1kHz / (1 + 4) = 200Hz
		{regConfig, 0x03},     // DLPF 44Hz
		{regGyroConfig, 0x18}, // ±2000°/s
		{regAccelConfig, 0x00},
		{regFIFOEn, 0x00}, // the DMP feeds the FIFO itself
		{regDMPCfg1, byte(dmpStartAddress >> 8)},
		{regDMPCfg2, byte(dmpStartAddress & 0xFF)},
		{regUserCtrl, userCtrlFIFOReset | userCtrlDMPReset},
		{regUserCtrl, userCtrlFIFOEn},
	}
	for _, s := range steps {
		if err := m.writeByte(s.reg, s.val); err != nil {
			return err
		}
	}
	return nil
}
