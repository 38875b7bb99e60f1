// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/motion_node/internal/imu"
)

// Opts configures the MPU-6050 driver.
type Opts struct {
	// Firmware is the DMP image uploaded by InitDMP.
	Firmware []byte
	// Sleep is used for reset and calibration pacing; nil means time.Sleep.
	Sleep func(time.Duration)
}

// MPU6050 drives an InvenSense MPU-6050 with its DMP over I²C.
type MPU6050 struct {
	bus    i2c.Bus
	closer i2c.BusCloser
	dev    *i2c.Dev
	opts   Opts
	logger *log.Entry

	fifoBuf []byte
}

var _ Transport = (*MPU6050)(nil)

// NewMPU6050 returns a driver on an already opened bus. The driver does not
// own the bus.
func NewMPU6050(bus i2c.Bus, opts Opts) *MPU6050 {
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	return &MPU6050{
		bus:     bus,
		opts:    opts,
		logger:  log.WithField("component", "mpu6050"),
		fifoBuf: make([]byte, fifoSize),
	}
}

// OpenMPU6050 initializes the periph host, opens the named I²C bus ("" for
// the default one) and returns a driver that closes the bus on Close.
func OpenMPU6050(busName string, opts Opts) (*MPU6050, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("I2C bus open (%q): %w", busName, err)
	}
	m := NewMPU6050(bus, opts)
	m.closer = bus
	return m, nil
}

// LoadFirmware reads a DMP firmware image from disk.
func LoadFirmware(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read DMP firmware: %w", err)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("DMP firmware %s is empty", path)
	}
	return b, nil
}

// Connect binds the driver to addr and checks WHO_AM_I.
func (m *MPU6050) Connect(addr uint16) error {
	m.dev = &i2c.Dev{Bus: m.bus, Addr: addr}
	m.logger = m.logger.WithField("addr", fmt.Sprintf("0x%02x", addr))

	id, err := m.DeviceID()
	if err != nil {
		return err
	}
	if id&whoAmIMask != whoAmIValue&whoAmIMask {
		return errors.Errorf("unexpected non-MPU6050 device at address 0x%02x: WHO_AM_I 0x%02x", addr, id)
	}
	// Wake up; the device powers on in sleep mode.
	if err := m.writeByte(regPwrMgmt1, pwrClockPLLZ); err != nil {
		return err
	}
	m.logger.Infof("IMU: connected (WHO_AM_I 0x%02x)", id)
	return nil
}

// DeviceID returns the raw WHO_AM_I register.
func (m *MPU6050) DeviceID() (byte, error) {
	return m.readByte(regWhoAmI)
}

// ReadRegister reads one register. Used by the register dump tool.
func (m *MPU6050) ReadRegister(reg byte) (byte, error) {
	return m.readByte(reg)
}

func (m *MPU6050) ReadRawRates() (imu.Axes, error) {
	return m.readAxes(regGyroXoutH)
}

func (m *MPU6050) ReadRawAccel() (imu.Axes, error) {
	return m.readAxes(regAccelXoutH)
}

func (m *MPU6050) AccelOffsets() (imu.Axes, error) {
	return m.readOffsets(regXAOffsH)
}

func (m *MPU6050) GyroOffsets() (imu.Axes, error) {
	return m.readOffsets(regXGOffsUsrH)
}

func (m *MPU6050) SetAccelOffsets(a imu.Axes) error {
	return m.writeOffsets(regXAOffsH, a)
}

func (m *MPU6050) SetGyroOffsets(a imu.Axes) error {
	return m.writeOffsets(regXGOffsUsrH, a)
}

// Close disables the DMP and releases the bus when the driver opened it.
func (m *MPU6050) Close() error {
	var err error
	if m.dev != nil {
		err = multierr.Append(err, m.SetDMPEnabled(false))
	}
	if m.closer != nil {
		err = multierr.Append(err, m.closer.Close())
	}
	return err
}

// readAxes reads three consecutive big-endian int16 values.
func (m *MPU6050) readAxes(reg byte) (imu.Axes, error) {
	var b [6]byte
	if err := m.tx([]byte{reg}, b[:]); err != nil {
		return imu.Axes{}, err
	}
	return imu.Axes{
		X: int16(binary.BigEndian.Uint16(b[0:])),
		Y: int16(binary.BigEndian.Uint16(b[2:])),
		Z: int16(binary.BigEndian.Uint16(b[4:])),
	}, nil
}

// Offset registers are consecutive words.
func (m *MPU6050) readOffsets(reg byte) (imu.Axes, error) {
	return m.readAxes(reg)
}

func (m *MPU6050) writeOffsets(reg byte, a imu.Axes) error {
	for i, v := range []int16{a.X, a.Y, a.Z} {
		if err := m.writeWord(reg+byte(2*i), v); err != nil {
			return err
		}
	}
	return nil
}

func (m *MPU6050) readWord(reg byte) (int16, error) {
	var b [2]byte
	if err := m.tx([]byte{reg}, b[:]); err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(b[:])), nil
}

func (m *MPU6050) writeWord(reg byte, v int16) error {
	w := []byte{reg, 0, 0}
	binary.BigEndian.PutUint16(w[1:], uint16(v))
	return m.tx(w, nil)
}

func (m *MPU6050) readByte(reg byte) (byte, error) {
	var b [1]byte
	if err := m.tx([]byte{reg}, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (m *MPU6050) writeByte(reg, v byte) error {
	return m.tx([]byte{reg, v}, nil)
}

func (m *MPU6050) setBits(reg, mask byte, on bool) error {
	v, err := m.readByte(reg)
	if err != nil {
		return err
	}
	if on {
		v |= mask
	} else {
		v &^= mask
	}
	return m.writeByte(reg, v)
}

func (m *MPU6050) tx(w, r []byte) error {
	if m.dev == nil {
		return errors.New("mpu6050: not connected")
	}
	if err := m.dev.Tx(w, r); err != nil {
		return errors.Wrapf(err, "can't access register 0x%02x on %s", w[0], m.dev)
	}
	return nil
}
