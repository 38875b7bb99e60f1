// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"github.com/relabs-tech/motion_node/internal/imu"
)

// Transport is the IMU driver as seen by the node: bus connection, the DMP
// black box, FIFO packets, raw reads and the offset registers.
//
// Implementations are not safe for concurrent use; the lifecycle owns the
// transport and is the only caller.
type Transport interface {
	// Connect opens the device at addr and verifies it answers as an MPU-6050.
	Connect(addr uint16) error
	DeviceID() (byte, error)

	// InitDMP uploads the DMP firmware and configuration. The device is
	// reset as part of this, so offsets must be applied afterwards.
	InitDMP() imu.StatusCode
	SetDMPEnabled(enabled bool) error

	// FetchPacket dequeues the most recent FIFO packet without blocking.
	// ok is false when no full packet is available.
	FetchPacket() (q imu.RawQuaternion, ok bool, err error)

	ReadRawRates() (imu.Axes, error)
	ReadRawAccel() (imu.Axes, error)

	CalibrateGyro(loops int) error
	CalibrateAccel(loops int) error

	AccelOffsets() (imu.Axes, error)
	GyroOffsets() (imu.Axes, error)
	SetAccelOffsets(imu.Axes) error
	SetGyroOffsets(imu.Axes) error

	Close() error
}
