// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"errors"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/relabs-tech/motion_node/internal/calibration"
	"github.com/relabs-tech/motion_node/internal/config"
	"github.com/relabs-tech/motion_node/internal/imu"
	"github.com/relabs-tech/motion_node/internal/lifecycle"
	"github.com/relabs-tech/motion_node/internal/sensors"
)

// RunCalibrate runs one manual calibration of target outside the node loop
// and stores the result, whatever strategy the node is configured with.
func RunCalibrate(target calibration.Target, opts NodeOptions, out io.Writer) error {
	cfg := config.Get()
	if cfg == nil {
		return errors.New("config not initialized")
	}
	dev, err := openTransport(cfg, opts.Mock)
	if err != nil {
		return err
	}
	return multierr.Append(calibrateOnce(dev, calibration.NewFileStore(cfg.CalibrationFileDir), cfg, target, out), dev.Close())
}

func calibrateOnce(dev sensors.Transport, store calibration.Store, cfg *config.Config, target calibration.Target, out io.Writer) error {
	if err := dev.Connect(cfg.IMUI2CAddr); err != nil {
		return fmt.Errorf("%w: %v", lifecycle.ErrNoConnection, err)
	}
	if code := dev.InitDMP(); code != imu.StatusOK {
		return fmt.Errorf("%w: status %d (%s)", lifecycle.ErrDmpInitFailed, code, code)
	}

	rec, err := store.Load(cfg.SensorID)
	if err != nil {
		log.Warnf("Warning: calibration record unreadable, starting from zero offsets: %v", err)
		rec = calibration.Record{Kind: calibration.KindNone}
	}
	if err := calibration.Apply(dev, rec); err != nil {
		log.Warnf("Warning: stored offsets not applied: %v", err)
	}
	if err := dev.SetDMPEnabled(true); err != nil {
		return fmt.Errorf("%w: enable: %v", lifecycle.ErrDmpInitFailed, err)
	}

	switch target {
	case calibration.Accel:
		fmt.Fprintln(out, "Place the sensor flat, Z axis up, and keep it still.")
	default:
		fmt.Fprintln(out, "Keep the sensor completely still.")
	}

	ctrl := calibration.New(calibration.Manual, dev, store, cfg.SensorID, calibration.Opts{
		Settle: calibrationSettle(cfg),
	})
	ctrl.SetBaseline(rec)
	result, err := ctrl.Start(target)
	if errors.Is(err, calibration.ErrIO) && result.Kind == calibration.Completed {
		log.Warnf("Warning: retrying calibration save for sensor %d", cfg.SensorID)
		err = ctrl.Persist()
	}
	if err != nil {
		return fmt.Errorf("calibration %s: %w", target, err)
	}

	off, _ := ctrl.Record().Offsets()
	fmt.Fprintf(out, "%s calibration saved for sensor %d: %d %d %d\n",
		target, cfg.SensorID, result.Offsets.X, result.Offsets.Y, result.Offsets.Z)
	fmt.Fprintf(out, "  accel offsets: x=%6d y=%6d z=%6d\n", off.Accel.X, off.Accel.Y, off.Accel.Z)
	fmt.Fprintf(out, "  gyro offsets:  x=%6d y=%6d z=%6d\n", off.Gyro.X, off.Gyro.Y, off.Gyro.Z)
	return nil
}
