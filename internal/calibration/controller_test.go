// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calibration

import (
	"errors"
	"reflect"
	"testing"

	"github.com/relabs-tech/motion_node/internal/imu"
	"github.com/relabs-tech/motion_node/internal/sensors"
)

func baseline() Record {
	return Record{Kind: KindMPU6050, MPU6050: &Offsets{
		Accel: imu.Axes{X: -1200, Y: 800, Z: 1500},
		Gyro:  imu.Axes{X: 10, Y: -5, Z: 3},
	}}
}

func TestAutomaticNeverTouchesDeviceOrStore(t *testing.T) {
	dev := sensors.NewFake()
	store := NewMemoryStore()
	c := New(Automatic, dev, store, 1, Opts{})

	for _, target := range []Target{Accel, Gyro} {
		out, err := c.Start(target)
		if err != nil {
			t.Fatal(err)
		}
		if out.Kind != Acknowledged || out.Target != target {
			t.Errorf("outcome = %+v", out)
		}
	}
	if n := dev.CallCount(); n != 0 {
		t.Errorf("transport called %d times: %v", n, dev.Calls())
	}
	if store.Saves != 0 {
		t.Errorf("store saved %d times", store.Saves)
	}
}

func TestManualGyroRun(t *testing.T) {
	dev := sensors.NewFake()
	dev.CalibratedGyro = imu.Axes{X: 12, Y: -7, Z: 4}
	dev.CalibratedAccel = imu.Axes{X: -1190, Y: 805, Z: 1502}
	store := NewMemoryStore()
	c := New(Manual, dev, store, 3, Opts{})
	c.SetBaseline(baseline())

	out, err := c.Start(Gyro)
	if err != nil {
		t.Fatal(err)
	}
	if out.Kind != Completed || out.Offsets != dev.CalibratedGyro {
		t.Errorf("outcome = %+v", out)
	}

	wantCalls := []string{
		"SetDMPEnabled(false)",
		"CalibrateGyro(6)",
		"CalibrateAccel(6)",
		"SetDMPEnabled(true)",
		"CalibrateGyro(10)",
		"GyroOffsets()",
	}
	if got := dev.Calls(); !reflect.DeepEqual(got, wantCalls) {
		t.Errorf("calls = %v, want %v", got, wantCalls)
	}

	saved, ok := store.Records[3].Offsets()
	if !ok {
		t.Fatal("no record saved")
	}
	if saved.Gyro != dev.CalibratedGyro {
		t.Errorf("saved gyro = %+v, want %+v", saved.Gyro, dev.CalibratedGyro)
	}
	// The accel half is untouched even though the coarse pass moved it.
	if saved.Accel != baseline().MPU6050.Accel {
		t.Errorf("saved accel = %+v, want baseline", saved.Accel)
	}
	if !reflect.DeepEqual(c.Record(), store.Records[3]) {
		t.Errorf("committed record differs from saved one")
	}
}

func TestManualAccelPreservesGyro(t *testing.T) {
	dev := sensors.NewFake()
	dev.CalibratedAccel = imu.Axes{X: 1, Y: 2, Z: 3}
	store := NewMemoryStore()
	c := New(Manual, dev, store, 0, Opts{})
	c.SetBaseline(baseline())

	if _, err := c.Start(Accel); err != nil {
		t.Fatal(err)
	}
	saved, _ := store.Records[0].Offsets()
	if saved.Accel != dev.CalibratedAccel || saved.Gyro != baseline().MPU6050.Gyro {
		t.Errorf("saved = %+v", saved)
	}
}

func TestManualFromEmptyRecord(t *testing.T) {
	dev := sensors.NewFake()
	dev.CalibratedGyro = imu.Axes{X: 9}
	store := NewMemoryStore()
	c := New(Manual, dev, store, 0, Opts{})

	if _, err := c.Start(Gyro); err != nil {
		t.Fatal(err)
	}
	r := store.Records[0]
	if r.Kind != KindMPU6050 || r.MPU6050.Gyro.X != 9 || r.MPU6050.Accel != (imu.Axes{}) {
		t.Errorf("record = %+v", r)
	}
}

func TestSaveFailureKeepsMeasurement(t *testing.T) {
	dev := sensors.NewFake()
	dev.CalibratedGyro = imu.Axes{X: 5, Y: 6, Z: 7}
	store := NewMemoryStore()
	store.SaveErr = errors.New("disk full")
	c := New(Manual, dev, store, 0, Opts{})
	c.SetBaseline(baseline())

	out, err := c.Start(Gyro)
	if !errors.Is(err, ErrIO) {
		t.Fatalf("err = %v, want ErrIO", err)
	}
	if out.Kind != Completed || out.Offsets != dev.CalibratedGyro {
		t.Errorf("outcome = %+v", out)
	}
	rec, ok := c.Record().Offsets()
	if !ok || rec.Gyro != dev.CalibratedGyro || rec.Accel != baseline().MPU6050.Accel {
		t.Errorf("record = %+v, want the measured gyro offsets", c.Record())
	}
	if _, saved := store.Records[0]; saved {
		t.Error("store holds a record after a failed save")
	}

	store.SaveErr = nil
	if err := c.Persist(); err != nil {
		t.Fatalf("Persist = %v", err)
	}
	if got := store.Records[0]; !reflect.DeepEqual(got, c.Record()) {
		t.Errorf("persisted %+v, want %+v", got, c.Record())
	}
}

func TestFailedSaveSurvivesNextRun(t *testing.T) {
	dev := sensors.NewFake()
	dev.CalibratedAccel = imu.Axes{X: 11, Y: 22, Z: 33}
	dev.CalibratedGyro = imu.Axes{X: 4, Y: 5, Z: 6}
	store := NewMemoryStore()
	store.SaveErr = errors.New("read-only filesystem")
	c := New(Manual, dev, store, 0, Opts{})

	if _, err := c.Start(Accel); !errors.Is(err, ErrIO) {
		t.Fatalf("accel run err = %v, want ErrIO", err)
	}
	store.SaveErr = nil
	if _, err := c.Start(Gyro); err != nil {
		t.Fatal(err)
	}
	r := store.Records[0]
	if r.Kind != KindMPU6050 || r.MPU6050.Accel != dev.CalibratedAccel || r.MPU6050.Gyro != dev.CalibratedGyro {
		t.Errorf("persisted %+v, want both measurements", r.MPU6050)
	}
}

func TestPersistEmptyRecordIsNoop(t *testing.T) {
	store := NewMemoryStore()
	c := New(Manual, sensors.NewFake(), store, 0, Opts{})
	if err := c.Persist(); err != nil || store.Saves != 0 {
		t.Errorf("Persist = %v, saves %d", err, store.Saves)
	}
}

func TestReenableFailureWritesNothing(t *testing.T) {
	dev := sensors.NewFake()
	dev.EnableErr = errors.New("nack")
	store := NewMemoryStore()
	c := New(Manual, dev, store, 0, Opts{})

	_, err := c.Start(Accel)
	if !errors.Is(err, ErrDmpInitFailed) {
		t.Fatalf("err = %v, want ErrDmpInitFailed", err)
	}
	if store.Saves != 0 {
		t.Errorf("store saved %d times", store.Saves)
	}
	for _, call := range dev.Calls() {
		if call == "CalibrateAccel(10)" {
			t.Error("fine pass ran after the DMP failed to restart")
		}
	}
}

func TestUnknownTarget(t *testing.T) {
	dev := sensors.NewFake()
	c := New(Manual, dev, NewMemoryStore(), 0, Opts{})
	if _, err := c.Start(Target(7)); err == nil {
		t.Fatal("expected an error")
	}
	if dev.CallCount() != 0 {
		t.Errorf("transport used: %v", dev.Calls())
	}
}

func TestApply(t *testing.T) {
	dev := sensors.NewFake()
	if err := Apply(dev, Record{Kind: KindNone}); err != nil || dev.CallCount() != 0 {
		t.Fatalf("empty record: err %v, calls %v", err, dev.Calls())
	}
	if err := Apply(dev, baseline()); err != nil {
		t.Fatal(err)
	}
	if dev.AccelOffset != baseline().MPU6050.Accel || dev.GyroOffset != baseline().MPU6050.Gyro {
		t.Errorf("offsets = %+v / %+v", dev.AccelOffset, dev.GyroOffset)
	}
}

func TestParse(t *testing.T) {
	if s, err := ParseStrategy("Manual"); err != nil || s != Manual {
		t.Errorf("ParseStrategy(Manual) = %v, %v", s, err)
	}
	if _, err := ParseStrategy("sometimes"); err == nil {
		t.Error("ParseStrategy accepted garbage")
	}
	if tg, err := ParseTarget("gyroscope"); err != nil || tg != Gyro {
		t.Errorf("ParseTarget(gyroscope) = %v, %v", tg, err)
	}
}
