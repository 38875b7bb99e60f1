// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calibration

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestFileStoreMissingIsNone(t *testing.T) {
	s := NewFileStore(t.TempDir())
	r, err := s.Load(4)
	if err != nil {
		t.Fatal(err)
	}
	if r.Kind != KindNone || r.MPU6050 != nil {
		t.Errorf("record = %+v", r)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "calib")
	s := NewFileStore(dir)
	want := baseline()
	if err := s.Save(2, want); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load(2)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("loaded %+v, want %+v", got, want)
	}

	// Only the final file is left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "sensor_2.yaml" {
		t.Errorf("directory holds %v", entries)
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "sensor_0.yaml"), []byte("kind: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := NewFileStore(dir).Load(0)
	if !errors.Is(err, ErrIO) {
		t.Fatalf("err = %v, want ErrIO", err)
	}
}

func TestFileStoreUnwritableDir(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	err := NewFileStore(filepath.Join(blocker, "sub")).Save(0, baseline())
	if !errors.Is(err, ErrIO) {
		t.Fatalf("err = %v, want ErrIO", err)
	}
}
