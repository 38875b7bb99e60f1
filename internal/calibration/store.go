// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calibration

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Store persists one Record per sensor.
type Store interface {
	// Load returns the record for sensorID, Kind None when there is none.
	Load(sensorID int) (Record, error)
	// Save replaces the record for sensorID atomically.
	Save(sensorID int, r Record) error
}

// FileStore keeps each record as a YAML file in Dir.
type FileStore struct {
	Dir string
}

// NewFileStore returns a store rooted at dir; the directory is created on
// first save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

func (s *FileStore) path(sensorID int) string {
	return filepath.Join(s.Dir, fmt.Sprintf("sensor_%d.yaml", sensorID))
}

func (s *FileStore) Load(sensorID int) (Record, error) {
	b, err := os.ReadFile(s.path(sensorID))
	if os.IsNotExist(err) {
		return Record{Kind: KindNone}, nil
	}
	if err != nil {
		return Record{}, fmt.Errorf("%w: read %s: %v", ErrIO, s.path(sensorID), err)
	}
	var r Record
	if err := yaml.Unmarshal(b, &r); err != nil {
		return Record{}, fmt.Errorf("%w: parse %s: %v", ErrIO, s.path(sensorID), err)
	}
	if r.Kind == "" {
		r.Kind = KindNone
	}
	return r, nil
}

func (s *FileStore) Save(sensorID int, r Record) error {
	b, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrIO, err)
	}
	if err := os.MkdirAll(s.Dir, 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	// Write next to the target and rename so a crash never leaves a torn file.
	tmp, err := os.CreateTemp(s.Dir, ".sensor_*.yaml.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write: %v", ErrIO, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: sync: %v", ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if err := os.Rename(tmp.Name(), s.path(sensorID)); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

// MemoryStore is a Store kept in memory; used by --mock runs and tests.
type MemoryStore struct {
	Records map[int]Record
	// SaveErr, when set, is returned by every Save.
	SaveErr error
	Saves   int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{Records: map[int]Record{}}
}

func (s *MemoryStore) Load(sensorID int) (Record, error) {
	r, ok := s.Records[sensorID]
	if !ok {
		return Record{Kind: KindNone}, nil
	}
	return r, nil
}

func (s *MemoryStore) Save(sensorID int, r Record) error {
	s.Saves++
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.Records[sensorID] = r
	return nil
}
