// Copyright (c) 2025 BVK Chaitanya

// Package store persists fibwatch state as JSON snapshot files. Snapshots
// are written to a temporary file and renamed into place so that a crash
// mid-write can never corrupt the previous snapshot.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Write marshals the given value and atomically replaces the file at fpath
// with the result.
func Write[T any](fpath string, v *T) (status error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("could not json-encode value for %q: %w", fpath, err)
	}
	dir, base := filepath.Split(fpath)
	if dir == "" {
		dir = "."
	}
	fp, err := os.CreateTemp(dir, "."+base+".tmp*")
	if err != nil {
		return fmt.Errorf("could not create temporary file in %q: %w", dir, err)
	}
	defer func() {
		if status != nil {
			fp.Close()
			os.Remove(fp.Name())
		}
	}()
	if _, err := fp.Write(data); err != nil {
		return fmt.Errorf("could not write snapshot data: %w", err)
	}
	if err := fp.Sync(); err != nil {
		return fmt.Errorf("could not sync snapshot data: %w", err)
	}
	if err := fp.Close(); err != nil {
		return fmt.Errorf("could not close temporary file: %w", err)
	}
	if err := os.Chmod(fp.Name(), 0600); err != nil {
		return fmt.Errorf("could not set snapshot file mode: %w", err)
	}
	if err := os.Rename(fp.Name(), fpath); err != nil {
		return fmt.Errorf("could not rename snapshot into place: %w", err)
	}
	return nil
}

// Read unmarshals the file at fpath into a new value of type T. Returns
// os.ErrNotExist (wrapped) if the file does not exist.
func Read[T any](fpath string) (*T, error) {
	data, err := os.ReadFile(fpath)
	if err != nil {
		return nil, fmt.Errorf("could not read %q: %w", fpath, err)
	}
	v := new(T)
	if err := json.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("could not json-decode %q: %w", fpath, err)
	}
	return v, nil
}
