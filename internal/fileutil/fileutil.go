// Copyright 2026 The Armored Witness Image authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fileutil reads build inputs and writes build outputs.
package fileutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/machinebox/progress"
	"k8s.io/klog/v2"

	"github.com/transparency-dev/armored-witness-image/api"
)

// progressThreshold is the input size above which read progress is logged.
const progressThreshold = 16 << 20

// ReadInput reads a required input file, what describes it in errors.
func ReadInput(path, what string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s %q", api.ErrInputNotFound, what, path)
		}
		return nil, fmt.Errorf("%w: opening %s %q: %v", api.ErrIO, what, path, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			klog.Errorf("Close(%q): %v", path, err)
		}
	}()

	pr := progress.NewReader(f)
	if fi, err := f.Stat(); err == nil && fi.Size() > progressThreshold {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			for p := range progress.NewTicker(ctx, pr, fi.Size(), time.Second) {
				klog.Infof("Reading %s %q: %d%%, %v remaining...", what, path, int(p.Percent()), p.Remaining().Round(time.Second))
			}
		}()
	}

	b, err := io.ReadAll(pr)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s %q: %v", api.ErrIO, what, path, err)
	}
	return b, nil
}

// WriteAtomic writes b to a temporary file next to path and renames it into
// place, so readers never observe a partially written file.
func WriteAtomic(path string, b []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("%w: creating temp file for %q: %v", api.ErrIO, path, err)
	}
	// Harmless once the rename has succeeded.
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: writing %q: %v", api.ErrIO, tmp.Name(), err)
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: chmod %q: %v", api.ErrIO, tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing %q: %v", api.ErrIO, tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: renaming to %q: %v", api.ErrIO, path, err)
	}
	return nil
}

// RemoveStale deletes path if it exists.
func RemoveStale(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: removing %q: %v", api.ErrIO, path, err)
	}
	return nil
}
