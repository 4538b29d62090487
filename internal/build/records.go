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

package build

import (
	"path/filepath"

	"k8s.io/klog/v2"

	"github.com/transparency-dev/armored-witness-image/internal/keys"
)

// Key record file names expected by the firmware build.
const (
	PublicRecordFile  = "public.bin"
	PrivateRecordFile = "key_data.bin"
)

// WritePublicRecord writes the public key record of k into dir.
func WritePublicRecord(dir string, k keys.Key) (string, error) {
	rec, err := k.PublicRecord()
	if err != nil {
		return "", err
	}
	p := filepath.Join(dir, PublicRecordFile)
	if err := keys.WriteRecord(p, rec); err != nil {
		return "", err
	}
	klog.Infof("Wrote %d byte public key record to %q", len(rec), p)
	return p, nil
}

// WritePrivateRecord writes the embedded private key record of k into dir.
func WritePrivateRecord(dir string, k keys.Key) (string, error) {
	rec, err := k.PrivateRecord()
	if err != nil {
		return "", err
	}
	p := filepath.Join(dir, PrivateRecordFile)
	if err := keys.WriteRecord(p, rec); err != nil {
		return "", err
	}
	klog.Infof("Wrote %d byte private key record to %q", len(rec), p)
	return p, nil
}
