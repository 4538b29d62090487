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

// Package manifest describes a built image for release tooling.
//
// A manifest is a JSON document, optionally signed as a note so that it can
// be logged in a firmware transparency log and checked by release tooling.
package manifest

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/transparency-dev/merkle/rfc6962"
	"golang.org/x/mod/sumdb/note"

	"github.com/transparency-dev/armored-witness-image/api"
)

// Manifest records what was built and how.
type Manifest struct {
	// Device is the device type name, DeviceTypeID its numeric value.
	Device       string `json:"device"`
	DeviceTypeID uint32 `json:"device_type_id"`
	Version      string `json:"version"`
	ImageTag     string `json:"image_tag,omitempty"`
	// BuildTimestamp is the timestamp written into the image.
	BuildTimestamp string `json:"build_timestamp"`

	Encrypted bool `json:"encrypted"`
	Signed    bool `json:"signed"`

	// FirmwareSHA256 and FirmwareSize describe the raw input binary.
	FirmwareSHA256 []byte `json:"firmware_sha256"`
	FirmwareSize   int    `json:"firmware_size"`
	// ImageSHA256 and ImageSize describe the final image file.
	ImageSHA256 []byte `json:"image_sha256"`
	ImageSize   int    `json:"image_size"`
	// RawImageCRC is the CRC32 of the padded firmware for encrypted images.
	RawImageCRC uint32 `json:"raw_image_crc,omitempty"`
}

// SetFirmware records the digest and size of the raw firmware.
func (m *Manifest) SetFirmware(fw []byte) {
	h := sha256.Sum256(fw)
	m.FirmwareSHA256 = h[:]
	m.FirmwareSize = len(fw)
}

// SetImage records the digest and size of the final image.
func (m *Manifest) SetImage(img []byte) {
	h := sha256.Sum256(img)
	m.ImageSHA256 = h[:]
	m.ImageSize = len(img)
}

// Marshal returns the manifest as newline terminated JSON, suitable for use
// as note text.
func (m *Manifest) Marshal() ([]byte, error) {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %v", err)
	}
	return append(b, '\n'), nil
}

// CheckImage verifies that img is the image described by the manifest.
func (m *Manifest) CheckImage(img []byte) error {
	if len(img) != m.ImageSize {
		return fmt.Errorf("%w: image is %d bytes, manifest says %d", api.ErrFormat, len(img), m.ImageSize)
	}
	if h := sha256.Sum256(img); !bytes.Equal(h[:], m.ImageSHA256) {
		return fmt.Errorf("%w: image SHA256 %x, manifest says %x", api.ErrFormat, h, m.ImageSHA256)
	}
	return nil
}

// Sign returns the manifest as a note signed by s.
func Sign(m *Manifest, s note.Signer) ([]byte, error) {
	text, err := m.Marshal()
	if err != nil {
		return nil, err
	}
	n, err := note.Sign(&note.Note{Text: string(text)}, s)
	if err != nil {
		return nil, fmt.Errorf("%w: signing manifest: %v", api.ErrSignature, err)
	}
	return n, nil
}

// Open verifies a signed manifest against any of the given verifiers.
func Open(b []byte, v ...note.Verifier) (*Manifest, error) {
	n, err := note.Open(b, note.VerifierList(v...))
	if err != nil {
		return nil, fmt.Errorf("%w: opening manifest: %v", api.ErrSignature, err)
	}
	return Parse([]byte(n.Text))
}

// Parse decodes an unsigned manifest.
func Parse(b []byte) (*Manifest, error) {
	m := &Manifest{}
	if err := json.Unmarshal(b, m); err != nil {
		return nil, fmt.Errorf("%w: manifest: %v", api.ErrFormat, err)
	}
	return m, nil
}

// LeafHash returns the RFC 6962 leaf hash under which a signed manifest is
// recorded in a transparency log.
func LeafHash(signed []byte) []byte {
	return rfc6962.DefaultHasher.HashLeaf(signed)
}

// NewSigner parses a note signer key, as produced by note.GenerateKey.
func NewSigner(skey string) (note.Signer, error) {
	s, err := note.NewSigner(skey)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid note signer key: %v", api.ErrKeyType, err)
	}
	return s, nil
}

// NewVerifier parses a note verifier key.
func NewVerifier(vkey string) (note.Verifier, error) {
	v, err := note.NewVerifier(vkey)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid note verifier key: %v", api.ErrKeyType, err)
	}
	return v, nil
}
