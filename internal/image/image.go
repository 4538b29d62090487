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

// Package image packs the fixed-layout structures which precede firmware in
// bootloader images.
package image

import (
	"fmt"
	"time"

	"github.com/coreos/go-semver/semver"

	"github.com/transparency-dev/armored-witness-image/api"
)

// TimestampFormat is the ISO-8601, seconds precision, local time format
// stored in headers and metadata.
const TimestampFormat = "2006-01-02T15:04:05"

// Options carries the framing constants agreed with the bootloader.
type Options struct {
	HeaderSignature  uint32
	TrailerSignature uint32
}

// DefaultOptions returns the framing constants defined in package api.
func DefaultOptions() Options {
	return Options{
		HeaderSignature:  api.HeaderSignature,
		TrailerSignature: api.TrailerSignature,
	}
}

// Timestamp formats t for storage in a header or metadata string field.
func Timestamp(t time.Time) string {
	return t.Format(TimestampFormat)
}

// ValidateVersion checks that v is a MM.mm.rr version string.
func ValidateVersion(v string) error {
	if _, err := semver.NewVersion(v); err != nil {
		return fmt.Errorf("invalid image version %q (want MM.mm.rr): %v", v, err)
	}
	return nil
}

// HeaderFields holds the variable fields of an application header.
type HeaderFields struct {
	Flags uint32
	// ImageSize is the length of the unpadded firmware.
	ImageSize    uint32
	Time         time.Time
	Version      string
	DeviceTypeID uint32
}

// NewHeader builds the application header for an unencrypted image.
func NewHeader(f HeaderFields, o Options) *api.ImageHeader {
	h := &api.ImageHeader{
		Signature:    o.HeaderSignature,
		Flags:        f.Flags,
		ImageSize:    f.ImageSize,
		DeviceTypeID: f.DeviceTypeID,
	}
	api.PutString(h.Datetime[:], Timestamp(f.Time))
	api.PutString(h.Version[:], f.Version)
	copy(h.Padding[:], api.Pattern(api.HeaderPaddingLength))

	return h
}

// MetadataFields holds the caller supplied fields of encrypted image
// metadata. Length and CRC are derived from the firmware.
type MetadataFields struct {
	ImageIndex       uint32
	FlashBaseAddress uint32
	DeviceType       uint32
	DeviceVariant    uint32
	Time             time.Time
	Version          string
	// ImageTag is optional, an empty tag is stored as all zeros.
	ImageTag     string
	CoreAffinity uint8
}

// NewMetadata builds encrypted image metadata for padded firmware of the
// given length and CRC.
func NewMetadata(f MetadataFields, length uint32, crc uint32, o Options) *api.Metadata {
	m := &api.Metadata{
		HeaderSignature:  o.HeaderSignature,
		ImageIndex:       f.ImageIndex,
		FlashBaseAddress: f.FlashBaseAddress,
		ImageLength:      length,
		DeviceType:       f.DeviceType,
		DeviceVariant:    f.DeviceVariant,
		RawImageCRC:      crc,
		CoreAffinity:     f.CoreAffinity,
		TrailerSignature: o.TrailerSignature,
	}
	api.PutString(m.CreationDatetime[:], Timestamp(f.Time))
	api.PutString(m.Version[:], f.Version)
	api.PutString(m.ImageTag[:], f.ImageTag)

	return m
}

// Pad returns a copy of fw with zeros appended up to the next multiple of
// api.BlockSize.
func Pad(fw []byte) []byte {
	p := make([]byte, api.PaddedLength(len(fw)))
	copy(p, fw)
	return p
}
