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

// Package api defines the fixed binary layouts shared with the bootloader.
//
// All multi-byte integers are little-endian. Structures are encoded field by
// field with encoding/binary, so no implicit alignment padding is ever
// introduced: every reserved or padding byte is an explicit field.
package api

import "fmt"

const (
	// HeaderSignature is the magic value opening both the application header
	// and the encrypted image metadata. It MUST match the bootloader.
	HeaderSignature = 0xACEDD00B
	// TrailerSignature is the magic value closing the encrypted image
	// metadata.
	TrailerSignature = 0xF3EDB057
)

const (
	// StringLength is the width of the datetime and version fields.
	StringLength = 32
	// ImageTagLength is the width of the metadata image tag field.
	ImageTagLength = 28
	// HeaderPaddingLength is the width of the patterned filler closing the
	// application header.
	HeaderPaddingLength = 176

	// HeaderLength is the encoded size of ImageHeader.
	HeaderLength = 256
	// MetadataLength is the encoded size of Metadata.
	MetadataLength = 128

	// BlockSize is the granularity firmware is padded to before encryption,
	// matching the bootloader flash write size.
	BlockSize = 128
)

const (
	// IVLength is the AES-GCM nonce length.
	IVLength = 12
	// FillerLength is the length of the fixed filler following the IV.
	FillerLength = 4
	// AuthTagLength is the AES-GCM authentication tag length.
	AuthTagLength = 16
	// EnvelopeOverhead is the number of bytes preceding the ciphertext in an
	// encrypted image.
	EnvelopeOverhead = IVLength + FillerLength + AuthTagLength

	// AESKeyLength is the only supported AES key size (AES-128).
	AESKeyLength = 16
)

const (
	// RSAModulusLength is the fixed width of an RSA modulus in key records
	// (2048-bit keys).
	RSAModulusLength = 256
	// RSAExponentLength is the fixed width of the public exponent in the
	// private key record.
	RSAExponentLength = 4
	// RSAPrivateExponentLength is the fixed width of the private exponent in
	// the private key record.
	RSAPrivateExponentLength = 256

	// SignatureLength is the length of an RSA-2048 signature prefixing a
	// signed image.
	SignatureLength = RSAModulusLength
)

// Filler is the fixed pattern separating the IV from the authentication tag.
var Filler = [FillerLength]byte{0xA5, 0x5A, 0xAA, 0x55}

// FillPattern is the two byte pattern used for unused header space.
var FillPattern = [2]byte{0xAA, 0x55}

// Pattern returns n bytes of FillPattern repeated.
func Pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = FillPattern[i%len(FillPattern)]
	}
	return b
}

// PaddedLength returns l rounded up to the next multiple of BlockSize.
func PaddedLength(l int) int {
	if r := l % BlockSize; r != 0 {
		return l + BlockSize - r
	}
	return l
}

// SizeError reports a buffer whose length does not match a fixed layout.
type SizeError struct {
	What     string
	Expected int
	Actual   int
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("%s: expected %d bytes, got %d", e.What, e.Expected, e.Actual)
}

// Unwrap allows errors.Is(err, ErrFormat) on size mismatches.
func (e *SizeError) Unwrap() error {
	return ErrFormat
}
