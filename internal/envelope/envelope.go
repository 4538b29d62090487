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

// Package envelope encrypts firmware images with AES-128-GCM.
//
// An encrypted image is laid out as:
//
//	iv[12] | filler A5 5A AA 55 | tag[16] | ciphertext
//
// where the ciphertext covers the image metadata followed by the firmware,
// zero padded to api.BlockSize. No additional data is authenticated.
package envelope

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/cheggaaa/pb/v3"
	"k8s.io/klog/v2"

	"github.com/transparency-dev/armored-witness-image/api"
	"github.com/transparency-dev/armored-witness-image/internal/crc"
	"github.com/transparency-dev/armored-witness-image/internal/image"
)

// Options controls sealing.
type Options struct {
	// Image carries the framing signatures written into the metadata.
	Image image.Options
	// Rand is the IV source, crypto/rand.Reader when nil.
	Rand io.Reader
	// Progress, when set, receives a progress bar tracking the plaintext
	// assembly.
	Progress io.Writer
}

// Sealed is the result of encrypting an image.
type Sealed struct {
	// Envelope is the encrypted image.
	Envelope []byte
	IV       [api.IVLength]byte
	Tag      [api.AuthTagLength]byte
	// Metadata is the plaintext metadata prefixed to Padded before
	// encryption.
	Metadata *api.Metadata
	// Padded is the zero padded firmware.
	Padded []byte
}

// Plaintext returns the metadata followed by the padded firmware, which is
// what the bootloader sees after decryption.
func (s *Sealed) Plaintext() []byte {
	return append(s.Metadata.Bytes(), s.Padded...)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != api.AESKeyLength {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", api.ErrKeyLength, len(key), api.AESKeyLength)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", api.ErrKeyLength, err)
	}
	// NewGCM defaults to a 12 byte nonce and a 16 byte tag.
	return cipher.NewGCM(block)
}

// Seal pads fw, computes its CRC and metadata, and encrypts both under key.
func Seal(fw []byte, key []byte, f image.MetadataFields, o Options) (*Sealed, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	padded := image.Pad(fw)
	sum := crc.Checksum(padded)
	md := image.NewMetadata(f, uint32(len(padded)), sum, o.Image)
	klog.V(1).Infof("Firmware %d bytes, padded to %d, CRC32 %#08x", len(fw), len(padded), sum)

	s := &Sealed{
		Metadata: md,
		Padded:   padded,
	}

	rnd := o.Rand
	if rnd == nil {
		rnd = rand.Reader
	}
	if _, err := io.ReadFull(rnd, s.IV[:]); err != nil {
		return nil, fmt.Errorf("%w: generating IV: %v", api.ErrIO, err)
	}

	plaintext, err := assemble(md.Bytes(), padded, o.Progress)
	if err != nil {
		return nil, err
	}

	sealed := aead.Seal(nil, s.IV[:], plaintext, nil)
	ct, tag := sealed[:len(sealed)-api.AuthTagLength], sealed[len(sealed)-api.AuthTagLength:]
	copy(s.Tag[:], tag)

	env := make([]byte, 0, api.EnvelopeOverhead+len(ct))
	env = append(env, s.IV[:]...)
	env = append(env, api.Filler[:]...)
	env = append(env, s.Tag[:]...)
	env = append(env, ct...)
	s.Envelope = env

	klog.V(1).Infof("IV  %x", s.IV)
	klog.V(1).Infof("Tag %x", s.Tag)

	return s, nil
}

// assemble concatenates the metadata and padded firmware in BlockSize
// chunks, in order, optionally reporting progress.
func assemble(md []byte, padded []byte, progress io.Writer) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Grow(len(md) + len(padded))

	var w io.Writer = buf
	if progress != nil {
		bar := pb.New(len(md) + len(padded))
		bar.SetTemplate(pb.Simple)
		bar.Set(pb.Bytes, true)
		bar.SetWriter(progress)
		bar.Start()
		defer bar.Finish()
		w = bar.NewProxyWriter(buf)
	}

	for _, part := range [][]byte{md, padded} {
		for off := 0; off < len(part); off += api.BlockSize {
			end := min(off+api.BlockSize, len(part))
			if _, err := w.Write(part[off:end]); err != nil {
				return nil, fmt.Errorf("%w: assembling plaintext: %v", api.ErrIO, err)
			}
		}
	}

	return buf.Bytes(), nil
}

// Envelope is a parsed, still encrypted, image.
type Envelope struct {
	IV         [api.IVLength]byte
	Tag        [api.AuthTagLength]byte
	Ciphertext []byte
}

// Parse splits an encrypted image into its parts.
func Parse(b []byte) (*Envelope, error) {
	if len(b) < api.EnvelopeOverhead+api.MetadataLength {
		return nil, &api.SizeError{What: "encrypted image", Expected: api.EnvelopeOverhead + api.MetadataLength, Actual: len(b)}
	}
	if !bytes.Equal(b[api.IVLength:api.IVLength+api.FillerLength], api.Filler[:]) {
		return nil, fmt.Errorf("%w: filler %x, want %x", api.ErrFormat, b[api.IVLength:api.IVLength+api.FillerLength], api.Filler)
	}

	e := &Envelope{
		Ciphertext: b[api.EnvelopeOverhead:],
	}
	copy(e.IV[:], b)
	copy(e.Tag[:], b[api.IVLength+api.FillerLength:])
	return e, nil
}

// Open authenticates and decrypts an encrypted image, returning the
// metadata and padded firmware plaintext.
func Open(b []byte, key []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	e, err := Parse(b)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(e.Ciphertext)+api.AuthTagLength)
	sealed = append(sealed, e.Ciphertext...)
	sealed = append(sealed, e.Tag[:]...)

	pt, err := aead.Open(nil, e.IV[:], sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", api.ErrAuthentication, err)
	}
	return pt, nil
}

// Decode opens an encrypted image and checks the metadata it contains
// against the firmware: framing signatures, padded length and CRC.
func Decode(b []byte, key []byte, o image.Options) (*api.Metadata, []byte, error) {
	pt, err := Open(b, key)
	if err != nil {
		return nil, nil, err
	}

	md := &api.Metadata{}
	if err := md.UnmarshalSigned(pt, o.HeaderSignature, o.TrailerSignature); err != nil {
		return nil, nil, err
	}
	fw := pt[api.MetadataLength:]
	if int(md.ImageLength) != len(fw) {
		return nil, nil, fmt.Errorf("%w: metadata image length %d, firmware is %d bytes", api.ErrFormat, md.ImageLength, len(fw))
	}
	if got := crc.Checksum(fw); got != md.RawImageCRC {
		return nil, nil, fmt.Errorf("%w: firmware CRC32 %#08x, metadata says %#08x", api.ErrFormat, got, md.RawImageCRC)
	}
	return md, fw, nil
}
