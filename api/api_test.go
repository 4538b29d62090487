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

package api

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLayoutSizes(t *testing.T) {
	for _, test := range []struct {
		name string
		v    any
		want int
	}{
		{name: "header", v: ImageHeader{}, want: HeaderLength},
		{name: "metadata", v: Metadata{}, want: MetadataLength},
	} {
		t.Run(test.name, func(t *testing.T) {
			if got := binary.Size(test.v); got != test.want {
				t.Fatalf("binary.Size() = %d, want %d", got, test.want)
			}
		})
	}
}

func TestHeaderOffsets(t *testing.T) {
	h := &ImageHeader{
		Signature:    HeaderSignature,
		Flags:        0x01020304,
		ImageSize:    37,
		DeviceTypeID: 2,
	}
	PutString(h.Datetime[:], "2024-01-02T03:04:05")
	PutString(h.Version[:], "1.0.0")
	copy(h.Padding[:], Pattern(HeaderPaddingLength))

	b := h.Bytes()
	if got, want := len(b), HeaderLength; got != want {
		t.Fatalf("len(Bytes()) = %d, want %d", got, want)
	}
	if got, want := b[0:4], []byte{0x0b, 0xd0, 0xed, 0xac}; !bytes.Equal(got, want) {
		t.Errorf("signature bytes = %x, want %x", got, want)
	}
	if got, want := binary.LittleEndian.Uint32(b[4:]), uint32(0x01020304); got != want {
		t.Errorf("flags = %#x, want %#x", got, want)
	}
	if got, want := CString(b[12:44]), "2024-01-02T03:04:05"; got != want {
		t.Errorf("datetime = %q, want %q", got, want)
	}
	if got, want := CString(b[44:76]), "1.0.0"; got != want {
		t.Errorf("version = %q, want %q", got, want)
	}
	if got, want := binary.LittleEndian.Uint32(b[76:]), uint32(2); got != want {
		t.Errorf("device type = %d, want %d", got, want)
	}
	if got, want := b[80:82], []byte{0xAA, 0x55}; !bytes.Equal(got, want) {
		t.Errorf("padding starts %x, want %x", got, want)
	}

	var got ImageHeader
	if err := got.Unmarshal(b); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if diff := cmp.Diff(*h, got); diff != "" {
		t.Fatalf("round trip diff: %s", diff)
	}
}

func TestMetadataOffsets(t *testing.T) {
	m := &Metadata{
		HeaderSignature:  HeaderSignature,
		ImageIndex:       1,
		FlashBaseAddress: 0x08000000,
		ImageLength:      128,
		DeviceType:       2,
		DeviceVariant:    3,
		RawImageCRC:      0xCBF43926,
		CoreAffinity:     1,
		TrailerSignature: TrailerSignature,
	}
	PutString(m.ImageTag[:], "nightly")

	b := m.Bytes()
	if got, want := len(b), MetadataLength; got != want {
		t.Fatalf("len(Bytes()) = %d, want %d", got, want)
	}
	if got, want := binary.LittleEndian.Uint32(b[8:]), uint32(0x08000000); got != want {
		t.Errorf("flash base = %#x, want %#x", got, want)
	}
	if got, want := CString(b[88:116]), "nightly"; got != want {
		t.Errorf("tag = %q, want %q", got, want)
	}
	if got, want := binary.LittleEndian.Uint32(b[116:]), uint32(0xCBF43926); got != want {
		t.Errorf("crc = %#x, want %#x", got, want)
	}
	if got, want := b[120:124], []byte{1, 0, 0, 0}; !bytes.Equal(got, want) {
		t.Errorf("core affinity + reserved = %x, want %x", got, want)
	}
	if got, want := binary.LittleEndian.Uint32(b[124:]), uint32(TrailerSignature); got != want {
		t.Errorf("trailer = %#x, want %#x", got, want)
	}

	var got Metadata
	if err := got.Unmarshal(b); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if diff := cmp.Diff(*m, got); diff != "" {
		t.Fatalf("round trip diff: %s", diff)
	}
}

func TestMetadataUnmarshalErrors(t *testing.T) {
	good := (&Metadata{HeaderSignature: HeaderSignature, TrailerSignature: TrailerSignature}).Bytes()
	badTrailer := append([]byte(nil), good...)
	badTrailer[MetadataLength-1] ^= 0xff
	badHeader := append([]byte(nil), good...)
	badHeader[0] ^= 0xff

	for _, test := range []struct {
		name string
		buf  []byte
	}{
		{name: "short", buf: good[:MetadataLength-1]},
		{name: "bad header signature", buf: badHeader},
		{name: "bad trailer signature", buf: badTrailer},
	} {
		t.Run(test.name, func(t *testing.T) {
			var m Metadata
			if err := m.Unmarshal(test.buf); !errors.Is(err, ErrFormat) {
				t.Fatalf("Unmarshal() = %v, want ErrFormat", err)
			}
		})
	}
}

func TestPutString(t *testing.T) {
	for _, test := range []struct {
		name  string
		in    string
		width int
		want  string
	}{
		{name: "short", in: "1.0.0", width: StringLength, want: "1.0.0"},
		{name: "exact", in: strings.Repeat("a", 31), width: StringLength, want: strings.Repeat("a", 31)},
		{name: "truncated", in: strings.Repeat("v", 40), width: StringLength, want: strings.Repeat("v", 31)},
		{name: "tag truncated", in: strings.Repeat("t", 40), width: ImageTagLength, want: strings.Repeat("t", 27)},
		{name: "empty", in: "", width: ImageTagLength, want: ""},
	} {
		t.Run(test.name, func(t *testing.T) {
			dst := bytes.Repeat([]byte{0xff}, test.width)
			PutString(dst, test.in)
			if got := CString(dst); got != test.want {
				t.Errorf("CString() = %q, want %q", got, test.want)
			}
			if dst[test.width-1] != 0 {
				t.Errorf("last byte = %#x, want NUL", dst[test.width-1])
			}
			for i := len(test.want); i < test.width; i++ {
				if dst[i] != 0 {
					t.Fatalf("byte %d = %#x, want 0", i, dst[i])
				}
			}
		})
	}
}

func TestPattern(t *testing.T) {
	p := Pattern(5)
	if want := []byte{0xAA, 0x55, 0xAA, 0x55, 0xAA}; !bytes.Equal(p, want) {
		t.Fatalf("Pattern(5) = %x, want %x", p, want)
	}
}

func TestPaddedLength(t *testing.T) {
	for _, test := range []struct {
		in, want int
	}{
		{0, 0}, {1, 128}, {37, 128}, {127, 128}, {128, 128}, {129, 256}, {1000, 1024},
	} {
		if got := PaddedLength(test.in); got != test.want {
			t.Errorf("PaddedLength(%d) = %d, want %d", test.in, got, test.want)
		}
	}
}

func TestSizeErrorIsFormat(t *testing.T) {
	var h ImageHeader
	err := h.Unmarshal(make([]byte, 10))
	if !errors.Is(err, ErrFormat) {
		t.Fatalf("Unmarshal() = %v, want ErrFormat", err)
	}
	var se *SizeError
	if !errors.As(err, &se) || se.Expected != HeaderLength || se.Actual != 10 {
		t.Fatalf("Unmarshal() = %#v, want SizeError{%d, 10}", err, HeaderLength)
	}
}
