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

package crc

import (
	"bytes"
	"testing"
)

// reference computes the checksum byte by byte exactly as the bootloader
// does, to pin the table-driven implementation to it.
func reference(data []byte) uint32 {
	v := uint32(0xFFFFFFFF)
	for _, b := range data {
		v = (v >> 8) ^ Table[(v^uint32(b))&0xFF]
	}
	return ^v
}

func TestChecksum(t *testing.T) {
	for _, test := range []struct {
		name string
		in   []byte
		want uint32
	}{
		{name: "empty", in: []byte{}, want: 0x00000000},
		{name: "check value", in: []byte("123456789"), want: 0xCBF43926},
		{name: "single zero", in: []byte{0}, want: 0xD202EF8D},
		{name: "fox", in: []byte("The quick brown fox jumps over the lazy dog"), want: 0x414FA339},
	} {
		t.Run(test.name, func(t *testing.T) {
			if got := Checksum(test.in); got != test.want {
				t.Errorf("Checksum() = %#08x, want %#08x", got, test.want)
			}
			if got := reference(test.in); got != test.want {
				t.Errorf("reference() = %#08x, want %#08x", got, test.want)
			}
		})
	}
}

func TestTable(t *testing.T) {
	for _, test := range []struct {
		i    int
		want uint32
	}{
		{0, 0x00000000}, {1, 0x77073096}, {128, 0xEDB88320}, {255, 0x2D02EF8D},
	} {
		if got := Table[test.i]; got != test.want {
			t.Errorf("Table[%d] = %#08x, want %#08x", test.i, got, test.want)
		}
	}
}

func TestUpdateMatchesChecksum(t *testing.T) {
	data := bytes.Repeat([]byte("firmware"), 100)
	var c uint32
	for i := 0; i < len(data); i += 128 {
		end := i + 128
		if end > len(data) {
			end = len(data)
		}
		c = Update(c, data[i:end])
	}
	if got, want := c, Checksum(data); got != want {
		t.Fatalf("chunked Update() = %#08x, want %#08x", got, want)
	}
	if got, want := c, reference(data); got != want {
		t.Fatalf("chunked Update() = %#08x, reference %#08x", got, want)
	}
}
