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

// Package crc computes the CRC-32 used by the bootloader to check flashed
// images.
//
// This is the reflected ISO-HDLC CRC-32 (polynomial 0xEDB88320 in table form,
// initial value 0xFFFFFFFF, final complement), i.e. the same checksum as zlib
// and Ethernet.
package crc

import "hash/crc32"

// Polynomial is the reflected CRC-32 polynomial.
const Polynomial = crc32.IEEE

// Table is the 256-entry lookup table derived from Polynomial.
var Table = crc32.MakeTable(Polynomial)

// Checksum returns the CRC-32 of data.
func Checksum(data []byte) uint32 {
	return crc32.Checksum(data, Table)
}

// Update returns the result of adding the bytes in p to crc, allowing large
// inputs to be checksummed in pieces. Start with crc == 0.
func Update(crc uint32, p []byte) uint32 {
	return crc32.Update(crc, Table, p)
}
