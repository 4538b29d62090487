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
	"fmt"
	"strings"
)

// Metadata precedes the padded firmware inside an encrypted image. It is
// encrypted together with the firmware.
//
//	offset  size  field
//	     0     4  HeaderSignature (HeaderSignature)
//	     4     4  ImageIndex
//	     8     4  FlashBaseAddress
//	    12     4  ImageLength (padded firmware length)
//	    16     4  DeviceType
//	    20     4  DeviceVariant
//	    24    32  CreationDatetime, NUL terminated
//	    56    32  Version, NUL terminated
//	    88    28  ImageTag, NUL terminated
//	   116     4  RawImageCRC (CRC32 of the padded firmware)
//	   120     1  CoreAffinity
//	   121     3  Reserved (zero)
//	   124     4  TrailerSignature (TrailerSignature)
type Metadata struct {
	HeaderSignature  uint32
	ImageIndex       uint32
	FlashBaseAddress uint32
	ImageLength      uint32
	DeviceType       uint32
	DeviceVariant    uint32
	CreationDatetime [StringLength]byte
	Version          [StringLength]byte
	ImageTag         [ImageTagLength]byte
	RawImageCRC      uint32
	CoreAffinity     uint8
	Reserved         [3]byte
	TrailerSignature uint32
}

// Bytes converts the metadata structure to its wire format.
func (m *Metadata) Bytes() []byte {
	buf := new(bytes.Buffer)
	buf.Grow(MetadataLength)
	_ = binary.Write(buf, binary.LittleEndian, m)
	return buf.Bytes()
}

// Unmarshal parses metadata from the first MetadataLength bytes of buf and
// checks both framing signatures.
func (m *Metadata) Unmarshal(buf []byte) error {
	return m.UnmarshalSigned(buf, HeaderSignature, TrailerSignature)
}

// UnmarshalSigned is Unmarshal with non-default framing signatures.
func (m *Metadata) UnmarshalSigned(buf []byte, header, trailer uint32) error {
	if len(buf) < MetadataLength {
		return &SizeError{What: "image metadata", Expected: MetadataLength, Actual: len(buf)}
	}
	if err := binary.Read(bytes.NewReader(buf[:MetadataLength]), binary.LittleEndian, m); err != nil {
		return fmt.Errorf("%w: image metadata: %v", ErrFormat, err)
	}
	if m.HeaderSignature != header {
		return fmt.Errorf("%w: metadata header signature %#08x", ErrFormat, m.HeaderSignature)
	}
	if m.TrailerSignature != trailer {
		return fmt.Errorf("%w: metadata trailer signature %#08x", ErrFormat, m.TrailerSignature)
	}
	return nil
}

// String returns a summary of the metadata.
func (m *Metadata) String() string {
	var s strings.Builder

	fmt.Fprintf(&s, "Image index ............: %d\n", m.ImageIndex)
	fmt.Fprintf(&s, "Flash target address ...: %#08x\n", m.FlashBaseAddress)
	fmt.Fprintf(&s, "Image length ...........: %d\n", m.ImageLength)
	fmt.Fprintf(&s, "Device type ............: %d\n", m.DeviceType)
	fmt.Fprintf(&s, "Device variant .........: %d\n", m.DeviceVariant)
	fmt.Fprintf(&s, "Date/Time ..............: %s\n", CString(m.CreationDatetime[:]))
	fmt.Fprintf(&s, "Version ................: %s\n", CString(m.Version[:]))
	fmt.Fprintf(&s, "Image tag ..............: %s\n", CString(m.ImageTag[:]))
	fmt.Fprintf(&s, "Raw image CRC32 ........: %#08x\n", m.RawImageCRC)
	fmt.Fprintf(&s, "Core affinity ..........: %d", m.CoreAffinity)

	return s.String()
}
