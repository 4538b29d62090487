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

// ImageHeader is the application header prefixing unencrypted images.
//
//	offset  size  field
//	     0     4  Signature (HeaderSignature)
//	     4     4  Flags
//	     8     4  ImageSize (unpadded firmware length)
//	    12    32  Datetime, NUL terminated
//	    44    32  Version, NUL terminated
//	    76     4  DeviceTypeID
//	    80   176  Padding (FillPattern)
type ImageHeader struct {
	Signature    uint32
	Flags        uint32
	ImageSize    uint32
	Datetime     [StringLength]byte
	Version      [StringLength]byte
	DeviceTypeID uint32
	Padding      [HeaderPaddingLength]byte
}

// Bytes converts the header structure to its wire format.
func (h *ImageHeader) Bytes() []byte {
	buf := new(bytes.Buffer)
	buf.Grow(HeaderLength)
	// Writes to a bytes.Buffer do not fail.
	_ = binary.Write(buf, binary.LittleEndian, h)
	return buf.Bytes()
}

// Unmarshal parses a header from the first HeaderLength bytes of buf.
func (h *ImageHeader) Unmarshal(buf []byte) error {
	return h.UnmarshalSigned(buf, HeaderSignature)
}

// UnmarshalSigned is Unmarshal with a non-default header signature.
func (h *ImageHeader) UnmarshalSigned(buf []byte, signature uint32) error {
	if len(buf) < HeaderLength {
		return &SizeError{What: "image header", Expected: HeaderLength, Actual: len(buf)}
	}
	if err := binary.Read(bytes.NewReader(buf[:HeaderLength]), binary.LittleEndian, h); err != nil {
		return fmt.Errorf("%w: image header: %v", ErrFormat, err)
	}
	if h.Signature != signature {
		return fmt.Errorf("%w: image header signature %#08x", ErrFormat, h.Signature)
	}
	return nil
}

// String returns a summary of the header in the same format used by the
// build tools.
func (h *ImageHeader) String() string {
	var s strings.Builder

	fmt.Fprintf(&s, "Signature ..............: %#08x\n", h.Signature)
	fmt.Fprintf(&s, "Flags ..................: %#x\n", h.Flags)
	fmt.Fprintf(&s, "Image size .............: %d\n", h.ImageSize)
	fmt.Fprintf(&s, "Date/Time ..............: %s\n", CString(h.Datetime[:]))
	fmt.Fprintf(&s, "Version ................: %s\n", CString(h.Version[:]))
	fmt.Fprintf(&s, "Device type ............: %d", h.DeviceTypeID)

	return s.String()
}

// PutString copies s into dst as a NUL terminated string, truncating it to
// len(dst)-1 bytes. Remaining bytes are zeroed.
func PutString(dst []byte, s string) {
	for i := range dst {
		dst[i] = 0
	}
	if len(dst) == 0 {
		return
	}
	copy(dst[:len(dst)-1], s)
}

// CString returns the contents of b up to the first NUL byte.
func CString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
