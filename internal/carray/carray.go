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

//go:build debug
// +build debug

// Package carray renders binary records as C source, for debugging firmware
// builds which compile key material in directly.
package carray

import (
	"fmt"
	"io"
	"strings"
)

// bytesPerRow matches the layout used by existing firmware headers.
const bytesPerRow = 12

// Write emits a C header declaring name as a const byte array holding b.
func Write(w io.Writer, name string, comment string, b []byte) error {
	var s strings.Builder

	s.WriteString("#pragma once\n\n")
	for _, l := range strings.Split(comment, "\n") {
		if l != "" {
			fmt.Fprintf(&s, "// %s\n", l)
		}
	}
	fmt.Fprintf(&s, "// Size: %d bytes\n\n", len(b))
	fmt.Fprintf(&s, "const unsigned char %s[%d] = {\n", name, len(b))
	for i := 0; i < len(b); i += bytesPerRow {
		row := b[i:min(i+bytesPerRow, len(b))]
		hex := make([]string, len(row))
		for j, v := range row {
			hex[j] = fmt.Sprintf("0x%02X", v)
		}
		fmt.Fprintf(&s, "    %s,\n", strings.Join(hex, ", "))
	}
	s.WriteString("};\n")

	_, err := io.WriteString(w, s.String())
	return err
}
