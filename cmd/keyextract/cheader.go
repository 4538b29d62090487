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

package main

import (
	"bytes"
	"flag"
	"os"
	"strings"

	"k8s.io/klog/v2"

	"github.com/transparency-dev/armored-witness-image/internal/carray"
	"github.com/transparency-dev/armored-witness-image/internal/fileutil"
)

var cHeader = flag.Bool("c_header", false, "Also write each record as a C header, next to the record. Debug builds only.")

func writeCHeader(record string, name string) {
	if !*cHeader {
		return
	}
	rec, err := os.ReadFile(record)
	if err != nil {
		klog.Exitf("Failed to read back %q: %v", record, err)
	}

	var b bytes.Buffer
	if err := carray.Write(&b, name, "Auto-generated RSA key data", rec); err != nil {
		klog.Exitf("Failed to render C header: %v", err)
	}
	p := strings.TrimSuffix(record, ".bin") + ".h"
	if err := fileutil.WriteAtomic(p, b.Bytes(), 0o600); err != nil {
		klog.Exitf("Failed to write C header: %v", err)
	}
	klog.Infof("Wrote C header %q", p)
}
