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

// The keyextract tool converts PEM encoded RSA keys into the binary records
// compiled into bootloader firmware.
package main

import (
	"flag"

	"k8s.io/klog/v2"

	"github.com/transparency-dev/armored-witness-image/internal/build"
	"github.com/transparency-dev/armored-witness-image/internal/keys"
)

var (
	privateKey = flag.String("private", "", "RSA private key PEM, written as key_data.bin.")
	publicKey  = flag.String("public", "", "RSA public key PEM, written as public.bin. Defaults to the public half of -private.")
	outDir     = flag.String("out_dir", ".", "Directory to write the records to.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	if *privateKey == "" && *publicKey == "" {
		flag.Usage()
		klog.Exitf("At least one of -private and -public is required")
	}

	var pub keys.Key
	if *privateKey != "" {
		priv := loadOrDie(*privateKey)
		p, err := build.WritePrivateRecord(*outDir, priv)
		if err != nil {
			klog.Exitf("Failed to write private key record: %v", err)
		}
		writeCHeader(p, "rsaKeyBuf")
		pub = priv
	}
	if *publicKey != "" {
		pub = loadOrDie(*publicKey)
	}

	p, err := build.WritePublicRecord(*outDir, pub)
	if err != nil {
		klog.Exitf("Failed to write public key record: %v", err)
	}
	writeCHeader(p, "rsaPublicKeyBuf")
}

func loadOrDie(p string) keys.Key {
	k, err := keys.Load(p)
	if err != nil {
		klog.Exitf("Failed to load key: %v", err)
	}
	klog.V(1).Infof("Loaded %v from %q", k.Kind(), p)
	return k
}
