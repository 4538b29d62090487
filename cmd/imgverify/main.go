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

// The imgverify tool checks a bootloader image the way the bootloader would:
// signature, decryption, framing signatures, lengths and CRC.
package main

import (
	"crypto/rsa"
	"flag"
	"fmt"
	"os"
	"strings"

	"k8s.io/klog/v2"

	"github.com/transparency-dev/armored-witness-image/api"
	"github.com/transparency-dev/armored-witness-image/internal/config"
	"github.com/transparency-dev/armored-witness-image/internal/envelope"
	"github.com/transparency-dev/armored-witness-image/internal/fileutil"
	"github.com/transparency-dev/armored-witness-image/internal/keys"
	"github.com/transparency-dev/armored-witness-image/internal/manifest"
	"github.com/transparency-dev/armored-witness-image/internal/sign"
)

var (
	imageFile    = flag.String("i", "", "Image to verify.")
	publicKey    = flag.String("public", "", "RSA public key PEM. If set the image must be signed.")
	publicRecord = flag.String("public_record", "", "Public key record (public.bin), alternative to -public.")
	encryptKey   = flag.String("encrypt_key", "", "File holding the 16 byte AES key of an encrypted image.")
	configFile   = flag.String("config", "", "YAML file overriding the built-in device table and framing signatures.")

	manifestFile   = flag.String("manifest", "", "Release manifest which must describe the image.")
	manifestPubKey = flag.String("manifest_pubkey", "", "File containing a note verifier string for -manifest. Unsigned manifests are accepted when empty.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	if *imageFile == "" {
		flag.Usage()
		klog.Exitf("-i is required")
	}
	cfg, err := config.Load(*configFile)
	if err != nil {
		klog.Exitf("Failed to load configuration: %v", err)
	}

	img, err := fileutil.ReadInput(*imageFile, "image")
	if err != nil {
		klog.Exitf("%v", err)
	}
	if *manifestFile != "" {
		checkManifestOrDie(img)
	}

	payload := img
	if v := verifierOrDie(); v != nil {
		if payload, err = sign.VerifyImage(v, img, api.SignatureLength); err != nil {
			klog.Exitf("Signature check failed: %v", err)
		}
		klog.Infof("Signature OK")
	}

	if *encryptKey != "" {
		key, err := fileutil.ReadInput(*encryptKey, "AES key")
		if err != nil {
			klog.Exitf("%v", err)
		}
		md, _, err := envelope.Decode(payload, key, cfg.ImageOptions())
		if err != nil {
			klog.Exitf("Encrypted image check failed: %v", err)
		}
		fmt.Printf("%s\nDevice name ............: %s\n", md, deviceName(cfg, md.DeviceType))
		return
	}

	h := &api.ImageHeader{}
	if err := h.UnmarshalSigned(payload, cfg.HeaderSignature); err != nil {
		klog.Exitf("Image header check failed: %v", err)
	}
	if got := len(payload) - api.HeaderLength; got != int(h.ImageSize) {
		klog.Exitf("Image header says %d bytes of firmware, image holds %d", h.ImageSize, got)
	}
	fmt.Printf("%s\nDevice name ............: %s\n", h, deviceName(cfg, h.DeviceTypeID))
}

func deviceName(cfg *config.Config, id uint32) string {
	for _, d := range cfg.Devices {
		if d.ID == id {
			return d.Name
		}
	}
	return "unknown"
}

func verifierOrDie() sign.Verifier {
	var pub *rsa.PublicKey
	switch {
	case *publicKey != "":
		k, err := keys.Load(*publicKey)
		if err != nil {
			klog.Exitf("Failed to load key: %v", err)
		}
		if pub, err = k.PublicKey(); err != nil {
			klog.Exitf("Invalid public key: %v", err)
		}
	case *publicRecord != "":
		rec, err := fileutil.ReadInput(*publicRecord, "public key record")
		if err != nil {
			klog.Exitf("%v", err)
		}
		if pub, err = keys.ParsePublicRecord(rec); err != nil {
			klog.Exitf("Invalid public key record: %v", err)
		}
	default:
		return nil
	}
	v, err := sign.NewRSAVerifier(pub)
	if err != nil {
		klog.Exitf("Invalid public key: %v", err)
	}
	return v
}

func checkManifestOrDie(img []byte) {
	b, err := fileutil.ReadInput(*manifestFile, "manifest")
	if err != nil {
		klog.Exitf("%v", err)
	}

	var m *manifest.Manifest
	if *manifestPubKey != "" {
		vs, err := os.ReadFile(*manifestPubKey)
		if err != nil {
			klog.Exitf("Failed to read manifest pub key file %q: %v", *manifestPubKey, err)
		}
		v, err := manifest.NewVerifier(strings.TrimSpace(string(vs)))
		if err != nil {
			klog.Exitf("%v", err)
		}
		m, err = manifest.Open(b, v)
		if err != nil {
			klog.Exitf("%v", err)
		}
		klog.Infof("Manifest signature OK, leaf hash %x", manifest.LeafHash(b))
	} else if m, err = manifest.Parse(b); err != nil {
		klog.Exitf("%v", err)
	}

	if err := m.CheckImage(img); err != nil {
		klog.Exitf("Manifest does not match image: %v", err)
	}
	klog.Infof("Manifest OK: %s %s", m.Device, m.Version)
}
