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

// The imgbuild tool packages a firmware binary into a bootloader image,
// optionally encrypted with AES-128-GCM and signed with an RSA-2048 key.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/mod/sumdb/note"
	"k8s.io/klog/v2"

	"github.com/transparency-dev/armored-witness-image/internal/build"
	"github.com/transparency-dev/armored-witness-image/internal/config"
	"github.com/transparency-dev/armored-witness-image/internal/fileutil"
	"github.com/transparency-dev/armored-witness-image/internal/keys"
	"github.com/transparency-dev/armored-witness-image/internal/manifest"
	"github.com/transparency-dev/armored-witness-image/internal/metrics"
	"github.com/transparency-dev/armored-witness-image/internal/sign"
)

var (
	source  = flag.String("s", "", "Name of the input firmware binary, the .bin extension is optional.")
	output  = flag.String("o", "", "Name of the output image, always ends with .img. Defaults to the input name.")
	device  = flag.String("t", "", fmt.Sprintf("Device type. Built-in types are %s; -config may replace the table.", strings.Join(config.Default().DeviceNames(), ", ")))
	version = flag.String("v", "", "Image version (MM.mm.rr).")
	flags   = flag.String("f", "0", "Image flags, in hex.")

	privateKey = flag.String("private", "", "RSA private key PEM used to sign the image. Its embedded record is written to key_data.bin.")
	publicKey  = flag.String("public", "", "RSA public key PEM. Its record is written to public.bin and signed images are checked against it.")
	signCmd    = flag.String("sign_cmd", "", "External command which reads a SHA-256 digest on stdin and writes a PKCS#1 v1.5 signature to stdout. Alternative to -private.")
	recordsDir = flag.String("records_dir", "", "Directory key records are written to. Defaults to the output image's directory.")

	encryptKey = flag.String("encrypt_key", "", "File holding a 16 byte AES key. Selects the encrypted image format.")
	imageIndex = flag.Uint("image_index", 0, "Encrypted images: image slot index.")
	flashBase  = flag.String("flash_base", "0", "Encrypted images: flash base address, in hex.")
	variant    = flag.Uint("variant", 0, "Encrypted images: device variant.")
	core       = flag.Uint("core", 0, "Encrypted images: core affinity.")
	tag        = flag.String("tag", "", "Encrypted images: optional image tag.")
	progress   = flag.Bool("progress", false, "Show a progress bar while encrypting.")

	configFile   = flag.String("config", "", "YAML file overriding the built-in device table and framing signatures.")
	manifestFile = flag.String("manifest", "", "If set, a release manifest is written to this file.")
	manifestKey  = flag.String("manifest_key", "", "File containing a note signer key used to sign the manifest.")
	metricsFile  = flag.String("metrics_file", "", "If set, build metrics are written to this file in Prometheus text format.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	if *source == "" || *device == "" || *version == "" {
		flag.Usage()
		klog.Exitf("-s, -t and -v are required")
	}
	if *privateKey != "" && *signCmd != "" {
		klog.Exitf("-private and -sign_cmd are mutually exclusive")
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		klog.Exitf("Failed to load configuration: %v", err)
	}

	m := metrics.New()
	b := &build.Builder{
		Config:  cfg,
		Clock:   time.Now,
		Metrics: m,
	}
	if *progress {
		b.Progress = os.Stderr
	}

	req := build.Request{
		Source:  *source,
		Output:  *output,
		Device:  *device,
		Version: *version,
		Flags:   hexOrDie(*flags, "-f"),
	}
	_, _, out := build.Paths(req.Source, req.Output)
	dir := *recordsDir
	if dir == "" {
		dir = filepath.Dir(out)
	}

	var verifier sign.Verifier
	if *publicKey != "" {
		k := keyOrDie(*publicKey)
		if _, err := build.WritePublicRecord(dir, k); err != nil {
			klog.Exitf("Failed to write public key record: %v", err)
		}
		verifier = verifierOrDie(k)
	}
	switch {
	case *privateKey != "":
		k := keyOrDie(*privateKey)
		if _, err := build.WritePrivateRecord(dir, k); err != nil {
			klog.Exitf("Failed to write private key record: %v", err)
		}
		req.Signer = signerOrDie(k)
	case *signCmd != "":
		args := strings.Fields(*signCmd)
		req.Signer = &sign.CommandSigner{Path: args[0], Args: args[1:]}
	}

	if *encryptKey != "" {
		key, err := fileutil.ReadInput(*encryptKey, "AES key")
		if err != nil {
			klog.Exitf("Failed to read AES key: %v", err)
		}
		req.Encryption = &build.Encryption{
			Key:              key,
			ImageIndex:       uint32(*imageIndex),
			FlashBaseAddress: hexOrDie(*flashBase, "-flash_base"),
			DeviceVariant:    uint32(*variant),
			CoreAffinity:     uint8OrDie(*core, "-core"),
			ImageTag:         *tag,
		}
	}

	if *manifestFile != "" {
		req.Manifest = *manifestFile
		if *manifestKey != "" {
			req.ManifestSigner = noteSignerOrDie(*manifestKey)
		}
	}

	if req.Signer != nil {
		req.Verifier = verifier
	}

	_, err = b.Build(req)
	writeMetrics(m)
	if err != nil {
		klog.Exitf("Build failed: %v", err)
	}

	if req.Verifier != nil {
		klog.Infof("Image signature verified with %q", *publicKey)
	}
}

func writeMetrics(m *metrics.Metrics) {
	if *metricsFile == "" {
		return
	}
	if err := m.WriteFile(*metricsFile); err != nil {
		klog.Errorf("Failed to write metrics: %v", err)
	}
}

func hexOrDie(s, name string) uint32 {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 32)
	if err != nil {
		klog.Exitf("Invalid %s value %q: %v", name, s, err)
	}
	return uint32(v)
}

func uint8OrDie(v uint, name string) uint8 {
	if v > 0xff {
		klog.Exitf("Invalid %s value %d: must fit in one byte", name, v)
	}
	return uint8(v)
}

func keyOrDie(p string) keys.Key {
	k, err := keys.Load(p)
	if err != nil {
		klog.Exitf("Failed to load key: %v", err)
	}
	return k
}

func signerOrDie(k keys.Key) sign.Signer {
	priv, err := k.PrivateKey()
	if err != nil {
		klog.Exitf("Invalid signing key: %v", err)
	}
	s, err := sign.NewRSASigner(priv)
	if err != nil {
		klog.Exitf("Invalid signing key: %v", err)
	}
	return s
}

func verifierOrDie(k keys.Key) sign.Verifier {
	pub, err := k.PublicKey()
	if err != nil {
		klog.Exitf("Invalid public key: %v", err)
	}
	v, err := sign.NewRSAVerifier(pub)
	if err != nil {
		klog.Exitf("Invalid public key: %v", err)
	}
	return v
}

func noteSignerOrDie(p string) note.Signer {
	b, err := os.ReadFile(p)
	if err != nil {
		klog.Exitf("Failed to read manifest key %q: %v", p, err)
	}
	s, err := manifest.NewSigner(strings.TrimSpace(string(b)))
	if err != nil {
		klog.Exitf("Invalid manifest key %q: %v", p, err)
	}
	return s
}
