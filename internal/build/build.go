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

// Package build turns a firmware binary into a bootloader image.
//
// Unencrypted images are an application header followed by the firmware.
// Encrypted images are an AES-GCM envelope around metadata and the padded
// firmware. Either may be prefixed with an RSA signature, in which case the
// signed blob is also kept alongside as an intermediate file.
package build

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/mod/sumdb/note"
	"k8s.io/klog/v2"

	"github.com/transparency-dev/armored-witness-image/api"
	"github.com/transparency-dev/armored-witness-image/internal/config"
	"github.com/transparency-dev/armored-witness-image/internal/envelope"
	"github.com/transparency-dev/armored-witness-image/internal/fileutil"
	"github.com/transparency-dev/armored-witness-image/internal/image"
	"github.com/transparency-dev/armored-witness-image/internal/manifest"
	"github.com/transparency-dev/armored-witness-image/internal/metrics"
	"github.com/transparency-dev/armored-witness-image/internal/sign"
)

// File extensions of build artifacts.
const (
	SourceExt       = ".bin"
	ImageExt        = ".img"
	IntermediateExt = ".int"
	SidecarExt      = ".une"
)

// Image kinds, as reported in metrics and results.
const (
	Unencrypted = "unencrypted"
	Encrypted   = "encrypted"
)

// Encryption holds the parameters only used by encrypted images.
type Encryption struct {
	// Key is the AES-128 key.
	Key              []byte
	ImageIndex       uint32
	FlashBaseAddress uint32
	DeviceVariant    uint32
	CoreAffinity     uint8
	ImageTag         string
}

// Request describes a single image build.
type Request struct {
	// Source names the firmware binary, with or without its .bin extension.
	Source string
	// Output names the image, the source name with .img when empty. The
	// extension is always .img.
	Output  string
	Device  string
	Version string
	// Flags is only stored in unencrypted image headers.
	Flags uint32
	// Encryption selects the encrypted image format when set.
	Encryption *Encryption
	// Signer signs the image when set.
	Signer sign.Signer
	// Verifier, when set alongside Signer, must accept the signed image
	// before it is written.
	Verifier sign.Verifier

	// Manifest, when set, is the path the release manifest is written to.
	Manifest string
	// ManifestSigner signs the manifest as a note when set.
	ManifestSigner note.Signer
}

// Result describes the artifacts of a successful build.
type Result struct {
	Kind string
	// Input, Intermediate, Output and Sidecar are file paths. Intermediate
	// is only written for signed images, Sidecar only by builds which
	// enable it.
	Input        string
	Intermediate string
	Output       string
	Sidecar      string

	Image    []byte
	Header   *api.ImageHeader
	Sealed   *envelope.Sealed
	Manifest *manifest.Manifest
}

// Builder builds images. The zero value is not usable, Config is required.
type Builder struct {
	Config *config.Config
	// Clock returns the build timestamp, time.Now when nil.
	Clock func() time.Time
	// Rand is the IV source, crypto/rand when nil.
	Rand io.Reader
	// Progress receives encryption progress when set.
	Progress io.Writer
	// Metrics records build outcomes when set.
	Metrics *metrics.Metrics
}

// Paths derives the input, intermediate and output paths for a build.
func Paths(source, output string) (input, intermediate, final string) {
	base := strings.TrimSuffix(source, filepath.Ext(source))
	input = base + SourceExt
	intermediate = base + IntermediateExt
	final = base + ImageExt
	if output != "" {
		final = strings.TrimSuffix(output, filepath.Ext(output)) + ImageExt
	}
	return input, intermediate, final
}

func (b *Builder) now() time.Time {
	if b.Clock != nil {
		return b.Clock()
	}
	return time.Now()
}

// Build runs the request. On failure no image is left at the output path,
// even one from an earlier build.
func (b *Builder) Build(r Request) (res *Result, err error) {
	kind := Unencrypted
	if r.Encryption != nil {
		kind = Encrypted
	}
	start := time.Now()
	if b.Metrics != nil {
		defer func() { b.Metrics.ObserveBuild(kind, start, time.Now(), err) }()
	}

	if err := image.ValidateVersion(r.Version); err != nil {
		return nil, err
	}
	devID, err := b.Config.DeviceID(r.Device)
	if err != nil {
		return nil, err
	}

	res = &Result{Kind: kind}
	res.Input, res.Intermediate, res.Output = Paths(r.Source, r.Output)

	fw, err := fileutil.ReadInput(res.Input, "firmware")
	if err != nil {
		return nil, b.fail(res, err)
	}
	ts := b.now()

	var blob []byte
	switch kind {
	case Unencrypted:
		res.Header = image.NewHeader(image.HeaderFields{
			Flags:        r.Flags,
			ImageSize:    uint32(len(fw)),
			Time:         ts,
			Version:      r.Version,
			DeviceTypeID: devID,
		}, b.Config.ImageOptions())
		blob = append(res.Header.Bytes(), fw...)
		klog.V(1).Infof("Application header:\n%s", res.Header)
	case Encrypted:
		e := r.Encryption
		res.Sealed, err = envelope.Seal(fw, e.Key, image.MetadataFields{
			ImageIndex:       e.ImageIndex,
			FlashBaseAddress: e.FlashBaseAddress,
			DeviceType:       devID,
			DeviceVariant:    e.DeviceVariant,
			Time:             ts,
			Version:          r.Version,
			ImageTag:         e.ImageTag,
			CoreAffinity:     e.CoreAffinity,
		}, envelope.Options{
			Image:    b.Config.ImageOptions(),
			Rand:     b.Rand,
			Progress: b.Progress,
		})
		if err != nil {
			return nil, b.fail(res, err)
		}
		blob = res.Sealed.Envelope
		klog.V(1).Infof("Image metadata:\n%s", res.Sealed.Metadata)

		base := strings.TrimSuffix(res.Input, SourceExt)
		if res.Sidecar, err = writeSidecar(base+SidecarExt, res.Sealed.Plaintext()); err != nil {
			return nil, b.fail(res, err)
		}
	}

	res.Image = blob
	if r.Signer != nil {
		if err := fileutil.WriteAtomic(res.Intermediate, blob, 0o644); err != nil {
			return nil, b.fail(res, err)
		}
		if res.Image, err = sign.Wrap(r.Signer, blob); err != nil {
			return nil, b.fail(res, err)
		}
		if r.Verifier != nil {
			if _, err := sign.VerifyImage(r.Verifier, res.Image, r.Signer.Size()); err != nil {
				return nil, b.fail(res, err)
			}
			klog.V(1).Infof("Signed image verified")
		}
	} else {
		klog.Warningf("No signing key given, %q will be unsigned", res.Output)
		if err := fileutil.RemoveStale(res.Intermediate); err != nil {
			return nil, b.fail(res, err)
		}
		res.Intermediate = ""
	}

	if err := fileutil.WriteAtomic(res.Output, res.Image, 0o644); err != nil {
		return nil, b.fail(res, err)
	}

	res.Manifest = newManifest(r, res, devID, fw, ts)
	if r.Manifest != "" {
		if err := writeManifest(r.Manifest, res.Manifest, r.ManifestSigner); err != nil {
			return nil, b.fail(res, err)
		}
	}

	if b.Metrics != nil {
		b.Metrics.SetBytes("firmware", len(fw))
		b.Metrics.SetBytes("image", len(res.Image))
	}
	logSummary(r, res, len(fw), ts)

	return res, nil
}

// fail removes any image left at the output path by an earlier build.
func (b *Builder) fail(res *Result, err error) error {
	if rmErr := fileutil.RemoveStale(res.Output); rmErr != nil {
		klog.Errorf("Failed to remove stale image: %v", rmErr)
	}
	return err
}

func newManifest(r Request, res *Result, devID uint32, fw []byte, ts time.Time) *manifest.Manifest {
	m := &manifest.Manifest{
		Device:         r.Device,
		DeviceTypeID:   devID,
		Version:        r.Version,
		BuildTimestamp: image.Timestamp(ts),
		Encrypted:      res.Sealed != nil,
		Signed:         r.Signer != nil,
	}
	if res.Sealed != nil {
		m.ImageTag = r.Encryption.ImageTag
		m.RawImageCRC = res.Sealed.Metadata.RawImageCRC
	}
	m.SetFirmware(fw)
	m.SetImage(res.Image)
	return m
}

func writeManifest(path string, m *manifest.Manifest, s note.Signer) error {
	var (
		b   []byte
		err error
	)
	if s != nil {
		b, err = manifest.Sign(m, s)
	} else {
		b, err = m.Marshal()
	}
	if err != nil {
		return err
	}
	if err := fileutil.WriteAtomic(path, b, 0o644); err != nil {
		return err
	}
	klog.Infof("Wrote manifest to %q, leaf hash %x", path, manifest.LeafHash(b))
	return nil
}

func logSummary(r Request, res *Result, fwLen int, ts time.Time) {
	var s strings.Builder
	fmt.Fprintf(&s, "Image type ..............: %s\n", res.Kind)
	fmt.Fprintf(&s, "Device type .............: %s\n", r.Device)
	fmt.Fprintf(&s, "Source binary ...........: %s (%d bytes)\n", res.Input, fwLen)
	if res.Intermediate != "" {
		fmt.Fprintf(&s, "Intermediate file .......: %s\n", res.Intermediate)
	}
	if res.Sidecar != "" {
		fmt.Fprintf(&s, "Unencrypted sidecar .....: %s\n", res.Sidecar)
	}
	fmt.Fprintf(&s, "Date/Time ...............: %s\n", image.Timestamp(ts))
	fmt.Fprintf(&s, "Version .................: %s\n", r.Version)
	if res.Sealed != nil {
		fmt.Fprintf(&s, "Flash target address ....: %#08x\n", res.Sealed.Metadata.FlashBaseAddress)
		fmt.Fprintf(&s, "Raw image CRC32 .........: %#08x\n", res.Sealed.Metadata.RawImageCRC)
	} else {
		fmt.Fprintf(&s, "Image flags .............: %#x\n", r.Flags)
	}
	fmt.Fprintf(&s, "Output file .............: %s (%d bytes)", res.Output, len(res.Image))
	klog.Infof("Built image:\n%s", s.String())
}
