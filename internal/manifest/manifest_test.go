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

package manifest

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/transparency-dev/merkle/rfc6962"
	"golang.org/x/mod/sumdb/note"

	"github.com/transparency-dev/armored-witness-image/api"
)

func testManifest() *Manifest {
	m := &Manifest{
		Device:         "ATP",
		DeviceTypeID:   2,
		Version:        "1.0.0",
		ImageTag:       "nightly",
		BuildTimestamp: "2024-03-07T13:14:15",
		Encrypted:      true,
		Signed:         true,
		RawImageCRC:    0xcbf43926,
	}
	m.SetFirmware([]byte("firmware"))
	m.SetImage([]byte("image"))
	return m
}

func newKeys(t *testing.T, name string) (note.Signer, note.Verifier) {
	t.Helper()
	skey, vkey, err := note.GenerateKey(rand.Reader, name)
	if err != nil {
		t.Fatalf("GenerateKey(): %v", err)
	}
	s, err := NewSigner(skey)
	if err != nil {
		t.Fatalf("NewSigner(): %v", err)
	}
	v, err := NewVerifier(vkey)
	if err != nil {
		t.Fatalf("NewVerifier(): %v", err)
	}
	return s, v
}

func TestSignOpen(t *testing.T) {
	s, v := newKeys(t, "release-signer")
	m := testManifest()

	signed, err := Sign(m, s)
	if err != nil {
		t.Fatalf("Sign(): %v", err)
	}
	got, err := Open(signed, v)
	if err != nil {
		t.Fatalf("Open(): %v", err)
	}
	if diff := cmp.Diff(m, got); diff != "" {
		t.Fatalf("Open() diff: %s", diff)
	}

	_, other := newKeys(t, "someone-else")
	if _, err := Open(signed, other); !errors.Is(err, api.ErrSignature) {
		t.Fatalf("Open() with wrong verifier = %v, want ErrSignature", err)
	}

	bad := bytes.Replace(signed, []byte("nightly"), []byte("nightlY"), 1)
	if _, err := Open(bad, v); !errors.Is(err, api.ErrSignature) {
		t.Fatalf("Open() tampered = %v, want ErrSignature", err)
	}
}

func TestMarshalParse(t *testing.T) {
	m := testManifest()
	b, err := m.Marshal()
	if err != nil {
		t.Fatalf("Marshal(): %v", err)
	}
	if b[len(b)-1] != '\n' {
		t.Fatalf("Marshal() not newline terminated")
	}
	got, err := Parse(b)
	if err != nil {
		t.Fatalf("Parse(): %v", err)
	}
	if diff := cmp.Diff(m, got); diff != "" {
		t.Fatalf("Parse() diff: %s", diff)
	}
	if _, err := Parse([]byte("{")); !errors.Is(err, api.ErrFormat) {
		t.Fatalf("Parse(bad) = %v, want ErrFormat", err)
	}
}

func TestCheckImage(t *testing.T) {
	m := testManifest()
	if err := m.CheckImage([]byte("image")); err != nil {
		t.Fatalf("CheckImage(): %v", err)
	}
	for _, img := range [][]byte{[]byte("imagE"), []byte("image!")} {
		if err := m.CheckImage(img); !errors.Is(err, api.ErrFormat) {
			t.Errorf("CheckImage(%q) = %v, want ErrFormat", img, err)
		}
	}
}

func TestLeafHash(t *testing.T) {
	b := []byte("signed manifest")
	want := sha256.Sum256(append([]byte{rfc6962.RFC6962LeafHashPrefix}, b...))
	if got := LeafHash(b); !bytes.Equal(got, want[:]) {
		t.Fatalf("LeafHash() = %x, want %x", got, want)
	}
}

func TestBadKeys(t *testing.T) {
	if _, err := NewSigner("nope"); !errors.Is(err, api.ErrKeyType) {
		t.Errorf("NewSigner() = %v, want ErrKeyType", err)
	}
	if _, err := NewVerifier("nope"); !errors.Is(err, api.ErrKeyType) {
		t.Errorf("NewVerifier() = %v, want ErrKeyType", err)
	}
}
