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

package sign

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/transparency-dev/armored-witness-image/api"
	"github.com/transparency-dev/armored-witness-image/internal/testonly"
)

func newPair(t *testing.T) (*RSASigner, *RSAVerifier) {
	t.Helper()
	k := testonly.RSAKey(t)
	s, err := NewRSASigner(k)
	if err != nil {
		t.Fatalf("NewRSASigner(): %v", err)
	}
	v, err := NewRSAVerifier(&k.PublicKey)
	if err != nil {
		t.Fatalf("NewRSAVerifier(): %v", err)
	}
	return s, v
}

func TestWrapVerify(t *testing.T) {
	s, v := newPair(t)

	for _, blob := range [][]byte{nil, []byte("x"), bytes.Repeat([]byte{0xab}, 4096)} {
		signed, err := Wrap(s, blob)
		if err != nil {
			t.Fatalf("Wrap(): %v", err)
		}
		if got, want := len(signed), api.SignatureLength+len(blob); got != want {
			t.Fatalf("len = %d, want %d", got, want)
		}
		if !bytes.Equal(signed[api.SignatureLength:], blob) {
			t.Fatalf("payload altered")
		}
		// Matches the signature produced by `openssl dgst -sha256 -sign`.
		if err := rsa.VerifyPKCS1v15(&testonly.RSAKey(t).PublicKey, crypto.SHA256, Digest(blob), signed[:api.SignatureLength]); err != nil {
			t.Fatalf("VerifyPKCS1v15(): %v", err)
		}

		payload, err := VerifyImage(v, signed, api.SignatureLength)
		if err != nil {
			t.Fatalf("VerifyImage(): %v", err)
		}
		if !bytes.Equal(payload, blob) {
			t.Fatalf("VerifyImage() payload differs")
		}
	}
}

func TestVerifyImageRejectsTampering(t *testing.T) {
	s, v := newPair(t)
	signed, err := Wrap(s, []byte("some firmware image"))
	if err != nil {
		t.Fatal(err)
	}

	for _, i := range []int{0, 100, api.SignatureLength - 1, api.SignatureLength, len(signed) - 1} {
		bad := append([]byte(nil), signed...)
		bad[i] ^= 0x10
		if _, err := VerifyImage(v, bad, api.SignatureLength); !errors.Is(err, api.ErrSignature) {
			t.Errorf("VerifyImage() with byte %d flipped = %v, want ErrSignature", i, err)
		}
	}
	if _, err := VerifyImage(v, signed[:10], api.SignatureLength); !errors.Is(err, api.ErrFormat) {
		t.Errorf("VerifyImage(short) = %v, want ErrFormat", err)
	}
}

func TestKeySize(t *testing.T) {
	small, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewRSASigner(small); !errors.Is(err, api.ErrKeyType) {
		t.Errorf("NewRSASigner(1024) = %v, want ErrKeyType", err)
	}
	if _, err := NewRSAVerifier(&small.PublicKey); !errors.Is(err, api.ErrKeyType) {
		t.Errorf("NewRSAVerifier(1024) = %v, want ErrKeyType", err)
	}
}

type fakeSigner struct {
	sig  []byte
	err  error
	size int
}

func (f fakeSigner) Sign([]byte) ([]byte, error) { return f.sig, f.err }
func (f fakeSigner) Size() int                    { return f.size }

func TestWrapErrors(t *testing.T) {
	for _, test := range []struct {
		name string
		s    Signer
	}{
		{name: "signer error", s: fakeSigner{err: api.ErrSignature, size: 256}},
		{name: "short signature", s: fakeSigner{sig: make([]byte, 10), size: 256}},
	} {
		t.Run(test.name, func(t *testing.T) {
			if _, err := Wrap(test.s, []byte("blob")); !errors.Is(err, api.ErrSignature) {
				t.Fatalf("Wrap() = %v, want ErrSignature", err)
			}
		})
	}
}

func TestCommandSigner(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("no shell available")
	}

	for _, test := range []struct {
		name    string
		script  string
		timeout time.Duration
		wantErr bool
	}{
		{name: "success", script: "cat >/dev/null; head -c 256 /dev/zero"},
		{name: "success within timeout", script: "cat >/dev/null; head -c 256 /dev/zero", timeout: time.Minute},
		{name: "non-zero exit", script: "echo broken >&2; exit 3", wantErr: true},
		{name: "echoes digest", script: "cat", wantErr: true},
		{name: "no output", script: "true", wantErr: true},
		{name: "timed out", script: "exec sleep 10", timeout: 50 * time.Millisecond, wantErr: true},
	} {
		t.Run(test.name, func(t *testing.T) {
			c := &CommandSigner{Path: sh, Args: []string{"-c", test.script}, Timeout: test.timeout}
			signed, err := Wrap(c, []byte("blob"))
			if gotErr := err != nil; gotErr != test.wantErr {
				t.Fatalf("Wrap() = %v, wantErr %v", err, test.wantErr)
			}
			if err != nil {
				if !errors.Is(err, api.ErrSignature) {
					t.Fatalf("Wrap() = %v, want ErrSignature", err)
				}
				return
			}
			if !bytes.Equal(signed[:api.SignatureLength], make([]byte, api.SignatureLength)) {
				t.Fatalf("signature = %x", signed[:api.SignatureLength])
			}
		})
	}
}
