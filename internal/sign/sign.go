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

// Package sign prefixes images with an RSA signature over their SHA-256
// digest.
//
// The build only depends on the Signer capability, keys may live in process
// (RSASigner) or behind an external tool (CommandSigner).
package sign

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
	"os/exec"
	"time"

	"k8s.io/klog/v2"

	"github.com/transparency-dev/armored-witness-image/api"
)

// Signer produces a signature over a SHA-256 digest.
type Signer interface {
	Sign(digest []byte) ([]byte, error)
	// Size is the signature length in bytes.
	Size() int
}

// Verifier checks a signature over a SHA-256 digest.
type Verifier interface {
	Verify(digest, sig []byte) error
}

// Digest returns the SHA-256 digest of b.
func Digest(b []byte) []byte {
	d := sha256.Sum256(b)
	return d[:]
}

func checkModulus(pub *rsa.PublicKey) error {
	if pub.Size() != api.RSAModulusLength {
		return fmt.Errorf("%w: %d-bit RSA key, want %d-bit", api.ErrKeyType, pub.N.BitLen(), api.RSAModulusLength*8)
	}
	return nil
}

// RSASigner signs with RSASSA-PKCS1-v1_5.
type RSASigner struct {
	key *rsa.PrivateKey
}

// NewRSASigner returns a signer for a 2048-bit RSA key.
func NewRSASigner(k *rsa.PrivateKey) (*RSASigner, error) {
	if err := checkModulus(&k.PublicKey); err != nil {
		return nil, err
	}
	return &RSASigner{key: k}, nil
}

// Sign implements Signer.
func (s *RSASigner) Sign(digest []byte) ([]byte, error) {
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", api.ErrSignature, err)
	}
	return sig, nil
}

// Size implements Signer.
func (s *RSASigner) Size() int {
	return s.key.Size()
}

// RSAVerifier verifies RSASSA-PKCS1-v1_5 signatures.
type RSAVerifier struct {
	key *rsa.PublicKey
}

// NewRSAVerifier returns a verifier for a 2048-bit RSA key.
func NewRSAVerifier(k *rsa.PublicKey) (*RSAVerifier, error) {
	if err := checkModulus(k); err != nil {
		return nil, err
	}
	return &RSAVerifier{key: k}, nil
}

// Verify implements Verifier.
func (v *RSAVerifier) Verify(digest, sig []byte) error {
	if err := rsa.VerifyPKCS1v15(v.key, crypto.SHA256, digest, sig); err != nil {
		return fmt.Errorf("%w: %v", api.ErrSignature, err)
	}
	return nil
}

// CommandSigner delegates signing to an external program, for keys held in
// an HSM or signing service. The digest is written to the program's stdin and
// the raw signature is read from its stdout, for example:
//
//	openssl pkeyutl -sign -inkey key.pem -pkeyopt digest:sha256
type CommandSigner struct {
	// Path and Args name the program to run.
	Path string
	Args []string
	// SignatureSize is the expected output length, api.SignatureLength when
	// zero.
	SignatureSize int
	// Timeout bounds the program's run time when positive. Signers which
	// wait on an operator, such as hardware tokens, should leave it unset.
	Timeout time.Duration
}

// Sign implements Signer.
func (c *CommandSigner) Sign(digest []byte) ([]byte, error) {
	ctx := context.Background()
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Stdin = bytes.NewReader(digest)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	klog.V(1).Infof("Signing digest %x with %s %v", digest, c.Path, c.Args)
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v: %s", api.ErrSignature, c.Path, err, bytes.TrimSpace(stderr.Bytes()))
	}
	if stdout.Len() != c.Size() {
		return nil, fmt.Errorf("%w: %s produced %d bytes, want %d", api.ErrSignature, c.Path, stdout.Len(), c.Size())
	}
	return stdout.Bytes(), nil
}

// Size implements Signer.
func (c *CommandSigner) Size() int {
	if c.SignatureSize == 0 {
		return api.SignatureLength
	}
	return c.SignatureSize
}

// Wrap signs the digest of blob and returns signature || blob.
func Wrap(s Signer, blob []byte) ([]byte, error) {
	sig, err := s.Sign(Digest(blob))
	if err != nil {
		return nil, err
	}
	if len(sig) != s.Size() {
		return nil, fmt.Errorf("%w: signature is %d bytes, want %d", api.ErrSignature, len(sig), s.Size())
	}

	out := make([]byte, 0, len(sig)+len(blob))
	out = append(out, sig...)
	return append(out, blob...), nil
}

// Unwrap splits a signed image into its size byte signature and payload.
func Unwrap(signed []byte, size int) ([]byte, []byte, error) {
	if len(signed) < size {
		return nil, nil, &api.SizeError{What: "signed image", Expected: size, Actual: len(signed)}
	}
	return signed[:size], signed[size:], nil
}

// VerifyImage checks the signature prefixing a signed image and returns the
// payload.
func VerifyImage(v Verifier, signed []byte, size int) ([]byte, error) {
	sig, payload, err := Unwrap(signed, size)
	if err != nil {
		return nil, err
	}
	if err := v.Verify(Digest(payload), sig); err != nil {
		return nil, err
	}
	return payload, nil
}
