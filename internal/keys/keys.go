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

// Package keys converts RSA keys into the fixed-size records embedded in
// bootloader firmware.
//
// Two records are produced:
//
//	public:  u16le(256) | n[256] | u8(len e) | e
//	private: u32le(256) | n[256] | u32le(4) | e[4] | u32le(256) | d[256]
//
// Numeric values are big-endian and left-padded with zeros; only the length
// prefixes are little-endian.
package keys

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/binary"
	"encoding/pem"
	"fmt"
	"math/big"

	"golang.org/x/crypto/cryptobyte"

	"github.com/transparency-dev/armored-witness-image/api"
	"github.com/transparency-dev/armored-witness-image/internal/fileutil"
)

// Kind classifies a key by the records it can produce.
type Kind int

const (
	// Unsupported is any key which is not RSA.
	Unsupported Kind = iota
	// RSAPublic is an RSA public key.
	RSAPublic
	// RSAPrivate is an RSA private key, which can also produce the public
	// record.
	RSAPrivate
)

func (k Kind) String() string {
	switch k {
	case RSAPublic:
		return "RSA public key"
	case RSAPrivate:
		return "RSA private key"
	default:
		return "unsupported key"
	}
}

// Key is an asymmetric key classified by Kind.
type Key struct {
	kind Kind
	pub  *rsa.PublicKey
	priv *rsa.PrivateKey
	// desc names the underlying type of Unsupported keys in errors.
	desc string
}

// FromCrypto classifies a key as returned by crypto/x509 parsers.
func FromCrypto(k any) Key {
	switch t := k.(type) {
	case *rsa.PrivateKey:
		return Key{kind: RSAPrivate, priv: t, pub: &t.PublicKey}
	case *rsa.PublicKey:
		return Key{kind: RSAPublic, pub: t}
	default:
		return Key{kind: Unsupported, desc: fmt.Sprintf("%T", k)}
	}
}

// Kind returns the key classification.
func (k Key) Kind() Kind {
	return k.kind
}

func (k Key) unsupported() error {
	return fmt.Errorf("%w: %s is not an RSA key", api.ErrKeyType, k.desc)
}

// PublicKey returns the RSA public key.
func (k Key) PublicKey() (*rsa.PublicKey, error) {
	if k.kind == Unsupported {
		return nil, k.unsupported()
	}
	return k.pub, nil
}

// PrivateKey returns the RSA private key.
func (k Key) PrivateKey() (*rsa.PrivateKey, error) {
	switch k.kind {
	case RSAPrivate:
		return k.priv, nil
	case RSAPublic:
		return nil, fmt.Errorf("%w: private key required, got %v", api.ErrKeyType, k.kind)
	default:
		return nil, k.unsupported()
	}
}

// Modulus returns n.
func (k Key) Modulus() (*big.Int, error) {
	p, err := k.PublicKey()
	if err != nil {
		return nil, err
	}
	return p.N, nil
}

// PublicExponent returns e.
func (k Key) PublicExponent() (int, error) {
	p, err := k.PublicKey()
	if err != nil {
		return 0, err
	}
	return p.E, nil
}

// PrivateExponent returns d.
func (k Key) PrivateExponent() (*big.Int, error) {
	p, err := k.PrivateKey()
	if err != nil {
		return nil, err
	}
	return p.D, nil
}

// Parse decodes the first PEM block of b. PKCS#1, PKCS#8 and PKIX encodings
// are accepted; keys of other algorithms are returned as Unsupported.
func Parse(b []byte) (Key, error) {
	block, _ := pem.Decode(b)
	if block == nil {
		return Key{}, fmt.Errorf("%w: no PEM block found", api.ErrFormat)
	}

	var (
		k   any
		err error
	)
	switch block.Type {
	case "RSA PRIVATE KEY":
		k, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		k, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	case "RSA PUBLIC KEY":
		k, err = x509.ParsePKCS1PublicKey(block.Bytes)
	case "PUBLIC KEY":
		k, err = x509.ParsePKIXPublicKey(block.Bytes)
	default:
		return Key{kind: Unsupported, desc: fmt.Sprintf("PEM %q", block.Type)}, nil
	}
	if err != nil {
		return Key{}, fmt.Errorf("%w: %s: %v", api.ErrFormat, block.Type, err)
	}

	return FromCrypto(k), nil
}

// Load reads and parses a PEM key file.
func Load(path string) (Key, error) {
	b, err := fileutil.ReadInput(path, "key")
	if err != nil {
		return Key{}, err
	}

	k, err := Parse(b)
	if err != nil {
		return Key{}, fmt.Errorf("key %q: %w", path, err)
	}
	return k, nil
}

// fixed returns the big-endian encoding of v left-padded to n bytes.
func fixed(v *big.Int, n int, what string) ([]byte, error) {
	if (v.BitLen()+7)/8 > n {
		return nil, fmt.Errorf("%w: %s is %d bits, record holds %d", api.ErrKeyType, what, v.BitLen(), n*8)
	}
	return v.FillBytes(make([]byte, n)), nil
}

func addUint16LE(b *cryptobyte.Builder, v uint16) {
	b.AddBytes(binary.LittleEndian.AppendUint16(nil, v))
}

func addUint32LE(b *cryptobyte.Builder, v uint32) {
	b.AddBytes(binary.LittleEndian.AppendUint32(nil, v))
}

// PublicRecord returns the public key record.
func (k Key) PublicRecord() ([]byte, error) {
	p, err := k.PublicKey()
	if err != nil {
		return nil, err
	}
	n, err := fixed(p.N, api.RSAModulusLength, "modulus")
	if err != nil {
		return nil, err
	}
	e := big.NewInt(int64(p.E)).Bytes()

	b := cryptobyte.NewBuilder(nil)
	addUint16LE(b, uint16(len(n)))
	b.AddBytes(n)
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(e)
	})
	return b.Bytes()
}

// PrivateRecord returns the embedded private key record.
func (k Key) PrivateRecord() ([]byte, error) {
	p, err := k.PrivateKey()
	if err != nil {
		return nil, err
	}
	n, err := fixed(p.N, api.RSAModulusLength, "modulus")
	if err != nil {
		return nil, err
	}
	e, err := fixed(big.NewInt(int64(p.E)), api.RSAExponentLength, "public exponent")
	if err != nil {
		return nil, err
	}
	d, err := fixed(p.D, api.RSAPrivateExponentLength, "private exponent")
	if err != nil {
		return nil, err
	}

	b := cryptobyte.NewBuilder(nil)
	for _, f := range [][]byte{n, e, d} {
		addUint32LE(b, uint32(len(f)))
		b.AddBytes(f)
	}
	return b.Bytes()
}

// PrivateRecordLength is the size of a private record.
const PrivateRecordLength = 3*4 + api.RSAModulusLength + api.RSAExponentLength + api.RSAPrivateExponentLength

func readUint16LE(s *cryptobyte.String, out *uint16) bool {
	var b []byte
	if !s.ReadBytes(&b, 2) {
		return false
	}
	*out = binary.LittleEndian.Uint16(b)
	return true
}

func readUint32LE(s *cryptobyte.String, out *uint32) bool {
	var b []byte
	if !s.ReadBytes(&b, 4) {
		return false
	}
	*out = binary.LittleEndian.Uint32(b)
	return true
}

// ParsePublicRecord decodes a public key record.
func ParsePublicRecord(rec []byte) (*rsa.PublicKey, error) {
	s := cryptobyte.String(rec)

	var (
		nLen uint16
		n    []byte
		e    cryptobyte.String
	)
	if !readUint16LE(&s, &nLen) || !s.ReadBytes(&n, int(nLen)) || !s.ReadUint8LengthPrefixed(&e) {
		return nil, fmt.Errorf("%w: truncated public key record (%d bytes)", api.ErrFormat, len(rec))
	}
	if !s.Empty() {
		return nil, fmt.Errorf("%w: %d trailing bytes after public key record", api.ErrFormat, len(s))
	}
	if nLen != api.RSAModulusLength {
		return nil, fmt.Errorf("%w: modulus length %d, want %d", api.ErrFormat, nLen, api.RSAModulusLength)
	}
	if len(e) == 0 || len(e) > 4 {
		return nil, fmt.Errorf("%w: exponent length %d", api.ErrFormat, len(e))
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(n),
		E: int(new(big.Int).SetBytes(e).Int64()),
	}, nil
}

// PrivateComponents are the values stored in a private key record.
type PrivateComponents struct {
	N *big.Int
	E int
	D *big.Int
}

// ParsePrivateRecord decodes a private key record.
func ParsePrivateRecord(rec []byte) (*PrivateComponents, error) {
	s := cryptobyte.String(rec)

	want := []int{api.RSAModulusLength, api.RSAExponentLength, api.RSAPrivateExponentLength}
	fields := make([][]byte, len(want))
	for i, w := range want {
		var l uint32
		if !readUint32LE(&s, &l) || !s.ReadBytes(&fields[i], int(l)) {
			return nil, fmt.Errorf("%w: truncated private key record (%d bytes)", api.ErrFormat, len(rec))
		}
		if int(l) != w {
			return nil, fmt.Errorf("%w: private key record field %d is %d bytes, want %d", api.ErrFormat, i, l, w)
		}
	}
	if !s.Empty() {
		return nil, fmt.Errorf("%w: %d trailing bytes after private key record", api.ErrFormat, len(s))
	}

	return &PrivateComponents{
		N: new(big.Int).SetBytes(fields[0]),
		E: int(binary.BigEndian.Uint32(fields[1])),
		D: new(big.Int).SetBytes(fields[2]),
	}, nil
}

// WriteRecord writes rec to path, replacing any existing file only once the
// new contents are complete.
func WriteRecord(path string, rec []byte) error {
	return fileutil.WriteAtomic(path, rec, 0o600)
}
