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

package api

import "errors"

// Build failures. Callers wrap these with context (paths, sizes) using %w,
// test with errors.Is.
var (
	// ErrInputNotFound indicates a missing source binary or key file.
	ErrInputNotFound = errors.New("input not found")
	// ErrKeyType indicates an asymmetric key which is not a usable RSA key.
	ErrKeyType = errors.New("unsupported key type")
	// ErrKeyLength indicates an AES key which is not exactly 16 bytes.
	ErrKeyLength = errors.New("invalid AES key length")
	// ErrUnknownDeviceType indicates a device name missing from the device
	// table.
	ErrUnknownDeviceType = errors.New("unknown device type")
	// ErrSignature indicates that producing or checking a signature failed.
	ErrSignature = errors.New("signature error")
	// ErrIO indicates a read or write failure.
	ErrIO = errors.New("i/o error")

	// ErrAuthentication indicates that an encrypted image failed AES-GCM
	// authentication.
	ErrAuthentication = errors.New("authentication failed")
	// ErrFormat indicates a malformed image, metadata or key record.
	ErrFormat = errors.New("invalid format")
)
