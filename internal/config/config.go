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

// Package config holds the build parameters which must agree with the
// bootloader: framing signatures and the device type table.
//
// Defaults are compiled in; a YAML file may override any of them. The
// resulting Config is loaded once by a tool's main and passed to the
// components which need it.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/transparency-dev/armored-witness-image/api"
	"github.com/transparency-dev/armored-witness-image/internal/fileutil"
	"github.com/transparency-dev/armored-witness-image/internal/image"
)

//go:embed default.yaml
var defaultYAML []byte

// Device associates a device class name with the bootloader's enumeration.
type Device struct {
	Name string `yaml:"name"`
	ID   uint32 `yaml:"id"`
}

// Config represents the image build configuration.
type Config struct {
	// HeaderSignature opens both the application header and the encrypted
	// image metadata.
	HeaderSignature uint32 `yaml:"headerSignature"`
	// TrailerSignature closes the encrypted image metadata.
	TrailerSignature uint32 `yaml:"trailerSignature"`
	// Devices is the table of known device classes.
	Devices []Device `yaml:"devices"`
}

// Default returns the compiled-in configuration.
func Default() *Config {
	c := &Config{}
	if err := yaml.Unmarshal(defaultYAML, c); err != nil {
		panic(fmt.Errorf("invalid default configuration: %v", err))
	}
	return c
}

// Parse overlays the YAML document in b onto the default configuration.
func Parse(b []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %v", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads the configuration at path. An empty path returns the default
// configuration.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := fileutil.ReadInput(path, "configuration")
	if err != nil {
		return nil, err
	}
	c, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", path, err)
	}
	return c, nil
}

// Validate checks that the configuration is self-consistent.
func (c *Config) Validate() error {
	if c.HeaderSignature == 0 || c.TrailerSignature == 0 {
		return errors.New("invalid configuration: signatures must be non-zero")
	}
	if c.HeaderSignature == c.TrailerSignature {
		return fmt.Errorf("invalid configuration: header and trailer signatures are both %#08x", c.HeaderSignature)
	}
	if len(c.Devices) == 0 {
		return errors.New("invalid configuration: empty device table")
	}
	names := make(map[string]bool)
	ids := make(map[uint32]string)
	for _, d := range c.Devices {
		if d.Name == "" {
			return fmt.Errorf("invalid configuration: device with id %d has no name", d.ID)
		}
		if names[d.Name] {
			return fmt.Errorf("invalid configuration: duplicate device name %q", d.Name)
		}
		if other, ok := ids[d.ID]; ok {
			return fmt.Errorf("invalid configuration: devices %q and %q share id %d", other, d.Name, d.ID)
		}
		names[d.Name] = true
		ids[d.ID] = d.Name
	}
	return nil
}

// DeviceID returns the enumerated value for the named device class.
func (c *Config) DeviceID(name string) (uint32, error) {
	for _, d := range c.Devices {
		if d.Name == name {
			return d.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: %q (known types: %v)", api.ErrUnknownDeviceType, name, c.DeviceNames())
}

// DeviceNames returns the known device class names ordered by id.
func (c *Config) DeviceNames() []string {
	d := append([]Device(nil), c.Devices...)
	sort.Slice(d, func(i, j int) bool { return d[i].ID < d[j].ID })
	r := make([]string, 0, len(d))
	for _, v := range d {
		r = append(r, v.Name)
	}
	return r
}

// ImageOptions returns the framing constants for packing images.
func (c *Config) ImageOptions() image.Options {
	return image.Options{
		HeaderSignature:  c.HeaderSignature,
		TrailerSignature: c.TrailerSignature,
	}
}
