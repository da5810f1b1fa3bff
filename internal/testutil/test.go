// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package test provides helpers shared by the test suites: a cached test
// configuration, environment setup for the config loader, and sample media
// fixtures.
package test

import (
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/muziris/gcp-go-video-insight/internal/cloud"
)

// StateManager caches the loaded configuration so the TOML files are parsed
// once per test run rather than once per test.
type StateManager struct {
	config *cloud.Config
}

var state = &StateManager{}

// HandleErr fails the current test when err is non-nil. Cuts the
// boilerplate in tests that only care about the happy path.
func HandleErr(err error, t *testing.T) {
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// fakeMP4Header is the smallest byte sequence the MIME sniffer accepts as
// an MP4 video: a well-formed ftyp box with the mp42 major brand.
var fakeMP4Header = []byte{
	0x00, 0x00, 0x00, 0x18,
	'f', 't', 'y', 'p',
	'm', 'p', '4', '2',
	0x00, 0x00, 0x00, 0x00,
	'm', 'p', '4', '2',
	'i', 's', 'o', 'm',
}

// WriteTempVideo writes a minimal fake MP4 into the test's temp directory
// and returns its path. The file passes MIME sniffing but holds no real
// media; it is only useful against fake services.
func WriteTempVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample-trailer.mp4")
	if err := os.WriteFile(path, fakeMP4Header, 0o644); err != nil {
		t.Fatalf("failed to write test video: %v", err)
	}
	return path
}

// SetupOS points the configuration loader at the test configuration files
// (configs/.env.toml overlaid with configs/.env.test.toml).
func SetupOS() (err error) {
	err = os.Setenv(cloud.EnvConfigFilePrefix, "configs")
	if err != nil {
		return err
	}
	err = os.Setenv(cloud.EnvConfigRuntime, "test")
	return err
}

// GetConfig is the singleton accessor for the test configuration. The first
// call sets up the environment and loads the TOML files; subsequent calls
// return the cached result.
func GetConfig() *cloud.Config {
	if state.config == nil {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to setup environment for test: %v\n", err)
		}
		config := cloud.NewConfig()
		cloud.LoadConfig(config)
		state.config = config
	}
	return state.config
}
