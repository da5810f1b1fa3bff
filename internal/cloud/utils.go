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

// Package cloud provides components for interacting with Google Cloud
// services. This file contains the hierarchical configuration loader and the
// environment lookups for the service credential.
//
// Functions:
//   - fileExists: A simple helper to check if a file exists.
//   - LoadConfig: Reads a base configuration file and then overwrites values
//     with an environment-specific file (e.g. .env.local.toml, .env.test.toml).
//     The environment is chosen by an environment variable.
//   - ResolveAPIKey: Reads the Gemini API key from the environment; its
//     absence is a fatal startup condition for the caller.
//   - DefaultModelOverride: Reads the optional model-key override from the
//     environment.
package cloud

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Cloud Constants define key strings used for configuration loading and
// credential resolution.
const (
	ConfigFileBaseName  = ".env"              // The base name for configuration files (e.g. ".env.toml").
	ConfigFileExtension = ".toml"             // The file extension for configuration files.
	ConfigSeparator     = "."                 // The separator used in config file names (e.g. ".env.local.toml").
	EnvConfigFilePrefix = "GCP_CONFIG_PREFIX" // The environment variable for specifying the config directory.
	EnvConfigRuntime    = "GCP_RUNTIME"       // The environment variable for specifying the runtime context.
	EnvAPIKey           = "GOOGLE_API_KEY"    // The environment variable holding the Gemini API key.
	EnvModelOverride    = "VIDEO_AGENT_MODEL" // Optional: overrides the configured default agent model key.
)

// fileExists checks if a file or directory exists at the given path.
func fileExists(in string) bool {
	_, err := os.Stat(in)
	return !errors.Is(err, os.ErrNotExist)
}

// LoadConfig provides a hierarchical configuration loading mechanism. It
// first loads a base configuration file, then merges an environment-specific
// file over it. Paths and environment come from environment variables.
//
// Inputs:
//   - baseConfig: A pointer to the target configuration struct that will be
//     populated from the TOML files.
func LoadConfig(baseConfig interface{}) {
	configurationFilePrefix := os.Getenv(EnvConfigFilePrefix)
	if len(configurationFilePrefix) > 0 && !strings.HasSuffix(configurationFilePrefix, string(os.PathSeparator)) {
		configurationFilePrefix = configurationFilePrefix + string(os.PathSeparator)
	}

	// Default to "test" so test suites pick up .env.test.toml with no setup.
	runtimeEnvironment := os.Getenv(EnvConfigRuntime)
	if runtimeEnvironment == "" {
		runtimeEnvironment = "test"
	}

	baseConfigFileName := configurationFilePrefix + ConfigFileBaseName + ConfigFileExtension
	envConfigFileName := configurationFilePrefix + ConfigFileBaseName + ConfigSeparator + runtimeEnvironment + ConfigFileExtension

	if fileExists(baseConfigFileName) {
		_, err := toml.DecodeFile(baseConfigFileName, baseConfig)
		if err != nil {
			log.Fatalf("failed to decode base configuration file %s with error: %s", baseConfigFileName, err)
		}
	}

	// Values in the environment file overwrite the base values.
	if fileExists(envConfigFileName) {
		_, err := toml.DecodeFile(envConfigFileName, baseConfig)
		if err != nil {
			log.Fatalf("failed to decode environment configuration file: %s with error: %s", envConfigFileName, err)
		}
	}
}

// ResolveAPIKey reads the Gemini API key from the environment. The caller
// treats an empty key as fatal at startup: without the credential no remote
// call can succeed, so there is nothing to retry.
func ResolveAPIKey() (string, error) {
	key := strings.TrimSpace(os.Getenv(EnvAPIKey))
	if key == "" {
		return "", fmt.Errorf("%s is not set; the Gemini API key is required", EnvAPIKey)
	}
	return key, nil
}

// DefaultModelOverride returns the agent model key from the environment, or
// empty when the configured default should be used.
func DefaultModelOverride() string {
	return strings.TrimSpace(os.Getenv(EnvModelOverride))
}
