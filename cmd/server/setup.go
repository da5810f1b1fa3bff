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

// This file holds the server's shared state: the loaded configuration, the
// cloud service clients, and one analysis workflow per configured agent
// model. Everything is created once at startup and read-only afterwards.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/muziris/gcp-go-video-insight/internal/cloud"
	"github.com/muziris/gcp-go-video-insight/internal/core/workflow"
)

// StateManager is the container for the server's shared dependencies,
// keeping them out of package globals scattered across files.
type StateManager struct {
	config       *cloud.Config
	cloud        *cloud.ServiceClients
	workflows    map[string]*workflow.AnalysisWorkflow
	defaultModel string
}

var state = &StateManager{}

// SetupOS points the configuration loader at the configs directory and the
// "local" runtime overlay (configs/.env.local.toml).
func SetupOS() (err error) {
	err = os.Setenv(cloud.EnvConfigFilePrefix, "configs")
	if err != nil {
		return err
	}
	err = os.Setenv(cloud.EnvConfigRuntime, "local")
	return err
}

// GetConfig loads the configuration once and caches it in the state
// manager.
func GetConfig() *cloud.Config {
	if state.config == nil {
		err := SetupOS()
		if err != nil {
			log.Fatalf("failed to setup os environment: %v\n", err)
		}
		config := cloud.NewConfig()
		cloud.LoadConfig(config)
		state.config = config
	}
	return state.config
}

// InitState creates the cloud clients and builds an analysis workflow for
// every configured agent model. The default model comes from the
// configuration unless the override environment variable names another
// configured key.
func InitState(ctx context.Context) {
	config := GetConfig()

	apiKey, err := cloud.ResolveAPIKey()
	if err != nil {
		log.Fatalf("cannot start: %v\n", err)
	}

	cloudClients, err := cloud.NewCloudServiceClients(ctx, config, apiKey)
	if err != nil {
		panic(err)
	}
	state.cloud = cloudClients

	state.workflows = make(map[string]*workflow.AnalysisWorkflow)
	for key := range cloudClients.AgentModels {
		state.workflows[key] = workflow.NewAnalysisPipeline(config, cloudClients, key)
	}

	state.defaultModel = config.Application.DefaultAgentModel
	if override := cloud.DefaultModelOverride(); override != "" {
		if _, ok := state.workflows[override]; ok {
			state.defaultModel = override
		} else {
			slog.Warn("model override does not name a configured agent model, ignoring",
				"override", override)
		}
	}
	if _, ok := state.workflows[state.defaultModel]; !ok {
		log.Fatalf("default agent model %q is not configured\n", state.defaultModel)
	}
}
