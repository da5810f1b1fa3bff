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
// services. This file initializes and holds the client objects the
// application talks through. It acts as a dependency injection container:
// one ServiceClients struct is created at startup and passed to whatever
// needs it, so there is no process-wide mutable client state and tests can
// substitute fakes behind the same interfaces.
//
// Logic Flow:
//  1. NewCloudServiceClients is called at startup with the loaded Config and
//     the Gemini API key resolved from the environment.
//  2. It creates the Storage and GenAI clients.
//  3. It builds one quota-aware agent model per configured entry, applying
//     that entry's generation parameters and rate limit.
//  4. The file-service adapter and GCS resolver are wrapped around the raw
//     clients so the core packages only ever see narrow interfaces.
//
// Structs:
//   - ServiceClients: The container for all initialized service clients.
//
// Functions:
//   - NewCloudServiceClients: Factory for the container.
//   - Close: Gracefully releases client connections.
package cloud

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"google.golang.org/genai"
)

// ServiceClients is the central container for every external service client.
// Constructed once per process; safe for read-only reuse across sequential
// requests.
type ServiceClients struct {
	StorageClient *storage.Client                         // Client for Google Cloud Storage (gs:// sources).
	GenAIClient   *genai.Client                           // Client for the Gemini API.
	FileService   *GenAIFileService                       // Narrow ingestion adapter over GenAIClient.
	GCSResolver   *GCSObjectResolver                      // Narrow GCS stat adapter over StorageClient.
	AgentModels   map[string]*QuotaAwareGenerativeAIModel // Configured agent models keyed by logical name.
}

// Close releases the client connections that expose a closer. The genai
// client is managed by the root context and has no close function.
func (c *ServiceClients) Close() {
	if c.StorageClient != nil {
		_ = c.StorageClient.Close()
	}
}

// NewCloudServiceClients initializes all required service clients from the
// provided configuration.
//
// Inputs:
//   - ctx: The root context for the application.
//   - config: The loaded application configuration.
//   - apiKey: The Gemini API key (already validated as non-empty).
//
// Outputs:
//   - *ServiceClients: The fully initialized container.
//   - error: If any client fails to initialize or no agent models are
//     configured.
func NewCloudServiceClients(ctx context.Context, config *Config, apiKey string) (*ServiceClients, error) {
	sc, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	if len(config.AgentModels) == 0 {
		return nil, fmt.Errorf("no agent models configured")
	}

	// Build one quota-aware model per configured entry.
	agentModels := make(map[string]*QuotaAwareGenerativeAIModel)
	for key, values := range config.AgentModels {
		generateConfig := &genai.GenerateContentConfig{
			Temperature:       genai.Ptr[float32](values.Temperature),
			TopP:              genai.Ptr[float32](values.TopP),
			TopK:              genai.Ptr[float32](values.TopK),
			MaxOutputTokens:   values.MaxTokens,
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: values.SystemInstructions}}},
			SafetySettings:    DefaultSafetySettings,
		}
		agentModels[key] = NewQuotaAwareModel(generateConfig, values.Model, gc.Models, values.RateLimit)
	}

	return &ServiceClients{
		StorageClient: sc,
		GenAIClient:   gc,
		FileService:   NewGenAIFileService(gc),
		GCSResolver:   NewGCSObjectResolver(sc),
		AgentModels:   agentModels,
	}, nil
}
