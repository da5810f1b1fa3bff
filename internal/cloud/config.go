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

// Package cloud defines the data structures for application configuration,
// loaded from TOML files. It provides a structured way to manage settings
// for the Gemini agent models, the ingestion poller, retry policies and
// prompt templates.
//
// Structs:
//   - PromptTemplates: Holds the text templates for prompts sent to GenAI models.
//   - GeminiAgentModel: Configuration for one Gemini model, including its
//     generation parameters, rate limit and retry budget.
//   - Ingestion: Poll interval and timeout for the media ingestion loop.
//   - Config: The top-level struct that aggregates all other configuration structs.
//
// Functions:
//   - NewConfig: A constructor that initializes a new Config object with empty maps.
package cloud

import "google.golang.org/genai"

// DefaultSafetySettings defines the default content safety thresholds for
// GenAI models. Non-restrictive across all categories, the usual setup for
// a controlled environment where the input media is trusted.
var DefaultSafetySettings = []*genai.SafetySetting{
	{
		Category:  genai.HarmCategoryDangerousContent,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHarassment,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHateSpeech,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategorySexuallyExplicit,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
}

// PromptTemplates holds the templates for prompts sent to the agent models.
type PromptTemplates struct {
	AnalysisPrompt string `toml:"analysis"` // The template for the video analysis prompt; sees {{.Question}}.
}

// GeminiAgentModel represents the configuration for one Gemini agent model.
type GeminiAgentModel struct {
	Model               string  `toml:"model"`                  // The Gemini model name, e.g. "gemini-2.0-flash-exp".
	SystemInstructions  string  `toml:"system_instructions"`    // The system instructions for the model.
	Temperature         float32 `toml:"temperature"`            // The temperature parameter.
	TopP                float32 `toml:"top_p"`                  // The top_p parameter.
	TopK                float32 `toml:"top_k"`                  // The top_k parameter.
	MaxTokens           int32   `toml:"max_tokens"`             // The maximum number of output tokens.
	RateLimit           int     `toml:"rate_limit"`             // Requests per second allowed against this model.
	MaxAttempts         int     `toml:"max_attempts"`           // Retry budget for rate-limited analysis calls.
	MaxBackoffInSeconds int     `toml:"max_backoff_in_seconds"` // Ceiling for the exponential retry backoff.
}

// Ingestion configures the media ingestion polling loop.
type Ingestion struct {
	PollIntervalInSeconds int    `toml:"poll_interval_in_seconds"` // Seconds between ingestion state fetches.
	TimeoutInSeconds      int    `toml:"timeout_in_seconds"`       // Overall ingestion wait budget in seconds.
	TempFilePrefix        string `toml:"temp_file_prefix"`         // Prefix for temporary local media copies.
}

// Config represents the overall configuration for the application, loaded
// from TOML files.
type Config struct {
	// Application holds general application settings.
	Application struct {
		Name              string `toml:"name"`                // The name of the application.
		GoogleProjectId   string `toml:"google_project_id"`   // The Google Cloud project ID, used by the telemetry exporters.
		DefaultAgentModel string `toml:"default_agent_model"` // The agent model key used when a request names none.
	} `toml:"application"`
	Ingestion       Ingestion                   `toml:"ingestion"`        // Ingestion poller configuration.
	PromptTemplates PromptTemplates             `toml:"prompt_templates"` // Prompt templates configuration.
	AgentModels     map[string]GeminiAgentModel `toml:"agent_models"`     // Agent models keyed by a logical name (e.g. "flash").
}

// NewConfig creates a new, initialized Config instance. The map fields must
// be initialized before the TOML loader populates them.
func NewConfig() *Config {
	return &Config{
		AgentModels: make(map[string]GeminiAgentModel),
	}
}
