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
// services. This file implements a decorator around the Generative AI model
// handle that adds client-side rate limiting and token accounting.
//
// The wrapper deliberately does NOT retry: transient-failure handling lives
// in the retry executor, which wraps calls to this model with an explicit
// per-request attempt budget. Keeping the wrapper retry-free means a single
// component owns the retry semantics.
//
// Structs:
//   - QuotaAwareGenerativeAIModel: Wraps a genai model handle with a
//     golang.org/x/time rate limiter.
//
// Functions:
//   - NewQuotaAwareModel: Constructor for the wrapped model.
//   - GenerateContent / GenerateText: Rate-limited calls to the model.
package cloud

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// QuotaAwareGenerativeAIModel decorates a genai model handle with a rate
// limiter so the application paces itself under the model's quota instead of
// burning retry budget on self-inflicted 429s.
type QuotaAwareGenerativeAIModel struct {
	GenerateConfig *genai.GenerateContentConfig // Generation parameters applied to every call.
	ModelName      string                       // The Gemini model name.
	ModelHandle    *genai.Models                // The underlying SDK model accessor.
	Limiter        *rate.Limiter                // Client-side request pacing.

	inputTokenCounter  metric.Int64Counter // OTel counter for prompt tokens.
	outputTokenCounter metric.Int64Counter // OTel counter for response tokens.
}

// NewQuotaAwareModel creates a QuotaAwareGenerativeAIModel.
//
// Inputs:
//   - config: The generation parameters to apply to every call.
//   - name: The Gemini model name.
//   - handle: The SDK model accessor.
//   - requestsPerSecond: Maximum API calls per second; also the burst size.
//
// Outputs:
//   - *QuotaAwareGenerativeAIModel: The wrapped model with token counters
//     registered against the global OTel meter.
func NewQuotaAwareModel(config *genai.GenerateContentConfig, name string, handle *genai.Models, requestsPerSecond int) *QuotaAwareGenerativeAIModel {
	if requestsPerSecond < 1 {
		requestsPerSecond = 1
	}
	meter := otel.Meter("github.com/muziris/gcp-go-video-insight")
	inputTokenCounter, _ := meter.Int64Counter(fmt.Sprintf("%s.gemini.token.input", name))
	outputTokenCounter, _ := meter.Int64Counter(fmt.Sprintf("%s.gemini.token.output", name))

	return &QuotaAwareGenerativeAIModel{
		GenerateConfig:     config,
		ModelName:          name,
		ModelHandle:        handle,
		Limiter:            rate.NewLimiter(rate.Every(time.Second/time.Duration(requestsPerSecond)), requestsPerSecond),
		inputTokenCounter:  inputTokenCounter,
		outputTokenCounter: outputTokenCounter,
	}
}

// GenerateContent performs one rate-limited call against the model. The
// limiter blocks until a slot is available or the context is canceled.
func (q *QuotaAwareGenerativeAIModel) GenerateContent(ctx context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
	if err := q.Limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := q.ModelHandle.GenerateContent(ctx, q.ModelName, contents, q.GenerateConfig)
	if err != nil {
		return nil, err
	}
	if resp.UsageMetadata != nil {
		q.inputTokenCounter.Add(ctx, int64(resp.UsageMetadata.PromptTokenCount))
		q.outputTokenCounter.Add(ctx, int64(resp.UsageMetadata.CandidatesTokenCount))
	}
	return resp, nil
}

// GenerateText performs one rate-limited call and concatenates the text
// parts of every candidate into a single answer string. Markdown code fences
// around the whole answer are stripped, since the models occasionally wrap
// plain answers in them.
func (q *QuotaAwareGenerativeAIModel) GenerateText(ctx context.Context, contents []*genai.Content) (string, error) {
	resp, err := q.GenerateContent(ctx, contents)
	if err != nil {
		return "", err
	}
	value := ""
	for _, candidate := range resp.Candidates {
		if candidate.Content != nil {
			for _, part := range candidate.Content.Parts {
				value += part.Text
			}
		}
	}
	value = strings.TrimPrefix(value, "```json")
	value = strings.TrimPrefix(value, "```")
	value = strings.TrimSuffix(value, "```")
	return strings.TrimSpace(value), nil
}
