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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface for the video analysis
// workflow. This file defines the analysis command, the step that actually
// questions the model about the video.
//
// Logic Flow:
//  1. The command receives the READY media handle from the ingestion step
//     and the original AnalysisRequest from the canonical context key.
//  2. The caller's question is substituted into the configured prompt
//     template.
//  3. The prompt text and the media file reference are sent to the model as
//     one multi-modal request, executed through the retry executor so that
//     rate-limit failures are waited out within the configured attempt
//     budget. Each chain execution gets its own attempt counter.
//  4. The model's free-text answer becomes the command output.
package commands

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/muziris/gcp-go-video-insight/internal/core/cor"
	"github.com/muziris/gcp-go-video-insight/internal/core/ingest"
	"github.com/muziris/gcp-go-video-insight/internal/core/model"
	"github.com/muziris/gcp-go-video-insight/internal/core/retry"
	"google.golang.org/genai"
)

// TextGenerator is the narrow contract the analyzer needs from a generative
// model: one multi-modal call in, answer text out. The production
// implementation is the quota-aware model wrapper; tests use a scripted
// fake.
type TextGenerator interface {
	GenerateText(ctx context.Context, contents []*genai.Content) (string, error)
}

// MediaAnalyzer is the command that runs the analysis question against the
// generative model.
type MediaAnalyzer struct {
	cor.BaseCommand
	generator TextGenerator      // The rate-limited generative model.
	template  *template.Template // The prompt template; sees {{.Question}}.
	executor  *retry.Executor    // Bounds re-attempts on rate-limit failures.
}

// NewMediaAnalyzer is the constructor for the MediaAnalyzer command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - generator: The model wrapper to question.
//   - template: The parsed analysis prompt template.
//   - executor: The retry executor carrying this model's retry policy.
//
// Outputs:
//   - *MediaAnalyzer: A pointer to the newly instantiated command.
func NewMediaAnalyzer(name string, generator TextGenerator, template *template.Template, executor *retry.Executor) *MediaAnalyzer {
	return &MediaAnalyzer{
		BaseCommand: *cor.NewBaseCommand(name),
		generator:   generator,
		template:    template,
		executor:    executor,
	}
}

// Execute builds the prompt and runs the analysis call under retry.
func (c *MediaAnalyzer) Execute(flowContext cor.Context) {
	handle := flowContext.Get(c.GetInputParam()).(*ingest.Handle)
	request := flowContext.Get(GetRequestParameterName()).(*model.AnalysisRequest)

	var buffer bytes.Buffer
	err := c.template.Execute(&buffer, map[string]interface{}{"Question": request.Question})
	if err != nil {
		c.GetErrorCounter().Add(flowContext.GetContext(), 1)
		flowContext.AddError(c.GetName(), model.WrapFlowError(model.KindFatalRemote, err,
			"failed to execute prompt template"))
		return
	}

	contents := []*genai.Content{
		{
			Parts: []*genai.Part{
				{Text: buffer.String()},
				{FileData: &genai.FileData{
					FileURI:  handle.URI,
					MIMEType: handle.MIMEType,
				}},
			},
			Role: "user",
		},
	}

	// The call is a read-style query against already-ingested media, so it
	// is safe for the executor to repeat.
	answer, err := c.executor.Do(flowContext.GetContext(), func(ctx context.Context) (string, error) {
		return c.generator.GenerateText(ctx, contents)
	})
	if err != nil {
		c.GetErrorCounter().Add(flowContext.GetContext(), 1)
		flowContext.AddError(c.GetName(), fmt.Errorf("gemini request failed: %w", err))
		return
	}

	c.GetSuccessCounter().Add(flowContext.GetContext(), 1)
	flowContext.Add(c.GetOutputParam(), answer)
}
