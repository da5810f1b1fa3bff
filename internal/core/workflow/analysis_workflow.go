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

// Package workflow defines the high-level business logic orchestrations,
// combining commands into coherent pipelines. This file implements the
// video analysis workflow: the end-to-end flow from a caller's question and
// media source to the model's answer.
//
// Per request the flow is strictly linear:
//
//	validate question -> resolve source -> ingest & await ready -> analyze
//
// No stage is re-entered, and the workflow itself makes a single attempt;
// re-attempts on rate limits happen inside the analyzer's retry executor.
// The workflow owns the request's temporary local file and removes it on
// every exit path, and best-effort deletes the remotely ingested copy once
// the result is decided.
package workflow

import (
	"context"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/muziris/gcp-go-video-insight/internal/cloud"
	"github.com/muziris/gcp-go-video-insight/internal/core/commands"
	"github.com/muziris/gcp-go-video-insight/internal/core/cor"
	"github.com/muziris/gcp-go-video-insight/internal/core/ingest"
	"github.com/muziris/gcp-go-video-insight/internal/core/model"
	"github.com/muziris/gcp-go-video-insight/internal/core/retry"
)

// AnalysisWorkflow runs one upload-and-analyze flow per Analyze call. It is
// constructed once per configured agent model and is safe to reuse across
// sequential requests: every call gets its own chain context and attempt
// counters.
type AnalysisWorkflow struct {
	cor.BaseCommand
	poller *ingest.Poller
	chain  cor.Chain
}

// NewAnalysisWorkflow wires a workflow from its parts. Used directly by
// tests; production code goes through NewAnalysisPipeline, which derives the
// parts from configuration.
func NewAnalysisWorkflow(
	name string,
	poller *ingest.Poller,
	statter commands.GCSStatter,
	generator commands.TextGenerator,
	executor *retry.Executor,
	promptTemplate *template.Template) *AnalysisWorkflow {

	w := &AnalysisWorkflow{
		BaseCommand: *cor.NewBaseCommand(name),
		poller:      poller,
	}

	out := cor.NewBaseChain(name)
	// Step 1: turn the request into a concrete media source (verify a gs://
	// object, or sniff and stage a local file).
	out.AddCommand(commands.NewSourceResolver("resolve-media-source", statter))
	// Step 2: submit a local source for remote ingestion and poll until the
	// remote side reports it ready. GCS sources pass through untouched.
	out.AddCommand(commands.NewMediaIngest("ingest-media", poller))
	// Step 3: question the model about the ready media, retrying only
	// rate-limit failures.
	out.AddCommand(commands.NewMediaAnalyzer("analyze-media", generator, promptTemplate, executor))
	w.chain = out

	return w
}

// Execute satisfies the Command interface so workflows can nest in larger
// chains; it runs the underlying command sequence.
func (w *AnalysisWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

// Analyze runs the full flow for one request and always returns a terminal
// result: either the model's answer or a single classified failure. Errors
// never escape as panics, and the temporary local media copy is removed on
// every exit path, including validation failures that happen before any
// network call.
func (w *AnalysisWorkflow) Analyze(ctx context.Context, request *model.AnalysisRequest) *model.AnalysisResult {
	chCtx := cor.NewBaseContext()
	chCtx.SetContext(ctx)
	// The temp file is registered before anything else so cleanup covers
	// every exit below, validation included.
	if request.LocalPath != "" {
		chCtx.AddTempFile(request.LocalPath)
	}
	defer chCtx.Close()
	defer w.cleanupRemote(chCtx)

	if strings.TrimSpace(request.Question) == "" {
		w.GetErrorCounter().Add(ctx, 1)
		return model.NewFailureResult(request.ID, model.NewFlowError(model.KindEmptyQuery,
			"question must not be empty"))
	}

	chCtx.Add(commands.GetRequestParameterName(), request)
	chCtx.Add(cor.CtxIn, request)
	w.chain.Execute(chCtx)

	if chCtx.HasErrors() {
		w.GetErrorCounter().Add(ctx, 1)
		err := chCtx.FirstError()
		slog.Error("analysis failed", "request", request.ID, "kind", string(model.KindOf(err)), "error", err)
		return model.NewFailureResult(request.ID, err)
	}

	// The chain pipes the last command's output into CtxIn.
	answer, ok := chCtx.Get(cor.CtxIn).(string)
	if !ok {
		w.GetErrorCounter().Add(ctx, 1)
		return model.NewFailureResult(request.ID, model.NewFlowError(model.KindFatalRemote,
			"analysis produced no answer"))
	}

	w.GetSuccessCounter().Add(ctx, 1)
	return model.NewSuccessResult(request.ID, answer)
}

// cleanupRemote deletes the remotely ingested file, if this run created
// one. Runs after the result is decided; failures are only logged.
func (w *AnalysisWorkflow) cleanupRemote(chCtx cor.Context) {
	handle, ok := chCtx.Get(commands.GetMediaHandleParameterName()).(*ingest.Handle)
	if !ok {
		return
	}
	w.poller.Cleanup(chCtx.GetContext(), handle)
}

// NewAnalysisPipeline builds the production workflow for one configured
// agent model.
//
// Inputs:
//   - config: The application configuration.
//   - serviceClients: The initialized cloud clients.
//   - agentModelKey: The logical key of the agent model to drive.
//
// Outputs:
//   - *AnalysisWorkflow: The ready-to-use workflow.
func NewAnalysisPipeline(
	config *cloud.Config,
	serviceClients *cloud.ServiceClients,
	agentModelKey string) *AnalysisWorkflow {

	promptTemplate, err := template.New("analysis-template").Parse(config.PromptTemplates.AnalysisPrompt)
	if err != nil {
		panic(err) // The app cannot run without a valid prompt template.
	}

	modelConfig := config.AgentModels[agentModelKey]
	executor := retry.NewExecutor("analyze-"+agentModelKey, retry.Policy{
		MaxAttempts: modelConfig.MaxAttempts,
		MaxBackoff:  time.Duration(modelConfig.MaxBackoffInSeconds) * time.Second,
	})

	poller := ingest.NewPoller(
		serviceClients.FileService,
		time.Duration(config.Ingestion.PollIntervalInSeconds)*time.Second,
		time.Duration(config.Ingestion.TimeoutInSeconds)*time.Second,
	)

	return NewAnalysisWorkflow(
		"analysis-pipeline-"+agentModelKey,
		poller,
		serviceClients.GCSResolver,
		serviceClients.AgentModels[agentModelKey],
		executor,
		promptTemplate,
	)
}
