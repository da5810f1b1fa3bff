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
// workflow. This file defines the ingestion command, the bridge between a
// temporary local file and the Gemini file service.
//
// Logic Flow:
//  1. The command receives the resolved MediaSource from the previous
//     command. A source that already carries a READY handle (a gs:// object)
//     passes straight through.
//  2. A local source is submitted to the remote file service, then the
//     poller blocks until the remote side reports the file READY, re-
//     fetching its state once per poll interval.
//  3. The ready handle is stored both as the command output and under the
//     canonical handle key, where the workflow finds it for post-run
//     cleanup of the remotely ingested copy.
//
// The invariant enforced here is the one the whole flow depends on: no
// handle leaves this command for the analyzer unless its state is READY.
package commands

import (
	"log/slog"

	"github.com/muziris/gcp-go-video-insight/internal/core/cor"
	"github.com/muziris/gcp-go-video-insight/internal/core/ingest"
)

// MediaIngest is the command that drives a local media file through remote
// ingestion and waits for it to become ready.
type MediaIngest struct {
	cor.BaseCommand
	poller *ingest.Poller // Owns the submit-then-poll loop and its timing policy.
}

// NewMediaIngest is the constructor for the MediaIngest command.
func NewMediaIngest(name string, poller *ingest.Poller) *MediaIngest {
	return &MediaIngest{BaseCommand: *cor.NewBaseCommand(name), poller: poller}
}

// Execute submits the media for ingestion and blocks until it is ready.
func (c *MediaIngest) Execute(context cor.Context) {
	source := context.Get(c.GetInputParam()).(*MediaSource)

	// gs:// sources arrive READY; nothing to ingest.
	if source.Handle != nil && source.Handle.Ready() {
		c.GetSuccessCounter().Add(context.GetContext(), 1)
		context.Add(GetMediaHandleParameterName(), source.Handle)
		context.Add(c.GetOutputParam(), source.Handle)
		return
	}

	handle, err := c.poller.Ingest(context.GetContext(), source.Local.Path, source.Local.DisplayName, source.Local.MIMEType)
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), err)
		return
	}
	// Record the handle before waiting: if polling fails mid-way the
	// workflow can still delete the remote copy.
	context.Add(GetMediaHandleParameterName(), handle)

	ready, err := c.poller.AwaitReady(context.GetContext(), handle)
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), err)
		return
	}

	slog.Info("media ready for analysis", "name", ready.Name, "uri", ready.URI)
	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(GetMediaHandleParameterName(), ready)
	context.Add(c.GetOutputParam(), ready)
}
