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

// Package ingest submits local media files for remote ingestion and polls
// until the remote side reports readiness. This file implements the poller.
//
// Logic Flow:
//  1. Ingest hands the local file to the remote file service and returns the
//     resulting handle, whatever state it is in.
//  2. AwaitReady re-fetches the handle while it reports PENDING or
//     PROCESSING, sleeping the poll interval between fetches, until it turns
//     READY, turns FAILED, or the timeout elapses.
//
// The loop is single-threaded and synchronous: at most one poller runs per
// media asset, matching the remote side's single-object semantics. The
// context is checked before every sleep so a caller can abort a slow
// ingestion.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/muziris/gcp-go-video-insight/internal/core/model"
)

const (
	// DefaultPollInterval is how long the poller waits between state
	// fetches unless configured otherwise.
	DefaultPollInterval = 1 * time.Second
	// DefaultTimeout bounds a single AwaitReady call.
	DefaultTimeout = 5 * time.Minute
)

// FileService is the narrow contract the poller needs from the remote
// ingestion service. The production implementation wraps the Gemini file
// API; tests substitute a scripted fake.
type FileService interface {
	// Upload submits the local file for ingestion and returns the initial
	// handle snapshot.
	Upload(ctx context.Context, localPath string, displayName string, mimeType string) (*Handle, error)
	// Status re-fetches the current handle snapshot by name.
	Status(ctx context.Context, name string) (*Handle, error)
	// Delete removes an ingested file from the remote service. Best-effort
	// cleanup after analysis.
	Delete(ctx context.Context, name string) error
}

// SleepFunc pauses for the given duration or until the context is done.
// Injectable so tests can count polls without waiting out real intervals.
type SleepFunc func(ctx context.Context, d time.Duration) error

func ctxSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Poller drives a media file through remote ingestion.
type Poller struct {
	service     FileService
	interval    time.Duration
	timeout     time.Duration
	sleep       SleepFunc
	pollCounter metric.Int64Counter
}

// NewPoller builds a Poller over the given file service. A non-positive
// interval or timeout falls back to the package default.
func NewPoller(service FileService, interval time.Duration, timeout time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	meter := otel.Meter("github.com/muziris/gcp-go-video-insight")
	pollCounter, _ := meter.Int64Counter("ingest.counter.poll")
	return &Poller{service: service, interval: interval, timeout: timeout, sleep: ctxSleep, pollCounter: pollCounter}
}

// WithSleep replaces the sleep function. Intended for tests.
func (p *Poller) WithSleep(sleep SleepFunc) *Poller {
	p.sleep = sleep
	return p
}

// Ingest submits the local file for remote ingestion.
//
// Inputs:
//   - ctx: The request context.
//   - localPath: The path of the temporary local media copy.
//   - displayName: The name to attach to the remote file, usually the
//     caller's original filename.
//   - mimeType: The sniffed media MIME type.
//
// Outputs:
//   - *Handle: The initial handle snapshot, typically still PROCESSING.
//   - error: A FlowError of KindIngestionError if the accept call fails.
func (p *Poller) Ingest(ctx context.Context, localPath string, displayName string, mimeType string) (*Handle, error) {
	handle, err := p.service.Upload(ctx, localPath, displayName, mimeType)
	if err != nil {
		return nil, model.WrapFlowError(model.KindIngestionError, err, "remote service rejected media submission")
	}
	slog.Info("media submitted for ingestion", "name", handle.Name, "state", string(handle.State))
	return handle, nil
}

// AwaitReady blocks until the handle is READY, re-fetching its state every
// poll interval. A handle that is already READY returns immediately with no
// poll call; one that is already FAILED returns KindIngestionFailed just as
// immediately.
//
// Outputs:
//   - *Handle: The READY handle snapshot.
//   - error: KindIngestionFailed if the remote reports a terminal failure,
//     KindIngestionTimeout once the configured window elapses, or
//     KindIngestionError if a state fetch itself fails.
func (p *Poller) AwaitReady(ctx context.Context, handle *Handle) (*Handle, error) {
	deadline := time.Now().Add(p.timeout)
	for {
		switch handle.State {
		case StateReady:
			return handle, nil
		case StateFailed:
			return nil, model.NewFlowError(model.KindIngestionFailed,
				"remote service failed to process media %q", handle.Name)
		}

		if time.Now().After(deadline) {
			return nil, model.NewFlowError(model.KindIngestionTimeout,
				"media %q still %s after %s", handle.Name, handle.State, p.timeout)
		}

		if err := p.sleep(ctx, p.interval); err != nil {
			return nil, model.WrapFlowError(model.KindIngestionError, err, "canceled while awaiting ingestion")
		}

		if p.pollCounter != nil {
			p.pollCounter.Add(ctx, 1)
		}
		next, err := p.service.Status(ctx, handle.Name)
		if err != nil {
			return nil, model.WrapFlowError(model.KindIngestionError, err,
				"failed to fetch ingestion state for %q", handle.Name)
		}
		handle = next
	}
}

// Cleanup deletes an ingested file from the remote service. Failures are
// logged, not propagated: the analysis result is already decided by the time
// cleanup runs.
func (p *Poller) Cleanup(ctx context.Context, handle *Handle) {
	if handle == nil || !handle.Ingested() {
		return
	}
	if err := p.service.Delete(ctx, handle.Name); err != nil {
		slog.Warn("failed to delete ingested media", "name", handle.Name, "error", err)
	}
}
