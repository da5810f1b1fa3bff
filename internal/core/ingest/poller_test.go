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

// Tests for the ingestion poller, run against a scripted fake file service
// so no real uploads happen and no real intervals are served.
package ingest_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/muziris/gcp-go-video-insight/internal/core/ingest"
	"github.com/muziris/gcp-go-video-insight/internal/core/model"
	"github.com/stretchr/testify/assert"
)

// fakeFileService plays back a scripted sequence of handle states. Each
// Status call consumes the next state in the script; the last state repeats
// once the script is spent.
type fakeFileService struct {
	uploadErr   error
	script      []ingest.State
	statusCalls int
	statusErr   error
	deleted     []string
	deleteErr   error
}

func (f *fakeFileService) Upload(_ context.Context, _ string, displayName string, mimeType string) (*ingest.Handle, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return &ingest.Handle{
		Name:     "files/fake-001",
		URI:      "https://files.example/fake-001",
		MIMEType: mimeType,
		State:    f.script[0],
	}, nil
}

func (f *fakeFileService) Status(_ context.Context, name string) (*ingest.Handle, error) {
	f.statusCalls++
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	idx := f.statusCalls
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	return &ingest.Handle{Name: name, URI: "uri", MIMEType: "video/mp4", State: f.script[idx]}, nil
}

func (f *fakeFileService) Delete(_ context.Context, name string) error {
	f.deleted = append(f.deleted, name)
	return f.deleteErr
}

// noSleep records waits instead of serving them.
func noSleep(waits *[]time.Duration) ingest.SleepFunc {
	return func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
}

func TestAwaitReadyImmediateReady(t *testing.T) {
	service := &fakeFileService{script: []ingest.State{ingest.StateReady}}
	var waits []time.Duration
	poller := ingest.NewPoller(service, time.Second, time.Minute).WithSleep(noSleep(&waits))

	handle, err := poller.Ingest(context.Background(), "/tmp/clip.mp4", "clip.mp4", "video/mp4")
	assert.NoError(t, err)

	ready, err := poller.AwaitReady(context.Background(), handle)
	assert.NoError(t, err)
	assert.True(t, ready.Ready())
	// An already-ready handle triggers no state fetch and no wait.
	assert.Equal(t, 0, service.statusCalls)
	assert.Empty(t, waits)
}

func TestAwaitReadyPollsUntilReady(t *testing.T) {
	// PROCESSING on upload, PROCESSING on the first poll, READY on the second.
	service := &fakeFileService{script: []ingest.State{
		ingest.StateProcessing, ingest.StateProcessing, ingest.StateReady,
	}}
	var waits []time.Duration
	poller := ingest.NewPoller(service, time.Second, time.Minute).WithSleep(noSleep(&waits))

	handle, err := poller.Ingest(context.Background(), "/tmp/clip.mp4", "clip.mp4", "video/mp4")
	assert.NoError(t, err)

	ready, err := poller.AwaitReady(context.Background(), handle)
	assert.NoError(t, err)
	assert.Equal(t, ingest.StateReady, ready.State)
	assert.Equal(t, 2, service.statusCalls)
	// One configured-interval wait per poll.
	assert.Equal(t, []time.Duration{time.Second, time.Second}, waits)
}

func TestAwaitReadyImmediateFailure(t *testing.T) {
	service := &fakeFileService{script: []ingest.State{ingest.StateFailed}}
	var waits []time.Duration
	poller := ingest.NewPoller(service, time.Second, time.Minute).WithSleep(noSleep(&waits))

	// An already-FAILED handle fails immediately, with no state fetch and
	// no wait, just like an already-READY one returns immediately.
	_, err := poller.AwaitReady(context.Background(), &ingest.Handle{
		Name: "files/fake-001", State: ingest.StateFailed,
	})
	assert.Error(t, err)
	assert.Equal(t, model.KindIngestionFailed, model.KindOf(err))
	assert.Equal(t, 0, service.statusCalls)
	assert.Empty(t, waits)
}

func TestAwaitReadyTerminalFailure(t *testing.T) {
	service := &fakeFileService{script: []ingest.State{
		ingest.StateProcessing, ingest.StateFailed,
	}}
	var waits []time.Duration
	poller := ingest.NewPoller(service, time.Second, time.Minute).WithSleep(noSleep(&waits))

	handle, err := poller.Ingest(context.Background(), "/tmp/clip.mp4", "clip.mp4", "video/mp4")
	assert.NoError(t, err)

	_, err = poller.AwaitReady(context.Background(), handle)
	assert.Error(t, err)
	assert.Equal(t, model.KindIngestionFailed, model.KindOf(err))
	// The loop stops on FAILED; it never polls past the terminal state.
	assert.Equal(t, 1, service.statusCalls)
}

func TestAwaitReadyTimeout(t *testing.T) {
	service := &fakeFileService{script: []ingest.State{ingest.StateProcessing}}
	var waits []time.Duration
	// A timeout in the past trips the deadline check on the first turn.
	poller := ingest.NewPoller(service, time.Second, time.Nanosecond).WithSleep(noSleep(&waits))

	handle, err := poller.Ingest(context.Background(), "/tmp/clip.mp4", "clip.mp4", "video/mp4")
	assert.NoError(t, err)

	time.Sleep(2 * time.Nanosecond)
	_, err = poller.AwaitReady(context.Background(), handle)
	assert.Error(t, err)
	assert.Equal(t, model.KindIngestionTimeout, model.KindOf(err))
}

func TestIngestUploadFailure(t *testing.T) {
	service := &fakeFileService{uploadErr: errors.New("connection reset")}
	poller := ingest.NewPoller(service, time.Second, time.Minute)

	_, err := poller.Ingest(context.Background(), "/tmp/clip.mp4", "clip.mp4", "video/mp4")
	assert.Error(t, err)
	assert.Equal(t, model.KindIngestionError, model.KindOf(err))
}

func TestAwaitReadyStatusFailure(t *testing.T) {
	service := &fakeFileService{
		script:    []ingest.State{ingest.StateProcessing},
		statusErr: errors.New("transport closed"),
	}
	var waits []time.Duration
	poller := ingest.NewPoller(service, time.Second, time.Minute).WithSleep(noSleep(&waits))

	handle, err := poller.Ingest(context.Background(), "/tmp/clip.mp4", "clip.mp4", "video/mp4")
	assert.NoError(t, err)

	_, err = poller.AwaitReady(context.Background(), handle)
	assert.Error(t, err)
	assert.Equal(t, model.KindIngestionError, model.KindOf(err))
}

func TestCleanupDeletesIngestedHandle(t *testing.T) {
	service := &fakeFileService{script: []ingest.State{ingest.StateReady}}
	poller := ingest.NewPoller(service, time.Second, time.Minute)

	poller.Cleanup(context.Background(), &ingest.Handle{Name: "files/fake-001", State: ingest.StateReady})
	assert.Equal(t, []string{"files/fake-001"}, service.deleted)

	// A handle with no remote name (a gs:// source) is not deleted.
	poller.Cleanup(context.Background(), &ingest.Handle{URI: "gs://bucket/clip.mp4", State: ingest.StateReady})
	assert.Len(t, service.deleted, 1)

	poller.Cleanup(context.Background(), nil)
	assert.Len(t, service.deleted, 1)
}
