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
// services. This file adapts the Gemini file API to the narrow FileService
// contract the ingestion poller polls against. The adapter translates the
// SDK's file states into the poller's state machine and nothing more; all
// waiting, timeout and failure policy lives in the poller.
package cloud

import (
	"context"

	"github.com/muziris/gcp-go-video-insight/internal/core/ingest"
	"google.golang.org/genai"
)

// GenAIFileService implements ingest.FileService on top of the Gemini file
// API. Files uploaded here are owned by this process and deleted again after
// analysis.
type GenAIFileService struct {
	client *genai.Client
}

// NewGenAIFileService wraps a genai client as an ingest.FileService.
func NewGenAIFileService(client *genai.Client) *GenAIFileService {
	return &GenAIFileService{client: client}
}

// Upload submits a local file to the Gemini file service and returns the
// initial handle snapshot, typically still PROCESSING.
func (s *GenAIFileService) Upload(ctx context.Context, localPath string, displayName string, mimeType string) (*ingest.Handle, error) {
	file, err := s.client.Files.UploadFromPath(ctx, localPath, &genai.UploadFileConfig{
		DisplayName: displayName,
		MIMEType:    mimeType,
	})
	if err != nil {
		return nil, err
	}
	return toHandle(file), nil
}

// Status re-fetches the current state of an uploaded file by name.
func (s *GenAIFileService) Status(ctx context.Context, name string) (*ingest.Handle, error) {
	file, err := s.client.Files.Get(ctx, name, nil)
	if err != nil {
		return nil, err
	}
	return toHandle(file), nil
}

// Delete removes an uploaded file from the Gemini file service.
func (s *GenAIFileService) Delete(ctx context.Context, name string) error {
	_, err := s.client.Files.Delete(ctx, name, nil)
	return err
}

// toHandle maps a genai.File snapshot onto the poller's handle shape.
func toHandle(file *genai.File) *ingest.Handle {
	return &ingest.Handle{
		Name:     file.Name,
		URI:      file.URI,
		MIMEType: file.MIMEType,
		State:    toState(file.State),
	}
}

// toState maps the SDK file states onto the ingestion state machine. An
// unrecognized state is treated as PENDING so the poller keeps watching it
// until the service makes up its mind or the timeout fires.
func toState(state genai.FileState) ingest.State {
	switch state {
	case genai.FileStateActive:
		return ingest.StateReady
	case genai.FileStateProcessing:
		return ingest.StateProcessing
	case genai.FileStateFailed:
		return ingest.StateFailed
	default:
		return ingest.StatePending
	}
}
