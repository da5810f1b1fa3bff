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

// Package model defines the core data structures for the application.
// This file, `transient.go`, contains the in-memory objects that travel
// through a single analysis workflow execution: the immutable request built
// from the caller's input and the terminal result handed back to the caller.
// Nothing in this file is persisted; every value lives for exactly one
// request.
package model

// These objects are used in memory via workflows, but are never persisted.

// AnalysisRequest describes one upload-and-analyze run. It is constructed
// once by the HTTP layer (or a test) and treated as immutable afterwards:
// the workflow reads from it but never writes back.
//
// Exactly one of LocalPath or GCSURI is set. LocalPath points at a temporary
// file owned by this request; the workflow is responsible for removing it on
// every exit path. GCSURI references an object that already exists in a
// bucket (`gs://bucket/object`) and requires no ingestion.
type AnalysisRequest struct {
	ID        string `json:"id"`                   // A unique identifier for this request, used for logging correlation.
	Filename  string `json:"filename,omitempty"`   // The caller's original filename, used as the remote display name.
	LocalPath string `json:"local_path,omitempty"` // Path to the temporary local copy of the uploaded video.
	GCSURI    string `json:"gcs_uri,omitempty"`    // Alternative source: an existing GCS object URI.
	Question  string `json:"question"`             // The caller's natural-language question about the video.
	ModelKey  string `json:"model"`                // The logical key of the configured agent model to query.
}

// AnalysisResult is the discriminated terminal value of a workflow run.
// A run produces exactly one of these: either Success is true and Text holds
// the model's answer, or Success is false and Kind/Message describe the
// failure. The result is never retried further upstream.
type AnalysisResult struct {
	ID      string    `json:"id"`                // The request identifier this result belongs to.
	Success bool      `json:"success"`           // Discriminator: true for a successful analysis.
	Text    string    `json:"text,omitempty"`    // The model's free-text answer. Only set on success.
	Kind    ErrorKind `json:"kind,omitempty"`    // The failure classification. Only set on failure.
	Message string    `json:"message,omitempty"` // A human-readable failure description. Only set on failure.
}

// NewSuccessResult wraps a model answer as a successful AnalysisResult.
func NewSuccessResult(id string, text string) *AnalysisResult {
	return &AnalysisResult{ID: id, Success: true, Text: text}
}

// NewFailureResult converts a workflow error into a Failure result. The kind
// is recovered from the error chain via KindOf, so the HTTP layer can
// pattern-match on it without re-parsing messages.
func NewFailureResult(id string, err error) *AnalysisResult {
	return &AnalysisResult{
		ID:      id,
		Success: false,
		Kind:    KindOf(err),
		Message: err.Error(),
	}
}
