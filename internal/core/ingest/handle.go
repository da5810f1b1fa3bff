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
// until the remote side reports readiness. This file defines the handle: an
// opaque reference to the remote copy of a media asset, queried by name
// rather than inspected directly. The remote service owns the object; this
// package only holds a snapshot of its last observed state.
package ingest

// State is the remote processing state of an ingested media file.
type State string

const (
	StatePending    State = "PENDING"    // Accepted but not yet picked up for processing.
	StateProcessing State = "PROCESSING" // The remote service is still preparing the file.
	StateReady      State = "READY"      // The file can be handed to the analysis model.
	StateFailed     State = "FAILED"     // The remote service gave up on the file.
)

// Handle is a snapshot reference to a remote media object. Name is the
// identifier used to re-fetch state; URI and MIMEType are what the analysis
// call needs to address the file. A handle backed by an object that was
// never ingested (a pre-existing GCS object) has an empty Name and is READY
// by construction.
type Handle struct {
	Name     string // The remote service's identifier for the ingested file.
	URI      string // The URI the analysis model uses to reference the file.
	MIMEType string // The media MIME type, e.g. "video/mp4".
	State    State  // The last observed processing state.
}

// Ready reports whether the handle may be passed to analysis. The workflow
// invariant is that no handle reaches the analyzer until this is true.
func (h *Handle) Ready() bool {
	return h.State == StateReady
}

// Ingested reports whether this handle refers to a file this process
// uploaded to the remote file service (and should therefore clean up),
// as opposed to a caller-owned GCS object.
func (h *Handle) Ingested() bool {
	return h.Name != ""
}
