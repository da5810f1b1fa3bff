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
// services. This file handles the alternative media source: a video that
// already lives in a GCS bucket. Gemini models accept gs:// URIs directly,
// so such objects skip ingestion entirely; the resolver only verifies that
// the object exists and reads its content type, producing a handle that is
// READY by construction.
//
// Structs:
//   - GCSObject: A simplified internal model for a GCS object reference.
//   - GCSObjectResolver: Stats objects against the storage service.
//
// Functions:
//   - ParseGCSURI: Splits a gs://bucket/object URI into its parts.
package cloud

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/muziris/gcp-go-video-insight/internal/core/ingest"
)

// GCSObject is a simplified, internal representation of a Google Cloud
// Storage object reference.
type GCSObject struct {
	Bucket   string // The name of the GCS bucket.
	Name     string // The name of the object.
	MIMEType string // The MIME type of the object (e.g. "video/mp4").
}

// URI renders the object reference in gs:// form.
func (o *GCSObject) URI() string {
	return fmt.Sprintf("gs://%s/%s", o.Bucket, o.Name)
}

// ParseGCSURI splits a gs://bucket/object URI into bucket and object name.
func ParseGCSURI(uri string) (bucket string, object string, err error) {
	trimmed, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", fmt.Errorf("not a gs:// URI: %q", uri)
	}
	bucket, object, ok = strings.Cut(trimmed, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("malformed gs:// URI: %q", uri)
	}
	return bucket, object, nil
}

// GCSObjectResolver verifies caller-supplied GCS references against the
// storage service. It never writes; the object stays owned by the caller.
type GCSObjectResolver struct {
	client *storage.Client
}

// NewGCSObjectResolver wraps a storage client.
func NewGCSObjectResolver(client *storage.Client) *GCSObjectResolver {
	return &GCSObjectResolver{client: client}
}

// Stat confirms the object exists and returns a READY handle carrying its
// URI and content type.
//
// Inputs:
//   - ctx: The request context.
//   - uri: A gs://bucket/object reference.
//
// Outputs:
//   - *ingest.Handle: A READY handle for the object.
//   - error: If the URI is malformed or the object cannot be read.
func (r *GCSObjectResolver) Stat(ctx context.Context, uri string) (*ingest.Handle, error) {
	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return nil, err
	}
	attrs, err := r.client.Bucket(bucket).Object(object).Attrs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", uri, err)
	}
	gcsObject := &GCSObject{Bucket: bucket, Name: object, MIMEType: attrs.ContentType}
	return &ingest.Handle{
		URI:      gcsObject.URI(),
		MIMEType: gcsObject.MIMEType,
		State:    ingest.StateReady,
	}, nil
}
