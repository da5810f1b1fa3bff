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

package cloud_test

import (
	"testing"

	"github.com/muziris/gcp-go-video-insight/internal/cloud"
	"github.com/zeebo/assert"
)

func TestParseGCSURI(t *testing.T) {
	bucket, object, err := cloud.ParseGCSURI("gs://media-bucket/trailers/clip-001.mp4")
	assert.NoError(t, err)
	assert.Equal(t, "media-bucket", bucket)
	assert.Equal(t, "trailers/clip-001.mp4", object)
}

func TestParseGCSURIRejectsOtherSchemes(t *testing.T) {
	_, _, err := cloud.ParseGCSURI("https://storage.googleapis.com/media-bucket/clip.mp4")
	assert.Error(t, err)
}

func TestParseGCSURIRejectsMissingParts(t *testing.T) {
	_, _, err := cloud.ParseGCSURI("gs://media-bucket")
	assert.Error(t, err)

	_, _, err = cloud.ParseGCSURI("gs://media-bucket/")
	assert.Error(t, err)

	_, _, err = cloud.ParseGCSURI("gs:///clip.mp4")
	assert.Error(t, err)
}

func TestGCSObjectURIRoundTrip(t *testing.T) {
	object := &cloud.GCSObject{Bucket: "media-bucket", Name: "trailers/clip-001.mp4"}
	assert.Equal(t, "gs://media-bucket/trailers/clip-001.mp4", object.URI())

	bucket, name, err := cloud.ParseGCSURI(object.URI())
	assert.NoError(t, err)
	assert.Equal(t, object.Bucket, bucket)
	assert.Equal(t, object.Name, name)
}
