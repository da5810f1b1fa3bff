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

package commands_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/muziris/gcp-go-video-insight/internal/core/commands"
	"github.com/muziris/gcp-go-video-insight/internal/core/cor"
	"github.com/muziris/gcp-go-video-insight/internal/core/ingest"
	"github.com/muziris/gcp-go-video-insight/internal/core/model"
	test "github.com/muziris/gcp-go-video-insight/internal/testutil"
	"github.com/stretchr/testify/assert"
)

type readyStatter struct {
	calls int
}

func (s *readyStatter) Stat(_ context.Context, uri string) (*ingest.Handle, error) {
	s.calls++
	return &ingest.Handle{URI: uri, MIMEType: "video/mp4", State: ingest.StateReady}, nil
}

func newChainContext(request *model.AnalysisRequest) cor.Context {
	chCtx := cor.NewBaseContext()
	chCtx.SetContext(context.Background())
	chCtx.Add(commands.GetRequestParameterName(), request)
	chCtx.Add(cor.CtxIn, request)
	return chCtx
}

func TestSniffVideoMIME(t *testing.T) {
	path := test.WriteTempVideo(t)
	mimeType, err := commands.SniffVideoMIME(path)
	assert.NoError(t, err)
	assert.Equal(t, "video/mp4", mimeType)
}

func TestSniffVideoMIMERejectsNonVideo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	assert.NoError(t, os.WriteFile(path, []byte("just text, no media"), 0o644))

	_, err := commands.SniffVideoMIME(path)
	assert.Error(t, err)
}

func TestResolveLocalSource(t *testing.T) {
	path := test.WriteTempVideo(t)
	resolver := commands.NewSourceResolver("resolve", &readyStatter{})

	chCtx := newChainContext(&model.AnalysisRequest{
		ID: "req-1", Filename: "demo.mp4", LocalPath: path, Question: "q",
	})
	resolver.Execute(chCtx)

	assert.False(t, chCtx.HasErrors())
	source := chCtx.Get(resolver.GetOutputParam()).(*commands.MediaSource)
	assert.Nil(t, source.Handle)
	assert.Equal(t, path, source.Local.Path)
	assert.Equal(t, "demo.mp4", source.Local.DisplayName)
	assert.Equal(t, "video/mp4", source.Local.MIMEType)
}

func TestResolveGCSSource(t *testing.T) {
	statter := &readyStatter{}
	resolver := commands.NewSourceResolver("resolve", statter)

	chCtx := newChainContext(&model.AnalysisRequest{
		ID: "req-2", GCSURI: "gs://media-bucket/clip.mp4", Question: "q",
	})
	resolver.Execute(chCtx)

	assert.False(t, chCtx.HasErrors())
	assert.Equal(t, 1, statter.calls)
	source := chCtx.Get(resolver.GetOutputParam()).(*commands.MediaSource)
	assert.Nil(t, source.Local)
	assert.True(t, source.Handle.Ready())
	assert.Equal(t, "gs://media-bucket/clip.mp4", source.Handle.URI)
}

func TestResolveGCSSourceDisabled(t *testing.T) {
	resolver := commands.NewSourceResolver("resolve", nil)

	chCtx := newChainContext(&model.AnalysisRequest{
		ID: "req-3", GCSURI: "gs://media-bucket/clip.mp4", Question: "q",
	})
	resolver.Execute(chCtx)

	assert.True(t, chCtx.HasErrors())
	assert.Equal(t, model.KindIngestionError, model.KindOf(chCtx.FirstError()))
}

func TestResolveRejectsNonVideoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	assert.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))
	resolver := commands.NewSourceResolver("resolve", nil)

	chCtx := newChainContext(&model.AnalysisRequest{
		ID: "req-4", Filename: "notes.txt", LocalPath: path, Question: "q",
	})
	resolver.Execute(chCtx)

	assert.True(t, chCtx.HasErrors())
	assert.Equal(t, model.KindIngestionError, model.KindOf(chCtx.FirstError()))
}
