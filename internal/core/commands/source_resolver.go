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
// workflow. This file defines the first command in the chain: turning the
// caller's request into a concrete media source.
//
// Logic Flow:
//  1. The command receives the AnalysisRequest from the context.
//  2. A gs:// source is verified against the storage service and becomes a
//     READY handle immediately: Gemini accepts GCS URIs directly, so no
//     ingestion is needed.
//  3. A local source has its MIME type sniffed from the file's leading bytes
//     and is staged for ingestion by the next command.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/h2non/filetype"
	"github.com/muziris/gcp-go-video-insight/internal/core/cor"
	"github.com/muziris/gcp-go-video-insight/internal/core/ingest"
	"github.com/muziris/gcp-go-video-insight/internal/core/model"
)

// GetRequestParameterName returns the canonical context key under which the
// workflow stores the AnalysisRequest, so every command reads the same one.
func GetRequestParameterName() string {
	return "__ANALYSIS_REQUEST__"
}

// GetMediaHandleParameterName returns the canonical context key for the
// ready media handle. The workflow also reads this key after the chain runs
// to clean up any remotely ingested file.
func GetMediaHandleParameterName() string {
	return "__MEDIA_HANDLE__"
}

// LocalMedia describes a staged local media file awaiting ingestion.
type LocalMedia struct {
	Path        string // The temporary local path of the media bytes.
	DisplayName string // The caller's original filename.
	MIMEType    string // The sniffed media MIME type.
}

// MediaSource is the resolver's output: exactly one of Handle (a source
// that is already remotely addressable) or Local (a file that still needs
// ingestion) is set.
type MediaSource struct {
	Handle *ingest.Handle
	Local  *LocalMedia
}

// GCSStatter is the narrow contract the resolver needs to verify a gs://
// source. The production implementation is cloud.GCSObjectResolver.
type GCSStatter interface {
	Stat(ctx context.Context, uri string) (*ingest.Handle, error)
}

// SourceResolver is the command that turns an AnalysisRequest into a
// MediaSource.
type SourceResolver struct {
	cor.BaseCommand
	statter GCSStatter // Verifies gs:// sources. May be nil when only local sources are used.
}

// NewSourceResolver is the constructor for the SourceResolver command.
func NewSourceResolver(name string, statter GCSStatter) *SourceResolver {
	return &SourceResolver{BaseCommand: *cor.NewBaseCommand(name), statter: statter}
}

// Execute resolves the request's media source.
func (c *SourceResolver) Execute(context cor.Context) {
	request := context.Get(c.GetInputParam()).(*model.AnalysisRequest)

	if request.GCSURI != "" {
		if c.statter == nil {
			c.GetErrorCounter().Add(context.GetContext(), 1)
			context.AddError(c.GetName(), model.NewFlowError(model.KindIngestionError,
				"gs:// sources are not enabled on this server"))
			return
		}
		handle, err := c.statter.Stat(context.GetContext(), request.GCSURI)
		if err != nil {
			c.GetErrorCounter().Add(context.GetContext(), 1)
			context.AddError(c.GetName(), model.WrapFlowError(model.KindIngestionError, err,
				"failed to resolve GCS source"))
			return
		}
		c.GetSuccessCounter().Add(context.GetContext(), 1)
		context.Add(c.GetOutputParam(), &MediaSource{Handle: handle})
		return
	}

	mimeType, err := SniffVideoMIME(request.LocalPath)
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), model.WrapFlowError(model.KindIngestionError, err,
			"unusable media file"))
		return
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(c.GetOutputParam(), &MediaSource{Local: &LocalMedia{
		Path:        request.LocalPath,
		DisplayName: request.Filename,
		MIMEType:    mimeType,
	}})
}

// SniffVideoMIME reads the leading bytes of the file and returns its video
// MIME type. Non-video content is rejected here so it never reaches the
// network. The HTTP layer calls this too, before accepting an upload.
func SniffVideoMIME(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	// 261 bytes is all the matchers need.
	head := make([]byte, 261)
	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		return "", err
	}
	head = head[:n]

	if !filetype.IsVideo(head) {
		return "", fmt.Errorf("content is not a recognized video format")
	}
	kind, err := filetype.Match(head)
	if err != nil {
		return "", err
	}
	return kind.MIME.Value, nil
}
