// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// *****************************************************************************************************//
// Package main is the entry point for the video insight backend server.
//
// This application runs a web server using the Gin framework that accepts a
// video (as a multipart upload or a gs:// URI) together with a natural
// language question, submits the video to a hosted multimodal model, waits
// for remote ingestion to complete, and returns the model's answer. The
// server is instrumented with OpenTelemetry for logging, tracing, and
// metrics.
//
// Functions:
//   - main: Sets up logging, telemetry, configuration, cloud clients and
//     routes, then serves until interrupted and shuts down gracefully.
//   - AnalyzeRouter: Registers the analysis endpoint that drives the
//     upload-and-ask flow.
//   - ModelRouter: Registers the endpoint that lists the configured agent
//     models.
package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/muziris/gcp-go-video-insight/internal/core/commands"
	"github.com/muziris/gcp-go-video-insight/internal/core/model"
	"github.com/muziris/gcp-go-video-insight/internal/telemetry"
)

func main() {
	telemetry.SetupLogging()
	slog.Info("Logging initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	config := GetConfig()

	shutdownTelemetry, err := telemetry.SetupOpenTelemetry(ctx, config)
	if err != nil {
		slog.Error("Failed to setup OpenTelemetry", "error", err)
		log.Fatal(err)
	}
	slog.Info("Tracing initialized")

	InitState(ctx)
	slog.Info("Initialized State")

	r := gin.Default()

	r.Use(otelgin.Middleware("video-insight-server"))

	// Permissive CORS, suitable for development frontends.
	r.Use(cors.Default())

	apiV1 := r.Group("/api/v1")
	{
		AnalyzeRouter(apiV1)
		ModelRouter(apiV1)
	}

	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
		// Uploads can be large; the analysis itself can poll and retry for
		// minutes. Keep the write window generous.
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 15 * time.Minute,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to listen: ", "error", err)
		}
	}()
	slog.Info("Server Ready on port 8080")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutdown Server ...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server Shutdown Failed:", "error", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Error("Telemetry Shutdown Failed:", "error", err)
	}
	state.cloud.Close()

	log.Println("Server exiting")
}

// statusForKind maps a terminal failure classification to an HTTP status.
func statusForKind(kind model.ErrorKind) int {
	switch kind {
	case model.KindEmptyQuery:
		return http.StatusBadRequest
	case model.KindIngestionFailed:
		return http.StatusUnprocessableEntity
	case model.KindIngestionTimeout:
		return http.StatusGatewayTimeout
	case model.KindRetryExhausted:
		return http.StatusTooManyRequests
	case model.KindFatalRemote:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// AnalyzeRouter sets up the analysis endpoint.
//
// POST /analyze accepts multipart/form-data with:
//   - question: the natural language question about the video (required)
//   - video: the video file to upload (required unless gcs_uri is set)
//   - gcs_uri: a gs:// URI of an already-stored video (alternative to video)
//   - model: the agent model key to use (optional, defaults from config)
//
// The handler stages the upload in a temporary local file, rejects
// non-video content up front, then hands the request to the analysis
// workflow, which owns the temp file from that point on.
func AnalyzeRouter(r *gin.RouterGroup) {
	r.POST("/analyze", func(c *gin.Context) {
		requestID := uuid.NewString()
		question := c.PostForm("question")

		modelKey := c.DefaultPostForm("model", state.defaultModel)
		flow, ok := state.workflows[modelKey]
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{
				"id":    requestID,
				"error": "unknown model: " + modelKey,
			})
			return
		}

		request := &model.AnalysisRequest{
			ID:       requestID,
			Question: question,
			ModelKey: modelKey,
		}

		if gcsURI := strings.TrimSpace(c.PostForm("gcs_uri")); gcsURI != "" {
			request.GCSURI = gcsURI
			request.Filename = filepath.Base(gcsURI)
		} else {
			file, err := c.FormFile("video")
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{
					"id":    requestID,
					"error": "provide a video file or a gcs_uri",
				})
				return
			}

			localPath, err := stageUpload(file)
			if err != nil {
				slog.Error("failed to stage upload", "request", requestID, "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{
					"id":    requestID,
					"error": "failed to store upload",
				})
				return
			}

			// Reject non-video payloads before any cloud call. The staged
			// copy is removed here since the workflow never sees it.
			if _, err := commands.SniffVideoMIME(localPath); err != nil {
				_ = os.Remove(localPath)
				c.JSON(http.StatusBadRequest, gin.H{
					"id":    requestID,
					"error": err.Error(),
				})
				return
			}

			request.LocalPath = localPath
			request.Filename = file.Filename
		}

		result := flow.Analyze(c.Request.Context(), request)
		if !result.Success {
			c.JSON(statusForKind(result.Kind), gin.H{
				"id":    result.ID,
				"kind":  string(result.Kind),
				"error": result.Message,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"id":     result.ID,
			"model":  modelKey,
			"answer": result.Text,
		})
	})
}

// stageUpload copies the request's video into a temporary local file and
// returns its path. The original filename only contributes its extension.
func stageUpload(file *multipart.FileHeader) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer func() { _ = src.Close() }()

	dst, err := os.CreateTemp(os.TempDir(),
		state.config.Ingestion.TempFilePrefix+"-*"+filepath.Ext(file.Filename))
	if err != nil {
		return "", err
	}
	defer func() { _ = dst.Close() }()

	if _, err := io.Copy(dst, src); err != nil {
		_ = os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}

// ModelRouter sets up the endpoint listing the configured agent models.
//
// GET /models returns each configured key with its underlying model name
// and marks the server's default. The order is stable across calls: the
// default first, the rest alphabetical, so selector UIs do not reshuffle.
func ModelRouter(r *gin.RouterGroup) {
	r.GET("/models", func(c *gin.Context) {
		type modelInfo struct {
			Key     string `json:"key"`
			Model   string `json:"model"`
			Default bool   `json:"default"`
		}
		keys := make([]string, 0, len(state.config.AgentModels))
		for key := range state.config.AgentModels {
			keys = append(keys, key)
		}
		sort.Slice(keys, func(i, j int) bool {
			if (keys[i] == state.defaultModel) != (keys[j] == state.defaultModel) {
				return keys[i] == state.defaultModel
			}
			return keys[i] < keys[j]
		})
		out := make([]modelInfo, 0, len(keys))
		for _, key := range keys {
			out = append(out, modelInfo{
				Key:     key,
				Model:   state.config.AgentModels[key].Model,
				Default: key == state.defaultModel,
			})
		}
		c.JSON(http.StatusOK, out)
	})
}
