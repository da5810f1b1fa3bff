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

package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/muziris/gcp-go-video-insight/internal/cloud"
	"github.com/stretchr/testify/assert"
)

// The /models listing must be stable across calls — the default model
// first, the rest alphabetical — so selector frontends do not reshuffle
// on every refresh.
func TestModelRouterStableOrder(t *testing.T) {
	gin.SetMode(gin.TestMode)

	state.config = cloud.NewConfig()
	state.config.AgentModels["pro"] = cloud.GeminiAgentModel{Model: "gemini-1.5-pro"}
	state.config.AgentModels["flash"] = cloud.GeminiAgentModel{Model: "gemini-2.0-flash-exp"}
	state.config.AgentModels["creative"] = cloud.GeminiAgentModel{Model: "gemini-1.5-flash"}
	state.defaultModel = "flash"

	r := gin.New()
	ModelRouter(r.Group("/api/v1"))

	type modelInfo struct {
		Key     string `json:"key"`
		Model   string `json:"model"`
		Default bool   `json:"default"`
	}

	// Map iteration order varies per run, so one stable call is luck;
	// several in a row is the property.
	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/models", nil)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)

		var out []modelInfo
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))

		keys := make([]string, 0, len(out))
		for _, m := range out {
			keys = append(keys, m.Key)
		}
		assert.Equal(t, []string{"flash", "creative", "pro"}, keys)
		assert.True(t, out[0].Default)
		assert.False(t, out[1].Default)
		assert.False(t, out[2].Default)
	}
}
