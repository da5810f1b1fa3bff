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

// Package retry_test covers the transient-error classifier and the backoff
// computation. The classification table here mirrors the substring table in
// the classifier one-to-one: a new marker string in one must show up in the
// other.
package retry_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/muziris/gcp-go-video-insight/internal/core/model"
	"github.com/muziris/gcp-go-video-insight/internal/core/retry"
	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

func TestClassifyMessageText(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want model.ErrorKind
	}{
		{"bare 429", errors.New("googleapi: Error 429: too many requests"), model.KindTransientRateLimit},
		{"quota exceeded", errors.New("Quota exceeded for quota metric 'GenerateContent requests'"), model.KindTransientRateLimit},
		{"rate limit mixed case", errors.New("Rate Limit reached, please slow down"), model.KindTransientRateLimit},
		{"auth failure", errors.New("googleapi: Error 403: permission denied"), model.KindFatalRemote},
		{"bad request", errors.New("invalid argument: unsupported mime type"), model.KindFatalRemote},
		{"network partition", errors.New("dial tcp: connection refused"), model.KindFatalRemote},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, retry.Classify(tc.err))
		})
	}
}

func TestClassifyStructuredCodes(t *testing.T) {
	// The structured paths must classify even when the message text carries
	// none of the marker substrings.
	gerr := &googleapi.Error{Code: 429, Message: "resource exhausted"}
	assert.Equal(t, model.KindTransientRateLimit, retry.Classify(fmt.Errorf("call failed: %w", gerr)))

	aerr := genai.APIError{Code: 429, Message: "resource exhausted"}
	assert.Equal(t, model.KindTransientRateLimit, retry.Classify(aerr))

	statusOnly := genai.APIError{Code: 0, Status: "RESOURCE_EXHAUSTED", Message: "exhausted"}
	assert.Equal(t, model.KindTransientRateLimit, retry.Classify(statusOnly))

	fatal := &googleapi.Error{Code: 500, Message: "internal"}
	assert.Equal(t, model.KindFatalRemote, retry.Classify(fatal))
}

func TestDelayHonorsRetryInHint(t *testing.T) {
	err := errors.New("429: quota exceeded, retry in 12.5s")
	assert.Equal(t, 12500*time.Millisecond, retry.Delay(err, 1, retry.DefaultMaxBackoff))
}

func TestDelayHonorsRetryDelayHint(t *testing.T) {
	err := errors.New("rate limit exceeded. retry_delay { seconds: 7 }")
	assert.Equal(t, 7*time.Second, retry.Delay(err, 3, retry.DefaultMaxBackoff))
}

func TestDelayPrefersFirstHintFormat(t *testing.T) {
	// Both formats present: the "retry in Ns" form wins.
	err := errors.New("retry in 3s ... retry_delay { seconds: 30 }")
	assert.Equal(t, 3*time.Second, retry.Delay(err, 1, retry.DefaultMaxBackoff))
}

func TestDelayExponentialFallback(t *testing.T) {
	err := errors.New("quota exceeded")
	assert.Equal(t, 2*time.Second, retry.Delay(err, 1, retry.DefaultMaxBackoff))
	assert.Equal(t, 4*time.Second, retry.Delay(err, 2, retry.DefaultMaxBackoff))
	assert.Equal(t, 8*time.Second, retry.Delay(err, 3, retry.DefaultMaxBackoff))
	// Capped at the ceiling once 2^attempt passes it.
	assert.Equal(t, 60*time.Second, retry.Delay(err, 6, retry.DefaultMaxBackoff))
	assert.Equal(t, 60*time.Second, retry.Delay(err, 20, retry.DefaultMaxBackoff))
}

func TestDelayLargeAttemptStaysAtCeiling(t *testing.T) {
	// 1<<attempt overflows int64 nanoseconds around attempt 34; the wait
	// must stay pinned at the ceiling, never go negative or zero.
	err := errors.New("quota exceeded")
	for _, attempt := range []int{30, 34, 64, 100} {
		wait := retry.Delay(err, attempt, retry.DefaultMaxBackoff)
		assert.Equal(t, retry.DefaultMaxBackoff, wait, "attempt %d", attempt)
		assert.Positive(t, wait, "attempt %d", attempt)
	}
}
