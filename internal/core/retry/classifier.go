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

// Package retry wraps a single idempotent remote call with transient-error
// classification, backoff computation and bounded re-attempts. This file is
// the classifier: the one place in the codebase that decides whether a
// failure from the generative AI service is a rate-limit condition worth
// waiting out, or a fatal error that must surface immediately.
//
// The classifier prefers structured error codes (googleapi.Error and
// genai.APIError both carry the HTTP status) and falls back to substring
// matching on the message text. The substring table is deliberately small
// and mirrored one-to-one by tests, because matching free-form message text
// couples us to the remote service's wording.
package retry

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/muziris/gcp-go-video-insight/internal/core/model"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

// grpcResourceExhausted is the status string the Gemini API reports alongside
// HTTP 429 when a quota window is exceeded.
const grpcResourceExhausted = "RESOURCE_EXHAUSTED"

// Hint patterns, tried in order. The service frequently embeds the exact
// wait it wants in the error message; honoring it avoids wasted attempts
// because quota windows are deterministic.
var (
	// Matches "retry in 12.5s" (seconds may carry a fraction).
	retryInPattern = regexp.MustCompile(`(?i)retry in ([0-9]+(?:\.[0-9]+)?)s`)
	// Matches the protobuf-ish "retry_delay { seconds: 7 }" rendering.
	retryDelayPattern = regexp.MustCompile(`(?i)retry_delay[^0-9]*seconds:\s*([0-9]+)`)
)

// Classify decides whether an error from the remote analysis call is a
// transient rate-limit condition or fatal. Everything that is not
// recognizably a rate limit is fatal: malformed requests, auth failures and
// network partitions must not hide behind a retry loop.
//
// Inputs:
//   - err: The error returned by the remote call. Must be non-nil.
//
// Outputs:
//   - model.ErrorKind: KindTransientRateLimit or KindFatalRemote.
func Classify(err error) model.ErrorKind {
	// Structured codes first: both client libraries expose the HTTP status.
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusTooManyRequests {
		return model.KindTransientRateLimit
	}
	var aerr genai.APIError
	if errors.As(err, &aerr) {
		if aerr.Code == http.StatusTooManyRequests || aerr.Status == grpcResourceExhausted {
			return model.KindTransientRateLimit
		}
	}

	// Fall back to the message text.
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") ||
		strings.Contains(msg, "quota exceeded") ||
		strings.Contains(msg, "rate limit") {
		return model.KindTransientRateLimit
	}
	return model.KindFatalRemote
}

// Delay computes how long to wait before re-attempting after a transient
// failure on the given attempt number (1-based).
//
// A service-supplied hint extracted from the error message always wins; the
// two hint formats are tried in order. Without a parseable hint the delay
// falls back to exponential backoff, 2^attempt seconds capped at max.
//
// Inputs:
//   - err: The transient error whose message may carry a wait hint.
//   - attempt: The attempt number that just failed, starting at 1.
//   - max: The backoff ceiling (60s unless configured otherwise).
//
// Outputs:
//   - time.Duration: The computed wait.
func Delay(err error, attempt int, max time.Duration) time.Duration {
	if d, ok := hintedDelay(err.Error()); ok {
		return d
	}
	// 1<<attempt overflows int64 nanoseconds for large attempts, turning
	// the backoff negative. 2^30 seconds already exceeds any configurable
	// ceiling, so past that exponent the cap applies directly.
	const maxExponent = 30
	if attempt >= maxExponent {
		return max
	}
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > max {
		return max
	}
	return backoff
}

// hintedDelay extracts a service-declared wait duration from an error
// message. Returns false when neither pattern matches.
func hintedDelay(msg string) (time.Duration, bool) {
	if m := retryInPattern.FindStringSubmatch(msg); m != nil {
		seconds, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return time.Duration(seconds * float64(time.Second)), true
		}
	}
	if m := retryDelayPattern.FindStringSubmatch(msg); m != nil {
		seconds, err := strconv.Atoi(m[1])
		if err == nil {
			return time.Duration(seconds) * time.Second, true
		}
	}
	return 0, false
}
