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
// This file defines the error taxonomy shared by the ingestion poller, the
// retry executor and the analysis workflow. Instead of letting free-form
// errors cross component boundaries, each component wraps its failures in a
// FlowError carrying an explicit kind, and callers pattern-match on the kind
// rather than on message text.
package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the analysis flow can surface to a
// caller. Only KindTransientRateLimit is ever handled internally (retried);
// all other kinds propagate unchanged.
type ErrorKind string

const (
	// KindEmptyQuery is a local validation failure: the caller supplied an
	// empty question. No network call is made for this kind.
	KindEmptyQuery ErrorKind = "EMPTY_QUERY"
	// KindIngestionError means the remote service rejected the initial
	// submit call for the media file.
	KindIngestionError ErrorKind = "INGESTION_ERROR"
	// KindIngestionTimeout means the remote service did not finish
	// processing the media file within the configured window.
	KindIngestionTimeout ErrorKind = "INGESTION_TIMEOUT"
	// KindIngestionFailed means the remote service reported a terminal
	// failure state for the media file.
	KindIngestionFailed ErrorKind = "INGESTION_FAILED"
	// KindTransientRateLimit marks a rate-limit (quota) failure from the
	// analysis call. It is the only retried kind.
	KindTransientRateLimit ErrorKind = "TRANSIENT_RATE_LIMIT"
	// KindRetryExhausted means the analysis call kept hitting rate limits
	// until the retry budget ran out.
	KindRetryExhausted ErrorKind = "RETRY_EXHAUSTED"
	// KindFatalRemote covers every non-rate-limit failure from the remote
	// analysis call. Never retried, so configuration and programming errors
	// surface immediately instead of hiding behind a retry loop.
	KindFatalRemote ErrorKind = "FATAL_REMOTE_ERROR"
)

// FlowError is the error type used across component boundaries in the
// analysis flow. It pairs a classification kind with a wrapped cause so that
// errors.Is / errors.As keep working through it.
type FlowError struct {
	Kind    ErrorKind // The classification of this failure.
	message string    // A human-readable description.
	cause   error     // The underlying error, if any.
}

// NewFlowError builds a FlowError with a formatted message and no cause.
func NewFlowError(kind ErrorKind, format string, args ...interface{}) *FlowError {
	return &FlowError{Kind: kind, message: fmt.Sprintf(format, args...)}
}

// WrapFlowError builds a FlowError around an underlying cause. The cause
// remains reachable through errors.Unwrap.
func WrapFlowError(kind ErrorKind, cause error, format string, args ...interface{}) *FlowError {
	return &FlowError{Kind: kind, message: fmt.Sprintf(format, args...), cause: cause}
}

// Error implements the error interface. The cause, when present, is appended
// so that log lines carry the full story.
func (e *FlowError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap exposes the underlying cause for errors.Is / errors.As traversal.
func (e *FlowError) Unwrap() error {
	return e.cause
}

// KindOf extracts the ErrorKind from anywhere in an error chain. Errors that
// never passed through a FlowError default to KindFatalRemote, which keeps
// the "unknown means do not retry" policy intact.
func KindOf(err error) ErrorKind {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindFatalRemote
}
