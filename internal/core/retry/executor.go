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
// classification, backoff computation and bounded re-attempts. This file
// defines the executor itself.
//
// Logic Flow:
//  1. Invoke the action. On success, return its result immediately.
//  2. On failure, classify the error (see classifier.go). Fatal errors are
//     wrapped and returned with no further attempts.
//  3. For a transient rate-limit error, stop if the attempt budget is spent;
//     otherwise compute the wait (service hint or exponential backoff),
//     sleep for it, and go back to step 1.
//
// The wrapped action must be idempotent: the executor assumes it is a
// read-style query with no side effects on remote state, safe to repeat.
// Each Do call carries its own attempt counter, so a single Executor may be
// shared across sequential requests.
package retry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/muziris/gcp-go-video-insight/internal/core/model"
)

const (
	// DefaultMaxAttempts bounds the retry loop when the policy leaves
	// MaxAttempts unset.
	DefaultMaxAttempts = 4
	// DefaultMaxBackoff caps the exponential fallback at one minute, the
	// longest quota window the service is known to use.
	DefaultMaxBackoff = 60 * time.Second
)

// Policy is the retry configuration for one executor. It is read-only during
// a run; the per-run attempt counter lives on the stack of Do.
type Policy struct {
	MaxAttempts int           // Total invocations allowed, including the first. Must be >= 1.
	MaxBackoff  time.Duration // Ceiling for the exponential fallback delay.
}

// normalized fills in defaults for zero-valued fields.
func (p Policy) normalized() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = DefaultMaxBackoff
	}
	return p
}

// Action is a single remote analysis call. It must be idempotent.
type Action func(ctx context.Context) (string, error)

// SleepFunc pauses for the given duration or until the context is done.
// Injectable so tests can record computed waits instead of serving them.
type SleepFunc func(ctx context.Context, d time.Duration) error

// ctxSleep is the production SleepFunc: a timer that also honors
// cancellation, so a caller can abort a long backoff wait.
func ctxSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Executor runs actions under a Policy. Construct one per logical call site
// with NewExecutor so the retry counter metric is named after it.
type Executor struct {
	policy       Policy
	sleep        SleepFunc
	retryCounter metric.Int64Counter
}

// NewExecutor builds an Executor for the given call-site name and policy.
//
// Inputs:
//   - name: A short identifier used to namespace the OTel retry counter.
//   - policy: The attempt budget and backoff bounds.
//
// Outputs:
//   - *Executor: The configured executor, using the real clock for sleeps.
func NewExecutor(name string, policy Policy) *Executor {
	meter := otel.Meter("github.com/muziris/gcp-go-video-insight")
	retryCounter, _ := meter.Int64Counter(fmt.Sprintf("%s.counter.retry", name))
	return &Executor{
		policy:       policy.normalized(),
		sleep:        ctxSleep,
		retryCounter: retryCounter,
	}
}

// WithSleep replaces the sleep function. Intended for tests.
func (e *Executor) WithSleep(sleep SleepFunc) *Executor {
	e.sleep = sleep
	return e
}

// Do invokes the action under the executor's policy and returns its result,
// retrying only transient rate-limit failures.
//
// The returned error is always a *model.FlowError: KindFatalRemote for a
// non-retriable failure, KindRetryExhausted once the attempt budget is
// spent, or the context error wrapped as fatal if the caller cancels during
// a backoff wait.
func (e *Executor) Do(ctx context.Context, action Action) (string, error) {
	for attempt := 1; ; attempt++ {
		out, err := action(ctx)
		if err == nil {
			return out, nil
		}

		if Classify(err) != model.KindTransientRateLimit {
			return "", model.WrapFlowError(model.KindFatalRemote, err, "analysis request failed")
		}

		if attempt >= e.policy.MaxAttempts {
			return "", model.WrapFlowError(model.KindRetryExhausted, err,
				"rate limited on all %d attempts; switch to a model with more headroom or request a quota increase",
				e.policy.MaxAttempts)
		}

		wait := Delay(err, attempt, e.policy.MaxBackoff)
		if e.retryCounter != nil {
			e.retryCounter.Add(ctx, 1)
		}
		if serr := e.sleep(ctx, wait); serr != nil {
			return "", model.WrapFlowError(model.KindFatalRemote, serr, "canceled while waiting to retry")
		}
	}
}
