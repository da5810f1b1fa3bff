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

// Package cor (Chain of Responsibility) provides the building blocks for
// workflows: atomic commands that read their input from a shared context,
// do one unit of work, and write their output back for the next command.
// This file defines the interfaces; the Base* files in this package provide
// the default implementations every workflow uses.
package cor

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// CtxIn and CtxOut are the keys through which a chain pipes data between
// consecutive commands: after a command runs, the chain moves whatever it
// stored under CtxOut into CtxIn for the next command.
const (
	CtxIn  = "__IN__"
	CtxOut = "__OUT__"
)

// Context is the shared state for one workflow execution. It carries the
// data flowing between commands, every error any command recorded, the
// standard Go context for cancellation and tracing, and the list of
// temporary files the workflow must remove when it finishes.
type Context interface {
	// SetContext and GetContext manage the embedded Go context, which the
	// chain swaps per command so OTel spans nest correctly.
	SetContext(context context.Context)
	GetContext() context.Context

	// Add stores a value under a key; Get and Remove read and delete it.
	// Add returns the Context for fluent chaining.
	Add(key string, value interface{}) Context
	Get(key string) interface{}
	Remove(key string)

	// AddError records a command failure under the command's name.
	AddError(key string, err error)
	GetErrors() map[string]error
	HasErrors() bool
	// FirstError returns one recorded error, or nil. Workflows use it to
	// turn the error map into a single terminal result.
	FirstError() error

	// AddTempFile registers a local file for removal when Close runs.
	// Close removes every registered file; it is safe on every exit path
	// and must be deferred as soon as the context is created.
	AddTempFile(file string)
	GetTempFiles() []string
	Close()
}

// Executable is anything with core execution logic driven by a Context.
type Executable interface {
	Execute(context Context)
}

// Command is an atomic, testable unit of work with telemetry attached.
type Command interface {
	Executable

	// GetName identifies the command in logs, spans and counters.
	GetName() string
	// GetInputParam and GetOutputParam name the context keys this command
	// reads from and writes to. They default to CtxIn / CtxOut.
	GetInputParam() string
	GetOutputParam() string
	// IsExecutable is the precondition check the chain runs before Execute.
	IsExecutable(context Context) bool

	GetTracer() trace.Tracer
	GetMeter() metric.Meter
	GetSuccessCounter() metric.Int64Counter
	GetErrorCounter() metric.Int64Counter
}

// Chain is an ordered sequence of commands. A Chain is itself a Command, so
// chains nest.
type Chain interface {
	Command

	// ContinueOnFailure controls whether the chain keeps executing after a
	// command records an error. Off by default.
	ContinueOnFailure(bool) Chain
	// AddCommand appends a command to the execution sequence.
	AddCommand(command Command) Chain
}
