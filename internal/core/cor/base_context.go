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
// workflows. This file holds BaseContext, the default Context: a property
// bag for one workflow run, with error collection and temp-file cleanup.
package cor

import (
	"context"
	"log/slog"
	"os"
)

// BaseContext is the default implementation of the Context interface.
type BaseContext struct {
	data      map[string]interface{} // Arbitrary key-value state shared between commands.
	errors    map[string]error       // Errors keyed by the name of the command that recorded them.
	tempFiles []string               // Local files to remove when the run finishes.
	context   context.Context        // Go context for cancellation and span propagation.
}

// NewBaseContext returns an empty, ready-to-use workflow context.
func NewBaseContext() Context {
	return &BaseContext{
		data:      make(map[string]interface{}),
		errors:    make(map[string]error),
		tempFiles: make([]string, 0),
	}
}

func (c *BaseContext) SetContext(context context.Context) {
	c.context = context
}

func (c *BaseContext) GetContext() context.Context {
	return c.context
}

// Close removes every temporary file registered during the run. Deferred by
// the workflow right after the context is created, so the files disappear on
// success, failure and early validation exits alike.
func (c *BaseContext) Close() {
	for _, file := range c.tempFiles {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove temporary file", "file", file, "error", err)
		}
	}
}

func (c *BaseContext) Add(key string, value interface{}) Context {
	c.data[key] = value
	return c
}

func (c *BaseContext) Get(key string) interface{} {
	return c.data[key]
}

func (c *BaseContext) Remove(key string) {
	delete(c.data, key)
}

func (c *BaseContext) AddTempFile(file string) {
	c.tempFiles = append(c.tempFiles, file)
}

func (c *BaseContext) GetTempFiles() []string {
	return c.tempFiles
}

func (c *BaseContext) AddError(key string, err error) {
	c.errors[key] = err
}

func (c *BaseContext) GetErrors() map[string]error {
	return c.errors
}

func (c *BaseContext) HasErrors() bool {
	return len(c.errors) > 0
}

// FirstError returns an arbitrary recorded error. Chains stop at the first
// failing command, so in practice the map holds at most one entry.
func (c *BaseContext) FirstError() error {
	for _, err := range c.errors {
		return err
	}
	return nil
}
