// Copyright 2026 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mock

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/poiesic/switchboard/ai"
	"github.com/poiesic/switchboard/core"
)

// MockCompleter is a test double for ai.Completer.
// By default it echoes the last user message prefixed with "echo: ".
type MockCompleter struct {
	// CompleteFunc is called by Complete if set.
	CompleteFunc func(ctx context.Context, req ai.CompletionRequest) (string, error)

	// Delay is waited before answering, honoring context cancellation.
	Delay time.Duration

	mu       sync.Mutex
	requests []ai.CompletionRequest
}

var _ ai.Completer = (*MockCompleter)(nil)

// NewMockCompleter creates a mock completer with echo behavior.
func NewMockCompleter() *MockCompleter {
	return &MockCompleter{}
}

// Complete records the request and returns the configured answer.
func (m *MockCompleter) Complete(ctx context.Context, req ai.CompletionRequest) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == ai.RoleUser {
			return "echo: " + strings.TrimSpace(req.Messages[i].Content), nil
		}
	}
	return "echo:", nil
}

// CallCount returns the number of Complete calls.
func (m *MockCompleter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of every recorded request.
func (m *MockCompleter) Requests() []ai.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ai.CompletionRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// MockCompleterFactory hands out one MockCompleter per connection id.
type MockCompleterFactory struct {
	// Err, if set, is returned for every lookup.
	Err error

	mu         sync.Mutex
	completers map[string]*MockCompleter
}

var _ ai.CompleterFactory = (*MockCompleterFactory)(nil)

// NewMockCompleterFactory creates an empty factory.
func NewMockCompleterFactory() *MockCompleterFactory {
	return &MockCompleterFactory{completers: make(map[string]*MockCompleter)}
}

// Completer returns the mock registered for conn, creating one if needed.
func (f *MockCompleterFactory) Completer(conn *core.Connection) (ai.Completer, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.For(conn.ID), nil
}

// For returns the mock for a connection id so tests can configure it.
func (f *MockCompleterFactory) For(connectionID string) *MockCompleter {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.completers[connectionID]
	if !ok {
		c = NewMockCompleter()
		f.completers[connectionID] = c
	}
	return c
}
