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

package pipeline

import "errors"

var (
	// ErrInboxNotFound is returned by Process when the inbox is unknown.
	ErrInboxNotFound = errors.New("inbox not found")

	// ErrInboxInactive is returned by Process when the inbox is disabled.
	ErrInboxInactive = errors.New("inbox inactive")

	// ErrAgentNotFound indicates an assignment references an unknown agent.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrNoConnection indicates no usable completion connection was found.
	ErrNoConnection = errors.New("no completion connection available")

	// ErrNoModel indicates the resolved connection offers no usable model.
	ErrNoModel = errors.New("no enabled model on connection")

	// ErrNotStarted indicates the run ended before the agent could start.
	ErrNotStarted = errors.New("pipeline context ended before agent started")

	// ErrAgentPanic indicates an agent execution panicked.
	ErrAgentPanic = errors.New("agent execution panicked")

	// ErrAgentSourceRequired is returned when an agent source is not provided.
	ErrAgentSourceRequired = errors.New("agent source required")

	// ErrRunnerRequired is returned when an agent runner is not provided.
	ErrRunnerRequired = errors.New("agent runner required")

	// ErrCompleterFactoryRequired is returned when a completer factory is not provided.
	ErrCompleterFactoryRequired = errors.New("completer factory required")

	// ErrResolverRequired is returned when a connection resolver is not provided.
	ErrResolverRequired = errors.New("connection resolver required")
)
