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

package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidInbox indicates an Inbox failed validation.
	ErrInvalidInbox = errors.New("invalid inbox")

	// ErrInvalidAgent indicates an Agent failed validation.
	ErrInvalidAgent = errors.New("invalid agent")

	// ErrInvalidConnection indicates a Connection failed validation.
	ErrInvalidConnection = errors.New("invalid connection")

	// ErrEmptyID indicates a required identifier is empty.
	ErrEmptyID = errors.New("id cannot be empty")

	// ErrEmptyMessage indicates the inbound message has no text.
	ErrEmptyMessage = errors.New("message text cannot be empty")

	// ErrAgentAssignedTwice indicates an agent is both response agent and
	// pipeline agent of an inbox, or appears twice among pipeline agents.
	ErrAgentAssignedTwice = errors.New("agent assigned more than once to inbox")

	// ErrInvalidStage indicates an unknown or disallowed stage tag.
	ErrInvalidStage = errors.New("invalid stage")

	// ErrInvalidDocumentType indicates an unknown ContextDocument type.
	ErrInvalidDocumentType = errors.New("invalid document type")
)
