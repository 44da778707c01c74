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

package ai

import (
	"context"

	"github.com/poiesic/switchboard/core"
)

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use; a single instance
// is shared by every caller in the process.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// Model returns the embedding model identifier.
	Model() string

	// Dimension returns the length of every vector the embedder produces.
	Dimension() int

	// Loaded reports whether the model has answered at least once with a
	// vector of the expected dimension.
	Loaded() bool
}

// Message roles accepted by completion APIs.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of a chat completion prompt.
type Message struct {
	Role    string
	Content string
}

// CompletionRequest is a single chat completion call.
// Temperature and MaxTokens are expected to be bounded by the caller.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Completer produces chat completions against one connection.
// Implementations must be thread-safe for concurrent use.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompleterFactory returns the completer for a configured connection.
// Implementations may cache clients per connection id.
type CompleterFactory interface {
	Completer(conn *core.Connection) (Completer, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the shared text embedding service.
	Embedder() Embedder

	// Completers returns the factory used to reach completion connections.
	Completers() CompleterFactory

	// Close releases resources held by the provider and its services.
	Close() error
}
