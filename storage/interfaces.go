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

package storage

import (
	"context"
	"time"

	"github.com/poiesic/switchboard/core"
)

// Distance selects how a collection scores similarity.
type Distance string

const (
	// Cosine scores by cosine similarity. Higher is more similar.
	Cosine Distance = "cosine"
	// Dot scores by inner product. Only meaningful for normalized vectors.
	Dot Distance = "dot"
)

// Valid reports whether d is a supported distance.
func (d Distance) Valid() bool {
	return d == Cosine || d == Dot
}

// HealthStatus reports reachability of a vector store.
type HealthStatus struct {
	Connected bool   `json:"connected"`
	URL       string `json:"url"`
}

// Collection describes one agent's chunk collection.
type Collection struct {
	AgentID    string    `json:"agentId"`
	VectorSize int       `json:"vectorSize"`
	Distance   Distance  `json:"distance"`
	CreatedAt  time.Time `json:"createdAt"`
}

// VectorStore persists embedded chunks in one collection per agent.
// Implementations must be thread-safe and support concurrent access.
type VectorStore interface {
	// EnsureCollection creates the agent's collection if it is missing.
	// Returns ErrDimensionMismatch if it exists with a different vector size.
	EnsureCollection(ctx context.Context, agentID string, vectorSize int, distance Distance) error

	// Upsert inserts or replaces chunks by ID.
	// Returns ErrCollectionNotFound if the collection does not exist and
	// ErrDimensionMismatch if a chunk vector has the wrong length.
	Upsert(ctx context.Context, agentID string, chunks ...*core.Chunk) error

	// Search returns up to limit chunks scoring >= threshold, best first.
	// Returns ErrCollectionNotFound if the collection does not exist.
	Search(ctx context.Context, agentID string, vector []float32, limit int, threshold float32) ([]*core.ScoredChunk, error)

	// DeleteByDocument removes every chunk of one document.
	// Missing collections and documents are not an error.
	DeleteByDocument(ctx context.Context, agentID, documentID string) error

	// DeleteCollection drops the agent's collection and all its chunks.
	// Missing collections are not an error.
	DeleteCollection(ctx context.Context, agentID string) error

	// CountDocumentChunks returns the number of stored chunks for a document.
	CountDocumentChunks(ctx context.Context, agentID, documentID string) (int, error)

	// Health reports whether the store is reachable.
	Health(ctx context.Context) HealthStatus

	// Close closes the store and releases resources.
	Close() error
}
