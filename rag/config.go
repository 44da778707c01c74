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

package rag

import (
	"fmt"
	"time"

	"github.com/poiesic/switchboard/storage"
)

// Config holds chunking, ingestion and retrieval parameters.
type Config struct {
	// ChunkSize is the maximum chunk length in characters. Default: 500
	ChunkSize int

	// ChunkOverlap is the number of characters shared by consecutive chunks. Default: 50
	ChunkOverlap int

	// MinChunkSize drops a trailing chunk shorter than this. Default: 20
	MinChunkSize int

	// Limit is the default number of chunks returned by Retrieve. Default: 5
	Limit int

	// ScoreThreshold is the default minimum similarity for Retrieve. Default: 0.1
	ScoreThreshold float32

	// VectorSize is the collection dimension. Default: 384
	VectorSize int

	// Distance is the collection similarity function. Default: cosine
	Distance storage.Distance

	// EmbedBatchSize is the number of chunks sent per embedding call. Default: 32
	EmbedBatchSize int

	// MaxRetries bounds embedding attempts per batch. Default: 3
	MaxRetries int

	// RetryDelay is the base backoff between attempts. Default: 200ms
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with the standard retrieval parameters.
func DefaultConfig() *Config {
	return &Config{
		ChunkSize:      500,
		ChunkOverlap:   50,
		MinChunkSize:   20,
		Limit:          5,
		ScoreThreshold: 0.1,
		VectorSize:     384,
		Distance:       storage.Cosine,
		EmbedBatchSize: 32,
		MaxRetries:     3,
		RetryDelay:     200 * time.Millisecond,
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	switch {
	case c.ChunkSize <= 0:
		return fmt.Errorf("%w: ChunkSize must be positive", ErrInvalidConfig)
	case c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize:
		return fmt.Errorf("%w: ChunkOverlap must be in [0, ChunkSize)", ErrInvalidConfig)
	case c.MinChunkSize < 0 || c.MinChunkSize > c.ChunkSize:
		return fmt.Errorf("%w: MinChunkSize must be in [0, ChunkSize]", ErrInvalidConfig)
	case c.Limit <= 0:
		return fmt.Errorf("%w: Limit must be positive", ErrInvalidConfig)
	case c.VectorSize <= 0:
		return fmt.Errorf("%w: VectorSize must be positive", ErrInvalidConfig)
	case !c.Distance.Valid():
		return fmt.Errorf("%w: unsupported distance %q", ErrInvalidConfig, c.Distance)
	case c.EmbedBatchSize <= 0:
		return fmt.Errorf("%w: EmbedBatchSize must be positive", ErrInvalidConfig)
	case c.MaxRetries <= 0:
		return fmt.Errorf("%w: MaxRetries must be positive", ErrInvalidConfig)
	}
	return nil
}

// Chunker returns a chunker using the configured sizes.
func (c *Config) Chunker() Chunker {
	return Chunker{Size: c.ChunkSize, Overlap: c.ChunkOverlap, MinSize: c.MinChunkSize}
}
