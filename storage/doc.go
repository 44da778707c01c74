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

// Package storage provides the vector storage abstraction for switchboard.
//
// VectorStore keeps one collection of embedded chunks per agent, so
// retrieval for one agent can never return another agent's knowledge.
//
// # Backends
//
//   - storage/badger: embedded BadgerDB store with a brute-force cosine scan.
//     The default; also used in-memory by tests.
//   - storage/pgvector: PostgreSQL with the pgvector extension, one table per
//     agent, queried through a pgx connection pool.
//
// # Usage
//
//	store, err := badger.NewVectorStore(backend)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	err = store.EnsureCollection(ctx, "agent-1", 384, storage.Cosine)
//	err = store.Upsert(ctx, "agent-1", chunks...)
//	hits, err := store.Search(ctx, "agent-1", queryVector, 5, 0.1)
//
// # Thread Safety
//
// All implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
