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

package badger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/switchboard/core"
	"github.com/poiesic/switchboard/storage"
)

// VectorStore implements storage.VectorStore on top of BadgerDB.
// Similarity search is a full scan of the agent's chunk prefix.
type VectorStore struct {
	backend     *Backend
	ownsBackend bool
	logger      *slog.Logger
}

var _ storage.VectorStore = (*VectorStore)(nil)

// newVectorStore is an internal constructor that returns the concrete type.
func newVectorStore(backend *Backend) (*VectorStore, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	return &VectorStore{
		backend: backend,
		logger:  slog.Default().With("component", "badger-vector-store"),
	}, nil
}

// NewVectorStore creates a vector store sharing an existing backend.
// The caller keeps ownership of the backend.
//
// Returns storage.VectorStore interface to enforce abstraction.
func NewVectorStore(backend *Backend) (storage.VectorStore, error) {
	return newVectorStore(backend)
}

// OpenVectorStore opens a badger database at path and returns a vector
// store that owns it.
func OpenVectorStore(path string) (storage.VectorStore, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	store, err := newVectorStore(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	store.ownsBackend = true
	return store, nil
}

// Close closes the backend if the store opened it.
func (s *VectorStore) Close() error {
	if s.ownsBackend {
		return s.backend.Close()
	}
	return nil
}

// Health reports whether the database is open.
func (s *VectorStore) Health(ctx context.Context) storage.HealthStatus {
	return storage.HealthStatus{
		Connected: !s.backend.IsClosed(),
		URL:       s.backend.Location(),
	}
}

// EnsureCollection creates the agent's collection if it is missing.
func (s *VectorStore) EnsureCollection(ctx context.Context, agentID string, vectorSize int, distance storage.Distance) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if !distance.Valid() {
		return fmt.Errorf("%w: %q", storage.ErrInvalidDistance, distance)
	}
	if vectorSize <= 0 {
		return fmt.Errorf("%w: size %d", storage.ErrDimensionMismatch, vectorSize)
	}

	return s.backend.WithTx(func(tx *badger.Txn) error {
		existing, err := readCollection(tx, agentID)
		if err == nil {
			if existing.VectorSize != vectorSize {
				return fmt.Errorf("%w: collection %s has size %d, requested %d",
					storage.ErrDimensionMismatch, agentID, existing.VectorSize, vectorSize)
			}
			return nil
		}
		if !errors.Is(err, storage.ErrCollectionNotFound) {
			return err
		}

		data, err := storage.MarshalCollection(&storage.Collection{
			AgentID:    agentID,
			VectorSize: vectorSize,
			Distance:   distance,
			CreatedAt:  time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		if err := tx.Set(makeCollectionKey(agentID), data); err != nil {
			return err
		}
		s.logger.Info("created collection", "agent", agentID, "size", vectorSize, "distance", distance)
		return tx.Commit()
	}, true)
}

// Upsert inserts or replaces chunks by ID.
func (s *VectorStore) Upsert(ctx context.Context, agentID string, chunks ...*core.Chunk) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	var collection *storage.Collection
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		collection, err = readCollection(tx, agentID)
		return err
	}, false)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, chunk := range chunks {
		if len(chunk.Vector) != collection.VectorSize {
			return fmt.Errorf("%w: chunk %s has %d values, collection expects %d",
				storage.ErrDimensionMismatch, chunk.ID, len(chunk.Vector), collection.VectorSize)
		}
		if chunk.InsertedAt.IsZero() {
			chunk.InsertedAt = now
		}
	}

	// Large documents may not fit in one transaction; commit and continue.
	pending := chunks
	for len(pending) > 0 {
		written := 0
		err := s.backend.WithTx(func(tx *badger.Txn) error {
			for _, chunk := range pending {
				data, err := storage.MarshalChunk(chunk)
				if err != nil {
					return err
				}
				if err := tx.Set(makeChunkKey(agentID, chunk.ID), data); err != nil {
					if errors.Is(err, badger.ErrTxnTooBig) && written > 0 {
						break
					}
					return err
				}
				if err := tx.Set(makeDocumentKey(agentID, chunk.DocumentID, chunk.ID), nil); err != nil {
					if errors.Is(err, badger.ErrTxnTooBig) && written > 0 {
						break
					}
					return err
				}
				written++
			}
			return tx.Commit()
		}, true)
		if err != nil {
			return err
		}
		pending = pending[written:]
	}

	s.logger.Debug("upserted chunks", "agent", agentID, "count", len(chunks))
	return nil
}

// Search returns up to limit chunks scoring >= threshold, best first.
func (s *VectorStore) Search(ctx context.Context, agentID string, vector []float32, limit int, threshold float32) ([]*core.ScoredChunk, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	var results []*core.ScoredChunk
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		collection, err := readCollection(tx, agentID)
		if err != nil {
			return err
		}
		if len(vector) != collection.VectorSize {
			return fmt.Errorf("%w: query has %d values, collection expects %d",
				storage.ErrDimensionMismatch, len(vector), collection.VectorSize)
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeChunkPrefix(agentID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var chunk *core.Chunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			if len(chunk.Vector) == 0 {
				continue
			}

			score := collection.Distance.Score(vector, chunk.Vector)
			if score >= threshold {
				results = append(results, &core.ScoredChunk{Chunk: chunk, Score: score})
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Sort by similarity descending; ties fall back to document order.
	slices.SortFunc(results, func(a, b *core.ScoredChunk) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Chunk.DocumentID, b.Chunk.DocumentID); c != 0 {
			return c
		}
		return cmp.Compare(a.Chunk.Index, b.Chunk.Index)
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// DeleteByDocument removes every chunk of one document.
func (s *VectorStore) DeleteByDocument(ctx context.Context, agentID, documentID string) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	var ids []string
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = makeDocumentPrefix(agentID, documentID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			ids = append(ids, chunkIDFromDocumentKey(iter.Item().KeyCopy(nil), agentID, documentID))
		}
		return nil
	}, false)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	keys := make([][]byte, 0, len(ids)*2)
	for _, id := range ids {
		keys = append(keys, makeChunkKey(agentID, id), makeDocumentKey(agentID, documentID, id))
	}
	if err := s.deleteKeys(keys); err != nil {
		return err
	}
	s.logger.Debug("deleted document chunks", "agent", agentID, "document", documentID, "count", len(ids))
	return nil
}

// DeleteCollection drops the agent's collection and all its chunks.
func (s *VectorStore) DeleteCollection(ctx context.Context, agentID string) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	var keys [][]byte
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		for _, prefix := range [][]byte{makeChunkPrefix(agentID), makeAgentDocumentPrefix(agentID)} {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			opts.Prefix = prefix
			iter := tx.NewIterator(opts)
			for iter.Rewind(); iter.Valid(); iter.Next() {
				keys = append(keys, iter.Item().KeyCopy(nil))
			}
			iter.Close()
		}
		return nil
	}, false)
	if err != nil {
		return err
	}

	keys = append(keys, makeCollectionKey(agentID))
	if err := s.deleteKeys(keys); err != nil {
		return err
	}
	s.logger.Info("deleted collection", "agent", agentID, "keys", len(keys))
	return nil
}

// CountDocumentChunks returns the number of stored chunks for a document.
func (s *VectorStore) CountDocumentChunks(ctx context.Context, agentID, documentID string) (int, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}

	count := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = makeDocumentPrefix(agentID, documentID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// deleteKeys removes keys in as many transactions as needed.
func (s *VectorStore) deleteKeys(keys [][]byte) error {
	for len(keys) > 0 {
		deleted := 0
		err := s.backend.WithTx(func(tx *badger.Txn) error {
			for _, key := range keys {
				if err := tx.Delete(key); err != nil {
					if errors.Is(err, badger.ErrTxnTooBig) && deleted > 0 {
						break
					}
					return err
				}
				deleted++
			}
			return tx.Commit()
		}, true)
		if err != nil {
			return err
		}
		keys = keys[deleted:]
	}
	return nil
}

func (s *VectorStore) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.backend.IsClosed() {
		return fmt.Errorf("%w: %w", storage.ErrUnavailable, storage.ErrStorageClosed)
	}
	return nil
}

func readCollection(tx *badger.Txn, agentID string) (*storage.Collection, error) {
	item, err := tx.Get(makeCollectionKey(agentID))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", storage.ErrCollectionNotFound, agentID)
		}
		return nil, err
	}

	var collection *storage.Collection
	err = item.Value(func(val []byte) error {
		var err error
		collection, err = storage.UnmarshalCollection(val)
		return err
	})
	return collection, err
}
