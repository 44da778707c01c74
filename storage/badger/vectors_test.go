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
	"context"
	"fmt"
	"testing"

	"github.com/poiesic/switchboard/core"
	"github.com/poiesic/switchboard/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) storage.VectorStore {
	t.Helper()
	store, err := NewMemoryVectorStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testChunk(agentID, documentID string, index int, vector []float32) *core.Chunk {
	return &core.Chunk{
		ID:           core.ChunkID(agentID, documentID, index),
		AgentID:      agentID,
		DocumentID:   documentID,
		DocumentType: core.DocumentTypeFile,
		Index:        index,
		Text:         fmt.Sprintf("%s chunk %d", documentID, index),
		Language:     "english",
		Vector:       vector,
	}
}

func TestEnsureCollection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureCollection(ctx, "a1", 3, storage.Cosine))
	// Idempotent with the same size.
	require.NoError(t, store.EnsureCollection(ctx, "a1", 3, storage.Cosine))

	err := store.EnsureCollection(ctx, "a1", 4, storage.Cosine)
	require.ErrorIs(t, err, storage.ErrDimensionMismatch)

	err = store.EnsureCollection(ctx, "a2", 3, storage.Distance("manhattan"))
	require.ErrorIs(t, err, storage.ErrInvalidDistance)
}

func TestUpsert_RequiresCollection(t *testing.T) {
	store := newTestStore(t)

	err := store.Upsert(context.Background(), "missing", testChunk("missing", "d", 0, []float32{1, 0, 0}))
	require.ErrorIs(t, err, storage.ErrCollectionNotFound)
}

func TestUpsert_DimensionMismatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, "a1", 3, storage.Cosine))

	err := store.Upsert(ctx, "a1", testChunk("a1", "d", 0, []float32{1, 0}))
	require.ErrorIs(t, err, storage.ErrDimensionMismatch)
}

func TestSearch_OrderingThresholdAndLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, "a1", 3, storage.Cosine))

	require.NoError(t, store.Upsert(ctx, "a1",
		testChunk("a1", "d1", 0, []float32{1, 0, 0}),
		testChunk("a1", "d1", 1, []float32{0.8, 0.6, 0}),
		testChunk("a1", "d1", 2, []float32{0, 1, 0}),
		testChunk("a1", "d1", 3, []float32{-1, 0, 0}),
	))

	results, err := store.Search(ctx, "a1", []float32{1, 0, 0}, 10, 0.1)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 0, results[0].Chunk.Index)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, 1, results[1].Chunk.Index)
	assert.InDelta(t, 0.8, results[1].Score, 1e-6)

	results, err = store.Search(ctx, "a1", []float32{1, 0, 0}, 1, -1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0, results[0].Chunk.Index)
}

func TestSearch_CollectionIsolation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, "a", 2, storage.Cosine))
	require.NoError(t, store.EnsureCollection(ctx, "ab", 2, storage.Cosine))
	require.NoError(t, store.Upsert(ctx, "ab", testChunk("ab", "d", 0, []float32{1, 0})))

	results, err := store.Search(ctx, "a", []float32{1, 0}, 5, 0)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = store.Search(ctx, "ab", []float32{1, 0}, 5, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "ab", results[0].Chunk.AgentID)
}

func TestSearch_MissingCollection(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Search(context.Background(), "nobody", []float32{1}, 5, 0)
	require.ErrorIs(t, err, storage.ErrCollectionNotFound)
}

func TestDeleteByDocument(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, "a1", 2, storage.Cosine))
	require.NoError(t, store.Upsert(ctx, "a1",
		testChunk("a1", "d1", 0, []float32{1, 0}),
		testChunk("a1", "d1", 1, []float32{1, 0}),
		testChunk("a1", "d2", 0, []float32{1, 0}),
	))

	n, err := store.CountDocumentChunks(ctx, "a1", "d1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, store.DeleteByDocument(ctx, "a1", "d1"))

	n, err = store.CountDocumentChunks(ctx, "a1", "d1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	results, err := store.Search(ctx, "a1", []float32{1, 0}, 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "d2", results[0].Chunk.DocumentID)

	// Deleting something that is not there is fine.
	require.NoError(t, store.DeleteByDocument(ctx, "a1", "d1"))
	require.NoError(t, store.DeleteByDocument(ctx, "ghost", "d1"))
}

func TestUpsert_ReplacesByID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, "a1", 2, storage.Cosine))

	first := testChunk("a1", "d1", 0, []float32{1, 0})
	require.NoError(t, store.Upsert(ctx, "a1", first))
	second := testChunk("a1", "d1", 0, []float32{0, 1})
	second.Text = "replaced"
	require.NoError(t, store.Upsert(ctx, "a1", second))

	results, err := store.Search(ctx, "a1", []float32{0, 1}, 10, -1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "replaced", results[0].Chunk.Text)
	assert.False(t, results[0].Chunk.InsertedAt.IsZero())
}

func TestDeleteCollection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, "a1", 2, storage.Cosine))
	require.NoError(t, store.Upsert(ctx, "a1", testChunk("a1", "d1", 0, []float32{1, 0})))

	require.NoError(t, store.DeleteCollection(ctx, "a1"))

	_, err := store.Search(ctx, "a1", []float32{1, 0}, 5, 0)
	require.ErrorIs(t, err, storage.ErrCollectionNotFound)
	n, err := store.CountDocumentChunks(ctx, "a1", "d1")
	require.NoError(t, err)
	assert.Zero(t, n)

	// Can be recreated with a different size afterwards.
	require.NoError(t, store.EnsureCollection(ctx, "a1", 3, storage.Cosine))
	require.NoError(t, store.DeleteCollection(ctx, "never-existed"))
}

func TestHealthAndClosedStore(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	store, err := NewVectorStore(backend)
	require.NoError(t, err)

	h := store.Health(context.Background())
	assert.True(t, h.Connected)
	assert.Equal(t, "badger://memory", h.URL)

	require.NoError(t, store.Close())
	assert.False(t, backend.IsClosed(), "store must not close a shared backend")

	require.NoError(t, backend.Close())
	assert.False(t, store.Health(context.Background()).Connected)
	err = store.EnsureCollection(context.Background(), "a1", 2, storage.Cosine)
	require.ErrorIs(t, err, storage.ErrUnavailable)
}

func TestSearch_CanceledContext(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Search(ctx, "a1", []float32{1}, 5, 0)
	require.ErrorIs(t, err, context.Canceled)
}
