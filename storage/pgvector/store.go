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

package pgvector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/poiesic/switchboard/core"
	"github.com/poiesic/switchboard/storage"
)

const (
	registryTable    = "vector_collections"
	tablePrefix      = "agent_chunks_"
	pgUndefinedTable = "42P01"
)

// VectorStore implements storage.VectorStore on PostgreSQL with pgvector.
// Each agent gets its own table; a registry table records vector size and
// distance per agent.
type VectorStore struct {
	pool     *pgxpool.Pool
	ownsPool bool
	logger   *slog.Logger
}

var _ storage.VectorStore = (*VectorStore)(nil)

// Open connects to dsn and prepares the registry schema.
// The returned store owns the pool and closes it on Close.
func Open(ctx context.Context, dsn string) (storage.VectorStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	store, err := newVectorStore(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	store.ownsPool = true
	return store, nil
}

// NewVectorStore wraps an existing pool. The caller keeps ownership of it.
func NewVectorStore(ctx context.Context, pool *pgxpool.Pool) (storage.VectorStore, error) {
	return newVectorStore(ctx, pool)
}

func newVectorStore(ctx context.Context, pool *pgxpool.Pool) (*VectorStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	s := &VectorStore{
		pool:   pool,
		logger: slog.Default().With("component", "pgvector-store"),
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *VectorStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		`CREATE TABLE IF NOT EXISTS ` + registryTable + ` (
			agent_id TEXT PRIMARY KEY,
			table_name TEXT NOT NULL,
			vector_size INT NOT NULL,
			distance TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return mapError(fmt.Errorf("execute schema statement: %w", err))
		}
	}
	return nil
}

// Close closes the pool if the store opened it.
func (s *VectorStore) Close() error {
	if s.ownsPool {
		s.pool.Close()
	}
	return nil
}

// Health pings the database.
func (s *VectorStore) Health(ctx context.Context) storage.HealthStatus {
	return storage.HealthStatus{
		Connected: s.pool.Ping(ctx) == nil,
		URL:       redactedURL(s.pool.Config().ConnConfig),
	}
}

// EnsureCollection creates the agent's table and registry row if missing.
func (s *VectorStore) EnsureCollection(ctx context.Context, agentID string, vectorSize int, distance storage.Distance) error {
	if !distance.Valid() {
		return fmt.Errorf("%w: %q", storage.ErrInvalidDistance, distance)
	}
	if vectorSize <= 0 {
		return fmt.Errorf("%w: size %d", storage.ErrDimensionMismatch, vectorSize)
	}

	existing, err := s.collection(ctx, agentID)
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

	table := tableName(agentID)
	ident := pgx.Identifier{table}.Sanitize()
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			document_type TEXT NOT NULL,
			chunk_index INT NOT NULL,
			content TEXT NOT NULL,
			language TEXT NOT NULL,
			embedding VECTOR(%d) NOT NULL,
			inserted_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, ident, vectorSize),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(document_id)",
			pgx.Identifier{table + "_doc"}.Sanitize(), ident),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding %s)",
			pgx.Identifier{table + "_vec"}.Sanitize(), ident, opClass(distance)),
	}

	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("create collection table: %w", err)
			}
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO `+registryTable+` (agent_id, table_name, vector_size, distance)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (agent_id) DO NOTHING
		`, agentID, table, vectorSize, string(distance))
		return err
	})
	if err != nil {
		return mapError(err)
	}
	s.logger.Info("created collection", "agent", agentID, "table", table, "size", vectorSize, "distance", distance)
	return nil
}

// Upsert inserts or replaces chunks by ID in one batch.
func (s *VectorStore) Upsert(ctx context.Context, agentID string, chunks ...*core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	collection, err := s.collection(ctx, agentID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	ident := pgx.Identifier{tableName(agentID)}.Sanitize()
	query := fmt.Sprintf(`
		INSERT INTO %s (id, document_id, document_type, chunk_index, content, language, embedding, inserted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::vector, $8)
		ON CONFLICT (id) DO UPDATE SET
			document_id = EXCLUDED.document_id,
			document_type = EXCLUDED.document_type,
			chunk_index = EXCLUDED.chunk_index,
			content = EXCLUDED.content,
			language = EXCLUDED.language,
			embedding = EXCLUDED.embedding,
			inserted_at = EXCLUDED.inserted_at
	`, ident)

	batch := &pgx.Batch{}
	for _, chunk := range chunks {
		if len(chunk.Vector) != collection.VectorSize {
			return fmt.Errorf("%w: chunk %s has %d values, collection expects %d",
				storage.ErrDimensionMismatch, chunk.ID, len(chunk.Vector), collection.VectorSize)
		}
		if chunk.InsertedAt.IsZero() {
			chunk.InsertedAt = now
		}
		batch.Queue(query, chunk.ID, chunk.DocumentID, string(chunk.DocumentType), chunk.Index,
			chunk.Text, chunk.Language, pgvector.NewVector(chunk.Vector), chunk.InsertedAt)
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return mapError(fmt.Errorf("upsert chunks: %w", err))
	}
	s.logger.Debug("upserted chunks", "agent", agentID, "count", len(chunks))
	return nil
}

// Search returns up to limit chunks scoring >= threshold, best first.
func (s *VectorStore) Search(ctx context.Context, agentID string, vector []float32, limit int, threshold float32) ([]*core.ScoredChunk, error) {
	collection, err := s.collection(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if len(vector) != collection.VectorSize {
		return nil, fmt.Errorf("%w: query has %d values, collection expects %d",
			storage.ErrDimensionMismatch, len(vector), collection.VectorSize)
	}
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.pool.Query(ctx, searchSQL(tableName(agentID), collection.Distance),
		pgvector.NewVector(vector), threshold, limit)
	if err != nil {
		return nil, mapError(fmt.Errorf("query similar chunks: %w", err))
	}
	defer rows.Close()

	results := make([]*core.ScoredChunk, 0)
	for rows.Next() {
		chunk := &core.Chunk{AgentID: agentID}
		var docType string
		var similarity float64
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &docType, &chunk.Index, &chunk.Text,
			&chunk.Language, &chunk.InsertedAt, &similarity); err != nil {
			return nil, fmt.Errorf("scan similar chunk: %w", err)
		}
		chunk.DocumentType = core.DocumentType(docType)
		results = append(results, &core.ScoredChunk{Chunk: chunk, Score: float32(similarity)})
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return results, nil
}

// DeleteByDocument removes every chunk of one document.
func (s *VectorStore) DeleteByDocument(ctx context.Context, agentID, documentID string) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE document_id = $1",
		pgx.Identifier{tableName(agentID)}.Sanitize()), documentID)
	err = mapError(err)
	if errors.Is(err, storage.ErrCollectionNotFound) {
		return nil
	}
	return err
}

// DeleteCollection drops the agent's table and registry row.
func (s *VectorStore) DeleteCollection(ctx context.Context, agentID string) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+pgx.Identifier{tableName(agentID)}.Sanitize()); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, "DELETE FROM "+registryTable+" WHERE agent_id = $1", agentID)
		return err
	})
	if err != nil {
		return mapError(fmt.Errorf("drop collection: %w", err))
	}
	s.logger.Info("deleted collection", "agent", agentID)
	return nil
}

// CountDocumentChunks returns the number of stored chunks for a document.
func (s *VectorStore) CountDocumentChunks(ctx context.Context, agentID, documentID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE document_id = $1",
		pgx.Identifier{tableName(agentID)}.Sanitize()), documentID).Scan(&count)
	err = mapError(err)
	if errors.Is(err, storage.ErrCollectionNotFound) {
		return 0, nil
	}
	return count, err
}

func (s *VectorStore) collection(ctx context.Context, agentID string) (*storage.Collection, error) {
	c := &storage.Collection{AgentID: agentID}
	var distance string
	err := s.pool.QueryRow(ctx,
		"SELECT vector_size, distance, created_at FROM "+registryTable+" WHERE agent_id = $1",
		agentID).Scan(&c.VectorSize, &distance, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", storage.ErrCollectionNotFound, agentID)
	}
	if err != nil {
		return nil, mapError(fmt.Errorf("read collection: %w", err))
	}
	c.Distance = storage.Distance(distance)
	return c, nil
}

// tableName derives a safe per-agent table name.
func tableName(agentID string) string {
	return tablePrefix + core.HashKey(agentID)
}

func opClass(d storage.Distance) string {
	if d == storage.Dot {
		return "vector_ip_ops"
	}
	return "vector_cosine_ops"
}

// distanceOp returns the pgvector operator matching the collection's index.
func distanceOp(d storage.Distance) string {
	if d == storage.Dot {
		return "<#>"
	}
	return "<=>"
}

// scoreExpr converts a raw distance column into a similarity where higher
// is better. <#> returns the negative inner product.
func scoreExpr(d storage.Distance, column string) string {
	if d == storage.Dot {
		return "(" + column + " * -1)"
	}
	return "(1 - " + column + ")"
}

// searchSQL orders by the raw distance operator so the HNSW index serves the
// LIMIT, then applies the similarity threshold to the nearest rows.
func searchSQL(table string, d storage.Distance) string {
	return fmt.Sprintf(`
		SELECT id, document_id, document_type, chunk_index, content, language, inserted_at, score
		FROM (
			SELECT id, document_id, document_type, chunk_index, content, language, inserted_at,
				%[1]s AS score
			FROM %[2]s
			ORDER BY embedding %[3]s $1::vector
			LIMIT $3
		) nearest
		WHERE score >= $2
		ORDER BY score DESC, document_id, chunk_index
	`, scoreExpr(d, "(embedding "+distanceOp(d)+" $1::vector)"), pgx.Identifier{table}.Sanitize(), distanceOp(d))
}

// mapError classifies driver errors into storage sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgUndefinedTable {
			return fmt.Errorf("%w: %w", storage.ErrCollectionNotFound, err)
		}
		return err
	}
	return fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
}

func redactedURL(cfg *pgx.ConnConfig) string {
	if cfg == nil {
		return "postgres://"
	}
	return "postgres://" + net.JoinHostPort(cfg.Host, strconv.Itoa(int(cfg.Port))) + "/" + cfg.Database
}
