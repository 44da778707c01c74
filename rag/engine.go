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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/switchboard/ai"
	"github.com/poiesic/switchboard/core"
	"github.com/poiesic/switchboard/storage"
)

// contextHeader separates agent instructions from retrieved knowledge.
const contextHeader = "\n\nAdditional Context:\n"

// Engine composes chunking, embedding and vector storage into document
// ingestion and similarity retrieval scoped to one agent at a time.
type Engine struct {
	store    storage.VectorStore
	embedder ai.Embedder
	config   *Config
	detector LanguageDetector
	pool     *ants.Pool
	logger   *slog.Logger
}

// Health summarizes the readiness of the retrieval dependencies.
type Health struct {
	Connected   bool   `json:"connected"`
	ModelLoaded bool   `json:"modelLoaded"`
	Model       string `json:"model"`
	Dimension   int    `json:"dimension"`
	StoreURL    string `json:"storeUrl"`
}

// IngestReport describes the outcome of one document ingestion.
type IngestReport struct {
	AgentID    string         `json:"agentId"`
	DocumentID string         `json:"documentId"`
	Collection string         `json:"collection"`
	Chunks     int            `json:"chunks"`
	Languages  map[string]int `json:"languages"`
	Duration   time.Duration  `json:"duration"`
}

// Option configures an Engine.
type Option func(*Engine) error

// WithConfig replaces the default chunking and retrieval parameters.
func WithConfig(cfg *Config) Option {
	return func(e *Engine) error {
		if cfg == nil {
			return fmt.Errorf("%w: nil config", ErrInvalidConfig)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		e.config = cfg
		return nil
	}
}

// WithLanguageDetector sets the detector used to tag chunks.
// Default is HeuristicDetector.
func WithLanguageDetector(d LanguageDetector) Option {
	return func(e *Engine) error {
		if d != nil {
			e.detector = d
		}
		return nil
	}
}

// WithPoolSize sets the number of concurrent embedding batches.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(e *Engine) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if e.pool != nil {
			e.pool.Release()
		}
		e.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger.With("component", "rag")
		return nil
	}
}

// NewEngine creates a retrieval engine over store and embedder.
// The embedder is shared; the engine never reloads it.
func NewEngine(store storage.VectorStore, embedder ai.Embedder, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, ErrVectorStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := max(runtime.NumCPU()/2, 1)
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		store:    store,
		embedder: embedder,
		config:   DefaultConfig(),
		detector: HeuristicDetector{},
		pool:     pool,
		logger:   slog.Default().With("component", "rag"),
	}

	for _, opt := range opts {
		if optErr := opt(e); optErr != nil {
			e.Release()
			return nil, optErr
		}
	}

	if dim := embedder.Dimension(); dim != e.config.VectorSize {
		e.Release()
		return nil, fmt.Errorf("%w: embedder produces %d values, collections expect %d",
			ErrInvalidConfig, dim, e.config.VectorSize)
	}
	return e, nil
}

// Release releases the embedding worker pool.
// The engine should not be used after calling Release.
func (e *Engine) Release() {
	if e.pool != nil {
		e.pool.Release()
	}
}

// Config returns the engine's parameters.
func (e *Engine) Config() Config {
	return *e.config
}

// CollectionName returns the name of the collection holding an agent's chunks.
func CollectionName(agentID string) string {
	return "agent_" + agentID
}

// Ingest chunks, embeds and stores text as the only generation of documentID.
func (e *Engine) Ingest(ctx context.Context, agentID, documentID, text string) error {
	_, err := e.IngestDocument(ctx, agentID, core.ContextDocument{
		ID:      documentID,
		Type:    core.DocumentTypeFile,
		Content: text,
	})
	return err
}

// IngestDocument replaces the stored chunks of doc for agentID.
// Embedding happens before anything is deleted, so a failed embedding
// leaves the previous generation searchable.
func (e *Engine) IngestDocument(ctx context.Context, agentID string, doc core.ContextDocument) (*IngestReport, error) {
	if agentID == "" {
		return nil, fmt.Errorf("%w: agent id", core.ErrEmptyID)
	}
	if doc.Type == "" {
		doc.Type = core.DocumentTypeFile
	}
	if err := core.ValidateDocument(&doc); err != nil {
		return nil, err
	}

	start := time.Now()
	logger := e.logger.With("agent", agentID, "document", doc.ID, "collection", CollectionName(agentID))

	pieces := e.config.Chunker().Split(doc.Content)
	texts := make([]string, len(pieces))
	for i, p := range pieces {
		texts[i] = p.Text
	}

	vectors, err := e.embedAll(ctx, texts)
	if err != nil {
		logger.Error("failed to embed document", "chunks", len(texts), "err", err)
		return nil, err
	}

	report := &IngestReport{
		AgentID:    agentID,
		DocumentID: doc.ID,
		Collection: CollectionName(agentID),
		Chunks:     len(pieces),
		Languages:  make(map[string]int),
	}
	chunks := make([]*core.Chunk, len(pieces))
	now := time.Now().UTC()
	for i, p := range pieces {
		lang := e.detector.Detect(p.Text)
		report.Languages[lang]++
		chunks[i] = &core.Chunk{
			ID:           core.ChunkID(agentID, doc.ID, p.Index),
			AgentID:      agentID,
			DocumentID:   doc.ID,
			DocumentType: doc.Type,
			Index:        p.Index,
			Text:         p.Text,
			Language:     lang,
			Vector:       storage.NormalizeVector(vectors[i]),
			InsertedAt:   now,
		}
	}

	if err := e.store.EnsureCollection(ctx, agentID, e.config.VectorSize, e.config.Distance); err != nil {
		return nil, fmt.Errorf("ensure collection %s: %w", CollectionName(agentID), err)
	}
	if err := e.store.DeleteByDocument(ctx, agentID, doc.ID); err != nil {
		return nil, fmt.Errorf("delete previous chunks: %w", err)
	}
	if err := e.store.Upsert(ctx, agentID, chunks...); err != nil {
		return nil, fmt.Errorf("upsert chunks: %w", err)
	}

	report.Duration = time.Since(start)
	logger.Info("ingested document", "chunks", report.Chunks, "duration", report.Duration)
	return report, nil
}

// IngestAgent ingests every context document of agent.
// Documents are processed in order; failures are joined and do not stop
// the remaining documents.
func (e *Engine) IngestAgent(ctx context.Context, agent *core.Agent) ([]*IngestReport, error) {
	if agent == nil {
		return nil, core.ErrInvalidAgent
	}
	var reports []*IngestReport
	var errs []error
	for _, doc := range agent.Documents {
		report, err := e.IngestDocument(ctx, agent.ID, doc)
		if err != nil {
			errs = append(errs, fmt.Errorf("document %s: %w", doc.ID, err))
			continue
		}
		reports = append(reports, report)
	}
	return reports, errors.Join(errs...)
}

// Retrieve returns the texts of the most relevant chunks for query using
// the configured limit and score threshold.
func (e *Engine) Retrieve(ctx context.Context, agentID, query string) ([]string, error) {
	return e.RetrieveWith(ctx, agentID, query, e.config.Limit, e.config.ScoreThreshold)
}

// RetrieveWith returns at most limit chunk texts scoring >= threshold,
// most similar first.
func (e *Engine) RetrieveWith(ctx context.Context, agentID, query string, limit int, threshold float32) ([]string, error) {
	hits, err := e.Search(ctx, agentID, query, limit, threshold)
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Chunk.Text
	}
	return texts, nil
}

// Search is RetrieveWith returning scored chunks.
// A missing collection or an unreachable store yields an empty result.
func (e *Engine) Search(ctx context.Context, agentID, query string, limit int, threshold float32) ([]*core.ScoredChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*core.ScoredChunk{}, nil
	}
	if limit <= 0 {
		limit = e.config.Limit
	}

	var vector []float32
	err := RetryWithBackoff(ctx, func() error {
		var embedErr error
		vector, embedErr = e.embedder.EmbedText(ctx, query)
		return embedErr
	}, e.config.MaxRetries, e.config.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}

	hits, err := e.store.Search(ctx, agentID, storage.NormalizeVector(vector), limit, threshold)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrCollectionNotFound):
		e.logger.Debug("agent has no collection", "agent", agentID)
		return []*core.ScoredChunk{}, nil
	case errors.Is(err, storage.ErrUnavailable):
		e.logger.Warn("vector store unavailable, continuing without context", "agent", agentID, "err", err)
		return []*core.ScoredChunk{}, nil
	default:
		return nil, err
	}

	e.logger.Debug("retrieved chunks", "agent", agentID, "hits", len(hits), "limit", limit, "threshold", threshold)
	return hits, nil
}

// DropAgent deletes the agent's collection and every chunk in it.
func (e *Engine) DropAgent(ctx context.Context, agentID string) error {
	if agentID == "" {
		return fmt.Errorf("%w: agent id", core.ErrEmptyID)
	}
	if err := e.store.DeleteCollection(ctx, agentID); err != nil {
		return err
	}
	e.logger.Info("dropped collection", "collection", CollectionName(agentID))
	return nil
}

// Health reports the store connection and embedding model state.
func (e *Engine) Health(ctx context.Context) Health {
	status := e.store.Health(ctx)
	return Health{
		Connected:   status.Connected,
		ModelLoaded: e.embedder.Loaded(),
		Model:       e.embedder.Model(),
		Dimension:   e.embedder.Dimension(),
		StoreURL:    status.URL,
	}
}

// BuildPrompt appends retrieved chunks to an agent prompt.
// The prompt is returned unchanged when there are no chunks.
func BuildPrompt(prompt string, chunks []string) string {
	if len(chunks) == 0 {
		return prompt
	}
	return prompt + contextHeader + strings.Join(chunks, "\n\n")
}

// embedAll embeds texts in batches on the worker pool, preserving order.
func (e *Engine) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	if len(texts) == 0 {
		return vectors, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	batch := e.config.EmbedBatchSize
	for offset := 0; offset < len(texts); offset += batch {
		end := min(offset+batch, len(texts))
		wg.Add(1)
		submitErr := e.pool.Submit(func() {
			defer wg.Done()
			var out [][]float32
			err := RetryWithBackoff(ctx, func() error {
				var embedErr error
				out, embedErr = e.embedder.EmbedTexts(ctx, texts[offset:end])
				return embedErr
			}, e.config.MaxRetries, e.config.RetryDelay)
			if err != nil {
				fail(err)
				return
			}
			if len(out) != end-offset {
				fail(fmt.Errorf("expected %d vectors, received %d", end-offset, len(out)))
				return
			}
			copy(vectors[offset:end], out)
		})
		if submitErr != nil {
			wg.Done()
			fail(submitErr)
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, firstErr)
	}
	for i, v := range vectors {
		if len(v) != e.config.VectorSize {
			return nil, fmt.Errorf("%w: chunk %d has %d values, expected %d",
				ErrEmbedding, i, len(v), e.config.VectorSize)
		}
	}
	return vectors, nil
}
