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

// Package switchboard wires the registry, the retrieval engine and the agent
// pipeline into one service.
package switchboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/switchboard/ai"
	"github.com/poiesic/switchboard/ai/openai"
	"github.com/poiesic/switchboard/core"
	"github.com/poiesic/switchboard/delivery"
	"github.com/poiesic/switchboard/pipeline"
	"github.com/poiesic/switchboard/rag"
	"github.com/poiesic/switchboard/registry"
	"github.com/poiesic/switchboard/storage"
	"github.com/poiesic/switchboard/storage/badger"
	"github.com/poiesic/switchboard/storage/pgvector"
)

// Switchboard routes inbound chat events through each inbox's agents and
// manages the agents' retrieval collections.
type Switchboard struct {
	registry     *registry.Registry
	provider     ai.AIProvider
	store        storage.VectorStore
	engine       *rag.Engine
	orchestrator *pipeline.Orchestrator
	gateway      delivery.Gateway
	docLocks     *keyedMutex
	logger       *slog.Logger

	deliveryTimeout time.Duration
}

// Option configures a Switchboard.
type Option func(*options)

type options struct {
	aiConfig       *ai.Config
	ragConfig      *rag.Config
	badgerPath     string
	postgresDSN    string
	provider       ai.AIProvider
	store          storage.VectorStore
	gateway        delivery.Gateway
	maxConcurrency int
	agentTimeout   time.Duration
	fallbackText   string
	deliverTimeout time.Duration
	logger         *slog.Logger
}

// WithAIConfig sets the embedding and completion configuration.
func WithAIConfig(cfg *ai.Config) Option {
	return func(o *options) { o.aiConfig = cfg }
}

// WithRAGConfig sets chunking and retrieval parameters.
func WithRAGConfig(cfg *rag.Config) Option {
	return func(o *options) { o.ragConfig = cfg }
}

// WithBadgerPath stores vectors in a badger database at path.
// An empty path keeps the database in memory.
func WithBadgerPath(path string) Option {
	return func(o *options) { o.badgerPath = path }
}

// WithPostgres stores vectors in PostgreSQL with pgvector.
// It takes precedence over WithBadgerPath.
func WithPostgres(dsn string) Option {
	return func(o *options) { o.postgresDSN = dsn }
}

// WithProvider uses an existing AI provider instead of building one from
// the AI config. The Switchboard closes it on Close.
func WithProvider(p ai.AIProvider) Option {
	return func(o *options) { o.provider = p }
}

// WithVectorStore uses an existing vector store. The Switchboard closes it on Close.
func WithVectorStore(s storage.VectorStore) Option {
	return func(o *options) { o.store = s }
}

// WithGateway sets where response text is delivered.
// Default logs replies without sending them.
func WithGateway(g delivery.Gateway) Option {
	return func(o *options) { o.gateway = g }
}

// WithMaxConcurrency bounds concurrent main-stage agents.
func WithMaxConcurrency(n int) Option {
	return func(o *options) { o.maxConcurrency = n }
}

// WithAgentTimeout bounds one agent execution.
func WithAgentTimeout(d time.Duration) Option {
	return func(o *options) { o.agentTimeout = d }
}

// WithFallbackText sets the reply used when the response agent fails.
func WithFallbackText(text string) Option {
	return func(o *options) { o.fallbackText = text }
}

// DefaultDeliveryTimeout bounds one reply delivery.
const DefaultDeliveryTimeout = 15 * time.Second

// WithDeliveryTimeout bounds one reply delivery. Delivery does not inherit
// the deadline of the event that produced the reply.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.deliverTimeout = d
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New builds a Switchboard serving the inboxes and agents in reg.
func New(ctx context.Context, reg *registry.Registry, opts ...Option) (*Switchboard, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry is required")
	}
	options := &options{
		aiConfig:       ai.DefaultConfig(),
		deliverTimeout: DefaultDeliveryTimeout,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	logger := options.logger

	provider := options.provider
	if provider == nil {
		p, err := openai.NewProvider(options.aiConfig)
		if err != nil {
			return nil, err
		}
		provider = p
	}

	store, err := openStore(ctx, options)
	if err != nil {
		_ = provider.Close()
		return nil, err
	}

	closeAll := func() {
		_ = store.Close()
		_ = provider.Close()
	}

	engineOpts := []rag.Option{rag.WithLogger(logger)}
	if options.ragConfig != nil {
		engineOpts = append(engineOpts, rag.WithConfig(options.ragConfig))
	}
	engine, err := rag.NewEngine(store, provider.Embedder(), engineOpts...)
	if err != nil {
		closeAll()
		return nil, err
	}

	execOpts := []pipeline.ExecutorOption{
		pipeline.WithRetriever(engine),
		pipeline.WithExecutorLogger(logger),
	}
	if options.agentTimeout > 0 {
		execOpts = append(execOpts, pipeline.WithAgentTimeout(options.agentTimeout))
	}
	executor, err := pipeline.NewExecutor(pipeline.NewResolver(reg), provider.Completers(), execOpts...)
	if err != nil {
		engine.Release()
		closeAll()
		return nil, err
	}

	orchOpts := []pipeline.Option{
		pipeline.WithInboxSource(reg),
		pipeline.WithLogger(logger),
	}
	if options.maxConcurrency > 0 {
		orchOpts = append(orchOpts, pipeline.WithMaxConcurrency(options.maxConcurrency))
	}
	if options.fallbackText != "" {
		orchOpts = append(orchOpts, pipeline.WithFallbackText(options.fallbackText))
	}
	orchestrator, err := pipeline.NewOrchestrator(reg, executor, orchOpts...)
	if err != nil {
		engine.Release()
		closeAll()
		return nil, err
	}

	gateway := options.gateway
	if gateway == nil {
		gateway = delivery.NewLogGateway(logger)
	}

	return &Switchboard{
		registry:     reg,
		provider:     provider,
		store:        store,
		engine:       engine,
		orchestrator: orchestrator,
		gateway:      gateway,
		docLocks:     newKeyedMutex(),
		logger:       logger.With("component", "switchboard"),

		deliveryTimeout: options.deliverTimeout,
	}, nil
}

func openStore(ctx context.Context, o *options) (storage.VectorStore, error) {
	switch {
	case o.store != nil:
		return o.store, nil
	case o.postgresDSN != "":
		return pgvector.Open(ctx, o.postgresDSN)
	case o.badgerPath == "":
		return badger.NewMemoryVectorStore()
	default:
		return badger.OpenVectorStore(o.badgerPath)
	}
}

// Close releases worker pools and closes the store and AI provider.
func (s *Switchboard) Close() error {
	s.orchestrator.Release()
	s.engine.Release()

	if err := s.provider.Close(); err != nil {
		s.logger.Error("error closing AI provider", "err", err)
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing vector store", "err", err)
		return err
	}
	return nil
}

// Registry returns the configuration read model.
func (s *Switchboard) Registry() *registry.Registry {
	return s.registry
}

// Engine returns the retrieval engine.
func (s *Switchboard) Engine() *rag.Engine {
	return s.engine
}

// Warm loads the embedding model when the provider supports it.
func (s *Switchboard) Warm(ctx context.Context) error {
	loader, ok := s.provider.Embedder().(interface{ Load(context.Context) error })
	if !ok {
		return nil
	}
	return loader.Load(ctx)
}

// HandleEvent runs the pipeline for a webhook event and delivers the
// response text. A delivery failure is logged and does not fail the run.
func (s *Switchboard) HandleEvent(ctx context.Context, ev *pipeline.Event) (*core.PipelineResult, error) {
	result, err := s.orchestrator.Process(ctx, ev)
	if err != nil {
		return result, err
	}
	if result.ResponseInvoked && result.ResponseText != "" {
		reply := delivery.Reply{
			RunID:          result.RunID,
			InboxID:        result.InboxID,
			AccountID:      string(ev.Account.ID),
			ConversationID: string(ev.Conversation.ID),
			InReplyTo:      string(ev.ID),
			Text:           result.ResponseText,
		}
		// The run's deadline may already have passed; the reply still goes out.
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.deliveryTimeout)
		derr := s.gateway.Deliver(dctx, reply)
		cancel()
		if derr != nil {
			s.logger.Warn("reply delivery failed", "run", result.RunID, "inbox", result.InboxID, "err", derr)
		}
	}
	return result, nil
}

// IngestDocument chunks, embeds and stores doc for the agent and records it
// in the registry. Ingestions of the same agent document are serialized.
func (s *Switchboard) IngestDocument(ctx context.Context, agentID string, doc core.ContextDocument) (*rag.IngestReport, error) {
	if _, ok := s.registry.Agent(agentID); !ok {
		return nil, fmt.Errorf("%w: %s", registry.ErrAgentNotFound, agentID)
	}
	if err := core.ValidateDocument(&doc); err != nil {
		return nil, err
	}

	unlock := s.docLocks.Lock(agentID + "\x00" + doc.ID)
	defer unlock()

	report, err := s.engine.IngestDocument(ctx, agentID, doc)
	if err != nil {
		return nil, err
	}
	if err := s.registry.PutDocument(agentID, doc); err != nil {
		return report, err
	}
	return report, nil
}

// IngestAgent re-ingests every document the registry holds for the agent.
func (s *Switchboard) IngestAgent(ctx context.Context, agentID string) ([]*rag.IngestReport, error) {
	agent, ok := s.registry.Agent(agentID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", registry.ErrAgentNotFound, agentID)
	}
	var reports []*rag.IngestReport
	var errs []error
	for _, doc := range agent.Documents {
		report, err := s.IngestDocument(ctx, agentID, doc)
		if err != nil {
			errs = append(errs, fmt.Errorf("document %s: %w", doc.ID, err))
			continue
		}
		reports = append(reports, report)
	}
	return reports, errors.Join(errs...)
}

// IngestAll re-ingests the documents of every agent.
func (s *Switchboard) IngestAll(ctx context.Context) (int, error) {
	total := 0
	var errs []error
	for _, agent := range s.registry.Agents() {
		reports, err := s.IngestAgent(ctx, agent.ID)
		total += len(reports)
		if err != nil {
			errs = append(errs, fmt.Errorf("agent %s: %w", agent.ID, err))
		}
	}
	return total, errors.Join(errs...)
}

// Retrieve returns the agent's chunks most similar to query.
// A zero limit or threshold uses the configured defaults.
func (s *Switchboard) Retrieve(ctx context.Context, agentID, query string, limit int, threshold float32) ([]*core.ScoredChunk, error) {
	if threshold == 0 {
		threshold = s.engine.Config().ScoreThreshold
	}
	return s.engine.Search(ctx, agentID, query, limit, threshold)
}

// DropCollection removes all retrieval data of the agent.
func (s *Switchboard) DropCollection(ctx context.Context, agentID string) error {
	return s.engine.DropAgent(ctx, agentID)
}

// Health reports the retrieval dependencies' readiness.
func (s *Switchboard) Health(ctx context.Context) rag.Health {
	return s.engine.Health(ctx)
}
