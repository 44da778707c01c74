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

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/switchboard/ai"
	"github.com/poiesic/switchboard/core"
	"github.com/poiesic/switchboard/rag"
)

// DefaultAgentTimeout bounds retrieval, resolution and completion of one agent.
const DefaultAgentTimeout = 60 * time.Second

// Retriever fetches context chunk texts for an agent.
// *rag.Engine satisfies it.
type Retriever interface {
	Retrieve(ctx context.Context, agentID, query string) ([]string, error)
}

// AgentRunner executes one agent against a message.
// Implementations never return errors; failures are encoded in the result.
type AgentRunner interface {
	Run(ctx context.Context, agent *core.Agent, pctx *core.ProcessingContext, override core.SettingsOverride, stage core.Stage) core.AgentResult
}

// Executor assembles the prompt for an agent, calls its completion
// connection and turns every failure into a classified AgentResult.
type Executor struct {
	retriever  Retriever
	resolver   ConnectionResolver
	completers ai.CompleterFactory
	timeout    time.Duration
	logger     *slog.Logger
}

var _ AgentRunner = (*Executor)(nil)

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor) error

// WithRetriever enables retrieval for the response stage.
func WithRetriever(r Retriever) ExecutorOption {
	return func(e *Executor) error {
		e.retriever = r
		return nil
	}
}

// WithAgentTimeout sets the per-agent timeout.
// Default is DefaultAgentTimeout.
func WithAgentTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) error {
		if d <= 0 {
			return fmt.Errorf("agent timeout must be positive, got %s", d)
		}
		e.timeout = d
		return nil
	}
}

// WithExecutorLogger sets a custom logger.
// Default is slog.Default().
func WithExecutorLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger.With("component", "executor")
		return nil
	}
}

// NewExecutor creates an executor. The retriever is optional.
func NewExecutor(resolver ConnectionResolver, completers ai.CompleterFactory, opts ...ExecutorOption) (*Executor, error) {
	if resolver == nil {
		return nil, ErrResolverRequired
	}
	if completers == nil {
		return nil, ErrCompleterFactoryRequired
	}
	e := &Executor{
		resolver:   resolver,
		completers: completers,
		timeout:    DefaultAgentTimeout,
		logger:     slog.Default().With("component", "executor"),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Run executes agent for pctx in the given stage.
func (e *Executor) Run(ctx context.Context, agent *core.Agent, pctx *core.ProcessingContext, override core.SettingsOverride, stage core.Stage) (result core.AgentResult) {
	start := time.Now()
	result = core.AgentResult{Stage: stage}
	if agent != nil {
		result.AgentID = agent.ID
	}
	logger := e.logger.With("agent", result.AgentID, "stage", stage)
	if pctx != nil {
		logger = logger.With("run", pctx.RunID())
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("agent panicked", "panic", r)
			result.Success = false
			result.Text = nil
			result.Error = fmt.Errorf("%w: %v", ErrAgentPanic, r).Error()
			result.ErrorClass = core.ErrorClassInternal
		}
		result.Latency = time.Since(start)
	}()

	if agent == nil {
		return fail(result, fmt.Errorf("%w: nil agent", core.ErrInvalidAgent))
	}
	if pctx == nil {
		return fail(result, core.ErrEmptyMessage)
	}

	settings := agent.Settings.Merge(override).Bounded()

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	text, err := e.generate(runCtx, agent, pctx, settings, stage, &result)
	if err != nil {
		logger.Warn("agent failed", "class", Classify(err), "err", err)
		return fail(result, err)
	}

	if settings.ResponseDelay > 0 {
		if !sleepContext(ctx, settings.ResponseDelay) {
			logger.Debug("response delay interrupted", "delay", settings.ResponseDelay)
		}
	}

	result.Success = true
	result.Text = &text
	logger.Debug("agent succeeded", "model", result.Model, "connection", result.ConnectionID, "context_chunks", result.ContextChunks)
	return result
}

func (e *Executor) generate(ctx context.Context, agent *core.Agent, pctx *core.ProcessingContext, settings core.AgentSettings, stage core.Stage, result *core.AgentResult) (string, error) {
	prompt := agent.Prompt
	if stage == core.StageResponse && e.retriever != nil {
		chunks, err := e.retriever.Retrieve(ctx, agent.ID, pctx.Text())
		if err != nil {
			return "", fmt.Errorf("retrieve context: %w", err)
		}
		result.ContextChunks = len(chunks)
		prompt = rag.BuildPrompt(prompt, chunks)
	}

	resolution, err := e.resolver.Resolve(settings)
	if err != nil {
		return "", err
	}
	result.ConnectionID = resolution.Connection.ID
	result.Model = resolution.Model

	completer, err := e.completers.Completer(resolution.Connection)
	if err != nil {
		return "", err
	}

	text, err := completer.Complete(ctx, ai.CompletionRequest{
		Model: resolution.Model,
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: prompt},
			{Role: ai.RoleUser, Content: pctx.Text()},
		},
		Temperature: settings.Temperature,
		MaxTokens:   settings.MaxTokens,
	})
	if err != nil {
		// A completion that outlived the agent timeout reports the timeout.
		if ctx.Err() != nil {
			return "", fmt.Errorf("complete: %w: %w", ctx.Err(), err)
		}
		return "", fmt.Errorf("complete: %w", err)
	}
	return text, nil
}

func fail(result core.AgentResult, err error) core.AgentResult {
	result.Success = false
	result.Text = nil
	result.Error = err.Error()
	result.ErrorClass = Classify(err)
	return result
}

// sleepContext waits for d or until ctx is done. It reports whether the
// full delay elapsed.
func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
