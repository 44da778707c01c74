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
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/switchboard/core"
)

// DefaultFallbackText is sent when the response agent fails.
const DefaultFallbackText = "Sorry, I can't answer right now. Please try again in a moment."

// AgentSource looks up agents by id.
type AgentSource interface {
	Agent(id string) (*core.Agent, bool)
}

// InboxSource looks up inboxes by id.
type InboxSource interface {
	Inbox(id string) (*core.Inbox, bool)
}

// StateObserver is notified when a run enters a new state.
// It is called synchronously from the goroutine driving the run.
type StateObserver func(runID string, state core.PipelineState)

// Orchestrator runs an inbox's agents for one message in stages:
// pre-process in order, the response agent, main-process agents in
// parallel, then post-process in order. Agent failures are recorded and
// never stop the run.
type Orchestrator struct {
	agents   AgentSource
	inboxes  InboxSource
	runner   AgentRunner
	pool     *ants.Pool
	fallback string
	observer StateObserver
	logger   *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithMaxConcurrency bounds the number of main-stage agents running at once
// across all runs. Default is runtime.NumCPU().
func WithMaxConcurrency(n int) Option {
	return func(o *Orchestrator) error {
		if n < 1 {
			n = 1
		}
		pool, err := ants.NewPool(n)
		if err != nil {
			return err
		}
		if o.pool != nil {
			o.pool.Release()
		}
		o.pool = pool
		return nil
	}
}

// WithFallbackText sets the reply used when the response agent fails.
func WithFallbackText(text string) Option {
	return func(o *Orchestrator) error {
		if text == "" {
			return fmt.Errorf("fallback text cannot be empty")
		}
		o.fallback = text
		return nil
	}
}

// WithStateObserver registers a state transition callback.
func WithStateObserver(fn StateObserver) Option {
	return func(o *Orchestrator) error {
		o.observer = fn
		return nil
	}
}

// WithInboxSource enables Process by providing inbox lookups.
func WithInboxSource(inboxes InboxSource) Option {
	return func(o *Orchestrator) error {
		o.inboxes = inboxes
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger.With("component", "orchestrator")
		return nil
	}
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(agents AgentSource, runner AgentRunner, opts ...Option) (*Orchestrator, error) {
	if agents == nil {
		return nil, ErrAgentSourceRequired
	}
	if runner == nil {
		return nil, ErrRunnerRequired
	}

	pool, err := ants.NewPool(runtime.NumCPU())
	if err != nil {
		return nil, err
	}
	o := &Orchestrator{
		agents:   agents,
		runner:   runner,
		pool:     pool,
		fallback: DefaultFallbackText,
		logger:   slog.Default().With("component", "orchestrator"),
	}
	for _, opt := range opts {
		if optErr := opt(o); optErr != nil {
			o.Release()
			return nil, optErr
		}
	}
	return o, nil
}

// Release releases the worker pool.
// The orchestrator should not be used after calling Release.
func (o *Orchestrator) Release() {
	if o.pool != nil {
		o.pool.Release()
	}
}

// plannedAgent is an assignment placed into its stage.
type plannedAgent struct {
	assignment core.AgentAssignment
	stage      core.Stage
}

// outcome carries a result and whether the agent never started.
type outcome struct {
	result     core.AgentResult
	notStarted bool
}

// Execute runs the pipeline for pctx.
// inboxAgents are the pipeline assignments of the inbox; responseAgent may
// be nil when the inbox has no responder.
func (o *Orchestrator) Execute(ctx context.Context, inboxAgents []core.AgentAssignment, responseAgent *core.AgentAssignment, pctx *core.ProcessingContext) *core.PipelineResult {
	start := time.Now()
	result := &core.PipelineResult{
		RunID:     pctx.RunID(),
		InboxID:   pctx.InboxID(),
		Status:    core.StatusCompleted,
		Stages:    []core.StageResult{},
		StartedAt: start.UTC(),
	}
	logger := o.logger.With("run", pctx.RunID(), "inbox", pctx.InboxID())
	o.notify(result.RunID, core.StateCreated)

	plan := o.plan(inboxAgents, responseAgent, logger)
	record := func(out outcome) {
		result.Record(out.result)
		if out.notStarted {
			result.Partial = true
		}
	}

	o.notify(result.RunID, core.StatePreProcess)
	for _, p := range plan[core.StagePreProcess] {
		record(o.runOne(ctx, p, pctx, logger))
	}

	o.notify(result.RunID, core.StateResponse)
	if responseAgent != nil && responseAgent.Active {
		out := o.runOne(ctx, plannedAgent{assignment: *responseAgent, stage: core.StageResponse}, pctx, logger)
		record(out)
		if out.result.Success {
			result.ResponseText = out.result.Output()
		} else {
			result.ResponseText = o.fallback
			logger.Warn("response agent failed, using fallback", "agent", responseAgent.AgentID, "class", out.result.ErrorClass)
		}
	}

	o.notify(result.RunID, core.StateMainProcess)
	for _, out := range o.runParallel(ctx, plan[core.StageMainProcess], pctx, logger) {
		record(out)
	}

	o.notify(result.RunID, core.StatePostProcess)
	for _, p := range plan[core.StagePostProcess] {
		record(o.runOne(ctx, p, pctx, logger))
	}

	result.Duration = time.Since(start)
	o.notify(result.RunID, core.StateCompleted)
	logger.Info("pipeline completed",
		"total", result.TotalAgents,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"response", result.ResponseInvoked,
		"partial", result.Partial,
		"duration", result.Duration)
	return result
}

// plan partitions active assignments into stages, each sorted by priority.
func (o *Orchestrator) plan(assignments []core.AgentAssignment, responseAgent *core.AgentAssignment, logger *slog.Logger) map[core.Stage][]plannedAgent {
	plan := make(map[core.Stage][]plannedAgent, len(core.PipelineStages))
	for _, a := range assignments {
		if !a.Active {
			continue
		}
		if responseAgent != nil && a.AgentID == responseAgent.AgentID {
			logger.Warn("ignoring pipeline assignment of the response agent", "agent", a.AgentID)
			continue
		}
		stage := a.ResolveStage()
		if core.ValidateStage(stage) != nil {
			logger.Warn("invalid stage tag, using priority band", "agent", a.AgentID, "stage", stage)
			stage = core.StageForPriority(a.Priority)
		}
		plan[stage] = append(plan[stage], plannedAgent{assignment: a, stage: stage})
	}
	for stage := range plan {
		slices.SortStableFunc(plan[stage], func(a, b plannedAgent) int {
			return cmp.Compare(a.assignment.Priority, b.assignment.Priority)
		})
	}
	return plan
}

// runParallel submits every agent to the shared pool and returns the
// outcomes in plan order.
func (o *Orchestrator) runParallel(ctx context.Context, planned []plannedAgent, pctx *core.ProcessingContext, logger *slog.Logger) []outcome {
	outcomes := make([]outcome, len(planned))
	var wg sync.WaitGroup
	for i, p := range planned {
		wg.Add(1)
		err := o.pool.Submit(func() {
			defer wg.Done()
			outcomes[i] = o.runOne(ctx, p, pctx, logger)
		})
		if err != nil {
			wg.Done()
			outcomes[i] = outcome{result: core.AgentResult{
				AgentID:    p.assignment.AgentID,
				Stage:      p.stage,
				Priority:   p.assignment.Priority,
				Error:      fmt.Sprintf("submit to worker pool: %v", err),
				ErrorClass: core.ErrorClassInternal,
			}}
		}
	}
	wg.Wait()
	return outcomes
}

// runOne executes a single assignment and never panics.
func (o *Orchestrator) runOne(ctx context.Context, p plannedAgent, pctx *core.ProcessingContext, logger *slog.Logger) (out outcome) {
	base := core.AgentResult{
		AgentID:  p.assignment.AgentID,
		Stage:    p.stage,
		Priority: p.assignment.Priority,
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("agent runner panicked", "agent", base.AgentID, "panic", r)
			res := base
			res.Error = fmt.Errorf("%w: %v", ErrAgentPanic, r).Error()
			res.ErrorClass = core.ErrorClassInternal
			out = outcome{result: res}
		}
	}()

	if ctx.Err() != nil {
		res := base
		res.Error = fmt.Errorf("%w: %w", ErrNotStarted, ctx.Err()).Error()
		res.ErrorClass = core.ErrorClassUpstream
		return outcome{result: res, notStarted: true}
	}

	agent, ok := o.agents.Agent(p.assignment.AgentID)
	if !ok {
		res := base
		res.Error = fmt.Errorf("%w: %s", ErrAgentNotFound, p.assignment.AgentID).Error()
		res.ErrorClass = core.ErrorClassConfig
		return outcome{result: res}
	}

	res := o.runner.Run(ctx, agent, pctx, p.assignment.Override, p.stage)
	res.AgentID = base.AgentID
	res.Stage = base.Stage
	res.Priority = base.Priority
	return outcome{result: res}
}

func (o *Orchestrator) notify(runID string, state core.PipelineState) {
	o.logger.Debug("pipeline state", "run", runID, "state", state)
	if o.observer != nil {
		o.observer(runID, state)
	}
}
