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
	"sync"
	"testing"
	"time"

	"github.com/poiesic/switchboard/core"
	"github.com/stretchr/testify/require"
)

type staticAgents map[string]*core.Agent

func (s staticAgents) Agent(id string) (*core.Agent, bool) {
	a, ok := s[id]
	return a, ok
}

type staticInboxes map[string]*core.Inbox

func (s staticInboxes) Inbox(id string) (*core.Inbox, bool) {
	i, ok := s[id]
	return i, ok
}

type staticConnections struct {
	conns []*core.Connection
	def   core.ModelRef
}

func (s *staticConnections) Connection(id string) (*core.Connection, bool) {
	for _, c := range s.conns {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

func (s *staticConnections) Connections() []*core.Connection { return s.conns }

func (s *staticConnections) DefaultModel() core.ModelRef { return s.def }

// scriptedRunner records the order agents start in and lets tests
// override the behavior per agent id.
type scriptedRunner struct {
	mu      sync.Mutex
	started []string
	script  map[string]func(ctx context.Context) (string, error)
}

func newScriptedRunner() *scriptedRunner {
	return &scriptedRunner{script: make(map[string]func(ctx context.Context) (string, error))}
}

func (r *scriptedRunner) Run(ctx context.Context, agent *core.Agent, pctx *core.ProcessingContext, override core.SettingsOverride, stage core.Stage) core.AgentResult {
	r.mu.Lock()
	r.started = append(r.started, agent.ID)
	fn := r.script[agent.ID]
	r.mu.Unlock()

	res := core.AgentResult{AgentID: agent.ID, Stage: stage}
	text := fmt.Sprintf("%s handled %q", agent.ID, pctx.Text())
	var err error
	if fn != nil {
		text, err = fn(ctx)
	}
	if err != nil {
		res.Error = err.Error()
		res.ErrorClass = Classify(err)
		return res
	}
	res.Success = true
	res.Text = &text
	return res
}

func (r *scriptedRunner) Started() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.started...)
}

func agentsFor(ids ...string) staticAgents {
	agents := make(staticAgents, len(ids))
	for _, id := range ids {
		agents[id] = &core.Agent{ID: id, Name: id, Prompt: "You are " + id + "."}
	}
	return agents
}

func assign(id string, priority int) core.AgentAssignment {
	return core.AgentAssignment{AgentID: id, Priority: priority, Active: true}
}

func newPctx(t *testing.T, text string) *core.ProcessingContext {
	t.Helper()
	pctx, err := core.NewProcessingContext(core.MessageEvent{
		InboxID:     "inbox-1",
		MessageID:   "m-1",
		Event:       core.EventMessageCreated,
		MessageType: core.MessageTypeIncoming,
		Text:        text,
		Timestamp:   time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return pctx
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}
