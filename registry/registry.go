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

package registry

import (
	"cmp"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/poiesic/switchboard/core"
	"gopkg.in/yaml.v3"
)

// File is the on-disk layout of a registry.
type File struct {
	DefaultModel core.ModelRef      `yaml:"defaultModel,omitempty"`
	Connections  []*core.Connection `yaml:"connections"`
	Agents       []*core.Agent      `yaml:"agents"`
	Inboxes      []*core.Inbox      `yaml:"inboxes"`
}

// Registry is an in-memory, concurrency-safe read model of the
// configuration the pipeline runs against.
type Registry struct {
	mu           sync.RWMutex
	defaultModel core.ModelRef
	connections  []*core.Connection
	agents       map[string]*core.Agent
	inboxes      map[string]*core.Inbox
	logger       *slog.Logger
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		agents:  make(map[string]*core.Agent),
		inboxes: make(map[string]*core.Inbox),
		logger:  slog.Default().With("component", "registry"),
	}
}

// Load reads and parses the YAML registry file at path.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry %s: %w", path, err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load registry %s: %w", path, err)
	}
	return r, nil
}

// Parse builds a registry from YAML.
func Parse(data []byte) (*Registry, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	return FromFile(&f)
}

// FromFile validates f and builds a registry from it.
// A connection without a kind is treated as a langchain connection.
func FromFile(f *File) (*Registry, error) {
	r := New()
	r.defaultModel = f.DefaultModel

	seenConn := make(map[string]bool, len(f.Connections))
	for _, conn := range f.Connections {
		if conn == nil {
			return nil, fmt.Errorf("%w: empty entry", core.ErrInvalidConnection)
		}
		c := cloneConnection(conn)
		normalizeConnection(c)
		if err := core.ValidateConnection(c); err != nil {
			return nil, err
		}
		if seenConn[c.ID] {
			return nil, fmt.Errorf("%w: connection %s", ErrDuplicateID, c.ID)
		}
		seenConn[c.ID] = true
		r.connections = append(r.connections, c)
	}

	for _, agent := range f.Agents {
		if err := core.ValidateAgent(agent); err != nil {
			return nil, err
		}
		if _, dup := r.agents[agent.ID]; dup {
			return nil, fmt.Errorf("%w: agent %s", ErrDuplicateID, agent.ID)
		}
		r.agents[agent.ID] = cloneAgent(agent)
	}

	for _, inbox := range f.Inboxes {
		if err := core.ValidateInbox(inbox); err != nil {
			return nil, err
		}
		if _, dup := r.inboxes[inbox.ID]; dup {
			return nil, fmt.Errorf("%w: inbox %s", ErrDuplicateID, inbox.ID)
		}
		r.inboxes[inbox.ID] = cloneInbox(inbox)
	}

	r.warnDangling()
	return r, nil
}

// warnDangling logs references that will fail at run time.
func (r *Registry) warnDangling() {
	if !r.defaultModel.IsZero() && !slices.ContainsFunc(r.connections, func(c *core.Connection) bool {
		return c.ID == r.defaultModel.ConnectionID
	}) {
		r.logger.Warn("default model references unknown connection", "connection", r.defaultModel.ConnectionID)
	}
	for _, inbox := range r.inboxes {
		for _, id := range assignedAgents(inbox) {
			if _, ok := r.agents[id]; !ok {
				r.logger.Warn("inbox references unknown agent", "inbox", inbox.ID, "agent", id)
			}
		}
	}
}

// Agent returns a copy of the agent with the given id.
func (r *Registry) Agent(id string) (*core.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	if !ok {
		return nil, false
	}
	return cloneAgent(a), true
}

// Agents returns copies of all agents ordered by id.
func (r *Registry) Agents() []*core.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*core.Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, cloneAgent(a))
	}
	slices.SortFunc(out, func(a, b *core.Agent) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Inbox returns a copy of the inbox with the given id.
func (r *Registry) Inbox(id string) (*core.Inbox, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.inboxes[id]
	if !ok {
		return nil, false
	}
	return cloneInbox(i), true
}

// Connection returns a copy of the connection with the given id.
func (r *Registry) Connection(id string) (*core.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.connections {
		if c.ID == id {
			return cloneConnection(c), true
		}
	}
	return nil, false
}

// Connections returns copies of all connections in configuration order.
func (r *Registry) Connections() []*core.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*core.Connection, len(r.connections))
	for i, c := range r.connections {
		out[i] = cloneConnection(c)
	}
	return out
}

// DefaultModel returns the system-wide default connection and model.
func (r *Registry) DefaultModel() core.ModelRef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultModel
}

// SetDefaultModel replaces the system-wide default.
func (r *Registry) SetDefaultModel(ref core.ModelRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultModel = ref
}

// PutConnection adds or replaces a connection, keeping its position when
// it already exists.
func (r *Registry) PutConnection(conn *core.Connection) error {
	if conn == nil {
		return fmt.Errorf("%w: connection is nil", core.ErrInvalidConnection)
	}
	c := cloneConnection(conn)
	normalizeConnection(c)
	if err := core.ValidateConnection(c); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := slices.IndexFunc(r.connections, func(x *core.Connection) bool { return x.ID == c.ID }); i >= 0 {
		r.connections[i] = c
		return nil
	}
	r.connections = append(r.connections, c)
	return nil
}

// PutAgent adds or replaces an agent.
func (r *Registry) PutAgent(agent *core.Agent) error {
	if err := core.ValidateAgent(agent); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[agent.ID] = cloneAgent(agent)
	return nil
}

// PutDocument records doc on the agent, replacing a document with the same id.
func (r *Registry) PutDocument(agentID string, doc core.ContextDocument) error {
	if err := core.ValidateDocument(&doc); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[agentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	if i := slices.IndexFunc(a.Documents, func(d core.ContextDocument) bool { return d.ID == doc.ID }); i >= 0 {
		a.Documents[i] = doc
		return nil
	}
	a.Documents = append(a.Documents, doc)
	return nil
}

// PutInbox adds or replaces an inbox after validating it.
func (r *Registry) PutInbox(inbox *core.Inbox) error {
	if err := core.ValidateInbox(inbox); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inboxes[inbox.ID] = cloneInbox(inbox)
	return nil
}

// SetResponseAgent makes assignment the inbox's response agent. A nil
// assignment clears it. The agent may not also be a pipeline agent.
func (r *Registry) SetResponseAgent(inboxID string, assignment *core.AgentAssignment) error {
	return r.updateInbox(inboxID, func(inbox *core.Inbox) error {
		if assignment == nil {
			inbox.ResponseAgent = nil
			return nil
		}
		if err := r.requireAgent(assignment.AgentID); err != nil {
			return err
		}
		a := *assignment
		inbox.ResponseAgent = &a
		return nil
	})
}

// AssignPipelineAgent adds a pipeline agent to an inbox.
func (r *Registry) AssignPipelineAgent(inboxID string, assignment core.AgentAssignment) error {
	return r.updateInbox(inboxID, func(inbox *core.Inbox) error {
		if err := r.requireAgent(assignment.AgentID); err != nil {
			return err
		}
		inbox.PipelineAgents = append(inbox.PipelineAgents, assignment)
		return nil
	})
}

// UnassignAgent removes agentID from the inbox, whether it is the response
// agent or a pipeline agent. Removing an unassigned agent is a no-op.
func (r *Registry) UnassignAgent(inboxID, agentID string) error {
	return r.updateInbox(inboxID, func(inbox *core.Inbox) error {
		if inbox.ResponseAgent != nil && inbox.ResponseAgent.AgentID == agentID {
			inbox.ResponseAgent = nil
		}
		inbox.PipelineAgents = slices.DeleteFunc(inbox.PipelineAgents, func(a core.AgentAssignment) bool {
			return a.AgentID == agentID
		})
		return nil
	})
}

// updateInbox applies fn to a copy of the inbox and stores the copy only if
// the result still validates.
func (r *Registry) updateInbox(inboxID string, fn func(*core.Inbox) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.inboxes[inboxID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrInboxNotFound, inboxID)
	}
	next := cloneInbox(current)
	if err := fn(next); err != nil {
		return err
	}
	if err := core.ValidateInbox(next); err != nil {
		return err
	}
	r.inboxes[inboxID] = next
	return nil
}

// requireAgent must be called with r.mu held.
func (r *Registry) requireAgent(id string) error {
	if _, ok := r.agents[id]; !ok {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	return nil
}

func normalizeConnection(c *core.Connection) {
	if c.Kind == "" {
		c.Kind = core.ConnectionKindLangchain
	}
}

func assignedAgents(inbox *core.Inbox) []string {
	ids := make([]string, 0, len(inbox.PipelineAgents)+1)
	if inbox.ResponseAgent != nil {
		ids = append(ids, inbox.ResponseAgent.AgentID)
	}
	for _, a := range inbox.PipelineAgents {
		ids = append(ids, a.AgentID)
	}
	return ids
}

func cloneAgent(a *core.Agent) *core.Agent {
	c := *a
	c.Documents = slices.Clone(a.Documents)
	return &c
}

func cloneInbox(i *core.Inbox) *core.Inbox {
	c := *i
	if i.ResponseAgent != nil {
		ra := *i.ResponseAgent
		c.ResponseAgent = &ra
	}
	c.PipelineAgents = slices.Clone(i.PipelineAgents)
	return &c
}

func cloneConnection(conn *core.Connection) *core.Connection {
	c := *conn
	c.Models = slices.Clone(conn.Models)
	return &c
}
