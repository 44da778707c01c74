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
	"fmt"
	"log/slog"

	"github.com/poiesic/switchboard/core"
)

// ConnectionSource exposes the configured completion connections.
type ConnectionSource interface {
	// Connection returns the connection with the given id.
	Connection(id string) (*core.Connection, bool)
	// Connections returns every connection in configuration order.
	Connections() []*core.Connection
	// DefaultModel returns the system-wide default connection and model.
	DefaultModel() core.ModelRef
}

// Resolution source labels.
const (
	SourceAgent    = "agent"
	SourceDefault  = "default"
	SourceFallback = "fallback"
)

// Resolution is the connection and model chosen for one completion.
type Resolution struct {
	Connection *core.Connection
	Model      string
	Source     string
}

// ConnectionResolver picks the completion connection for an agent.
type ConnectionResolver interface {
	Resolve(settings core.AgentSettings) (*Resolution, error)
}

// Resolver resolves connections in priority order: the agent's explicit
// connection/model, then the system default, then the first active
// connection with an enabled model.
type Resolver struct {
	source ConnectionSource
	logger *slog.Logger
}

var _ ConnectionResolver = (*Resolver)(nil)

// NewResolver creates a resolver over source.
func NewResolver(source ConnectionSource) *Resolver {
	return &Resolver{
		source: source,
		logger: slog.Default().With("component", "connection-resolver"),
	}
}

// Resolve returns the connection and model to use for settings.
// An explicit agent choice that cannot be satisfied is an error rather than
// a silent fallback.
func (r *Resolver) Resolve(settings core.AgentSettings) (*Resolution, error) {
	if settings.ConnectionID != "" {
		return r.explicitConnection(settings.ConnectionID, settings.Model)
	}
	if settings.Model != "" {
		for _, conn := range r.source.Connections() {
			if conn.Active && conn.HasModel(settings.Model) {
				return &Resolution{Connection: conn, Model: settings.Model, Source: SourceAgent}, nil
			}
		}
		return nil, fmt.Errorf("%w: no active connection offers %q", ErrNoModel, settings.Model)
	}

	if def := r.source.DefaultModel(); !def.IsZero() {
		conn, ok := r.source.Connection(def.ConnectionID)
		switch {
		case !ok:
			r.logger.Warn("default connection not found", "connection", def.ConnectionID)
		case !conn.Active:
			r.logger.Warn("default connection inactive", "connection", def.ConnectionID)
		case def.Model != "" && !conn.HasModel(def.Model):
			r.logger.Warn("default model not enabled", "connection", def.ConnectionID, "model", def.Model)
		default:
			model := def.Model
			if model == "" {
				model = conn.FirstEnabledModel()
			}
			if model != "" {
				return &Resolution{Connection: conn, Model: model, Source: SourceDefault}, nil
			}
		}
	}

	for _, conn := range r.source.Connections() {
		if !conn.Active {
			continue
		}
		if model := conn.FirstEnabledModel(); model != "" {
			return &Resolution{Connection: conn, Model: model, Source: SourceFallback}, nil
		}
	}
	return nil, ErrNoConnection
}

func (r *Resolver) explicitConnection(id, model string) (*Resolution, error) {
	conn, ok := r.source.Connection(id)
	if !ok {
		return nil, fmt.Errorf("%w: connection %q not found", ErrNoConnection, id)
	}
	if !conn.Active {
		return nil, fmt.Errorf("%w: connection %q is inactive", ErrNoConnection, id)
	}
	if model == "" {
		model = conn.FirstEnabledModel()
		if model == "" {
			return nil, fmt.Errorf("%w: %s", ErrNoModel, id)
		}
	} else if !conn.HasModel(model) {
		return nil, fmt.Errorf("%w: %q on %s", ErrNoModel, model, id)
	}
	return &Resolution{Connection: conn, Model: model, Source: SourceAgent}, nil
}
