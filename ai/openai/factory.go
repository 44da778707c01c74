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

package openai

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/switchboard/ai"
	"github.com/poiesic/switchboard/core"
)

// CompleterFactory builds and caches completers per connection.
// A cached client is rebuilt when the connection's endpoint or key changes.
type CompleterFactory struct {
	timeout time.Duration
	mu      sync.Mutex
	cache   map[string]cachedCompleter
	logger  *slog.Logger
}

type cachedCompleter struct {
	fingerprint string
	completer   ai.Completer
}

var _ ai.CompleterFactory = (*CompleterFactory)(nil)

// NewCompleterFactory returns a factory whose clients use the given HTTP timeout.
func NewCompleterFactory(timeout time.Duration) *CompleterFactory {
	return &CompleterFactory{
		timeout: timeout,
		cache:   make(map[string]cachedCompleter),
		logger:  slog.Default().With("component", "completer-factory"),
	}
}

// Completer returns the completer for conn, creating it on first use.
func (f *CompleterFactory) Completer(conn *core.Connection) (ai.Completer, error) {
	if conn == nil {
		return nil, fmt.Errorf("%w: nil connection", core.ErrInvalidConnection)
	}
	fingerprint := core.HashKey(string(conn.Kind) + "\x00" + conn.BaseURL + "\x00" + conn.APIKey)

	f.mu.Lock()
	cached, ok := f.cache[conn.ID]
	f.mu.Unlock()
	if ok && cached.fingerprint == fingerprint {
		return cached.completer, nil
	}

	var completer ai.Completer
	switch conn.Kind {
	case core.ConnectionKindLangchain, "":
		c, err := newLangchainCompleter(conn, f.timeout)
		if err != nil {
			return nil, err
		}
		completer = c
	case core.ConnectionKindOpenAI:
		completer = newNativeCompleter(conn, f.timeout)
	default:
		return nil, fmt.Errorf("%w: %q", ai.ErrUnsupportedConnection, conn.Kind)
	}

	f.logger.Debug("created completer", "connection", conn.ID, "kind", conn.Kind)
	f.mu.Lock()
	f.cache[conn.ID] = cachedCompleter{fingerprint: fingerprint, completer: completer}
	f.mu.Unlock()
	return completer, nil
}
