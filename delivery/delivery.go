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

// Package delivery hands response-stage output back to the chat platform.
package delivery

import (
	"context"
	"errors"
	"log/slog"
)

// ErrIncompleteReply indicates a reply lacks the identifiers needed to route it.
var ErrIncompleteReply = errors.New("reply missing account or conversation id")

// Reply is one outbound message produced by a pipeline run.
type Reply struct {
	RunID          string
	InboxID        string
	AccountID      string
	ConversationID string
	InReplyTo      string
	Text           string
}

// Gateway relays replies to the chat platform.
type Gateway interface {
	Deliver(ctx context.Context, reply Reply) error
}

// LogGateway records replies in the log instead of sending them.
type LogGateway struct {
	logger *slog.Logger
}

var _ Gateway = (*LogGateway)(nil)

// NewLogGateway creates a gateway that only logs. A nil logger uses slog.Default().
func NewLogGateway(logger *slog.Logger) *LogGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogGateway{logger: logger.With("component", "delivery")}
}

// Deliver logs the reply.
func (g *LogGateway) Deliver(_ context.Context, reply Reply) error {
	g.logger.Info("reply",
		"run", reply.RunID,
		"inbox", reply.InboxID,
		"conversation", reply.ConversationID,
		"length", len(reply.Text))
	return nil
}
