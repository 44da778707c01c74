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

package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Webhook event and message type values understood by the pipeline.
const (
	EventMessageCreated = "message_created"

	MessageTypeIncoming = "incoming"
	MessageTypeOutgoing = "outgoing"
	MessageTypeTemplate = "template"
)

// MessageEvent is the raw description of one inbound message event.
type MessageEvent struct {
	InboxID        string
	MessageID      string
	ConversationID string
	AccountID      string
	Event          string
	MessageType    string
	Text           string
	Timestamp      time.Time
}

// ProcessingContext is an immutable snapshot of one inbound message event.
// It is built once per webhook and shared by pointer across all stages.
type ProcessingContext struct {
	runID          string
	inboxID        string
	messageID      string
	conversationID string
	accountID      string
	event          string
	messageType    string
	text           string
	timestamp      time.Time
}

// NewProcessingContext validates ev and snapshots it.
// The message text is trimmed; an empty text yields ErrEmptyMessage.
func NewProcessingContext(ev MessageEvent) (*ProcessingContext, error) {
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &ProcessingContext{
		runID:          uuid.NewString(),
		inboxID:        ev.InboxID,
		messageID:      ev.MessageID,
		conversationID: ev.ConversationID,
		accountID:      ev.AccountID,
		event:          ev.Event,
		messageType:    ev.MessageType,
		text:           text,
		timestamp:      ts,
	}, nil
}

func (p *ProcessingContext) RunID() string          { return p.runID }
func (p *ProcessingContext) InboxID() string        { return p.inboxID }
func (p *ProcessingContext) MessageID() string      { return p.messageID }
func (p *ProcessingContext) ConversationID() string { return p.conversationID }
func (p *ProcessingContext) AccountID() string      { return p.accountID }
func (p *ProcessingContext) Event() string          { return p.event }
func (p *ProcessingContext) MessageType() string    { return p.messageType }
func (p *ProcessingContext) Text() string           { return p.text }
func (p *ProcessingContext) Timestamp() time.Time   { return p.timestamp }
