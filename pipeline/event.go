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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/poiesic/switchboard/core"
)

// FlexibleID accepts identifiers sent either as JSON strings or numbers.
type FlexibleID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = FlexibleID(n.String())
	return nil
}

// FlexibleTime accepts RFC 3339 strings or unix seconds.
type FlexibleTime struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *FlexibleTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) || bytes.Equal(data, []byte(`""`)) {
		t.Time = time.Time{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
			t.Time = time.Unix(secs, 0).UTC()
			return nil
		}
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return err
		}
		t.Time = parsed.UTC()
		return nil
	}
	secs, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("created_at must be RFC 3339 or unix seconds: %w", err)
	}
	t.Time = time.Unix(secs, 0).UTC()
	return nil
}

type entityRef struct {
	ID FlexibleID `json:"id"`
}

// Event is an inbound chat platform webhook payload.
type Event struct {
	Event        string       `json:"event"`
	MessageType  string       `json:"message_type"`
	Content      string       `json:"content"`
	ID           FlexibleID   `json:"id"`
	Conversation entityRef    `json:"conversation"`
	Account      entityRef    `json:"account"`
	Inbox        entityRef    `json:"inbox"`
	CreatedAt    FlexibleTime `json:"created_at"`
}

// ParseEvent decodes a webhook body.
func ParseEvent(body []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("decode webhook event: %w", err)
	}
	return &ev, nil
}

// InboxID returns the inbox identifier carried by the payload.
func (e *Event) InboxID() string {
	return string(e.Inbox.ID)
}

// MessageEvent converts the payload into the core message description.
func (e *Event) MessageEvent() core.MessageEvent {
	return core.MessageEvent{
		InboxID:        e.InboxID(),
		MessageID:      string(e.ID),
		ConversationID: string(e.Conversation.ID),
		AccountID:      string(e.Account.ID),
		Event:          e.Event,
		MessageType:    e.MessageType,
		Text:           e.Content,
		Timestamp:      e.CreatedAt.Time,
	}
}

// Process filters a webhook event and runs the inbox pipeline for it.
// Only an unknown or inactive inbox returns an error; every other early
// exit is reported through the result status.
func (o *Orchestrator) Process(ctx context.Context, ev *Event) (*core.PipelineResult, error) {
	inboxID := ev.InboxID()
	logger := o.logger.With("inbox", inboxID, "message", string(ev.ID))

	if ev.Event != core.EventMessageCreated {
		logger.Debug("acknowledging unprocessed event", "event", ev.Event)
		return core.NewSkippedResult(inboxID, core.StatusAcknowledged, "event "+ev.Event+" is not processed"), nil
	}

	var inbox *core.Inbox
	ok := false
	if o.inboxes != nil {
		inbox, ok = o.inboxes.Inbox(inboxID)
	}
	if !ok {
		logger.Warn("webhook for unknown inbox")
		return core.NewSkippedResult(inboxID, core.StatusSkipped, "inbox not found"),
			fmt.Errorf("%w: %s", ErrInboxNotFound, inboxID)
	}
	if !inbox.Active {
		logger.Info("webhook for inactive inbox")
		return core.NewSkippedResult(inboxID, core.StatusSkipped, "inbox inactive"),
			fmt.Errorf("%w: %s", ErrInboxInactive, inboxID)
	}

	if ev.MessageType != core.MessageTypeIncoming {
		logger.Debug("skipping non-incoming message", "message_type", ev.MessageType)
		return core.NewSkippedResult(inboxID, core.StatusSkipped, "message type "+ev.MessageType+" is not processed"), nil
	}

	pctx, err := core.NewProcessingContext(ev.MessageEvent())
	if err != nil {
		if errors.Is(err, core.ErrEmptyMessage) {
			logger.Debug("skipping empty message")
			return core.NewSkippedResult(inboxID, core.StatusSkipped, "empty message"), nil
		}
		return core.NewSkippedResult(inboxID, core.StatusSkipped, err.Error()), nil
	}

	return o.Execute(ctx, inbox.PipelineAgents, inbox.ResponseAgent, pctx), nil
}
