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
	"testing"
	"time"

	"github.com/poiesic/switchboard/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	body := []byte(`{
		"event": "message_created",
		"message_type": "incoming",
		"content": "Hola, ¿dónde está mi pedido?",
		"id": 9876,
		"conversation": {"id": 12},
		"account": {"id": "acc-1"},
		"inbox": {"id": 3},
		"created_at": "2026-03-04T05:06:07Z"
	}`)

	ev, err := ParseEvent(body)
	require.NoError(t, err)
	assert.Equal(t, "3", ev.InboxID())

	msg := ev.MessageEvent()
	assert.Equal(t, core.MessageEvent{
		InboxID:        "3",
		MessageID:      "9876",
		ConversationID: "12",
		AccountID:      "acc-1",
		Event:          core.EventMessageCreated,
		MessageType:    core.MessageTypeIncoming,
		Text:           "Hola, ¿dónde está mi pedido?",
		Timestamp:      time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
	}, msg)
}

func TestParseEvent_Invalid(t *testing.T) {
	_, err := ParseEvent([]byte(`{"event": `))
	assert.Error(t, err)

	_, err = ParseEvent([]byte(`{"id": true}`))
	assert.Error(t, err)
}

func TestFlexibleTime(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"unix number", `{"created_at": 1700000000}`, time.Unix(1700000000, 0).UTC()},
		{"unix string", `{"created_at": "1700000000"}`, time.Unix(1700000000, 0).UTC()},
		{"rfc3339 offset", `{"created_at": "2026-01-02T10:00:00+02:00"}`, time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC)},
		{"null", `{"created_at": null}`, time.Time{}},
		{"missing", `{}`, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseEvent([]byte(tt.raw))
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(ev.CreatedAt.Time), "got %s", ev.CreatedAt.Time)
		})
	}

	_, err := ParseEvent([]byte(`{"created_at": "yesterday"}`))
	assert.Error(t, err)
}

func TestFlexibleID_Null(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"id": null, "inbox": {"id": "abc"}}`))
	require.NoError(t, err)
	assert.Empty(t, string(ev.ID))
	assert.Equal(t, "abc", ev.InboxID())
}
