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
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestChunkID(t *testing.T) {
	tests := []struct {
		name     string
		agent    string
		document string
		index    int
	}{
		{name: "simple", agent: "a1", document: "d1", index: 0},
		{name: "empty ids", agent: "", document: "", index: 0},
		{name: "large index", agent: "agent", document: "doc", index: 123456},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := ChunkID(tt.agent, tt.document, tt.index)
			id2 := ChunkID(tt.agent, tt.document, tt.index)

			if id1 != id2 {
				t.Errorf("ChunkID() produced different IDs for same input: %s vs %s", id1, id2)
			}
			if len(id1) != 16 {
				t.Errorf("ChunkID() length = %d, want 16", len(id1))
			}
		})
	}
}

func TestChunkID_Different(t *testing.T) {
	base := ChunkID("a", "d", 0)

	if base == ChunkID("a", "d", 1) {
		t.Errorf("ChunkID() ignored the index")
	}
	if base == ChunkID("a", "e", 0) {
		t.Errorf("ChunkID() ignored the document")
	}
	if base == ChunkID("b", "d", 0) {
		t.Errorf("ChunkID() ignored the agent")
	}
	// Separator keeps "ab"+"c" and "a"+"bc" apart.
	if ChunkID("ab", "c", 0) == ChunkID("a", "bc", 0) {
		t.Errorf("ChunkID() collided across field boundaries")
	}
}

func TestConnection_Models(t *testing.T) {
	conn := Connection{
		ID: "c1",
		Models: []ConnectionModel{
			{ID: "disabled", Enabled: false},
			{ID: "gpt-4o-mini", Enabled: true},
			{ID: "gpt-4o", Enabled: true},
		},
	}

	if got := conn.FirstEnabledModel(); got != "gpt-4o-mini" {
		t.Errorf("FirstEnabledModel() = %q, want gpt-4o-mini", got)
	}
	if conn.HasModel("disabled") {
		t.Errorf("HasModel() reported a disabled model")
	}
	if !conn.HasModel("gpt-4o") {
		t.Errorf("HasModel() missed an enabled model")
	}

	empty := Connection{ID: "c2"}
	if got := empty.FirstEnabledModel(); got != "" {
		t.Errorf("FirstEnabledModel() on empty connection = %q", got)
	}
}

func TestStageForPriority(t *testing.T) {
	tests := []struct {
		priority int
		want     Stage
	}{
		{-5, StagePreProcess},
		{0, StagePreProcess},
		{1, StagePreProcess},
		{99, StagePreProcess},
		{100, StageMainProcess},
		{150, StageMainProcess},
		{199, StageMainProcess},
		{200, StagePostProcess},
		{1000, StagePostProcess},
	}

	for _, tt := range tests {
		if got := StageForPriority(tt.priority); got != tt.want {
			t.Errorf("StageForPriority(%d) = %s, want %s", tt.priority, got, tt.want)
		}
	}
}

func TestAgentAssignment_ResolveStage(t *testing.T) {
	derived := AgentAssignment{AgentID: "a", Priority: 150}
	if got := derived.ResolveStage(); got != StageMainProcess {
		t.Errorf("ResolveStage() = %s, want %s", got, StageMainProcess)
	}

	tagged := AgentAssignment{AgentID: "a", Priority: 150, Stage: StagePostProcess}
	if got := tagged.ResolveStage(); got != StagePostProcess {
		t.Errorf("ResolveStage() = %s, want explicit %s", got, StagePostProcess)
	}
}

func TestNewProcessingContext(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	pctx, err := NewProcessingContext(MessageEvent{
		InboxID:        "inbox-1",
		MessageID:      "m-1",
		ConversationID: "conv-1",
		AccountID:      "acc-1",
		Event:          EventMessageCreated,
		MessageType:    MessageTypeIncoming,
		Text:           "  hello there \n",
		Timestamp:      ts,
	})
	if err != nil {
		t.Fatalf("NewProcessingContext() error = %v", err)
	}

	if pctx.Text() != "hello there" {
		t.Errorf("Text() = %q, want trimmed text", pctx.Text())
	}
	if pctx.RunID() == "" {
		t.Errorf("RunID() is empty")
	}
	if !pctx.Timestamp().Equal(ts) {
		t.Errorf("Timestamp() = %v, want %v", pctx.Timestamp(), ts)
	}
	if pctx.InboxID() != "inbox-1" || pctx.ConversationID() != "conv-1" || pctx.AccountID() != "acc-1" {
		t.Errorf("identifiers not preserved: %+v", pctx)
	}

	if _, err := NewProcessingContext(MessageEvent{Text: "   "}); err != ErrEmptyMessage {
		t.Errorf("NewProcessingContext() with blank text error = %v, want ErrEmptyMessage", err)
	}
}

func TestPipelineResult_Record(t *testing.T) {
	text := "ok"
	result := &PipelineResult{}

	result.Record(AgentResult{AgentID: "pre", Stage: StagePreProcess, Success: true, Text: &text})
	result.Record(AgentResult{AgentID: "resp", Stage: StageResponse, Success: true, Text: &text})
	result.Record(AgentResult{AgentID: "main", Stage: StageMainProcess, Success: false, ErrorClass: ErrorClassUpstream})

	if result.TotalAgents != 2 || result.Succeeded != 1 || result.Failed != 1 {
		t.Errorf("counters = %d/%d/%d, want 2/1/1", result.TotalAgents, result.Succeeded, result.Failed)
	}
	if !result.ResponseInvoked || result.Response == nil || result.Response.AgentID != "resp" {
		t.Errorf("response not recorded separately: %+v", result.Response)
	}
	if got := result.Results(StageMainProcess); len(got) != 1 || got[0].AgentID != "main" {
		t.Errorf("Results(main) = %+v", got)
	}
	if got := result.Results(StagePostProcess); got != nil {
		t.Errorf("Results(post) = %+v, want nil", got)
	}
	if result.Response.Output() != "ok" {
		t.Errorf("Output() = %q", result.Response.Output())
	}

	var missing *AgentResult
	if missing.Output() != "" {
		t.Errorf("Output() on nil result should be empty")
	}
}

func TestAgent_UnmarshalYAMLDefaults(t *testing.T) {
	var agents []*Agent
	err := yaml.Unmarshal([]byte(`
- id: bare
  prompt: hi
- id: tuned
  settings:
    temperature: 0.2
    responseDelay: 1s
`), &agents)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(agents) != 2 {
		t.Fatalf("got %d agents, want 2", len(agents))
	}
	if agents[0].ID != "bare" || agents[0].Settings != DefaultAgentSettings() {
		t.Errorf("bare agent = %+v, want default settings", agents[0])
	}
	want := AgentSettings{Temperature: 0.2, MaxTokens: DefaultMaxTokens, ResponseDelay: time.Second}
	if agents[1].Settings != want {
		t.Errorf("tuned settings = %+v, want %+v", agents[1].Settings, want)
	}
}
