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

import "time"

// ErrorClass is the stable classification of an agent failure.
type ErrorClass string

const (
	ErrorClassNone      ErrorClass = ""
	ErrorClassConfig    ErrorClass = "configuration"
	ErrorClassUpstream  ErrorClass = "upstream_unavailable"
	ErrorClassMalformed ErrorClass = "malformed_input"
	ErrorClassInternal  ErrorClass = "internal"
)

// AgentResult is the outcome of one agent execution.
type AgentResult struct {
	AgentID       string        `json:"agentId"`
	Stage         Stage         `json:"stage"`
	Priority      int           `json:"priority"`
	Success       bool          `json:"success"`
	Text          *string       `json:"text"`
	ErrorClass    ErrorClass    `json:"errorClass,omitempty"`
	Error         string        `json:"error,omitempty"`
	Latency       time.Duration `json:"latency"`
	ContextChunks int           `json:"contextChunks"`
	ConnectionID  string        `json:"connectionId,omitempty"`
	Model         string        `json:"model,omitempty"`
}

// Output returns the generated text, or "" when the agent produced none.
func (r *AgentResult) Output() string {
	if r == nil || r.Text == nil {
		return ""
	}
	return *r.Text
}

// PipelineStatus describes how a pipeline run ended.
type PipelineStatus string

const (
	// StatusCompleted means every stage ran; individual agents may still have failed.
	StatusCompleted PipelineStatus = "completed"
	// StatusSkipped means the request was structurally valid to receive but
	// not eligible for processing; no agent ran.
	StatusSkipped PipelineStatus = "skipped"
	// StatusAcknowledged means the event type is not processed at all.
	StatusAcknowledged PipelineStatus = "acknowledged"
)

// StageResult holds the agent results of one stage in execution order.
// For the main stage the order is ascending priority, not completion order.
type StageResult struct {
	Stage   Stage         `json:"stage"`
	Results []AgentResult `json:"results"`
}

// PipelineResult aggregates the results of one pipeline run.
// TotalAgents, Succeeded and Failed count pipeline agents only; the
// response agent is reported through Response and ResponseInvoked.
type PipelineResult struct {
	RunID           string         `json:"runId"`
	InboxID         string         `json:"inboxId"`
	Status          PipelineStatus `json:"status"`
	Reason          string         `json:"reason,omitempty"`
	Stages          []StageResult  `json:"stages"`
	Response        *AgentResult   `json:"response,omitempty"`
	ResponseInvoked bool           `json:"responseInvoked"`
	ResponseText    string         `json:"responseText,omitempty"`
	TotalAgents     int            `json:"totalAgents"`
	Succeeded       int            `json:"succeeded"`
	Failed          int            `json:"failed"`
	Partial         bool           `json:"partial"`
	StartedAt       time.Time      `json:"startedAt"`
	Duration        time.Duration  `json:"duration"`
}

// Results returns the results of the given stage, or nil if it did not run.
func (r *PipelineResult) Results(stage Stage) []AgentResult {
	for i := range r.Stages {
		if r.Stages[i].Stage == stage {
			return r.Stages[i].Results
		}
	}
	return nil
}

// Record appends res to its stage and updates the counters.
func (r *PipelineResult) Record(res AgentResult) {
	idx := -1
	for i := range r.Stages {
		if r.Stages[i].Stage == res.Stage {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.Stages = append(r.Stages, StageResult{Stage: res.Stage})
		idx = len(r.Stages) - 1
	}
	r.Stages[idx].Results = append(r.Stages[idx].Results, res)
	if res.Stage == StageResponse {
		response := res
		r.Response = &response
		r.ResponseInvoked = true
		return
	}
	r.TotalAgents++
	if res.Success {
		r.Succeeded++
	} else {
		r.Failed++
	}
}

// NewSkippedResult builds the early result for a request that is not processed.
func NewSkippedResult(inboxID string, status PipelineStatus, reason string) *PipelineResult {
	return &PipelineResult{
		InboxID:   inboxID,
		Status:    status,
		Reason:    reason,
		Stages:    []StageResult{},
		StartedAt: time.Now().UTC(),
	}
}
