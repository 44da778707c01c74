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

import "fmt"

// Priority band boundaries. Pre-process is [0, PreProcessMax),
// main-process is [PreProcessMax, PostProcessMin), post-process is
// [PostProcessMin, ∞). Negative priorities fall into pre-process.
const (
	PreProcessMax  = 100
	PostProcessMin = 200
)

// Stage is a partition of an inbox's agents executed under one policy.
type Stage string

const (
	StageUnspecified Stage = ""
	StagePreProcess  Stage = "pre_process"
	StageResponse    Stage = "response"
	StageMainProcess Stage = "main_process"
	StagePostProcess Stage = "post_process"
)

// PipelineStages lists the pipeline-agent stages in execution order.
// The response stage is not included because it is never derived from a
// priority.
var PipelineStages = []Stage{StagePreProcess, StageMainProcess, StagePostProcess}

// StageForPriority classifies a pipeline agent priority into its band.
func StageForPriority(priority int) Stage {
	switch {
	case priority < PreProcessMax:
		return StagePreProcess
	case priority < PostProcessMin:
		return StageMainProcess
	default:
		return StagePostProcess
	}
}

// ResolveStage returns the explicit stage tag of an assignment when set,
// otherwise the stage derived from its priority.
func (a *AgentAssignment) ResolveStage() Stage {
	if a.Stage != StageUnspecified {
		return a.Stage
	}
	return StageForPriority(a.Priority)
}

// ValidateStage checks that s is usable as an explicit pipeline stage tag.
func ValidateStage(s Stage) error {
	switch s {
	case StageUnspecified, StagePreProcess, StageMainProcess, StagePostProcess:
		return nil
	case StageResponse:
		return fmt.Errorf("%w: response stage cannot be assigned to a pipeline agent", ErrInvalidStage)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStage, string(s))
	}
}

// PipelineState is the orchestrator's position in a single run.
type PipelineState string

const (
	StateCreated     PipelineState = "created"
	StatePreProcess  PipelineState = "pre_process"
	StateResponse    PipelineState = "response"
	StateMainProcess PipelineState = "main_process"
	StatePostProcess PipelineState = "post_process"
	StateCompleted   PipelineState = "completed"
)
