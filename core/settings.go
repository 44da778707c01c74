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
	"time"

	"gopkg.in/yaml.v3"
)

// Bounds applied to completion parameters before any call leaves the process.
const (
	MinTemperature = 0.0
	MaxTemperature = 1.0
	MinMaxTokens   = 1
	MaxMaxTokens   = 2000

	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1000
)

// AgentSettings holds the per-agent generation parameters.
type AgentSettings struct {
	Temperature   float64       `yaml:"temperature"`
	MaxTokens     int           `yaml:"maxTokens"`
	ResponseDelay time.Duration `yaml:"responseDelay"`
	ConnectionID  string        `yaml:"connection,omitempty"`
	Model         string        `yaml:"model,omitempty"`
}

// SettingsOverride is an inbox-level override of agent settings.
// A nil field leaves the agent's value untouched.
type SettingsOverride struct {
	Temperature   *float64       `yaml:"temperature,omitempty"`
	MaxTokens     *int           `yaml:"maxTokens,omitempty"`
	ResponseDelay *time.Duration `yaml:"responseDelay,omitempty"`
	ConnectionID  *string        `yaml:"connection,omitempty"`
	Model         *string        `yaml:"model,omitempty"`
}

// IsZero reports whether the override changes nothing.
func (o SettingsOverride) IsZero() bool {
	return o.Temperature == nil && o.MaxTokens == nil && o.ResponseDelay == nil &&
		o.ConnectionID == nil && o.Model == nil
}

// Merge returns a copy of s with every non-nil field of o applied.
func (s AgentSettings) Merge(o SettingsOverride) AgentSettings {
	merged := s
	if o.Temperature != nil {
		merged.Temperature = *o.Temperature
	}
	if o.MaxTokens != nil {
		merged.MaxTokens = *o.MaxTokens
	}
	if o.ResponseDelay != nil {
		merged.ResponseDelay = *o.ResponseDelay
	}
	if o.ConnectionID != nil {
		merged.ConnectionID = *o.ConnectionID
	}
	if o.Model != nil {
		merged.Model = *o.Model
	}
	return merged
}

// Bounded returns a copy of s with temperature and max tokens clamped to the
// accepted ranges. A zero max token count falls back to DefaultMaxTokens and
// a negative response delay is treated as no delay.
func (s AgentSettings) Bounded() AgentSettings {
	b := s
	switch {
	case b.Temperature < MinTemperature:
		b.Temperature = MinTemperature
	case b.Temperature > MaxTemperature:
		b.Temperature = MaxTemperature
	}
	switch {
	case b.MaxTokens == 0:
		b.MaxTokens = DefaultMaxTokens
	case b.MaxTokens < MinMaxTokens:
		b.MaxTokens = MinMaxTokens
	case b.MaxTokens > MaxMaxTokens:
		b.MaxTokens = MaxMaxTokens
	}
	if b.ResponseDelay < 0 {
		b.ResponseDelay = 0
	}
	return b
}

// DefaultAgentSettings returns settings used when an agent specifies none.
func DefaultAgentSettings() AgentSettings {
	return AgentSettings{
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
}

// UnmarshalYAML decodes an agent on top of DefaultAgentSettings, so settings
// missing from the document keep their defaults.
func (a *Agent) UnmarshalYAML(node *yaml.Node) error {
	type plain Agent
	p := plain{Settings: DefaultAgentSettings()}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*a = Agent(p)
	return nil
}
