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
	"fmt"
	"strings"
)

// ValidateInbox checks identifiers, stage tags and the single-assignment
// invariant: an agent may not be the response agent and a pipeline agent
// of the same inbox, and may not appear twice among pipeline agents.
func ValidateInbox(inbox *Inbox) error {
	if inbox == nil {
		return fmt.Errorf("%w: inbox is nil", ErrInvalidInbox)
	}
	if strings.TrimSpace(inbox.ID) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidInbox, ErrEmptyID)
	}

	seen := make(map[string]bool, len(inbox.PipelineAgents)+1)
	if inbox.ResponseAgent != nil {
		if inbox.ResponseAgent.AgentID == "" {
			return fmt.Errorf("%w: response agent: %w", ErrInvalidInbox, ErrEmptyID)
		}
		seen[inbox.ResponseAgent.AgentID] = true
	}

	for _, a := range inbox.PipelineAgents {
		if a.AgentID == "" {
			return fmt.Errorf("%w: pipeline agent: %w", ErrInvalidInbox, ErrEmptyID)
		}
		if seen[a.AgentID] {
			return fmt.Errorf("%w: %w: %s", ErrInvalidInbox, ErrAgentAssignedTwice, a.AgentID)
		}
		seen[a.AgentID] = true
		if err := ValidateStage(a.Stage); err != nil {
			return fmt.Errorf("%w: agent %s: %w", ErrInvalidInbox, a.AgentID, err)
		}
	}
	return nil
}

// ValidateAgent checks the agent identifier and its documents.
func ValidateAgent(agent *Agent) error {
	if agent == nil {
		return fmt.Errorf("%w: agent is nil", ErrInvalidAgent)
	}
	if strings.TrimSpace(agent.ID) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidAgent, ErrEmptyID)
	}
	for _, doc := range agent.Documents {
		if err := ValidateDocument(&doc); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidAgent, err)
		}
	}
	return nil
}

// ValidateDocument checks a context document's id and type.
func ValidateDocument(doc *ContextDocument) error {
	if strings.TrimSpace(doc.ID) == "" {
		return fmt.Errorf("document: %w", ErrEmptyID)
	}
	switch doc.Type {
	case DocumentTypeFile, DocumentTypeURL, DocumentTypeWebsite:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDocumentType, string(doc.Type))
	}
}

// ValidateConnection checks a completion connection.
func ValidateConnection(conn *Connection) error {
	if conn == nil {
		return fmt.Errorf("%w: connection is nil", ErrInvalidConnection)
	}
	if strings.TrimSpace(conn.ID) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidConnection, ErrEmptyID)
	}
	switch conn.Kind {
	case ConnectionKindLangchain, ConnectionKindOpenAI:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidConnection, string(conn.Kind))
	}
	return nil
}
