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
	"encoding/hex"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ChunkID derives a stable chunk identifier from the owning agent, the
// owning document and the chunk's position using BLAKE2b hashing.
// Identical inputs always produce identical IDs.
func ChunkID(agentID, documentID string, index int) string {
	return HashKey(agentID + "\x00" + documentID + "\x00" + strconv.Itoa(index))
}

// HashKey returns a 16 character hex digest of text.
func HashKey(text string) string {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// DocumentType identifies how a context document entered the system.
type DocumentType string

const (
	// DocumentTypeFile is an uploaded file.
	DocumentTypeFile DocumentType = "file"
	// DocumentTypeURL is a single fetched URL.
	DocumentTypeURL DocumentType = "url"
	// DocumentTypeWebsite is a crawled site.
	DocumentTypeWebsite DocumentType = "website"
)

// DocumentMetadata carries ingestion details of a context document.
type DocumentMetadata struct {
	PageCount   int       `yaml:"pageCount,omitempty" json:"pageCount,omitempty"`
	SourceURL   string    `yaml:"sourceUrl,omitempty" json:"sourceUrl,omitempty"`
	CrawlDepth  int       `yaml:"crawlDepth,omitempty" json:"crawlDepth,omitempty"`
	MaxPages    int       `yaml:"maxPages,omitempty" json:"maxPages,omitempty"`
	RefreshedAt time.Time `yaml:"refreshedAt,omitempty" json:"refreshedAt,omitempty"`
}

// ContextDocument is plain text knowledge owned by an agent.
type ContextDocument struct {
	ID       string           `yaml:"id" json:"id"`
	Type     DocumentType     `yaml:"type" json:"type"`
	Content  string           `yaml:"content" json:"content"`
	Metadata DocumentMetadata `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// Agent is an automated participant attached to one or more inboxes.
type Agent struct {
	ID        string            `yaml:"id"`
	Name      string            `yaml:"name"`
	Prompt    string            `yaml:"prompt"`
	Settings  AgentSettings     `yaml:"settings"`
	Documents []ContextDocument `yaml:"documents,omitempty"`
}

// AgentAssignment references an agent from an inbox.
// Stage is optional; when unset the stage is derived from Priority.
type AgentAssignment struct {
	AgentID  string           `yaml:"agent"`
	Priority int              `yaml:"priority"`
	Active   bool             `yaml:"active"`
	Stage    Stage            `yaml:"stage,omitempty"`
	Override SettingsOverride `yaml:"override,omitempty"`
}

// Inbox is a channel endpoint with its response agent and pipeline agents.
type Inbox struct {
	ID             string            `yaml:"id"`
	Name           string            `yaml:"name"`
	Active         bool              `yaml:"active"`
	ResponseAgent  *AgentAssignment  `yaml:"responseAgent,omitempty"`
	PipelineAgents []AgentAssignment `yaml:"pipelineAgents,omitempty"`
}

// ConnectionKind selects the client used to talk to a completion API.
type ConnectionKind string

const (
	// ConnectionKindLangchain uses langchaingo's OpenAI-compatible client.
	ConnectionKindLangchain ConnectionKind = "langchain"
	// ConnectionKindOpenAI uses the native OpenAI client.
	ConnectionKindOpenAI ConnectionKind = "openai"
)

// ConnectionModel is a model offered by a connection.
type ConnectionModel struct {
	ID      string `yaml:"id"`
	Enabled bool   `yaml:"enabled"`
}

// Connection is a configured completion API endpoint.
type Connection struct {
	ID      string            `yaml:"id"`
	Name    string            `yaml:"name"`
	Kind    ConnectionKind    `yaml:"kind"`
	BaseURL string            `yaml:"baseUrl"`
	APIKey  string            `yaml:"apiKey"`
	Active  bool              `yaml:"active"`
	Models  []ConnectionModel `yaml:"models"`
}

// HasModel reports whether the connection offers the model and it is enabled.
func (c *Connection) HasModel(model string) bool {
	for _, m := range c.Models {
		if m.ID == model && m.Enabled {
			return true
		}
	}
	return false
}

// FirstEnabledModel returns the first enabled model, or "" if there is none.
func (c *Connection) FirstEnabledModel() string {
	for _, m := range c.Models {
		if m.Enabled {
			return m.ID
		}
	}
	return ""
}

// ModelRef names a model on a specific connection.
type ModelRef struct {
	ConnectionID string `yaml:"connection"`
	Model        string `yaml:"model"`
}

// IsZero reports whether the reference is empty.
func (r ModelRef) IsZero() bool {
	return r.ConnectionID == "" && r.Model == ""
}

// Chunk is a bounded slice of a context document with its embedding.
type Chunk struct {
	ID           string       `json:"id"`
	AgentID      string       `json:"agentId"`
	DocumentID   string       `json:"documentId"`
	DocumentType DocumentType `json:"type"`
	Index        int          `json:"index"`
	Text         string       `json:"text"`
	Language     string       `json:"language"`
	Vector       []float32    `json:"vector,omitempty"`
	InsertedAt   time.Time    `json:"insertedAt"`
}

// ScoredChunk is a chunk returned from similarity search.
type ScoredChunk struct {
	Chunk *Chunk
	Score float32
}
