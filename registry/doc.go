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

// Package registry holds the read model of connections, agents and inboxes
// that the pipeline consults while processing messages.
//
// A Registry is usually loaded from a YAML file:
//
//	defaultModel:
//	  connection: local
//	  model: llama3.2
//	connections:
//	  - id: local
//	    kind: langchain
//	    baseUrl: http://localhost:11434/v1
//	    active: true
//	    models:
//	      - id: llama3.2
//	        enabled: true
//	agents:
//	  - id: support
//	    prompt: You answer questions about our store.
//	    settings:
//	      temperature: 0.3
//	      responseDelay: 2s
//	inboxes:
//	  - id: "1"
//	    active: true
//	    responseAgent:
//	      agent: support
//	      active: true
//
// All methods are safe for concurrent use. Lookups return copies, so
// callers may keep results across later mutations.
package registry
