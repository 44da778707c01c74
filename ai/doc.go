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

// Package ai provides abstractions for the AI services used by switchboard.
//
// The package defines the two model-facing capabilities the pipeline
// depends on, so orchestration and retrieval code never import a vendor SDK:
//
//   - Embedder: turns text into fixed-length dense vectors. One instance is
//     constructed at startup and shared by every concurrent caller.
//   - Completer / CompleterFactory: chat completion against a configured
//     connection. Connections are resolved per agent by the pipeline.
//
// # Implementation Packages
//
//   - ai/openai: production implementations. Embeddings and "langchain"
//     connections use langchaingo's OpenAI-compatible client; "openai"
//     connections use the native go-openai client.
//   - ai/mock: deterministic test doubles.
//
// Public constructors in ai/openai return interface types. Mock constructors
// return concrete types so tests can inspect call counts and inject behavior.
//
// # Usage Example
//
//	provider, err := openai.NewProvider(ai.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vector, err := provider.Embedder().EmbedText(ctx, "Hola, ¿cómo estás?")
//	completer, err := provider.Completers().Completer(&conn)
//	reply, err := completer.Complete(ctx, ai.CompletionRequest{...})
package ai
