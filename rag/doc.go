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

// Package rag implements retrieval-augmented context for agents.
//
// Documents are split into overlapping character windows (Chunker), tagged
// with a best-effort language (LanguageDetector), embedded in batches on a
// worker pool and stored in the owning agent's collection. Retrieval embeds
// the message text with the same model and returns the most similar chunk
// texts above a score threshold.
//
// Re-ingesting a document replaces all of its chunks. Concurrent ingestion
// of the same agent and document must be serialized by the caller.
//
//	engine, err := rag.NewEngine(store, provider.Embedder())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Release()
//
//	err = engine.Ingest(ctx, "agent-1", "faq", text)
//	chunks, err := engine.Retrieve(ctx, "agent-1", "¿Cuándo llega mi pedido?")
//	prompt := rag.BuildPrompt(agent.Prompt, chunks)
package rag
