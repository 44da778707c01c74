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

package rag

// Chunker splits text into overlapping fixed-size windows.
// Sizes are measured in characters (runes), not bytes.
type Chunker struct {
	Size    int
	Overlap int
	// MinSize drops a trailing chunk shorter than this. Zero keeps everything.
	// The first chunk of a document is always kept.
	MinSize int
}

// TextChunk is one window of a split text.
type TextChunk struct {
	Index int
	// Start is the rune offset of the chunk in the source text.
	Start int
	Text  string
}

// Split cuts text into chunks of at most Size runes, each starting
// Size-Overlap runes after the previous one. Splitting stops once a chunk
// reaches the end of the text.
func (c Chunker) Split(text string) []TextChunk {
	runes := []rune(text)
	n := len(runes)
	if n == 0 || c.Size <= 0 {
		return nil
	}
	step := c.Size - c.Overlap
	if step <= 0 {
		step = c.Size
	}

	var chunks []TextChunk
	for start := 0; start < n; start += step {
		end := min(start+c.Size, n)
		chunks = append(chunks, TextChunk{
			Index: len(chunks),
			Start: start,
			Text:  string(runes[start:end]),
		})
		if end == n {
			break
		}
	}

	if last := len(chunks) - 1; last > 0 && c.MinSize > 0 {
		if len([]rune(chunks[last].Text)) < c.MinSize {
			chunks = chunks[:last]
		}
	}
	return chunks
}

// Texts returns the chunk texts of Split.
func (c Chunker) Texts(text string) []string {
	chunks := c.Split(text)
	out := make([]string, len(chunks))
	for i, ch := range chunks {
		out[i] = ch.Text
	}
	return out
}
