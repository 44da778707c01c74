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

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunker_Scenario(t *testing.T) {
	text := "Hello world. This is a test of chunking."
	c := Chunker{Size: 20, Overlap: 5}

	chunks := c.Split(text)

	require.Len(t, chunks, 3)
	assert.Equal(t, "Hello world. This is", chunks[0].Text)
	assert.Equal(t, 15, chunks[1].Start)
	assert.True(t, strings.HasPrefix(chunks[1].Text, chunks[0].Text[15:]))
	assert.Equal(t, " chunking.", chunks[2].Text)
}

func TestChunker_MinSizeDropsTrailingChunk(t *testing.T) {
	text := "Hello world. This is a test of chunking."

	chunks := Chunker{Size: 20, Overlap: 5, MinSize: 20}.Split(text)

	require.Len(t, chunks, 2)
	assert.Equal(t, 1, chunks[1].Index)
}

func TestChunker_MinSizeKeepsSoleChunk(t *testing.T) {
	chunks := Chunker{Size: 500, Overlap: 50, MinSize: 20}.Split("Short FAQ.")

	require.Len(t, chunks, 1)
	assert.Equal(t, "Short FAQ.", chunks[0].Text)
}

func TestChunker_Empty(t *testing.T) {
	assert.Empty(t, Chunker{Size: 20, Overlap: 5}.Split(""))
	assert.Empty(t, Chunker{}.Split("text"))
}

func TestChunker_OverlapAndReconstruction(t *testing.T) {
	text := strings.Repeat("Los envíos internacionales tardan entre cinco y diez días hábiles. ", 12) +
		"日本語のテキストも正しく分割されます。"

	for _, tc := range []struct{ size, overlap int }{
		{20, 5}, {50, 0}, {100, 99}, {500, 50}, {7, 3},
	} {
		c := Chunker{Size: tc.size, Overlap: tc.overlap}
		chunks := c.Split(text)
		require.NotEmpty(t, chunks)

		var rebuilt strings.Builder
		for i, ch := range chunks {
			runes := []rune(ch.Text)
			assert.LessOrEqual(t, len(runes), tc.size)
			assert.Equal(t, i, ch.Index)
			if i == 0 {
				rebuilt.WriteString(ch.Text)
				continue
			}
			prev := []rune(chunks[i-1].Text)
			assert.Equal(t, string(prev[len(prev)-tc.overlap:]), string(runes[:tc.overlap]),
				"chunks %d and %d must share %d characters", i-1, i, tc.overlap)
			rebuilt.WriteString(string(runes[tc.overlap:]))
		}
		assert.Equal(t, text, rebuilt.String(), "size=%d overlap=%d", tc.size, tc.overlap)
	}
}

func TestChunker_CountsRunes(t *testing.T) {
	text := strings.Repeat("ñ", 45)

	chunks := Chunker{Size: 20, Overlap: 5}.Split(text)

	require.Len(t, chunks, 3)
	for _, ch := range chunks {
		assert.True(t, utf8.ValidString(ch.Text))
	}
	assert.Equal(t, 20, utf8.RuneCountInString(chunks[0].Text))
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	bad := []func(c *Config){
		func(c *Config) { c.ChunkSize = 0 },
		func(c *Config) { c.ChunkOverlap = c.ChunkSize },
		func(c *Config) { c.MinChunkSize = -1 },
		func(c *Config) { c.Limit = 0 },
		func(c *Config) { c.VectorSize = 0 },
		func(c *Config) { c.Distance = "l1" },
		func(c *Config) { c.EmbedBatchSize = 0 },
		func(c *Config) { c.MaxRetries = 0 },
	}
	for i, mutate := range bad {
		c := DefaultConfig()
		mutate(c)
		assert.ErrorIs(t, c.Validate(), ErrInvalidConfig, "case %d", i)
	}

	c := DefaultConfig().Chunker()
	assert.Equal(t, Chunker{Size: 500, Overlap: 50, MinSize: 20}, c)
}
