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

package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/switchboard/core"
)

var errVectorLength = errors.New("invalid vector length")

// ChunkMUS serializes core.Chunk records in MUS format.
var ChunkMUS = chunkMUS{}

// CollectionMUS serializes Collection metadata in MUS format.
var CollectionMUS = collectionMUS{}

type chunkMUS struct{}

func (chunkMUS) Marshal(c core.Chunk, bs []byte) (n int) {
	n = ord.String.Marshal(c.ID, bs)
	n += ord.String.Marshal(c.AgentID, bs[n:])
	n += ord.String.Marshal(c.DocumentID, bs[n:])
	n += ord.String.Marshal(string(c.DocumentType), bs[n:])
	n += varint.Int.Marshal(c.Index, bs[n:])
	n += ord.String.Marshal(c.Text, bs[n:])
	n += ord.String.Marshal(c.Language, bs[n:])
	n += marshalVector(c.Vector, bs[n:])
	return n + marshalTime(c.InsertedAt, bs[n:])
}

func (chunkMUS) Unmarshal(bs []byte) (c core.Chunk, n int, err error) {
	r := &reader{bs: bs}
	c.ID = r.string()
	c.AgentID = r.string()
	c.DocumentID = r.string()
	c.DocumentType = core.DocumentType(r.string())
	c.Index = r.int()
	c.Text = r.string()
	c.Language = r.string()
	c.Vector = r.vector()
	c.InsertedAt = r.time()
	return c, r.n, r.err
}

func (chunkMUS) Size(c core.Chunk) (size int) {
	size = ord.String.Size(c.ID)
	size += ord.String.Size(c.AgentID)
	size += ord.String.Size(c.DocumentID)
	size += ord.String.Size(string(c.DocumentType))
	size += varint.Int.Size(c.Index)
	size += ord.String.Size(c.Text)
	size += ord.String.Size(c.Language)
	size += sizeVector(c.Vector)
	return size + sizeTime(c.InsertedAt)
}

type collectionMUS struct{}

func (collectionMUS) Marshal(c Collection, bs []byte) (n int) {
	n = ord.String.Marshal(c.AgentID, bs)
	n += varint.Int.Marshal(c.VectorSize, bs[n:])
	n += ord.String.Marshal(string(c.Distance), bs[n:])
	return n + marshalTime(c.CreatedAt, bs[n:])
}

func (collectionMUS) Unmarshal(bs []byte) (c Collection, n int, err error) {
	r := &reader{bs: bs}
	c.AgentID = r.string()
	c.VectorSize = r.int()
	c.Distance = Distance(r.string())
	c.CreatedAt = r.time()
	return c, r.n, r.err
}

func (collectionMUS) Size(c Collection) (size int) {
	size = ord.String.Size(c.AgentID)
	size += varint.Int.Size(c.VectorSize)
	size += ord.String.Size(string(c.Distance))
	return size + sizeTime(c.CreatedAt)
}

// Vectors are a varint length followed by fixed-width float32 values.
func marshalVector(v []float32, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, f := range v {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return n
}

func sizeVector(v []float32) (size int) {
	size = varint.Int.Size(len(v))
	for _, f := range v {
		size += raw.Float32.Size(f)
	}
	return size
}

// Times are stored as UTC seconds and nanoseconds so the zero time survives.
func marshalTime(t time.Time, bs []byte) (n int) {
	n = varint.Int64.Marshal(t.Unix(), bs)
	return n + varint.Int.Marshal(t.Nanosecond(), bs[n:])
}

func sizeTime(t time.Time) int {
	return varint.Int64.Size(t.Unix()) + varint.Int.Size(t.Nanosecond())
}

// reader decodes fields in order and keeps the first error.
type reader struct {
	bs  []byte
	n   int
	err error
}

func (r *reader) string() string {
	if r.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *reader) int() int {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *reader) int64() int64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int64.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *reader) vector() []float32 {
	length := r.int()
	if r.err != nil || length == 0 {
		return nil
	}
	if length < 0 || length*raw.Float32.Size(0) > len(r.bs)-r.n {
		r.err = fmt.Errorf("%w: %d", errVectorLength, length)
		return nil
	}
	v := make([]float32, length)
	for i := range v {
		f, n, err := raw.Float32.Unmarshal(r.bs[r.n:])
		r.n += n
		if err != nil {
			r.err = err
			return nil
		}
		v[i] = f
	}
	return v
}

func (r *reader) time() time.Time {
	sec := r.int64()
	nsec := r.int()
	if r.err != nil {
		return time.Time{}
	}
	return time.Unix(sec, int64(nsec)).UTC()
}

// MarshalChunk serializes a Chunk to bytes.
func MarshalChunk(chunk *core.Chunk) ([]byte, error) {
	if chunk == nil {
		return nil, fmt.Errorf("%w: nil chunk", ErrSerializationFailed)
	}
	buf := make([]byte, ChunkMUS.Size(*chunk))
	ChunkMUS.Marshal(*chunk, buf)
	return buf, nil
}

// UnmarshalChunk deserializes a Chunk from bytes.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	chunk, _, err := ChunkMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &chunk, nil
}

// MarshalCollection serializes Collection metadata to bytes.
func MarshalCollection(c *Collection) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil collection", ErrSerializationFailed)
	}
	buf := make([]byte, CollectionMUS.Size(*c))
	CollectionMUS.Marshal(*c, buf)
	return buf, nil
}

// UnmarshalCollection deserializes Collection metadata from bytes.
func UnmarshalCollection(data []byte) (*Collection, error) {
	c, _, err := CollectionMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &c, nil
}
