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

package ai

import "errors"

var (
	// ErrDimensionMismatch indicates the model returned vectors of an unexpected length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmptyEmbedding indicates the embedding service returned no vectors.
	ErrEmptyEmbedding = errors.New("embedding service returned no vectors")

	// ErrNoChoices indicates a completion call returned no choices.
	ErrNoChoices = errors.New("completion returned no choices")

	// ErrUnsupportedConnection indicates a connection kind with no client.
	ErrUnsupportedConnection = errors.New("unsupported connection kind")
)
