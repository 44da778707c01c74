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

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/poiesic/switchboard/ai"
	"github.com/poiesic/switchboard/core"
	"github.com/poiesic/switchboard/rag"
	"github.com/poiesic/switchboard/storage"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want core.ErrorClass
	}{
		{"nil", nil, core.ErrorClassNone},
		{"panic", fmt.Errorf("%w: boom", ErrAgentPanic), core.ErrorClassInternal},
		{"unknown agent", fmt.Errorf("%w: x", ErrAgentNotFound), core.ErrorClassConfig},
		{"no connection", ErrNoConnection, core.ErrorClassConfig},
		{"no model", fmt.Errorf("wrap: %w", ErrNoModel), core.ErrorClassConfig},
		{"unsupported kind", ai.ErrUnsupportedConnection, core.ErrorClassConfig},
		{"invalid rag config", rag.ErrInvalidConfig, core.ErrorClassConfig},
		{"dimension mismatch", storage.ErrDimensionMismatch, core.ErrorClassConfig},
		{"empty message", core.ErrEmptyMessage, core.ErrorClassMalformed},
		{"deadline", fmt.Errorf("complete: %w", context.DeadlineExceeded), core.ErrorClassUpstream},
		{"store down", storage.ErrUnavailable, core.ErrorClassUpstream},
		{"not started", ErrNotStarted, core.ErrorClassUpstream},
		{"anything else", errors.New("connection reset by peer"), core.ErrorClassUpstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
