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

	"github.com/poiesic/switchboard/ai"
	"github.com/poiesic/switchboard/core"
	"github.com/poiesic/switchboard/rag"
	"github.com/poiesic/switchboard/storage"
)

// Classify maps an agent failure onto a stable error class.
// Errors not recognized as configuration, input or internal problems are
// treated as upstream failures, since they come from model or store calls.
func Classify(err error) core.ErrorClass {
	switch {
	case err == nil:
		return core.ErrorClassNone
	case errors.Is(err, ErrAgentPanic):
		return core.ErrorClassInternal
	case errors.Is(err, ErrAgentNotFound),
		errors.Is(err, ErrNoConnection),
		errors.Is(err, ErrNoModel),
		errors.Is(err, ai.ErrUnsupportedConnection),
		errors.Is(err, core.ErrInvalidAgent),
		errors.Is(err, core.ErrInvalidConnection),
		errors.Is(err, rag.ErrInvalidConfig),
		errors.Is(err, storage.ErrDimensionMismatch),
		errors.Is(err, ai.ErrDimensionMismatch):
		return core.ErrorClassConfig
	case errors.Is(err, core.ErrEmptyMessage):
		return core.ErrorClassMalformed
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, ErrNotStarted),
		errors.Is(err, storage.ErrUnavailable),
		errors.Is(err, rag.ErrEmbedding),
		errors.Is(err, ai.ErrNoChoices),
		errors.Is(err, ai.ErrEmptyEmbedding):
		return core.ErrorClassUpstream
	}
	return core.ErrorClassUpstream
}
