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
	"testing"

	"github.com/poiesic/switchboard/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolverFixture() *staticConnections {
	return &staticConnections{
		conns: []*core.Connection{
			{
				ID:     "offline",
				Active: false,
				Models: []core.ConnectionModel{{ID: "m-off", Enabled: true}},
			},
			{
				ID:     "local",
				Active: true,
				Models: []core.ConnectionModel{
					{ID: "m-disabled", Enabled: false},
					{ID: "m-local", Enabled: true},
				},
			},
			{
				ID:     "cloud",
				Active: true,
				Models: []core.ConnectionModel{
					{ID: "m-cloud", Enabled: true},
					{ID: "m-cloud-large", Enabled: true},
				},
			},
		},
	}
}

func TestResolver_ExplicitConnection(t *testing.T) {
	r := NewResolver(resolverFixture())

	res, err := r.Resolve(core.AgentSettings{ConnectionID: "cloud", Model: "m-cloud-large"})
	require.NoError(t, err)
	assert.Equal(t, "cloud", res.Connection.ID)
	assert.Equal(t, "m-cloud-large", res.Model)
	assert.Equal(t, SourceAgent, res.Source)

	res, err = r.Resolve(core.AgentSettings{ConnectionID: "local"})
	require.NoError(t, err)
	assert.Equal(t, "m-local", res.Model)
}

func TestResolver_ExplicitConnectionErrors(t *testing.T) {
	r := NewResolver(resolverFixture())

	_, err := r.Resolve(core.AgentSettings{ConnectionID: "missing"})
	assert.ErrorIs(t, err, ErrNoConnection)

	_, err = r.Resolve(core.AgentSettings{ConnectionID: "offline"})
	assert.ErrorIs(t, err, ErrNoConnection)

	_, err = r.Resolve(core.AgentSettings{ConnectionID: "local", Model: "m-disabled"})
	assert.ErrorIs(t, err, ErrNoModel)
}

func TestResolver_ModelOnly(t *testing.T) {
	r := NewResolver(resolverFixture())

	res, err := r.Resolve(core.AgentSettings{Model: "m-cloud"})
	require.NoError(t, err)
	assert.Equal(t, "cloud", res.Connection.ID)

	_, err = r.Resolve(core.AgentSettings{Model: "m-off"})
	assert.ErrorIs(t, err, ErrNoModel)
}

func TestResolver_DefaultModel(t *testing.T) {
	source := resolverFixture()
	source.def = core.ModelRef{ConnectionID: "cloud", Model: "m-cloud-large"}
	r := NewResolver(source)

	res, err := r.Resolve(core.AgentSettings{})
	require.NoError(t, err)
	assert.Equal(t, "cloud", res.Connection.ID)
	assert.Equal(t, "m-cloud-large", res.Model)
	assert.Equal(t, SourceDefault, res.Source)

	source.def = core.ModelRef{ConnectionID: "cloud"}
	res, err = r.Resolve(core.AgentSettings{})
	require.NoError(t, err)
	assert.Equal(t, "m-cloud", res.Model)
	assert.Equal(t, SourceDefault, res.Source)
}

func TestResolver_InvalidDefaultFallsBack(t *testing.T) {
	for _, def := range []core.ModelRef{
		{ConnectionID: "missing", Model: "x"},
		{ConnectionID: "offline", Model: "m-off"},
		{ConnectionID: "cloud", Model: "m-unknown"},
	} {
		source := resolverFixture()
		source.def = def
		res, err := NewResolver(source).Resolve(core.AgentSettings{})
		require.NoError(t, err)
		assert.Equal(t, "local", res.Connection.ID, "default %+v", def)
		assert.Equal(t, "m-local", res.Model)
		assert.Equal(t, SourceFallback, res.Source)
	}
}

func TestResolver_NothingAvailable(t *testing.T) {
	source := &staticConnections{conns: []*core.Connection{
		{ID: "off", Active: false, Models: []core.ConnectionModel{{ID: "a", Enabled: true}}},
		{ID: "empty", Active: true, Models: []core.ConnectionModel{{ID: "b", Enabled: false}}},
	}}

	_, err := NewResolver(source).Resolve(core.AgentSettings{})
	assert.ErrorIs(t, err, ErrNoConnection)
}
