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

package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogGateway(t *testing.T) {
	g := NewLogGateway(nil)
	assert.NoError(t, g.Deliver(context.Background(), Reply{Text: "hi"}))
}

func TestHTTPGateway_Deliver(t *testing.T) {
	var (
		gotPath  string
		gotToken string
		gotBody  outgoingMessage
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.Header.Get("api_access_token")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id": 1}`))
	}))
	defer srv.Close()

	g, err := NewHTTPGateway(srv.URL+"/", "secret")
	require.NoError(t, err)

	err = g.Deliver(context.Background(), Reply{AccountID: "7", ConversationID: "42", Text: "Your order ships today."})
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/accounts/7/conversations/42/messages", gotPath)
	assert.Equal(t, "secret", gotToken)
	assert.Equal(t, "Your order ships today.", gotBody.Content)
	assert.Equal(t, "outgoing", gotBody.MessageType)
	assert.False(t, gotBody.Private)
}

func TestHTTPGateway_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "conversation locked", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	g, err := NewHTTPGateway(srv.URL, "")
	require.NoError(t, err)

	err = g.Deliver(context.Background(), Reply{AccountID: "1", ConversationID: "2", Text: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "conversation locked")
}

func TestHTTPGateway_IncompleteReply(t *testing.T) {
	g, err := NewHTTPGateway("http://localhost:3000", "")
	require.NoError(t, err)

	assert.ErrorIs(t, g.Deliver(context.Background(), Reply{ConversationID: "2"}), ErrIncompleteReply)
}

func TestNewHTTPGateway_Invalid(t *testing.T) {
	_, err := NewHTTPGateway("not a url", "")
	assert.Error(t, err)

	_, err = NewHTTPGateway("http://localhost", "", WithHTTPClient(nil))
	assert.Error(t, err)
}
