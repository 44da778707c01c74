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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultHTTPTimeout bounds one delivery request.
const DefaultHTTPTimeout = 15 * time.Second

// HTTPGateway posts replies to a Chatwoot-compatible messages endpoint:
// POST {base}/api/v1/accounts/{account}/conversations/{conversation}/messages.
type HTTPGateway struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

var _ Gateway = (*HTTPGateway)(nil)

// HTTPOption configures an HTTPGateway.
type HTTPOption func(*HTTPGateway) error

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(g *HTTPGateway) error {
		if client == nil {
			return fmt.Errorf("http client cannot be nil")
		}
		g.client = client
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) HTTPOption {
	return func(g *HTTPGateway) error {
		if logger == nil {
			logger = slog.Default()
		}
		g.logger = logger.With("component", "delivery")
		return nil
	}
}

// NewHTTPGateway creates a gateway for the platform at baseURL, authenticated
// with an API access token.
func NewHTTPGateway(baseURL, token string, opts ...HTTPOption) (*HTTPGateway, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid delivery base url %q", baseURL)
	}
	g := &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: DefaultHTTPTimeout},
		logger:  slog.Default().With("component", "delivery"),
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	return g, nil
}

type outgoingMessage struct {
	Content     string `json:"content"`
	MessageType string `json:"message_type"`
	Private     bool   `json:"private"`
}

// Deliver posts reply as an outgoing message of its conversation.
func (g *HTTPGateway) Deliver(ctx context.Context, reply Reply) error {
	if reply.AccountID == "" || reply.ConversationID == "" {
		return ErrIncompleteReply
	}

	body, err := json.Marshal(outgoingMessage{Content: reply.Text, MessageType: "outgoing"})
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/v1/accounts/%s/conversations/%s/messages",
		g.baseURL, url.PathEscape(reply.AccountID), url.PathEscape(reply.ConversationID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		req.Header.Set("api_access_token", g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("delivery API %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	g.logger.Debug("reply delivered", "run", reply.RunID, "conversation", reply.ConversationID)
	return nil
}
