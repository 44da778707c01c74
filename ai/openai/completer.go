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

package openai

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/poiesic/switchboard/ai"
	"github.com/poiesic/switchboard/core"
	goopenai "github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// langchainCompleter talks to OpenAI-compatible servers through langchaingo.
type langchainCompleter struct {
	client llms.Model
	logger *slog.Logger
}

func newLangchainCompleter(conn *core.Connection, timeout time.Duration) (*langchainCompleter, error) {
	token := conn.APIKey
	if token == "" {
		// Local OpenAI-compatible services don't require authentication.
		token = "none"
	}
	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if conn.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(conn.BaseURL))
	}
	if model := conn.FirstEnabledModel(); model != "" {
		opts = append(opts, openai.WithModel(model))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	return &langchainCompleter{
		client: client,
		logger: slog.Default().With("component", "langchain-completer", "connection", conn.ID),
	}, nil
}

func (c *langchainCompleter) Complete(ctx context.Context, req ai.CompletionRequest) (string, error) {
	content := make([]llms.MessageContent, 0, len(req.Messages))
	for _, msg := range req.Messages {
		content = append(content, llms.MessageContent{
			Role:  langchainRole(msg.Role),
			Parts: []llms.ContentPart{llms.TextPart(msg.Content)},
		})
	}

	c.logger.Debug("requesting completion", "model", req.Model, "messages", len(content))
	response, err := c.client.GenerateContent(ctx, content,
		llms.WithModel(req.Model),
		llms.WithTemperature(req.Temperature),
		llms.WithMaxTokens(req.MaxTokens),
	)
	if err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", ai.ErrNoChoices
	}
	return strings.TrimSpace(response.Choices[0].Content), nil
}

func langchainRole(role string) llms.ChatMessageType {
	switch role {
	case ai.RoleSystem:
		return llms.ChatMessageTypeSystem
	case ai.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

// nativeCompleter uses the go-openai client for api.openai.com style endpoints.
type nativeCompleter struct {
	client *goopenai.Client
	logger *slog.Logger
}

func newNativeCompleter(conn *core.Connection, timeout time.Duration) *nativeCompleter {
	cfg := goopenai.DefaultConfig(conn.APIKey)
	if conn.BaseURL != "" {
		cfg.BaseURL = conn.BaseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &nativeCompleter{
		client: goopenai.NewClientWithConfig(cfg),
		logger: slog.Default().With("component", "openai-completer", "connection", conn.ID),
	}
}

func (c *nativeCompleter) Complete(ctx context.Context, req ai.CompletionRequest) (string, error) {
	messages := make([]goopenai.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = goopenai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	// go-openai omits a zero temperature, which lets the server apply its own default.
	temperature := float32(req.Temperature)
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	c.logger.Debug("requesting completion", "model", req.Model, "messages", len(messages))
	resp, err := c.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("create openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ai.ErrNoChoices
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
