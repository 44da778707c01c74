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

package switchboard

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/poiesic/switchboard/ai/mock"
	"github.com/poiesic/switchboard/core"
	"github.com/poiesic/switchboard/delivery"
	"github.com/poiesic/switchboard/pipeline"
	"github.com/poiesic/switchboard/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRegistry = `
connections:
  - id: local
    active: true
    models:
      - id: tiny
        enabled: true
agents:
  - id: support
    prompt: You answer questions about the shop.
  - id: tagger
    prompt: Tag the message.
inboxes:
  - id: "5"
    active: true
    responseAgent:
      agent: support
      active: true
    pipelineAgents:
      - agent: tagger
        priority: 150
        active: true
`

type recordingGateway struct {
	mu      sync.Mutex
	replies []delivery.Reply
	ctxErrs []error
}

func (g *recordingGateway) Deliver(ctx context.Context, reply delivery.Reply) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.replies = append(g.replies, reply)
	g.ctxErrs = append(g.ctxErrs, ctx.Err())
	return nil
}

func newTestSwitchboard(t *testing.T, opts ...Option) (*Switchboard, *mock.MockProvider, *recordingGateway) {
	t.Helper()
	reg, err := registry.Parse([]byte(testRegistry))
	require.NoError(t, err)

	provider := mock.NewMockProvider()
	gateway := &recordingGateway{}
	opts = append([]Option{WithProvider(provider), WithGateway(gateway)}, opts...)

	sb, err := New(context.Background(), reg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sb.Close() })
	return sb, provider, gateway
}

func incoming(inbox, text string) *pipeline.Event {
	ev := &pipeline.Event{
		Event:       core.EventMessageCreated,
		MessageType: core.MessageTypeIncoming,
		Content:     text,
		ID:          "m-1",
	}
	ev.Inbox.ID = pipeline.FlexibleID(inbox)
	ev.Account.ID = "3"
	ev.Conversation.ID = "77"
	return ev
}

func TestNew(t *testing.T) {
	t.Run("requires registry", func(t *testing.T) {
		_, err := New(context.Background(), nil)
		assert.Error(t, err)
	})

	t.Run("badger on disk", func(t *testing.T) {
		reg := registry.New()
		provider := mock.NewMockProvider()
		sb, err := New(context.Background(), reg,
			WithProvider(provider),
			WithBadgerPath(filepath.Join(t.TempDir(), "vectors")))
		require.NoError(t, err)

		health := sb.Health(context.Background())
		assert.True(t, health.Connected)
		assert.True(t, strings.HasPrefix(health.StoreURL, "badger://"))
		assert.Equal(t, mock.DefaultDimension, health.Dimension)

		require.NoError(t, sb.Close())
		assert.True(t, provider.Closed())
	})

	t.Run("embedder dimension must match collections", func(t *testing.T) {
		provider := mock.NewMockProviderWithServices(
			mock.NewMockEmbedder().WithDimension(8),
			mock.NewMockCompleterFactory())
		_, err := New(context.Background(), registry.New(), WithProvider(provider))
		assert.Error(t, err)
		assert.True(t, provider.Closed())
	})
}

func TestHandleEvent_RetrievesAndDelivers(t *testing.T) {
	sb, provider, gateway := newTestSwitchboard(t)
	ctx := context.Background()

	faq := "Orders ship within two business days."
	report, err := sb.IngestDocument(ctx, "support", core.ContextDocument{ID: "faq", Type: core.DocumentTypeFile, Content: faq})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Chunks)

	result, err := sb.HandleEvent(ctx, incoming("5", faq))
	require.NoError(t, err)

	assert.Equal(t, core.StatusCompleted, result.Status)
	assert.Equal(t, 1, result.TotalAgents)
	assert.Equal(t, 1, result.Succeeded)
	require.NotNil(t, result.Response)
	assert.Equal(t, 1, result.Response.ContextChunks)
	assert.Equal(t, "echo: "+faq, result.ResponseText)

	var system string
	for _, req := range provider.GetMockCompleters().For("local").Requests() {
		if strings.HasPrefix(req.Messages[0].Content, "You answer questions") {
			system = req.Messages[0].Content
		}
	}
	assert.Contains(t, system, faq)

	gateway.mu.Lock()
	defer gateway.mu.Unlock()
	require.Len(t, gateway.replies, 1)
	assert.Equal(t, "77", gateway.replies[0].ConversationID)
	assert.Equal(t, "3", gateway.replies[0].AccountID)
	assert.Equal(t, "echo: "+faq, gateway.replies[0].Text)
}

func TestHandleEvent_SkipsWithoutDelivery(t *testing.T) {
	sb, _, gateway := newTestSwitchboard(t)

	ev := incoming("5", "hello")
	ev.MessageType = core.MessageTypeOutgoing
	result, err := sb.HandleEvent(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, core.StatusSkipped, result.Status)

	_, err = sb.HandleEvent(context.Background(), incoming("404", "hello"))
	assert.ErrorIs(t, err, pipeline.ErrInboxNotFound)

	assert.Empty(t, gateway.replies)
}

func TestIngest(t *testing.T) {
	sb, _, _ := newTestSwitchboard(t)
	ctx := context.Background()

	_, err := sb.IngestDocument(ctx, "ghost", core.ContextDocument{ID: "x", Type: core.DocumentTypeFile, Content: "x"})
	assert.ErrorIs(t, err, registry.ErrAgentNotFound)

	_, err = sb.IngestDocument(ctx, "support", core.ContextDocument{ID: "x", Type: "scroll", Content: "x"})
	assert.ErrorIs(t, err, core.ErrInvalidDocumentType)

	_, err = sb.IngestDocument(ctx, "support", core.ContextDocument{ID: "returns", Type: core.DocumentTypeURL, Content: "Returns are free for 30 days."})
	require.NoError(t, err)
	agent, _ := sb.Registry().Agent("support")
	require.Len(t, agent.Documents, 1)

	reports, err := sb.IngestAgent(ctx, "support")
	require.NoError(t, err)
	require.Len(t, reports, 1)

	total, err := sb.IngestAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	hits, err := sb.Retrieve(ctx, "support", "Returns are free for 30 days.", 0, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-4)

	require.NoError(t, sb.DropCollection(ctx, "support"))
	hits, err = sb.Retrieve(ctx, "support", "Returns are free for 30 days.", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIngest_ConcurrentSameDocument(t *testing.T) {
	sb, _, _ := newTestSwitchboard(t)
	ctx := context.Background()
	text := strings.Repeat("Our store opens at nine and closes at six. ", 40)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := sb.IngestDocument(ctx, "support", core.ContextDocument{ID: "hours", Type: core.DocumentTypeFile, Content: text})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	single, err := sb.Engine().IngestDocument(ctx, "support", core.ContextDocument{ID: "hours", Type: core.DocumentTypeFile, Content: text})
	require.NoError(t, err)
	hits, err := sb.Retrieve(ctx, "support", text, 100, -1)
	require.NoError(t, err)
	assert.Len(t, hits, single.Chunks)
}

func TestWarm(t *testing.T) {
	sb, _, _ := newTestSwitchboard(t)
	assert.NoError(t, sb.Warm(context.Background()))
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()
	unlockA := k.Lock("a")
	unlockB := k.Lock("b")

	acquired := make(chan struct{})
	go func() {
		unlock := k.Lock("a")
		close(acquired)
		unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock on the same key acquired early")
	default:
	}
	unlockB()
	unlockA()
	<-acquired

	k.mu.Lock()
	defer k.mu.Unlock()
	assert.Empty(t, k.locks)
}

func TestHandleEvent_DeliversFallbackAfterDeadline(t *testing.T) {
	sb, _, gateway := newTestSwitchboard(t, WithFallbackText("We will get back to you shortly."))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := sb.HandleEvent(ctx, incoming("5", "hello?"))
	require.NoError(t, err)
	assert.True(t, result.Partial)
	assert.Equal(t, "We will get back to you shortly.", result.ResponseText)

	gateway.mu.Lock()
	defer gateway.mu.Unlock()
	require.Len(t, gateway.replies, 1)
	assert.Equal(t, "We will get back to you shortly.", gateway.replies[0].Text)
	assert.NoError(t, gateway.ctxErrs[0], "delivery context must outlive the run")
}
