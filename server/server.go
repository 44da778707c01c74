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

// Package server exposes the switchboard over HTTP: the chat platform
// webhook, document ingestion and health endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/poiesic/switchboard/core"
	"github.com/poiesic/switchboard/pipeline"
	"github.com/poiesic/switchboard/rag"
	"github.com/poiesic/switchboard/registry"
	"github.com/poiesic/switchboard/storage"
)

const (
	maxWebhookBody  = 1 << 20
	maxDocumentBody = 16 << 20

	// DefaultRequestTimeout bounds one webhook run.
	DefaultRequestTimeout = 2 * time.Minute
)

// Service is the behavior the HTTP surface needs.
// *switchboard.Switchboard satisfies it.
type Service interface {
	HandleEvent(ctx context.Context, ev *pipeline.Event) (*core.PipelineResult, error)
	IngestDocument(ctx context.Context, agentID string, doc core.ContextDocument) (*rag.IngestReport, error)
	DropCollection(ctx context.Context, agentID string) error
	Health(ctx context.Context) rag.Health
}

// Server routes HTTP requests to a Service.
type Server struct {
	svc            Service
	mux            *http.ServeMux
	requestTimeout time.Duration
	logger         *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithRequestTimeout bounds a webhook run. Agents still running when it
// expires are reported as not started and the result is marked partial.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "http")
	}
}

// New creates a server for svc.
func New(svc Service, opts ...Option) *Server {
	s := &Server{
		svc:            svc,
		mux:            http.NewServeMux(),
		requestTimeout: DefaultRequestTimeout,
		logger:         slog.Default().With("component", "http"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux.HandleFunc("POST /webhooks/{inboxID}", s.handleWebhook)
	s.mux.HandleFunc("GET /healthz", s.handleLiveness)
	s.mux.HandleFunc("GET /health/retrieval", s.handleRetrievalHealth)
	s.mux.HandleFunc("POST /agents/{agentID}/documents", s.handleIngest)
	s.mux.HandleFunc("DELETE /agents/{agentID}/collection", s.handleDropCollection)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.requestTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("shutdown", "err", err)
		}
	}()

	s.logger.Info("listening", "addr", addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}
	ev, err := pipeline.ParseEvent(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ev.Inbox.ID = pipeline.FlexibleID(r.PathValue("inboxID"))

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	result, err := s.svc.HandleEvent(ctx, ev)
	switch {
	case errors.Is(err, pipeline.ErrInboxNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil && !errors.Is(err, pipeline.ErrInboxInactive):
		s.logger.Error("webhook failed", "inbox", ev.InboxID(), "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRetrievalHealth(w http.ResponseWriter, r *http.Request) {
	health := s.svc.Health(r.Context())
	status := http.StatusOK
	if !health.Connected {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

type ingestRequest struct {
	ID       string                `json:"id"`
	Type     core.DocumentType     `json:"type"`
	Content  string                `json:"content"`
	Metadata core.DocumentMetadata `json:"metadata"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("agentID")

	var req ingestRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxDocumentBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Type == "" {
		req.Type = core.DocumentTypeFile
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content cannot be empty")
		return
	}

	report, err := s.svc.IngestDocument(r.Context(), agentID, core.ContextDocument{
		ID:       req.ID,
		Type:     req.Type,
		Content:  req.Content,
		Metadata: req.Metadata,
	})
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("ingest failed", "agent", agentID, "document", req.ID, "err", err)
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleDropCollection(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("agentID")
	if err := s.svc.DropCollection(r.Context(), agentID); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrAgentNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrEmptyID), errors.Is(err, core.ErrInvalidDocumentType):
		return http.StatusBadRequest
	case errors.Is(err, rag.ErrEmbedding), errors.Is(err, storage.ErrUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
