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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/switchboard"
	"github.com/poiesic/switchboard/ai"
	"github.com/poiesic/switchboard/core"
	"github.com/poiesic/switchboard/delivery"
	"github.com/poiesic/switchboard/rag"
	"github.com/poiesic/switchboard/registry"
	"github.com/poiesic/switchboard/server"
	"github.com/poiesic/switchboard/storage"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "switchboard",
		Usage: "Inbox agent pipeline with retrieval-augmented context",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"SWITCHBOARD_LOG_LEVEL"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the webhook and ingestion HTTP API",
				Action: serveCommand,
				Flags: append(serviceFlags(),
					&cli.StringFlag{
						Name:    "addr",
						Usage:   "Listen address",
						Value:   ":8080",
						EnvVars: []string{"SWITCHBOARD_ADDR"},
					},
					&cli.StringFlag{
						Name:    "delivery-url",
						Usage:   "Chat platform base URL for replies (replies are only logged when empty)",
						EnvVars: []string{"SWITCHBOARD_DELIVERY_URL"},
					},
					&cli.StringFlag{
						Name:    "delivery-token",
						Usage:   "Chat platform API access token",
						EnvVars: []string{"SWITCHBOARD_DELIVERY_TOKEN"},
					},
					&cli.IntFlag{
						Name:    "max-concurrency",
						Usage:   "Maximum main-stage agents running at once",
						EnvVars: []string{"SWITCHBOARD_MAX_CONCURRENCY"},
					},
					&cli.DurationFlag{
						Name:    "agent-timeout",
						Usage:   "Timeout for one agent execution",
						Value:   60 * time.Second,
						EnvVars: []string{"SWITCHBOARD_AGENT_TIMEOUT"},
					},
					&cli.DurationFlag{
						Name:    "request-timeout",
						Usage:   "Overall deadline for one webhook run",
						Value:   server.DefaultRequestTimeout,
						EnvVars: []string{"SWITCHBOARD_REQUEST_TIMEOUT"},
					},
					&cli.StringFlag{
						Name:    "fallback-text",
						Usage:   "Reply sent when the response agent fails",
						EnvVars: []string{"SWITCHBOARD_FALLBACK_TEXT"},
					},
					&cli.BoolFlag{
						Name:    "ingest-on-start",
						Usage:   "Ingest every agent document listed in the registry before serving",
						EnvVars: []string{"SWITCHBOARD_INGEST_ON_START"},
					},
				),
			},
			{
				Name:   "ingest",
				Usage:  "Ingest agent documents into the vector store",
				Action: ingestCommand,
				Flags: append(serviceFlags(),
					&cli.StringFlag{
						Name:  "agent",
						Usage: "Agent to ingest (all agents when empty)",
					},
					&cli.StringFlag{
						Name:  "file",
						Usage: "Plain text file to ingest as a new document of --agent",
					},
					&cli.StringFlag{
						Name:  "document-id",
						Usage: "Document id for --file (defaults to the file name)",
					},
				),
			},
			{
				Name:      "retrieve",
				Usage:     "Show the chunks an agent would receive for a query",
				ArgsUsage: "<query>",
				Action:    retrieveCommand,
				Flags: append(serviceFlags(),
					&cli.StringFlag{
						Name:     "agent",
						Usage:    "Agent whose collection is searched",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of chunks",
						Value: 5,
					},
					&cli.Float64Flag{
						Name:  "threshold",
						Usage: "Minimum similarity score",
						Value: 0.1,
					},
				),
			},
			{
				Name:   "health",
				Usage:  "Report vector store and embedding model readiness",
				Action: healthCommand,
				Flags:  serviceFlags(),
			},
			{
				Name:   "drop-collection",
				Usage:  "Delete an agent's collection and all its chunks",
				Action: dropCollectionCommand,
				Flags: append(serviceFlags(),
					&cli.StringFlag{
						Name:     "agent",
						Usage:    "Agent whose collection is dropped",
						Required: true,
					},
				),
			},
		},
	}
}

// serviceFlags are shared by every command that builds a Switchboard.
func serviceFlags() []cli.Flag {
	defaults := ai.DefaultConfig()
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "registry",
			Aliases:  []string{"r"},
			Usage:    "Path to the registry YAML file",
			Required: true,
			EnvVars:  []string{"SWITCHBOARD_REGISTRY"},
		},
		&cli.StringFlag{
			Name:    "db",
			Aliases: []string{"d"},
			Usage:   "Path to BadgerDB vector database directory (in memory when empty)",
			EnvVars: []string{"SWITCHBOARD_DB"},
		},
		&cli.StringFlag{
			Name:    "postgres",
			Usage:   "PostgreSQL DSN; stores vectors with pgvector instead of BadgerDB",
			EnvVars: []string{"SWITCHBOARD_POSTGRES_DSN"},
		},
		&cli.StringFlag{
			Name:    "embedding-host",
			Usage:   "Embedding service host URL",
			Value:   defaults.EmbeddingHost,
			EnvVars: []string{"SWITCHBOARD_EMBEDDING_HOST"},
		},
		&cli.StringFlag{
			Name:    "embedding-model",
			Usage:   "Multilingual embedding model name",
			Value:   defaults.EmbeddingModel,
			EnvVars: []string{"SWITCHBOARD_EMBEDDING_MODEL"},
		},
		&cli.IntFlag{
			Name:    "embedding-dimension",
			Usage:   "Length of the vectors produced by the embedding model",
			Value:   defaults.EmbeddingDimension,
			EnvVars: []string{"SWITCHBOARD_EMBEDDING_DIMENSION"},
		},
		&cli.StringFlag{
			Name:    "embedding-token",
			Usage:   "Bearer token for the embedding service",
			EnvVars: []string{"SWITCHBOARD_EMBEDDING_TOKEN"},
		},
		&cli.IntFlag{
			Name:  "chunk-size",
			Usage: "Maximum chunk length in characters",
			Value: rag.DefaultConfig().ChunkSize,
		},
		&cli.IntFlag{
			Name:  "chunk-overlap",
			Usage: "Characters shared by consecutive chunks",
			Value: rag.DefaultConfig().ChunkOverlap,
		},
	}
}

func configsFromFlags(c *cli.Context) (*ai.Config, *rag.Config, error) {
	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithEmbeddingDimension(c.Int("embedding-dimension")),
		ai.WithEmbeddingToken(c.String("embedding-token")),
	)
	if err := aiConfig.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	ragConfig := rag.DefaultConfig()
	ragConfig.ChunkSize = c.Int("chunk-size")
	ragConfig.ChunkOverlap = c.Int("chunk-overlap")
	ragConfig.MinChunkSize = min(ragConfig.MinChunkSize, ragConfig.ChunkSize)
	ragConfig.VectorSize = aiConfig.EmbeddingDimension
	if err := ragConfig.Validate(); err != nil {
		return nil, nil, err
	}
	return aiConfig, ragConfig, nil
}

func openSwitchboard(ctx context.Context, c *cli.Context, extra ...switchboard.Option) (*switchboard.Switchboard, error) {
	reg, err := registry.Load(c.String("registry"))
	if err != nil {
		return nil, err
	}
	aiConfig, ragConfig, err := configsFromFlags(c)
	if err != nil {
		return nil, err
	}

	opts := []switchboard.Option{
		switchboard.WithAIConfig(aiConfig),
		switchboard.WithRAGConfig(ragConfig),
		switchboard.WithBadgerPath(c.String("db")),
		switchboard.WithPostgres(c.String("postgres")),
		switchboard.WithLogger(slog.Default()),
	}
	sb, err := switchboard.New(ctx, reg, append(opts, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to start switchboard: %w", err)
	}
	return sb, nil
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var extra []switchboard.Option
	if url := c.String("delivery-url"); url != "" {
		gateway, err := delivery.NewHTTPGateway(url, c.String("delivery-token"))
		if err != nil {
			return err
		}
		extra = append(extra, switchboard.WithGateway(gateway))
	}
	if n := c.Int("max-concurrency"); n > 0 {
		extra = append(extra, switchboard.WithMaxConcurrency(n))
	}
	extra = append(extra,
		switchboard.WithAgentTimeout(c.Duration("agent-timeout")),
		switchboard.WithFallbackText(c.String("fallback-text")))

	sb, err := openSwitchboard(ctx, c, extra...)
	if err != nil {
		return err
	}
	defer sb.Close()

	go func() {
		if err := sb.Warm(ctx); err != nil {
			slog.Warn("embedding model warm-up failed", "err", err)
		}
	}()

	if c.Bool("ingest-on-start") {
		n, err := sb.IngestAll(ctx)
		if err != nil {
			slog.Warn("startup ingestion incomplete", "err", err)
		}
		slog.Info("startup ingestion finished", "documents", n)
	}

	srv := server.New(sb,
		server.WithRequestTimeout(c.Duration("request-timeout")),
		server.WithLogger(slog.Default()))
	return srv.ListenAndServe(ctx, c.String("addr"))
}

func ingestCommand(c *cli.Context) error {
	ctx := c.Context
	agentID := c.String("agent")
	file := c.String("file")
	if file != "" && agentID == "" {
		return fmt.Errorf("--file requires --agent")
	}

	sb, err := openSwitchboard(ctx, c)
	if err != nil {
		return err
	}
	defer sb.Close()

	switch {
	case file != "":
		content, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read %s: %w", file, err)
		}
		docID := c.String("document-id")
		if docID == "" {
			docID = filepath.Base(file)
		}
		report, err := sb.IngestDocument(ctx, agentID, core.ContextDocument{
			ID:      docID,
			Type:    core.DocumentTypeFile,
			Content: string(content),
		})
		if err != nil {
			return fmt.Errorf("ingestion failed: %w", err)
		}
		printReport(c, report)
	case agentID != "":
		reports, err := sb.IngestAgent(ctx, agentID)
		for _, r := range reports {
			printReport(c, r)
		}
		if err != nil {
			return fmt.Errorf("ingestion failed: %w", err)
		}
	default:
		n, err := sb.IngestAll(ctx)
		fmt.Fprintf(c.App.Writer, "Ingested %d documents\n", n)
		if err != nil {
			return fmt.Errorf("ingestion failed: %w", err)
		}
	}
	return nil
}

func printReport(c *cli.Context, r *rag.IngestReport) {
	fmt.Fprintf(c.App.Writer, "%s/%s: %d chunks in %s %v\n",
		r.AgentID, r.DocumentID, r.Chunks, r.Duration.Round(time.Millisecond), r.Languages)
}

func retrieveCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("query is required")
	}

	sb, err := openSwitchboard(c.Context, c)
	if err != nil {
		return err
	}
	defer sb.Close()

	hits, err := sb.Retrieve(c.Context, c.String("agent"), query, c.Int("limit"), float32(c.Float64("threshold")))
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Fprintln(c.App.Writer, "No matching chunks")
		return nil
	}
	for i, h := range hits {
		fmt.Fprintf(c.App.Writer, "%d. [%.3f] %s#%d (%s)\n   %s\n",
			i+1, h.Score, h.Chunk.DocumentID, h.Chunk.Index, h.Chunk.Language, h.Chunk.Text)
	}
	return nil
}

func healthCommand(c *cli.Context) error {
	sb, err := openSwitchboard(c.Context, c)
	if err != nil {
		return err
	}
	defer sb.Close()

	if err := sb.Warm(c.Context); err != nil {
		slog.Warn("embedding model warm-up failed", "err", err)
	}
	health := sb.Health(c.Context)
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(health); err != nil {
		return err
	}
	if !health.Connected {
		return fmt.Errorf("%w: %s", storage.ErrUnavailable, health.StoreURL)
	}
	return nil
}

func dropCollectionCommand(c *cli.Context) error {
	sb, err := openSwitchboard(c.Context, c)
	if err != nil {
		return err
	}
	defer sb.Close()

	agentID := c.String("agent")
	if err := sb.DropCollection(c.Context, agentID); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Dropped collection %s\n", rag.CollectionName(agentID))
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
