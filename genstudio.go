// Package genstudio wires the generation stack together: one adapter per
// supported backend, a shared poller, an in-memory task store, and a memory
// or S3-backed history log, all constructed from a single configuration.
package genstudio

import (
	"fmt"
	"log/slog"

	"github.com/pverdu/genstudio/config"
	"github.com/pverdu/genstudio/generate"
	"github.com/pverdu/genstudio/history"
	"github.com/pverdu/genstudio/poll"
	"github.com/pverdu/genstudio/provider/chat"
	"github.com/pverdu/genstudio/provider/gemini"
	"github.com/pverdu/genstudio/provider/grok"
	"github.com/pverdu/genstudio/provider/sora"
	"github.com/pverdu/genstudio/provider/veo"
	"github.com/pverdu/genstudio/task"
)

// Studio holds an initialized generation stack.
type Studio struct {
	// Service is the batch orchestrator.
	Service *generate.Service
	// Tasks is the task store the orchestrator writes to.
	Tasks task.Store
	// History is the log of completed generations.
	History history.Log
	// Chat optimizes prompts through the chat-completion endpoint.
	Chat *chat.Client
}

// New builds a Studio from configuration. The logger may be nil.
func New(cfg *config.Config, logger *slog.Logger) (*Studio, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	veoAdapter, err := veo.New(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("create veo adapter: %w", err)
	}
	soraAdapter, err := sora.New(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("create sora adapter: %w", err)
	}
	grokAdapter, err := grok.New(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("create grok adapter: %w", err)
	}
	geminiAdapter, err := gemini.New(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("create gemini adapter: %w", err)
	}
	chatClient, err := chat.New(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("create chat client: %w", err)
	}

	historyLog, err := newHistoryLog(cfg, logger)
	if err != nil {
		return nil, err
	}

	store := task.NewMemoryStore()
	poller := poll.New(
		poll.WithInterval(cfg.PollInterval),
		poll.WithMultiplier(cfg.PollMultiplier),
		poll.WithMaxAttempts(cfg.PollMaxAttempts),
	)

	svc := generate.NewService(store, historyLog, logger,
		generate.WithPoller(poller),
		generate.WithAdapter(task.ModelVeo, veoAdapter),
		generate.WithAdapter(task.ModelSora, soraAdapter),
		generate.WithAdapter(task.ModelGrok, grokAdapter),
		generate.WithAdapter(task.ModelGemini, geminiAdapter),
	)

	return &Studio{
		Service: svc,
		Tasks:   store,
		History: historyLog,
		Chat:    chatClient,
	}, nil
}

// newHistoryLog creates the history backend based on configuration.
func newHistoryLog(cfg *config.Config, logger *slog.Logger) (history.Log, error) {
	if cfg.S3Enabled() {
		s3Cfg := history.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Log, err := history.NewS3Log(s3Cfg, cfg.HistoryLimit)
		if err != nil {
			return nil, fmt.Errorf("create S3 history log: %w", err)
		}
		logger.Info("S3 history log configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Log, nil
	}

	logger.Info("in-memory history log configured",
		slog.Int("limit", cfg.HistoryLimit),
	)
	return history.NewMemoryLogWithLimit(cfg.HistoryLimit), nil
}
