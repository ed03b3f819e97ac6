package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"receiptbook/internal/config"
	"receiptbook/internal/connectors"
	gmailconnector "receiptbook/internal/connectors/gmail"
	imapconnector "receiptbook/internal/connectors/imap"
	"receiptbook/internal/extract"
	"receiptbook/internal/ledger"
	"receiptbook/internal/llm"
	"receiptbook/internal/pipeline"
	"receiptbook/internal/storage"
)

// App holds the wired services shared by the CLI, the HTTP API and the listener.
type App struct {
	Config    config.Config
	Log       zerolog.Logger
	DB        *storage.DB
	Ledger    *ledger.Ledger
	Router    *extract.Router
	Mail      *connectors.Lookup
	Processor *pipeline.ProcessingService
}

func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	ldg, err := ledger.Open(ctx, cfg, log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	router, err := NewRouter(ctx, cfg, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &App{Config: cfg, Log: log, DB: db, Ledger: ldg, Router: router}

	mailbox, err := NewMailbox(ctx, cfg, log)
	if err != nil {
		log.Warn().Err(err).Str("provider", cfg.MailProvider).Msg("mail.disabled")
	} else {
		a.Mail = connectors.NewLookup(mailbox, time.Duration(cfg.MailTimeoutMs)*time.Millisecond, log)
	}

	// A nil *Lookup must not become a non-nil MailSource.
	var mail pipeline.MailSource
	if a.Mail != nil {
		mail = a.Mail
	}
	a.Processor = pipeline.NewProcessingService(router, ldg, mail, db, cfg, log)
	return a, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}

// NewRouter wires the text strategy and the configured vision backend.
func NewRouter(ctx context.Context, cfg config.Config, log zerolog.Logger) (*extract.Router, error) {
	// The text strategy always talks to the chat-completions endpoint.
	if err := cfg.Require("OPENAI_API_KEY", cfg.LLMAPIKey); err != nil {
		return nil, err
	}
	client := llm.NewClient(cfg, log)
	text := extract.NewTextStrategy(client, cfg, log)

	var vision extract.Strategy
	switch strings.ToLower(strings.TrimSpace(cfg.VisionProvider)) {
	case "", "openai":
		vision = extract.NewVisionStrategy(client, cfg, log)
	case "gemini":
		g, err := extract.NewGeminiVision(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("gemini vision: %w", err)
		}
		vision = g
	case "none":
	default:
		return nil, fmt.Errorf("unsupported vision provider: %s", cfg.VisionProvider)
	}

	return extract.NewRouter(text, vision, pipeline.NewNormalizer(), log), nil
}

func NewMailbox(ctx context.Context, cfg config.Config, log zerolog.Logger) (connectors.Mailbox, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.MailProvider)) {
	case "", "imap":
		return imapconnector.NewConnector(cfg, log)
	case "gmail":
		return gmailconnector.NewConnector(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported mail provider: %s", cfg.MailProvider)
	}
}
