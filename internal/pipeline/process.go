package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"receiptbook/internal"
	"receiptbook/internal/config"
	"receiptbook/internal/connectors"
	"receiptbook/internal/ledger"
	"receiptbook/internal/logger"
	"receiptbook/internal/storage"
)

var (
	ErrExtractionFailed = errors.New("no strategy produced a record")
	ErrNoMailbox        = errors.New("mail provider is not configured")
)

const (
	StatusCommitted     = "committed"
	StatusDuplicate     = "duplicate"
	StatusSkipped       = "skipped"
	StatusNoDocuments   = "no_documents"
	StatusFetchFailed   = "fetch_failed"
	StatusExtractFailed = "extract_failed"
	StatusAppendFailed  = "append_failed"
)

type Extractor interface {
	Extract(ctx context.Context, doc internal.Document) (*internal.Record, internal.Strategy)
}

// MailSource is the fail-soft view of a mailbox, see connectors.Lookup.
type MailSource interface {
	Provider() string
	ListUnread(ctx context.Context) []internal.MailMessage
	MarkRead(ctx context.Context, id string) bool
	FetchDocuments(ctx context.Context, id string) *connectors.MailContent
}

// ProcessingService ties extraction, the ledger and the mailbox together.
// mail and db are optional.
type ProcessingService struct {
	extractor       Extractor
	ledger          *ledger.Ledger
	mail            MailSource
	db              *storage.DB
	normalizer      *Normalizer
	defaultCategory internal.Category
	log             zerolog.Logger
}

func NewProcessingService(extractor Extractor, ldg *ledger.Ledger, mail MailSource, db *storage.DB, cfg config.Config, log zerolog.Logger) *ProcessingService {
	category, ok := ParseCategory(cfg.MailListenerDefaultCategory)
	if !ok {
		category = internal.CategoryOther
	}
	return &ProcessingService{
		extractor:       extractor,
		ledger:          ldg,
		mail:            mail,
		db:              db,
		normalizer:      NewNormalizer(),
		defaultCategory: category,
		log:             log.With().Str("component", "processing").Logger(),
	}
}

func (s *ProcessingService) Ledger() *ledger.Ledger { return s.ledger }

// Snapshot returns the ledger rows, header first.
func (s *ProcessingService) Snapshot(ctx context.Context) ([][]string, error) {
	return s.ledger.Snapshot(ctx)
}

// Extract turns one document into a canonical record.
func (s *ProcessingService) Extract(ctx context.Context, doc internal.Document) (*internal.Record, error) {
	rec, _, err := s.extract(ctx, doc, uuid.NewString(), "")
	return rec, err
}

func (s *ProcessingService) extract(ctx context.Context, doc internal.Document, traceID, messageID string) (*internal.Record, internal.Strategy, error) {
	start := time.Now()
	rec, strategy := s.extractor.Extract(ctx, doc)

	run := internal.RunRow{
		TraceID:    traceID,
		SourceName: doc.Name,
		Strategy:   string(strategy),
		Outcome:    "extracted",
		MessageID:  messageID,
	}
	if rec == nil {
		run.Outcome = "extract_failed"
	} else {
		run.ReceiptNumber = rec.ReceiptNumber
	}
	s.journalRun(run, map[string]float64{"extractMs": float64(time.Since(start).Milliseconds())})

	if rec == nil {
		return nil, strategy, ErrExtractionFailed
	}
	return rec, strategy, nil
}

// Append writes an edited record to the ledger. The record is validated
// first; a rejected record returns an error wrapping ErrInvalidRecord and
// never reaches the ledger. When messageID is set and the append succeeded,
// the originating message is marked read.
func (s *ProcessingService) Append(ctx context.Context, rec internal.Record, messageID string) (internal.AppendResult, error) {
	clean, err := s.normalizer.Validate(rec)
	if err != nil {
		return internal.AppendResult{Status: internal.AppendError, Message: err.Error()}, err
	}
	result := s.append(ctx, clean, uuid.NewString(), messageID)
	if result.Status == internal.AppendSuccess && messageID != "" && s.mail != nil {
		s.mail.MarkRead(ctx, messageID)
	}
	return result, nil
}

func (s *ProcessingService) append(ctx context.Context, rec internal.Record, traceID, messageID string) internal.AppendResult {
	start := time.Now()
	if rec.Category == "" {
		rec.Category = s.defaultCategory
	}
	result := s.ledger.Append(ctx, rec)
	s.journalRun(internal.RunRow{
		TraceID:       traceID,
		Strategy:      "append",
		Outcome:       string(result.Status),
		ReceiptNumber: rec.ReceiptNumber,
		MessageID:     messageID,
	}, map[string]float64{"appendMs": float64(time.Since(start).Milliseconds())})
	return result
}

func (s *ProcessingService) CheckDuplicate(ctx context.Context, receiptNumber string) (bool, error) {
	return s.ledger.IsDuplicate(ctx, strings.TrimSpace(receiptNumber))
}

// MetaHeaderCheckedAt holds the RFC 3339 time of the last successful header check.
const MetaHeaderCheckedAt = "ledger.header_checked_at"

func (s *ProcessingService) EnsureHeader(ctx context.Context) error {
	if err := s.ledger.EnsureHeader(ctx); err != nil {
		return err
	}
	if s.db != nil {
		if err := s.db.SetMetadata(MetaHeaderCheckedAt, time.Now().UTC().Format(time.RFC3339)); err != nil {
			s.log.Warn().Err(err).Msg("journal.metadata.error")
		}
	}
	return nil
}

// HeaderCheckedAt reports when EnsureHeader last succeeded, if ever.
func (s *ProcessingService) HeaderCheckedAt() (*time.Time, error) {
	if s.db == nil {
		return nil, nil
	}
	value, err := s.db.GetMetadata(MetaHeaderCheckedAt)
	if err != nil || value == nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, *value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *ProcessingService) ListUnread(ctx context.Context) ([]internal.MailMessage, error) {
	if s.mail == nil {
		return nil, ErrNoMailbox
	}
	return s.mail.ListUnread(ctx), nil
}

func (s *ProcessingService) MarkRead(ctx context.Context, id string) (bool, error) {
	if s.mail == nil {
		return false, ErrNoMailbox
	}
	return s.mail.MarkRead(ctx, id), nil
}

type MessageOutcome struct {
	MessageID string                  `json:"message_id"`
	Subject   string                  `json:"subject"`
	Status    string                  `json:"status"`
	Results   []internal.AppendResult `json:"results,omitempty"`
}

type MailSummary struct {
	Listed    int              `json:"listed"`
	Committed int              `json:"committed"`
	Skipped   int              `json:"skipped"`
	Failed    int              `json:"failed"`
	Messages  []MessageOutcome `json:"messages"`
}

// ProcessMail walks the unread inbox once. Messages stay unread unless at
// least one of their documents was appended.
func (s *ProcessingService) ProcessMail(ctx context.Context) (MailSummary, error) {
	if s.mail == nil {
		return MailSummary{}, ErrNoMailbox
	}

	unread := s.mail.ListUnread(ctx)
	summary := MailSummary{Listed: len(unread), Messages: make([]MessageOutcome, 0, len(unread))}
	for _, msg := range unread {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		outcome := s.processMessage(ctx, msg)
		switch outcome.Status {
		case StatusCommitted:
			summary.Committed++
		case StatusSkipped, StatusDuplicate, StatusNoDocuments:
			summary.Skipped++
		default:
			summary.Failed++
		}
		summary.Messages = append(summary.Messages, outcome)
	}

	s.log.Info().
		Int("listed", summary.Listed).
		Int("committed", summary.Committed).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("mail.process.done")
	return summary, nil
}

func (s *ProcessingService) processMessage(ctx context.Context, msg internal.MailMessage) MessageOutcome {
	traceID := uuid.NewString()
	log := logger.FromContext(ctx, s.log).With().Str("trace_id", traceID).Str("message_id", msg.ID).Logger()
	outcome := MessageOutcome{MessageID: msg.ID, Subject: msg.Subject}

	finish := func(status string) MessageOutcome {
		outcome.Status = status
		s.journalMessage(msg, status)
		log.Info().Str("status", status).Msg("mail.message.done")
		return outcome
	}

	content := s.mail.FetchDocuments(ctx, msg.ID)
	if content == nil {
		return finish(StatusFetchFailed)
	}

	detect := DetectReceipt(msg.Subject, content.Text, content.AttachmentNames)
	log.Debug().Float64("score", detect.Score).Str("reason", detect.Reason).Msg("mail.message.detect")
	if !detect.IsReceipt {
		return finish(StatusSkipped)
	}
	if len(content.Documents) == 0 {
		return finish(StatusNoDocuments)
	}

	sender := msg.Sender()
	if sender.Email == "" {
		sender = content.Message.Sender()
	}

	committed, duplicates, extractFailures := 0, 0, 0
	for _, doc := range content.Documents {
		rec, _, err := s.extract(ctx, doc, traceID, msg.ID)
		if err != nil {
			extractFailures++
			continue
		}
		rec.Sender = &sender

		result := s.append(ctx, *rec, traceID, msg.ID)
		outcome.Results = append(outcome.Results, result)
		switch result.Status {
		case internal.AppendSuccess:
			committed++
		case internal.AppendDuplicate:
			duplicates++
		}
	}

	switch {
	case committed > 0:
		if !s.mail.MarkRead(ctx, msg.ID) {
			log.Warn().Msg("mail.message.mark_read_failed")
		}
		return finish(StatusCommitted)
	case duplicates > 0:
		return finish(StatusDuplicate)
	case extractFailures == len(content.Documents):
		return finish(StatusExtractFailed)
	default:
		return finish(StatusAppendFailed)
	}
}

func (s *ProcessingService) journalRun(run internal.RunRow, timings map[string]float64) {
	if s.db == nil {
		return
	}
	if err := s.db.InsertRun(run, timings); err != nil {
		s.log.Warn().Err(err).Str("trace_id", run.TraceID).Msg("journal.run.error")
	}
}

func (s *ProcessingService) journalMessage(msg internal.MailMessage, status string) {
	if s.db == nil {
		return
	}
	provider := s.mail.Provider()
	if _, err := s.db.UpsertMessage(provider, msg.ID, msg.Subject, msg.From, status); err != nil {
		s.log.Warn().Err(err).Str("message_id", msg.ID).Msg("journal.message.error")
	}
}
