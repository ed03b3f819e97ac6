package connectors

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"receiptbook/internal"
)

// Lookup wraps a Mailbox so that failures are logged instead of returned.
type Lookup struct {
	mailbox Mailbox
	timeout time.Duration
	log     zerolog.Logger
}

func NewLookup(mailbox Mailbox, timeout time.Duration, log zerolog.Logger) *Lookup {
	return &Lookup{
		mailbox: mailbox,
		timeout: timeout,
		log:     log.With().Str("component", "mail").Str("provider", mailbox.Provider()).Logger(),
	}
}

func (l *Lookup) Provider() string { return l.mailbox.Provider() }

// ListUnread returns an empty list on any connection, auth or protocol error.
func (l *Lookup) ListUnread(ctx context.Context) []internal.MailMessage {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	msgs, err := l.mailbox.ListUnread(ctx)
	if err != nil {
		l.log.Error().Err(err).Msg("mail.list_unread.error")
		return []internal.MailMessage{}
	}
	if msgs == nil {
		msgs = []internal.MailMessage{}
	}
	l.log.Info().Int("count", len(msgs)).Msg("mail.list_unread.ok")
	return msgs
}

// MarkRead flags one message seen and reports whether it worked.
func (l *Lookup) MarkRead(ctx context.Context, id string) bool {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	if err := l.mailbox.MarkRead(ctx, id); err != nil {
		l.log.Error().Err(err).Str("message_id", id).Msg("mail.mark_read.error")
		return false
	}
	l.log.Info().Str("message_id", id).Msg("mail.mark_read.ok")
	return true
}

// FetchDocuments returns nil when the message cannot be downloaded or parsed.
func (l *Lookup) FetchDocuments(ctx context.Context, id string) *MailContent {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	content, err := l.mailbox.FetchDocuments(ctx, id)
	if err != nil {
		l.log.Error().Err(err).Str("message_id", id).Msg("mail.fetch.error")
		return nil
	}
	return &content
}

func (l *Lookup) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, l.timeout)
}
