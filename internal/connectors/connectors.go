package connectors

import (
	"context"

	"receiptbook/internal"
)

// Mailbox is a mail provider session factory. Every call opens and tears
// down its own connection.
type Mailbox interface {
	Provider() string
	// ListUnread returns unread messages without changing their read state.
	ListUnread(ctx context.Context) ([]internal.MailMessage, error)
	MarkRead(ctx context.Context, id string) error
	// FetchDocuments downloads one message without marking it read.
	FetchDocuments(ctx context.Context, id string) (MailContent, error)
}

// MailContent is a downloaded message reduced to what extraction needs.
type MailContent struct {
	Message         internal.MailMessage
	Documents       []internal.Document
	AttachmentNames []string
	Text            string
}
