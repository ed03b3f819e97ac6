package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"receiptbook/internal"
	"receiptbook/internal/config"
	"receiptbook/internal/connectors"
)

const unreadQuery = "is:unread in:inbox"

type Connector struct {
	service *gmail.Service
	max     int
}

func NewConnector(ctx context.Context, cfg config.Config) (*Connector, error) {
	if err := cfg.Require("GMAIL_CLIENT_ID", cfg.GmailClientID); err != nil {
		return nil, err
	}
	if err := cfg.Require("GMAIL_CLIENT_SECRET", cfg.GmailClientSecret); err != nil {
		return nil, err
	}
	if err := cfg.Require("GMAIL_REFRESH_TOKEN", cfg.GmailRefreshToken); err != nil {
		return nil, err
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GmailClientID,
		ClientSecret: cfg.GmailClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.GmailRedirectURI,
		Scopes:       []string{gmail.GmailModifyScope},
	}

	tokenSource := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.GmailRefreshToken})
	svc, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, err
	}

	return NewWithService(svc, cfg.MailFetchMax), nil
}

func NewWithService(svc *gmail.Service, max int) *Connector {
	return &Connector{service: svc, max: max}
}

func (c *Connector) Provider() string { return "gmail" }

func (c *Connector) ListUnread(ctx context.Context) ([]internal.MailMessage, error) {
	call := c.service.Users.Messages.List("me").Q(unreadQuery)
	if c.max > 0 {
		call = call.MaxResults(int64(c.max))
	}
	listResp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	out := make([]internal.MailMessage, 0, len(listResp.Messages))
	for _, ref := range listResp.Messages {
		if ref.Id == "" {
			continue
		}
		meta, err := c.service.Users.Messages.Get("me", ref.Id).
			Format("metadata").
			MetadataHeaders("Subject", "From", "Date").
			Context(ctx).Do()
		if err != nil {
			return nil, err
		}

		msg, err := connectors.ParseHeader(ref.Id, headerBlock(meta))
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

func (c *Connector) MarkRead(ctx context.Context, id string) error {
	_, err := c.service.Users.Messages.Modify("me", id, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	return err
}

func (c *Connector) FetchDocuments(ctx context.Context, id string) (connectors.MailContent, error) {
	rawResp, err := c.service.Users.Messages.Get("me", id).Format("raw").Context(ctx).Do()
	if err != nil {
		return connectors.MailContent{}, err
	}
	if rawResp.Raw == "" {
		return connectors.MailContent{}, fmt.Errorf("message %s has no raw payload", id)
	}
	raw, err := decodeBase64URL(rawResp.Raw)
	if err != nil {
		return connectors.MailContent{}, err
	}
	return connectors.ParseMessage(id, raw)
}

// headerBlock rebuilds an RFC 5322 header block from metadata headers so the
// shared parser decodes them the same way as IMAP headers.
func headerBlock(msg *gmail.Message) []byte {
	var b strings.Builder
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			b.WriteString(h.Name)
			b.WriteString(": ")
			b.WriteString(h.Value)
			b.WriteString("\r\n")
		}
	}
	b.WriteString("\r\n")
	return []byte(b.String())
}

func decodeBase64URL(input string) ([]byte, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	decoded, err = base64.URLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	return nil, fmt.Errorf("decode gmail raw payload: %w", err)
}
