package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"
	"github.com/rs/zerolog"

	"receiptbook/internal"
	"receiptbook/internal/config"
	"receiptbook/internal/connectors"
)

type Connector struct {
	host     string
	port     int
	secure   bool
	user     string
	password string
	mailbox  string
	max      int
	timeout  time.Duration
	log      zerolog.Logger
}

func NewConnector(cfg config.Config, log zerolog.Logger) (*Connector, error) {
	if err := cfg.Require("IMAP_HOST", cfg.IMAPHost); err != nil {
		return nil, err
	}
	if err := cfg.Require("EMAIL_ADDRESS", cfg.EmailAddress); err != nil {
		return nil, err
	}
	if err := cfg.Require("EMAIL_PASSWORD", cfg.EmailPassword); err != nil {
		return nil, err
	}

	mailbox := cfg.IMAPMailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	return &Connector{
		host:     cfg.IMAPHost,
		port:     cfg.IMAPPort,
		secure:   cfg.IMAPSecure,
		user:     cfg.EmailAddress,
		password: cfg.EmailPassword,
		mailbox:  mailbox,
		max:      cfg.MailFetchMax,
		timeout:  time.Duration(cfg.MailTimeoutMs) * time.Millisecond,
		log:      log.With().Str("component", "imap").Logger(),
	}, nil
}

func (c *Connector) Provider() string { return "imap" }

// headerSection fetches only the header block without setting \Seen.
var headerSection = &imap.BodySectionName{
	BodyPartName: imap.BodyPartName{Specifier: imap.HeaderSpecifier},
	Peek:         true,
}

var fullSection = &imap.BodySectionName{Peek: true}

func (c *Connector) ListUnread(ctx context.Context) ([]internal.MailMessage, error) {
	client, done, err := c.open(ctx, true)
	if err != nil {
		return nil, err
	}
	defer done()

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := client.UidSearch(criteria)
	if err != nil {
		return nil, err
	}
	if len(uids) == 0 {
		return []internal.MailMessage{}, nil
	}
	if c.max > 0 && len(uids) > c.max {
		uids = uids[len(uids)-c.max:]
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	headers := &headerCollector{
		parse: connectors.ParseHeader,
		log:   c.log,
		out:   make([]internal.MailMessage, 0, len(uids)),
	}
	if err := fetch(client, seqset, headerSection, headers.add); err != nil {
		return nil, err
	}
	return headers.out, nil
}

// headerCollector gathers unread headers. A message whose header cannot be
// parsed is logged and left out of the listing.
type headerCollector struct {
	parse func(id string, raw []byte) (internal.MailMessage, error)
	log   zerolog.Logger
	out   []internal.MailMessage
}

func (h *headerCollector) add(uid uint32, raw []byte) error {
	id := strconv.FormatUint(uint64(uid), 10)
	msg, err := h.parse(id, raw)
	if err != nil {
		h.log.Warn().Err(err).Str("message_id", id).Msg("mail.imap.header_skipped")
		return nil
	}
	h.out = append(h.out, msg)
	return nil
}

func (c *Connector) MarkRead(ctx context.Context, id string) error {
	uid, err := parseUID(id)
	if err != nil {
		return err
	}
	client, done, err := c.open(ctx, false)
	if err != nil {
		return err
	}
	defer done()

	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.SeenFlag}
	return client.UidStore(seqset, item, flags, nil)
}

func (c *Connector) FetchDocuments(ctx context.Context, id string) (connectors.MailContent, error) {
	uid, err := parseUID(id)
	if err != nil {
		return connectors.MailContent{}, err
	}
	client, done, err := c.open(ctx, true)
	if err != nil {
		return connectors.MailContent{}, err
	}
	defer done()

	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)

	var raw []byte
	err = fetch(client, seqset, fullSection, func(_ uint32, body []byte) error {
		raw = body
		return nil
	})
	if err != nil {
		return connectors.MailContent{}, err
	}
	if raw == nil {
		return connectors.MailContent{}, fmt.Errorf("message %s not found", id)
	}
	return connectors.ParseMessage(id, raw)
}

// open dials, logs in and selects the mailbox. The returned func logs out and
// must always be called.
func (c *Connector) open(ctx context.Context, readOnly bool) (*imapclient.Client, func(), error) {
	addr := fmt.Sprintf("%s:%d", c.host, c.port)
	dialer := &net.Dialer{Timeout: c.timeout}

	var client *imapclient.Client
	var err error
	if c.secure {
		client, err = imapclient.DialWithDialerTLS(dialer, addr, &tls.Config{ServerName: c.host})
	} else {
		client, err = imapclient.DialWithDialer(dialer, addr)
	}
	if err != nil {
		return nil, nil, err
	}
	client.Timeout = c.timeout

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = client.Terminate()
		case <-stop:
		}
	}()
	done := func() {
		close(stop)
		_ = client.Logout()
	}

	if err := client.Login(c.user, c.password); err != nil {
		done()
		return nil, nil, err
	}
	if _, err := client.Select(c.mailbox, readOnly); err != nil {
		done()
		return nil, nil, err
	}
	return client, done, nil
}

func fetch(client *imapclient.Client, seqset *imap.SeqSet, section *imap.BodySectionName, fn func(uid uint32, raw []byte) error) error {
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}
	messages := make(chan *imap.Message, 16)
	fetchDone := make(chan error, 1)
	go func() { fetchDone <- client.UidFetch(seqset, items, messages) }()

	var firstErr error
	for msg := range messages {
		if msg == nil || firstErr != nil {
			continue
		}
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		raw, err := io.ReadAll(body)
		if err != nil {
			firstErr = err
			continue
		}
		if err := fn(msg.Uid, raw); err != nil {
			firstErr = err
		}
	}

	if err := <-fetchDone; err != nil {
		return err
	}
	return firstErr
}

func parseUID(id string) (uint32, error) {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil || uid == 0 {
		return 0, fmt.Errorf("invalid imap uid %q", id)
	}
	return uint32(uid), nil
}
