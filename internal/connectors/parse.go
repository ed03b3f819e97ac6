package connectors

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jhillyerd/enmime"

	"receiptbook/internal"
	"receiptbook/internal/document"
)

// ParseHeader decodes the Subject and From headers of a raw message or header block.
func ParseHeader(id string, raw []byte) (internal.MailMessage, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return internal.MailMessage{}, fmt.Errorf("parse message %s: %w", id, err)
	}
	return messageFromEnvelope(id, env), nil
}

func messageFromEnvelope(id string, env *enmime.Envelope) internal.MailMessage {
	msg := internal.MailMessage{
		ID:      id,
		Subject: env.GetHeader("Subject"),
		Date:    env.GetHeader("Date"),
	}
	if addrs, err := env.AddressList("From"); err == nil && len(addrs) > 0 {
		msg.Name = addrs[0].Name
		msg.Email = addrs[0].Address
	} else {
		msg.Email = strings.Trim(strings.TrimSpace(env.GetHeader("From")), "<>")
	}
	msg.From = fmt.Sprintf("%s <%s>", msg.Name, msg.Email)
	return msg
}

// ParseMessage pulls receipt-like attachments out of a full message. When
// there are none, an HTML body is returned as the single document.
func ParseMessage(id string, raw []byte) (MailContent, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return MailContent{}, fmt.Errorf("parse message %s: %w", id, err)
	}

	content := MailContent{Message: messageFromEnvelope(id, env), Text: env.Text}

	for _, part := range env.Attachments {
		content.addPart(part, document.KindPDF, document.KindImage)
	}
	// Inline images are usually logos; only inline PDFs count.
	for _, part := range env.Inlines {
		content.addPart(part, document.KindPDF)
	}

	if len(content.Documents) == 0 && strings.TrimSpace(env.HTML) != "" {
		content.Documents = append(content.Documents, internal.Document{
			Name:        "message.html",
			Ext:         "html",
			ContentType: "text/html",
			Content:     []byte(env.HTML),
		})
	}
	return content, nil
}

func (c *MailContent) addPart(part *enmime.Part, accept ...document.Kind) {
	name := strings.TrimSpace(part.FileName)
	if name == "" {
		name = "attachment"
	}
	c.AttachmentNames = append(c.AttachmentNames, name)

	ext := extOf(name)
	kind := document.KindOf(ext, part.ContentType, part.Content)
	for _, k := range accept {
		if kind == k {
			c.Documents = append(c.Documents, internal.Document{
				Name:        name,
				Ext:         ext,
				ContentType: part.ContentType,
				Content:     part.Content,
			})
			return
		}
	}
}

func extOf(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx == -1 {
		return ""
	}
	return document.NormalizeExt(name[idx+1:])
}
