package mailparse

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/jaytaylor/html2text"
	"github.com/jhillyerd/enmime"
	"github.com/pkg/errors"

	"github.com/parceltrace/parceltrace/internal/models"
	"github.com/parceltrace/parceltrace/internal/utils"
)

// ParsedMessage is the analyzer-facing view of an email: headers plus one
// plain-text body.
type ParsedMessage struct {
	MessageID string
	Subject   string
	Sender    string // raw From header, display name included
	Body      string
	Date      *time.Time
}

// Parse reads a raw RFC 822 message. The text/plain part wins; HTML-only
// messages are converted with html2text.
func Parse(raw []byte) (*ParsedMessage, error) {
	envelope, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse message")
	}

	parsed := &ParsedMessage{
		MessageID: utils.NormalizeMessageID(envelope.GetHeader("Message-ID")),
		Subject:   utils.NormalizeEmailSubject(envelope.GetHeader("Subject")),
		Sender:    strings.TrimSpace(envelope.GetHeader("From")),
	}

	if date, err := envelope.Date(); err == nil {
		parsed.Date = &date
	}

	body := strings.TrimSpace(envelope.Text)
	if body == "" && envelope.HTML != "" {
		if text, err := html2text.FromString(envelope.HTML, html2text.Options{TextOnly: true}); err == nil {
			body = strings.TrimSpace(text)
		}
	}
	parsed.Body = body

	return parsed, nil
}

// FallbackMessageID builds a deterministic id for messages without a
// Message-ID header, stable across reconnects of the same mailbox state.
func FallbackMessageID(mailboxLabel, folder string, uidValidity *uint32, uid uint32) string {
	folderHash := sha256.Sum256([]byte(folder))
	validity := "no-uidvalidity"
	if uidValidity != nil {
		validity = fmt.Sprintf("%d", *uidValidity)
	}
	return fmt.Sprintf("fallback:%s:%s:%s:%d",
		mailboxLabel, hex.EncodeToString(folderHash[:])[:16], validity, uid)
}

// ToRawData shapes a parsed message into the queue item payload:
// subject, sender, body, message_id, email_uid and email_date.
func ToRawData(parsed *ParsedMessage, uid uint32) models.JSONMap {
	raw := models.JSONMap{
		"message_id": parsed.MessageID,
		"subject":    parsed.Subject,
		"sender":     parsed.Sender,
		"body":       parsed.Body,
		"email_uid":  float64(uid),
	}
	if parsed.Date != nil {
		raw["email_date"] = parsed.Date.UTC().Format(time.RFC3339)
	}
	return raw
}
