// Package mailbox parses RFC 5322 messages, stores their attachments and
// reads a local directory of messages as a mail source.
package mailbox

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"golang.org/x/net/html"
)

// Attachment is one attached file
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a parsed email
type Message struct {
	MessageID   string
	Sender      string
	Subject     string
	Date        time.Time
	Body        string
	Attachments []Attachment
}

// ParseMessage reads a message, preferring text/plain parts for the body and
// falling back to the text of text/html parts
func ParseMessage(r io.Reader) (*Message, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}
	defer mr.Close()

	msg := &Message{}
	h := mr.Header
	msg.MessageID, _ = h.MessageID()
	if msg.Subject, err = h.Subject(); err != nil {
		msg.Subject = h.Get("Subject")
	}
	msg.Sender = senderOf(&h)
	if date, err := h.Date(); err == nil {
		msg.Date = date
	}

	var plain, rich bytes.Buffer
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			// keep what was read before a malformed part
			if plain.Len() > 0 || rich.Len() > 0 {
				break
			}
			return nil, fmt.Errorf("failed to read message part: %w", err)
		}
		if p == nil {
			continue
		}

		switch ph := p.Header.(type) {
		case *mail.InlineHeader:
			ct, _, _ := ph.ContentType()
			data, err := io.ReadAll(p.Body)
			if err != nil {
				continue
			}
			switch ct {
			case "text/plain", "":
				plain.Write(data)
				plain.WriteString("\n")
			case "text/html":
				rich.Write(data)
				rich.WriteString("\n")
			}
		case *mail.AttachmentHeader:
			name, _ := ph.Filename()
			ct, _, _ := ph.ContentType()
			data, err := io.ReadAll(p.Body)
			if err != nil {
				continue
			}
			msg.Attachments = append(msg.Attachments, Attachment{Filename: name, ContentType: ct, Data: data})
		}
	}

	switch {
	case plain.Len() > 0:
		msg.Body = strings.TrimSpace(plain.String())
	case rich.Len() > 0:
		msg.Body = HTMLToText(rich.String())
	}
	return msg, nil
}

func senderOf(h *mail.Header) string {
	addrs, err := h.AddressList("From")
	if err != nil || len(addrs) == 0 {
		return strings.TrimSpace(h.Get("From"))
	}
	a := addrs[0]
	if a.Name == "" {
		return a.Address
	}
	return fmt.Sprintf("%s <%s>", a.Name, a.Address)
}

// HTMLToText returns the visible text of an HTML document
func HTMLToText(doc string) string {
	z := html.NewTokenizer(strings.NewReader(doc))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style", "head":
				skip++
			case "br", "p", "div", "tr", "li":
				b.WriteString(" ")
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style", "head":
				if skip > 0 {
					skip--
				}
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
				b.WriteString(" ")
			}
		}
	}
}
