package gmail

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
)

// ComposeOptions holds everything needed to build an outgoing message.
type ComposeOptions struct {
	// From is optional; Gmail fills in the authenticated sender.
	From    string
	To      []string
	Subject string
	Body    string

	// AttachmentPath, if set, is read from disk and attached.
	AttachmentPath string
}

// officeTypes covers extensions the platform MIME table often lacks.
var officeTypes = map[string]string{
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".ppt":  "application/vnd.ms-powerpoint",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".pdf":  "application/pdf",
}

// ContentType guesses an attachment's type from its extension.
func ContentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := officeTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

// ComposeMessage builds an RFC 5322 message with a text/plain body and an
// optional attachment.
func ComposeMessage(opts ComposeOptions) ([]byte, error) {
	var h mail.Header
	h.SetDate(time.Now())
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generate message-id: %w", err)
	}
	h.SetSubject(opts.Subject)

	if opts.From != "" {
		from, err := mail.ParseAddress(opts.From)
		if err != nil {
			return nil, fmt.Errorf("parse from address %q: %w", opts.From, err)
		}
		h.SetAddressList("From", []*mail.Address{from})
	}

	if len(opts.To) == 0 {
		return nil, fmt.Errorf("no recipients")
	}
	to := make([]*mail.Address, 0, len(opts.To))
	for _, a := range opts.To {
		parsed, err := mail.ParseAddress(strings.TrimSpace(a))
		if err != nil {
			return nil, fmt.Errorf("parse address %q: %w", a, err)
		}
		to = append(to, parsed)
	}
	h.SetAddressList("To", to)

	var attachment []byte
	if opts.AttachmentPath != "" {
		data, err := os.ReadFile(opts.AttachmentPath)
		if err != nil {
			return nil, fmt.Errorf("read attachment: %w", err)
		}
		attachment = data
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create mail writer: %w", err)
	}

	var th mail.InlineHeader
	th.Set("Content-Type", "text/plain; charset=utf-8")
	tw, err := mw.CreateSingleInline(th)
	if err != nil {
		return nil, fmt.Errorf("create body part: %w", err)
	}
	if _, err := io.WriteString(tw, opts.Body); err != nil {
		return nil, fmt.Errorf("write body: %w", err)
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("close body part: %w", err)
	}

	if attachment != nil {
		var ah mail.AttachmentHeader
		ah.Set("Content-Type", ContentType(opts.AttachmentPath))
		ah.SetFilename(filepath.Base(opts.AttachmentPath))
		aw, err := mw.CreateAttachment(ah)
		if err != nil {
			return nil, fmt.Errorf("create attachment part: %w", err)
		}
		if _, err := aw.Write(attachment); err != nil {
			return nil, fmt.Errorf("write attachment: %w", err)
		}
		if err := aw.Close(); err != nil {
			return nil, fmt.Errorf("close attachment part: %w", err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close mail writer: %w", err)
	}
	return buf.Bytes(), nil
}
