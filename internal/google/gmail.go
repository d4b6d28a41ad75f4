package google

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Gmail implements agents.MailBackend against the Gmail API, sending
// as the authenticated user.
type Gmail struct {
	svc  *gmail.Service
	from string
}

// NewGmail creates a mail backend. from is the sender address shown on
// outgoing messages.
func NewGmail(ctx context.Context, from, credentialsFile string) (*Gmail, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return &Gmail{svc: svc, from: from}, nil
}

func (g *Gmail) Send(ctx context.Context, to, subject, body string) error {
	var raw strings.Builder
	fmt.Fprintf(&raw, "From: %s\r\n", g.from)
	fmt.Fprintf(&raw, "To: %s\r\n", to)
	fmt.Fprintf(&raw, "Subject: %s\r\n", subject)
	raw.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	raw.WriteString("\r\n")
	raw.WriteString(body)

	msg := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(raw.String())),
	}
	if _, err := g.svc.Users.Messages.Send("me", msg).Context(ctx).Do(); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}
