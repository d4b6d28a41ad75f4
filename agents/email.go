package agents

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/barunaniket/concierge/agent"
)

// EmailName is the email agent's bus address.
const EmailName = "email"

// RemindersTopic is the topic the reminder scheduler publishes on.
const RemindersTopic = "reminders"

const defaultSubjectPrefix = "[Concierge] "

// EmailAgent sends mail through a MailBackend. It also subscribes to
// the reminders topic and mails each reminder to the configured
// notification address.
type EmailAgent struct {
	mailer        MailBackend
	subjectPrefix string
	signature     string
	notifyAddress string
}

// EmailOption configures the email agent.
type EmailOption func(*EmailAgent)

// WithSignature appends a signature block to every outgoing body.
func WithSignature(sig string) EmailOption {
	return func(a *EmailAgent) { a.signature = sig }
}

// WithSubjectPrefix overrides the subject prefix.
func WithSubjectPrefix(prefix string) EmailOption {
	return func(a *EmailAgent) { a.subjectPrefix = prefix }
}

// WithReminderNotifications subscribes the agent to the reminders
// topic and mails each reminder to addr.
func WithReminderNotifications(addr string) EmailOption {
	return func(a *EmailAgent) { a.notifyAddress = addr }
}

// NewEmailAgent creates an email agent over the given mailer.
func NewEmailAgent(mailer MailBackend, opts ...EmailOption) *EmailAgent {
	a := &EmailAgent{mailer: mailer, subjectPrefix: defaultSubjectPrefix}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *EmailAgent) Name() string { return EmailName }

func (a *EmailAgent) OnStart(_ context.Context, rt *agent.Runtime) error {
	if a.notifyAddress != "" {
		rt.Subscribe(RemindersTopic)
		rt.RegisterHandler(agent.KindReminder, a.handleReminder)
	}
	return nil
}

func (a *EmailAgent) OnStop(context.Context) error { return nil }

func (a *EmailAgent) Handle(ctx context.Context, msg *agent.Message) (*agent.Response, error) {
	req, err := agent.DecodeRequest(msg)
	if err != nil {
		return nil, err
	}
	switch req.Action {
	case "send_email":
		return a.send(ctx, req.Parameters)
	default:
		return agent.Errorf("unknown action %q", req.Action), nil
	}
}

// send delivers to one or more recipients. All recipients failing is
// an error; a partial delivery reports partial_success with the failed
// addresses listed.
func (a *EmailAgent) send(ctx context.Context, params map[string]any) (*agent.Response, error) {
	recipients := recipientList(params["to"])
	if len(recipients) == 0 {
		return agent.Errorf("send_email needs a to parameter"), nil
	}
	subject, _ := params["subject"].(string)
	body, _ := params["body"].(string)
	subject = a.subjectPrefix + subject
	if a.signature != "" {
		body = body + "\n\n" + a.signature
	}

	var failed []string
	for _, to := range recipients {
		if err := a.mailer.Send(ctx, to, subject, body); err != nil {
			log.Printf("[Agent:%s] send to %s failed: %v", EmailName, to, err)
			failed = append(failed, to)
		}
	}
	switch {
	case len(failed) == len(recipients):
		return agent.Errorf("delivery failed for all %d recipients", len(recipients)), nil
	case len(failed) > 0:
		return &agent.Response{
			Status:  agent.ResponsePartial,
			Message: fmt.Sprintf("delivery failed for %s", strings.Join(failed, ", ")),
			Data: map[string]any{
				"sent":   len(recipients) - len(failed),
				"failed": len(failed),
			},
		}, nil
	default:
		return agent.Success(map[string]any{"sent": len(recipients)}), nil
	}
}

// handleReminder mails a published reminder to the notification
// address. Reminders produce no reply.
func (a *EmailAgent) handleReminder(ctx context.Context, msg *agent.Message) (*agent.Response, error) {
	var body struct {
		Note string `json:"note"`
		Due  string `json:"due"`
	}
	if err := msg.UnmarshalPayload(&body); err != nil {
		return nil, err
	}
	subject := a.subjectPrefix + "Reminder: " + body.Note
	text := body.Note
	if body.Due != "" {
		text += "\n\nDue: " + body.Due
	}
	// A failed reminder mail is logged, not escalated: the next firing
	// retries with a fresh payload.
	if err := a.mailer.Send(ctx, a.notifyAddress, subject, text); err != nil {
		log.Printf("[Agent:%s] reminder mail failed: %v", EmailName, err)
	}
	return nil, nil
}

// recipientList accepts a single address or a list of them.
func recipientList(v any) []string {
	switch val := v.(type) {
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	case []any:
		var out []string
		for _, item := range val {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
