package smtp

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"
)

// Notifier mails a run-failure summary. It is deliberately thin: the run
// treats notification as best effort, so there is no retry here.
type Notifier struct {
	addr string // host:port
	from string
	pass string
	to   []string
}

func NewNotifier(addr, from, pass, to string) *Notifier {
	var rcpts []string
	for _, r := range strings.Split(to, ",") {
		if r = strings.TrimSpace(r); r != "" {
			rcpts = append(rcpts, r)
		}
	}
	return &Notifier{addr: addr, from: from, pass: pass, to: rcpts}
}

// Configured reports whether the notifier has enough settings to send.
func (n *Notifier) Configured() bool {
	return n.addr != "" && n.from != "" && n.pass != "" && len(n.to) > 0
}

func (n *Notifier) Notify(ctx context.Context, subject, body string) error {
	if !n.Configured() {
		return fmt.Errorf("smtp notifier not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	host, _, err := net.SplitHostPort(n.addr)
	if err != nil {
		return fmt.Errorf("smtp addr %q: %w", n.addr, err)
	}

	msg := strings.Join([]string{
		"From: " + n.from,
		"To: " + strings.Join(n.to, ", "),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="UTF-8"`,
		"",
		body,
	}, "\r\n")

	auth := smtp.PlainAuth("", n.from, n.pass, host)
	return smtp.SendMail(n.addr, auth, n.from, n.to, []byte(msg))
}

// LogNotifier is the fallback when SMTP is unconfigured: the summary still
// lands somewhere visible.
type LogNotifier struct{ Log zerolog.Logger }

func (l LogNotifier) Notify(_ context.Context, subject, body string) error {
	l.Log.Warn().Str("subject", subject).Str("body", body).Msg("run failure (smtp unconfigured)")
	return nil
}
