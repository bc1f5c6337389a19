// Package notify delivers confirmation codes to customers. Delivery is
// best-effort: a committed payment session stands even when the send fails.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
)

// Mailer sends plain-text mail over SMTP.
type Mailer struct {
	host string
	port int
	from string
}

// NewMailer creates an SMTP notifier.
func NewMailer(host string, port int, from string) *Mailer {
	return &Mailer{host: host, port: port, from: from}
}

// Send delivers one message. It dials per call; confirmation-code volume
// does not warrant a pooled connection.
func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	addr := net.JoinHostPort(m.host, strconv.Itoa(m.port))

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, nil, m.from, []string{to}, []byte(msg.String()))
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send mail to %s: %w", to, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogNotifier writes notifications to the log instead of sending mail.
// Used when mail is disabled in config, and in development.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Send records the notification. The body carries the confirmation code,
// so it is logged at debug level only.
func (n *LogNotifier) Send(ctx context.Context, to, subject, body string) error {
	n.log.Info("notification", "to", to, "subject", subject)
	n.log.Debug("notification body", "to", to, "body", body)
	return nil
}
