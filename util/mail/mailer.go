// util/mail/mailer.go
package mail

import (
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// Sender delivers notification mail. Delivery is best-effort everywhere it is
// used: a failed send never rolls back the write that triggered it.
type Sender interface {
	Send(to, subject, body string) error
}

type smtpSender struct {
	addr string // host:port
	from string
}

func NewSMTP(addr, from string) Sender { return &smtpSender{addr: addr, from: from} }

func (s *smtpSender) Send(to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + s.from,
		"To: " + to,
		"Subject: " + subject,
		"",
		body,
	}, "\r\n")
	if err := smtp.SendMail(s.addr, nil, s.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

type logSender struct{ log *slog.Logger }

// NewLog returns a sender that only logs, for local runs without SMTP.
func NewLog(log *slog.Logger) Sender { return &logSender{log: log} }

func (s *logSender) Send(to, subject, _ string) error {
	s.log.Info("mail (not sent)", "to", to, "subject", subject)
	return nil
}
