/*
mail.go - SMTP mailer

PURPOSE:
  Implements notify.Mailer over SMTP via gomail. SendBatch builds one
  message per recipient and delivers them on a single SMTP connection, so
  a twenty-recipient reminder costs one dial, not twenty.
*/
package clients

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/warp/compliance-engine/notify"
)

// SMTPMailer sends plain-text notification mail. Implements notify.Mailer.
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

var _ notify.Mailer = (*SMTPMailer)(nil)

// SendBatch sends the same subject/body to every recipient over one
// connection. The context is honored between message builds; gomail itself
// has no context hook, so an in-flight SMTP exchange runs to completion.
func (m *SMTPMailer) SendBatch(ctx context.Context, subject, body string, recipients []string) error {
	if len(recipients) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	from := m.From
	if m.FromName != "" {
		from = fmt.Sprintf("%s <%s>", m.FromName, m.From)
	}

	messages := make([]*gomail.Message, 0, len(recipients))
	for _, recipient := range recipients {
		msg := gomail.NewMessage()
		msg.SetHeader("From", from)
		msg.SetHeader("To", recipient)
		msg.SetHeader("Subject", subject)
		msg.SetBody("text/plain", body)
		messages = append(messages, msg)
	}

	dialer := gomail.NewDialer(m.Host, m.Port, m.Username, m.Password)
	if err := dialer.DialAndSend(messages...); err != nil {
		return fmt.Errorf("smtp send to %d recipients: %w", len(recipients), err)
	}
	return nil
}
