package notify

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/example/stay-scheduler/internal/domain/account"
	"github.com/example/stay-scheduler/internal/domain/notification"
)

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// Mailer is satisfied by *gomail.Dialer.
type Mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailSink mails the notification text to the recipient's address.
type EmailSink struct {
	mailer   Mailer
	from     string
	accounts account.Directory
}

func NewEmailSink(cfg SMTPConfig, accounts account.Directory) *EmailSink {
	return &EmailSink{
		mailer:   gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:     cfg.From,
		accounts: accounts,
	}
}

func newEmailSinkWith(m Mailer, from string, accounts account.Directory) *EmailSink {
	return &EmailSink{mailer: m, from: from, accounts: accounts}
}

func (s *EmailSink) Deliver(ctx context.Context, n notification.Notification) error {
	a, err := s.accounts.Get(ctx, n.RecipientID)
	if err != nil {
		return fmt.Errorf("resolve recipient: %w", err)
	}
	if a.Email == "" {
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", a.Email)
	m.SetHeader("Subject", subject(n.Kind))
	m.SetBody("text/plain", n.Text)

	if err := s.mailer.DialAndSend(m); err != nil {
		return fmt.Errorf("send mail to %s: %w", a.Email, err)
	}
	return nil
}

func subject(k notification.Kind) string {
	switch k {
	case notification.KindRequestCreated:
		return "New reservation request"
	case notification.KindRequestResponse:
		return "Your reservation request was answered"
	case notification.KindCancellation:
		return "Reservation cancelled"
	}
	return "Reservation update"
}
