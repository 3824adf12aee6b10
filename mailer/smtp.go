package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/phonebook"
	"github.com/wneessen/go-mail"
)

// SMTPConfig describes the relay. Port 465 implies implicit TLS; other ports
// require STARTTLS unless InsecureSkipTLS is set for local relays.
type SMTPConfig struct {
	Host            string
	Port            int
	Username        string
	Password        string
	From            string
	InsecureSkipTLS bool
}

// SMTP sends each message over a fresh connection.
type SMTP struct {
	from   string
	client *mail.Client
}

var _ phonebook.Mailer = (*SMTP)(nil)

func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host required")
	}
	if cfg.From == "" {
		return nil, errors.New("smtp from address required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}

	opts := []mail.Option{mail.WithPort(cfg.Port)}
	switch {
	case cfg.InsecureSkipTLS:
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	case cfg.Port == 465:
		opts = append(opts, mail.WithSSL())
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTP{from: cfg.From, client: client}, nil
}

func (s *SMTP) Send(ctx context.Context, msg phonebook.Message) error {
	m := mail.NewMsg()
	if err := m.From(s.from); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
