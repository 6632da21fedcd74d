// Package mail delivers the out-of-band messages of the account flows:
// password reset links and email verification links.
package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Message is a plain text email
type Message struct {
	To      string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

var (
	_ Mailer = (*LogMailer)(nil)
	_ Mailer = (*SMTPMailer)(nil)
	_ Mailer = (*Outbox)(nil)
)

// LogMailer writes messages to the log instead of delivering them. Used in development.
type LogMailer struct {
	logger zerolog.Logger
}

func NewLogMailer(logger zerolog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Str("body", msg.Body).
		Msg("email")
	return nil
}

// SMTPMailer delivers messages through an SMTP relay with PLAIN auth
type SMTPMailer struct {
	addr string
	from string
	auth smtp.Auth
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

type SMTPOption func(*SMTPMailer)

// WithFrom sets the sender address. Without it the SMTP account is the sender.
func WithFrom(from string) SMTPOption {
	return func(m *SMTPMailer) {
		if from != "" {
			m.from = from
		}
	}
}

func NewSMTPMailer(host, port, account, password string, options ...SMTPOption) *SMTPMailer {
	var auth smtp.Auth
	if account != "" {
		auth = smtp.PlainAuth("", account, password, host)
	}
	m := &SMTPMailer{
		addr: host + ":" + port,
		from: account,
		auth: auth,
		send: smtp.SendMail,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "[SMTPMailer.Send]")
	}
	if m.from == "" {
		return errors.New("[SMTPMailer.Send] no sender address configured")
	}
	if strings.ContainsAny(msg.To, "\r\n") || strings.ContainsAny(msg.Subject, "\r\n") {
		return errors.New("[SMTPMailer.Send] header values must not contain line breaks")
	}
	if err := m.send(m.addr, m.auth, m.from, []string{msg.To}, m.format(msg)); err != nil {
		return errors.Wrapf(err, "[SMTPMailer.Send] deliver to %s", msg.To)
	}
	return nil
}

func (m *SMTPMailer) format(msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return []byte(b.String())
}

// Outbox collects messages in memory
type Outbox struct {
	mu       sync.Mutex
	messages []Message
	err      error
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

// FailWith makes every subsequent Send return err. A nil err restores delivery.
func (o *Outbox) FailWith(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

func (o *Outbox) Send(_ context.Context, msg Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.messages = append(o.messages, msg)
	return nil
}

// Messages returns a copy of everything sent so far
func (o *Outbox) Messages() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Message(nil), o.messages...)
}

// Last returns the most recent message, if any
func (o *Outbox) Last() (Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.messages) == 0 {
		return Message{}, false
	}
	return o.messages[len(o.messages)-1], true
}
