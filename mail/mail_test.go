package mail

import (
	"bytes"
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestOutbox(t *testing.T) {
	outbox := NewOutbox()
	ctx := context.Background()

	_, ok := outbox.Last()
	require.False(t, ok)

	require.NoError(t, outbox.Send(ctx, Message{To: "a@example.com", Subject: "one"}))
	require.NoError(t, outbox.Send(ctx, Message{To: "b@example.com", Subject: "two"}))

	last, ok := outbox.Last()
	require.True(t, ok)
	require.Equal(t, "two", last.Subject)
	require.Len(t, outbox.Messages(), 2)

	outbox.FailWith(errors.New("relay down"))
	require.Error(t, outbox.Send(ctx, Message{To: "c@example.com"}))
	require.Len(t, outbox.Messages(), 2)

	outbox.FailWith(nil)
	require.NoError(t, outbox.Send(ctx, Message{To: "c@example.com"}))
	require.Len(t, outbox.Messages(), 3)
}

func TestLogMailer(t *testing.T) {
	var buf bytes.Buffer
	mailer := NewLogMailer(zerolog.New(&buf))

	require.NoError(t, mailer.Send(context.Background(), Message{To: "demo@example.com", Subject: "Reset", Body: "http://reset"}))
	require.Contains(t, buf.String(), `"to":"demo@example.com"`)
	require.Contains(t, buf.String(), `"body":"http://reset"`)
}

func TestSMTPMailer_Send(t *testing.T) {
	mailer := NewSMTPMailer("smtp.example.com", "587", "noreply@example.com", "pw")

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	mailer.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	err := mailer.Send(context.Background(), Message{To: "demo@example.com", Subject: "Verify", Body: "click me"})
	require.NoError(t, err)
	require.Equal(t, "smtp.example.com:587", gotAddr)
	require.Equal(t, "noreply@example.com", gotFrom)
	require.Equal(t, []string{"demo@example.com"}, gotTo)
	require.Contains(t, string(gotMsg), "Subject: Verify\r\n")
	require.Contains(t, string(gotMsg), "\r\n\r\nclick me")
}

func TestSMTPMailer_FromOverridesAccount(t *testing.T) {
	mailer := NewSMTPMailer("relay.internal", "25", "", "", WithFrom("noreply@example.com"))
	require.Nil(t, mailer.auth, "no account means no auth")

	var gotFrom string
	var gotMsg []byte
	mailer.send = func(_ string, _ smtp.Auth, from string, _ []string, msg []byte) error {
		gotFrom, gotMsg = from, msg
		return nil
	}

	require.NoError(t, mailer.Send(context.Background(), Message{To: "demo@example.com", Subject: "Verify"}))
	require.Equal(t, "noreply@example.com", gotFrom)
	require.Contains(t, string(gotMsg), "From: noreply@example.com\r\n")

	withAccount := NewSMTPMailer("smtp.example.com", "587", "account@example.com", "pw", WithFrom(""))
	require.Equal(t, "account@example.com", withAccount.from, "an empty From keeps the account")
}

func TestSMTPMailer_RequiresSender(t *testing.T) {
	mailer := NewSMTPMailer("relay.internal", "25", "", "")
	mailer.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send must not be called")
		return nil
	}

	err := mailer.Send(context.Background(), Message{To: "demo@example.com", Subject: "s"})
	require.ErrorContains(t, err, "no sender address")
}

func TestSMTPMailer_RejectsHeaderInjection(t *testing.T) {
	mailer := NewSMTPMailer("smtp.example.com", "587", "", "", WithFrom("noreply@example.com"))
	mailer.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send must not be called")
		return nil
	}

	err := mailer.Send(context.Background(), Message{To: "demo@example.com\r\nBcc: x@example.com", Subject: "s"})
	require.Error(t, err)
}

func TestSMTPMailer_WrapsDeliveryError(t *testing.T) {
	mailer := NewSMTPMailer("smtp.example.com", "587", "", "", WithFrom("noreply@example.com"))
	relayErr := errors.New("connection refused")
	mailer.send = func(string, smtp.Auth, string, []string, []byte) error { return relayErr }

	err := mailer.Send(context.Background(), Message{To: "demo@example.com"})
	require.ErrorIs(t, err, relayErr)
}
