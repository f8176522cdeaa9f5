package email

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	mail "github.com/go-mail/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplates_Invitation(t *testing.T) {
	tpl := MustLoadTemplates()
	msg, err := tpl.Invitation(InvitationVars{
		Email:       "nuevo@example.com",
		InviterName: "Ana <admin>",
		Role:        "cashier",
		Product:     "POS Admin",
		Link:        "https://pos.example.com/invite/abc?x=1&y=2",
		TTL:         "7 días",
	})
	require.NoError(t, err)
	assert.Equal(t, "nuevo@example.com", msg.To)
	assert.Equal(t, "Te invitaron a POS Admin", msg.Subject)
	assert.Contains(t, msg.Text, "https://pos.example.com/invite/abc?x=1&y=2")
	assert.Contains(t, msg.Text, "cashier")
	assert.Contains(t, msg.HTML, "Ana &lt;admin&gt;")
	assert.Contains(t, msg.HTML, "x=1&amp;y=2")
}

func TestLogDispatcher(t *testing.T) {
	r, err := LogDispatcher{}.Send(context.Background(), Message{To: "a@b.c", Subject: "s", Text: "t"})
	require.NoError(t, err)
	assert.NotEmpty(t, r.MessageID)

	_, err = LogDispatcher{}.Send(context.Background(), Message{Subject: "s", Text: "t"})
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestSMTPDispatcher_Send(t *testing.T) {
	s := NewSMTPDispatcher(SMTPConfig{Host: "smtp.example.com", From: "POS <no-reply@pos.example.com>"})
	var got *mail.Dialer
	s.dial = func(d *mail.Dialer, msgs ...*mail.Message) error {
		got = d
		require.Len(t, msgs, 1)
		assert.Equal(t, []string{"x@example.com"}, msgs[0].GetHeader("To"))
		return nil
	}

	r, err := s.Send(context.Background(), Message{To: "x@example.com", Subject: "hola", Text: "t", HTML: "<p>h</p>"})
	require.NoError(t, err)
	assert.Regexp(t, `^<[0-9a-f-]{36}@pos\.example\.com>$`, r.MessageID)
	require.NotNil(t, got)
	assert.Equal(t, 587, got.Port)
	assert.Equal(t, mail.OpportunisticStartTLS, got.StartTLSPolicy)
	assert.Equal(t, 10*time.Second, got.Timeout)
}

func TestSMTPDispatcher_Failure(t *testing.T) {
	s := NewSMTPDispatcher(SMTPConfig{Host: "smtp.example.com", From: "no-reply@pos.example.com", TLSMode: "ssl"})
	s.dial = func(d *mail.Dialer, _ ...*mail.Message) error {
		assert.True(t, d.SSL)
		return errors.New("535 5.7.8 authentication failed")
	}
	_, err := s.Send(context.Background(), Message{To: "x@example.com", Subject: "s", Text: "t"})
	var se *SendError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "auth", se.Diag.Code)
	assert.False(t, se.Diag.Temporary)
}

func TestSMTPDispatcher_ContextCancelled(t *testing.T) {
	s := NewSMTPDispatcher(SMTPConfig{Host: "smtp.example.com", From: "no-reply@pos.example.com"})
	release := make(chan struct{})
	defer close(release)
	s.dial = func(*mail.Dialer, ...*mail.Message) error {
		<-release
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Send(ctx, Message{To: "x@example.com", Subject: "s", Text: "t"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "read: i/o" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestDiagnoseSMTP(t *testing.T) {
	cases := map[string]string{
		"dial tcp 10.0.0.1:587: connection refused": "dial",
		"x509: certificate signed by unknown authority": "tls",
		"421 4.7.0 try again later":                   "rate_limited",
		"550 5.1.1 user unknown":                      "invalid_recipient",
		"550 5.7.1 message rejected by policy":        "rejected",
		"something odd":                               "unknown",
	}
	for msg, code := range cases {
		assert.Equal(t, code, DiagnoseSMTP(errors.New(msg)).Code, msg)
	}
	assert.Equal(t, "timeout", DiagnoseSMTP(timeoutErr{}).Code)
	assert.Equal(t, "unknown", DiagnoseSMTP(nil).Code)
}
