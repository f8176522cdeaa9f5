package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	mail "github.com/go-mail/mail"
	"github.com/google/uuid"

	"github.com/dropDatabas3/posguard/internal/observability/logger"
)

// SMTPConfig contiene la configuración del servidor SMTP.
type SMTPConfig struct {
	Host               string
	Port               int
	Username           string
	Password           string
	From               string
	TLSMode            string // auto | starttls | ssl | none
	InsecureSkipVerify bool   // solo dev
	Timeout            time.Duration
}

type dialFunc func(d *mail.Dialer, msgs ...*mail.Message) error

// SMTPDispatcher implementa Dispatcher sobre go-mail.
type SMTPDispatcher struct {
	cfg  SMTPConfig
	dial dialFunc
}

// NewSMTPDispatcher completa defaults: puerto 587, tls auto, timeout 10s.
func NewSMTPDispatcher(cfg SMTPConfig) *SMTPDispatcher {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.TLSMode == "" {
		cfg.TLSMode = "auto"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SMTPDispatcher{
		cfg:  cfg,
		dial: func(d *mail.Dialer, msgs ...*mail.Message) error { return d.DialAndSend(msgs...) },
	}
}

func (s *SMTPDispatcher) dialer() *mail.Dialer {
	d := mail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	d.Timeout = s.cfg.Timeout
	d.TLSConfig = &tls.Config{ServerName: s.cfg.Host, InsecureSkipVerify: s.cfg.InsecureSkipVerify}
	switch strings.ToLower(s.cfg.TLSMode) {
	case "ssl":
		d.SSL = true
	case "starttls":
		d.StartTLSPolicy = mail.MandatoryStartTLS
	case "none":
		d.StartTLSPolicy = mail.NoStartTLS
	default: // auto
		d.StartTLSPolicy = mail.OpportunisticStartTLS
	}
	return d
}

func (s *SMTPDispatcher) build(msg Message, id string) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", id)
	switch {
	case msg.Text != "" && msg.HTML != "":
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	case msg.HTML != "":
		m.SetBody("text/html", msg.HTML)
	default:
		m.SetBody("text/plain", msg.Text)
	}
	return m
}

func (s *SMTPDispatcher) Send(ctx context.Context, msg Message) (Receipt, error) {
	if err := msg.validate(); err != nil {
		return Receipt{}, err
	}
	log := logger.From(ctx).With(
		logger.Component("email.smtp"),
		logger.String("smtp_host", s.cfg.Host),
		logger.Int("smtp_port", s.cfg.Port),
	)

	id := fmt.Sprintf("<%s@%s>", uuid.NewString(), domainOf(s.cfg.From))
	m := s.build(msg, id)
	d := s.dialer()

	// go-mail no recibe context; el envío corre aparte y se abandona si ctx vence.
	done := make(chan error, 1)
	go func() { done <- s.dial(d, m) }()

	select {
	case err := <-done:
		if err != nil {
			diag := DiagnoseSMTP(err)
			log.Warn("smtp send failed",
				logger.String("diag", diag.Code),
				logger.Bool("temporary", diag.Temporary),
				logger.Err(err))
			return Receipt{}, &SendError{Diag: diag, Err: err}
		}
	case <-ctx.Done():
		log.Warn("smtp send abandoned", logger.Err(ctx.Err()))
		return Receipt{}, &SendError{Diag: SMTPDiag{Code: "timeout", Temporary: true}, Err: ctx.Err()}
	}

	log.Debug("email sent", logger.String("message_id", id))
	return Receipt{MessageID: id}, nil
}

func domainOf(addr string) string {
	addr = strings.TrimSuffix(strings.TrimSpace(addr), ">")
	if i := strings.LastIndex(addr, "@"); i >= 0 && i < len(addr)-1 {
		return addr[i+1:]
	}
	return "localhost"
}
