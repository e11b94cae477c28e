package alert

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
)

// SMTPConfig selects the relay and credentials.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// TLS is "ssl" (implicit TLS), "starttls" or "none".
	TLS     string
	Timeout time.Duration
}

// SMTPMailer sends through an SMTP relay using go-mail. A client is dialled per operation.
type SMTPMailer struct {
	cfg SMTPConfig
}

// NewSMTPMailer returns a mailer for cfg. No connection is made until Send or Verify.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &SMTPMailer{cfg: cfg}
}

// Configured reports whether a relay host and sender are set.
func (m *SMTPMailer) Configured() bool {
	return m.cfg.Host != "" && m.cfg.From != ""
}

func (m *SMTPMailer) client() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTimeout(m.cfg.Timeout),
	}
	switch strings.ToLower(m.cfg.TLS) {
	case "ssl", "":
		opts = append(opts, mail.WithSSL())
	case "starttls":
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	case "none":
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}
	return mail.NewClient(m.cfg.Host, opts...)
}

// Verify dials the relay, negotiates TLS and authenticates.
func (m *SMTPMailer) Verify(ctx context.Context) error {
	if !m.Configured() {
		return &TransportError{Op: "verify", Err: errors.New("smtp relay or sender not configured")}
	}
	c, err := m.client()
	if err != nil {
		return &TransportError{Op: "configure", Err: err}
	}
	if err := c.DialWithContext(ctx); err != nil {
		return &TransportError{Op: "verify", Err: err}
	}
	if err := c.Close(); err != nil {
		return &TransportError{Op: "verify", Err: err}
	}
	return nil
}

// Send builds a multipart message (HTML with a plain-text alternative when Text is set) and delivers it.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if !m.Configured() {
		return &TransportError{Op: "send", Err: errors.New("smtp relay or sender not configured")}
	}
	mm := mail.NewMsg()
	if err := mm.FromFormat("Cyber Monitor", m.cfg.From); err != nil {
		return &TransportError{Op: "compose", Err: err}
	}
	if err := mm.To(msg.To); err != nil {
		return &TransportError{Op: "compose", Err: err}
	}
	mm.Subject(msg.Subject)
	mm.SetDate()
	mm.SetMessageID()
	mm.SetImportance(importance(msg.Priority))
	switch {
	case msg.HTML != "":
		mm.SetBodyString(mail.TypeTextHTML, msg.HTML)
		if msg.Text != "" {
			mm.AddAlternativeString(mail.TypeTextPlain, msg.Text)
		}
	default:
		mm.SetBodyString(mail.TypeTextPlain, msg.Text)
	}

	c, err := m.client()
	if err != nil {
		return &TransportError{Op: "configure", Err: err}
	}
	if err := c.DialAndSendWithContext(ctx, mm); err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	return nil
}

func importance(priority string) mail.Importance {
	switch priority {
	case "low":
		return mail.ImportanceLow
	case "high":
		return mail.ImportanceHigh
	case "critical":
		return mail.ImportanceUrgent
	}
	return mail.ImportanceNormal
}
