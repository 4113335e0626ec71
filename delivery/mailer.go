// Package delivery renders notifications into MIME messages and hands them to an
// SMTP relay or directly to the recipient's MX hosts.
package delivery

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"net/smtp"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"

	"complaintmail/internal/config"
	"complaintmail/internal/dkim"
	"complaintmail/internal/email"
	"complaintmail/internal/metrics"
	"complaintmail/storage"
)

// ErrInvalidRecipient is returned for addresses that cannot be parsed.
var ErrInvalidRecipient = errors.New("invalid recipient")

// Mailer is the SMTP transport behind the notification queue.
type Mailer struct {
	cfg    config.SMTP
	tls    *tls.Config
	signer *dkim.Signer
	spool  *storage.Spool
	log    zerolog.Logger
}

// Option configures a Mailer.
type Option func(*Mailer)

// WithTLS overrides the client TLS settings.
func WithTLS(conf *tls.Config) Option {
	return func(m *Mailer) { m.tls = conf }
}

// WithSigner enables DKIM signing. A nil signer is ignored.
func WithSigner(s *dkim.Signer) Option {
	return func(m *Mailer) { m.signer = s }
}

// WithSpool keeps a copy of every rendered message.
func WithSpool(s *storage.Spool) Option {
	return func(m *Mailer) { m.spool = s }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Mailer) { m.log = l }
}

// NewMailer builds a Mailer from SMTP settings.
func NewMailer(cfg config.SMTP, opts ...Option) *Mailer {
	m := &Mailer{cfg: cfg, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(m)
	}
	if m.cfg.Hello == "" {
		m.cfg.Hello = config.Hostname()
	}
	if m.cfg.Mode == config.ModeRelay && !m.cfg.Configured() {
		m.log.Warn().Msg("SMTP relay not configured; notifications will be skipped")
	}
	return m
}

// Send renders and delivers one HTML notification.
func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	if m.cfg.Mode == config.ModeRelay && !m.cfg.Configured() {
		metrics.JobsSkipped.Inc()
		m.log.Warn().Str("to", to).Msg("SMTP relay not configured, skipping email")
		return nil
	}

	rcpt, err := email.Normalize(to)
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidRecipient, to, err)
	}
	envelopeFrom, err := m.sender()
	if err != nil {
		return err
	}

	data, err := m.Compose(rcpt, subject, body)
	if err != nil {
		return err
	}
	if data, err = m.signer.Sign(data, envelopeFrom); err != nil {
		return err
	}
	if path, err := m.spool.SaveMessage(messageID(), rcpt, data); err != nil {
		m.log.Warn().Err(err).Str("to", rcpt).Msg("failed to spool message")
	} else if path != "" {
		m.log.Debug().Str("path", path).Msg("message spooled")
	}

	if m.cfg.Mode == config.ModeDirect {
		base := session{hello: m.cfg.Hello, tls: m.directTLS()}
		return deliverDirect(ctx, base, envelopeFrom, rcpt, data)
	}
	return deliverFunc(ctx, m.relaySession(), envelopeFrom, rcpt, data)
}

// Compose renders the RFC 5322 message for one recipient. The body is sent as
// text/html exactly as given.
func (m *Mailer) Compose(to, subject, body string) ([]byte, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.fromHeader()); err != nil {
		return nil, fmt.Errorf("compose from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("compose to: %w", err)
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextHTML, body)

	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("compose: %w", err)
	}
	return buf.Bytes(), nil
}

func (m *Mailer) fromHeader() string {
	if m.cfg.From != "" {
		return m.cfg.From
	}
	return m.cfg.Username
}

// sender returns the envelope MAIL FROM address.
func (m *Mailer) sender() (string, error) {
	from, err := email.Normalize(m.fromHeader())
	if err != nil {
		return "", fmt.Errorf("sender: %w", err)
	}
	return from, nil
}

func (m *Mailer) relaySession() session {
	s := session{
		host:        m.cfg.Host,
		port:        strconv.Itoa(m.cfg.Port),
		hello:       m.cfg.Hello,
		tls:         m.tls,
		implicitTLS: m.cfg.Port == 465,
	}
	if m.cfg.Username != "" {
		s.auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	return s
}

// directTLS drops any fixed server name so each MX host is verified by its own name.
func (m *Mailer) directTLS() *tls.Config {
	if m.tls == nil {
		return nil
	}
	conf := m.tls.Clone()
	conf.ServerName = ""
	return conf
}

func messageID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	return hex.EncodeToString(b)
}
