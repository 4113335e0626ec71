package delivery

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"
)

var (
	dialTimeout    = 30 * time.Second
	sessionTimeout = 2 * time.Minute
)

// session describes one SMTP conversation with a relay or MX host.
type session struct {
	host        string
	port        string
	hello       string
	tls         *tls.Config
	implicitTLS bool
	auth        smtp.Auth
}

// deliver runs a single SMTP transaction carrying data from -> to.
func deliver(ctx context.Context, s session, from, to string, data []byte) error {
	addr := net.JoinHostPort(s.host, s.port)
	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(sessionTimeout)); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}

	if s.implicitTLS {
		tlsConn := tls.Client(conn, tlsFor(s))
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			return fmt.Errorf("tls handshake: %w", err)
		}
		conn = tlsConn
	}

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return fmt.Errorf("new client: %w", err)
	}
	defer client.Close()

	if err := client.Hello(s.hello); err != nil {
		return fmt.Errorf("helo: %w", err)
	}

	if !s.implicitTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsFor(s)); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}

	if s.auth != nil {
		if ok, _ := client.Extension("AUTH"); !ok {
			return fmt.Errorf("auth: %s does not advertise AUTH", s.host)
		}
		if err := client.Auth(s.auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data start: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("data write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("data close: %w", err)
	}

	if err := client.Quit(); err != nil {
		return fmt.Errorf("quit: %w", err)
	}
	return nil
}

func tlsFor(s session) *tls.Config {
	if s.tls != nil {
		conf := s.tls.Clone()
		if conf.ServerName == "" {
			conf.ServerName = s.host
		}
		return conf
	}
	return &tls.Config{ServerName: s.host, MinVersion: tls.VersionTLS12}
}
