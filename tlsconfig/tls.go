package tlsconfig

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// ErrNoCertificates is returned when the CA bundle holds no usable certificates.
var ErrNoCertificates = errors.New("tlsconfig: no certificates found in CA bundle")

// LoadClientConfig returns the TLS settings used when talking to an SMTP server.
// caFile optionally adds a PEM bundle on top of the system roots, for relays
// signed by a private CA.
func LoadClientConfig(serverName, caFile string) (*tls.Config, error) {
	conf := &tls.Config{
		ServerName: serverName,
		MinVersion: tls.VersionTLS12,
	}
	if caFile == "" {
		return conf, nil
	}

	pemData, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("tlsconfig: read CA bundle: %w", err)
	}
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pemData) {
		return nil, ErrNoCertificates
	}
	conf.RootCAs = pool
	return conf, nil
}
