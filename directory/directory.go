// Package directory resolves who receives admin broadcast notifications.
package directory

import (
	"context"

	"github.com/rs/zerolog"

	"complaintmail/internal/email"
)

// Directory lists the admin recipients for broadcast notifications.
type Directory interface {
	AdminEmails(ctx context.Context) ([]string, error)
}

// Static is a fixed admin list, typically from ADMIN_EMAILS.
type Static struct {
	emails []string
}

// NewStatic normalises addresses and drops the ones that do not parse.
func NewStatic(addresses []string, log zerolog.Logger) *Static {
	return &Static{emails: normalizeAll(addresses, log)}
}

// AdminEmails returns a copy of the configured list.
func (s *Static) AdminEmails(ctx context.Context) ([]string, error) {
	return append([]string(nil), s.emails...), nil
}

func normalizeAll(addresses []string, log zerolog.Logger) []string {
	out := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		norm, err := email.Normalize(addr)
		if err != nil {
			log.Warn().Err(err).Str("address", addr).Msg("skipping invalid admin address")
			continue
		}
		out = append(out, norm)
	}
	return out
}
