package delivery

import (
	"context"
	"fmt"
)

// smtpPort is the port used for direct-to-MX delivery.
var smtpPort = "25"

var deliverFunc = deliver

// deliverDirect resolves the recipient's domain and tries each MX host in turn.
func deliverDirect(ctx context.Context, base session, from, to string, data []byte) error {
	domain, err := ExtractDomain(to)
	if err != nil {
		return err
	}
	mxRecords, err := ResolveMX(ctx, domain)
	if err != nil {
		return fmt.Errorf("MX lookup failed for %s: %w", domain, err)
	}
	if len(mxRecords) == 0 {
		return fmt.Errorf("MX lookup failed for %s: no MX records", domain)
	}

	var lastErr error
	for _, mx := range mxRecords {
		s := base
		s.host = mx.Host
		s.port = smtpPort
		if err := deliverFunc(ctx, s, from, to, data); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("delivery failed: %w", lastErr)
}
