package config

import "time"

const defaultInterDelay = 1500 * time.Millisecond

// InterDelay returns the pause between consecutive notification sends (MAIL_DELAY_MS).
func InterDelay() time.Duration {
	return Millis("MAIL_DELAY_MS", defaultInterDelay)
}
