package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Spool keeps a copy of every rendered notification on disk for inspection.
// A Spool with an empty Dir is disabled.
type Spool struct {
	Dir string
	now func() time.Time
}

// NewSpool returns a spool rooted at dir.
func NewSpool(dir string) *Spool {
	return &Spool{Dir: dir, now: time.Now}
}

// Enabled reports whether messages are written.
func (s *Spool) Enabled() bool {
	return s != nil && s.Dir != ""
}

// SaveMessage writes data to <dir>/<date>/<id>_<recipient hash>.eml and returns the path.
func (s *Spool) SaveMessage(id, to string, data []byte) (string, error) {
	if !s.Enabled() {
		return "", nil
	}
	safeID, err := sanitizeComponent(id)
	if err != nil {
		return "", err
	}

	now := time.Now
	if s.now != nil {
		now = s.now
	}
	dir := filepath.Join(s.Dir, now().UTC().Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("spool: %w", err)
	}
	filename := filepath.Join(dir, fmt.Sprintf("%s_%s.eml", safeID, hashRecipient(to)))
	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return "", fmt.Errorf("spool: %w", err)
	}
	return filename, nil
}

func sanitizeComponent(v string) (string, error) {
	if strings.ContainsAny(v, "/\\") || strings.Contains(v, "..") {
		return "", errors.New("spool: invalid identifier")
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", errors.New("spool: empty identifier")
	}
	return v, nil
}

func hashRecipient(addr string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(addr))))
	return hex.EncodeToString(sum[:8])
}
