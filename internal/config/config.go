package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"

	"complaintmail/internal/audit"
)

const defaultHostname = "localhost"

// Mail delivery modes.
const (
	ModeRelay  = "relay"
	ModeDirect = "direct"
)

// Config is the full process configuration.
type Config struct {
	HTTPAddr   string
	LogLevel   string
	LogFile    string
	InterDelay time.Duration
	SpoolDir   string
	SMTP       SMTP
	DKIM       DKIM
	Directory  Directory
}

// SMTP describes the outbound mail transport.
type SMTP struct {
	Mode     string
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Hello    string
	CAFile   string
}

// Configured reports whether a relay host is set. Credentials are optional;
// AUTH is only attempted when SMTP_USER is present.
func (s SMTP) Configured() bool {
	return s.Host != ""
}

// DKIM holds signing settings; all empty disables signing.
type DKIM struct {
	Selector   string
	Domain     string
	KeyPath    string
	PrivateKey string
}

// Directory selects where admin recipients come from.
type Directory struct {
	Driver string
	DSN    string
	Static []string
}

// Load reads the given dotenv files (missing files are skipped, existing environment
// variables win) and then builds the configuration from the environment.
func Load(files ...string) (Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Config{}, fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	audit.RefreshFromEnv()
	return FromEnv()
}

// FromEnv builds the configuration from environment variables only.
func FromEnv() (Config, error) {
	cfg := Config{
		HTTPAddr:   String("HTTP_ADDR", ":8080"),
		LogLevel:   String("LOG_LEVEL", "info"),
		LogFile:    String("LOG_FILE", ""),
		InterDelay: InterDelay(),
		SpoolDir:   String("MAIL_SPOOL_DIR", ""),
		SMTP: SMTP{
			Mode:     String("MAIL_MODE", ModeRelay),
			Host:     String("SMTP_HOST", ""),
			Port:     Int("SMTP_PORT", 587),
			Username: String("SMTP_USER", ""),
			Password: os.Getenv("SMTP_PASS"),
			From:     String("FROM_EMAIL", ""),
			Hello:    Hostname(),
			CAFile:   String("SMTP_TLS_CA", ""),
		},
		DKIM: DKIM{
			Selector:   String("DKIM_SELECTOR", ""),
			Domain:     String("DKIM_DOMAIN", ""),
			KeyPath:    String("DKIM_KEY_PATH", ""),
			PrivateKey: os.Getenv("DKIM_PRIVATE_KEY"),
		},
		Directory: Directory{
			Driver: String("DIRECTORY_DRIVER", ""),
			DSN:    String("DIRECTORY_DSN", ""),
			Static: List("ADMIN_EMAILS"),
		},
	}

	switch cfg.SMTP.Mode {
	case ModeRelay, ModeDirect:
	default:
		return Config{}, fmt.Errorf("config: unknown MAIL_MODE %q", cfg.SMTP.Mode)
	}
	if cfg.SMTP.Mode == ModeDirect && cfg.SMTP.From == "" {
		return Config{}, errors.New("config: FROM_EMAIL is required in direct mode")
	}
	if cfg.SMTP.Mode == ModeRelay && cfg.SMTP.Host != "" && cfg.SMTP.From == "" && cfg.SMTP.Username == "" {
		return Config{}, errors.New("config: FROM_EMAIL or SMTP_USER is required when SMTP_HOST is set")
	}
	if cfg.Directory.Driver != "" && cfg.Directory.DSN == "" {
		return Config{}, errors.New("config: DIRECTORY_DSN is required when DIRECTORY_DRIVER is set")
	}
	return cfg, nil
}

// Hostname returns the name used in HELO/EHLO.
// Preference order: SMTP_HOSTNAME env var, system hostname, fallback.
func Hostname() string {
	if env := os.Getenv("SMTP_HOSTNAME"); env != "" {
		return env
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return defaultHostname
}
