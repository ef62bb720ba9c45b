// Package config reads settings for both binaries from the environment.
//
// Values come from real environment variables first. LoadDotEnv can fill
// in anything unset from a .env file, which is how local development and
// the test suite configure things without exporting variables by hand.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Secret holds a credential that must never end up in logs.
type Secret struct {
	value string
}

func NewSecret(s string) Secret {
	return Secret{value: s}
}

func (s Secret) Value() string {
	return s.value
}

func (s Secret) String() string {
	if s.value == "" {
		return ""
	}
	return "***REDACTED***"
}

// LogValue keeps slog from printing the secret.
func (s Secret) LogValue() slog.Value {
	return slog.StringValue(s.String())
}

// LoadDotEnv loads the first file in paths that exists. Variables already
// set in the environment win. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
		return nil
	}
	return nil
}

// Logging is shared by both binaries.
type Logging struct {
	Environment string
	LogLevel    string
}

func loadLogging() Logging {
	return Logging{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}
}

// Production reports whether ENVIRONMENT=production.
func (l Logging) Production() bool {
	return l.Environment == "production"
}

// NewLogger builds the process logger: JSON in production, text otherwise.
func (l Logging) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(l.LogLevel)}
	if l.Production() {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ---------------------------------------------------------------------------
// Server
// ---------------------------------------------------------------------------

// Server configures cmd/server.
type Server struct {
	Logging

	Port        int
	BaseURL     string // public origin used in share links
	TemplateDir string
	StaticDir   string
	DBPath      string
	JWTSecret   Secret
	JWTTTL      time.Duration
	SnippetTTL  time.Duration

	// GoogleUserInfoURL is where Google access tokens are checked.
	GoogleUserInfoURL string

	CacheSize      int
	RateLimitRPM   int
	RateLimitBurst int
	MaxSnippetSize int
	MaxUploadSize  int64
}

// LoadServer reads the server settings.
func LoadServer() (*Server, error) {
	c := &Server{Logging: loadLogging()}
	var err error

	if c.Port, err = getInt("PORT", 8080); err != nil {
		return nil, err
	}
	c.BaseURL = strings.TrimRight(getEnv("BASE_URL", fmt.Sprintf("http://localhost:%d", c.Port)), "/")
	c.TemplateDir = absPath(getEnv("TEMPLATE_DIR", "web/templates"))
	c.StaticDir = absPath(getEnv("STATIC_DIR", "web/static"))
	c.DBPath = getEnv("DB_PATH", "data/sharebin.db")
	c.JWTSecret = NewSecret(getEnv("JWT_SECRET", ""))
	if c.JWTTTL, err = getDuration("JWT_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if c.SnippetTTL, err = getDuration("SNIPPET_TTL", 30*24*time.Hour); err != nil {
		return nil, err
	}
	c.GoogleUserInfoURL = getEnv("GOOGLE_USERINFO_URL", "https://www.googleapis.com/oauth2/v3/userinfo")
	if c.CacheSize, err = getInt("CACHE_SIZE", 1000); err != nil {
		return nil, err
	}
	if c.RateLimitRPM, err = getInt("RATE_LIMIT_RPM", 60); err != nil {
		return nil, err
	}
	if c.RateLimitBurst, err = getInt("RATE_LIMIT_BURST", 10); err != nil {
		return nil, err
	}
	if c.MaxSnippetSize, err = getInt("MAX_SNIPPET_SIZE", 100_000); err != nil {
		return nil, err
	}
	maxUpload, err := getInt("MAX_UPLOAD_SIZE", 10<<20)
	if err != nil {
		return nil, err
	}
	c.MaxUploadSize = int64(maxUpload)
	return c, nil
}

// Validate checks ranges and production requirements.
func (c *Server) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return errors.New("PORT must be between 1 and 65535")
	}
	if c.DBPath == "" {
		return errors.New("DB_PATH is required")
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return errors.New("BASE_URL must start with http:// or https://")
	}
	if c.JWTTTL < time.Minute {
		return errors.New("JWT_TTL must be at least 1 minute")
	}
	if c.SnippetTTL < time.Minute {
		return errors.New("SNIPPET_TTL must be at least 1 minute")
	}
	if c.CacheSize <= 0 {
		return errors.New("CACHE_SIZE must be positive")
	}
	if c.RateLimitRPM <= 0 || c.RateLimitBurst <= 0 {
		return errors.New("RATE_LIMIT_RPM and RATE_LIMIT_BURST must be positive")
	}
	if c.MaxSnippetSize <= 0 || c.MaxUploadSize <= 0 {
		return errors.New("MAX_SNIPPET_SIZE and MAX_UPLOAD_SIZE must be positive")
	}
	if v := c.JWTSecret.Value(); v != "" && len(v) < 16 {
		return errors.New("JWT_SECRET must be at least 16 bytes")
	}
	if c.Production() && len(c.JWTSecret.Value()) < 32 {
		return errors.New("JWT_SECRET of at least 32 bytes is required in production")
	}
	return nil
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// Client configures cmd/sharebin.
type Client struct {
	Logging

	ServerURL          string
	DataPath           string // local key-value store
	GoogleClientID     string
	GoogleClientSecret Secret
	RequestTimeout     time.Duration
	DebounceDelay      time.Duration
	StatusTTL          time.Duration
	AutoSaveInterval   time.Duration
	DefaultLanguage    string
}

// LoadClient reads the client settings.
func LoadClient() (*Client, error) {
	c := &Client{Logging: loadLogging()}
	// The CLI talks to people; keep its own logs quiet unless asked.
	c.LogLevel = getEnv("LOG_LEVEL", "warn")

	var err error
	c.ServerURL = strings.TrimRight(getEnv("SHAREBIN_SERVER", "http://localhost:8080"), "/")
	c.DataPath = getEnv("SHAREBIN_DATA", defaultDataPath())
	c.GoogleClientID = getEnv("GOOGLE_CLIENT_ID", "")
	c.GoogleClientSecret = NewSecret(getEnv("GOOGLE_CLIENT_SECRET", ""))
	if c.RequestTimeout, err = getDuration("SHAREBIN_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if c.DebounceDelay, err = getDuration("SHAREBIN_DEBOUNCE", 2*time.Second); err != nil {
		return nil, err
	}
	if c.StatusTTL, err = getDuration("SHAREBIN_STATUS_TTL", 3*time.Second); err != nil {
		return nil, err
	}
	if c.AutoSaveInterval, err = getDuration("SHAREBIN_AUTOSAVE", 5*time.Second); err != nil {
		return nil, err
	}
	c.DefaultLanguage = getEnv("SHAREBIN_LANGUAGE", "javascript")
	return c, nil
}

// Validate checks the client settings.
func (c *Client) Validate() error {
	if !strings.HasPrefix(c.ServerURL, "http://") && !strings.HasPrefix(c.ServerURL, "https://") {
		return errors.New("SHAREBIN_SERVER must start with http:// or https://")
	}
	if c.DataPath == "" {
		return errors.New("SHAREBIN_DATA is required")
	}
	if c.RequestTimeout <= 0 || c.DebounceDelay <= 0 || c.StatusTTL <= 0 || c.AutoSaveInterval <= 0 {
		return errors.New("timeouts and intervals must be positive")
	}
	if c.GoogleClientSecret.Value() != "" && c.GoogleClientID == "" {
		return errors.New("GOOGLE_CLIENT_SECRET is set but GOOGLE_CLIENT_ID is not")
	}
	return nil
}

// GoogleEnabled reports whether Google sign-in can run.
func (c *Client) GoogleEnabled() bool {
	return c.GoogleClientID != ""
}

func defaultDataPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".sharebin", "local.db")
	}
	return filepath.Join(dir, "sharebin", "local.db")
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	s := getEnv(key, "")
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := getEnv(key, "")
	if s == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return v, nil
}

func absPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
