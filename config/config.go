package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"now-playing-go/logcolors"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

// envFiles are loaded in order; godotenv never overrides a variable that is
// already set, so earlier files win over later ones.
var envFiles = []string{".env.local", ".env"}

type Config struct {
	Configuration struct {
		Port                       string   `envconfig:"PORT" default:"8888"`
		CORSOrigins                []string `envconfig:"CORS_ORIGINS" default:"http://localhost:3000,http://127.0.0.1:3000"`
		UpstreamTimeoutSeconds     int      `envconfig:"UPSTREAM_TIMEOUT_SECONDS" default:"10"`
		RateLimitPerSecond         int      `envconfig:"RATE_LIMIT_PER_SECOND" default:"5"`
		RateLimitBurstLimit        int      `envconfig:"RATE_LIMIT_BURST_LIMIT" default:"10"`
		CircuitBreakerThreshold    int      `envconfig:"CIRCUIT_BREAKER_THRESHOLD" default:"5"`     // Consecutive token exchange failures before circuit opens
		CircuitBreakerCooldownSecs int      `envconfig:"CIRCUIT_BREAKER_COOLDOWN_SECS" default:"60"` // Seconds to wait before retrying the exchange
		AdminAPIKey                string   `envconfig:"ADMIN_API_KEY" default:""`
		AdminAPIKeyRequired        bool     `envconfig:"ADMIN_API_KEY_REQUIRED" default:"false"`
		StatsDBPath                string   `envconfig:"STATS_DB_PATH" default:""`
		StatsSaveIntervalSeconds   int      `envconfig:"STATS_SAVE_INTERVAL_SECONDS" default:"300"`
	}

	Spotify Spotify

	TLS struct {
		Enabled  bool   `envconfig:"SSL_ENABLED" default:"false"`
		CertFile string `envconfig:"SSL_CERT_FILE" default:""`
		KeyFile  string `envconfig:"SSL_KEY_FILE" default:""`
	}

	Watch struct {
		RelayURL           string `envconfig:"RELAY_URL" default:"http://127.0.0.1:8888"`
		PollIntervalMs     int    `envconfig:"POLL_INTERVAL_MS" default:"10000"`
		ProgressTickMs     int    `envconfig:"PROGRESS_TICK_MS" default:"1000"`
		EndOfTrackRepollMs int    `envconfig:"END_OF_TRACK_REPOLL_MS" default:"1500"`
		MaxRetries         int    `envconfig:"POLL_MAX_RETRIES" default:"0"`
		RetryBackoffMs     int    `envconfig:"POLL_RETRY_BACKOFF_MS" default:"2000"`
	}

	Notifier struct {
		SMTPHost             string `envconfig:"NOTIFIER_SMTP_HOST" default:""`
		SMTPPort             string `envconfig:"NOTIFIER_SMTP_PORT" default:"587"`
		SMTPUsername         string `envconfig:"NOTIFIER_SMTP_USERNAME" default:""`
		SMTPPassword         string `envconfig:"NOTIFIER_SMTP_PASSWORD" default:""`
		FromEmail            string `envconfig:"NOTIFIER_FROM_EMAIL" default:""`
		ToEmail              string `envconfig:"NOTIFIER_TO_EMAIL" default:""`
		TelegramBotToken     string `envconfig:"NOTIFIER_TELEGRAM_BOT_TOKEN" default:""`
		TelegramChatID       string `envconfig:"NOTIFIER_TELEGRAM_CHAT_ID" default:""`
		NtfyTopic            string `envconfig:"NOTIFIER_NTFY_TOPIC" default:""`
		NtfyServer           string `envconfig:"NOTIFIER_NTFY_SERVER" default:"https://ntfy.sh"`
		AlertCooldownMinutes int    `envconfig:"NOTIFIER_ALERT_COOLDOWN_MINUTES" default:"15"`
	}

	FeatureFlags struct {
		TokenCache bool `envconfig:"FF_TOKEN_CACHE" default:"false"`
	}
}

// Spotify holds the OAuth application credentials and upstream endpoints.
type Spotify struct {
	ClientID      string `envconfig:"SPOTIFY_CLIENT_ID" default:""`
	ClientSecret  string `envconfig:"SPOTIFY_CLIENT_SECRET" default:""`
	RefreshToken  string `envconfig:"SPOTIFY_REFRESH_TOKEN" default:""`
	TokenURL      string `envconfig:"SPOTIFY_TOKEN_URL" default:"https://accounts.spotify.com/api/token"`
	NowPlayingURL string `envconfig:"SPOTIFY_NOW_PLAYING_URL" default:"https://api.spotify.com/v1/me/player/currently-playing"`
	RedirectURI   string `envconfig:"SPOTIFY_REDIRECT_URI" default:"http://127.0.0.1:8888/callback"`
}

// ConfigError reports configuration that prevents the process from starting.
type ConfigError struct {
	Missing []string
	Err     error
}

func (e *ConfigError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("missing required configuration: %s", strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("invalid configuration: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Load reads the .env files (when present) and then the environment.
func Load() (Config, error) {
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				log.Warnf("%s Error loading %s: %v", logcolors.LogConfig, file, err)
			}
		}
	}

	cfg := Config{}
	err := envconfig.Process("", &cfg)
	return cfg, err
}

// Validate checks everything the relay needs before it starts serving.
func (c Config) Validate() error {
	var missing []string
	if c.Spotify.ClientID == "" {
		missing = append(missing, "SPOTIFY_CLIENT_ID")
	}
	if c.Spotify.ClientSecret == "" {
		missing = append(missing, "SPOTIFY_CLIENT_SECRET")
	}
	if c.Spotify.RefreshToken == "" {
		missing = append(missing, "SPOTIFY_REFRESH_TOKEN")
	}
	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}
	return c.ValidateTLS()
}

// ValidateSetup checks the credentials needed to mint a refresh token; the
// refresh token itself is what the setup flow produces.
func (c Config) ValidateSetup() error {
	var missing []string
	if c.Spotify.ClientID == "" {
		missing = append(missing, "SPOTIFY_CLIENT_ID")
	}
	if c.Spotify.ClientSecret == "" {
		missing = append(missing, "SPOTIFY_CLIENT_SECRET")
	}
	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}
	return nil
}

// ValidateTLS ensures the certificate and key are readable when HTTPS is on.
func (c Config) ValidateTLS() error {
	if !c.TLS.Enabled {
		return nil
	}

	var missing []string
	if c.TLS.CertFile == "" {
		missing = append(missing, "SSL_CERT_FILE")
	}
	if c.TLS.KeyFile == "" {
		missing = append(missing, "SSL_KEY_FILE")
	}
	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}

	for _, path := range []string{c.TLS.CertFile, c.TLS.KeyFile} {
		f, err := os.Open(path)
		if err != nil {
			return &ConfigError{Err: fmt.Errorf("reading TLS material: %w", err)}
		}
		f.Close()
	}
	return nil
}
