package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/coursewatch/coursewatch/internal/types"
)

const (
	PolicyOnTransition = "on_transition"
	PolicyEveryCycle   = "every_cycle"

	DefaultSourceURL     = "https://cours.polymtl.ca/Horaire/public/fermes.csv"
	DefaultReferenceLink = "https://dossieretudiant.polymtl.ca/WebEtudiant7/poly.html"
	DefaultUserAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// ConfigError reports an invalid or missing configuration value. It is the
// only error class that stops the process, and only at startup.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config: " + e.Msg
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

func configErr(field, format string, args ...any) error {
	return &ConfigError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// LoadConfig reads, defaults and validates the YAML file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML document into a validated Config.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, &ConfigError{Msg: err.Error()}
	}

	resolveEnv(cfg)
	applyDefaults(cfg)

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// resolveEnv fills secrets that are referenced by environment variable name.
func resolveEnv(cfg *Config) {
	d := &cfg.Channels.Discord
	if d.WebhookURL == "" && d.WebhookURLEnv != "" {
		d.WebhookURL = strings.TrimSpace(os.Getenv(d.WebhookURLEnv))
	}
}

func applyDefaults(cfg *Config) {
	for i := range cfg.Tracked {
		cfg.Tracked[i] = cfg.Tracked[i].TrimSpace()
	}

	if cfg.Poll.Interval == 0 {
		cfg.Poll.Interval = 5 * time.Minute
	}
	if cfg.Poll.RequestTimeout == 0 {
		cfg.Poll.RequestTimeout = 10 * time.Second
	}

	if cfg.Source.URL == "" {
		cfg.Source.URL = DefaultSourceURL
	}
	if cfg.Source.UserAgent == "" {
		cfg.Source.UserAgent = DefaultUserAgent
	}
	if cfg.Source.Delimiter == "" {
		cfg.Source.Delimiter = ";"
	}
	if cfg.Source.Encoding == "" {
		cfg.Source.Encoding = "utf-8"
	}
	if cfg.Source.Columns.Code == "" {
		cfg.Source.Columns.Code = "Cousig"
	}
	if cfg.Source.Columns.Group == "" {
		cfg.Source.Columns.Group = "Grccod"
	}
	if cfg.Source.Columns.Kind == "" {
		cfg.Source.Columns.Kind = "Grccodtypgrpcou"
	}

	if cfg.Alerts.Policy == "" {
		cfg.Alerts.Policy = PolicyOnTransition
	}
	if cfg.Alerts.ReferenceLink == "" {
		cfg.Alerts.ReferenceLink = DefaultReferenceLink
	}
	if cfg.Alerts.DispatchGrace == 0 {
		cfg.Alerts.DispatchGrace = 2 * time.Second
	}
	if cfg.Alerts.ShutdownGrace == 0 {
		cfg.Alerts.ShutdownGrace = 5 * time.Second
	}

	if cfg.Channels.Sound.File == "" {
		cfg.Channels.Sound.File = "vine-boom.wav"
	}
	if cfg.Channels.Sound.Timeout == 0 {
		cfg.Channels.Sound.Timeout = 30 * time.Second
	}
	if cfg.Channels.Popup.Title == "" {
		cfg.Channels.Popup.Title = "Classes Open!"
	}
	if cfg.Channels.Discord.Username == "" {
		cfg.Channels.Discord.Username = "Class Notifier"
	}
	if cfg.Channels.Discord.Timeout == 0 {
		cfg.Channels.Discord.Timeout = 10 * time.Second
	}
	if cfg.Channels.Browser.Timeout == 0 {
		cfg.Channels.Browser.Timeout = 10 * time.Second
	}

	if cfg.Status.ListenAddr == "" {
		cfg.Status.ListenAddr = "127.0.0.1:8088"
	}
}

var supportedEncodings = map[string]struct{}{
	"utf-8":        {},
	"windows-1252": {},
	"iso-8859-1":   {},
}

// ValidateConfig validates the configuration.
func ValidateConfig(cfg *Config) error {
	if len(cfg.Tracked) == 0 {
		return configErr("tracked", "at least one course section must be tracked")
	}

	seen := make(map[types.ResourceKey]int, len(cfg.Tracked))
	for i, key := range cfg.Tracked {
		field := fmt.Sprintf("tracked[%d]", i)
		if key.Code == "" || key.Group == "" || key.Kind == "" {
			return configErr(field, "code, group and kind are required")
		}
		if key != key.TrimSpace() {
			return configErr(field, "%q has surrounding whitespace", key.String())
		}
		if prev, ok := seen[key]; ok {
			return configErr(field, "duplicates tracked[%d] (%s)", prev, key)
		}
		seen[key] = i
	}

	if cfg.Poll.Interval < 0 {
		return configErr("poll.interval", "must be positive, got %s", cfg.Poll.Interval)
	}
	if cfg.Poll.RequestTimeout < 0 {
		return configErr("poll.request_timeout", "must be positive, got %s", cfg.Poll.RequestTimeout)
	}

	if err := validateURL("source.url", cfg.Source.URL); err != nil {
		return err
	}
	if utf8.RuneCountInString(cfg.Source.Delimiter) != 1 {
		return configErr("source.delimiter", "must be a single character, got %q", cfg.Source.Delimiter)
	}
	if r, _ := utf8.DecodeRuneInString(cfg.Source.Delimiter); r == '"' || r == '\n' || r == '\r' {
		return configErr("source.delimiter", "%q cannot be used as a delimiter", cfg.Source.Delimiter)
	}
	if _, ok := supportedEncodings[strings.ToLower(cfg.Source.Encoding)]; !ok {
		return configErr("source.encoding", "unsupported encoding %q", cfg.Source.Encoding)
	}

	switch cfg.Alerts.Policy {
	case PolicyOnTransition, PolicyEveryCycle:
	default:
		return configErr("alerts.policy", "must be '%s' or '%s'", PolicyOnTransition, PolicyEveryCycle)
	}
	if err := validateURL("alerts.reference_link", cfg.Alerts.ReferenceLink); err != nil {
		return err
	}
	if cfg.Alerts.DispatchGrace < 0 {
		return configErr("alerts.dispatch_grace", "must be positive")
	}
	if cfg.Alerts.ShutdownGrace < 0 {
		return configErr("alerts.shutdown_grace", "must be positive")
	}

	d := cfg.Channels.Discord
	if d.WebhookURL != "" {
		if err := validateURL("channels.discord.webhook_url", d.WebhookURL); err != nil {
			return err
		}
	}
	if d.MentionUserID != "" {
		for _, r := range d.MentionUserID {
			if r < '0' || r > '9' {
				return configErr("channels.discord.mention_user_id", "must be a numeric user id, got %q", d.MentionUserID)
			}
		}
	}

	return nil
}

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return configErr(field, "%v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return configErr(field, "must be an http(s) URL, got %q", raw)
	}
	if u.Host == "" {
		return configErr(field, "missing host in %q", raw)
	}
	return nil
}
