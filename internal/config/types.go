package config

import (
	"time"

	"github.com/coursewatch/coursewatch/internal/types"
)

// Config represents the complete coursewatch configuration.
type Config struct {
	Tracked  []types.ResourceKey `yaml:"tracked"`
	Poll     PollConfig          `yaml:"poll"`
	Source   SourceConfig        `yaml:"source"`
	Alerts   AlertConfig         `yaml:"alerts"`
	Channels ChannelsConfig      `yaml:"channels"`
	Status   StatusConfig        `yaml:"status"`
}

// PollConfig controls the polling cadence.
type PollConfig struct {
	Interval       time.Duration `yaml:"interval"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// SourceConfig describes where the closures snapshot lives and how to read it.
type SourceConfig struct {
	URL       string        `yaml:"url"`
	UserAgent string        `yaml:"user_agent,omitempty"`
	Delimiter string        `yaml:"delimiter,omitempty"`
	Encoding  string        `yaml:"encoding,omitempty"` // "utf-8", "windows-1252" or "iso-8859-1"
	Columns   ColumnsConfig `yaml:"columns,omitempty"`
}

// ColumnsConfig names the snapshot columns holding each part of a key.
type ColumnsConfig struct {
	Code  string `yaml:"code"`
	Group string `yaml:"group"`
	Kind  string `yaml:"kind"`
}

// AlertConfig defines alert behavior.
type AlertConfig struct {
	Policy        string        `yaml:"policy"` // "on_transition" or "every_cycle"
	ReferenceLink string        `yaml:"reference_link"`
	TestOnStart   bool          `yaml:"test_on_start"`
	DispatchGrace time.Duration `yaml:"dispatch_grace"`
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`
}

// ChannelsConfig holds per-channel settings.
type ChannelsConfig struct {
	Sound   SoundConfig   `yaml:"sound"`
	Popup   PopupConfig   `yaml:"popup"`
	Discord DiscordConfig `yaml:"discord"`
	Browser BrowserConfig `yaml:"browser"`
}

// SoundConfig configures the audible channel.
type SoundConfig struct {
	Enabled *bool         `yaml:"enabled,omitempty"`
	File    string        `yaml:"file,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// PopupConfig configures the visual channel.
type PopupConfig struct {
	Enabled *bool         `yaml:"enabled,omitempty"`
	Title   string        `yaml:"title,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// DiscordConfig configures the remote push channel. The channel is enabled
// only when a webhook URL resolves to a non-empty value.
type DiscordConfig struct {
	WebhookURL    string        `yaml:"webhook_url,omitempty"`
	WebhookURLEnv string        `yaml:"webhook_url_env,omitempty"`
	MentionUserID string        `yaml:"mention_user_id,omitempty"`
	Username      string        `yaml:"username,omitempty"`
	Timeout       time.Duration `yaml:"timeout,omitempty"`
}

// BrowserConfig configures the browser-open channel.
type BrowserConfig struct {
	Enabled bool          `yaml:"enabled"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// StatusConfig configures the status HTTP server.
type StatusConfig struct {
	Enabled    *bool  `yaml:"enabled,omitempty"`
	ListenAddr string `yaml:"listen_addr,omitempty"`
}

// SoundEnabled reports whether the audible channel is on (default true).
func (c *Config) SoundEnabled() bool {
	return c.Channels.Sound.Enabled == nil || *c.Channels.Sound.Enabled
}

// PopupEnabled reports whether the visual channel is on (default true).
func (c *Config) PopupEnabled() bool {
	return c.Channels.Popup.Enabled == nil || *c.Channels.Popup.Enabled
}

// StatusEnabled reports whether the status server should start (default true).
func (c *Config) StatusEnabled() bool {
	return c.Status.Enabled == nil || *c.Status.Enabled
}

// DiscordEnabled reports whether a webhook destination is configured.
func (c *Config) DiscordEnabled() bool {
	return c.Channels.Discord.WebhookURL != ""
}
