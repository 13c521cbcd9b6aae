package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coursewatch/coursewatch/internal/types"
)

const minimalYAML = `
tracked:
  - {code: SSH3201, group: 3, kind: C}
  - {code: SSH3501, group: "7", kind: C}
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []types.ResourceKey{
		{Code: "SSH3201", Group: "3", Kind: "C"},
		{Code: "SSH3501", Group: "7", Kind: "C"},
	}
	if len(cfg.Tracked) != len(want) {
		t.Fatalf("expected %d tracked keys, got %d", len(want), len(cfg.Tracked))
	}
	for i := range want {
		if cfg.Tracked[i] != want[i] {
			t.Fatalf("tracked[%d] = %+v, want %+v", i, cfg.Tracked[i], want[i])
		}
	}

	if cfg.Poll.Interval != 5*time.Minute {
		t.Fatalf("expected 5m interval, got %s", cfg.Poll.Interval)
	}
	if cfg.Source.URL != DefaultSourceURL {
		t.Fatalf("expected default source url, got %s", cfg.Source.URL)
	}
	if cfg.Source.Delimiter != ";" {
		t.Fatalf("expected ';' delimiter, got %q", cfg.Source.Delimiter)
	}
	if cfg.Source.Columns.Kind != "Grccodtypgrpcou" {
		t.Fatalf("unexpected kind column %q", cfg.Source.Columns.Kind)
	}
	if cfg.Alerts.Policy != PolicyOnTransition {
		t.Fatalf("expected default policy %s, got %s", PolicyOnTransition, cfg.Alerts.Policy)
	}
	if !cfg.SoundEnabled() || !cfg.PopupEnabled() || !cfg.StatusEnabled() {
		t.Fatalf("sound, popup and status should default to enabled")
	}
	if cfg.DiscordEnabled() {
		t.Fatalf("discord must stay disabled without a webhook url")
	}
	if cfg.Channels.Browser.Enabled {
		t.Fatalf("browser must default to disabled")
	}
}

func TestParseOverrides(t *testing.T) {
	doc := minimalYAML + `
poll:
  interval: 30s
alerts:
  policy: every_cycle
channels:
  sound:
    enabled: false
  discord:
    webhook_url: https://discord.com/api/webhooks/1/abc
    mention_user_id: "1234567890"
  browser:
    enabled: true
status:
  enabled: false
`
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Poll.Interval != 30*time.Second {
		t.Fatalf("expected 30s interval, got %s", cfg.Poll.Interval)
	}
	if cfg.Alerts.Policy != PolicyEveryCycle {
		t.Fatalf("expected every_cycle, got %s", cfg.Alerts.Policy)
	}
	if cfg.SoundEnabled() {
		t.Fatalf("sound should be disabled")
	}
	if !cfg.DiscordEnabled() {
		t.Fatalf("discord should be enabled")
	}
	if !cfg.Channels.Browser.Enabled {
		t.Fatalf("browser should be enabled")
	}
	if cfg.StatusEnabled() {
		t.Fatalf("status should be disabled")
	}
}

func TestParseResolvesWebhookFromEnv(t *testing.T) {
	t.Setenv("COURSEWATCH_TEST_WEBHOOK", "https://discord.com/api/webhooks/2/def")
	doc := minimalYAML + `
channels:
  discord:
    webhook_url_env: COURSEWATCH_TEST_WEBHOOK
`
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Channels.Discord.WebhookURL != "https://discord.com/api/webhooks/2/def" {
		t.Fatalf("webhook url not resolved from env, got %q", cfg.Channels.Discord.WebhookURL)
	}
}

func TestParseRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		field string
	}{
		{
			name:  "empty-tracked",
			doc:   "poll:\n  interval: 1m\n",
			field: "tracked",
		},
		{
			name:  "empty-document",
			doc:   "",
			field: "tracked",
		},
		{
			name:  "missing-kind",
			doc:   "tracked:\n  - {code: SSH3201, group: 3}\n",
			field: "tracked[0]",
		},
		{
			name:  "duplicate-key",
			doc:   "tracked:\n  - {code: A, group: 1, kind: C}\n  - {code: A, group: 1, kind: C}\n",
			field: "tracked[1]",
		},
		{
			name:  "blank-group",
			doc:   "tracked:\n  - {code: SSH3201, group: \"  \", kind: C}\n",
			field: "tracked[0]",
		},
		{
			name:  "duplicate-after-trim",
			doc:   "tracked:\n  - {code: SSH3201, group: 3, kind: C}\n  - {code: \"SSH3201 \", group: \" 3\", kind: C}\n",
			field: "tracked[1]",
		},
		{
			name:  "negative-interval",
			doc:   minimalYAML + "poll:\n  interval: -1m\n",
			field: "poll.interval",
		},
		{
			name:  "bad-policy",
			doc:   minimalYAML + "alerts:\n  policy: sometimes\n",
			field: "alerts.policy",
		},
		{
			name:  "bad-delimiter",
			doc:   minimalYAML + "source:\n  delimiter: \";;\"\n",
			field: "source.delimiter",
		},
		{
			name:  "bad-encoding",
			doc:   minimalYAML + "source:\n  encoding: ebcdic\n",
			field: "source.encoding",
		},
		{
			name:  "bad-source-url",
			doc:   minimalYAML + "source:\n  url: ftp://example.com/fermes.csv\n",
			field: "source.url",
		},
		{
			name:  "bad-mention",
			doc:   minimalYAML + "channels:\n  discord:\n    webhook_url: https://example.com/hook\n    mention_user_id: \"@everyone\"\n",
			field: "channels.discord.mention_user_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if err == nil {
				t.Fatalf("expected error")
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got %T: %v", err, err)
			}
			if cfgErr.Field != tt.field {
				t.Fatalf("expected field %q, got %q (%v)", tt.field, cfgErr.Field, err)
			}
		})
	}
}

func TestParseTrimsTrackedKeys(t *testing.T) {
	cfg, err := Parse([]byte("tracked:\n  - {code: \"SSH3201 \", group: \" 3\", kind: \"C\\t\"}\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := types.ResourceKey{Code: "SSH3201", Group: "3", Kind: "C"}
	if cfg.Tracked[0] != want {
		t.Fatalf("tracked[0] = %+v, want %+v", cfg.Tracked[0], want)
	}
	// Snapshot rows are trimmed the same way, so the key must match one.
	if !types.NewClosedSet(types.ResourceKey{Code: " SSH3201", Group: "3 ", Kind: "C"}.TrimSpace()).Contains(cfg.Tracked[0]) {
		t.Fatalf("trimmed key should match a trimmed snapshot row")
	}
}

func TestValidateConfigRejectsUntrimmedKeys(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.Tracked[1].Group = " 7"

	err = ValidateConfig(cfg)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "tracked[1]" {
		t.Fatalf("expected tracked[1] error, got %v", err)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte(minimalYAML + "pol:\n  interval: 1m\n"))
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError, got %v", err)
	}
	if !strings.Contains(err.Error(), "pol") {
		t.Fatalf("expected error to name the unknown field, got %v", err)
	}
}

func TestLoadConfigReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coursewatch.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Tracked) != 2 {
		t.Fatalf("expected 2 tracked keys, got %d", len(cfg.Tracked))
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
