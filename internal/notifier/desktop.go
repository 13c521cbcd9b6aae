package notifier

import (
	"io"
	"path/filepath"
	"runtime"

	"github.com/pkg/browser"
	"github.com/rs/zerolog"

	"github.com/coursewatch/coursewatch/internal/config"
	"github.com/coursewatch/coursewatch/internal/metrics"
)

// Desktop holds the platform hooks the local channels are built on.
type Desktop struct {
	GOOS    string
	Runner  Runner
	Dialog  DialogFunc
	OpenURL func(url string) error
}

// HostDesktop returns the hooks for the running machine.
func HostDesktop() Desktop {
	// Launcher chatter would otherwise interleave with the JSON log on stdout.
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard

	return Desktop{
		GOOS:    runtime.GOOS,
		Runner:  ExecRunner{},
		Dialog:  ZenityDialog,
		OpenURL: browser.OpenURL,
	}
}

// FromConfig builds a dispatcher holding every channel enabled in cfg.
// Disabled channels are never constructed. A relative sound file is resolved
// against configDir.
func FromConfig(cfg *config.Config, configDir string, desk Desktop, rec *metrics.Recorder, logger zerolog.Logger) *Dispatcher {
	d := NewDispatcher(cfg.Channels.Popup.Title, cfg.Alerts.ReferenceLink, cfg.Alerts.DispatchGrace, rec, logger)

	if cfg.SoundEnabled() {
		file := cfg.Channels.Sound.File
		if file != "" && !filepath.IsAbs(file) {
			file = filepath.Join(configDir, file)
		}
		d.Add(NewSound(desk.GOOS, file, desk.Runner), cfg.Channels.Sound.Timeout)
	}
	if cfg.PopupEnabled() {
		d.Add(NewPopup(desk.Dialog), cfg.Channels.Popup.Timeout)
	}
	if cfg.DiscordEnabled() {
		dc := cfg.Channels.Discord
		d.Add(NewDiscord(dc.WebhookURL, dc.Username, dc.MentionUserID, nil), dc.Timeout)
	}
	if cfg.Channels.Browser.Enabled {
		d.Add(NewBrowser(desk.OpenURL), cfg.Channels.Browser.Timeout)
	}

	channels := d.Channels()
	if len(channels) == 0 {
		logger.Warn().Msg("No notification channels enabled, changes will only be logged")
	}
	logger.Info().
		Strs("channels", channels).
		Str("platform", desk.GOOS).
		Msg("Notification channels configured")

	return d
}
