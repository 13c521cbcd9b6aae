package notifier

import (
	"fmt"
	"os"
	"strings"
)

const (
	macSystemSound   = "/System/Library/Sounds/Glass.aiff"
	linuxSystemSound = "/usr/share/sounds/freedesktop/stereo/complete.oga"
)

// NewSound returns the audible channel for goos. A custom sound file is used
// when it exists, otherwise a system sound.
func NewSound(goos, file string, runner Runner) Channel {
	return &commandChannel{
		name:    "sound",
		kind:    PlaybackUnavailable,
		runner:  runner,
		missing: fmt.Sprintf("no suitable audio player found for %s", goos),
		build: func(Message) []command {
			return soundCommands(goos, file, fileExists(file))
		},
	}
}

func soundCommands(goos, file string, custom bool) []command {
	switch goos {
	case "windows":
		if custom {
			return []command{{"powershell", "-NoProfile", "-NonInteractive", "-Command",
				fmt.Sprintf("(New-Object Media.SoundPlayer %s).PlaySync()", psQuote(file))}}
		}
		return []command{{"powershell", "-NoProfile", "-NonInteractive", "-Command",
			"1..3 | ForEach-Object { [console]::beep(1000, 400); Start-Sleep -Milliseconds 100 }"}}
	case "darwin":
		if custom {
			return []command{{"afplay", file}}
		}
		return []command{{"afplay", macSystemSound}}
	case "linux", "freebsd", "openbsd", "netbsd":
		if custom {
			return []command{{"aplay", "-q", file}, {"paplay", file}}
		}
		return []command{{"paplay", linuxSystemSound}}
	default:
		return nil
	}
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// psQuote renders s as a PowerShell single-quoted string.
func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
