package notifier

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ncruces/zenity"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/coursewatch/coursewatch/internal/config"
	"github.com/coursewatch/coursewatch/internal/metrics"
)

// fakeDesktop records what the local channels asked the platform to do.
type fakeDesktop struct {
	mu      sync.Mutex
	dialogs []string
	opened  []string
}

func (f *fakeDesktop) hooks(runner Runner) Desktop {
	return Desktop{
		GOOS:   "linux",
		Runner: runner,
		Dialog: func(_ context.Context, title, text string) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.dialogs = append(f.dialogs, title+"|"+text)
			return nil
		},
		OpenURL: func(url string) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.opened = append(f.opened, url)
			return nil
		},
	}
}

func parseConfig(t *testing.T, doc string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	return cfg
}

const trackedYAML = "tracked:\n  - {code: SSH3201, group: \"3\", kind: C}\n"

func TestFromConfigWithoutWebhookUsesLocalChannelsOnly(t *testing.T) {
	var hits atomic.Int32
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "alert.wav"), []byte("RIFF"), 0o600); err != nil {
		t.Fatalf("write sound: %v", err)
	}
	t.Setenv("COURSEWATCH_TEST_WEBHOOK", "")
	cfg := parseConfig(t, trackedYAML+`
channels:
  sound:
    file: alert.wav
  discord:
    webhook_url_env: COURSEWATCH_TEST_WEBHOOK
`)

	desk := &fakeDesktop{}
	runner := installed("aplay")
	d := FromConfig(cfg, dir, desk.hooks(runner), metrics.New(prometheus.NewRegistry()), zerolog.Nop())

	if got, want := d.Channels(), []string{"sound", "popup"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("channels = %v, want %v", got, want)
	}

	d.Dispatch(context.Background(), event(lecture))
	if !d.Drain(time.Second) {
		t.Fatalf("channels did not finish")
	}

	if len(runner.calls) != 1 || runner.calls[0][0] != "aplay" || runner.calls[0][2] != filepath.Join(dir, "alert.wav") {
		t.Fatalf("unexpected sound calls %v", runner.calls)
	}
	if len(desk.dialogs) != 1 {
		t.Fatalf("expected one dialog, got %v", desk.dialogs)
	}
	if len(desk.opened) != 0 {
		t.Fatalf("browser is off by default, opened %v", desk.opened)
	}
	if n := hits.Load(); n != 0 {
		t.Fatalf("webhook must not be contacted, got %d requests", n)
	}
}

func TestFromConfigWithWebhookAddsDiscord(t *testing.T) {
	var hits atomic.Int32
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	cfg := parseConfig(t, trackedYAML+`
channels:
  sound:
    enabled: false
  popup:
    enabled: false
  discord:
    webhook_url: `+hook.URL+`
  browser:
    enabled: true
`)

	desk := &fakeDesktop{}
	d := FromConfig(cfg, t.TempDir(), desk.hooks(installed()), metrics.New(prometheus.NewRegistry()), zerolog.Nop())

	if got, want := d.Channels(), []string{"discord", "browser"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("channels = %v, want %v", got, want)
	}

	d.Dispatch(context.Background(), event(lecture))
	if !d.Drain(time.Second) {
		t.Fatalf("channels did not finish")
	}

	if n := hits.Load(); n != 1 {
		t.Fatalf("expected one webhook request, got %d", n)
	}
	if !reflect.DeepEqual(desk.opened, []string{cfg.Alerts.ReferenceLink}) {
		t.Fatalf("opened = %v", desk.opened)
	}
}

func TestPopupShowsTitleAndBody(t *testing.T) {
	var gotTitle, gotText string
	p := NewPopup(func(_ context.Context, title, text string) error {
		gotTitle, gotText = title, text
		return nil
	})

	msg := testMessage()
	if err := p.Notify(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotTitle != "Classes Open!" || gotText != msg.Body() {
		t.Fatalf("dialog got %q / %q", gotTitle, gotText)
	}
}

func TestPopupErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"dismissed", zenity.ErrCanceled, ""},
		{"no-toolkit", zenity.ErrUnsupported, DisplayUnavailable},
		{"display", errors.New("cannot open display"), DisplayUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPopup(func(context.Context, string, string) error { return tt.err })
			err := p.Notify(context.Background(), testMessage())
			if KindOf(err) != tt.want {
				t.Fatalf("kind = %q, want %q (%v)", KindOf(err), tt.want, err)
			}
			if tt.want == "" && err != nil {
				t.Fatalf("expected nil error, got %v", err)
			}
		})
	}
}

func TestBrowserOpensReferenceLink(t *testing.T) {
	var opened []string
	b := NewBrowser(func(url string) error {
		opened = append(opened, url)
		return nil
	})
	if err := b.Notify(context.Background(), testMessage()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(opened, []string{"https://example.com/dossier"}) {
		t.Fatalf("opened = %v", opened)
	}

	failing := NewBrowser(func(string) error { return errors.New("xdg-open: not found") })
	if err := failing.Notify(context.Background(), testMessage()); KindOf(err) != LaunchFailed {
		t.Fatalf("expected launch_failed, got %v", err)
	}

	noLink := testMessage()
	noLink.Link = ""
	if err := b.Notify(context.Background(), noLink); KindOf(err) != LaunchFailed {
		t.Fatalf("expected launch_failed without a link, got %v", err)
	}
}
