package notifier

import (
	"context"
	"errors"
)

// Browser opens the reference link in the default browser.
type Browser struct {
	open func(url string) error
}

// NewBrowser creates the browser-open channel. open is usually
// browser.OpenURL.
func NewBrowser(open func(url string) error) *Browser {
	return &Browser{open: open}
}

func (b *Browser) Name() string {
	return "browser"
}

func (b *Browser) Notify(ctx context.Context, msg Message) error {
	if msg.Link == "" {
		return &ChannelError{Channel: b.Name(), Kind: LaunchFailed, Err: errors.New("no link to open")}
	}
	if err := ctx.Err(); err != nil {
		return &ChannelError{Channel: b.Name(), Kind: LaunchFailed, Err: err}
	}
	if err := b.open(msg.Link); err != nil {
		return &ChannelError{Channel: b.Name(), Kind: LaunchFailed, Err: err}
	}
	return nil
}
