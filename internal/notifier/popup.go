package notifier

import (
	"context"
	"errors"

	"github.com/ncruces/zenity"
)

// DialogFunc shows a modal info dialog and returns once it is dismissed.
type DialogFunc func(ctx context.Context, title, text string) error

// ZenityDialog shows the dialog with the platform's native toolkit
// (MessageBox on windows, osascript on darwin, zenity or kdialog elsewhere).
func ZenityDialog(ctx context.Context, title, text string) error {
	return zenity.Info(text,
		zenity.Title(title),
		zenity.InfoIcon,
		zenity.Context(ctx),
	)
}

// Popup is the visual channel.
type Popup struct {
	show DialogFunc
}

func NewPopup(show DialogFunc) *Popup {
	return &Popup{show: show}
}

func (p *Popup) Name() string {
	return "popup"
}

// Notify blocks until the operator dismisses the dialog. Closing the window
// counts as acknowledgement.
func (p *Popup) Notify(ctx context.Context, msg Message) error {
	err := p.show(ctx, msg.Title, msg.Body())
	if err == nil || errors.Is(err, zenity.ErrCanceled) {
		return nil
	}
	return &ChannelError{Channel: p.Name(), Kind: DisplayUnavailable, Err: err}
}
