// Package popup brings the approval UI in front of the user when a request
// needs a decision.
package popup

import (
	"context"
	"errors"
	"log/slog"

	"github.com/skratchdot/open-golang/open"
)

// Controller opens and closes the approval UI. Both calls are best effort;
// callers log failures and carry on.
type Controller interface {
	Open(ctx context.Context) error
	Close(ctx context.Context) error
}

// Noop is used when nobody can be shown a UI.
type Noop struct{}

func (Noop) Open(context.Context) error  { return nil }
func (Noop) Close(context.Context) error { return nil }

// Browser opens the approval UI in the default browser. The browser owns the
// window, so Close does nothing.
type Browser struct {
	url  string
	open func(string) error
}

func NewBrowser(url string) *Browser {
	return &Browser{url: url, open: open.Run}
}

func (b *Browser) Open(ctx context.Context) error {
	slog.DebugContext(ctx, "opening approval ui", "url", b.url)
	return b.open(b.url)
}

func (b *Browser) Close(context.Context) error { return nil }

// Multi fans out to every controller and joins their errors.
type Multi []Controller

func (m Multi) Open(ctx context.Context) error {
	var errs []error
	for _, c := range m {
		errs = append(errs, c.Open(ctx))
	}
	return errors.Join(errs...)
}

func (m Multi) Close(ctx context.Context) error {
	var errs []error
	for _, c := range m {
		errs = append(errs, c.Close(ctx))
	}
	return errors.Join(errs...)
}
