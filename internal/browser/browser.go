// Package browser defines the narrow automation capability the pipeline drives:
// open pages, find elements, click, type, and wait, against one live browser.
// Callers never see the underlying automation library's types; the chromedp
// adapter in this package is the only implementation that talks to a real
// browser, and test doubles live in browsertest.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned (wrapped) when a bounded wait expires before its
// condition is met. Callers distinguish it from harder failures with errors.Is.
var ErrTimeout = errors.New("wait timed out")

// WaitError reports which selector a bounded wait gave up on.
type WaitError struct {
	Selector string
	Timeout  time.Duration
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for %q", e.Timeout, e.Selector)
}

func (e *WaitError) Unwrap() error { return ErrTimeout }

// Session is a live browser context. It is not safe for concurrent use; the
// pipeline drives it from a single goroutine and must call Close on every
// exit path, or a browser process is leaked.
type Session interface {
	// Navigate loads url and returns once the main document has loaded.
	Navigate(ctx context.Context, url string) error
	// WaitVisible blocks until selector matches a rendered element or the
	// timeout expires, in which case the error wraps ErrTimeout.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	// Find returns the first element matching selector, or an error wrapping
	// ErrTimeout if none exists right now.
	Find(ctx context.Context, selector string) (Element, error)
	// FindAll returns every element currently matching selector. A selector
	// that matches nothing yields an empty slice, not an error.
	FindAll(ctx context.Context, selector string) ([]Element, error)
	// SetValue assigns value to the form control matching selector and fires
	// a change event, the way a user committing the field would.
	SetValue(ctx context.Context, selector, value string) error
	// Location returns the current page URL.
	Location(ctx context.Context) (string, error)
	// Close terminates the browser. Safe to call more than once.
	Close() error
}

// Element is a weak, session-scoped handle into the live document. It is valid
// only until the page it was captured on is navigated away from or re-rendered;
// after that every method may fail and the handle must be discarded.
type Element interface {
	// Text returns the element's rendered text.
	Text(ctx context.Context) (string, error)
	// HTML returns the element's outer HTML.
	HTML(ctx context.Context) (string, error)
	// Attribute returns the named attribute, or "" if absent.
	Attribute(ctx context.Context, name string) (string, error)
	// Find returns the first descendant matching selector.
	Find(ctx context.Context, selector string) (Element, error)
	// FindAll returns all descendants matching selector.
	FindAll(ctx context.Context, selector string) ([]Element, error)
	// Click scrolls the element into view and clicks it.
	Click(ctx context.Context) error
	// SendKeys types text into the element.
	SendKeys(ctx context.Context, text string) error
	// Upload submits a local file path to a file-input element.
	Upload(ctx context.Context, path string) error
}
