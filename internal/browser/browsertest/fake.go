// Package browsertest provides a scriptable in-memory implementation of the
// browser capability interface. Tests seed it with selector -> node mappings
// and click hooks that mutate the page, standing in for the portal's
// asynchronously rendering UI.
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amanzav/waterworks/internal/browser"
)

// Node is a fake element. Hooks let tests script what a click or upload does
// to the page.
type Node struct {
	TextVal   string
	HTMLVal   string
	Attrs     map[string]string
	Kids      map[string][]*Node
	OnClick   func()
	ClickErr  error
	UploadErr func(path string) error

	Typed   []string
	Uploads []string
}

var _ browser.Element = (*Node)(nil)

func (n *Node) Text(ctx context.Context) (string, error) { return n.TextVal, nil }
func (n *Node) HTML(ctx context.Context) (string, error) { return n.HTMLVal, nil }

func (n *Node) Attribute(ctx context.Context, name string) (string, error) {
	return n.Attrs[name], nil
}

func (n *Node) Find(ctx context.Context, selector string) (browser.Element, error) {
	kids := n.Kids[selector]
	if len(kids) == 0 {
		return nil, fmt.Errorf("no descendant matches %q: %w", selector, browser.ErrTimeout)
	}
	return kids[0], nil
}

func (n *Node) FindAll(ctx context.Context, selector string) ([]browser.Element, error) {
	els := make([]browser.Element, 0, len(n.Kids[selector]))
	for _, k := range n.Kids[selector] {
		els = append(els, k)
	}
	return els, nil
}

func (n *Node) Click(ctx context.Context) error {
	if n.ClickErr != nil {
		return n.ClickErr
	}
	if n.OnClick != nil {
		n.OnClick()
	}
	return nil
}

func (n *Node) SendKeys(ctx context.Context, text string) error {
	n.Typed = append(n.Typed, text)
	return nil
}

// Upload records every attempted path, including ones UploadErr rejects.
func (n *Node) Upload(ctx context.Context, path string) error {
	n.Uploads = append(n.Uploads, path)
	if n.UploadErr != nil {
		return n.UploadErr(path)
	}
	return nil
}

// Session is a fake browser session backed by a mutable selector -> nodes map.
type Session struct {
	mu sync.Mutex

	URL string
	Doc map[string][]*Node

	// OnNavigate, when set, rebuilds the page for the given URL. A returned
	// error fails the navigation.
	OnNavigate func(url string) error

	// Values records the latest SetValue per selector; ValueLog keeps order.
	Values   map[string]string
	ValueLog []string

	NavLog []string
	Closed bool
}

var _ browser.Session = (*Session)(nil)

// New returns an empty fake session.
func New() *Session {
	return &Session{
		Doc:    make(map[string][]*Node),
		Values: make(map[string]string),
	}
}

// Add appends a node under selector.
func (s *Session) Add(selector string, n *Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Doc[selector] = append(s.Doc[selector], n)
}

// Set replaces all nodes under selector.
func (s *Session) Set(selector string, ns ...*Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Doc[selector] = ns
}

// Remove deletes all nodes under selector.
func (s *Session) Remove(selector string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Doc, selector)
}

// Has reports whether any node currently matches selector.
func (s *Session) Has(selector string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Doc[selector]) > 0
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	s.URL = url
	s.NavLog = append(s.NavLog, url)
	hook := s.OnNavigate
	s.mu.Unlock()

	if hook != nil {
		if err := hook(url); err != nil {
			return fmt.Errorf("navigate to %s: %w", url, err)
		}
	}
	return nil
}

func (s *Session) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if s.Has(selector) {
		return nil
	}
	// The fake mutates only synchronously (via click/navigate hooks), so an
	// absent selector will not appear by waiting.
	return &browser.WaitError{Selector: selector, Timeout: timeout}
}

func (s *Session) Find(ctx context.Context, selector string) (browser.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns := s.Doc[selector]
	if len(ns) == 0 {
		return nil, fmt.Errorf("no element matches %q: %w", selector, browser.ErrTimeout)
	}
	return ns[0], nil
}

func (s *Session) FindAll(ctx context.Context, selector string) ([]browser.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	els := make([]browser.Element, 0, len(s.Doc[selector]))
	for _, n := range s.Doc[selector] {
		els = append(els, n)
	}
	return els, nil
}

func (s *Session) SetValue(ctx context.Context, selector, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Doc[selector]) == 0 {
		return fmt.Errorf("no element matches %q: %w", selector, browser.ErrTimeout)
	}
	s.Values[selector] = value
	s.ValueLog = append(s.ValueLog, selector+"="+value)
	return nil
}

func (s *Session) Location(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.URL, nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}
