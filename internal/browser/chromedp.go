package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/phuslu/log"
)

const (
	// opTimeout bounds single element operations so a wedged renderer cannot
	// hang the pipeline indefinitely.
	opTimeout = 10 * time.Second
	// navTimeout bounds full page loads.
	navTimeout = 45 * time.Second
)

// Options configures the launched browser.
type Options struct {
	Headless  bool
	UserAgent string
}

// Launch starts a Chrome instance and returns a Session bound to it. The
// returned session owns the browser process; Close terminates it.
func Launch(ctx context.Context, opts Options) (Session, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if !opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("start-maximized", true))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	s := &chromeSession{
		ctx:     browserCtx,
		cancels: []context.CancelFunc{browserCancel, allocCancel},
	}

	// Startup probe: a browser that cannot reach about:blank will not get
	// better, so fail launch instead of failing the first real navigation.
	probeCtx, probeCancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer probeCancel()
	if err := chromedp.Run(probeCtx, chromedp.Navigate("about:blank")); err != nil {
		s.Close()
		return nil, fmt.Errorf("browser failed startup probe: %w", err)
	}

	log.Debug().Bool("headless", opts.Headless).Msg("browser launched")
	return s, nil
}

type chromeSession struct {
	ctx       context.Context
	cancels   []context.CancelFunc
	closeOnce sync.Once
}

// run executes chromedp actions on the session's browser context while
// honoring the caller's context for cancellation and applying timeout when
// it is non-zero.
func (s *chromeSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if timeout > 0 {
		var tcancel context.CancelFunc
		runCtx, tcancel = context.WithTimeout(runCtx, timeout)
		defer tcancel()
	}
	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, navTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (s *chromeSession) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	err := s.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &WaitError{Selector: selector, Timeout: timeout}
		}
		return fmt.Errorf("wait for %q: %w", selector, err)
	}
	return nil
}

func (s *chromeSession) Find(ctx context.Context, selector string) (Element, error) {
	els, err := s.FindAll(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("no element matches %q: %w", selector, ErrTimeout)
	}
	return els[0], nil
}

func (s *chromeSession) FindAll(ctx context.Context, selector string) ([]Element, error) {
	var nodes []*cdp.Node
	err := s.run(ctx, opTimeout,
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	els := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		els = append(els, &chromeElement{sess: s, node: n})
	}
	return els, nil
}

func (s *chromeSession) SetValue(ctx context.Context, selector, value string) error {
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return false;
		el.value = %q;
		el.dispatchEvent(new Event("input", {bubbles: true}));
		el.dispatchEvent(new Event("change", {bubbles: true}));
		return true;
	})()`, selector, value)

	var ok bool
	if err := s.run(ctx, opTimeout, chromedp.Evaluate(js, &ok)); err != nil {
		return fmt.Errorf("set value of %q: %w", selector, err)
	}
	if !ok {
		return fmt.Errorf("no element matches %q: %w", selector, ErrTimeout)
	}
	return nil
}

func (s *chromeSession) Location(ctx context.Context) (string, error) {
	var url string
	if err := s.run(ctx, opTimeout, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return url, nil
}

func (s *chromeSession) Close() error {
	s.closeOnce.Do(func() {
		for _, cancel := range s.cancels {
			cancel()
		}
		log.Debug().Msg("browser closed")
	})
	return nil
}

type chromeElement struct {
	sess *chromeSession
	node *cdp.Node
}

// callOn resolves the element's node to a JS object and invokes decl as a
// function with the element bound to `this`, unmarshaling a by-value result
// into out when out is non-nil.
func (e *chromeElement) callOn(ctx context.Context, decl string, out any) error {
	return e.sess.run(ctx, opTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithBackendNodeID(e.node.BackendNodeID).Do(ctx)
		if err != nil {
			return fmt.Errorf("resolve node: %w", err)
		}
		defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(ctx) }()

		res, exc, err := runtime.CallFunctionOn(decl).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		if out != nil && res != nil && res.Value != nil {
			return json.Unmarshal(res.Value, out)
		}
		return nil
	}))
}

func (e *chromeElement) Text(ctx context.Context) (string, error) {
	var text string
	if err := e.callOn(ctx, `function() { return this.innerText; }`, &text); err != nil {
		return "", fmt.Errorf("element text: %w", err)
	}
	return text, nil
}

func (e *chromeElement) HTML(ctx context.Context) (string, error) {
	var html string
	if err := e.callOn(ctx, `function() { return this.outerHTML; }`, &html); err != nil {
		return "", fmt.Errorf("element html: %w", err)
	}
	return html, nil
}

func (e *chromeElement) Attribute(ctx context.Context, name string) (string, error) {
	decl := fmt.Sprintf(`function() { return this.getAttribute(%q) || ""; }`, name)
	var val string
	if err := e.callOn(ctx, decl, &val); err != nil {
		return "", fmt.Errorf("element attribute %q: %w", name, err)
	}
	return val, nil
}

func (e *chromeElement) Find(ctx context.Context, selector string) (Element, error) {
	els, err := e.FindAll(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("no descendant matches %q: %w", selector, ErrTimeout)
	}
	return els[0], nil
}

func (e *chromeElement) FindAll(ctx context.Context, selector string) ([]Element, error) {
	var nodes []*cdp.Node
	err := e.sess.run(ctx, opTimeout,
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.FromNode(e.node), chromedp.AtLeast(0)))
	if err != nil {
		return nil, fmt.Errorf("query %q under node: %w", selector, err)
	}
	els := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		els = append(els, &chromeElement{sess: e.sess, node: n})
	}
	return els, nil
}

// Click uses a script click after scrolling into view. The portal stacks
// floating bars over rows, which intercept synthesized mouse events.
func (e *chromeElement) Click(ctx context.Context) error {
	decl := `function() {
		this.scrollIntoView({block: "center", behavior: "instant"});
		this.click();
	}`
	if err := e.callOn(ctx, decl, nil); err != nil {
		return fmt.Errorf("click: %w", err)
	}
	return nil
}

func (e *chromeElement) SendKeys(ctx context.Context, text string) error {
	err := e.sess.run(ctx, opTimeout,
		chromedp.ActionFunc(func(ctx context.Context) error {
			return dom.Focus().WithBackendNodeID(e.node.BackendNodeID).Do(ctx)
		}),
		chromedp.KeyEventNode(e.node, text),
	)
	if err != nil {
		return fmt.Errorf("send keys: %w", err)
	}
	return nil
}

func (e *chromeElement) Upload(ctx context.Context, path string) error {
	err := e.sess.run(ctx, opTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		return dom.SetFileInputFiles([]string{path}).
			WithBackendNodeID(e.node.BackendNodeID).
			Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}
	return nil
}
