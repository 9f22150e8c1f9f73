// Package auth drives the WaterlooWorks login flow: identity, password with a
// bounded retry on wrong credentials, the Duo trust-browser approval, and a
// post-login verification, producing a ready authenticated browser session.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/phuslu/log"

	"github.com/amanzav/waterworks/internal/browser"
)

const loginURL = "https://waterlooworks.uwaterloo.ca/waterloo.htm?action=login"

// Portal selectors for the login flow.
const (
	selUserName     = "#userNameInput"
	selNextButton   = "#nextButton"
	selPassword     = "#passwordInput"
	selSubmitButton = "#submitButton"
	selTrustBrowser = "#trust-browser-button"
	selChallengeNum = ".verification-code"
	selLandmark     = "h1"
)

const landmarkText = "WaterlooWorks"

// maxPasswordAttempts caps password re-entry after wrong-credential bounces.
const maxPasswordAttempts = 3

// AuthError is a terminal authentication failure.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("auth failed: %s", e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Credentials identify the portal user. Password may be empty at construction;
// it is prompted for just in time.
type Credentials struct {
	Username string
	Password string
}

// Timeouts stratifies waits by expected latency. Long covers the
// human-in-the-loop second-factor approval.
type Timeouts struct {
	Poll   time.Duration
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

// DefaultTimeouts mirrors the portal's observed render latencies.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Poll:   250 * time.Millisecond,
		Short:  10 * time.Second,
		Medium: 30 * time.Second,
		Long:   60 * time.Second,
	}
}

// Authenticator runs the login state machine.
type Authenticator struct {
	creds    Credentials
	prompter Prompter
	timeouts Timeouts
	sess     browser.Session
	launch   func(ctx context.Context) (browser.Session, error)
	headless bool
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithSession reuses an existing session instead of launching a browser. The
// authenticator does not close a session it did not create.
func WithSession(s browser.Session) Option {
	return func(a *Authenticator) { a.sess = s }
}

// WithPrompter overrides the interactive prompter.
func WithPrompter(p Prompter) Option {
	return func(a *Authenticator) { a.prompter = p }
}

// WithTimeouts overrides the wait strata.
func WithTimeouts(t Timeouts) Option {
	return func(a *Authenticator) { a.timeouts = t }
}

// WithHeadless controls browser visibility for launched sessions.
func WithHeadless(headless bool) Option {
	return func(a *Authenticator) { a.headless = headless }
}

// New returns an Authenticator for the given credentials.
func New(creds Credentials, opts ...Option) *Authenticator {
	a := &Authenticator{
		creds:    creds,
		prompter: NewStdPrompter(),
		timeouts: DefaultTimeouts(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.launch == nil {
		a.launch = func(ctx context.Context) (browser.Session, error) {
			return browser.Launch(ctx, browser.Options{Headless: a.headless})
		}
	}
	return a
}

// login states. Password retry re-enters statePassword with the attempt
// counter carried in the machine, not by restarting the flow.
type state int

const (
	stateIdentity state = iota
	statePassword
	stateSecondFactor
	stateVerify
	stateReady
)

type passwordOutcome int

const (
	outcomeChallenge passwordOutcome = iota // second-factor challenge rendered
	outcomeBounced                         // back at the identity step: wrong password
	outcomeUnknown                         // neither marker observed in time
)

// Login runs the full flow and returns the authenticated session. On failure
// a session the authenticator launched itself is closed before the error is
// returned; a caller-supplied session is left to its owner.
func (a *Authenticator) Login(ctx context.Context) (browser.Session, error) {
	sess := a.sess
	owns := false
	if sess == nil {
		s, err := a.launch(ctx)
		if err != nil {
			return nil, &AuthError{Reason: "browser launch failed", Err: err}
		}
		sess = s
		owns = true
	}

	sess, err := a.run(ctx, sess)
	if err != nil && owns {
		_ = sess.Close()
		return nil, err
	}
	return sess, err
}

func (a *Authenticator) run(ctx context.Context, sess browser.Session) (browser.Session, error) {
	if err := a.ensureCredentials(); err != nil {
		return sess, err
	}

	st := stateIdentity
	attempts := 0

	for {
		if err := ctx.Err(); err != nil {
			return sess, &AuthError{Reason: "login cancelled", Err: err}
		}

		switch st {
		case stateIdentity:
			if err := a.submitIdentity(ctx, sess); err != nil {
				return sess, err
			}
			st = statePassword

		case statePassword:
			attempts++
			if err := a.submitPassword(ctx, sess); err != nil {
				return sess, err
			}
			outcome, err := a.passwordResult(ctx, sess)
			if err != nil {
				return sess, err
			}
			switch outcome {
			case outcomeBounced:
				log.Warn().Int("attempt", attempts).Msg("password rejected")
				if attempts >= maxPasswordAttempts {
					return sess, &AuthError{Reason: "password attempts exhausted"}
				}
				pw, perr := a.prompter.Password()
				if perr != nil {
					return sess, &AuthError{Reason: "password prompt failed", Err: perr}
				}
				a.creds.Password = pw
			case outcomeUnknown:
				// Lenient by design: a slow render looks the same as success,
				// so proceed rather than fail a good login.
				log.Warn().Msg("password outcome ambiguous, assuming success")
				st = stateSecondFactor
			default:
				st = stateSecondFactor
			}

		case stateSecondFactor:
			if err := a.approveSecondFactor(ctx, sess); err != nil {
				return sess, err
			}
			st = stateVerify

		case stateVerify:
			if err := a.verify(ctx, sess); err != nil {
				return sess, err
			}
			st = stateReady

		case stateReady:
			log.Info().Str("user", a.creds.Username).Msg("login successful")
			return sess, nil
		}
	}
}

func (a *Authenticator) ensureCredentials() error {
	if a.creds.Username == "" {
		u, err := a.prompter.Username()
		if err != nil {
			return &AuthError{Reason: "username prompt failed", Err: err}
		}
		a.creds.Username = strings.TrimSpace(u)
	}
	if a.creds.Username == "" {
		return &AuthError{Reason: "username required"}
	}
	if a.creds.Password == "" {
		pw, err := a.prompter.Password()
		if err != nil {
			return &AuthError{Reason: "password prompt failed", Err: err}
		}
		a.creds.Password = pw
	}
	return nil
}

func (a *Authenticator) submitIdentity(ctx context.Context, sess browser.Session) error {
	if err := sess.Navigate(ctx, loginURL); err != nil {
		return &AuthError{Reason: "login page unreachable", Err: err}
	}
	if err := sess.WaitVisible(ctx, selUserName, a.timeouts.Short); err != nil {
		return &AuthError{Reason: "identity field not found", Err: err}
	}
	return a.fillIdentity(ctx, sess)
}

func (a *Authenticator) fillIdentity(ctx context.Context, sess browser.Session) error {
	field, err := sess.Find(ctx, selUserName)
	if err != nil {
		return &AuthError{Reason: "identity field not found", Err: err}
	}
	if err := field.SendKeys(ctx, a.creds.Username); err != nil {
		return &AuthError{Reason: "identity entry failed", Err: err}
	}
	next, err := sess.Find(ctx, selNextButton)
	if err != nil {
		return &AuthError{Reason: "identity submit control not found", Err: err}
	}
	if err := next.Click(ctx); err != nil {
		return &AuthError{Reason: "identity submit failed", Err: err}
	}
	return nil
}

// submitPassword types and submits the current password. After a bounce the
// portal is back at the identity step, so the identity is re-submitted first
// when that is what is on screen.
func (a *Authenticator) submitPassword(ctx context.Context, sess browser.Session) error {
	if err := sess.WaitVisible(ctx, selPassword, a.timeouts.Short); err != nil {
		if !errors.Is(err, browser.ErrTimeout) {
			return &AuthError{Reason: "password field not found", Err: err}
		}
		if !present(ctx, sess, selUserName) {
			return &AuthError{Reason: "password field not found", Err: err}
		}
		if err := a.fillIdentity(ctx, sess); err != nil {
			return err
		}
		if err := sess.WaitVisible(ctx, selPassword, a.timeouts.Short); err != nil {
			return &AuthError{Reason: "password field not found", Err: err}
		}
	}

	field, err := sess.Find(ctx, selPassword)
	if err != nil {
		return &AuthError{Reason: "password field not found", Err: err}
	}
	if err := field.SendKeys(ctx, a.creds.Password); err != nil {
		return &AuthError{Reason: "password entry failed", Err: err}
	}
	submit, err := sess.Find(ctx, selSubmitButton)
	if err != nil {
		return &AuthError{Reason: "password submit control not found", Err: err}
	}
	if err := submit.Click(ctx); err != nil {
		return &AuthError{Reason: "password submit failed", Err: err}
	}
	return nil
}

// passwordResult polls for the two observable outcomes of a password submit:
// the second-factor challenge rendering, or a bounce back to the identity
// step. Expiry without either is outcomeUnknown.
func (a *Authenticator) passwordResult(ctx context.Context, sess browser.Session) (passwordOutcome, error) {
	deadline := time.Now().Add(a.timeouts.Short)
	for {
		if err := ctx.Err(); err != nil {
			return outcomeUnknown, &AuthError{Reason: "login cancelled", Err: err}
		}
		if present(ctx, sess, selTrustBrowser) || present(ctx, sess, selChallengeNum) {
			return outcomeChallenge, nil
		}
		if present(ctx, sess, selUserName) {
			return outcomeBounced, nil
		}
		if time.Now().After(deadline) {
			return outcomeUnknown, nil
		}
		time.Sleep(a.timeouts.Poll)
	}
}

func (a *Authenticator) approveSecondFactor(ctx context.Context, sess browser.Session) error {
	if codes, err := sess.FindAll(ctx, selChallengeNum); err == nil && len(codes) > 0 {
		if code, terr := codes[0].Text(ctx); terr == nil && strings.TrimSpace(code) != "" {
			a.prompter.Notify("Second-factor code: " + strings.TrimSpace(code))
		}
	}
	a.prompter.Notify("Waiting for second-factor approval on your device...")

	if err := sess.WaitVisible(ctx, selTrustBrowser, a.timeouts.Long); err != nil {
		if errors.Is(err, browser.ErrTimeout) {
			return &AuthError{Reason: "second-factor not approved in time", Err: err}
		}
		return &AuthError{Reason: "second-factor wait failed", Err: err}
	}
	trust, err := sess.Find(ctx, selTrustBrowser)
	if err != nil {
		return &AuthError{Reason: "trust-browser control not found", Err: err}
	}
	if err := trust.Click(ctx); err != nil {
		return &AuthError{Reason: "trust-browser click failed", Err: err}
	}
	return nil
}

// verify waits for the post-login landmark. A missing landmark is accepted
// when the location no longer looks like a login or error page; only an
// unambiguous login/error location is fatal.
func (a *Authenticator) verify(ctx context.Context, sess browser.Session) error {
	deadline := time.Now().Add(a.timeouts.Medium)
	for {
		if err := ctx.Err(); err != nil {
			return &AuthError{Reason: "login cancelled", Err: err}
		}
		if landmarkPresent(ctx, sess) {
			return nil
		}
		if time.Now().After(deadline) {
			break
		}
		time.Sleep(a.timeouts.Poll)
	}

	loc, err := sess.Location(ctx)
	if err != nil {
		return &AuthError{Reason: "login rejected", Err: err}
	}
	lower := strings.ToLower(loc)
	if strings.Contains(lower, "login") || strings.Contains(lower, "error") {
		return &AuthError{Reason: "login rejected"}
	}
	log.Warn().Str("location", loc).Msg("post-login landmark not found, assuming success")
	return nil
}

func landmarkPresent(ctx context.Context, sess browser.Session) bool {
	headings, err := sess.FindAll(ctx, selLandmark)
	if err != nil {
		return false
	}
	for _, h := range headings {
		if text, terr := h.Text(ctx); terr == nil && strings.TrimSpace(text) == landmarkText {
			return true
		}
	}
	return false
}

func present(ctx context.Context, sess browser.Session, selector string) bool {
	els, err := sess.FindAll(ctx, selector)
	return err == nil && len(els) > 0
}
