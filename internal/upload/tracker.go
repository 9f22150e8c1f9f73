package upload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/phuslu/log"

	"github.com/amanzav/waterworks/internal/browser"
)

// Upload form selectors.
const (
	selHomeTab      = "#outerTemplateTabs_overview"
	selUploadDocs   = "[data-pt-classes='tip--default']"
	selUploadInner  = "[class='btn__default--text btn--info  display--flex align--middle']"
	selDocName      = "#docName"
	selDocType      = "#docType"
	selFileInput    = "#fileUpload_docUpload"
	selSubmitUpload = "#submitFileUploadFormBtn"
)

// docTypeCoverLetter is the portal's option value for the cover-letter
// document type.
const docTypeCoverLetter = "66"

// formTimeout bounds waits on the upload form's controls. Uploads are slower
// than plain navigation, so this is generous.
const formTimeout = 15 * time.Second

// Waits are the render-settling delays between form interactions. Zeroed in
// tests.
type Waits struct {
	Fast   time.Duration
	Medium time.Duration
	Slow   time.Duration
}

// DefaultWaits mirrors the portal's observed form latencies.
func DefaultWaits() Waits {
	return Waits{
		Fast:   300 * time.Millisecond,
		Medium: 800 * time.Millisecond,
		Slow:   1500 * time.Millisecond,
	}
}

// Stats summarizes one sync run.
type Stats struct {
	Total    int
	Uploaded int
	Skipped  int
	Failed   int
}

// Summary compares the artifact directory against the persisted set. It is
// read-only and needs no session.
type Summary struct {
	TotalArtifacts int
	UploadedCount  int
	PendingCount   int
}

// Tracker uploads pending artifacts and records successes. Directories are
// explicit constructor parameters; the tracker never reaches into shared
// configuration state.
type Tracker struct {
	store      *Store
	lettersDir string
	waits      Waits
}

// NewTracker returns a Tracker over the given store and artifact directory.
func NewTracker(store *Store, lettersDir string) *Tracker {
	return &Tracker{store: store, lettersDir: lettersDir, waits: DefaultWaits()}
}

// NewTrackerWithWaits returns a Tracker with explicit settle delays.
func NewTrackerWithWaits(store *Store, lettersDir string, waits Waits) *Tracker {
	return &Tracker{store: store, lettersDir: lettersDir, waits: waits}
}

// Artifacts lists the PDF filenames in the artifact directory, sorted.
func (t *Tracker) Artifacts() []string {
	matches, err := filepath.Glob(filepath.Join(t.lettersDir, "*.pdf"))
	if err != nil {
		log.Warn().Err(err).Str("dir", t.lettersDir).Msg("could not list artifacts")
		return nil
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, filepath.Base(m))
	}
	sort.Strings(names)
	return names
}

// Stats reports totals without touching the portal.
func (t *Tracker) Stats() Summary {
	uploaded := t.store.Load()
	artifacts := t.Artifacts()

	done := 0
	for _, name := range artifacts {
		if uploaded[name] {
			done++
		}
	}
	return Summary{
		TotalArtifacts: len(artifacts),
		UploadedCount:  len(uploaded),
		PendingCount:   len(artifacts) - done,
	}
}

// Uploaded returns the persisted filenames, sorted.
func (t *Tracker) Uploaded() []string {
	set := t.store.Load()
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Pending returns artifacts not yet recorded as uploaded, sorted.
func (t *Tracker) Pending() []string {
	uploaded := t.store.Load()
	var names []string
	for _, name := range t.Artifacts() {
		if !uploaded[name] {
			names = append(names, name)
		}
	}
	return names
}

// Reset clears the tracking log.
func (t *Tracker) Reset() error {
	return t.store.Reset()
}

// Sync uploads every pending artifact through the portal's upload form.
// force uploads all artifacts and deliberately records none of them, so the
// original dedup baseline survives a forced run. Each success is persisted
// immediately; a crash loses at most the in-flight file. Per-file failures
// are counted and skipped; losing the upload form between files stops the
// batch with the progress already persisted.
func (t *Tracker) Sync(ctx context.Context, sess browser.Session, force bool) (Stats, error) {
	var stats Stats

	artifacts := t.Artifacts()
	stats.Total = len(artifacts)
	if len(artifacts) == 0 {
		log.Info().Str("dir", t.lettersDir).Msg("no cover letters to upload")
		return stats, nil
	}

	uploaded := t.store.Load()
	var pending []string
	for _, name := range artifacts {
		if force || !uploaded[name] {
			pending = append(pending, name)
		}
	}
	stats.Skipped = stats.Total - len(pending)

	if len(pending) == 0 {
		log.Info().Int("total", stats.Total).Msg("all cover letters already uploaded")
		return stats, nil
	}
	if sess == nil {
		return stats, fmt.Errorf("upload requires an authenticated session")
	}

	if err := t.openUploadForm(ctx, sess); err != nil {
		return stats, fmt.Errorf("upload form unreachable: %w", err)
	}

	for i, name := range pending {
		log.Info().Int("n", i+1).Int("of", len(pending)).Str("file", name).Msg("uploading")

		if err := t.uploadOne(ctx, sess, name); err != nil {
			log.Warn().Err(err).Str("file", name).Msg("upload failed")
			stats.Failed++
			continue
		}
		stats.Uploaded++

		if !force {
			if err := t.store.Add(name); err != nil {
				log.Warn().Err(err).Str("file", name).Msg("could not record upload")
			}
		}

		if i < len(pending)-1 {
			sleepCtx(ctx, t.waits.Fast)
			if err := t.openUploadForm(ctx, sess); err != nil {
				log.Warn().Err(err).Msg("could not return to upload form, stopping batch")
				break
			}
		}
	}
	return stats, nil
}

// openUploadForm walks home tab -> documents -> upload form. It is called
// once before the batch and again between files, since submitting the form
// navigates away from it.
func (t *Tracker) openUploadForm(ctx context.Context, sess browser.Session) error {
	if err := sess.WaitVisible(ctx, selHomeTab, formTimeout); err != nil {
		return fmt.Errorf("home tab: %w", err)
	}
	home, err := sess.Find(ctx, selHomeTab)
	if err != nil {
		return fmt.Errorf("home tab: %w", err)
	}
	if err := home.Click(ctx); err != nil {
		return fmt.Errorf("home tab click: %w", err)
	}
	sleepCtx(ctx, t.waits.Medium)

	if err := sess.WaitVisible(ctx, selUploadDocs, formTimeout); err != nil {
		return fmt.Errorf("upload documents control: %w", err)
	}
	docs, err := sess.Find(ctx, selUploadDocs)
	if err != nil {
		return fmt.Errorf("upload documents control: %w", err)
	}
	if err := docs.Click(ctx); err != nil {
		return fmt.Errorf("upload documents click: %w", err)
	}
	sleepCtx(ctx, t.waits.Fast)

	buttons, err := sess.FindAll(ctx, selUploadInner)
	if err != nil || len(buttons) == 0 {
		return fmt.Errorf("upload button not found: %w", err)
	}
	if err := buttons[0].Click(ctx); err != nil {
		return fmt.Errorf("upload button click: %w", err)
	}
	sleepCtx(ctx, t.waits.Fast)
	return nil
}

// uploadOne fills and submits the form for a single artifact.
func (t *Tracker) uploadOne(ctx context.Context, sess browser.Session, name string) error {
	path, err := filepath.Abs(filepath.Join(t.lettersDir, name))
	if err != nil {
		return fmt.Errorf("resolve %s: %w", name, err)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("artifact missing: %w", err)
	}

	stem := strings.TrimSuffix(name, ".pdf")
	if err := sess.SetValue(ctx, selDocName, stem); err != nil {
		return fmt.Errorf("document name: %w", err)
	}
	if err := sess.SetValue(ctx, selDocType, docTypeCoverLetter); err != nil {
		return fmt.Errorf("document type: %w", err)
	}

	input, err := sess.Find(ctx, selFileInput)
	if err != nil {
		return fmt.Errorf("file input: %w", err)
	}
	if err := input.Upload(ctx, path); err != nil {
		return fmt.Errorf("file input: %w", err)
	}
	sleepCtx(ctx, t.waits.Slow)

	submit, err := sess.Find(ctx, selSubmitUpload)
	if err != nil {
		return fmt.Errorf("submit control: %w", err)
	}
	if err := submit.Click(ctx); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	sleepCtx(ctx, t.waits.Medium)
	return nil
}

// sleepCtx sleeps for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
