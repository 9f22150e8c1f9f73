// Package extract opens a job's in-page detail panel, waits through its two
// asynchronous render stages, parses the labeled sections, and closes the
// panel again. It never fails the batch: a posting that cannot be extracted
// degrades to a nil record with a logged reason.
package extract

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/phuslu/log"

	"github.com/amanzav/waterworks/internal/browser"
	"github.com/amanzav/waterworks/internal/portal"
)

// Panel selectors.
const (
	selPanel      = ".is--long-form-reading"
	selSection    = ".js--question--container"
	selClosePanel = `[class='btn__default--text btn--default protip']`
)

// NotAvailable is the sentinel stored for a section whose content could not
// be located; the sections map is always fully keyed.
const NotAvailable = "N/A"

// Section keys present in every JobRecord.
const (
	SectionSummary          = "summary"
	SectionResponsibilities = "responsibilities"
	SectionSkills           = "skills"
	SectionAdditionalInfo   = "additional_info"
	SectionLocation         = "employment_location_arrangement"
	SectionTermDuration     = "work_term_duration"
	SectionCompensation     = "compensation_info"
)

// sectionLabels maps the panel's label prefixes to section keys. Order
// matters: the first prefix a container starts with wins and a container
// never populates two keys.
var sectionLabels = []struct {
	Prefix string
	Key    string
}{
	{"Job Summary:", SectionSummary},
	{"Job Responsibilities:", SectionResponsibilities},
	{"Required Skills:", SectionSkills},
	{"Additional Application Information:", SectionAdditionalInfo},
	{"Employment Location Arrangement:", SectionLocation},
	{"Work Term Duration:", SectionTermDuration},
	{"Compensation and Benefits:", SectionCompensation},
}

// descriptionParts lists the sections concatenated into the description, in
// order, with the label each is prefixed by.
var descriptionParts = []struct {
	Key   string
	Label string
}{
	{SectionSummary, "Job Summary:"},
	{SectionResponsibilities, "Responsibilities:"},
	{SectionSkills, "Required Skills:"},
	{SectionAdditionalInfo, "Additional Info:"},
}

// JobRecord is a fully extracted posting. Sections always carries every
// known key; missing content holds NotAvailable.
type JobRecord struct {
	ID          string
	Title       string
	Company     string
	Sections    map[string]string
	Description string
}

// Timeouts for the panel's two render stages and the settle delay between
// the second stage and reading.
type Timeouts struct {
	Panel  time.Duration
	Settle time.Duration
}

// DefaultTimeouts returns the panel wait bounds tuned to the portal.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Panel:  5 * time.Second,
		Settle: 300 * time.Millisecond,
	}
}

// Extractor reads job detail panels within an authenticated session.
type Extractor struct {
	sess     browser.Session
	timeouts Timeouts
}

// NewExtractor returns an Extractor over the given session.
func NewExtractor(sess browser.Session) *Extractor {
	return &Extractor{sess: sess, timeouts: DefaultTimeouts()}
}

// NewExtractorWithTimeouts returns an Extractor with explicit wait bounds.
func NewExtractorWithTimeouts(sess browser.Session, t Timeouts) *Extractor {
	return &Extractor{sess: sess, timeouts: t}
}

// Extract opens ref's detail panel and returns the parsed record, or nil if
// the panel could not be opened or read. The panel close is attempted on
// every exit path so the session is clean for the next row; extraction never
// propagates an error to the caller.
func (e *Extractor) Extract(ctx context.Context, ref portal.JobReference) *JobRecord {
	defer e.closePanel(ctx)

	if ref.TitleLink == nil {
		log.Warn().Str("job_id", ref.ID).Msg("no title element for job")
		return nil
	}
	if err := ref.TitleLink.Click(ctx); err != nil {
		log.Warn().Err(err).Str("job_id", ref.ID).Msg("could not open detail panel")
		return nil
	}

	// The panel root and its section containers populate in two separate
	// async stages; both must be waited for.
	if err := e.sess.WaitVisible(ctx, selPanel, e.timeouts.Panel); err != nil {
		log.Warn().Err(err).Str("job_id", ref.ID).Msg("detail panel did not load")
		return nil
	}
	if err := e.sess.WaitVisible(ctx, selSection, e.timeouts.Panel); err != nil {
		log.Warn().Err(err).Str("job_id", ref.ID).Msg("detail sections did not load")
		return nil
	}
	sleepCtx(ctx, e.timeouts.Settle)

	panel, err := e.sess.Find(ctx, selPanel)
	if err != nil {
		log.Warn().Err(err).Str("job_id", ref.ID).Msg("detail panel vanished")
		return nil
	}
	html, err := panel.HTML(ctx)
	if err != nil {
		log.Warn().Err(err).Str("job_id", ref.ID).Msg("could not read detail panel")
		return nil
	}

	sections, err := ParseSections(html)
	if err != nil {
		log.Warn().Err(err).Str("job_id", ref.ID).Msg("could not parse detail panel")
		return nil
	}

	return &JobRecord{
		ID:          ref.ID,
		Title:       ref.Title,
		Company:     ref.Company,
		Sections:    sections,
		Description: BuildDescription(sections),
	}
}

// ParseSections parses the panel HTML and fills the fixed section map from
// its labeled containers. Containers matching no known prefix are ignored.
func ParseSections(html string) (map[string]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	sections := EmptySections()
	doc.Find(selSection).Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		for _, label := range sectionLabels {
			if strings.HasPrefix(text, label.Prefix) {
				sections[label.Key] = strings.TrimSpace(strings.TrimPrefix(text, label.Prefix))
				break
			}
		}
	})
	return sections, nil
}

// EmptySections returns a sections map with every known key at the sentinel.
func EmptySections() map[string]string {
	sections := make(map[string]string, len(sectionLabels))
	for _, label := range sectionLabels {
		sections[label.Key] = NotAvailable
	}
	return sections
}

// BuildDescription concatenates the description sections in fixed order,
// each prefixed by its label; sentinel sections are skipped.
func BuildDescription(sections map[string]string) string {
	var parts []string
	for i, part := range descriptionParts {
		content := sections[part.Key]
		if content == "" || content == NotAvailable {
			continue
		}
		text := part.Label + "\n" + content
		if i > 0 {
			text = "\n" + text
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n")
}

// closePanel clicks the panel's close control if one is present. Best
// effort: a missing control is not an error, it only matters that the
// attempt happens on every exit path.
func (e *Extractor) closePanel(ctx context.Context) {
	buttons, err := e.sess.FindAll(ctx, selClosePanel)
	if err != nil || len(buttons) == 0 {
		return
	}
	if err := buttons[len(buttons)-1].Click(ctx); err != nil {
		log.Debug().Err(err).Msg("panel close failed")
	}
}

// sleepCtx sleeps for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
