// Package portal navigates WaterlooWorks job boards: it locates a saved-jobs
// folder by its stat card, pages through the folder's table, and yields one
// JobReference per row. Enumeration is visitor-style so a row handle is always
// consumed before its page is navigated away from; handles do not survive
// pagination.
package portal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/phuslu/log"

	"github.com/amanzav/waterworks/internal/browser"
)

// Board selects one of the portal's two listing layouts.
type Board string

// Board variants. They differ in root URL and in which cell carries the
// title link.
const (
	BoardFullCycle Board = "full"
	BoardDirect    Board = "direct"
)

// Root URLs per board variant.
const (
	fullCycleURL = "https://waterlooworks.uwaterloo.ca/myAccount/co-op/full/jobs.htm"
	directURL    = "https://waterlooworks.uwaterloo.ca/myAccount/co-op/direct/jobs.htm"
)

// Selectors for the board pages.
const (
	selStatCard   = ".simple--stat-card.border-radius--16.display--flex.flex--column.dist--between"
	selJobRows    = "table.table tbody tr"
	selPagination = ".pagination"
	selCellText   = ".overflow--ellipsis"
)

// cellUnavailable fills a cell whose text could not be read.
const cellUnavailable = "N/A"

// Timeouts for board navigation.
const (
	cardsTimeout = 5 * time.Second
	tableTimeout = 10 * time.Second
)

// NavigationError is a terminal failure to reach a folder or its table.
type NavigationError struct {
	Folder string
	Board  Board
	Cause  error
}

func (e *NavigationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("navigation to folder %q (%s board) failed: %v", e.Folder, e.Board, e.Cause)
	}
	return fmt.Sprintf("navigation to folder %q (%s board) failed", e.Folder, e.Board)
}

func (e *NavigationError) Unwrap() error { return e.Cause }

// JobReference is a lightweight handle to a job row. TitleLink is
// session-scoped and valid only until the next page navigation.
type JobReference struct {
	ID        string
	Title     string
	Company   string
	TitleLink browser.Element
	Ordinal   int
}

// Crawler enumerates job rows within an authenticated session.
type Crawler struct {
	sess browser.Session
}

// NewCrawler returns a Crawler over the given session.
func NewCrawler(sess browser.Session) *Crawler {
	return &Crawler{sess: sess}
}

// ForEachJob opens the named folder on the given board and invokes fn once
// per row, page by page. Rows that cannot be parsed are skipped with a
// warning. fn runs while the row's page is still current, so the reference's
// TitleLink is live inside fn and dead after it returns from the page. A
// non-nil error from fn aborts the walk. Returns the number of rows yielded.
func (c *Crawler) ForEachJob(ctx context.Context, folder string, board Board, fn func(JobReference) error) (int, error) {
	if err := c.openFolder(ctx, folder, board); err != nil {
		return 0, err
	}

	pages := c.pageCount(ctx)
	log.Info().Str("folder", folder).Int("pages", pages).Msg("folder opened")

	total := 0
	for page := 1; page <= pages; page++ {
		refs := c.readRows(ctx, board, total)
		log.Debug().Int("page", page).Int("rows", len(refs)).Msg("page read")

		for _, ref := range refs {
			total++
			if err := fn(ref); err != nil {
				return total, err
			}
		}

		if page < pages {
			if err := c.nextPage(ctx); err != nil {
				return total, &NavigationError{Folder: folder, Board: board, Cause: err}
			}
		}
	}
	return total, nil
}

// openFolder navigates to the board root and clicks through the stat card
// whose label contains folder (case-insensitive, first match wins).
func (c *Crawler) openFolder(ctx context.Context, folder string, board Board) error {
	url := fullCycleURL
	if board == BoardDirect {
		url = directURL
	}
	if err := c.sess.Navigate(ctx, url); err != nil {
		return &NavigationError{Folder: folder, Board: board, Cause: err}
	}
	if err := c.sess.WaitVisible(ctx, selStatCard, cardsTimeout); err != nil {
		return &NavigationError{Folder: folder, Board: board, Cause: err}
	}

	cards, err := c.sess.FindAll(ctx, selStatCard)
	if err != nil {
		return &NavigationError{Folder: folder, Board: board, Cause: err}
	}

	needle := strings.ToLower(folder)
	for _, card := range cards {
		label, terr := card.Text(ctx)
		if terr != nil {
			continue
		}
		if !strings.Contains(strings.ToLower(label), needle) {
			continue
		}
		link, ferr := card.Find(ctx, "a")
		if ferr != nil {
			return &NavigationError{Folder: folder, Board: board, Cause: ferr}
		}
		if cerr := link.Click(ctx); cerr != nil {
			return &NavigationError{Folder: folder, Board: board, Cause: cerr}
		}
		if werr := c.sess.WaitVisible(ctx, selJobRows, tableTimeout); werr != nil {
			return &NavigationError{Folder: folder, Board: board, Cause: werr}
		}
		return nil
	}
	return &NavigationError{Folder: folder, Board: board,
		Cause: fmt.Errorf("no stat card matches %q", folder)}
}

// pageCount derives the page total from the pagination control's child count.
// The control carries four non-page items (first/prev/next/last); a missing
// or malformed control means a single page.
func (c *Crawler) pageCount(ctx context.Context) int {
	pagination, err := c.sess.Find(ctx, selPagination)
	if err != nil {
		return 1
	}
	items, err := pagination.FindAll(ctx, "li")
	if err != nil {
		return 1
	}
	if n := len(items) - 4; n > 1 {
		return n
	}
	return 1
}

// readRows parses the current page's table into references. offset is the
// count of rows already yielded on earlier pages and seeds the ordinals.
func (c *Crawler) readRows(ctx context.Context, board Board, offset int) []JobReference {
	rows, err := c.sess.FindAll(ctx, selJobRows)
	if err != nil {
		log.Warn().Err(err).Msg("could not read job rows")
		return nil
	}

	refs := make([]JobReference, 0, len(rows))
	for i, row := range rows {
		ref, perr := parseRow(ctx, row, board)
		if perr != nil {
			log.Warn().Err(perr).Int("row", i+1).Msg("skipping unparsable row")
			continue
		}
		ref.Ordinal = offset + len(refs) + 1
		refs = append(refs, ref)
	}
	return refs
}

// parseRow extracts a reference from one table row. The direct board keeps
// the title link in the row header cell; the full-cycle board keeps it in
// the first body cell with the company one cell over.
func parseRow(ctx context.Context, row browser.Element, board Board) (JobReference, error) {
	var ref JobReference

	if board == BoardDirect {
		header, err := row.Find(ctx, "th")
		if err != nil {
			return ref, fmt.Errorf("row header cell: %w", err)
		}
		link, err := header.Find(ctx, "a")
		if err != nil {
			return ref, fmt.Errorf("title link: %w", err)
		}
		cells, err := row.FindAll(ctx, "td")
		if err != nil || len(cells) < 3 {
			return ref, fmt.Errorf("expected at least 3 body cells, got %d", len(cells))
		}
		return buildRef(ctx, link, cells[2])
	}

	cells, err := row.FindAll(ctx, "td")
	if err != nil || len(cells) < 4 {
		return ref, fmt.Errorf("expected at least 4 body cells, got %d", len(cells))
	}
	link, err := cells[0].Find(ctx, "a")
	if err != nil {
		return ref, fmt.Errorf("title link: %w", err)
	}
	return buildRef(ctx, link, cells[1])
}

func buildRef(ctx context.Context, link, companyCell browser.Element) (JobReference, error) {
	title, err := link.Text(ctx)
	if err != nil {
		return JobReference{}, fmt.Errorf("title text: %w", err)
	}
	href, err := link.Attribute(ctx, "href")
	if err != nil {
		return JobReference{}, fmt.Errorf("title href: %w", err)
	}
	return JobReference{
		ID:        jobIDFromHref(href),
		Title:     strings.TrimSpace(title),
		Company:   cellText(ctx, companyCell),
		TitleLink: link,
	}, nil
}

// jobIDFromHref pulls the posting id from the link's query string.
func jobIDFromHref(href string) string {
	if i := strings.LastIndex(href, "="); i >= 0 {
		return href[i+1:]
	}
	return ""
}

// cellText reads a table cell's ellipsized text, defaulting when absent.
func cellText(ctx context.Context, cell browser.Element) string {
	inner, err := cell.Find(ctx, selCellText)
	if err != nil {
		return cellUnavailable
	}
	text, err := inner.Text(ctx)
	if err != nil || strings.TrimSpace(text) == "" {
		return cellUnavailable
	}
	return strings.TrimSpace(text)
}

// nextPage clicks the pagination "next" control (second-to-last item) and
// waits for the table to re-render.
func (c *Crawler) nextPage(ctx context.Context) error {
	pagination, err := c.sess.Find(ctx, selPagination)
	if err != nil {
		return fmt.Errorf("pagination control: %w", err)
	}
	items, err := pagination.FindAll(ctx, "li")
	if err != nil {
		return fmt.Errorf("pagination items: %w", err)
	}
	if len(items) < 2 {
		return fmt.Errorf("pagination has %d items, cannot advance", len(items))
	}
	link, err := items[len(items)-2].Find(ctx, "a")
	if err != nil {
		return fmt.Errorf("next-page link: %w", err)
	}
	if err := link.Click(ctx); err != nil {
		return fmt.Errorf("next-page click: %w", err)
	}
	if err := c.sess.WaitVisible(ctx, selJobRows, tableTimeout); err != nil {
		return fmt.Errorf("table after pagination: %w", err)
	}
	return nil
}
