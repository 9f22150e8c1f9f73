package portal

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amanzav/waterworks/internal/browser/browsertest"
)

// fullCycleRow builds a full-cycle board row: title link in the first body
// cell, company in the second.
func fullCycleRow(id, title, company string) *browsertest.Node {
	link := &browsertest.Node{
		TextVal: title,
		Attrs:   map[string]string{"href": "/myAccount/co-op/coop-postings.htm?ck_jobid=" + id},
	}
	return &browsertest.Node{Kids: map[string][]*browsertest.Node{
		"td": {
			{Kids: map[string][]*browsertest.Node{"a": {link}}},
			{Kids: map[string][]*browsertest.Node{selCellText: {{TextVal: company}}}},
			{},
			{},
		},
	}}
}

// directRow builds a direct board row: title link in the header cell,
// company in the third body cell.
func directRow(id, title, company string) *browsertest.Node {
	link := &browsertest.Node{
		TextVal: title,
		Attrs:   map[string]string{"href": "?ck_jobid=" + id},
	}
	return &browsertest.Node{Kids: map[string][]*browsertest.Node{
		"th": {{Kids: map[string][]*browsertest.Node{"a": {link}}}},
		"td": {
			{},
			{},
			{Kids: map[string][]*browsertest.Node{selCellText: {{TextVal: company}}}},
		},
	}}
}

// board wires a fake portal with one matching folder and the given pages of
// rows. currentPage tracks which page the table shows so tests can verify
// rows are consumed before pagination.
type board struct {
	sess        *browsertest.Session
	currentPage int
}

func newBoard(folderLabel string, pages [][]*browsertest.Node) *board {
	b := &board{sess: browsertest.New()}

	var render func(page int)
	render = func(page int) {
		b.currentPage = page
		b.sess.Set(selJobRows, pages[page-1]...)

		if len(pages) == 1 {
			b.sess.Remove(selPagination)
			return
		}
		// first/prev + one li per page + next/last
		items := make([]*browsertest.Node, 0, len(pages)+4)
		items = append(items, &browsertest.Node{}, &browsertest.Node{})
		for i := range pages {
			items = append(items, &browsertest.Node{TextVal: fmt.Sprint(i + 1)})
		}
		next := page + 1
		items = append(items, &browsertest.Node{Kids: map[string][]*browsertest.Node{
			"a": {{OnClick: func() {
				if next <= len(pages) {
					// re-render replaces every row node: old handles are dead
					render(next)
				}
			}}},
		}})
		items = append(items, &browsertest.Node{})
		b.sess.Set(selPagination, &browsertest.Node{Kids: map[string][]*browsertest.Node{"li": items}})
	}

	card := &browsertest.Node{
		TextVal: folderLabel,
		Kids: map[string][]*browsertest.Node{
			"a": {{OnClick: func() { render(1) }}},
		},
	}
	decoy := &browsertest.Node{TextVal: "Applications Submitted (31)"}

	b.sess.OnNavigate = func(url string) error {
		b.sess.Set(selStatCard, decoy, card)
		return nil
	}
	return b
}

func TestForEachJob_PaginationYieldsAllRowsInOrder(t *testing.T) {
	pages := [][]*browsertest.Node{
		{
			fullCycleRow("101", "Backend Developer", "Acme"),
			fullCycleRow("102", "Data Analyst", "Globex"),
			fullCycleRow("103", "QA Engineer", "Initech"),
		},
		{
			fullCycleRow("201", "ML Intern", "Hooli"),
			fullCycleRow("202", "SRE Co-op", "Umbrella"),
		},
	}
	b := newBoard("waterworks (5)", pages)

	var ids []string
	var ordinals []int
	var seenOnPage []int
	n, err := NewCrawler(b.sess).ForEachJob(context.Background(), "waterworks", BoardFullCycle,
		func(ref JobReference) error {
			ids = append(ids, ref.ID)
			ordinals = append(ordinals, ref.Ordinal)
			seenOnPage = append(seenOnPage, b.currentPage)
			require.NotNil(t, ref.TitleLink)
			return nil
		})

	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []string{"101", "102", "103", "201", "202"}, ids)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, ordinals)
	// Every row was visited while its own page was still rendered.
	assert.Equal(t, []int{1, 1, 1, 2, 2}, seenOnPage)
}

func TestForEachJob_FolderNotFound(t *testing.T) {
	b := newBoard("some other folder", [][]*browsertest.Node{{}})

	_, err := NewCrawler(b.sess).ForEachJob(context.Background(), "waterworks", BoardFullCycle,
		func(JobReference) error { return nil })

	var navErr *NavigationError
	require.ErrorAs(t, err, &navErr)
	assert.Equal(t, "waterworks", navErr.Folder)
}

func TestForEachJob_FolderMatchIsCaseInsensitiveSubstring(t *testing.T) {
	b := newBoard("My WATERWORKS Shortlist (2)", [][]*browsertest.Node{
		{fullCycleRow("7", "Dev", "Acme")},
	})

	n, err := NewCrawler(b.sess).ForEachJob(context.Background(), "waterworks", BoardFullCycle,
		func(JobReference) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestForEachJob_MalformedRowSkipped(t *testing.T) {
	broken := &browsertest.Node{Kids: map[string][]*browsertest.Node{
		"td": {{}, {}, {}, {}}, // no title link anywhere
	}}
	b := newBoard("waterworks", [][]*browsertest.Node{
		{fullCycleRow("1", "Dev", "Acme"), broken, fullCycleRow("3", "Ops", "Globex")},
	})

	var ids []string
	n, err := NewCrawler(b.sess).ForEachJob(context.Background(), "waterworks", BoardFullCycle,
		func(ref JobReference) error {
			ids = append(ids, ref.ID)
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"1", "3"}, ids)
}

func TestForEachJob_DirectBoardLayout(t *testing.T) {
	b := newBoard("waterworks", [][]*browsertest.Node{
		{directRow("55", "Embedded Co-op", "Wayne Enterprises")},
	})

	var got JobReference
	n, err := NewCrawler(b.sess).ForEachJob(context.Background(), "waterworks", BoardDirect,
		func(ref JobReference) error {
			got = ref
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "55", got.ID)
	assert.Equal(t, "Embedded Co-op", got.Title)
	assert.Equal(t, "Wayne Enterprises", got.Company)
}

func TestForEachJob_MissingCompanyCellDefaults(t *testing.T) {
	link := &browsertest.Node{TextVal: "Dev", Attrs: map[string]string{"href": "?id=9"}}
	row := &browsertest.Node{Kids: map[string][]*browsertest.Node{
		"td": {
			{Kids: map[string][]*browsertest.Node{"a": {link}}},
			{}, // no ellipsis span
			{},
			{},
		},
	}}
	b := newBoard("waterworks", [][]*browsertest.Node{{row}})

	var got JobReference
	_, err := NewCrawler(b.sess).ForEachJob(context.Background(), "waterworks", BoardFullCycle,
		func(ref JobReference) error {
			got = ref
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, cellUnavailable, got.Company)
}

func TestPageCount_MalformedPaginationDefaultsToOne(t *testing.T) {
	sess := browsertest.New()
	c := NewCrawler(sess)

	// absent control
	assert.Equal(t, 1, c.pageCount(context.Background()))

	// too few items to carry any page numbers
	sess.Set(selPagination, &browsertest.Node{Kids: map[string][]*browsertest.Node{
		"li": {{}, {}, {}},
	}})
	assert.Equal(t, 1, c.pageCount(context.Background()))
}
