package upload

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amanzav/waterworks/internal/browser/browsertest"
)

// uploadFixture wires a fake session with the home tab, documents control and
// upload form, plus an artifact directory and a fresh store.
type uploadFixture struct {
	sess    *browsertest.Session
	store   *Store
	tracker *Tracker
	input   *browsertest.Node
	submits int
}

func newUploadFixture(t *testing.T, artifacts ...string) *uploadFixture {
	t.Helper()

	lettersDir := t.TempDir()
	for _, name := range artifacts {
		require.NoError(t, os.WriteFile(filepath.Join(lettersDir, name), []byte("%PDF-1.4"), 0o644))
	}

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	f := &uploadFixture{
		sess:  browsertest.New(),
		store: store,
		input: &browsertest.Node{},
	}
	f.tracker = NewTrackerWithWaits(store, lettersDir, Waits{})

	f.sess.Set(selHomeTab, &browsertest.Node{})
	f.sess.Set(selUploadDocs, &browsertest.Node{})
	f.sess.Set(selUploadInner, &browsertest.Node{})
	f.sess.Set(selDocName, &browsertest.Node{})
	f.sess.Set(selDocType, &browsertest.Node{})
	f.sess.Set(selFileInput, f.input)
	f.sess.Set(selSubmitUpload, &browsertest.Node{OnClick: func() { f.submits++ }})
	return f
}

func TestSync_UploadsOnlyPendingAndRecordsSuccesses(t *testing.T) {
	f := newUploadFixture(t, "A.pdf", "B.pdf", "C.pdf")
	require.NoError(t, f.store.Add("A.pdf"))

	f.input.UploadErr = func(path string) error {
		if strings.HasSuffix(path, "C.pdf") {
			return errors.New("chooser rejected file")
		}
		return nil
	}

	stats, err := f.tracker.Sync(context.Background(), f.sess, false)
	require.NoError(t, err)

	assert.Equal(t, Stats{Total: 3, Uploaded: 1, Skipped: 1, Failed: 1}, stats)

	// only the pending files were attempted, in sorted order
	require.Len(t, f.input.Uploads, 2)
	assert.True(t, strings.HasSuffix(f.input.Uploads[0], "B.pdf"))
	assert.True(t, strings.HasSuffix(f.input.Uploads[1], "C.pdf"))

	set := f.store.Load()
	assert.True(t, set["A.pdf"])
	assert.True(t, set["B.pdf"])
	assert.False(t, set["C.pdf"])
}

func TestSync_FillsFormFields(t *testing.T) {
	f := newUploadFixture(t, "Acme_Backend_Developer.pdf")

	stats, err := f.tracker.Sync(context.Background(), f.sess, false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Uploaded)

	assert.Equal(t, "Acme_Backend_Developer", f.sess.Values[selDocName])
	assert.Equal(t, docTypeCoverLetter, f.sess.Values[selDocType])
	assert.Equal(t, 1, f.submits)
}

func TestSync_ForceUploadsAllWithoutRecording(t *testing.T) {
	f := newUploadFixture(t, "A.pdf", "B.pdf")
	require.NoError(t, f.store.Add("A.pdf"))

	stats, err := f.tracker.Sync(context.Background(), f.sess, true)
	require.NoError(t, err)

	assert.Equal(t, Stats{Total: 2, Uploaded: 2, Skipped: 0, Failed: 0}, stats)
	assert.Len(t, f.input.Uploads, 2)

	// the dedup baseline is untouched
	set := f.store.Load()
	assert.Len(t, set, 1)
	assert.True(t, set["A.pdf"])
}

func TestSync_NothingPendingNeedsNoSession(t *testing.T) {
	f := newUploadFixture(t, "A.pdf")
	require.NoError(t, f.store.Add("A.pdf"))

	stats, err := f.tracker.Sync(context.Background(), nil, false)
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 1, Skipped: 1}, stats)
}

func TestSync_FormUnreachableFailsBatch(t *testing.T) {
	f := newUploadFixture(t, "A.pdf")
	f.sess.Remove(selHomeTab)

	_, err := f.tracker.Sync(context.Background(), f.sess, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload form unreachable")
	assert.Empty(t, f.input.Uploads)
}

func TestSync_LostFormBetweenFilesStopsBatch(t *testing.T) {
	f := newUploadFixture(t, "A.pdf", "B.pdf")

	// the first submit tears the page down
	f.sess.Set(selSubmitUpload, &browsertest.Node{OnClick: func() {
		f.sess.Remove(selHomeTab)
	}})

	stats, err := f.tracker.Sync(context.Background(), f.sess, false)
	require.NoError(t, err)

	// A.pdf succeeded and was recorded before the form vanished
	assert.Equal(t, Stats{Total: 2, Uploaded: 1, Skipped: 0, Failed: 0}, stats)
	assert.True(t, f.store.Load()["A.pdf"])
	assert.False(t, f.store.Load()["B.pdf"])
}

func TestStats_ComparesArtifactsAgainstStore(t *testing.T) {
	f := newUploadFixture(t, "A.pdf", "B.pdf", "C.pdf")
	require.NoError(t, f.store.Add("A.pdf"))

	s := f.tracker.Stats()
	assert.Equal(t, Summary{TotalArtifacts: 3, UploadedCount: 1, PendingCount: 2}, s)

	assert.Equal(t, []string{"A.pdf"}, f.tracker.Uploaded())
	assert.Equal(t, []string{"B.pdf", "C.pdf"}, f.tracker.Pending())
}
