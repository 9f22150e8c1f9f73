// Package pdf renders cover-letter text into PDF artifacts and derives
// filesystem-safe document names from job metadata.
package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/phuslu/log"
)

var (
	nonWordRe    = regexp.MustCompile(`[^\w\s-]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	underscoreRe = regexp.MustCompile(`_+`)

	filenameReplacer = strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"|", "_",
		`"`, "",
		"<", "",
		">", "",
		"(", "",
		")", "",
		"[", "",
		"]", "",
		"{", "",
		"}", "",
	)
)

// SanitizeFilename strips or replaces characters that are unsafe in filenames
// and collapses whitespace runs into single underscores.
func SanitizeFilename(text string) string {
	text = filenameReplacer.Replace(text)
	text = nonWordRe.ReplaceAllString(text, "")
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = strings.ReplaceAll(strings.TrimSpace(text), " ", "_")
	text = underscoreRe.ReplaceAllString(text, "_")
	return strings.Trim(text, "_")
}

// DocumentName derives the artifact stem for a posting, without extension.
// The same derivation keys the upload dedup log, so it must stay stable.
func DocumentName(company, jobTitle string) string {
	return SanitizeFilename(company) + "_" + SanitizeFilename(jobTitle)
}

// Builder writes cover-letter PDFs into a fixed output directory.
type Builder struct {
	outputDir string
	signature string
}

// NewBuilder creates the output directory if needed. signature is appended
// after the body, separated by a blank line.
func NewBuilder(outputDir, signature string) (*Builder, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Builder{outputDir: outputDir, signature: signature}, nil
}

// Create renders the cover-letter body into <company>_<title>.pdf and returns
// the written path.
func (b *Builder) Create(company, jobTitle, body string) (string, error) {
	name := DocumentName(company, jobTitle)
	if name == "" {
		return "", fmt.Errorf("empty document name for company %q title %q", company, jobTitle)
	}
	path := filepath.Join(b.outputDir, name+".pdf")

	doc := fpdf.New("P", "mm", "Letter", "")
	doc.SetMargins(20, 20, 20)
	doc.SetAutoPageBreak(true, 20)
	doc.AddPage()
	doc.SetFont("Times", "", 11)

	// fpdf's core fonts are cp1252; translate so quotes and dashes from the
	// model's output survive.
	tr := doc.UnicodeTranslatorFromDescriptor("")

	text := strings.TrimSpace(body)
	if b.signature != "" {
		text += "\n\n" + b.signature
	}

	for i, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if i > 0 {
			doc.Ln(5)
		}
		doc.MultiCell(0, 5.5, tr(para), "", "L", false)
	}

	if err := doc.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	log.Debug().Str("path", path).Msg("cover letter pdf written")
	return path, nil
}

// OutputDir returns the directory artifacts are written to.
func (b *Builder) OutputDir() string {
	return b.outputDir
}
