package letters

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/phuslu/log"

	"github.com/amanzav/waterworks/internal/pdf"
)

// Manager drives generation end to end for one posting: skip if the artifact
// already exists, generate the text, render the PDF.
type Manager struct {
	generator *Generator
	builder   *pdf.Builder
}

// NewManager returns a Manager writing artifacts through builder.
func NewManager(generator *Generator, builder *pdf.Builder) *Manager {
	return &Manager{generator: generator, builder: builder}
}

// Exists reports whether the artifact for this posting is already on disk.
func (m *Manager) Exists(company, jobTitle string) bool {
	name := pdf.DocumentName(company, jobTitle)
	if name == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(m.builder.OutputDir(), name+".pdf"))
	return err == nil
}

// GenerateAndSave produces the artifact for a posting. It returns false with
// a nil error when the artifact already exists and force is unset.
func (m *Manager) GenerateAndSave(ctx context.Context, company, jobTitle, jobDescription string, force bool) (bool, error) {
	if !force && m.Exists(company, jobTitle) {
		log.Debug().Str("company", company).Str("title", jobTitle).
			Msg("cover letter already exists, skipping")
		return false, nil
	}

	body, err := m.generator.Generate(ctx, company, jobTitle, jobDescription)
	if err != nil {
		return false, fmt.Errorf("generate cover letter: %w", err)
	}
	if strings.TrimSpace(body) == "" {
		return false, fmt.Errorf("provider returned empty cover letter")
	}

	words := len(strings.Fields(body))
	log.Info().Str("company", company).Str("title", jobTitle).Int("words", words).
		Msg("cover letter generated")

	if _, err := m.builder.Create(company, jobTitle, body); err != nil {
		return false, fmt.Errorf("save cover letter: %w", err)
	}
	return true, nil
}
