package pdf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Acme Corp", "Acme_Corp"},
		{"slashes and colons", "R/D: Platform", "R_D_Platform"},
		{"brackets dropped", "Intern (Fall) [Remote]", "Intern_Fall_Remote"},
		{"punctuation stripped", "C++ Developer!", "C_Developer"},
		{"whitespace collapsed", "  Data   Science \t Co ", "Data_Science_Co"},
		{"underscore runs", "a__b///c", "a_b_c"},
		{"edges trimmed", "(Acme)", "Acme"},
		{"empty", "***", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.in))
		})
	}
}

func TestDocumentName(t *testing.T) {
	assert.Equal(t, "Acme_Corp_Backend_Developer", DocumentName("Acme Corp", "Backend Developer"))
	assert.Equal(t, "Shopify_Dev_Intern_Fall", DocumentName("Shopify", "Dev Intern (Fall)"))
}

func TestBuilder_CreateWritesPDF(t *testing.T) {
	dir := t.TempDir()
	b, err := NewBuilder(dir, "Sincerely,\nA. Mansour")
	require.NoError(t, err)

	path, err := b.Create("Acme Corp", "Backend Developer", "Dear Hiring Manager,\n\nI am writing to apply.")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Acme_Corp_Backend_Developer.pdf"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, len(raw) > 0)
	assert.Equal(t, "%PDF", string(raw[:4]))
}

func TestBuilder_CreateRejectsEmptyName(t *testing.T) {
	b, err := NewBuilder(t.TempDir(), "")
	require.NoError(t, err)

	_, err = b.Create("***", "???", "body")
	require.Error(t, err)
}

func TestNewBuilder_CreatesNestedDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "letters", "out")
	b, err := NewBuilder(dir, "")
	require.NoError(t, err)

	_, err = b.Create("Acme", "Intern", "Hello.")
	require.NoError(t, err)
	assert.Equal(t, dir, b.OutputDir())
}
