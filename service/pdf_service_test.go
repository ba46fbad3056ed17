package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tieubaoca/docchat-be/logger"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"control characters", "Travel\u0000 guide\u001b", "Travel guide"},
		{"carriage returns", "line one\r\nline two", "line one\nline two"},
		{"form feed", "page one\fpage two", "page one\npage two"},
		{"collapses spaces", "wide    gap\t\there", "wide gap here"},
		{"collapses blank lines", "a\n\n\n\n\nb", "a\n\nb"},
		{"drops symbols", "Note\u2021 and\u2020 \uf8ff\ufffd", "Note and"},
		{"trims", "  \n padded \n ", "padded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanText(tt.in))
		})
	}
}

func TestPDFService_MissingFile(t *testing.T) {
	svc := NewPDFService(logger.NewNop())

	_, info, err := svc.ExtractText(filepath.Join(t.TempDir(), "nope.pdf"))

	require.Error(t, err)
	assert.Zero(t, info.TotalPages)
}

func TestPDFService_NotAPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.pdf")
	require.NoError(t, os.WriteFile(path, []byte("just some text, not a pdf"), 0o644))

	svc := NewPDFService(logger.NewNop())
	text, _, err := svc.ExtractText(path)

	require.Error(t, err)
	assert.Empty(t, text)
}

func TestPDFService_ExtractText(t *testing.T) {
	svc := NewPDFService(logger.NewNop())

	text, info, err := svc.ExtractText(filepath.Join("testdata", "guide.pdf"))

	require.NoError(t, err)
	assert.Equal(t, "Accessible travel guide\nAirports assist travellers", text)
	assert.Equal(t, 3, info.TotalPages)
	assert.Equal(t, 2, info.TextPages, "the page without text is dropped")
	assert.Equal(t, 50, info.Length)
	assert.Equal(t, filepath.Join("testdata", "guide.pdf"), info.Source)
}

func TestPDFService_NoTextContent(t *testing.T) {
	svc := NewPDFService(logger.NewNop())

	text, info, err := svc.ExtractText(filepath.Join("testdata", "blank.pdf"))

	assert.ErrorIs(t, err, ErrNoContent)
	assert.Empty(t, text)
	assert.Equal(t, 1, info.TotalPages)
	assert.Zero(t, info.TextPages)
}

func TestLoadContextStore_FromPDF(t *testing.T) {
	store := LoadContextStore(NewPDFService(logger.NewNop()), filepath.Join("testdata", "guide.pdf"), logger.NewNop())

	require.True(t, store.Loaded())
	assert.Equal(t, "Accessible travel guide...", store.Preview(23))
	assert.Equal(t, 50, store.Length())
}
