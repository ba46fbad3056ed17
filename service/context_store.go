package service

import (
	"errors"
	"unicode/utf8"

	"github.com/tieubaoca/docchat-be/logger"
	"github.com/tieubaoca/docchat-be/types"
	"github.com/tieubaoca/docchat-be/utils"
)

var ErrContextNotLoaded = errors.New("PDF context not loaded")

// ContextStore holds the document text for the lifetime of the process. It is
// written once before the server starts and only read afterwards.
type ContextStore struct {
	text string
	info types.DocumentInfo
}

func NewContextStore(text string, info types.DocumentInfo) *ContextStore {
	return &ContextStore{text: text, info: info}
}

// LoadContextStore extracts the PDF at path. Extraction failures are logged and
// leave the store empty so the server can still start and report the problem
// per request.
func LoadContextStore(extractor *PDFService, path string, log *logger.Logger) *ContextStore {
	text, info, err := extractor.ExtractText(path)
	if err != nil {
		log.Error("Failed to load PDF context", "path", path, "error", err)
		return NewContextStore("", info)
	}
	return NewContextStore(text, info)
}

// Text returns the document, or ErrContextNotLoaded when there is none.
func (s *ContextStore) Text() (string, error) {
	if s == nil || s.text == "" {
		return "", ErrContextNotLoaded
	}
	return s.text, nil
}

func (s *ContextStore) Loaded() bool {
	return s != nil && s.text != ""
}

func (s *ContextStore) Info() types.DocumentInfo {
	if s == nil {
		return types.DocumentInfo{}
	}
	return s.info
}

// Preview returns the first n characters, with "..." appended when the text
// is longer.
func (s *ContextStore) Preview(n int) string {
	if s == nil {
		return ""
	}
	return utils.Truncate(s.text, n)
}

// Length is the document size in characters.
func (s *ContextStore) Length() int {
	if s == nil {
		return 0
	}
	return utf8.RuneCountInString(s.text)
}
