package service

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/tieubaoca/docchat-be/logger"
	"github.com/tieubaoca/docchat-be/types"
)

// ErrNoContent is returned when a PDF yields no text at all.
var ErrNoContent = errors.New("no text content extracted")

var (
	multiSpace     = regexp.MustCompile(`[ \t]{2,}`)
	manyLineBreaks = regexp.MustCompile(`\n{3,}`)
)

// PDFService extracts the plain text of a PDF file
type PDFService struct {
	logger *logger.Logger
}

func NewPDFService(log *logger.Logger) *PDFService {
	return &PDFService{logger: log.With("component", "PDFService")}
}

// ExtractText reads every page of the PDF at filePath and returns the cleaned
// text of the pages that have any, joined by newlines.
func (s *PDFService) ExtractText(filePath string) (string, types.DocumentInfo, error) {
	info := types.DocumentInfo{Source: filePath}
	pages, total, err := s.readPages(filePath)
	info.TotalPages = total
	if err != nil {
		return "", info, err
	}

	var texts []string
	for _, page := range pages {
		if cleaned := cleanText(page); cleaned != "" {
			texts = append(texts, cleaned)
		}
	}
	info.TextPages = len(texts)
	if len(texts) == 0 {
		return "", info, fmt.Errorf("%s: %w", filePath, ErrNoContent)
	}

	text := strings.Join(texts, "\n")
	info.Length = len([]rune(text))
	s.logger.Info("Extracted PDF text", "path", filePath, "pages", total, "textPages", info.TextPages, "length", info.Length)
	return text, info, nil
}

// readPages returns the raw text of each page. The pdf package panics on some
// malformed inputs; that is reported as an error.
func (s *PDFService) readPages(filePath string) (pages []string, total int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to parse PDF %s: %v", filePath, r)
		}
	}()

	file, reader, err := pdf.Open(filePath)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer file.Close()

	total = reader.NumPage()
	for pageNum := 1; pageNum <= total; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			s.logger.Warn("Failed to extract text from page", "page", pageNum, "error", err)
			continue // Skip failed pages instead of returning error
		}
		pages = append(pages, text)
	}
	return pages, total, nil
}

func cleanText(text string) string {
	replacements := map[string]string{
		"\u0000": "",   // Null character
		"\ufffd": "",   // Unicode replacement character
		"\u001b": "",   // Escape character
		"\r":     "",   // Carriage return
		"\f":     "\n", // Form feed to newline
		"\uf8ff": "",   // Apple logo
		"‡":      "",   // Double dagger
		"†":      "",   // Dagger
	}
	cleaned := text
	for old, new := range replacements {
		cleaned = strings.ReplaceAll(cleaned, old, new)
	}
	cleaned = multiSpace.ReplaceAllString(cleaned, " ")
	cleaned = manyLineBreaks.ReplaceAllString(cleaned, "\n\n")

	return strings.TrimSpace(cleaned)
}
