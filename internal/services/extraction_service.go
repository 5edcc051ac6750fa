package services

import (
	"bytes"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog/log"

	apperrors "textcleaner_go_backend/internal/errors"
)

// ExtractionService dispatches on the filename suffix to a format-specific
// extractor and normalizes every collaborator failure into the error
// taxonomy.
type ExtractionService struct{}

func NewExtractionService() *ExtractionService {
	return &ExtractionService{}
}

var _ TextExtractor = (*ExtractionService)(nil)

// Extract returns the plain text of data. Unknown suffixes fail fast with
// ErrUnsupportedFormat without touching any parser; a document that decodes
// to only whitespace is ErrExtractionFailed. The PDF and DOCX parsers are
// known to panic on some malformed inputs, so the whole call runs under a
// recover guard.
func (s *ExtractionService) Extract(fileName string, data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("file", fileName).Msg("extractor panicked")
			text, err = "", apperrors.ErrExtractionFailed
		}
	}()

	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".txt":
		text = extractTXT(data)
	case ".docx":
		text, err = extractDOCX(data)
	case ".pdf":
		text, err = extractPDF(data)
	default:
		return "", apperrors.ErrUnsupportedFormat
	}

	if err != nil {
		log.Warn().Err(err).Str("file", fileName).Msg("text extraction failed")
		return "", apperrors.ErrExtractionFailed
	}
	if strings.TrimSpace(text) == "" {
		return "", apperrors.ErrExtractionFailed
	}
	return text, nil
}

// extractTXT decodes permissively: invalid UTF-8 sequences are replaced
// with U+FFFD rather than failing the extraction.
func extractTXT(data []byte) string {
	return strings.ToValidUTF8(string(data), string(utf8.RuneError))
}

func extractDOCX(data []byte) (string, error) {
	text, _, err := docconv.ConvertDocx(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	return text, nil
}

// extractPDF validates the document structurally, then walks pages in order
// concatenating their text with newline separators. Pages whose text walk
// fails are skipped, matching the tolerant behavior of the source viewers.
func extractPDF(data []byte) (string, error) {
	if err := api.Validate(bytes.NewReader(data), model.NewDefaultConfiguration()); err != nil {
		return "", err
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var content strings.Builder
	totalPage := r.NumPage()
	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		p := r.Page(pageIndex)
		if p.V.IsNull() {
			continue
		}
		pageText, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		content.WriteString(pageText)
		content.WriteString("\n")
	}
	return content.String(), nil
}
