package parser

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"knowledge-scout/internal/models"

	"github.com/ledongthuc/pdf"
)

// Format is the extraction strategy chosen from a filename suffix.
type Format int

const (
	FormatUnknown Format = iota
	FormatText
	FormatPDF
	FormatWord
	FormatMarkdown
	FormatHTML
	FormatSlides
	FormatSpreadsheet
)

var formatNames = map[Format]string{
	FormatUnknown:     "unknown",
	FormatText:        "text",
	FormatPDF:         "pdf",
	FormatWord:        "word",
	FormatMarkdown:    "markdown",
	FormatHTML:        "html",
	FormatSlides:      "slides",
	FormatSpreadsheet: "spreadsheet",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// DetectFormat maps a filename suffix to a Format. Matching is case-insensitive.
func DetectFormat(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt":
		return FormatText
	case ".pdf":
		return FormatPDF
	case ".docx", ".doc":
		return FormatWord
	case ".md", ".markdown":
		return FormatMarkdown
	case ".html", ".htm":
		return FormatHTML
	case ".pptx":
		return FormatSlides
	case ".xlsx":
		return FormatSpreadsheet
	default:
		return FormatUnknown
	}
}

// Extract returns the plain text of an uploaded file. Errors are typed
// input errors: ErrUnsupportedFormat, ErrUndecodableText or ErrCorruptDocument.
// An empty string with a nil error means the document had no text.
func Extract(ctx context.Context, filename string, data []byte) (string, error) {
	op := "extract " + filename
	format := DetectFormat(filename)

	var (
		text string
		err  error
	)
	switch format {
	case FormatUnknown:
		return "", models.InputError(op, fmt.Errorf("%w: %q", models.ErrUnsupportedFormat, filepath.Ext(filename)))
	case FormatText:
		return parseText(data, op)
	case FormatPDF:
		text, err = parsePDF(ctx, data)
	case FormatWord:
		text, err = parseDOCX(data)
	case FormatMarkdown:
		text, err = parseMarkdown(data)
	case FormatHTML:
		text, err = parseHTML(data)
	case FormatSlides:
		text, err = parsePPTX(data)
	case FormatSpreadsheet:
		text, err = parseXLSX(data)
	default:
		return "", models.InternalError(op, fmt.Errorf("no extractor for %s", format))
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", models.InternalError(op, ctxErr)
		}
		return "", models.InputError(op, fmt.Errorf("%w: %v", models.ErrCorruptDocument, err))
	}
	return text, nil
}

func parseText(data []byte, op string) (string, error) {
	if !utf8.Valid(data) {
		return "", models.InputError(op, models.ErrUndecodableText)
	}
	return string(data), nil
}

func parsePDF(ctx context.Context, data []byte) (text string, err error) {
	// the pdf package panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to read pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var content strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to read page %d: %w", i, err)
		}
		content.WriteString(pageText)
		content.WriteString("\n")
	}
	return content.String(), nil
}
