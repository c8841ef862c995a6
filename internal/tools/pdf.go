package tools

import (
	"bytes"
	"fmt"
	"strings"

	pdfx "github.com/ledongthuc/pdf"
)

const defaultMaxPages = 20

func isPDF(contentType string, body []byte) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "application/pdf") || bytes.HasPrefix(body, []byte("%PDF-"))
}

// PDFText extracts plain text from the first maxPages pages of a PDF document.
// maxPages <= 0 uses the default.
func PDFText(data []byte, maxPages int) (text string, err error) {
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to parse pdf: %v", r)
		}
	}()

	r, err := pdfx.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	total := r.NumPage()
	var out strings.Builder
	for i := 1; i <= total && i <= maxPages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		txt, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		if t := strings.TrimSpace(txt); t != "" {
			out.WriteString(t)
			out.WriteString("\n\n")
		}
	}

	text = strings.TrimSpace(out.String())
	if text == "" {
		return "", fmt.Errorf("pdf has no extractable text (%d pages)", total)
	}
	return text, nil
}
