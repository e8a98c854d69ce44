// Package extract pulls plain text out of uploaded patent documents.
package extract

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"patentwatch/internal/logger"
)

// PDFText extracts the text of every page of a PDF, concatenated with
// newline separators. Pages yielding no text are skipped silently. An
// unreadable or empty document is an error; the pipeline is never started
// on empty patent text.
func PDFText(path string) (string, error) {
	if !strings.HasSuffix(strings.ToLower(path), ".pdf") {
		return "", fmt.Errorf("unsupported document type: %s", path)
	}
	f, reader, err := pdf.Open(path)
	if err != nil {
		logger.Log.Errorf("failed to read pdf %s: %v", path, err)
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil || strings.TrimSpace(text) == "" {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("pdf %s contains no extractable text", path)
	}
	return b.String(), nil
}
