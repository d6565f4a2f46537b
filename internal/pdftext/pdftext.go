// Package pdftext extracts plain text from stored PDF attachments for
// the feature-extraction stage.
package pdftext

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/guidance"
)

const truncationMarker = "\n\n[TRUNCATED]"

// Extractor pulls text out of PDF bytes page by page, capped so that a
// pathological document cannot blow up the model prompt.
type Extractor struct {
	maxPages int
	maxChars int
}

// New constructs an Extractor. Limits of zero disable the respective
// cap; callers validate configuration upstream.
func New(maxPages, maxChars int) *Extractor {
	return &Extractor{maxPages: maxPages, maxChars: maxChars}
}

type pageText struct {
	number int
	text   string
}

// ExtractText renders each page's plain text with page separators.
// Pages that fail to render are skipped rather than failing the whole
// document; scanned pages often yield no text at all.
func (e *Extractor) ExtractText(data []byte) (guidance.TextResult, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return guidance.TextResult{}, fmt.Errorf("open pdf: %w", err)
	}

	total := reader.NumPage()
	pages := total
	if e.maxPages > 0 && pages > e.maxPages {
		pages = e.maxPages
	}

	extracted := make([]pageText, 0, pages)
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		extracted = append(extracted, pageText{number: i, text: text})
	}

	return e.assemble(extracted, total), nil
}

// assemble joins rendered pages with separators and applies the
// character cap. Truncation is flagged whenever pages or characters
// were dropped.
func (e *Extractor) assemble(pages []pageText, total int) guidance.TextResult {
	truncated := e.maxPages > 0 && total > e.maxPages

	var sb strings.Builder
	for _, p := range pages {
		fmt.Fprintf(&sb, "--- Page %d ---\n%s\n\n", p.number, p.text)
		if e.maxChars > 0 && sb.Len() > e.maxChars {
			break
		}
	}

	out := strings.TrimSpace(sb.String())
	if e.maxChars > 0 && len(out) > e.maxChars {
		out = out[:e.maxChars]
		truncated = true
	}
	if truncated {
		out += truncationMarker
	}

	return guidance.TextResult{
		Text:      out,
		PageCount: total,
		Truncated: truncated,
	}
}
