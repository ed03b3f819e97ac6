package document

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	pdf "github.com/ledongthuc/pdf"

	"receiptbook/internal/util"
)

// ExtractText returns the text layer of every page of a PDF joined by
// newlines. Any failure yields "".
func ExtractText(content []byte) string {
	text, err := pdfText(content, 0)
	if err != nil {
		return ""
	}
	return text
}

// pdfText reads up to maxPages pages (0 means all). The PDF reader panics on
// some malformed inputs, so panics are turned into errors.
func pdfText(content []byte, maxPages int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	pages := r.NumPage()
	if maxPages > 0 && pages > maxPages {
		pages = maxPages
	}

	parts := make([]string, 0, pages)
	for i := 1; i <= pages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			parts = append(parts, "")
			continue
		}
		pageText, err := p.GetPlainText(nil)
		if err != nil {
			pageText = ""
		}
		parts = append(parts, pageText)
	}
	return strings.TrimSpace(strings.Join(parts, "\n")), nil
}

// ExtractHTMLText flattens an HTML e-receipt into newline separated text.
func ExtractHTMLText(content []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return ""
	}
	doc.Find("script,style,head,noscript").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("td,th").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})
	doc.Find("p,div,tr,li,h1,h2,h3,h4,h5,h6,table").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	lines := strings.Split(doc.Text(), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = util.NormalizeSpaces(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
