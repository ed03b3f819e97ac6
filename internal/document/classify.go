package document

import (
	"strings"

	"receiptbook/internal"
)

// MinTextChars is the trimmed first-page text length above which a PDF is
// considered text-bearing.
const MinTextChars = 50

type Route string

const (
	RouteText   Route = "text"
	RouteVision Route = "vision"
	RouteHTML   Route = "html"
)

type Classifier struct {
	MinTextChars int
}

func NewClassifier() Classifier {
	return Classifier{MinTextChars: MinTextChars}
}

// IsTextBearing opens only the first page of a PDF and checks that its text
// layer is long enough to be worth a text prompt. Parse errors count as false.
func (c Classifier) IsTextBearing(content []byte, ext string) bool {
	if KindOf(ext, "", content) != KindPDF {
		return false
	}
	text, err := pdfText(content, 1)
	if err != nil {
		return false
	}
	return len([]rune(strings.TrimSpace(text))) > c.threshold()
}

func (c Classifier) Route(doc internal.Document) Route {
	switch KindOf(doc.Ext, doc.ContentType, doc.Content) {
	case KindHTML:
		return RouteHTML
	case KindPDF:
		if c.IsTextBearing(doc.Content, "pdf") {
			return RouteText
		}
	}
	return RouteVision
}

func (c Classifier) threshold() int {
	if c.MinTextChars <= 0 {
		return MinTextChars
	}
	return c.MinTextChars
}
