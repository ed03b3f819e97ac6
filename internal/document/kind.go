package document

import (
	"net/http"
	"strings"
)

type Kind string

const (
	KindPDF     Kind = "pdf"
	KindHTML    Kind = "html"
	KindImage   Kind = "image"
	KindUnknown Kind = "unknown"
)

var imageExts = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {}, "gif": {}, "webp": {}, "heic": {}, "heif": {},
}

// NormalizeExt lower-cases an extension and drops the leading dot.
func NormalizeExt(ext string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
}

// KindOf resolves a document kind from its declared extension, falling back
// to the content type and finally to content sniffing.
func KindOf(ext, contentType string, content []byte) Kind {
	switch e := NormalizeExt(ext); {
	case e == "pdf":
		return KindPDF
	case e == "html" || e == "htm":
		return KindHTML
	case isImageExt(e):
		return KindImage
	}

	ct := strings.ToLower(strings.TrimSpace(contentType))
	if ct == "" && len(content) > 0 {
		ct = http.DetectContentType(content)
	}
	switch {
	case strings.HasPrefix(ct, "application/pdf"):
		return KindPDF
	case strings.HasPrefix(ct, "text/html"):
		return KindHTML
	case strings.HasPrefix(ct, "image/"):
		return KindImage
	}
	if isHEIC(content) {
		return KindImage
	}
	return KindUnknown
}

func isImageExt(ext string) bool {
	_, ok := imageExts[ext]
	return ok
}
