package document

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"net/http"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// renderDPI balances legibility of small receipt print against payload size.
const renderDPI = 150.0

// PreparedImage is what a vision model receives.
type PreparedImage struct {
	Data     []byte
	MIMEType string
}

// PrepareImage turns a document into an image a vision model accepts:
// PDFs render their first page, HEIC/HEIF and other decodable formats are
// re-encoded as PNG, JPEG, PNG and WebP pass through untouched.
func PrepareImage(content []byte, ext, contentType string) (PreparedImage, error) {
	if len(content) == 0 {
		return PreparedImage{}, fmt.Errorf("empty document")
	}

	switch KindOf(ext, contentType, content) {
	case KindPDF:
		data, err := pdfToPNG(content)
		if err != nil {
			return PreparedImage{}, fmt.Errorf("converting PDF to image: %w", err)
		}
		return PreparedImage{Data: data, MIMEType: "image/png"}, nil
	case KindHTML:
		return PreparedImage{}, fmt.Errorf("html documents have no image form")
	}

	if isHEIC(content) || isHEICName(ext, contentType) {
		img, err := heic.Decode(bytes.NewReader(content))
		if err != nil {
			return PreparedImage{}, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		data, err := encodePNG(img)
		if err != nil {
			return PreparedImage{}, err
		}
		return PreparedImage{Data: data, MIMEType: "image/png"}, nil
	}

	sniffed := http.DetectContentType(content)
	if sniffed == "image/jpeg" || sniffed == "image/png" || sniffed == "image/webp" {
		return PreparedImage{Data: content, MIMEType: sniffed}, nil
	}

	img, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return PreparedImage{}, fmt.Errorf("unsupported image format %q: %w", sniffed, err)
	}
	data, err := encodePNG(img)
	if err != nil {
		return PreparedImage{}, err
	}
	return PreparedImage{Data: data, MIMEType: "image/png"}, nil
}

func pdfToPNG(content []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(content)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	// Receipts are almost always a single page.
	img, err := doc.ImageDPI(0, renderDPI)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return encodePNG(img)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// isHEIC checks the ftyp box brand of ISO-BMFF files.
func isHEIC(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}

func isHEICName(ext, contentType string) bool {
	e := NormalizeExt(ext)
	ct := strings.ToLower(contentType)
	return e == "heic" || e == "heif" || strings.Contains(ct, "heic") || strings.Contains(ct, "heif")
}
