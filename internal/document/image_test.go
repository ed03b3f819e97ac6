package document

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"testing"
)

func sampleImage() image.Image {
	img := image.NewPaletted(image.Rect(0, 0, 4, 4), color.Palette{color.White, color.Black})
	img.SetColorIndex(1, 1, 1)
	return img
}

func TestPrepareImagePassesPNGThrough(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, sampleImage()); err != nil {
		t.Fatal(err)
	}
	out, err := PrepareImage(buf.Bytes(), "png", "image/png")
	if err != nil {
		t.Fatal(err)
	}
	if out.MIMEType != "image/png" || !bytes.Equal(out.Data, buf.Bytes()) {
		t.Fatalf("png should pass through unchanged, got %s", out.MIMEType)
	}
}

func TestPrepareImageConvertsGIF(t *testing.T) {
	var buf bytes.Buffer
	if err := gif.Encode(&buf, sampleImage(), nil); err != nil {
		t.Fatal(err)
	}
	out, err := PrepareImage(buf.Bytes(), "gif", "")
	if err != nil {
		t.Fatal(err)
	}
	if out.MIMEType != "image/png" {
		t.Fatalf("mime=%s", out.MIMEType)
	}
	if _, err := png.Decode(bytes.NewReader(out.Data)); err != nil {
		t.Fatalf("output is not png: %v", err)
	}
}

func TestPrepareImageRejectsUnknown(t *testing.T) {
	if _, err := PrepareImage([]byte("plain text"), "txt", ""); err == nil {
		t.Fatal("expected error")
	}
	if _, err := PrepareImage(nil, "png", ""); err == nil {
		t.Fatal("expected error for empty content")
	}
	if _, err := PrepareImage([]byte("<html></html>"), "html", ""); err == nil {
		t.Fatal("expected error for html")
	}
}

func TestKindOf(t *testing.T) {
	heic := append([]byte{0, 0, 0, 24}, []byte("ftypheic")...)
	cases := []struct {
		ext, ct string
		content []byte
		want    Kind
	}{
		{ext: ".PDF", want: KindPDF},
		{ext: "jpeg", want: KindImage},
		{ext: "heic", want: KindImage},
		{ext: "htm", want: KindHTML},
		{ct: "application/pdf", want: KindPDF},
		{content: []byte("%PDF-1.7\n"), want: KindPDF},
		{content: heic, want: KindImage},
		{content: []byte("just words"), want: KindUnknown},
	}
	for _, tc := range cases {
		if got := KindOf(tc.ext, tc.ct, tc.content); got != tc.want {
			t.Fatalf("KindOf(%q,%q)=%s want %s", tc.ext, tc.ct, got, tc.want)
		}
	}
}
