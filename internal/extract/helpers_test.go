package extract_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"

	"receiptbook/internal"
	"receiptbook/internal/llm"
)

type stubChat struct {
	reply    string
	err      error
	requests []llm.ChatRequest
}

func (s *stubChat) Chat(_ context.Context, req llm.ChatRequest) (string, error) {
	s.requests = append(s.requests, req)
	return s.reply, s.err
}

type fakeStrategy struct {
	name  internal.Strategy
	raw   internal.RawFields
	err   error
	calls int
	docs  []internal.Document
}

func (f *fakeStrategy) Name() internal.Strategy { return f.name }

func (f *fakeStrategy) Extract(_ context.Context, doc internal.Document) (internal.RawFields, error) {
	f.calls++
	f.docs = append(f.docs, doc)
	return f.raw, f.err
}

func pngBytes() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.Black)
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
