package extract

import (
	"bytes"
	"image"
	"image/png"
)

func pngImage() []byte {
	var buf bytes.Buffer
	_ = png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2)))
	return buf.Bytes()
}
