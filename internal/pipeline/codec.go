package pipeline

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"
	"strings"

	// Register the decoders for the image formats callers may submit.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// DecodeImage converts an externally supplied image blob into an in-memory
// image. The blob is either bare base64 or a data URI; if a comma is
// present everything up to and including the first comma is discarded
// before decoding. The result is always normalized to a 3-channel RGB
// layout (fully opaque NRGBA).
func DecodeImage(blob string) (image.Image, error) {
	if i := strings.IndexByte(blob, ','); i >= 0 {
		blob = blob[i+1:]
	}

	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, wrapError(KindInvalidImageEncoding, "Image could not be decoded.", fmt.Errorf("base64 decode: %w", err))
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, wrapError(KindInvalidImageEncoding, "Image could not be decoded.", fmt.Errorf("image decode: %w", err))
	}

	return toRGB(img), nil
}

// EncodeVideo base64-encodes raw container bytes for transport. Purely
// mechanical; the bytes are not inspected.
func EncodeVideo(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// toRGB flattens any decoded image onto an opaque NRGBA canvas so every
// downstream consumer sees the same channel layout.
func toRGB(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Opaque() {
		return nrgba
	}

	bounds := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(out, out.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, bounds.Min, draw.Over)
	return out
}
