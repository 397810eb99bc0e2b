package pipeline

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestDecodeImage(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}
	encoded := encodePNG(t, src)

	tests := []struct {
		name string
		blob string
	}{
		{name: "bare base64", blob: encoded},
		{name: "data URI prefix stripped", blob: "data:image/png;base64," + encoded},
		{name: "anything before first comma discarded", blob: "whatever," + encoded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := DecodeImage(tt.blob)
			require.NoError(t, err)
			assert.Equal(t, 4, img.Bounds().Dx())
			assert.Equal(t, 2, img.Bounds().Dy())
		})
	}
}

func TestDecodeImage_Errors(t *testing.T) {
	tests := []struct {
		name string
		blob string
	}{
		{name: "not base64", blob: "!!!"},
		{name: "base64 but not an image", blob: base64.StdEncoding.EncodeToString([]byte("hello"))},
		{name: "empty", blob: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := DecodeImage(tt.blob)
			require.Error(t, err)
			assert.Nil(t, img)
			assert.Equal(t, KindInvalidImageEncoding, KindOf(err))
			assert.Equal(t, "Image could not be decoded.", err.Error())
		})
	}
}

func TestDecodeImage_NormalizesToOpaqueRGB(t *testing.T) {
	// A translucent pixel flattens onto white.
	src := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 0, G: 0, B: 0, A: 0})

	img, err := DecodeImage(encodePNG(t, src))
	require.NoError(t, err)

	nrgba, ok := img.(*image.NRGBA)
	require.True(t, ok)
	assert.True(t, nrgba.Opaque())
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, nrgba.NRGBAAt(0, 0))
}

func TestDecodeImage_JPEG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 8, 8)), nil))

	img, err := DecodeImage(base64.StdEncoding.EncodeToString(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
}

func TestEncodeVideo(t *testing.T) {
	assert.Equal(t, "bXA0LWJ5dGVz", EncodeVideo([]byte("mp4-bytes")))
	assert.Equal(t, "", EncodeVideo(nil))
}
