package normalize

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func encodeJPEG(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestNormalize_PlaceholderIgnoresPixels(t *testing.T) {
	inputs := []string{
		encodePNG(t, 1, 1, color.White),
		encodePNG(t, 32, 16, color.RGBA{200, 10, 10, 255}),
		encodeJPEG(t),
	}

	for _, in := range inputs {
		res, err := Normalize(in)
		require.NoError(t, err)
		assert.Equal(t, Placeholder, res.Description)
	}
}

func TestNormalize_ImageHandle(t *testing.T) {
	res, err := Normalize(encodePNG(t, 32, 16, color.Black))
	require.NoError(t, err)

	assert.Equal(t, "image/png", res.Image.MIMEType)
	assert.Equal(t, 32, res.Image.Width)
	assert.Equal(t, 16, res.Image.Height)
	assert.Greater(t, res.Image.Size, 0)
	assert.NotNil(t, res.Image.Decoded)
}

func TestNormalize_DataURLPrefixEquivalence(t *testing.T) {
	payload := encodePNG(t, 4, 4, color.White)

	plain, err := Normalize(payload)
	require.NoError(t, err)
	prefixed, err := Normalize("data:image/png;base64," + payload)
	require.NoError(t, err)

	assert.Equal(t, plain.Description, prefixed.Description)
	assert.Equal(t, plain.Image.Size, prefixed.Image.Size)
	assert.Equal(t, plain.Image.MIMEType, prefixed.Image.MIMEType)
}

func TestStripDataURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"data:image/png;base64,AAAA", "AAAA"},
		{"AAAA", "AAAA"},
		{"header,AAAA,BBBB", "AAAA,BBBB"},
		{",AAAA", "AAAA"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripDataURL(tt.in), tt.in)
	}
	assert.Equal(t, StripDataURL("data:image/png;base64,AAAA"), StripDataURL("AAAA"))
}

func TestNormalize_DecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		kind error
	}{
		{"not base64", "!!!not-base64!!!", ErrInvalidBase64},
		{"empty after prefix", "data:image/png;base64,", ErrInvalidBase64},
		{"base64 of text", base64.StdEncoding.EncodeToString([]byte("hello waste")), ErrInvalidImage},
		{"truncated png", "iVBORw0KGgo=", ErrInvalidImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Normalize(tt.in)
			require.Error(t, err)
			assert.Nil(t, res)

			var decodeErr *DecodeError
			require.True(t, errors.As(err, &decodeErr))
			assert.True(t, errors.Is(err, tt.kind))
		})
	}
}
