// Package normalize turns the request's base64 image field into a validated
// image handle and the textual stand-in forwarded to the model.
package normalize

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
)

// Placeholder is forwarded to the prompt instead of pixel content.
const Placeholder = "Image of waste material for analysis"

var (
	ErrEmptyImage    = errors.New("image payload is empty")
	ErrInvalidBase64 = errors.New("image payload is not valid base64")
	ErrInvalidImage  = errors.New("image payload is not a decodable image")
)

// DecodeError wraps ErrInvalidBase64 or ErrInvalidImage with the underlying cause.
type DecodeError struct {
	Kind  error
	Cause error
}

func (e *DecodeError) Error() string {
	if e.Cause == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Cause)
}

func (e *DecodeError) Unwrap() []error {
	return []error{e.Kind, e.Cause}
}

// Image is the opaque handle produced by Normalize.
type Image struct {
	Decoded  image.Image
	MIMEType string
	Size     int
	Width    int
	Height   int
}

// Result pairs the handle with the description sent downstream.
type Result struct {
	Image       Image
	Description string
}

// StripDataURL drops everything up to and including the first comma.
func StripDataURL(raw string) string {
	if i := strings.IndexByte(raw, ','); i != -1 {
		return raw[i+1:]
	}
	return raw
}

// Normalize decodes and structurally validates the payload. Pixel content is
// not inspected beyond what the decoder needs.
func Normalize(raw string) (*Result, error) {
	payload := strings.TrimSpace(StripDataURL(raw))
	if payload == "" {
		return nil, &DecodeError{Kind: ErrInvalidBase64, Cause: ErrEmptyImage}
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, &DecodeError{Kind: ErrInvalidBase64, Cause: err}
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Kind: ErrInvalidImage, Cause: err}
	}

	bounds := img.Bounds()
	return &Result{
		Image: Image{
			Decoded:  img,
			MIMEType: mimetype.Detect(data).String(),
			Size:     len(data),
			Width:    bounds.Dx(),
			Height:   bounds.Dy(),
		},
		Description: Placeholder,
	}, nil
}
