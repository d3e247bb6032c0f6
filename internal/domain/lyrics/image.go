package lyrics

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"

	"golang.org/x/image/draw"
)

const (
	// StatusBarWidth and StatusBarHeight are the logical tray image size in points.
	StatusBarWidth  = 200
	StatusBarHeight = 22

	// StatusBarScale is the pixel density the UI renders the canvas at.
	StatusBarScale = 2.0

	pngDataURLPrefix = "data:image/png;base64,"
)

// ErrInvalidDataURL is returned when the status-bar image payload cannot be decoded.
var ErrInvalidDataURL = errors.New("invalid status bar image data URL")

// StatusBarImage is a PNG ready to be installed as the tray image.
type StatusBarImage struct {
	PNG         []byte
	Width       int // logical points
	Height      int // logical points
	ScaleFactor float64
	// Template images are recolored by the OS for light and dark menu bars.
	Template bool
}

// DecodeStatusBarImage decodes the canvas the UI rendered for the status bar.
// The payload is a base64 PNG, with or without the data URL prefix. Canvases of
// another size are rescaled to the @2x tray size.
func DecodeStatusBarImage(dataURL string) (StatusBarImage, error) {
	if dataURL == "" {
		return StatusBarImage{}, ErrInvalidDataURL
	}

	payload := strings.TrimPrefix(dataURL, pngDataURLPrefix)
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return StatusBarImage{}, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}

	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return StatusBarImage{}, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}

	pixelW := int(StatusBarWidth * StatusBarScale)
	pixelH := int(StatusBarHeight * StatusBarScale)

	out := raw
	if b := img.Bounds(); b.Dx() != pixelW || b.Dy() != pixelH {
		dst := image.NewNRGBA(image.Rect(0, 0, pixelW, pixelH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)

		var buf bytes.Buffer
		if err := png.Encode(&buf, dst); err != nil {
			return StatusBarImage{}, fmt.Errorf("failed to encode status bar image: %w", err)
		}
		out = buf.Bytes()
	}

	return StatusBarImage{
		PNG:         out,
		Width:       StatusBarWidth,
		Height:      StatusBarHeight,
		ScaleFactor: StatusBarScale,
		Template:    true,
	}, nil
}
