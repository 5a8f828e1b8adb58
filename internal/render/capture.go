package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ErrEmptyView is returned when there is nothing to capture
var ErrEmptyView = errors.New("view has no content")

const (
	margin     = 24
	lineHeight = 16
)

// Capturer rasterizes a View into a PNG on a white background
type Capturer struct {
	scale int
}

// NewCapturer creates a capturer that upscales the rendered page by scale (min 1)
func NewCapturer(scale int) *Capturer {
	if scale < 1 {
		scale = 1
	}
	return &Capturer{scale: scale}
}

// Capture draws view's text lines and encodes the result as PNG
func (c *Capturer) Capture(view View) ([]byte, error) {
	if view.InvoiceNumber == "" && len(view.Rows) == 0 {
		return nil, ErrEmptyView
	}
	lines := view.Lines()

	face := basicfont.Face7x13
	advance := face.Advance

	width := 2*margin + textWidth*advance
	for _, l := range lines {
		if w := 2*margin + font.MeasureString(face, l).Ceil(); w > width {
			width = w
		}
	}
	height := 2*margin + len(lines)*lineHeight

	page := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(page, page.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  page,
		Src:  image.NewUniform(color.Black),
		Face: face,
	}
	for i, l := range lines {
		d.Dot = fixed.P(margin, margin+(i+1)*lineHeight-3)
		d.DrawString(l)
	}

	var out image.Image = page
	if c.scale > 1 {
		scaled := image.NewRGBA(image.Rect(0, 0, width*c.scale, height*c.scale))
		draw.NearestNeighbor.Scale(scaled, scaled.Bounds(), page, page.Bounds(), draw.Src, nil)
		out = scaled
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}
