// Package overlay decorates captured frames in place: cursor
// highlight, webcam picture-in-picture, optional time label. Frame
// dimensions and format never change here.
package overlay

import (
	"image"
	"image/draw"

	"github.com/glimlang/glimlang-recorder-dev/pkg/capture"
	"github.com/glimlang/glimlang-recorder-dev/pkg/config"
	"github.com/nfnt/resize"
)

const (
	pipPad    = 12
	pipBorder = 2
)

// Compositor draws the configured overlays. It keeps no per-frame
// state, the caller owns the last cursor position and the prepared
// webcam picture and passes both into Apply.
type Compositor struct {
	conf   config.Overlay
	region capture.Region
}

func New(conf config.Overlay, region capture.Region) *Compositor {
	return &Compositor{conf: conf, region: region}
}

// Apply mutates the frame with the enabled overlays and returns it.
// A nil cursor or picture skips that overlay, it is not an error.
func (c *Compositor) Apply(f *capture.Frame, cur *capture.CursorState, pip *image.RGBA) *capture.Frame {
	if f == nil || f.Image == nil {
		return f
	}
	if c.conf.Cursor.Enabled && cur != nil {
		x := cur.X - c.region.X
		y := cur.Y - c.region.Y
		blendCircle(f.Image, x, y, c.conf.Cursor.Radius, c.conf.Cursor.Color, c.conf.Cursor.Alpha)
	}
	if pip != nil {
		r := c.pipRect(f.Image.Bounds(), pip.Bounds())
		draw.Draw(f.Image, r, pip, pip.Bounds().Min, draw.Src)
	}
	if c.conf.Stamp {
		addLabel(f.Image, 8, 8, timeFormat(f.Ts))
	}
	return f
}

// PreparePip resizes a raw webcam frame to the configured share of the
// capture width and frames it with a border. The result is reused by
// the caller until a fresher webcam frame arrives.
func (c *Compositor) PreparePip(cam *image.RGBA) *image.RGBA {
	if cam == nil {
		return nil
	}
	pct := c.conf.Webcam.WidthPct
	if pct <= 0 {
		pct = 20
	}
	w := c.region.W * pct / 100
	if w < 2 {
		w = 2
	}
	scaled := resize.Resize(uint(w), 0, cam, resize.Lanczos3)
	sb := scaled.Bounds()

	framed := image.NewRGBA(image.Rect(0, 0, sb.Dx()+2*pipBorder, sb.Dy()+2*pipBorder))
	white := image.NewUniform(borderColor)
	draw.Draw(framed, framed.Bounds(), white, image.Point{}, draw.Src)
	draw.Draw(framed, sb.Add(image.Pt(pipBorder, pipBorder)), scaled, sb.Min, draw.Src)
	return framed
}

// pipRect places the picture into the configured corner, clamped to
// the frame.
func (c *Compositor) pipRect(frame, pip image.Rectangle) image.Rectangle {
	w, h := pip.Dx(), pip.Dy()
	var x, y int
	switch c.conf.Webcam.Position {
	case "top-left":
		x, y = frame.Min.X+pipPad, frame.Min.Y+pipPad
	case "top-right":
		x, y = frame.Max.X-w-pipPad, frame.Min.Y+pipPad
	case "bottom-left":
		x, y = frame.Min.X+pipPad, frame.Max.Y-h-pipPad
	default: // bottom-right
		x, y = frame.Max.X-w-pipPad, frame.Max.Y-h-pipPad
	}
	if x < frame.Min.X {
		x = frame.Min.X
	}
	if y < frame.Min.Y {
		y = frame.Min.Y
	}
	return image.Rect(x, y, x+w, y+h)
}

// blendCircle alpha-blends a filled circle into the image, clamped to
// the bounds.
func blendCircle(img *image.RGBA, cx, cy, r int, col config.RGB, alpha float64) {
	if r <= 0 || alpha <= 0 {
		return
	}
	if alpha > 1 {
		alpha = 1
	}
	b := img.Bounds()
	for y := cy - r; y <= cy+r; y++ {
		if y < b.Min.Y || y >= b.Max.Y {
			continue
		}
		for x := cx - r; x <= cx+r; x++ {
			if x < b.Min.X || x >= b.Max.X {
				continue
			}
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy > r*r {
				continue
			}
			i := img.PixOffset(x, y)
			img.Pix[i] = blend(img.Pix[i], col.R, alpha)
			img.Pix[i+1] = blend(img.Pix[i+1], col.G, alpha)
			img.Pix[i+2] = blend(img.Pix[i+2], col.B, alpha)
		}
	}
}

func blend(bg, fg uint8, alpha float64) uint8 {
	return uint8(alpha*float64(fg) + (1-alpha)*float64(bg))
}
