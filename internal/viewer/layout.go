package viewer

import (
	"image"

	"golang.org/x/image/draw"
)

type Viewport struct {
	Width, Height int
}

func (vp Viewport) Rect() image.Rectangle { return image.Rect(0, 0, vp.Width, vp.Height) }

// Center returns where a page of the given size goes in vp. A page larger
// than the viewport starts at the edge and is clipped.
func Center(page image.Point, vp Viewport) image.Point {
	x := (vp.Width - page.X) / 2
	y := (vp.Height - page.Y) / 2
	return image.Pt(max(x, 0), max(y, 0))
}

// Compose draws the current page centered in a viewport-sized image. Without
// a rendered page the result is fully transparent.
func (v *Viewer) Compose(vp Viewport) *image.RGBA {
	dst := image.NewRGBA(vp.Rect())
	surf := v.Snapshot().Surface
	if surf.Empty() {
		return dst
	}
	src := surf.Image
	at := Center(src.Bounds().Size(), vp)
	r := image.Rectangle{Min: at, Max: at.Add(src.Bounds().Size())}
	draw.Draw(dst, r, src, src.Bounds().Min, draw.Src)
	return dst
}
