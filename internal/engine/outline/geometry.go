package outline

import (
	"image"
	"math"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/MalithGihan/pdfview/internal/engine"
)

type box struct{ x0, y0, x1, y1 float64 }

func (b box) width() float64  { return b.x1 - b.x0 }
func (b box) height() float64 { return b.y1 - b.y0 }

// mediaBox reads the page's MediaBox, following Parent for inherited values.
func mediaBox(page pdf.Value) box {
	for v, depth := page, 0; v.Kind() == pdf.Dict && depth < 32; v, depth = v.Key("Parent"), depth+1 {
		mb := v.Key("MediaBox")
		if mb.Kind() != pdf.Array || mb.Len() != 4 {
			continue
		}
		b := box{mb.Index(0).Float64(), mb.Index(1).Float64(), mb.Index(2).Float64(), mb.Index(3).Float64()}
		if b.x0 > b.x1 {
			b.x0, b.x1 = b.x1, b.x0
		}
		if b.y0 > b.y1 {
			b.y0, b.y1 = b.y1, b.y0
		}
		if b.width() > 0 && b.height() > 0 {
			return b
		}
	}
	return letter
}

// pageGeom maps PDF user space (origin bottom-left) to raster pixels.
type pageGeom struct {
	box   box
	scale float64
	w, h  int
}

func newPageGeom(b box, scale float64) pageGeom {
	return pageGeom{
		box:   b,
		scale: scale,
		w:     int(math.Ceil(b.width() * scale)),
		h:     int(math.Ceil(b.height() * scale)),
	}
}

// fits reports whether the raster is non-empty and at most max pixels. It
// works on the unrounded size so huge boxes cannot overflow int.
func (g pageGeom) fits(max float64) bool {
	w, h := g.box.width()*g.scale, g.box.height()*g.scale
	return w > 0 && h > 0 && w*h <= max
}

func (g pageGeom) point(x, y float64) (int, int) {
	return int(math.Round((x - g.box.x0) * g.scale)), int(math.Round((g.box.y1 - y) * g.scale))
}

func (g pageGeom) rect(x0, y0, x1, y1 float64) image.Rectangle {
	ax, ay := g.point(x0, y0)
	bx, by := g.point(x1, y1)
	return image.Rect(ax, ay, bx, by)
}

// textRuns joins per-glyph text into runs along a baseline.
func textRuns(texts []pdf.Text, g pageGeom) []engine.TextRun {
	var (
		out []engine.TextRun
		cur strings.Builder
		b   image.Rectangle
		y   float64
		end float64
	)
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, engine.TextRun{Text: cur.String(), Bounds: b})
		}
		cur.Reset()
	}
	for i, t := range texts {
		r := g.rect(t.X, t.Y, t.X+t.W, t.Y+t.FontSize)
		gap := t.X - end
		if i == 0 || t.Y != y || gap > t.FontSize || gap < -t.FontSize {
			flush()
			b = r.Canon()
		} else {
			if gap > t.FontSize*0.15 {
				cur.WriteByte(' ')
			}
			b = b.Union(r.Canon())
		}
		cur.WriteString(t.S)
		y, end = t.Y, t.X+t.W
	}
	flush()
	return out
}

// links collects Link annotations with a URI action.
func links(page pdf.Value, g pageGeom) []engine.Link {
	annots := page.Key("Annots")
	var out []engine.Link
	for i := 0; i < annots.Len(); i++ {
		a := annots.Index(i)
		if a.Key("Subtype").Name() != "Link" {
			continue
		}
		uri := a.Key("A").Key("URI")
		if uri.IsNull() {
			continue
		}
		rect := a.Key("Rect")
		if rect.Len() != 4 {
			continue
		}
		out = append(out, engine.Link{
			URI:    uri.Text(),
			Bounds: g.rect(rect.Index(0).Float64(), rect.Index(1).Float64(), rect.Index(2).Float64(), rect.Index(3).Float64()).Canon(),
		})
	}
	return out
}
