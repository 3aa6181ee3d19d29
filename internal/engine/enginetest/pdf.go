package enginetest

import (
	"bytes"
	"fmt"
	"strconv"
)

// OnePagePDF builds a small valid document with an inherited MediaBox, one
// line of Helvetica text, one stroked rectangle and one URI link.
func OnePagePDF() []byte {
	return OnePagePDFWithMediaBox(0, 0, 612, 792)
}

// OnePagePDFWithMediaBox is OnePagePDF with the given page box.
func OnePagePDFWithMediaBox(x0, y0, x1, y1 float64) []byte {
	content := "BT /F1 24 Tf 72 700 Td (Hello) Tj ET\n0 0 0 RG 72 600 200 50 re S\n"
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [3 0 R] /Count 1 /MediaBox [%s %s %s %s] >>", num(x0), num(y0), num(x1), num(y1)),
		"<< /Type /Page /Parent 2 0 R /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R /Annots [6 0 R] >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", len(content), content),
		"<< /Type /Annot /Subtype /Link /Rect [72 690 200 720] /A << /S /URI /URI (https://example.com/) >> >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

// num formats v as a PDF number, which has no exponent form.
func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
