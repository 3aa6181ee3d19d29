package main

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MalithGihan/pdfview/internal/engine/enginetest"
)

func runRender(t *testing.T, args ...string) string {
	t.Helper()
	dir := t.TempDir()
	chdir(t, dir)
	root := filepath.Join(dir, "public")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pdfs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pdfs", "paystub.pdf"), enginetest.OnePagePDF(), 0o644))
	t.Setenv("PDFVIEW_DOCUMENTS_ROOT", root)
	t.Setenv("PDFVIEW_ENGINE_DPI", "72")

	out := filepath.Join(dir, "out", "page1.png")
	cmd := newRootCmd()
	cmd.SetArgs(append([]string{"render", "--out", out}, args...))
	require.NoError(t, cmd.Execute())
	return out
}

func TestRenderCommandWritesViewport(t *testing.T) {
	out := runRender(t, "--file", "/pdfs/paystub.pdf", "--width", "800", "--height", "900")

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 800, img.Bounds().Dx())
	assert.Equal(t, 900, img.Bounds().Dy())

	// The 612x792 page is centered: 94px margins left and right, 54px top and bottom.
	_, _, _, a := img.At(94, 54).RGBA()
	assert.NotZero(t, a)
	_, _, _, a = img.At(93, 450).RGBA()
	assert.Zero(t, a)
	_, _, _, a = img.At(400, 53).RGBA()
	assert.Zero(t, a)
}

func TestRenderCommandMissingDocumentWritesEmptyViewport(t *testing.T) {
	out := runRender(t, "--file", "/pdfs/missing.pdf", "--width", "50", "--height", "50")

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	for y := 0; y < 50; y++ {
		for x := 0; x < 50; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			require.Zero(t, a)
		}
	}
}
