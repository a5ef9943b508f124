package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Rasterizer renders the pages of a document into images an Engine can read.
type Rasterizer interface {
	Rasterize(ctx context.Context, doc Image) ([]Image, error)
}

// PopplerRasterizer renders PDF pages to PNG with the pdftoppm CLI.
type PopplerRasterizer struct {
	Path    string
	DPI     int
	TempDir string
	run     commandRunner
}

// NewPopplerRasterizer returns a rasterizer invoking the binary at path.
func NewPopplerRasterizer(path string) *PopplerRasterizer {
	if strings.TrimSpace(path) == "" {
		path = "pdftoppm"
	}
	return &PopplerRasterizer{Path: path, DPI: 200, run: execRunner}
}

// Rasterize implements Rasterizer. Pages come back in document order; the
// scratch directory is removed before returning.
func (p *PopplerRasterizer) Rasterize(ctx context.Context, doc Image) ([]Image, error) {
	dir, err := os.MkdirTemp(p.TempDir, "pdf-pages-*")
	if err != nil {
		return nil, fmt.Errorf("create page dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "doc.pdf")
	if err := os.WriteFile(in, doc.Data, 0o600); err != nil {
		return nil, fmt.Errorf("write temp pdf: %w", err)
	}

	dpi := p.DPI
	if dpi <= 0 {
		dpi = 200
	}
	run := p.run
	if run == nil {
		run = execRunner
	}
	_, stderr, err := run(ctx, p.Path, "-png", "-r", fmt.Sprint(dpi), in, filepath.Join(dir, "page"))
	if err != nil {
		msg := strings.TrimSpace(string(stderr))
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("pdftoppm: %s", msg)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "page-*.png"))
	if err != nil {
		return nil, err
	}
	// pdftoppm zero-pads page numbers to a common width, so lexical order is page order.
	sort.Strings(matches)
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: pdf rendered no pages", ErrUnsupported)
	}

	base := strings.TrimSuffix(doc.Name, filepath.Ext(doc.Name))
	pages := make([]Image, 0, len(matches))
	for i, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", i+1, err)
		}
		pages = append(pages, Image{
			Name:     fmt.Sprintf("%s-page%d.png", base, i+1),
			MimeType: "image/png",
			Data:     data,
		})
	}
	return pages, nil
}
