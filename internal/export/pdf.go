package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-pdf/fpdf"

	"github.com/thanhvu/examgen/internal/model"
	"github.com/thanhvu/examgen/internal/raster"
)

const pageMarginMM = 15.0

// Rasterizer captures a printable HTML document as a single tall image.
// *raster.Client satisfies it.
type Rasterizer interface {
	Capture(ctx context.Context, html string) (*raster.Result, error)
}

// Exporter assembles PDF files from rasterized exam documents.
type Exporter struct {
	raster      Rasterizer
	scratchRoot string
}

// New creates an Exporter that renders through r.
func New(r Rasterizer) *Exporter {
	return &Exporter{raster: r, scratchRoot: os.TempDir()}
}

// ExamPDF produces the printable exam sheet as a PDF.
func (e *Exporter) ExamPDF(ctx context.Context, exam *model.Exam) ([]byte, error) {
	html, err := ExamHTML(exam)
	if err != nil {
		return nil, err
	}
	return e.pdfFromHTML(ctx, html)
}

// SolutionPDF produces the solution sheet as a PDF.
func (e *Exporter) SolutionPDF(ctx context.Context, exam *model.Exam) ([]byte, error) {
	html, err := SolutionHTML(exam)
	if err != nil {
		return nil, err
	}
	return e.pdfFromHTML(ctx, html)
}

// pdfFromHTML captures the document through the render service and lays
// the resulting image out over as many A4 pages as its height needs. The
// staged files live in a scratch directory that is removed whether the
// export succeeds or fails.
func (e *Exporter) pdfFromHTML(ctx context.Context, html string) ([]byte, error) {
	scratch, err := os.MkdirTemp(e.scratchRoot, "examgen-export-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrExport, err)
	}
	defer os.RemoveAll(scratch)

	if err := os.WriteFile(filepath.Join(scratch, "page.html"), []byte(html), 0o600); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrExport, err)
	}

	res, err := e.raster.Capture(ctx, html)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrExport, err)
	}
	capture := filepath.Join(scratch, "capture.png")
	if err := os.WriteFile(capture, res.Image, 0o600); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrExport, err)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pageW, pageH := pdf.GetPageSize()
	usableW := pageW - 2*pageMarginMM
	usableH := pageH - 2*pageMarginMM
	imgH := usableW * float64(res.HeightPx) / float64(res.WidthPx)

	opts := fpdf.ImageOptions{ImageType: "PNG", AllowNegativePosition: true}

	// One capture, many pages: each page shows the next usableH slice of
	// the image by shifting it up and clipping to the content box.
	for offset := 0.0; offset < imgH; offset += usableH {
		pdf.AddPage()
		pdf.ClipRect(pageMarginMM, pageMarginMM, usableW, usableH, false)
		pdf.ImageOptions(capture, pageMarginMM, pageMarginMM-offset, usableW, imgH, false, opts, 0, "")
		pdf.ClipEnd()
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrExport, err)
	}
	return buf.Bytes(), nil
}
