package splitter

import (
	"bytes"
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFEngine validates and rasterizes PDF documents.
type PDFEngine interface {
	// Inspect validates the document and returns its page count.
	Inspect(data []byte) (int, error)
	// Open prepares the document for page rendering.
	Open(data []byte) (PageRenderer, error)
}

// PageRenderer renders individual pages of an opened PDF.
type PageRenderer interface {
	// RenderPage rasterizes the 0-based page at the given DPI.
	RenderPage(index int, dpi float64) (image.Image, error)
	Close() error
}

// pdfEngine validates with pdfcpu and renders with MuPDF through go-fitz.
type pdfEngine struct {
	conf *model.Configuration
}

// NewPDFEngine returns the default PDF engine.
func NewPDFEngine() PDFEngine {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return &pdfEngine{conf: cfg}
}

func (e *pdfEngine) Inspect(data []byte) (int, error) {
	if err := api.Validate(bytes.NewReader(data), e.conf); err != nil {
		return 0, fmt.Errorf("pdf validation failed: %w", err)
	}
	pageCount, err := api.PageCount(bytes.NewReader(data), e.conf)
	if err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}
	return pageCount, nil
}

func (e *pdfEngine) Open(data []byte) (PageRenderer, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF for rendering: %w", err)
	}
	return &fitzRenderer{doc: doc}, nil
}

type fitzRenderer struct {
	doc *fitz.Document
}

func (r *fitzRenderer) RenderPage(index int, dpi float64) (image.Image, error) {
	if index < 0 || index >= r.doc.NumPage() {
		return nil, fmt.Errorf("page %d out of range (document has %d pages)", index+1, r.doc.NumPage())
	}
	img, err := r.doc.ImageDPI(index, dpi)
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", index+1, err)
	}
	return img, nil
}

func (r *fitzRenderer) Close() error {
	return r.doc.Close()
}
