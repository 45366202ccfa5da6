// Package splitter turns an uploaded PDF or raster image into an ordered
// sequence of page images.
package splitter

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"log/slog"

	"github.com/Lllllllleong/docsummaryflow/internal/config"
	"github.com/Lllllllleong/docsummaryflow/internal/models"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Input formats.
const (
	FormatPDF   = "pdf"
	FormatImage = "image"
)

var pdfMagic = []byte("%PDF")

// Result is the ordered output of Split.
type Result struct {
	Format            string
	Pages             []models.PageImage
	OriginalPageCount int
	Truncated         bool
}

// Splitter converts documents into page images under the configured limits.
type Splitter struct {
	cfg    config.PipelineConfig
	pdf    PDFEngine
	logger *slog.Logger
}

// Option customizes a Splitter.
type Option func(*Splitter)

// WithPDFEngine replaces the default pdfcpu/MuPDF engine.
func WithPDFEngine(e PDFEngine) Option {
	return func(s *Splitter) { s.pdf = e }
}

// WithLogger sets the logger used by the splitter.
func WithLogger(l *slog.Logger) Option {
	return func(s *Splitter) { s.logger = l }
}

// New creates a Splitter.
func New(cfg config.PipelineConfig, opts ...Option) *Splitter {
	s := &Splitter{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if s.pdf == nil {
		s.pdf = NewPDFEngine()
	}
	return s
}

// Split detects the file type, validates it and renders its pages in order.
// A raster image always yields exactly one page.
func (s *Splitter) Split(ctx context.Context, data []byte, filename string) (*Result, error) {
	logCtx := s.logger.With("file", filename, "sizeBytes", len(data))

	if len(data) == 0 {
		return nil, models.NewError(models.KindEmptyFile, "file is empty", nil)
	}
	if s.cfg.MaxFileBytes > 0 && int64(len(data)) > s.cfg.MaxFileBytes {
		return nil, models.NewError(models.KindFileTooLarge,
			fmt.Sprintf("file is %d bytes, exceeds max allowed size of %d bytes", len(data), s.cfg.MaxFileBytes), nil)
	}

	if bytes.HasPrefix(data, pdfMagic) {
		logCtx.Info("Detected PDF input.")
		return s.splitPDF(ctx, logCtx, data, filename)
	}

	imgCfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, models.NewError(models.KindUnsupportedFormat, "file is neither a PDF nor a supported image", err)
	}
	logCtx.Info("Detected image input.", "imageFormat", format)
	return s.splitImage(data, filename, format, imgCfg)
}

func (s *Splitter) splitPDF(ctx context.Context, logCtx *slog.Logger, data []byte, filename string) (*Result, error) {
	pageCount, err := s.pdf.Inspect(data)
	if err != nil {
		return nil, models.NewError(models.KindCorruptedFile, "PDF appears corrupted", err)
	}
	if pageCount == 0 {
		return nil, models.NewError(models.KindCorruptedFile, "PDF has no pages", nil)
	}

	res := &Result{Format: FormatPDF, OriginalPageCount: pageCount}
	toRender := pageCount
	if pageCount > s.cfg.MaxPages {
		if s.cfg.PageLimitPolicy != config.PolicyTruncate {
			return nil, models.NewError(models.KindPageLimitExceeded,
				fmt.Sprintf("%d pages exceeds max number of %d", pageCount, s.cfg.MaxPages), nil)
		}
		logCtx.Warn("Page limit exceeded, truncating.", "pageCount", pageCount, "maxPages", s.cfg.MaxPages)
		toRender = s.cfg.MaxPages
		res.Truncated = true
	}

	renderer, err := s.pdf.Open(data)
	if err != nil {
		return nil, models.NewError(models.KindCorruptedFile, "PDF appears corrupted", err)
	}
	defer renderer.Close()

	res.Pages = make([]models.PageImage, 0, toRender)
	for i := 0; i < toRender; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := renderer.RenderPage(i, s.cfg.RenderDPI)
		if err != nil {
			return nil, models.NewError(models.KindCorruptedFile, fmt.Sprintf("failed to render page %d", i+1), err)
		}
		if err := s.checkDimensions(img.Bounds().Dx(), img.Bounds().Dy(), fmt.Sprintf("PDF page %d", i+1)); err != nil {
			return nil, err
		}

		img = fitWidth(img, s.cfg.MaxRenderWidth)
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("failed to encode page %d: %w", i+1, err)
		}
		res.Pages = append(res.Pages, models.PageImage{
			Index:     i + 1,
			MIMEType:  "image/png",
			Data:      buf.Bytes(),
			Width:     img.Bounds().Dx(),
			Height:    img.Bounds().Dy(),
			SourceRef: fmt.Sprintf("%s#page=%d", filename, i+1),
		})
	}

	logCtx.Info("PDF rendered to page images.", "pageCount", len(res.Pages), "truncated", res.Truncated)
	return res, nil
}

func (s *Splitter) splitImage(data []byte, filename, format string, imgCfg image.Config) (*Result, error) {
	if err := s.checkDimensions(imgCfg.Width, imgCfg.Height, "Image"); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, models.NewError(models.KindCorruptedFile, "image is corrupted", err)
	}

	page := models.PageImage{
		Index:     1,
		Data:      data,
		Width:     imgCfg.Width,
		Height:    imgCfg.Height,
		SourceRef: filename,
	}
	switch format {
	case "png":
		page.MIMEType = "image/png"
	case "jpeg":
		page.MIMEType = "image/jpeg"
	default:
		// Models accept PNG and JPEG everywhere; normalize the rest.
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("failed to re-encode %s image: %w", format, err)
		}
		page.MIMEType = "image/png"
		page.Data = buf.Bytes()
	}

	return &Result{Format: FormatImage, Pages: []models.PageImage{page}, OriginalPageCount: 1}, nil
}

func (s *Splitter) checkDimensions(w, h int, what string) error {
	limit := s.cfg.MaxImageDimension
	if limit > 0 && (w > limit || h > limit) {
		return models.NewError(models.KindFileTooLarge,
			fmt.Sprintf("%s dimensions %dx%d exceed max allowed %dx%d", what, w, h, limit, limit), nil)
	}
	return nil
}

// fitWidth downscales img so that it is at most maxWidth pixels wide,
// preserving the aspect ratio.
func fitWidth(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return img
	}
	height := b.Dy() * maxWidth / b.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
