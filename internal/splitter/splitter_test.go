package splitter

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/Lllllllleong/docsummaryflow/internal/config"
	"github.com/Lllllllleong/docsummaryflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

var fakePDF = []byte("%PDF-1.7\n% test document\n")

type fakeEngine struct {
	pages      int
	inspectErr error
	width      int
	height     int
	opened     bool
	rendered   []int
}

func (f *fakeEngine) Inspect(data []byte) (int, error) {
	return f.pages, f.inspectErr
}

func (f *fakeEngine) Open(data []byte) (PageRenderer, error) {
	f.opened = true
	return f, nil
}

func (f *fakeEngine) RenderPage(index int, dpi float64) (image.Image, error) {
	f.rendered = append(f.rendered, index)
	return solidImage(f.width, f.height), nil
}

func (f *fakeEngine) Close() error { return nil }

func solidImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}
	return img
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solidImage(w, h)))
	return buf.Bytes()
}

func testConfig() config.PipelineConfig {
	cfg := config.Default().Pipeline
	cfg.MaxPages = 3
	return cfg
}

func TestSplit_EmptyFile(t *testing.T) {
	s := New(testConfig(), WithPDFEngine(&fakeEngine{}))
	_, err := s.Split(context.Background(), nil, "empty.pdf")
	assert.True(t, errors.Is(err, models.ErrEmptyFile))
}

func TestSplit_UnsupportedFormat(t *testing.T) {
	s := New(testConfig(), WithPDFEngine(&fakeEngine{}))
	_, err := s.Split(context.Background(), []byte("just some text, not a document"), "notes.txt")
	assert.True(t, errors.Is(err, models.ErrUnsupportedFormat))
}

func TestSplit_FileTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.MaxFileBytes = 8
	s := New(cfg, WithPDFEngine(&fakeEngine{pages: 1}))
	_, err := s.Split(context.Background(), fakePDF, "big.pdf")
	assert.True(t, errors.Is(err, models.ErrFileTooLarge))
}

func TestSplit_PNGIsSinglePage(t *testing.T) {
	data := pngBytes(t, 40, 20)
	s := New(testConfig(), WithPDFEngine(&fakeEngine{}))

	res, err := s.Split(context.Background(), data, "scan.png")
	require.NoError(t, err)
	assert.Equal(t, FormatImage, res.Format)
	require.Len(t, res.Pages, 1)

	page := res.Pages[0]
	assert.Equal(t, 1, page.Index)
	assert.Equal(t, "image/png", page.MIMEType)
	assert.Equal(t, data, page.Data)
	assert.Equal(t, 40, page.Width)
	assert.Equal(t, 20, page.Height)
}

func TestSplit_BMPIsNormalizedToPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, solidImage(10, 10)))

	s := New(testConfig(), WithPDFEngine(&fakeEngine{}))
	res, err := s.Split(context.Background(), buf.Bytes(), "scan.bmp")
	require.NoError(t, err)
	require.Len(t, res.Pages, 1)
	assert.Equal(t, "image/png", res.Pages[0].MIMEType)

	_, format, err := image.DecodeConfig(bytes.NewReader(res.Pages[0].Data))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
}

func TestSplit_ImageDimensionLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxImageDimension = 10
	s := New(cfg, WithPDFEngine(&fakeEngine{}))
	_, err := s.Split(context.Background(), pngBytes(t, 20, 5), "wide.png")
	assert.True(t, errors.Is(err, models.ErrFileTooLarge))
}

func TestSplit_PDFRendersEveryPageInOrder(t *testing.T) {
	engine := &fakeEngine{pages: 3, width: 100, height: 50}
	s := New(testConfig(), WithPDFEngine(engine))

	res, err := s.Split(context.Background(), fakePDF, "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, res.Format)
	assert.False(t, res.Truncated)
	assert.Equal(t, 3, res.OriginalPageCount)
	assert.Equal(t, []int{0, 1, 2}, engine.rendered)

	require.Len(t, res.Pages, 3)
	for i, p := range res.Pages {
		assert.Equal(t, i+1, p.Index)
		assert.Equal(t, "image/png", p.MIMEType)
		assert.NotEmpty(t, p.Data)
	}
	assert.Equal(t, "report.pdf#page=2", res.Pages[1].SourceRef)
}

func TestSplit_PageLimitRejects(t *testing.T) {
	engine := &fakeEngine{pages: 5, width: 10, height: 10}
	s := New(testConfig(), WithPDFEngine(engine))

	_, err := s.Split(context.Background(), fakePDF, "long.pdf")
	assert.True(t, errors.Is(err, models.ErrPageLimitExceeded))
	assert.False(t, engine.opened, "no pages should be rendered when the document is rejected")
}

func TestSplit_PageLimitTruncates(t *testing.T) {
	cfg := testConfig()
	cfg.PageLimitPolicy = config.PolicyTruncate
	engine := &fakeEngine{pages: 5, width: 10, height: 10}
	s := New(cfg, WithPDFEngine(engine))

	res, err := s.Split(context.Background(), fakePDF, "long.pdf")
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.Equal(t, 5, res.OriginalPageCount)
	assert.Len(t, res.Pages, 3)
}

func TestSplit_CorruptedPDF(t *testing.T) {
	engine := &fakeEngine{inspectErr: errors.New("xref table broken")}
	s := New(testConfig(), WithPDFEngine(engine))

	_, err := s.Split(context.Background(), fakePDF, "broken.pdf")
	assert.True(t, errors.Is(err, models.ErrCorruptedFile))
}

func TestSplit_DownscalesWidePages(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRenderWidth = 60
	engine := &fakeEngine{pages: 1, width: 120, height: 40}
	s := New(cfg, WithPDFEngine(engine))

	res, err := s.Split(context.Background(), fakePDF, "wide.pdf")
	require.NoError(t, err)
	require.Len(t, res.Pages, 1)
	assert.Equal(t, 60, res.Pages[0].Width)
	assert.Equal(t, 20, res.Pages[0].Height)
}

func TestSplit_CancelledBeforeRendering(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	engine := &fakeEngine{pages: 2, width: 10, height: 10}
	s := New(testConfig(), WithPDFEngine(engine))

	_, err := s.Split(ctx, fakePDF, "report.pdf")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, engine.rendered)
}
