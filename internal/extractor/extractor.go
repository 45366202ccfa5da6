// Package extractor produces OCR text and a visual caption for each page image.
package extractor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Lllllllleong/docsummaryflow/internal/models"
	"github.com/Lllllllleong/docsummaryflow/internal/retry"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Recognition is the output of one extraction sub-operation.
type Recognition struct {
	Text       string
	Confidence float64
}

// TextRecognizer reads the text printed on a page image.
type TextRecognizer interface {
	RecognizeText(ctx context.Context, page models.PageImage) (Recognition, error)
}

// Captioner describes the visual content of a page image.
type Captioner interface {
	Caption(ctx context.Context, page models.PageImage) (Recognition, error)
}

// Cache stores extraction records keyed by page image hash.
type Cache interface {
	Get(ctx context.Context, key string) (models.ExtractionRecord, bool, error)
	Set(ctx context.Context, key string, rec models.ExtractionRecord) error
}

// Options configures an Extractor.
type Options struct {
	Retry       retry.Policy
	Concurrency int
	// RatePerSecond caps remote calls across all pages. Zero means unlimited.
	RatePerSecond float64
	Cache         Cache
	Logger        *slog.Logger
}

// Extractor runs OCR and captioning for pages.
type Extractor struct {
	ocr       TextRecognizer
	captioner Captioner
	opts      Options
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// New creates an Extractor.
func New(ocr TextRecognizer, captioner Captioner, opts Options) *Extractor {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	e := &Extractor{ocr: ocr, captioner: captioner, opts: opts, logger: logger}
	if opts.RatePerSecond > 0 {
		burst := int(opts.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	return e
}

// ExtractAll extracts every page with bounded concurrency and returns the
// results in page order. A failure on one page never affects another.
// When ctx is cancelled no further pages are scheduled; those pages are
// returned as failed together with the context error.
func (e *Extractor) ExtractAll(ctx context.Context, pages []models.PageImage) ([]models.Page, error) {
	results := make([]models.Page, len(pages))

	var eg errgroup.Group
	eg.SetLimit(e.opts.Concurrency)

	scheduled := 0
	for i, img := range pages {
		if ctx.Err() != nil {
			break
		}
		eg.Go(func() error {
			page, err := e.ExtractPage(ctx, img)
			if err != nil {
				e.logger.Warn("Page extraction failed.", "pageIndex", img.Index, "error", err)
			}
			results[i] = page
			return nil
		})
		scheduled++
	}
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		for i := scheduled; i < len(pages); i++ {
			results[i] = models.Page{
				Index:     pages[i].Index,
				SourceRef: pages[i].SourceRef,
				Status:    models.PageFailed,
				Detail:    fmt.Sprintf("not extracted: %v", err),
			}
		}
		return results, err
	}
	return results, nil
}

// ExtractPage runs OCR and captioning independently. If one fails the page is
// partial with that field empty; if both fail the page is failed and the
// returned error is ExtractionUnavailable.
func (e *Extractor) ExtractPage(ctx context.Context, img models.PageImage) (models.Page, error) {
	logCtx := e.logger.With("pageIndex", img.Index)
	page := models.Page{Index: img.Index, SourceRef: img.SourceRef}

	key := cacheKey(img)
	if e.opts.Cache != nil {
		rec, ok, err := e.opts.Cache.Get(ctx, key)
		if err != nil {
			logCtx.Warn("Extraction cache lookup failed.", "error", err)
		} else if ok {
			logCtx.Info("Extraction cache hit.")
			page.OCRText, page.Caption, page.Confidence = rec.OCRText, rec.Caption, rec.Confidence
			page.Status = models.PageOK
			return page, nil
		}
	}

	var (
		wg                 sync.WaitGroup
		ocrRes, capRes     Recognition
		ocrErr, captionErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		ocrRes, ocrErr = e.run(ctx, logCtx, "ocr", func(ctx context.Context) (Recognition, error) {
			return e.ocr.RecognizeText(ctx, img)
		})
	}()
	go func() {
		defer wg.Done()
		capRes, captionErr = e.run(ctx, logCtx, "caption", func(ctx context.Context) (Recognition, error) {
			return e.captioner.Caption(ctx, img)
		})
	}()
	wg.Wait()

	page.OCRText = strings.TrimSpace(ocrRes.Text)
	page.Caption = strings.TrimSpace(capRes.Text)

	switch {
	case ocrErr != nil && captionErr != nil:
		page.OCRText, page.Caption = "", ""
		page.Status = models.PageFailed
		page.Detail = fmt.Sprintf("ocr: %v; caption: %v", ocrErr, captionErr)
		return page, models.NewError(models.KindExtractionUnavailable,
			fmt.Sprintf("page %d", img.Index), errors.Join(ocrErr, captionErr))
	case ocrErr != nil:
		page.OCRText = ""
		page.Confidence = capRes.Confidence
		page.Status = models.PagePartial
		page.Detail = fmt.Sprintf("ocr: %v", ocrErr)
		logCtx.Warn("OCR failed, page degraded to partial.", "error", ocrErr)
	case captionErr != nil:
		page.Caption = ""
		page.Confidence = ocrRes.Confidence
		page.Status = models.PagePartial
		page.Detail = fmt.Sprintf("caption: %v", captionErr)
		logCtx.Warn("Captioning failed, page degraded to partial.", "error", captionErr)
	default:
		page.Confidence = (ocrRes.Confidence + capRes.Confidence) / 2
		page.Status = models.PageOK
	}

	if page.Status == models.PageOK && e.opts.Cache != nil {
		rec := models.ExtractionRecord{OCRText: page.OCRText, Caption: page.Caption, Confidence: page.Confidence}
		if err := e.opts.Cache.Set(ctx, key, rec); err != nil {
			logCtx.Warn("Failed to store extraction in cache.", "error", err)
		}
	}
	return page, nil
}

// run calls fn under the retry policy. Rate limiter waits count against the
// run context only, so local throttling never consumes the per-call timeout.
func (e *Extractor) run(ctx context.Context, logCtx *slog.Logger, op string, fn func(ctx context.Context) (Recognition, error)) (Recognition, error) {
	policy := e.opts.Retry
	timeout := policy.CallTimeout
	policy.CallTimeout = 0

	var res Recognition
	_, err := retry.Do(ctx, policy, logCtx, op, func(attemptCtx context.Context) error {
		if e.limiter != nil {
			if err := e.limiter.Wait(attemptCtx); err != nil {
				return fmt.Errorf("%s rate limit wait: %w", op, err)
			}
		}
		callCtx := attemptCtx
		if timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(attemptCtx, timeout)
			defer cancel()
		}
		r, err := fn(callCtx)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	return res, err
}

func cacheKey(img models.PageImage) string {
	sum := sha256.Sum256(img.Data)
	return "extract:" + hex.EncodeToString(sum[:])
}
