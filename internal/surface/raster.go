package surface

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"
)

var ErrEmptyScreenshot = errors.New("screenshot buffer is empty")

// Rasterizer turns SVG documents into PNG with a headless browser.
type Rasterizer struct {
	timeout  time.Duration
	execPath string
	logger   *slog.Logger
}

// NewRasterizer returns a Rasterizer. execPath may be empty to let chromedp
// find a browser on its own.
func NewRasterizer(execPath string, timeout time.Duration, logger *slog.Logger) *Rasterizer {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Rasterizer{timeout: timeout, execPath: execPath, logger: logger}
}

// PNG loads svg as a data URI and screenshots the svg element.
func (r *Rasterizer) PNG(ctx context.Context, svg []byte) ([]byte, error) {
	dataURI := "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString(svg)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Headless,
		chromedp.DisableGPU,
	)
	if r.execPath != "" {
		opts = append(opts, chromedp.ExecPath(r.execPath))
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var buf []byte
	start := time.Now()
	if err := chromedp.Run(browserCtx,
		chromedp.Navigate(dataURI),
		chromedp.WaitVisible(`svg`, chromedp.ByQuery),
		chromedp.Screenshot(`svg`, &buf, chromedp.ByQuery),
	); err != nil {
		return nil, fmt.Errorf("chromedp execution failed: %w", err)
	}
	if len(buf) == 0 {
		return nil, ErrEmptyScreenshot
	}
	if r.logger != nil {
		r.logger.DebugContext(ctx, "Map rasterized", slog.Int("bytes", len(buf)), slog.Duration("took", time.Since(start)))
	}
	return buf, nil
}
