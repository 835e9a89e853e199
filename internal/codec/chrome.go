package codec

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/go-rod/rod/lib/launcher"

	"github.com/hpungsan/quire/internal/logfields"
)

// Chrome renders HTML to PDF with a shared headless browser started on
// first use. Safe for concurrent use; each render gets its own tab.
type Chrome struct {
	chromePath string
	download   bool

	once          sync.Once
	startErr      error
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewChrome creates a renderer. chromePath selects the browser binary; when
// empty and download is set, a Chromium build is fetched with rod's launcher.
func NewChrome(chromePath string, download bool) *Chrome {
	return &Chrome{chromePath: chromePath, download: download}
}

func (c *Chrome) start() error {
	c.once.Do(func() {
		path := c.chromePath
		if path == "" && c.download {
			p, err := launcher.NewBrowser().Get()
			if err != nil {
				c.startErr = fmt.Errorf("downloading browser: %w", err)
				return
			}
			path = p
		}

		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-extensions", true),
			chromedp.Flag("no-first-run", true),
		)
		if path != "" {
			opts = append(opts, chromedp.ExecPath(path))
		}
		if os.Geteuid() == 0 {
			opts = append(opts, chromedp.NoSandbox)
		}

		allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
		browserCtx, browserCancel := chromedp.NewContext(allocCtx)
		if err := chromedp.Run(browserCtx); err != nil {
			browserCancel()
			allocCancel()
			c.startErr = fmt.Errorf("starting browser: %w", err)
			return
		}
		slog.Info("Started headless browser", logfields.Path(path))
		c.allocCancel, c.browserCtx, c.browserCancel = allocCancel, browserCtx, browserCancel
	})
	return c.startErr
}

// RenderPDF prints the HTML file at htmlPath to outPath.
func (c *Chrome) RenderPDF(ctx context.Context, htmlPath, outPath string) error {
	if err := c.start(); err != nil {
		return err
	}
	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		return err
	}

	tabCtx, cancel := chromedp.NewContext(c.browserCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var buf []byte
	if err := chromedp.Run(tabCtx,
		chromedp.Navigate("file://"+filepath.ToSlash(abs)),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			buf, _, err = page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			return err
		}),
	); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("printing %s: %w", filepath.Base(htmlPath), err)
	}
	return os.WriteFile(outPath, buf, 0o600)
}

// Close stops the browser if it was started.
func (c *Chrome) Close() {
	if c.browserCancel != nil {
		c.browserCancel()
		c.allocCancel()
	}
}
