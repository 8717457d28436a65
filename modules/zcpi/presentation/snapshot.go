package presentation

import (
	"context"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-faster/errors"
)

// Snapshot loads the rendered chart page in headless Chrome and returns a PNG
// of the chart element.
func Snapshot(ctx context.Context, htmlPath string, timeout time.Duration) ([]byte, error) {
	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		return nil, errors.Wrap(err, "resolve chart path")
	}

	chromeCtx, cancel := chromedp.NewContext(ctx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancel()
	chromeCtx, cancel = context.WithTimeout(chromeCtx, timeout)
	defer cancel()

	var png []byte
	err = chromedp.Run(chromeCtx,
		chromedp.EmulateViewport(1280, 720),
		chromedp.Navigate("file://"+filepath.ToSlash(abs)),
		chromedp.WaitVisible("#"+ChartID, chromedp.ByID),
		// echarts animates the first draw.
		chromedp.Sleep(1500*time.Millisecond),
		chromedp.Screenshot("#"+ChartID, &png, chromedp.ByID),
	)
	if err != nil {
		return nil, errors.Wrap(err, "capture chart")
	}
	return png, nil
}
