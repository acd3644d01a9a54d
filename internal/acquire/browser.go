package acquire

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/clipforge/api/internal/model"
)

// streamURLScript reads the player response of a watch page and returns the
// best direct (unciphered) stream URL for the requested kind.
const streamURLScript = `(() => {
  const r = window.ytInitialPlayerResponse;
  if (!r || !r.streamingData) return "";
  const kind = %q;
  const sd = r.streamingData;
  const list = kind === "audio"
    ? (sd.adaptiveFormats || []).filter(f => (f.mimeType || "").startsWith("audio/"))
    : (sd.formats || []).filter(f => (f.mimeType || "").startsWith("video/mp4"));
  const direct = list.filter(f => f.url);
  direct.sort((a, b) => kind === "audio" ? (b.bitrate || 0) - (a.bitrate || 0) : (b.height || 0) - (a.height || 0));
  return direct.length ? direct[0].url : "";
})()`

// BrowserProvider loads the watch page in headless Chrome and lifts a direct
// stream URL out of the player response.
type BrowserProvider struct {
	userAgent string
	timeout   time.Duration
	execPath  string
}

func NewBrowserProvider(userAgent string, timeout time.Duration, execPath string) *BrowserProvider {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &BrowserProvider{userAgent: userAgent, timeout: timeout, execPath: execPath}
}

func (p *BrowserProvider) Name() string { return "browser" }

func (p *BrowserProvider) Supports(req Request) bool {
	return req.Source.Kind == model.SourceYouTube && req.Source.URL != ""
}

func (p *BrowserProvider) Resolve(ctx context.Context, req Request) (*Resolved, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("mute-audio", true),
		chromedp.DisableGPU,
	)
	if p.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(p.userAgent))
	}
	if p.execPath != "" {
		opts = append(opts, chromedp.ExecPath(p.execPath))
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var streamURL string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(req.Source.URL),
		chromedp.WaitReady("body"),
		chromedp.Evaluate(fmt.Sprintf(streamURLScript, string(req.Kind)), &streamURL, func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
			return ep.WithAwaitPromise(true)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("headless browser: %w", err)
	}
	if streamURL == "" {
		return nil, fmt.Errorf("player response had no direct %s stream", req.Kind)
	}
	return &Resolved{URL: streamURL}, nil
}
