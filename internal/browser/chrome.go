package browser

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/dazdaz/gemini/internal/config"
	apperrors "github.com/dazdaz/gemini/internal/errors"
	"github.com/dazdaz/gemini/internal/trace"
)

const (
	stepTimeout  = 30 * time.Second
	waitDuration = 2 * time.Second
	scrollPixels = 800
	textExcerpt  = 4000
)

// Observation is what the model sees before choosing the next action.
type Observation struct {
	URL        string
	Title      string
	Text       string
	Screenshot []byte // PNG
}

// Chrome is one persistent browser window shared by every task. It starts on
// first use and stays open until Close.
type Chrome struct {
	cfg config.AgentConfig

	mu          sync.Mutex
	ctx         context.Context
	cancelAlloc context.CancelFunc
	cancelTab   context.CancelFunc
}

// NewChrome prepares a browser; nothing is launched yet.
func NewChrome(cfg config.AgentConfig) *Chrome {
	return &Chrome{cfg: cfg}
}

func (c *Chrome) tab(ctx context.Context) (context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx != nil {
		trace.Logger(ctx).Debug("reusing existing browser instance")
		return c.ctx, nil
	}

	log := trace.Logger(ctx)
	log.Info("no existing browser found, creating a persistent instance", "user_data_dir", c.cfg.UserDataDir)
	if err := os.MkdirAll(c.cfg.UserDataDir, 0o755); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "create browser profile dir")
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(c.cfg.UserDataDir),
		chromedp.WindowSize(c.cfg.ScreenWidth, c.cfg.ScreenHeight),
		chromedp.Flag("headless", c.cfg.Headless),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(tabCtx,
		chromedp.EmulateViewport(int64(c.cfg.ScreenWidth), int64(c.cfg.ScreenHeight)),
		chromedp.Navigate(c.cfg.InitialURL),
	); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, apperrors.Wrap(err, apperrors.CodeUnavailable, "launch browser")
	}
	c.ctx, c.cancelAlloc, c.cancelTab = tabCtx, cancelAlloc, cancelTab
	log.Info("new browser instance created")
	return c.ctx, nil
}

// run executes actions in the shared tab, aborting when ctx ends or the step
// takes too long.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	tab, err := c.tab(ctx)
	if err != nil {
		return err
	}
	stepCtx, cancel := context.WithTimeout(tab, stepTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(stepCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// Observe captures the page state.
func (c *Chrome) Observe(ctx context.Context) (Observation, error) {
	var obs Observation
	err := c.run(ctx,
		chromedp.Location(&obs.URL),
		chromedp.Title(&obs.Title),
		chromedp.Evaluate(fmt.Sprintf(`document.body ? document.body.innerText.slice(0, %d) : ""`, textExcerpt), &obs.Text),
		chromedp.CaptureScreenshot(&obs.Screenshot),
	)
	if err != nil {
		return Observation{}, err
	}
	return obs, nil
}

// Apply performs one action.
func (c *Chrome) Apply(ctx context.Context, a Action) error {
	switch a.Action {
	case ActionNavigate:
		return c.run(ctx, chromedp.Navigate(a.URL))
	case ActionClick:
		return c.run(ctx, chromedp.Click(a.Selector, chromedp.ByQuery, chromedp.NodeVisible))
	case ActionType:
		return c.run(ctx,
			chromedp.Clear(a.Selector, chromedp.ByQuery),
			chromedp.SendKeys(a.Selector, a.Text, chromedp.ByQuery),
		)
	case ActionPress:
		key, _ := keyCode(a.Key)
		return c.run(ctx, chromedp.KeyEvent(key))
	case ActionScroll:
		dy := scrollPixels
		if a.direction() == "up" {
			dy = -dy
		}
		return c.run(ctx, chromedp.Evaluate(fmt.Sprintf("window.scrollBy(0, %d)", dy), nil))
	case ActionWait:
		return c.run(ctx, chromedp.Sleep(waitDuration))
	}
	return nil
}

// BringToFront raises the window for the user.
func (c *Chrome) BringToFront(ctx context.Context) error {
	return c.run(ctx, page.BringToFront())
}

// Close shuts the browser down.
func (c *Chrome) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx == nil {
		return
	}
	c.cancelTab()
	c.cancelAlloc()
	c.ctx = nil
}
