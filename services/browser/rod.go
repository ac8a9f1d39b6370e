package browser

import (
	"context"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/pkg/errors"

	"github.com/xiaomo-123/gemini-api-service/interfaces"
	"github.com/xiaomo-123/gemini-api-service/internal/logger"
	"github.com/xiaomo-123/gemini-api-service/internal/models"
)

type rodLauncher struct {
	log logger.Logger
	bin string
}

// NewRodLauncher returns the production BrowserLauncher backed by a headless
// Chromium. bin may be empty to use the rod-managed browser binary.
func NewRodLauncher(log logger.Logger, bin string) interfaces.BrowserLauncher {
	return &rodLauncher{log: log, bin: bin}
}

func (rl *rodLauncher) Launch(ctx context.Context, opts interfaces.BrowserLaunchOptions) (interfaces.BrowserPage, error) {
	// the profile directory is ephemeral: cleared if pre-existing, never
	// reused across sessions
	if opts.ProfileDir != "" {
		if err := os.RemoveAll(opts.ProfileDir); err != nil {
			return nil, errors.Wrap(err, "failed to clear browser profile dir")
		}
		if err := os.MkdirAll(opts.ProfileDir, 0o755); err != nil {
			return nil, errors.Wrap(err, "failed to create browser profile dir")
		}
	}

	l := launcher.New().
		Headless(true).
		NoSandbox(true).
		Set("disable-setuid-sandbox").
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-gpu").
		Set("disable-extensions").
		Set("disable-dev-shm-usage").
		Set("disable-background-networking").
		Set("disable-sync").
		Set("disable-translate").
		Set("no-first-run").
		Set("mute-audio")
	if rl.bin != "" {
		l = l.Bin(rl.bin)
	}
	if opts.ProfileDir != "" {
		l = l.UserDataDir(opts.ProfileDir)
	}

	var proxyCfg *models.ProxyConfig
	if opts.Proxy != nil && opts.Proxy.Enabled {
		proxyCfg = opts.Proxy
		l = l.Proxy(proxyCfg.Server())
		rl.log.Infof("browser session routed through %s", proxyCfg.Server())
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, errors.Wrap(err, "failed to launch browser")
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, errors.Wrap(err, "failed to connect to browser")
	}

	// credentials via the browser auth hook work for HTTP proxies only;
	// SOCKS5 auth is not supported
	if proxyCfg != nil && proxyCfg.Type == models.ProxyHTTP && proxyCfg.Username != "" {
		handleAuth := b.HandleAuth(proxyCfg.Username, proxyCfg.Password)
		go func() {
			_ = handleAuth()
		}()
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		b.Close()
		l.Kill()
		return nil, errors.Wrap(err, "failed to open browser page")
	}

	if opts.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: opts.UserAgent}); err != nil {
			rl.log.Warnf("failed to override user agent: %v", err)
		}
	}

	return &rodPage{
		log:        rl.log,
		browser:    b,
		page:       page,
		launcher:   l,
		profileDir: opts.ProfileDir,
	}, nil
}

type rodPage struct {
	log        logger.Logger
	browser    *rod.Browser
	page       *rod.Page
	launcher   *launcher.Launcher
	profileDir string
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	return p.page.Context(ctx).Navigate(url)
}

func (p *rodPage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	el, err := p.page.Context(ctx).Timeout(timeout).Element(selector)
	if err != nil {
		return errors.Wrapf(err, "element %s did not appear", selector)
	}
	if err := el.WaitVisible(); err != nil {
		return errors.Wrapf(err, "element %s did not become visible", selector)
	}
	return nil
}

func (p *rodPage) Click(ctx context.Context, selector string) error {
	el, err := p.page.Context(ctx).Element(selector)
	if err != nil {
		return errors.Wrapf(err, "element %s not found", selector)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (p *rodPage) Input(ctx context.Context, selector, text string, delay time.Duration) error {
	el, err := p.page.Context(ctx).Element(selector)
	if err != nil {
		return errors.Wrapf(err, "element %s not found", selector)
	}
	if delay <= 0 {
		return el.Input(text)
	}
	// per-keystroke delay mimics human input
	for _, r := range text {
		if err := el.Input(string(r)); err != nil {
			return err
		}
		time.Sleep(delay)
	}
	return nil
}

func (p *rodPage) ClearInput(ctx context.Context, selector string) error {
	el, err := p.page.Context(ctx).Element(selector)
	if err != nil {
		return errors.Wrapf(err, "element %s not found", selector)
	}
	if err := el.SelectAllText(); err != nil {
		return err
	}
	return el.Input("")
}

func (p *rodPage) URL(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", errors.Wrap(err, "failed to read page info")
	}
	return info.URL, nil
}

func (p *rodPage) Cookie(ctx context.Context, name string) (string, error) {
	cookies, err := p.page.Context(ctx).Cookies(nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to read cookies")
	}
	for _, cookie := range cookies {
		if cookie.Name == name {
			return cookie.Value, nil
		}
	}
	return "", nil
}

// Close tears down the browser, its launcher process and the ephemeral
// profile directory. It runs on every session exit path.
func (p *rodPage) Close() error {
	err := p.browser.Close()
	p.launcher.Kill()
	if p.profileDir != "" {
		if rmErr := os.RemoveAll(p.profileDir); rmErr != nil {
			p.log.Warnf("failed to remove profile dir %s: %v", p.profileDir, rmErr)
		}
	}
	return err
}
