// Package scraper is the go-rod browser driver behind harvest.Page.
package scraper

import (
	"context"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/use-agent/sosharvest/config"
	"github.com/use-agent/sosharvest/models"
)

// Browser is one Chromium instance, launched locally or attached through a
// DevTools control URL. A run owns exactly one Browser.
type Browser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	cfg      config.BrowserConfig
	log      *slog.Logger
}

// Launch starts Chromium, or attaches to cfg.ControlURL when set. An
// attached browser gets an isolated incognito context that Close disposes
// without killing the remote process.
func Launch(ctx context.Context, cfg config.BrowserConfig, log *slog.Logger) (*Browser, error) {
	if log == nil {
		log = slog.Default()
	}

	if cfg.ControlURL != "" {
		remote := rod.New().ControlURL(cfg.ControlURL).Context(ctx)
		if err := remote.Connect(); err != nil {
			return nil, models.NewHarvestError(models.ErrCodeBrowserCrash, "failed to connect to control URL", err)
		}
		incognito, err := remote.Incognito()
		if err != nil {
			return nil, models.NewHarvestError(models.ErrCodeBrowserCrash, "failed to create incognito context", err)
		}
		log.Info("attached to browser", "controlURL", cfg.ControlURL)
		return &Browser{browser: incognito, cfg: cfg, log: log}, nil
	}

	l := launcher.New().
		Context(ctx).
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewHarvestError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}
	log.Info("browser launched", "controlURL", controlURL, "headless", cfg.Headless)

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, models.NewHarvestError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}

	return &Browser{browser: browser, launcher: l, cfg: cfg, log: log}, nil
}

// NewPage opens a tab prepared for the portal: stealth script, extra
// headers and request blocking are installed before the first navigation.
func (b *Browser) NewPage(ctx context.Context) (*Page, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewHarvestError(models.ErrCodeBrowserCrash, "failed to open page", err)
	}
	page = page.Context(ctx)

	if b.cfg.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			b.log.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
		}
	}

	if len(b.cfg.ExtraHeaders) > 0 {
		if err := (proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(b.cfg.ExtraHeaders)}).Call(page); err != nil {
			b.log.Warn("extra headers not applied", "error", err)
		}
	}

	router := setupHijack(page, b.cfg.BlockedResourceTypes, b.cfg.BlockAds)
	return &Page{page: page, router: router}, nil
}

// Close releases the browser. A launched process is killed and its profile
// directory removed; an attached browser only loses its incognito context.
func (b *Browser) Close() error {
	err := b.browser.Close()
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher.Cleanup()
	}
	b.log.Debug("browser closed")
	return err
}
