package runner

import (
	"context"
	"log/slog"

	"github.com/use-agent/sosharvest/config"
	"github.com/use-agent/sosharvest/harvest"
	"github.com/use-agent/sosharvest/scraper"
)

// Page is a browser tab the runner hands to a session and closes after it.
type Page interface {
	harvest.Page
	Close() error
}

// Browser is a browser a run owns for its whole duration.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Launcher acquires a Browser for one run.
type Launcher func(ctx context.Context, cfg config.BrowserConfig, log *slog.Logger) (Browser, error)

// RodLauncher launches (or attaches to) Chromium through go-rod.
func RodLauncher(ctx context.Context, cfg config.BrowserConfig, log *slog.Logger) (Browser, error) {
	b, err := scraper.Launch(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return rodBrowser{b}, nil
}

type rodBrowser struct {
	*scraper.Browser
}

func (r rodBrowser) NewPage(ctx context.Context) (Page, error) {
	p, err := r.Browser.NewPage(ctx)
	if err != nil {
		return nil, err
	}
	return p, nil
}
