// Package runner owns harvest runs end to end: run ids, stores, the
// browser, the session, status tracking and completion notifications.
// Runs are serialized; the portal account allows one session at a time.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/use-agent/sosharvest/cache"
	"github.com/use-agent/sosharvest/config"
	"github.com/use-agent/sosharvest/harvest"
	"github.com/use-agent/sosharvest/metrics"
	"github.com/use-agent/sosharvest/models"
	"github.com/use-agent/sosharvest/scraper"
	"github.com/use-agent/sosharvest/store"
	"github.com/use-agent/sosharvest/webhook"
)

// ErrBusy is returned when a run is started while another is active.
var ErrBusy = models.NewHarvestError(models.ErrCodeRunInProgress, "a harvest run is already in progress", nil)

// ErrUnknownRun is returned for run ids the runner has not seen.
var ErrUnknownRun = models.NewHarvestError(models.ErrCodeNotFound, "run not found", nil)

// Preflighter probes the login URL before the browser starts.
type Preflighter func(ctx context.Context, url, proxy string) (*scraper.PreflightResult, error)

// Runner executes harvest runs one at a time. It is safe for concurrent use.
type Runner struct {
	cfg       *config.Config
	launch    Launcher
	preflight Preflighter
	metrics   *metrics.Metrics
	runs      *cache.RunCache
	log       *slog.Logger

	busy    atomic.Bool
	mu      sync.Mutex
	current string
	wg      sync.WaitGroup

	baseCtx context.Context
	cancel  context.CancelFunc
}

// Option customises a Runner.
type Option func(*Runner)

// WithLauncher replaces the go-rod launcher.
func WithLauncher(l Launcher) Option { return func(r *Runner) { r.launch = l } }

// WithPreflight replaces the TLS preflight probe.
func WithPreflight(p Preflighter) Option { return func(r *Runner) { r.preflight = p } }

// WithMetrics records run metrics on m.
func WithMetrics(m *metrics.Metrics) Option { return func(r *Runner) { r.metrics = m } }

// WithLogger sets the runner logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option { return func(r *Runner) { r.log = l } }

// New creates a Runner over the base configuration cfg.
func New(cfg *config.Config, opts ...Option) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		cfg:       cfg,
		launch:    RodLauncher,
		preflight: scraper.Preflight,
		runs:      cache.New(cfg.Cache.MaxEntries, cache.DefaultTTL),
		log:       slog.Default(),
		baseCtx:   ctx,
		cancel:    cancel,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Metrics returns the runner's metrics, possibly nil.
func (r *Runner) Metrics() *metrics.Metrics { return r.metrics }

// Current returns the id of the active run, or "".
func (r *Runner) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Get returns the status of a known run.
func (r *Runner) Get(id string) (*models.RunStatus, bool) {
	return r.runs.Get(id)
}

// Run executes a harvest synchronously and returns its final status. The
// returned error is the run's *models.HarvestError when it failed.
func (r *Runner) Run(ctx context.Context, in *config.Input) (*models.RunStatus, error) {
	status, cfg, err := r.begin(in)
	if err != nil {
		return nil, err
	}
	defer r.end()
	return r.execute(ctx, status, cfg)
}

// Start launches a harvest in the background and returns its initial
// status. The run outlives ctx; Shutdown cancels it.
func (r *Runner) Start(ctx context.Context, in *config.Input) (*models.RunStatus, error) {
	status, cfg, err := r.begin(in)
	if err != nil {
		return nil, err
	}
	initial, _ := r.runs.Get(status.ID)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.end()
		_, _ = r.execute(r.baseCtx, status, cfg)
	}()
	return initial, nil
}

// Wait blocks until background runs have finished.
func (r *Runner) Wait() { r.wg.Wait() }

// Shutdown cancels an active background run and waits for it, or until
// ctx expires.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Artifact returns a stored artifact of run id.
func (r *Runner) Artifact(id, key string) ([]byte, string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, "", ErrUnknownRun
	}
	if _, ok := r.runs.Get(id); !ok {
		return nil, "", ErrUnknownRun
	}
	kv, err := store.NewFileStore(filepath.Join(r.cfg.Store.ArtifactDir, id))
	if err != nil {
		return nil, "", models.NewHarvestError(models.ErrCodeStore, "artifact store unavailable", err)
	}
	data, ct, err := kv.GetValue(key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, "", models.NewHarvestError(models.ErrCodeNotFound, fmt.Sprintf("artifact %s not found", key), err)
	}
	if err != nil {
		return nil, "", models.NewHarvestError(models.ErrCodeInvalidInput, "invalid artifact key", err)
	}
	return data, ct, nil
}

func (r *Runner) begin(in *config.Input) (*models.RunStatus, *config.Config, error) {
	if !r.busy.CompareAndSwap(false, true) {
		return nil, nil, ErrBusy
	}

	cfg := r.cfg.Clone()
	cfg.ApplyInput(in)

	status := &models.RunStatus{
		ID:        uuid.NewString(),
		State:     models.RunRunning,
		StartedAt: time.Now().UTC(),
	}
	r.runs.Put(status)

	r.mu.Lock()
	r.current = status.ID
	r.mu.Unlock()
	return status, cfg, nil
}

func (r *Runner) end() {
	r.mu.Lock()
	r.current = ""
	r.mu.Unlock()
	r.busy.Store(false)
}

// execute runs one harvest and always leaves a terminal status behind.
func (r *Runner) execute(ctx context.Context, status *models.RunStatus, cfg *config.Config) (*models.RunStatus, error) {
	log := r.log.With("run_id", status.ID)
	log.Info("harvest started", "login_url", cfg.Harvest.LoginURL, "max_pages", cfg.Harvest.MaxPages)

	summary, err := r.harvest(ctx, log, status.ID, cfg)

	finished := time.Now().UTC()
	status.FinishedAt = &finished
	status.Result = summary
	if err != nil {
		he := models.AsHarvestError(err)
		status.State = models.RunFailed
		status.Checkpoint = he.Checkpoint
		status.Error = he.ToDetail()
		log.Error("harvest run failed", "code", he.Code, "checkpoint", he.Checkpoint, "error", err)
	} else {
		status.State = models.RunSucceeded
		log.Info("harvest run finished", "duration", finished.Sub(status.StartedAt).String())
	}
	r.runs.Put(status)
	r.notify(cfg, status)

	final, _ := r.runs.Get(status.ID)
	if err != nil {
		return final, models.AsHarvestError(err)
	}
	return final, nil
}

func (r *Runner) harvest(ctx context.Context, log *slog.Logger, id string, cfg *config.Config) (*models.ResultSummary, error) {
	kv, err := store.NewFileStore(filepath.Join(cfg.Store.ArtifactDir, id))
	if err != nil {
		r.countFailure(models.ErrCodeStore)
		return models.Failed("artifact store unavailable"), models.NewHarvestError(models.ErrCodeStore, "artifact store unavailable", err)
	}

	dataset, err := store.OpenDataset(cfg.Store, id)
	if err != nil {
		return r.failEarly(ctx, kv, models.ErrCodeStore, "dataset unavailable", err)
	}
	defer func() {
		if cerr := dataset.Close(); cerr != nil {
			log.Warn("dataset close failed", "error", cerr)
		}
	}()

	if cfg.Browser.Preflight && cfg.Browser.ControlURL == "" && r.preflight != nil {
		r.runPreflight(ctx, log, cfg)
	}

	browser, err := r.launch(ctx, cfg.Browser, log)
	if err != nil {
		return r.failEarly(ctx, kv, models.ErrCodeBrowserCrash, "browser launch failed", err)
	}
	defer func() {
		if cerr := browser.Close(); cerr != nil {
			log.Warn("browser close failed", "error", cerr)
		}
	}()

	page, err := browser.NewPage(ctx)
	if err != nil {
		return r.failEarly(ctx, kv, models.ErrCodeBrowserCrash, "page open failed", err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			log.Debug("page close failed", "error", cerr)
		}
	}()

	session := harvest.NewSession(page, kv, dataset, harvest.OptionsFromConfig(id, cfg),
		harvest.WithLogger(r.log),
		harvest.WithMetrics(r.metrics),
	)
	return session.Run(ctx)
}

// failEarly reports a failure that happened before a session existed, so
// the run still ends with exactly one RESULT.json, cancelled or not.
func (r *Runner) failEarly(ctx context.Context, kv *store.FileStore, code, reason string, cause error) (*models.ResultSummary, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	r.countFailure(code)
	summary := models.Failed(fmt.Sprintf("%s: %v", reason, cause))
	he := models.NewHarvestError(code, summary.Reason, cause)

	data, err := json.Marshal(summary)
	if err == nil {
		err = kv.SetValue(ctx, "RESULT.json", data, harvest.ContentTypeJSON)
	}
	if err != nil {
		he.Err = errors.Join(cause, err)
	}
	return summary, he
}

func (r *Runner) countFailure(code string) {
	r.metrics.IncRun("failed")
	r.metrics.IncFailure(code)
}

// runPreflight is advisory: a failed probe is logged and the run goes on,
// since the browser may still get through where a plain client does not.
func (r *Runner) runPreflight(ctx context.Context, log *slog.Logger, cfg *config.Config) {
	pctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	res, err := r.preflight(pctx, cfg.Harvest.LoginURL, cfg.Browser.Proxy)
	if err != nil {
		log.Warn("login page preflight failed", "url", cfg.Harvest.LoginURL, "error", err)
		return
	}
	log.Info("login page reachable", "status", res.StatusCode, "title", res.Title)
}

func (r *Runner) notify(cfg *config.Config, status *models.RunStatus) {
	if cfg.Webhook.URL == "" {
		return
	}
	eventType := webhook.EventCompleted
	if status.State == models.RunFailed {
		eventType = webhook.EventFailed
	}
	webhook.DeliverAsync(cfg.Webhook.URL, cfg.Webhook.Secret, webhook.NewEvent(eventType, status.ID, status.Result), nil)
}
