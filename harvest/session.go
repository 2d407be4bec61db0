package harvest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/sosharvest/cleaner"
	"github.com/use-agent/sosharvest/config"
	"github.com/use-agent/sosharvest/metrics"
	"github.com/use-agent/sosharvest/models"
)

// State is a step of the session state machine.
type State string

const (
	StateStart                  State = "START"
	StateLoginPageLoaded        State = "LOGIN_PAGE_LOADED"
	StateCredentialsFilled      State = "CREDENTIALS_FILLED"
	StateSubmitted              State = "SUBMITTED"
	StateAccountSelected        State = "ACCOUNT_SELECTED"
	StateAccountPromptAbsent    State = "ACCOUNT_PROMPT_ABSENT"
	StateAccountSelectionFailed State = "ACCOUNT_SELECTION_FAILED"
	StateLoginComplete          State = "LOGIN_COMPLETE"
	StateReportReached          State = "REPORT_REACHED"
	StateSearchSubmitted        State = "SEARCH_SUBMITTED"
	StateExtracting             State = "EXTRACTING"
	StateComplete               State = "COMPLETE"
	StateFailed                 State = "FAILED"
)

// finalizeTimeout bounds the failure checkpoint and RESULT.json writes,
// which run even after the run's context is done.
const finalizeTimeout = 30 * time.Second

// Options is the per-run input of a Session.
type Options struct {
	RunID           string
	LoginURL        string
	Username        string
	Password        string
	TargetDate      string
	SearchWildcard  string
	AccountSelector string

	MaxPages           int
	StopOnRepeatedPage bool

	NavTimeout      time.Duration
	SelectorTimeout time.Duration
	ClickTimeout    time.Duration

	Capture CaptureOptions
}

// OptionsFromConfig maps the run configuration onto session options.
func OptionsFromConfig(runID string, cfg *config.Config) Options {
	return Options{
		RunID:              runID,
		LoginURL:           cfg.Harvest.LoginURL,
		Username:           cfg.Harvest.Username,
		Password:           cfg.Harvest.Password,
		TargetDate:         cfg.Harvest.TargetDate,
		SearchWildcard:     cfg.Harvest.SearchWildcard,
		AccountSelector:    cfg.Harvest.AccountSelector,
		MaxPages:           cfg.Harvest.MaxPages,
		StopOnRepeatedPage: cfg.Harvest.StopOnRepeatedPage,
		NavTimeout:         cfg.Timeouts.Navigation,
		SelectorTimeout:    cfg.Timeouts.Selector,
		ClickTimeout:       cfg.Timeouts.Click,
		Capture: CaptureOptions{
			HTML:       cfg.Debug.HTML,
			Screenshot: cfg.Debug.Screenshots,
			Markdown:   cfg.Debug.Markdown,
		},
	}
}

// Session is the mutable state of one harvest run. It is not safe for
// concurrent use; a run is strictly sequential.
type Session struct {
	page     Page
	dataset  Dataset
	recorder *Recorder
	opts     Options
	log      *slog.Logger
	metrics  *metrics.Metrics

	state    State
	pageNum  int
	total    int
	reported bool
}

// SessionOption customises a Session.
type SessionOption func(*Session)

// WithLogger sets the session logger. Default: slog.Default().
func WithLogger(l *slog.Logger) SessionOption { return func(s *Session) { s.log = l } }

// WithMetrics records run metrics on m.
func WithMetrics(m *metrics.Metrics) SessionOption { return func(s *Session) { s.metrics = m } }

// NewSession binds a page and the run's stores.
func NewSession(page Page, store ArtifactStore, dataset Dataset, opts Options, sopts ...SessionOption) *Session {
	if opts.MaxPages < 1 {
		opts.MaxPages = 1
	}
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 120 * time.Second
	}
	if opts.SelectorTimeout <= 0 {
		opts.SelectorTimeout = 60 * time.Second
	}
	if opts.ClickTimeout <= 0 {
		opts.ClickTimeout = 2 * time.Second
	}
	s := &Session{
		page:    page,
		dataset: dataset,
		opts:    opts,
		log:     slog.Default(),
		state:   StateStart,
	}
	for _, o := range sopts {
		o(s)
	}
	s.log = s.log.With("run_id", opts.RunID)
	s.recorder = NewRecorder(page, store, opts.Capture, opts.LoginURL, s.log)
	s.recorder.onSaved = s.metrics.IncArtifact
	return s
}

// State returns the current state-machine state.
func (s *Session) State() State { return s.state }

// Total returns the number of rows pushed so far.
func (s *Session) Total() int { return s.total }

// Run executes the whole harvest and writes exactly one RESULT.json.
// On a fatal condition it returns the failure summary together with a
// *models.HarvestError. The caller owns the page and releases it.
func (s *Session) Run(ctx context.Context) (*models.ResultSummary, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveRun(time.Since(start)) }()

	err := s.run(ctx)
	if err == nil {
		s.setState(StateComplete)
		err = s.checkpoint(ctx, "A12_HARVEST_COMPLETE")
	}
	if err == nil {
		err = ctx.Err()
	}
	if err == nil {
		summary := models.Succeeded(s.total, s.pageNum)
		if werr := s.writeResult(ctx, summary); werr != nil {
			s.metrics.IncRun("failed")
			s.metrics.IncFailure(models.ErrCodeStore)
			return nil, werr
		}
		s.metrics.IncRun("succeeded")
		s.log.Info("harvest complete", "total", s.total, "pages_processed", s.pageNum)
		return summary, nil
	}

	s.metrics.IncRun("failed")
	if s.reported {
		he := models.AsHarvestError(err)
		return models.Failed(he.Message), he
	}

	step := s.state
	var he *models.HarvestError
	switch {
	case ctx.Err() != nil:
		he = models.CategorizeError(errors.Join(ctx.Err(), err), fmt.Sprintf("%s interrupted: %v", stepLabel(step), ctx.Err()))
	case !errors.As(err, &he) || he.Code != models.ErrCodeStore:
		he = models.CategorizeError(err, fmt.Sprintf("%s failed: %v", stepLabel(step), err))
	}
	he = s.fail(ctx, "FAIL_"+string(step), he)
	return models.Failed(he.Message), he
}

func (s *Session) run(ctx context.Context) error {
	if err := s.login(ctx); err != nil {
		return err
	}
	if err := s.search(ctx); err != nil {
		return err
	}
	return s.extract(ctx)
}

// fail captures the failure checkpoint, writes the failure summary and
// returns he annotated with the checkpoint. The writes outlive ctx so a
// cancelled run still reports.
func (s *Session) fail(ctx context.Context, key string, he *models.HarvestError) *models.HarvestError {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	s.reported = true
	he.Checkpoint = SanitizeKey(key)
	s.setState(StateFailed)
	s.metrics.IncFailure(he.Code)
	s.log.Error("harvest failed", "checkpoint", he.Checkpoint, "code", he.Code, "reason", he.Message)

	if s.opts.Capture.HTML || s.opts.Capture.Markdown {
		if content, err := s.page.HTML(ctx); err == nil {
			if excerpt := cleaner.Excerpt(content, s.opts.LoginURL); excerpt != "" {
				s.log.Info("failure page excerpt", "checkpoint", he.Checkpoint, "excerpt", excerpt)
			}
		}
	}

	var errs []error
	if err := s.checkpoint(ctx, key); err != nil {
		errs = append(errs, err)
	}
	if err := s.writeResult(ctx, models.Failed(he.Message)); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		he.Err = errors.Join(append([]error{he.Err}, errs...)...)
	}
	return he
}

// failWith reports a fatal condition recognised by the state machine.
func (s *Session) failWith(ctx context.Context, key, code, reason string) error {
	return s.fail(ctx, key, models.NewHarvestError(code, reason, nil))
}

func (s *Session) checkpoint(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.NavTimeout)
	defer cancel()
	return s.recorder.Record(ctx, key)
}

func (s *Session) writeResult(ctx context.Context, summary *models.ResultSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return models.NewHarvestError(models.ErrCodeInternal, "failed to encode result", err)
	}
	return s.recorder.WriteResult(ctx, data)
}

func (s *Session) setState(st State) {
	if s.state == st {
		return
	}
	s.log.Debug("session state", "from", s.state, "to", st)
	s.state = st
}

func stepLabel(st State) string {
	switch st {
	case StateStart:
		return "loading the login page"
	case StateLoginPageLoaded:
		return "filling credentials"
	case StateCredentialsFilled:
		return "submitting the login form"
	case StateSubmitted, StateAccountSelected, StateAccountPromptAbsent, StateAccountSelectionFailed:
		return "selecting the client account"
	case StateLoginComplete:
		return "opening the registered agent report"
	case StateReportReached:
		return "submitting the report search"
	case StateComplete:
		return "recording the final checkpoint"
	default:
		return "extracting results"
	}
}
