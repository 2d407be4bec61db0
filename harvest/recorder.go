package harvest

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/use-agent/sosharvest/cleaner"
	"github.com/use-agent/sosharvest/models"
)

// Content types of stored artifacts.
const (
	ContentTypeHTML     = "text/html; charset=utf-8"
	ContentTypePNG      = "image/png"
	ContentTypeMarkdown = "text/markdown; charset=utf-8"
	ContentTypeJSON     = "application/json; charset=utf-8"
)

var unsafeKeyChars = regexp.MustCompile(`[^\w.-]+`)

// SanitizeKey replaces every run of characters outside [A-Za-z0-9_.-] with "_".
func SanitizeKey(key string) string {
	return unsafeKeyChars.ReplaceAllString(key, "_")
}

// CaptureOptions selects which artifacts a checkpoint stores.
type CaptureOptions struct {
	HTML       bool
	Screenshot bool
	Markdown   bool
}

// Recorder snapshots the live page into the artifact store.
type Recorder struct {
	page    Page
	store   ArtifactStore
	opts    CaptureOptions
	baseURL string
	log     *slog.Logger
	onSaved func(kind string)
}

// NewRecorder creates a Recorder. baseURL resolves relative links in
// Markdown digests.
func NewRecorder(page Page, store ArtifactStore, opts CaptureOptions, baseURL string, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{page: page, store: store, opts: opts, baseURL: baseURL, log: log}
}

// Record stores the enabled artifacts for checkpoint key. Page capture
// failures are logged and skipped; a store failure is returned.
func (r *Recorder) Record(ctx context.Context, key string) error {
	safe := SanitizeKey(key)

	if r.opts.HTML || r.opts.Markdown {
		content, err := r.page.HTML(ctx)
		if err != nil {
			r.log.Warn("checkpoint: page html unavailable", "checkpoint", safe, "error", err)
		} else {
			if r.opts.HTML {
				if err := r.put(ctx, safe+".html", []byte(content), ContentTypeHTML, "html"); err != nil {
					return err
				}
			}
			if r.opts.Markdown {
				md, mdErr := cleaner.Markdown(content, r.baseURL)
				if mdErr != nil {
					r.log.Warn("checkpoint: markdown digest failed", "checkpoint", safe, "error", mdErr)
				} else if err := r.put(ctx, safe+".md", []byte(md), ContentTypeMarkdown, "markdown"); err != nil {
					return err
				}
			}
		}
	}

	if r.opts.Screenshot {
		png, err := r.page.Screenshot(ctx)
		if err != nil {
			r.log.Warn("checkpoint: screenshot unavailable", "checkpoint", safe, "error", err)
		} else if err := r.put(ctx, safe+".png", png, ContentTypePNG, "screenshot"); err != nil {
			return err
		}
	}

	r.log.Debug("checkpoint recorded", "checkpoint", safe)
	return nil
}

// WriteResult stores the terminal RESULT.json.
func (r *Recorder) WriteResult(ctx context.Context, data []byte) error {
	return r.put(ctx, "RESULT.json", data, ContentTypeJSON, "result")
}

func (r *Recorder) put(ctx context.Context, key string, data []byte, contentType, kind string) error {
	if err := r.store.SetValue(ctx, key, data, contentType); err != nil {
		he := models.NewHarvestError(models.ErrCodeStore, fmt.Sprintf("failed to store artifact %s", key), err)
		return he
	}
	if r.onSaved != nil {
		r.onSaved(kind)
	}
	return nil
}
