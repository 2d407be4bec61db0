// Package harvest drives one authenticated SOSDirect session: login with the
// optional client-account prompt, navigation to the registered-agent report,
// search submission, and paginated extraction of the result table.
//
// The package only talks to the browser through Page and Element, and to
// storage through ArtifactStore and Dataset, so the state machine runs
// unchanged against go-rod or a scripted test page.
package harvest

import (
	"context"

	"github.com/use-agent/sosharvest/models"
)

// SelectBy picks how SelectOption matches an <option>.
type SelectBy int

const (
	ByLabel SelectBy = iota
	ByValue
)

// KeyEnter is the confirm key used to submit forms without a button.
const KeyEnter = "Enter"

// Page is the browser tab a session drives.
type Page interface {
	// Navigate loads url and returns once the DOM content has loaded.
	Navigate(ctx context.Context, url string) error

	// WaitReady blocks until the current document is past the loading state.
	WaitReady(ctx context.Context) error

	// ExpectNavigation arms a waiter for the next main-frame navigation.
	// It must be called before the action that triggers the navigation.
	ExpectNavigation(ctx context.Context) func() error

	HTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)

	// Text returns the text content of the first element matching selector,
	// or "" when nothing matches.
	Text(ctx context.Context, selector string) (string, error)

	// Elements returns every element matching selector in document order.
	// An empty result is not an error.
	Elements(ctx context.Context, selector string) ([]Element, error)

	PressKey(ctx context.Context, key string) error
}

// Element is a DOM element handle.
type Element interface {
	Click(ctx context.Context) error
	Fill(ctx context.Context, value string) error
	SelectOption(ctx context.Context, by SelectBy, value string) error
	Check(ctx context.Context) error
	Attribute(ctx context.Context, name string) (string, error)
	Text(ctx context.Context) (string, error)
	Visible(ctx context.Context) (bool, error)
	Press(ctx context.Context, key string) error
}

// ArtifactStore is a write-only keyed blob store with overwrite semantics.
type ArtifactStore interface {
	SetValue(ctx context.Context, key string, value []byte, contentType string) error
}

// Dataset is an append-only record store.
type Dataset interface {
	PushData(ctx context.Context, row models.ExtractedRow) error
}
