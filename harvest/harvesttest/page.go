// Package harvesttest provides a scripted in-memory browser page for
// exercising harvest sessions without Chromium.
//
// A Page holds named screens of static HTML. Navigation happens through
// data attributes:
//
//	<a data-goto="home">            clicking loads screen "home"
//	<form data-goto="results">      submitting (submit click or Enter) loads "results"
//	<a data-fail-click="true">      clicking returns an error
//
// Field edits (fill, select, check) are written back into the DOM, so HTML
// snapshots show them.
//
// With NavDelay set, clicks and key presses that navigate return at once and
// the next screen loads later, the way a real browser dispatches a click
// before the new document arrives. WaitReady does not wait for it.
package harvesttest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/use-agent/sosharvest/harvest"
)

var (
	_ harvest.Page    = (*Page)(nil)
	_ harvest.Element = (*Element)(nil)
)

var submitMatcher = cascadia.MustCompile(`input[type="submit"], button[type="submit"], button:not([type])`)

// ErrClickFailed is returned by clicks on elements marked data-fail-click.
var ErrClickFailed = errors.New("harvesttest: click failed")

// Page is a fake harvest.Page. It is safe for concurrent use.
type Page struct {
	mu      sync.Mutex
	screens map[string]string
	routes  map[string]string
	doc     *goquery.Document
	current string
	navCh   chan struct{}
	visited []string
	clicked []string
	closed  bool

	// ScreenshotErr, when set, fails every screenshot.
	ScreenshotErr error

	// NavDelay, when positive, defers screen loads triggered by clicks and
	// key presses by that long.
	NavDelay time.Duration
}

// NewPage creates a page over screens. Nothing is loaded until Navigate.
func NewPage(screens map[string]string) *Page {
	return &Page{
		screens: screens,
		routes:  make(map[string]string),
		navCh:   make(chan struct{}),
	}
}

// Route makes Navigate(url) load screen.
func (p *Page) Route(url, screen string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes[url] = screen
	return p
}

// Current returns the loaded screen name.
func (p *Page) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Visited returns every screen loaded so far, in order.
func (p *Page) Visited() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.visited...)
}

// Clicked returns the trimmed text (or value) of every clicked element.
func (p *Page) Clicked() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicked...)
}

// Closed reports whether Close was called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close marks the page closed.
func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// follow loads screen for a click or key press. Must be called with p.mu
// held. A deferred load validates the screen up front so a bad target still
// fails the action.
func (p *Page) follow(screen string) error {
	if p.NavDelay <= 0 {
		return p.load(screen)
	}
	if _, ok := p.screens[screen]; !ok {
		return fmt.Errorf("harvesttest: unknown screen %q", screen)
	}
	time.AfterFunc(p.NavDelay, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		_ = p.load(screen)
	})
	return nil
}

// load must be called with p.mu held.
func (p *Page) load(screen string) error {
	raw, ok := p.screens[screen]
	if !ok {
		return fmt.Errorf("harvesttest: unknown screen %q", screen)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return fmt.Errorf("harvesttest: parse screen %q: %w", screen, err)
	}
	p.doc = doc
	p.current = screen
	p.visited = append(p.visited, screen)
	close(p.navCh)
	p.navCh = make(chan struct{})
	return nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	screen, ok := p.routes[url]
	if !ok {
		screen = url
	}
	return p.load(screen)
}

func (p *Page) WaitReady(ctx context.Context) error {
	return ctx.Err()
}

func (p *Page) ExpectNavigation(ctx context.Context) func() error {
	p.mu.Lock()
	ch := p.navCh
	p.mu.Unlock()
	return func() error {
		select {
		case <-ch:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return "", errors.New("harvesttest: no document loaded")
	}
	return goquery.OuterHtml(p.doc.Selection)
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ScreenshotErr != nil {
		return nil, p.ScreenshotErr
	}
	return []byte("\x89PNG fake screenshot of " + p.current), nil
}

func (p *Page) Text(ctx context.Context, selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return "", nil
	}
	return p.doc.Find(selector).First().Text(), nil
}

func (p *Page) Elements(ctx context.Context, selector string) ([]harvest.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return nil, nil
	}
	if _, err := cascadia.ParseGroup(selector); err != nil {
		return nil, fmt.Errorf("harvesttest: bad selector %q: %w", selector, err)
	}
	var out []harvest.Element
	p.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, &Element{page: p, sel: s})
	})
	return out, nil
}

// PressKey with Enter submits the first navigating form on the screen.
func (p *Page) PressKey(ctx context.Context, key string) error {
	if key != harvest.KeyEnter {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return nil
	}
	if target, ok := p.doc.Find("form[data-goto]").First().Attr("data-goto"); ok {
		return p.follow(target)
	}
	return nil
}

// Element is a node of the page's current document.
type Element struct {
	page *Page
	sel  *goquery.Selection
}

func (e *Element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := e.page
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, fail := e.sel.Attr("data-fail-click"); fail {
		return ErrClickFailed
	}
	label := strings.TrimSpace(e.sel.Text())
	if label == "" {
		label, _ = e.sel.Attr("value")
	}
	p.clicked = append(p.clicked, label)

	if t, _ := e.sel.Attr("type"); t == "radio" || t == "checkbox" {
		e.sel.SetAttr("checked", "checked")
	}
	if target, ok := e.sel.Attr("data-goto"); ok {
		return p.follow(target)
	}
	if e.sel.Nodes != nil && submitMatcher.Match(e.sel.Nodes[0]) {
		return e.submit()
	}
	return nil
}

// submit loads the enclosing form's target. Caller holds the page lock.
func (e *Element) submit() error {
	form := e.sel.Closest("form")
	if target, ok := form.Attr("data-goto"); ok {
		return e.page.follow(target)
	}
	return nil
}

func (e *Element) Fill(ctx context.Context, value string) error {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	e.sel.SetAttr("value", value)
	return nil
}

func (e *Element) SelectOption(ctx context.Context, by harvest.SelectBy, value string) error {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()

	var match *goquery.Selection
	e.sel.Find("option").EachWithBreak(func(_ int, opt *goquery.Selection) bool {
		var got string
		if by == harvest.ByValue {
			got, _ = opt.Attr("value")
		} else {
			got = strings.TrimSpace(opt.Text())
		}
		if got == value {
			match = opt
			return false
		}
		return true
	})
	if match == nil {
		return fmt.Errorf("harvesttest: no option %q", value)
	}
	e.sel.Find("option").RemoveAttr("selected")
	match.SetAttr("selected", "selected")
	return nil
}

func (e *Element) Check(ctx context.Context) error {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	e.sel.SetAttr("checked", "checked")
	return nil
}

func (e *Element) Attribute(ctx context.Context, name string) (string, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	v, _ := e.sel.Attr(name)
	return v, nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return e.sel.Text(), nil
}

// Visible is false for type=hidden inputs and for anything inside a node
// with the hidden attribute or an inline display:none.
func (e *Element) Visible(ctx context.Context) (bool, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if t, _ := e.sel.Attr("type"); t == "hidden" {
		return false, nil
	}
	nodes := e.sel.AddSelection(e.sel.Parents())
	hidden := false
	nodes.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if _, ok := s.Attr("hidden"); ok {
			hidden = true
			return false
		}
		style, _ := s.Attr("style")
		if strings.Contains(strings.ReplaceAll(style, " ", ""), "display:none") {
			hidden = true
			return false
		}
		return true
	})
	return !hidden, nil
}

// Press with Enter submits the enclosing form.
func (e *Element) Press(ctx context.Context, key string) error {
	if key != harvest.KeyEnter {
		return nil
	}
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return e.submit()
}
