package scraper

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/use-agent/sosharvest/harvest"
)

var (
	_ harvest.Page    = (*Page)(nil)
	_ harvest.Element = (*Element)(nil)
)

// Page adapts a rod page to harvest.Page. Every call binds its own context
// so per-action timeouts apply to the underlying CDP calls.
type Page struct {
	page   *rod.Page
	router *rod.HijackRouter
}

// Navigate loads url and waits for DOMContentLoaded. The lifecycle waiter
// is installed before navigation so a fast load is not missed.
func (p *Page) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx)
	wait := pg.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := pg.Navigate(url); err != nil {
		return err
	}
	wait()
	return ctx.Err()
}

// WaitReady polls document.readyState until the DOM is parsed.
func (p *Page) WaitReady(ctx context.Context) error {
	return p.page.Context(ctx).Wait(rod.Eval(`() => document.readyState !== "loading"`))
}

// ExpectNavigation arms a DOMContentLoaded waiter on the main frame.
func (p *Page) ExpectNavigation(ctx context.Context) func() error {
	wait := p.page.Context(ctx).WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	return func() error {
		wait()
		return ctx.Err()
	}
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	return p.page.Context(ctx).HTML()
}

// Screenshot captures the full page as PNG.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	return p.page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

func (p *Page) Text(ctx context.Context, selector string) (string, error) {
	res, err := p.page.Context(ctx).Eval(`(sel) => {
		const el = document.querySelector(sel);
		return el ? (el.innerText || el.textContent || "") : "";
	}`, selector)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (p *Page) Elements(ctx context.Context, selector string) ([]harvest.Element, error) {
	els, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	out := make([]harvest.Element, len(els))
	for i, el := range els {
		out[i] = &Element{el: el}
	}
	return out, nil
}

func (p *Page) PressKey(ctx context.Context, key string) error {
	k, err := keyFor(key)
	if err != nil {
		return err
	}
	return p.page.Context(ctx).KeyActions().Type(k).Do()
}

// Close stops request interception and closes the tab.
func (p *Page) Close() error {
	if p.router != nil {
		_ = p.router.Stop()
	}
	return p.page.Close()
}

// Element adapts a rod element to harvest.Element.
type Element struct {
	el *rod.Element
}

func (e *Element) Click(ctx context.Context) error {
	return e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}

// Fill replaces the field's value. Typing goes through the input pipeline
// so the portal's own change handlers fire.
func (e *Element) Fill(ctx context.Context, value string) error {
	el := e.el.Context(ctx)
	if value == "" {
		_, err := el.Eval(`() => {
			this.value = "";
			this.dispatchEvent(new Event("input", {bubbles: true}));
			this.dispatchEvent(new Event("change", {bubbles: true}));
		}`)
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("select existing text: %w", err)
	}
	return el.Input(value)
}

func (e *Element) SelectOption(ctx context.Context, by harvest.SelectBy, value string) error {
	el := e.el.Context(ctx)
	if by == harvest.ByValue {
		return el.Select([]string{`[value=` + strconv.Quote(value) + `]`}, true, rod.SelectorTypeCSSSector)
	}
	return el.Select([]string{value}, true, rod.SelectorTypeText)
}

// Check clicks the element unless it is already checked.
func (e *Element) Check(ctx context.Context) error {
	el := e.el.Context(ctx)
	checked, err := el.Property("checked")
	if err != nil {
		return err
	}
	if checked.Bool() {
		return nil
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// Attribute returns "" for a missing attribute.
func (e *Element) Attribute(ctx context.Context, name string) (string, error) {
	v, err := e.el.Context(ctx).Attribute(name)
	if err != nil || v == nil {
		return "", err
	}
	return *v, nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	return e.el.Context(ctx).Text()
}

func (e *Element) Visible(ctx context.Context) (bool, error) {
	return e.el.Context(ctx).Visible()
}

func (e *Element) Press(ctx context.Context, key string) error {
	k, err := keyFor(key)
	if err != nil {
		return err
	}
	return e.el.Context(ctx).Type(k)
}

func keyFor(name string) (input.Key, error) {
	switch name {
	case harvest.KeyEnter:
		return input.Enter, nil
	case "Tab":
		return input.Tab, nil
	case "Escape":
		return input.Escape, nil
	}
	return 0, fmt.Errorf("unsupported key %q", name)
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
