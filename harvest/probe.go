package harvest

import (
	"context"
	"strings"
)

// linkByText returns the first <a> whose visible text contains text,
// compared case-insensitively.
func linkByText(ctx context.Context, page Page, text string) (Element, bool, error) {
	links, err := page.Elements(ctx, "a")
	if err != nil {
		return nil, false, err
	}
	needle := strings.ToLower(text)
	for _, link := range links {
		got, err := link.Text(ctx)
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(got), needle) {
			return link, true, nil
		}
	}
	return nil, false, nil
}

// clickFirstMatchingText follows the first link matching one of candidates,
// in order. Each click is joined with the navigation it starts, so a true
// result means the linked page has loaded. Lookup, click or navigation
// errors move on to the next candidate; it reports the candidate that was
// followed, or false when none could be.
func (s *Session) clickFirstMatchingText(ctx context.Context, candidates []string) (string, bool) {
	for _, text := range candidates {
		if ctx.Err() != nil {
			return "", false
		}
		link, found, err := linkByText(ctx, s.page, text)
		if err != nil || !found {
			continue
		}
		err = s.clickAndAwaitNavigation(ctx, func(ctx context.Context) error {
			clickCtx, cancel := context.WithTimeout(ctx, s.opts.ClickTimeout)
			defer cancel()
			return link.Click(clickCtx)
		})
		if err != nil {
			s.log.Debug("link did not navigate, trying next candidate", "text", text, "error", err)
			continue
		}
		return text, true
	}
	return "", false
}

// findFirst returns the first element matching any selector, in order.
func findFirst(ctx context.Context, page Page, selectors ...string) (Element, bool, error) {
	for _, sel := range selectors {
		els, err := page.Elements(ctx, sel)
		if err != nil {
			return nil, false, err
		}
		if len(els) > 0 {
			return els[0], true, nil
		}
	}
	return nil, false, nil
}

// fieldByHint returns the first <input> whose name or id contains one of
// hints, case-insensitively.
func fieldByHint(ctx context.Context, page Page, hints ...string) (Element, bool, error) {
	inputs, err := page.Elements(ctx, "input")
	if err != nil {
		return nil, false, err
	}
	for _, in := range inputs {
		for _, attr := range []string{"name", "id"} {
			v, err := in.Attribute(ctx, attr)
			if err != nil || v == "" {
				continue
			}
			v = strings.ToLower(v)
			for _, h := range hints {
				if strings.Contains(v, strings.ToLower(h)) {
					return in, true, nil
				}
			}
		}
	}
	return nil, false, nil
}

// fillFirstMatchingField fills the first field matched by hints. A missing
// field is not an error.
func (s *Session) fillFirstMatchingField(ctx context.Context, value string, hints ...string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.SelectorTimeout)
	defer cancel()

	field, found, err := fieldByHint(ctx, s.page, hints...)
	if err != nil || !found {
		return false, err
	}
	return true, field.Fill(ctx, value)
}

// submitControl returns the first submit-typed input or button, or the first
// input whose value contains one of valueHints.
func submitControl(ctx context.Context, page Page, valueHints ...string) (Element, bool, error) {
	el, found, err := findFirst(ctx, page, `input[type="submit"]`, `button[type="submit"]`)
	if err != nil || found {
		return el, found, err
	}
	inputs, err := page.Elements(ctx, "input")
	if err != nil {
		return nil, false, err
	}
	for _, in := range inputs {
		v, err := in.Attribute(ctx, "value")
		if err != nil || v == "" {
			continue
		}
		v = strings.ToLower(v)
		for _, h := range valueHints {
			if strings.Contains(v, strings.ToLower(h)) {
				return in, true, nil
			}
		}
	}
	return nil, false, nil
}

// visibleSubmitControl returns the first visible submit-typed input or button.
func visibleSubmitControl(ctx context.Context, page Page) (Element, bool, error) {
	for _, sel := range []string{`input[type="submit"]`, `button[type="submit"]`} {
		els, err := page.Elements(ctx, sel)
		if err != nil {
			return nil, false, err
		}
		for _, el := range els {
			if ok, err := el.Visible(ctx); err == nil && ok {
				return el, true, nil
			}
		}
	}
	return nil, false, nil
}
