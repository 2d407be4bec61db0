package harvest

import (
	"context"
	"regexp"
	"strings"
)

// AccountOutcome is the result of the client-account step.
type AccountOutcome int

const (
	// AccountNotApplicable: no account configured, or the portal did not ask.
	AccountNotApplicable AccountOutcome = iota
	// AccountSelected: a widget accepted the configured account.
	AccountSelected
	// AccountUnresolved: the portal asked but no widget accepted the account.
	AccountUnresolved
)

func (o AccountOutcome) String() string {
	switch o {
	case AccountSelected:
		return "selected"
	case AccountUnresolved:
		return "unresolved"
	default:
		return "not_applicable"
	}
}

var (
	accountPromptRe    = regexp.MustCompile(`(?i)client account|payment account|select.*account`)
	accountRejectionRe = regexp.MustCompile(`(?i)payment.*missing|must.*select.*account`)
)

// resolveAccount satisfies the optional "choose client/payment account"
// prompt. Dropdowns are tried first (label, then value), then radio buttons
// by value, then any element whose exact text is the account.
func (s *Session) resolveAccount(ctx context.Context, account string) (AccountOutcome, error) {
	if account == "" {
		return AccountNotApplicable, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.SelectorTimeout)
	defer cancel()

	body, err := s.page.Text(ctx, "body")
	if err != nil {
		return AccountNotApplicable, err
	}
	if !accountPromptRe.MatchString(body) {
		return AccountNotApplicable, nil
	}
	s.log.Info("client account prompt detected", "account", account)

	selects, err := s.page.Elements(ctx, "select")
	if err != nil {
		return AccountUnresolved, err
	}
	for _, sel := range selects {
		if err := sel.SelectOption(ctx, ByLabel, account); err == nil {
			return AccountSelected, nil
		}
		if err := sel.SelectOption(ctx, ByValue, account); err == nil {
			return AccountSelected, nil
		}
	}

	want := strings.TrimSpace(account)
	radios, err := s.page.Elements(ctx, `input[type="radio"]`)
	if err != nil {
		return AccountUnresolved, err
	}
	for _, r := range radios {
		v, err := r.Attribute(ctx, "value")
		if err != nil {
			continue
		}
		if strings.TrimSpace(v) == want {
			if err := r.Check(ctx); err != nil {
				return AccountUnresolved, err
			}
			return AccountSelected, nil
		}
	}

	candidates, err := s.page.Elements(ctx, "a, button, label, td, span, div")
	if err != nil {
		return AccountUnresolved, err
	}
	for _, el := range candidates {
		text, err := el.Text(ctx)
		if err != nil || strings.TrimSpace(text) != account {
			continue
		}
		if err := el.Click(ctx); err == nil {
			return AccountSelected, nil
		}
		break
	}

	return AccountUnresolved, nil
}
