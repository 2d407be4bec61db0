package harvest

import (
	"context"
	"fmt"
	"regexp"

	"github.com/use-agent/sosharvest/models"
)

// ReasonReportUnreachable is the failure reason when no report link matched.
const ReasonReportUnreachable = `Could not find the "Registered Agent activity past 60 days" link.`

var (
	corpHomeLinks = []string{"Business Organizations", "BUSINESS ORGANIZATIONS"}
	reportLinks   = []string{
		"Registered Agent activity past 60 days",
		"Registered Agent activity",
		"Registered Agent Activity past 60 days",
	}
)

var (
	usDateRe  = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)
	isoDateRe = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
)

// NormalizeDate returns MM/DD/YYYY for MM/DD/YYYY and YYYY-MM-DD input.
// Any other value, including "", is returned unchanged.
func NormalizeDate(input string) string {
	if input == "" || usDateRe.MatchString(input) {
		return input
	}
	if m := isoDateRe.FindStringSubmatch(input); m != nil {
		return m[2] + "/" + m[3] + "/" + m[1]
	}
	return input
}

// search drives LOGIN_COMPLETE through SEARCH_SUBMITTED.
func (s *Session) search(ctx context.Context) error {
	if text, ok := s.clickFirstMatchingText(ctx, corpHomeLinks); ok {
		s.log.Debug("opened corporations home", "link", text)
		if err := s.waitReady(ctx); err != nil {
			return fmt.Errorf("wait for corporations home: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.checkpoint(ctx, "A8_HOME_CORP"); err != nil {
		return err
	}

	text, ok := s.clickFirstMatchingText(ctx, reportLinks)
	if err := ctx.Err(); err != nil {
		return err
	}
	if !ok {
		return s.failWith(ctx, "FAIL_RA_60_NOT_REACHED", models.ErrCodeReportUnreachable, ReasonReportUnreachable)
	}
	s.log.Info("opened registered agent report", "link", text)
	if err := s.waitReady(ctx); err != nil {
		return fmt.Errorf("wait for report page: %w", err)
	}
	s.setState(StateReportReached)
	if err := s.checkpoint(ctx, "A9_RA_60_PAGE"); err != nil {
		return err
	}

	if date := NormalizeDate(s.opts.TargetDate); date != "" {
		filled, err := s.fillFirstMatchingField(ctx, date, "date")
		if err != nil {
			return fmt.Errorf("fill target date: %w", err)
		}
		s.log.Debug("target date", "value", date, "filled", filled)
	}
	if s.opts.SearchWildcard != "" {
		filled, err := s.fillFirstMatchingField(ctx, s.opts.SearchWildcard, "name")
		if err != nil {
			return fmt.Errorf("fill search wildcard: %w", err)
		}
		s.log.Debug("search wildcard", "value", s.opts.SearchWildcard, "filled", filled)
	}
	if err := s.checkpoint(ctx, "A10_RA_SEARCH_FILLED"); err != nil {
		return err
	}

	if err := s.submitSearch(ctx); err != nil {
		return err
	}
	s.setState(StateSearchSubmitted)
	return s.checkpoint(ctx, "A11_RA_RESULTS_PAGE_1")
}

func (s *Session) submitSearch(ctx context.Context) error {
	lookupCtx, cancel := context.WithTimeout(ctx, s.opts.SelectorTimeout)
	btn, found, err := visibleSubmitControl(lookupCtx, s.page)
	cancel()
	if err != nil {
		return fmt.Errorf("locate search submit: %w", err)
	}
	if found {
		err = s.clickAndAwaitNavigation(ctx, btn.Click)
	} else {
		s.log.Debug("no visible search submit control, pressing Enter")
		err = s.clickAndAwaitNavigation(ctx, func(ctx context.Context) error {
			return s.page.PressKey(ctx, KeyEnter)
		})
	}
	if err != nil {
		return fmt.Errorf("submit search: %w", err)
	}
	if err := s.waitReady(ctx); err != nil {
		return fmt.Errorf("wait for results page: %w", err)
	}
	return nil
}
