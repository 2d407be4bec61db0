package harvest

import "context"

func (s *Session) ClickFirstMatchingText(ctx context.Context, candidates []string) (string, bool) {
	return s.clickFirstMatchingText(ctx, candidates)
}

func (s *Session) ResolveAccount(ctx context.Context, account string) (AccountOutcome, error) {
	return s.resolveAccount(ctx, account)
}

func (s *Session) PagesProcessed() int { return s.pageNum }

func (s *Session) FillFirstMatchingField(ctx context.Context, value string, hints ...string) (bool, error) {
	return s.fillFirstMatchingField(ctx, value, hints...)
}

var VisibleSubmitControl = visibleSubmitControl
