package harvest

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// clickAndAwaitNavigation runs action while waiting for the navigation it
// triggers. The waiter is armed before the action starts; both must finish
// and the first failure cancels the other.
func (s *Session) clickAndAwaitNavigation(ctx context.Context, action func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.NavTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	wait := s.page.ExpectNavigation(gctx)
	g.Go(wait)
	g.Go(func() error { return action(gctx) })
	return g.Wait()
}

// waitReady waits for DOM-ready under the navigation timeout.
func (s *Session) waitReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.NavTimeout)
	defer cancel()
	return s.page.WaitReady(ctx)
}
