package orchestrator

import (
	"context"

	"gitlab.com/tozd/go/errors"
)

// phase3BuildRedirectCache is phase 3. Redirects are already populated into
// o.redirects during phase 2's discovery; this phase only applies the
// main-page rewrite rule: if the configured main-page id is itself a
// redirect source, the main-page id becomes the redirect's target
// (single-hop resolution only; chained redirects are left unresolved).
func (o *Orchestrator) phase3BuildRedirectCache(ctx context.Context) errors.E {
	if target, ok := o.redirects.Get(o.mainPageID); ok {
		o.mainPageID = target
	}
	return nil
}
