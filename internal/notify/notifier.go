package notify

import (
	"context"
)

// Notifier enriches an update and dispatches it
type Notifier struct {
	enricher   *Enricher
	dispatcher *Dispatcher
}

// NewNotifier combines an enricher and a dispatcher
func NewNotifier(enricher *Enricher, dispatcher *Dispatcher) *Notifier {
	return &Notifier{enricher: enricher, dispatcher: dispatcher}
}

// NotifyUpdate enriches u and dispatches it to the followers of the package
func (n *Notifier) NotifyUpdate(ctx context.Context, u Update) (DispatchResult, error) {
	e := n.enricher.Enrich(ctx, u)
	return n.dispatcher.Dispatch(ctx, u.PackageName, e, u.PreviousVersion, u.NewVersion)
}
