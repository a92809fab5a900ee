package runner

import (
	"context"

	"github.com/use-agent/scrapedesk/models"
	"github.com/use-agent/scrapedesk/operation"
)

// Ticket identifies one dispatched request.
type Ticket struct {
	Key  operation.Key
	Type models.ScrapeType

	done chan struct{}
	err  error
}

func newTicket(key operation.Key, typ models.ScrapeType) *Ticket {
	return &Ticket{Key: key, Type: typ, done: make(chan struct{})}
}

func (t *Ticket) finish(err error) {
	t.err = err
	close(t.done)
}

// Done is closed once the backend call has returned.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Wait blocks until the backend call returns or ctx is done. It returns the
// backend error, if any. A nil error does not mean the result was applied:
// the operation may have been cancelled or superseded meanwhile.
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
