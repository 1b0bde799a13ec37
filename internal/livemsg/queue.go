package livemsg

import (
	"context"

	"github.com/leelingzhen/telegram-attendance-bot/internal/eventid"
)

// RefreshQueue decouples attendance mutations from the summary refresh:
// the mutating handler enqueues and moves on, a single worker drains.
type RefreshQueue struct {
	ch chan eventid.ID
}

func NewRefreshQueue(buf int) *RefreshQueue {
	if buf <= 0 {
		buf = 64
	}
	return &RefreshQueue{ch: make(chan eventid.ID, buf)}
}

// Enqueue requests a refresh for the event. Never blocks; when the
// queue is full the request is dropped, the periodic sweep catches up.
func (q *RefreshQueue) Enqueue(eventID eventid.ID) {
	select {
	case q.ch <- eventID:
	default:
	}
}

// Run drains the queue until ctx is cancelled. Refresh errors are
// swallowed after logging inside RefreshAll; a broken refresh must not
// take the worker down.
func (q *RefreshQueue) Run(ctx context.Context, s *Sync) {
	for {
		select {
		case <-ctx.Done():
			return
		case eventID := <-q.ch:
			_, _, _ = s.RefreshAll(ctx, eventID)
		}
	}
}
