// Package broadcast fans a message out to a recipient list with
// per-recipient partial-failure bookkeeping: an unreachable recipient
// is reported and skipped, never aborting the rest of the batch.
package broadcast

import (
	"iter"

	"github.com/leelingzhen/telegram-attendance-bot/internal/metrics"
	"github.com/leelingzhen/telegram-attendance-bot/internal/models"
	"github.com/leelingzhen/telegram-attendance-bot/internal/tg"
)

// Success is the outcome token yielded for a delivered message; a
// failed delivery yields the recipient's handle instead so progress
// UIs can name who was missed.
const Success = "success"

type Dispatcher struct {
	m tg.Messenger
}

func New(m tg.Messenger) *Dispatcher {
	return &Dispatcher{m: m}
}

// SendToList sends text to each recipient in input order and yields one
// outcome per recipient, lazily, so callers can drive progress
// counters. Recoverable transport conditions (recipient blocked the
// bot, chat rejected the content) yield the recipient's handle and the
// loop continues. Any other transport error is yielded as a non-nil
// error and stops the batch: this layer does not paper over outages.
//
// When pin is set, each delivered message is pinned best-effort; a pin
// failure is deliberately not reported.
func (d *Dispatcher) SendToList(recipients []models.User, text string, spans []models.StyleSpan, pin bool) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, rcpt := range recipients {
			ref, err := d.m.Send(rcpt.ID, text, spans)
			if err != nil {
				if tg.IsBlocked(err) || tg.IsRejected(err) {
					metrics.BroadcastSends.WithLabelValues("failed").Inc()
					if !yield(rcpt.PrettyHandle(), nil) {
						return
					}
					continue
				}
				metrics.BroadcastSends.WithLabelValues("fatal").Inc()
				yield("", err)
				return
			}
			if pin {
				_ = d.m.Pin(ref.ChatID, ref.MessageID) // best-effort
			}
			metrics.BroadcastSends.WithLabelValues("success").Inc()
			if !yield(Success, nil) {
				return
			}
		}
	}
}

// CollectFailures drains a SendToList sequence and returns the handles
// that could not be reached, for flows that do not need per-send
// progress.
func CollectFailures(seq iter.Seq2[string, error]) ([]string, error) {
	var failed []string
	for outcome, err := range seq {
		if err != nil {
			return failed, err
		}
		if outcome != Success {
			failed = append(failed, outcome)
		}
	}
	return failed, nil
}
