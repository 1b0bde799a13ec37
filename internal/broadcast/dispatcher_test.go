package broadcast

import (
	"errors"
	"reflect"
	"testing"

	"github.com/leelingzhen/telegram-attendance-bot/internal/models"
	"github.com/leelingzhen/telegram-attendance-bot/internal/tg"
)

// fakeMessenger scripts per-chat outcomes and records the order of
// sends and pins.
type fakeMessenger struct {
	errs    map[int64]error
	pinErrs map[int64]error
	sends   []int64
	pins    []int64
}

func (f *fakeMessenger) Send(chatID int64, text string, spans []models.StyleSpan) (tg.MessageRef, error) {
	f.sends = append(f.sends, chatID)
	if err := f.errs[chatID]; err != nil {
		return tg.MessageRef{}, err
	}
	return tg.MessageRef{ChatID: chatID, MessageID: int(chatID) * 10}, nil
}

func (f *fakeMessenger) Edit(chatID int64, messageID int, text string, spans []models.StyleSpan) error {
	return nil
}

func (f *fakeMessenger) Pin(chatID int64, messageID int) error {
	f.pins = append(f.pins, chatID)
	return f.pinErrs[chatID]
}

var errBlocked = errors.New("Forbidden: bot was blocked by the user")

func recipients(ids ...int64) []models.User {
	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.User{ID: id, Name: "u", Handle: "", Tier: models.TierMember})
	}
	return out
}

func TestSendToListAllSucceed(t *testing.T) {
	m := &fakeMessenger{}
	d := New(m)

	var outcomes []string
	for outcome, err := range d.SendToList(recipients(1, 2, 3), "hello", nil, false) {
		if err != nil {
			t.Fatal(err)
		}
		outcomes = append(outcomes, outcome)
	}
	if want := []string{Success, Success, Success}; !reflect.DeepEqual(outcomes, want) {
		t.Fatalf("outcomes %v", outcomes)
	}
	if want := []int64{1, 2, 3}; !reflect.DeepEqual(m.sends, want) {
		t.Fatalf("send order %v", m.sends)
	}
	if len(m.pins) != 0 {
		t.Fatalf("unexpected pins %v", m.pins)
	}
}

func TestSendToListBlockedRecipientIsIsolated(t *testing.T) {
	m := &fakeMessenger{errs: map[int64]error{2: errBlocked}}
	d := New(m)

	rcpts := recipients(1, 2, 3)
	rcpts[1].Handle = "blocker"

	failed, err := CollectFailures(d.SendToList(rcpts, "hello", nil, false))
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"@blocker"}; !reflect.DeepEqual(failed, want) {
		t.Fatalf("failed %v", failed)
	}
	// The failure must not stop later recipients.
	if want := []int64{1, 2, 3}; !reflect.DeepEqual(m.sends, want) {
		t.Fatalf("send order %v", m.sends)
	}
}

func TestSendToListBlockedWithoutHandle(t *testing.T) {
	m := &fakeMessenger{errs: map[int64]error{1: errBlocked}}
	d := New(m)

	failed, err := CollectFailures(d.SendToList(recipients(1), "hello", nil, false))
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"privated"}; !reflect.DeepEqual(failed, want) {
		t.Fatalf("failed %v", failed)
	}
}

func TestSendToListFatalErrorStopsBatch(t *testing.T) {
	fatal := errors.New("Post \"https://api.telegram.org\": connection refused")
	m := &fakeMessenger{errs: map[int64]error{2: fatal}}
	d := New(m)

	var outcomes int
	var got error
	for outcome, err := range d.SendToList(recipients(1, 2, 3), "hello", nil, false) {
		if err != nil {
			got = err
			break
		}
		if outcome == Success {
			outcomes++
		}
	}
	if !errors.Is(got, fatal) {
		t.Fatalf("got %v", got)
	}
	if outcomes != 1 {
		t.Fatalf("successes before abort: %d", outcomes)
	}
	// Recipient 3 must never be attempted.
	if want := []int64{1, 2}; !reflect.DeepEqual(m.sends, want) {
		t.Fatalf("send order %v", m.sends)
	}
}

func TestSendToListPinsBestEffort(t *testing.T) {
	m := &fakeMessenger{}
	d := New(m)

	failed, err := CollectFailures(d.SendToList(recipients(1, 2), "hello", nil, true))
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 0 {
		t.Fatalf("failed %v", failed)
	}
	if want := []int64{1, 2}; !reflect.DeepEqual(m.pins, want) {
		t.Fatalf("pins %v", m.pins)
	}
}

func TestSendToListPinFailureIsSwallowed(t *testing.T) {
	m := &fakeMessenger{pinErrs: map[int64]error{1: errors.New("Bad Request: not enough rights to pin a message")}}
	d := New(m)

	failed, err := CollectFailures(d.SendToList(recipients(1), "hello", nil, true))
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 0 {
		t.Fatalf("failed %v", failed)
	}
}

func TestSendToListIsLazy(t *testing.T) {
	m := &fakeMessenger{}
	d := New(m)

	// Breaking out early must stop the sends too.
	for range d.SendToList(recipients(1, 2, 3), "hello", nil, false) {
		break
	}
	if want := []int64{1}; !reflect.DeepEqual(m.sends, want) {
		t.Fatalf("send order %v", m.sends)
	}
}
