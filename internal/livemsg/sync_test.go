package livemsg

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/leelingzhen/telegram-attendance-bot/internal/attendance"
	"github.com/leelingzhen/telegram-attendance-bot/internal/models"
	"github.com/leelingzhen/telegram-attendance-bot/internal/tg"
)

type fakeEditor struct {
	errs  map[int64]error
	edits []int64
}

func (f *fakeEditor) Send(chatID int64, text string, spans []models.StyleSpan) (tg.MessageRef, error) {
	return tg.MessageRef{ChatID: chatID, MessageID: 1}, nil
}

func (f *fakeEditor) Edit(chatID int64, messageID int, text string, spans []models.StyleSpan) error {
	f.edits = append(f.edits, chatID)
	return f.errs[chatID]
}

func (f *fakeEditor) Pin(chatID int64, messageID int) error { return nil }

func TestEditAllTalliesOutcomes(t *testing.T) {
	f := &fakeEditor{errs: map[int64]error{
		2: errors.New("Bad Request: message to edit not found"),
		4: errors.New("Bad Request: message is not modified"),
	}}
	s := &Sync{m: f}

	records := []models.LiveMessage{
		{EventID: 202501201900, ChatID: 1, MessageID: 10},
		{EventID: 202501201900, ChatID: 2, MessageID: 20},
		{EventID: 202501201900, ChatID: 3, MessageID: 30},
		{EventID: 202501201900, ChatID: 4, MessageID: 40},
	}
	success, failed := s.editAll(records, "roster")

	// A no-op edit counts as success; a gone message counts as failed
	// but must not stop the walk.
	if success != 3 || failed != 1 {
		t.Fatalf("success=%d failed=%d", success, failed)
	}
	if len(f.edits) != 4 {
		t.Fatalf("edited %d of 4", len(f.edits))
	}
}

func TestRenderSummary(t *testing.T) {
	loc := time.FixedZone("SGT", 8*3600)
	ev := models.Event{
		ID:        202501201900,
		EventType: "Field Training",
		StartAt:   time.Date(2025, 1, 20, 19, 0, 0, 0, loc),
		EndAt:     time.Date(2025, 1, 20, 21, 0, 0, 0, loc),
		Location:  "Queenstown Stadium",
	}
	b := attendance.Buckets{
		AttendingMale:   []string{"Alan", "Ben"},
		AttendingFemale: []string{"Cara"},
		Absent:          []string{"Dan(injured)"},
		Unindicated:     []string{"Eve"},
	}
	got := RenderSummary(ev, b, time.Date(2025, 1, 19, 21, 30, 0, 0, loc))

	for _, want := range []string{
		"Field Training on 20-Jan-25, Mon @ 7:00PM",
		"Total attending: 3",
		"Males (2):\nAlan\nBen",
		"Females (1):\nCara",
		"Absent (1):\nDan(injured)",
		"Not indicated (1):\nEve",
		"Last updated: 19-Jan 9:30PM",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("summary missing %q:\n%s", want, got)
		}
	}
}
