package handlers

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/leelingzhen/telegram-attendance-bot/internal/access"
	"github.com/leelingzhen/telegram-attendance-bot/internal/bot/shared/fsmutil"
	"github.com/leelingzhen/telegram-attendance-bot/internal/db"
	"github.com/leelingzhen/telegram-attendance-bot/internal/event"
	"github.com/leelingzhen/telegram-attendance-bot/internal/eventid"
	"github.com/leelingzhen/telegram-attendance-bot/internal/livemsg"
	"github.com/leelingzhen/telegram-attendance-bot/internal/metrics"
	"github.com/leelingzhen/telegram-attendance-bot/internal/models"
	"github.com/leelingzhen/telegram-attendance-bot/internal/tg"
)

const (
	evtStepMenu = iota
	evtStepPickEvent
	evtStepDateTime
	evtStepEdit
	evtStepType
	evtStepReschedule
	evtStepEnd
	evtStepLocation
	evtStepAccess
	evtStepAnnounce
	evtStepDeleteConfirm

	evtCreate     = "evt_create"
	evtManage     = "evt_manage"
	evtPrev       = "evt_prev"
	evtNext       = "evt_next"
	evtEditType   = "evt_type"
	evtEditWhen   = "evt_when"
	evtEditEnd    = "evt_end"
	evtEditWhere  = "evt_where"
	evtEditAccess = "evt_access"
	evtEditAcct   = "evt_acct"
	evtEditAnn    = "evt_announce"
	evtDelete     = "evt_delete"
	evtDeleteYes  = "evt_delete_yes"
	evtSave       = "evt_save"
	evtBack       = "evt_back"
	evtCancel     = "evt_cancel"

	evtTypePrefix   = "evt_type_"
	evtAccessPrefix = "evt_access_"
)

var eventTypes = []string{"Field Training", "Scrim", "Hardcourt/Track Training", "Gym/Pod Training", "Cohesion"}

type eventState struct {
	Step      int
	Page      int
	Events    []models.Event
	Rec       *event.Record
	ActorTier int
	Dirty     bool
	MsgID     int
}

var eventFSM sync.Map // chatID -> *eventState

func getEventState(chatID int64) *eventState {
	v, ok := eventFSM.Load(chatID)
	if !ok {
		return nil
	}
	return v.(*eventState)
}

func InEventFlow(chatID int64) bool { return getEventState(chatID) != nil }

// StartEventFSM opens the event editor. Core tier and above only.
func StartEventFSM(ctx context.Context, bot *tgbotapi.BotAPI, database *sql.DB, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	tier, err := db.TierOf(ctx, database, msg.From.ID)
	if err != nil {
		metrics.HandlerErrors.Inc()
		return
	}
	if !access.IsAuthorized(tier, models.TierCore) {
		sendText(bot, chatID, "You need core access to manage events.")
		return
	}
	st := &eventState{Step: evtStepMenu, ActorTier: tier}
	eventFSM.Store(chatID, st)
	st.MsgID = replaceOrSend(bot, chatID, 0, "What would you like to do?", eventMenuKeyboard())
}

func eventMenuKeyboard() *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("➕ Create Event", evtCreate)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✏️ Manage Existing", evtManage)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", evtCancel)),
	)
	return &kb
}

// requiresRecord reports whether a callback only makes sense with a
// loaded record: the edit-screen buttons, plus the pick lists they
// open. A stale keyboard from an abandoned session can deliver any of
// these to a freshly opened menu whose record is still nil.
func requiresRecord(data string) bool {
	switch data {
	case evtEditType, evtEditWhen, evtEditEnd, evtEditWhere, evtEditAccess,
		evtEditAcct, evtEditAnn, evtBack, evtDelete, evtDeleteYes, evtSave:
		return true
	}
	return strings.HasPrefix(data, evtTypePrefix) || strings.HasPrefix(data, evtAccessPrefix)
}

func eventEditText(st *eventState) string {
	var sb strings.Builder
	if !st.Rec.Exists() {
		sb.WriteString("New event (unsaved)\n\n")
	} else if st.Dirty {
		sb.WriteString("Editing event (unsaved changes)\n\n")
	}
	sb.WriteString(eventDetails(st.Rec.Event))
	if st.Rec.Event.Announcement != "" {
		sb.WriteString("\n\nAnnouncement:\n" + st.Rec.Event.Announcement)
	}
	return sb.String()
}

func eventEditKeyboard() *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Type", evtEditType),
			tgbotapi.NewInlineKeyboardButtonData("Date/Time", evtEditWhen),
			tgbotapi.NewInlineKeyboardButtonData("End Time", evtEditEnd),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Location", evtEditWhere),
			tgbotapi.NewInlineKeyboardButtonData("Access", evtEditAccess),
			tgbotapi.NewInlineKeyboardButtonData("Accountability", evtEditAcct),
		),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Announcement", evtEditAnn)),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💾 Save", evtSave),
			tgbotapi.NewInlineKeyboardButtonData("🗑 Delete", evtDelete),
		),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", evtCancel)),
	)
	return &kb
}

func showEventEdit(bot *tgbotapi.BotAPI, st *eventState, chatID int64) {
	st.Step = evtStepEdit
	st.MsgID = replaceOrSend(bot, chatID, st.MsgID, eventEditText(st), eventEditKeyboard())
}

// HandleEventText consumes the free-text steps of the editor.
func HandleEventText(ctx context.Context, bot *tgbotapi.BotAPI, database *sql.DB, msg *tgbotapi.Message, loc *time.Location) {
	chatID := msg.Chat.ID
	st := getEventState(chatID)
	if st == nil {
		return
	}
	if fsmutil.IsCancelText(msg.Text) {
		eventFSM.Delete(chatID)
		sendText(bot, chatID, "No changes made.")
		return
	}

	switch st.Step {
	case evtStepDateTime, evtStepReschedule:
		start, err := parseDateTime(msg.Text, loc)
		if err != nil {
			sendText(bot, chatID, "I could not read that. Send date and time as DD/MM/YYYY HHMM, e.g. 20/01/2026 1930.")
			return
		}
		if st.Step == evtStepDateTime {
			st.Rec = event.New(database, start)
		} else {
			st.Rec.RescheduleTo(start)
		}
		conflict, err := st.Rec.HasConflict(ctx)
		if err != nil {
			metrics.HandlerErrors.Inc()
			sendText(bot, chatID, "Something went wrong, please try again.")
			return
		}
		if conflict {
			// Stay on the date step; nothing has been written.
			sendText(bot, chatID, "There is already an event starting at that time. Pick another date/time.")
			return
		}
		st.Dirty = true
		showEventEdit(bot, st, chatID)

	case evtStepType:
		st.Rec.SetType(strings.TrimSpace(msg.Text))
		st.Dirty = true
		showEventEdit(bot, st, chatID)

	case evtStepEnd:
		hour, minute, err := parseClock(msg.Text)
		if err != nil {
			sendText(bot, chatID, "Send the end time as HHMM, e.g. 2130.")
			return
		}
		st.Rec.SetEndTime(hour, minute)
		st.Dirty = true
		showEventEdit(bot, st, chatID)

	case evtStepLocation:
		st.Rec.SetLocation(strings.TrimSpace(msg.Text))
		st.Dirty = true
		showEventEdit(bot, st, chatID)

	case evtStepAnnounce:
		st.Rec.SetAnnouncement(msg.Text, tg.EntitiesToSpans(msg.Entities))
		st.Dirty = true
		showEventEdit(bot, st, chatID)
	}
}

// HandleEventCallback consumes the button steps of the editor.
func HandleEventCallback(ctx context.Context, bot *tgbotapi.BotAPI, database *sql.DB, cb *tgbotapi.CallbackQuery, loc *time.Location, queue *livemsg.RefreshQueue) {
	chatID := cb.Message.Chat.ID
	st := getEventState(chatID)
	if st == nil {
		return
	}
	_, _ = tg.Request(bot, tgbotapi.NewCallback(cb.ID, ""))

	if st.Rec == nil && requiresRecord(cb.Data) {
		// Stale edit button; this session never loaded a record.
		st.Step = evtStepMenu
		st.MsgID = replaceOrSend(bot, chatID, st.MsgID, "What would you like to do?", eventMenuKeyboard())
		return
	}

	switch {
	case cb.Data == evtCancel:
		eventFSM.Delete(chatID)
		replaceOrSend(bot, chatID, st.MsgID, "No changes made.", nil)

	case cb.Data == evtCreate:
		st.Step = evtStepDateTime
		st.MsgID = replaceOrSend(bot, chatID, st.MsgID,
			"When does the event start? Send DD/MM/YYYY HHMM, e.g. 20/01/2026 1930.", nil)

	case cb.Data == evtManage:
		events, err := db.ListFutureEvents(ctx, database, eventid.Now(loc), st.ActorTier)
		if err != nil {
			metrics.HandlerErrors.Inc()
			sendText(bot, chatID, "Could not fetch events, please try again.")
			return
		}
		if len(events) == 0 {
			eventFSM.Delete(chatID)
			replaceOrSend(bot, chatID, st.MsgID, "No upcoming events to manage.", nil)
			return
		}
		st.Step = evtStepPickEvent
		st.Events = events
		st.MsgID = replaceOrSend(bot, chatID, st.MsgID, "Which event?", eventPickKeyboard(st))

	case cb.Data == evtPrev, cb.Data == evtNext:
		if st.Step != evtStepPickEvent {
			return
		}
		if cb.Data == evtPrev {
			st.Page--
		} else {
			st.Page++
		}
		st.MsgID = replaceOrSend(bot, chatID, st.MsgID, "Which event?", eventPickKeyboard(st))

	case cb.Data == evtEditType:
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(eventTypes)+1)
		for _, t := range eventTypes {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(t, evtTypePrefix+t)))
		}
		rows = append(rows, fsmutil.BackCancelRow(evtBack, evtCancel))
		kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
		st.Step = evtStepType
		st.MsgID = replaceOrSend(bot, chatID, st.MsgID, "Pick a type, or type your own.", &kb)

	case strings.HasPrefix(cb.Data, evtTypePrefix):
		st.Rec.SetType(strings.TrimPrefix(cb.Data, evtTypePrefix))
		st.Dirty = true
		showEventEdit(bot, st, chatID)

	case cb.Data == evtEditWhen:
		st.Step = evtStepReschedule
		st.MsgID = replaceOrSend(bot, chatID, st.MsgID,
			"New start date and time? Send DD/MM/YYYY HHMM.", nil)

	case cb.Data == evtEditEnd:
		st.Step = evtStepEnd
		st.MsgID = replaceOrSend(bot, chatID, st.MsgID, "New end time? Send HHMM.", nil)

	case cb.Data == evtEditWhere:
		st.Step = evtStepLocation
		st.MsgID = replaceOrSend(bot, chatID, st.MsgID, "Where is it held?", nil)

	case cb.Data == evtEditAccess:
		levels, err := access.New(database).LevelsVisibleTo(ctx, st.ActorTier)
		if err != nil {
			metrics.HandlerErrors.Inc()
			return
		}
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(levels)+1)
		for _, lv := range levels {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(lv.Label, evtAccessPrefix+strconv.Itoa(lv.Tier))))
		}
		rows = append(rows, fsmutil.BackCancelRow(evtBack, evtCancel))
		kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
		st.Step = evtStepAccess
		st.MsgID = replaceOrSend(bot, chatID, st.MsgID, "Lowest tier that can see this event?", &kb)

	case strings.HasPrefix(cb.Data, evtAccessPrefix):
		tier, err := strconv.Atoi(strings.TrimPrefix(cb.Data, evtAccessPrefix))
		if err != nil {
			return
		}
		st.Rec.SetAccess(tier)
		st.Dirty = true
		showEventEdit(bot, st, chatID)

	case cb.Data == evtEditAcct:
		st.Rec.SetAccountable(!st.Rec.Event.Accountable)
		st.Dirty = true
		showEventEdit(bot, st, chatID)

	case cb.Data == evtEditAnn:
		st.Step = evtStepAnnounce
		st.MsgID = replaceOrSend(bot, chatID, st.MsgID,
			"Send the announcement text. Formatting is kept.", nil)

	case cb.Data == evtBack:
		showEventEdit(bot, st, chatID)

	case cb.Data == evtDelete:
		if !st.Rec.Exists() {
			eventFSM.Delete(chatID)
			replaceOrSend(bot, chatID, st.MsgID, "Nothing saved yet, nothing to delete.", nil)
			return
		}
		kb := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Yes, delete it", evtDeleteYes)),
			fsmutil.BackCancelRow(evtBack, evtCancel),
		)
		st.Step = evtStepDeleteConfirm
		st.MsgID = replaceOrSend(bot, chatID, st.MsgID,
			"Delete this event and all its attendance? This cannot be undone.", &kb)

	case cb.Data == evtDeleteYes:
		if err := st.Rec.Delete(ctx); err != nil {
			metrics.HandlerErrors.Inc()
			sendText(bot, chatID, "Could not delete the event, please try again.")
			return
		}
		eventFSM.Delete(chatID)
		replaceOrSend(bot, chatID, st.MsgID, "Event deleted.", nil)

	case cb.Data == evtSave:
		saveEvent(ctx, bot, st, chatID, queue)

	default:
		if st.Step != evtStepPickEvent {
			return
		}
		id, ok := parseEventCallback(cb.Data)
		if !ok {
			return
		}
		rec, err := event.Load(ctx, database, id, loc)
		if err != nil {
			metrics.HandlerErrors.Inc()
			return
		}
		st.Rec = rec
		st.Dirty = false
		showEventEdit(bot, st, chatID)
	}
}

func eventPickKeyboard(st *eventState) *tgbotapi.InlineKeyboardMarkup {
	rows := dateButtons(st.Events, st.Page, "evt_")
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", evtCancel),
	))
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

func saveEvent(ctx context.Context, bot *tgbotapi.BotAPI, st *eventState, chatID int64, queue *livemsg.RefreshQueue) {
	conflict, err := st.Rec.HasConflict(ctx)
	if err != nil {
		metrics.HandlerErrors.Inc()
		sendText(bot, chatID, "Something went wrong, please try again.")
		return
	}
	if conflict {
		st.Step = evtStepReschedule
		st.MsgID = replaceOrSend(bot, chatID, st.MsgID,
			"There is already an event starting at that time. Pick another date/time.", nil)
		return
	}
	if err := st.Rec.Commit(ctx); err != nil {
		metrics.HandlerErrors.Inc()
		sendText(bot, chatID, "Could not save the event, please try again.")
		return
	}
	if err := st.Rec.PushAnnouncement(ctx); err != nil {
		metrics.HandlerErrors.Inc()
	}
	eventFSM.Delete(chatID)
	replaceOrSend(bot, chatID, st.MsgID, "Saved! ✅\n\n"+eventDetails(st.Rec.Event), nil)
	// After a rename the live message rows follow the event, so the
	// refresh goes to the identity it is now stored under.
	queue.Enqueue(st.Rec.StoredID())
}
