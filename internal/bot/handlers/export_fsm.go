package handlers

import (
	"context"
	"database/sql"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/leelingzhen/telegram-attendance-bot/internal/db"
	"github.com/leelingzhen/telegram-attendance-bot/internal/eventid"
	"github.com/leelingzhen/telegram-attendance-bot/internal/export"
	"github.com/leelingzhen/telegram-attendance-bot/internal/metrics"
	"github.com/leelingzhen/telegram-attendance-bot/internal/models"
	"github.com/leelingzhen/telegram-attendance-bot/internal/tg"
)

const (
	expPrev   = "exp_prev"
	expNext   = "exp_next"
	expCancel = "exp_cancel"
)

type exportState struct {
	Page   int
	Events []models.Event
	MsgID  int
}

var exportFSM sync.Map // chatID -> *exportState

func InExportFlow(chatID int64) bool {
	_, ok := exportFSM.Load(chatID)
	return ok
}

// StartExportFSM exports one event's roster as an xlsx document.
func StartExportFSM(ctx context.Context, bot *tgbotapi.BotAPI, database *sql.DB, msg *tgbotapi.Message, loc *time.Location) {
	chatID := msg.Chat.ID
	events, err := db.ListFutureEvents(ctx, database, eventid.Now(loc), models.TierTeamManager)
	if err != nil {
		metrics.HandlerErrors.Inc()
		sendText(bot, chatID, "Could not fetch events, please try again.")
		return
	}
	if len(events) == 0 {
		sendText(bot, chatID, "No upcoming events.")
		return
	}
	st := &exportState{Events: events}
	exportFSM.Store(chatID, st)
	st.MsgID = replaceOrSend(bot, chatID, 0, "Export attendance for which event?", exportKeyboard(st))
}

func exportKeyboard(st *exportState) *tgbotapi.InlineKeyboardMarkup {
	rows := dateButtons(st.Events, st.Page, "exp_")
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", expCancel),
	))
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

func HandleExportCallback(ctx context.Context, bot *tgbotapi.BotAPI, database *sql.DB, cb *tgbotapi.CallbackQuery) {
	chatID := cb.Message.Chat.ID
	v, ok := exportFSM.Load(chatID)
	if !ok {
		return
	}
	st := v.(*exportState)
	_, _ = tg.Request(bot, tgbotapi.NewCallback(cb.ID, ""))

	switch cb.Data {
	case expCancel:
		exportFSM.Delete(chatID)
		replaceOrSend(bot, chatID, st.MsgID, "Okay.", nil)
		return
	case expPrev:
		st.Page--
		st.MsgID = replaceOrSend(bot, chatID, st.MsgID, "Export attendance for which event?", exportKeyboard(st))
		return
	case expNext:
		st.Page++
		st.MsgID = replaceOrSend(bot, chatID, st.MsgID, "Export attendance for which event?", exportKeyboard(st))
		return
	}

	id, ok := parseEventCallback(cb.Data)
	if !ok {
		return
	}
	ev, err := db.GetEvent(ctx, database, id)
	if err != nil || ev == nil {
		metrics.HandlerErrors.Inc()
		return
	}
	exportFSM.Delete(chatID)
	sendExport(ctx, bot, database, chatID, st.MsgID, *ev)
}

func sendExport(ctx context.Context, bot *tgbotapi.BotAPI, database *sql.DB, chatID int64, msgID int, ev models.Event) {
	attending, absent, err := rosterByStatus(ctx, database, ev.ID)
	if err != nil {
		metrics.HandlerErrors.Inc()
		sendText(bot, chatID, "Could not fetch the roster, please try again.")
		return
	}
	unindicated, err := db.UnindicatedMembers(ctx, database, ev.ID)
	if err != nil {
		metrics.HandlerErrors.Inc()
		sendText(bot, chatID, "Could not fetch the roster, please try again.")
		return
	}

	wb, err := export.NewAttendanceWorkbook(export.AttendanceSheets(attending, absent, unindicated))
	if err != nil {
		metrics.HandlerErrors.Inc()
		sendText(bot, chatID, "Could not build the export, please try again.")
		return
	}
	data, err := wb.Bytes()
	if err != nil {
		metrics.HandlerErrors.Inc()
		sendText(bot, chatID, "Could not build the export, please try again.")
		return
	}

	deleteStepMsg(bot, chatID, msgID)
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  export.BuildAttendanceFilename(ev),
		Bytes: data,
	})
	doc.Caption = ev.EventType + " on " + ev.PrettyDate()
	if _, err := tg.Send(bot, doc); err != nil {
		metrics.HandlerErrors.Inc()
		sendText(bot, chatID, "Could not upload the export, please try again.")
	}
}

// rosterByStatus gathers member and guest rows for both genders, once
// per status bucket.
func rosterByStatus(ctx context.Context, database *sql.DB, eventID eventid.ID) (attending, absent []db.AttendanceRow, err error) {
	for _, status := range []models.AttendanceStatus{models.StatusAttending, models.StatusAbsent} {
		var bucket []db.AttendanceRow
		for _, gender := range []models.Gender{models.Male, models.Female} {
			members, err := db.MemberAttendance(ctx, database, eventID, status, gender)
			if err != nil {
				return nil, nil, err
			}
			guests, err := db.GuestAttendance(ctx, database, eventID, status, gender)
			if err != nil {
				return nil, nil, err
			}
			bucket = append(bucket, members...)
			bucket = append(bucket, guests...)
		}
		if status == models.StatusAttending {
			attending = bucket
		} else {
			absent = bucket
		}
	}
	return attending, absent, nil
}
