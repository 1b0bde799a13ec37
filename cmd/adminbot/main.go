package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"

	"github.com/leelingzhen/telegram-attendance-bot/internal/app"
	"github.com/leelingzhen/telegram-attendance-bot/internal/config"
	"github.com/leelingzhen/telegram-attendance-bot/internal/db"
	"github.com/leelingzhen/telegram-attendance-bot/internal/livemsg"
	"github.com/leelingzhen/telegram-attendance-bot/internal/logging"
	"github.com/leelingzhen/telegram-attendance-bot/internal/observability"
	"github.com/leelingzhen/telegram-attendance-bot/internal/tg"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using process environment")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, err := logging.Init(cfg.LogLevel, cfg.Env, "adminbot")
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer lg.Closer()

	flushSentry, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, "adminbot")
	if err != nil {
		lg.Sugar.Warnw("sentry init failed", "err", err)
	}
	defer flushSentry()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		lg.Sugar.Fatalw("db open", "err", err)
	}
	defer database.Close()

	// The member bot owns migrations and seeding; the admin surface
	// only verifies the schema is reachable.
	adminBot, err := tgbotapi.NewBotAPI(cfg.AdminBotToken)
	if err != nil {
		lg.Sugar.Fatalw("bot init", "err", err)
	}
	lg.Sugar.Infow("admin bot up", "username", adminBot.Self.UserName)

	// Live summaries were sent by the member bot, so edits must go out
	// through the member bot's token too.
	memberBot, err := tgbotapi.NewBotAPI(cfg.MemberBotToken)
	if err != nil {
		lg.Sugar.Fatalw("member bot init", "err", err)
	}

	sync := livemsg.New(database, tg.NewBotMessenger(memberBot), cfg.Location, lg.Sugar)
	queue := livemsg.NewRefreshQueue(0)
	go queue.Run(ctx, sync)

	app.StartHTTP(ctx, cfg.AdminHTTPAddr, database)

	d := &app.AdminDispatcher{
		Bot:      adminBot,
		DB:       database,
		Loc:      cfg.Location,
		Queue:    queue,
		Limiter:  app.NewChatLimiter(),
		AdminIDs: cfg.AdminIDs,
		Log:      lg.Sugar,
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := adminBot.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		adminBot.StopReceivingUpdates()
	}()

	for update := range updates {
		go d.HandleUpdate(ctx, update)
	}
	lg.Sugar.Info("admin bot stopped")
}
