package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"

	"github.com/leelingzhen/telegram-attendance-bot/internal/app"
	"github.com/leelingzhen/telegram-attendance-bot/internal/config"
	"github.com/leelingzhen/telegram-attendance-bot/internal/db"
	"github.com/leelingzhen/telegram-attendance-bot/internal/eventid"
	"github.com/leelingzhen/telegram-attendance-bot/internal/jobs"
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

	lg, err := logging.Init(cfg.LogLevel, cfg.Env, "memberbot")
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer lg.Closer()

	flushSentry, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, "memberbot")
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

	if err := db.Migrate(database); err != nil {
		lg.Sugar.Fatalw("db migrate", "err", err)
	}
	if err := db.SeedAccessLevels(ctx, database); err != nil {
		lg.Sugar.Fatalw("seed access levels", "err", err)
	}

	bot, err := tgbotapi.NewBotAPI(cfg.MemberBotToken)
	if err != nil {
		lg.Sugar.Fatalw("bot init", "err", err)
	}
	lg.Sugar.Infow("member bot up", "username", bot.Self.UserName)

	sync := livemsg.New(database, tg.NewBotMessenger(bot), cfg.Location, lg.Sugar)
	queue := livemsg.NewRefreshQueue(0)
	go queue.Run(ctx, sync)

	app.StartHTTP(ctx, cfg.HTTPAddr, database)

	runner := jobs.New(ctx)
	runner.Every(10*time.Minute, "live_summary_sweep",
		jobs.LiveSummarySweep(database, sync, func() eventid.ID { return eventid.Now(cfg.Location) }))

	d := &app.MemberDispatcher{
		Bot:     bot,
		DB:      database,
		Loc:     cfg.Location,
		Sync:    sync,
		Queue:   queue,
		Limiter: app.NewChatLimiter(),
		Log:     lg.Sugar,
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := bot.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		bot.StopReceivingUpdates()
	}()

	for update := range updates {
		go d.HandleUpdate(ctx, update)
	}
	lg.Sugar.Info("member bot stopped")
}
