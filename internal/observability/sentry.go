package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// Version is stamped at build time:
//
//	go build -ldflags "-X .../internal/observability.Version=v1.2.3"
var Version = "dev"

// InitSentry wires error capture for one bot surface. A blank DSN
// disables it; the returned flush must still be deferred.
func InitSentry(dsn, env, surface string) (func(), error) {
	if dsn == "" {
		return func() {}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: env,
		Release:     "telegram-attendance-bot@" + Version,
		ServerName:  surface,
	}); err != nil {
		return func() {}, err
	}
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("bot", surface)
	})
	return func() { sentry.Flush(2 * time.Second) }, nil
}

func CaptureErr(err error) {
	if err != nil {
		sentry.CaptureException(err)
	}
}
