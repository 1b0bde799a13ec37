package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BotUpdates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendancebot", Name: "updates_total", Help: "Processed telegram updates",
	}, []string{"surface"})
	HandlerErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "attendancebot", Name: "handler_errors_total", Help: "Handler errors",
	})
	BroadcastSends = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendancebot", Name: "broadcast_sends_total", Help: "Broadcast send outcomes",
	}, []string{"result"})
	LiveEdits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendancebot", Name: "live_edits_total", Help: "Live summary edit outcomes",
	}, []string{"result"})
	DBPing = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "attendancebot", Name: "db_ping_seconds", Help: "DB ping latency",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(BotUpdates, HandlerErrors, BroadcastSends, LiveEdits, DBPing)
}

func Handler() http.Handler { return promhttp.Handler() }

func ObserveDBPing(d time.Duration) { DBPing.Observe(d.Seconds()) }
