package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	MemberBotToken string
	AdminBotToken  string
	DatabaseURL    string
	AdminIDs       []int64
	Location       *time.Location
	HTTPAddr       string
	AdminHTTPAddr  string
	LogLevel       string
	Env            string // dev|prod
	SentryDSN      string
}

func Load() (*Config, error) {
	tz := getenv("TZ", "Asia/Singapore")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.Local
	}

	adminIDs, err := parseIDs(os.Getenv("ADMIN_IDS"))
	if err != nil {
		return nil, fmt.Errorf("ADMIN_IDS: %w", err)
	}

	memberToken, err := requireEnv("MEMBER_BOT_TOKEN")
	if err != nil {
		return nil, err
	}
	dbURL, err := requireEnv("DATABASE_URL")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		MemberBotToken: memberToken,
		AdminBotToken:  getenv("ADMIN_BOT_TOKEN", memberToken),
		DatabaseURL:    dbURL,
		AdminIDs:       adminIDs,
		Location:       loc,
		HTTPAddr:       getenv("HTTP_ADDR", ":8080"),
		AdminHTTPAddr:  getenv("ADMIN_HTTP_ADDR", ":8081"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		Env:            getenv("ENV", "dev"),
		SentryDSN:      os.Getenv("SENTRY_DSN"),
	}
	return cfg, nil
}

func requireEnv(k string) (string, error) {
	v := os.Getenv(k)
	if v == "" {
		return "", fmt.Errorf("required env %s is empty", k)
	}
	return v, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func parseIDs(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad id %q: %w", p, err)
		}
		out = append(out, n)
	}
	return out, nil
}
