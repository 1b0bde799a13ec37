package config

import (
	"strings"
	"testing"
)

func TestLoadMissingRequiredEnv(t *testing.T) {
	t.Setenv("MEMBER_BOT_TOKEN", "")
	t.Setenv("DATABASE_URL", "postgres://club")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "MEMBER_BOT_TOKEN") {
		t.Fatalf("want MEMBER_BOT_TOKEN error, got %v", err)
	}

	t.Setenv("MEMBER_BOT_TOKEN", "token-a")
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("want DATABASE_URL error, got %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MEMBER_BOT_TOKEN", "token-a")
	t.Setenv("DATABASE_URL", "postgres://club")
	t.Setenv("ADMIN_BOT_TOKEN", "")
	t.Setenv("ADMIN_IDS", "100, 200")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AdminBotToken != "token-a" {
		t.Fatalf("admin token should fall back to the member token, got %q", cfg.AdminBotToken)
	}
	if cfg.HTTPAddr != ":8080" || cfg.AdminHTTPAddr != ":8081" {
		t.Fatalf("addr defaults: %q %q", cfg.HTTPAddr, cfg.AdminHTTPAddr)
	}
	if len(cfg.AdminIDs) != 2 || cfg.AdminIDs[0] != 100 || cfg.AdminIDs[1] != 200 {
		t.Fatalf("admin ids: %v", cfg.AdminIDs)
	}
}

func TestParseIDsRejectsGarbage(t *testing.T) {
	if _, err := parseIDs("100,abc"); err == nil {
		t.Fatal("want error for non-numeric id")
	}
	ids, err := parseIDs("")
	if err != nil || ids != nil {
		t.Fatalf("empty input: %v %v", ids, err)
	}
}
