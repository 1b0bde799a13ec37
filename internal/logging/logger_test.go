package logging

import (
	"testing"

	"go.uber.org/zap"
)

func TestInitLevels(t *testing.T) {
	lg, err := Init("warn", "prod", "memberbot")
	if err != nil {
		t.Fatal(err)
	}
	defer lg.Closer()
	if got := lg.Level.Level(); got != zap.WarnLevel {
		t.Fatalf("level = %v, want warn", got)
	}
	if lg.Sugar == nil || lg.Base == nil {
		t.Fatal("logger not fully built")
	}
}

func TestInitBadLevelDefaultsToInfo(t *testing.T) {
	lg, err := Init("chatty", "dev", "adminbot")
	if err != nil {
		t.Fatal(err)
	}
	defer lg.Closer()
	if got := lg.Level.Level(); got != zap.InfoLevel {
		t.Fatalf("level = %v, want info", got)
	}
}
