package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timeline.WeekWidth != 100 || cfg.Timeline.RowHeight != 56 {
		t.Fatalf("unexpected timeline defaults: %+v", cfg.Timeline)
	}
	if cfg.Sync.CallTimeout != 15*time.Second {
		t.Fatalf("unexpected call timeout: %v", cfg.Sync.CallTimeout)
	}
	if cfg.Redis.Enabled() {
		t.Fatal("redis should be disabled without a host")
	}
	if day, err := cfg.Timeline.Weekday(); err != nil || day != time.Sunday {
		t.Fatalf("Weekday() = %v, %v", day, err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9191")
	t.Setenv("TIMELINE_WEEK_START", "Monday")
	t.Setenv("SYNC_CALL_TIMEOUT", "3s")
	t.Setenv("REDIS_HOST", "cache")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9191 {
		t.Fatalf("expected port 9191, got %d", cfg.Server.Port)
	}
	if day, _ := cfg.Timeline.Weekday(); day != time.Monday {
		t.Fatalf("expected Monday, got %v", day)
	}
	if cfg.Sync.CallTimeout != 3*time.Second {
		t.Fatalf("expected 3s, got %v", cfg.Sync.CallTimeout)
	}
	if cfg.Redis.GetAddr() != "cache:6379" {
		t.Fatalf("unexpected redis addr %q", cfg.Redis.GetAddr())
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"TIMELINE_WEEK_START":     "someday",
		"WORKSPACE_DEFAULT_SCALE": "year",
		"SERVER_PORT":             "70000",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected %s=%s to be rejected", key, value)
			}
		})
	}
}
