package config_test

import (
	"testing"
	"time"

	"signalhub/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("expected default addr :8080, got %q", cfg.Addr)
	}
	if cfg.SendBuffer != 256 {
		t.Fatalf("expected default send buffer 256, got %d", cfg.SendBuffer)
	}
	if cfg.ReadLimitBytes != 1<<20 {
		t.Fatalf("expected default read limit 1MiB, got %d", cfg.ReadLimitBytes)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Fatalf("expected default shutdown timeout 30s, got %v", cfg.ShutdownTimeout)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SH_ADDR", ":9999")
	t.Setenv("SH_SEND_BUFFER", "16")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.SendBuffer != 16 {
		t.Fatalf("expected overrides applied, got %+v", cfg)
	}
}
