package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("default HTTP addr: got %q", cfg.HTTPAddr)
	}
	if cfg.ModbusAddr != ":502" {
		t.Fatalf("default Modbus addr: got %q", cfg.ModbusAddr)
	}
	if !cfg.Deterministic {
		t.Fatal("deterministic mode should default to on")
	}
	if cfg.Seed != 42 {
		t.Fatalf("default seed: got %d", cfg.Seed)
	}
	if cfg.TickInterval != time.Second {
		t.Fatalf("default tick interval: got %s", cfg.TickInterval)
	}
	if cfg.JWTSecret != "" {
		t.Fatal("guard should default to disabled")
	}
	if cfg.MQTTTopic != "wwtp/alarms" {
		t.Fatalf("default MQTT topic: got %q", cfg.MQTTTopic)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("RANDOM_SEED", "7")
	t.Setenv("DETERMINISTIC", "false")
	t.Setenv("TICK_INTERVAL", "250ms")
	t.Setenv("AUTH_JWT_SECRET", "topsecret")

	cfg := Load()
	if cfg.HTTPAddr != ":9090" {
		t.Fatalf("HTTP addr override: got %q", cfg.HTTPAddr)
	}
	if cfg.Seed != 7 {
		t.Fatalf("seed override: got %d", cfg.Seed)
	}
	if cfg.Deterministic {
		t.Fatal("DETERMINISTIC=false should disable deterministic mode")
	}
	if cfg.TickInterval != 250*time.Millisecond {
		t.Fatalf("tick interval override: got %s", cfg.TickInterval)
	}
	if cfg.JWTSecret != "topsecret" {
		t.Fatalf("jwt secret override: got %q", cfg.JWTSecret)
	}
}

func TestJWTSecretFallbackKey(t *testing.T) {
	t.Setenv("JWT_SECRET", "fallback")
	if cfg := Load(); cfg.JWTSecret != "fallback" {
		t.Fatalf("JWT_SECRET fallback: got %q", cfg.JWTSecret)
	}
}

func TestGetenvHelpersIgnoreGarbage(t *testing.T) {
	t.Setenv("RANDOM_SEED", "not-a-number")
	t.Setenv("TICK_INTERVAL", "soon")
	cfg := Load()
	if cfg.Seed != 42 {
		t.Fatalf("unparseable seed should fall back, got %d", cfg.Seed)
	}
	if cfg.TickInterval != time.Second {
		t.Fatalf("unparseable interval should fall back, got %s", cfg.TickInterval)
	}
}
