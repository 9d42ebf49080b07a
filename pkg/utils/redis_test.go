package utils

import (
	"context"
	"testing"
	"time"
)

func TestConcurrencyScriptsCompile(t *testing.T) {
	if concurrencyAcquireScript == nil || concurrencyReleaseScript == nil {
		t.Fatalf("expected scripts to be initialized")
	}
}

func TestAcquireConcurrencyCap_ValidatesArgs(t *testing.T) {
	ctx := context.Background()
	if _, err := AcquireConcurrencyCap(ctx, nil, "k", 1, time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if err := ReleaseConcurrencyCap(ctx, nil, "k"); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestRedisDefaults(t *testing.T) {
	c := RedisConfig{Addr: "localhost:6379"}.withDefaults()
	if c.PoolSize != 20 || c.PingTimeout != 2*time.Second {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}
