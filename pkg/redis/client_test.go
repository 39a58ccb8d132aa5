package redis

import (
	"testing"

	"github.com/adhamfarouk/pillcart-backend/pkg/config"
)

func TestBuildKeySkipsEmptyParts(t *testing.T) {
	t.Parallel()

	c := &Client{}
	if got := c.IdempotencyKey("paygate", "evt-1"); got != "pc:idempotency:paygate:evt-1" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := c.IdempotencyKey("", "evt-1"); got != "pc:idempotency:evt-1" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := c.CounterKey("webhooks"); got != "pc:counter:webhooks" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestOptionsFromConfigRequiresTarget(t *testing.T) {
	t.Parallel()

	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected error without url or address")
	}
}

func TestOptionsFromConfigAddressFallback(t *testing.T) {
	t.Parallel()

	opts, err := optionsFromConfig(config.RedisConfig{Address: "localhost:6379", DB: 2, PoolSize: 4})
	if err != nil {
		t.Fatalf("optionsFromConfig: %v", err)
	}
	if opts.Addr != "localhost:6379" || opts.DB != 2 || opts.PoolSize != 4 {
		t.Fatalf("unexpected options %+v", opts)
	}
}
