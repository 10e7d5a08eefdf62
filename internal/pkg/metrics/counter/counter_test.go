package counter

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldName(t *testing.T) {
	assert.Equal(t, "invoice.paid:claim_email_sent", field("invoice.paid", "claim_email_sent"))
	assert.Equal(t, "unknown:malformed", field("", "malformed"))
}

func TestNilCounterIsNoOp(t *testing.T) {
	var c *WebhookCounter
	c.Record(context.Background(), "invoice.paid", "ignored")
}

func TestRecordAndSnapshot(t *testing.T) {
	host := os.Getenv("CACHE_HOST")
	if host == "" {
		host = "localhost"
	}
	rdb := redis.NewClient(&redis.Options{Addr: host + ":6379", Password: os.Getenv("CACHE_PASSWORD")})
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	c := &WebhookCounter{rdb: rdb, key: "test:counters:webhooks:" + time.Now().Format("150405.000000000")}
	defer rdb.Del(context.Background(), c.key)

	c.Record(ctx, "invoice.paid", "entitlement_granted")
	c.Record(ctx, "invoice.paid", "entitlement_granted")
	c.Record(ctx, "checkout.session.completed", "ignored")

	snap, err := c.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap, 2)
	assert.Equal(t, Count{EventType: "checkout.session.completed", Outcome: "ignored", Total: 1}, snap[0])
	assert.Equal(t, Count{EventType: "invoice.paid", Outcome: "entitlement_granted", Total: 2}, snap[1])
}
