// Package counter keeps best-effort webhook outcome counters in a Redis hash.
package counter

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

const webhookOutcomesKey = "billing:counters:webhooks"

// WebhookCounter implements billing.OutcomeRecorder on a Redis hash with one
// field per "<event type>:<outcome>".
type WebhookCounter struct {
	rdb *redis.Client
	key string
}

func NewWebhookCounter(rdb *redis.Client) *WebhookCounter {
	return &WebhookCounter{rdb: rdb, key: webhookOutcomesKey}
}

func field(eventType, outcome string) string {
	if eventType == "" {
		eventType = "unknown"
	}
	return fmt.Sprintf("%s:%s", eventType, outcome)
}

// Record increments the counter. Failures are logged and swallowed; counters
// must never fail a delivery.
func (c *WebhookCounter) Record(ctx context.Context, eventType, outcome string) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.HIncrBy(ctx, c.key, field(eventType, outcome), 1).Err(); err != nil {
		log.Warnf("[Counter] increment %s failed: %v", field(eventType, outcome), err)
	}
}

// Count is a single counter value.
type Count struct {
	EventType string `json:"event_type"`
	Outcome   string `json:"outcome"`
	Total     int64  `json:"total"`
}

// Snapshot returns all counters sorted by event type and outcome.
func (c *WebhookCounter) Snapshot(ctx context.Context) ([]Count, error) {
	data, err := c.rdb.HGetAll(ctx, c.key).Result()
	if err != nil {
		return nil, err
	}

	out := make([]Count, 0, len(data))
	for k, v := range data {
		total, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			continue
		}
		idx := strings.LastIndex(k, ":")
		if idx <= 0 {
			continue
		}
		out = append(out, Count{EventType: k[:idx], Outcome: k[idx+1:], Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EventType != out[j].EventType {
			return out[i].EventType < out[j].EventType
		}
		return out[i].Outcome < out[j].Outcome
	})
	return out, nil
}
