// internal/historian/historian_test.go
package historian

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/playnine/internal/cache"
)

// TestActionRecordRoundTrip checks the queue payload shape without needing
// any infrastructure.
func TestActionRecordRoundTrip(t *testing.T) {
	rec := cache.TableActionRecord{
		TableName:     "t1",
		ActionIndex:   7,
		ActorID:       uuid.New(),
		ActionType:    "play_replace",
		ActionPayload: map[string]interface{}{"card_index": float64(3)},
		Timestamp:     time.Now().UnixMilli(),
	}
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var got cache.TableActionRecord
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, rec, got)
}

// TestQueuePush is a minimal integration check that pushes one action onto a
// local Redis, when one is running. A deeper test would launch the service
// and check the DB for inserted rows.
func TestQueuePush(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("no local redis: %v", err)
	}

	rec := cache.TableActionRecord{
		TableName:   "t1",
		ActionIndex: 1,
		ActorID:     uuid.New(),
		ActionType:  "draw_from_draw",
		Timestamp:   time.Now().UnixMilli(),
	}
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	require.NoError(t, rdb.RPush(ctx, cache.DefaultQueueName, data).Err())
}
