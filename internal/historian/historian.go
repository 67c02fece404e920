// internal/historian/historian.go is an asynchronous archival service that
// pops table action records from a Redis queue and persists them to a
// PostgreSQL database.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/jason-s-yu/playnine/internal/cache"
	"github.com/jason-s-yu/playnine/internal/config"
	"github.com/jason-s-yu/playnine/internal/database"
)

// Service encapsulates the Redis + DB logic for capturing table actions and
// marking tables abandoned when an inactivity threshold is reached.
type Service struct {
	redisClient  *redis.Client
	batchSize    int
	flushDelay   time.Duration
	inactivity   time.Duration
	lastActivity sync.Map // map[string]time.Time per table

	batchMu  sync.Mutex
	batch    []cache.TableActionRecord
	ctx      context.Context
	cancelFn context.CancelFunc
}

// NewService constructs a Service instance from environment variables or
// defaults.
func NewService() *Service {
	batchSize := config.GetEnvInt("HISTORIAN_BATCH_SIZE", 20)
	flushMs := config.GetEnvInt("HISTORIAN_FLUSH_MS", 500)
	inactivitySec := config.GetEnvInt("TABLE_INACTIVITY_TIMEOUT_SEC", 600)

	rdb := redis.NewClient(&redis.Options{
		Addr: config.GetEnv("REDIS_ADDR", "localhost:6379"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		redisClient: rdb,
		batchSize:   batchSize,
		flushDelay:  time.Duration(flushMs) * time.Millisecond,
		inactivity:  time.Duration(inactivitySec) * time.Second,
		batch:       make([]cache.TableActionRecord, 0, batchSize),
		ctx:         ctx,
		cancelFn:    cancel,
	}
}

// Run starts the two main loops: one that reads from the Redis queue,
// accumulates records in a batch, and flushes them to the DB; and a periodic
// inactivity check that marks stale tables abandoned. Blocks until Stop.
func (hs *Service) Run() {
	database.ConnectDB()

	go hs.readRedisLoop()
	go hs.inactivityLoop()

	log.Println("play9-historian service started.")
	<-hs.ctx.Done()
	log.Println("play9-historian shutting down.")
}

// Stop gracefully stops the service.
func (hs *Service) Stop() {
	hs.cancelFn()
}

// readRedisLoop continuously uses BLPop to retrieve records from the Redis
// queue.
func (hs *Service) readRedisLoop() {
	ticker := time.NewTicker(hs.flushDelay)
	defer ticker.Stop()

	queueName := config.GetEnv("HISTORIAN_QUEUE_NAME", cache.DefaultQueueName)

	for {
		select {
		case <-hs.ctx.Done():
			return

		case <-ticker.C:
			hs.flushBatchToDB()

		default:
			// BLPop with a short timeout so context cancellation is handled.
			res, err := hs.redisClient.BLPop(hs.ctx, 3*time.Second, queueName).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				if hs.ctx.Err() != nil {
					return
				}
				log.Errorf("BLPop: %v", err)
				continue
			}
			if len(res) < 2 {
				continue
			}

			var record cache.TableActionRecord
			if err := json.Unmarshal([]byte(res[1]), &record); err != nil {
				log.Warnf("invalid action record: %v", err)
				continue
			}

			hs.lastActivity.Store(record.TableName, time.Now())
			hs.appendToBatch(record)
		}
	}
}

// appendToBatch adds a record to the in-memory batch and flushes if the
// threshold is reached.
func (hs *Service) appendToBatch(record cache.TableActionRecord) {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()

	hs.batch = append(hs.batch, record)
	if len(hs.batch) >= hs.batchSize {
		hs.flushBatchLocked()
	}
}

// flushBatchToDB flushes the current batch to the database in a single
// transaction.
func (hs *Service) flushBatchToDB() {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()
	hs.flushBatchLocked()
}

func (hs *Service) flushBatchLocked() {
	if len(hs.batch) == 0 {
		return
	}
	batchCopy := make([]cache.TableActionRecord, len(hs.batch))
	copy(batchCopy, hs.batch)
	hs.batch = hs.batch[:0]

	ctx := context.Background()
	err := beginTxFunc(ctx, database.DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range batchCopy {
			if err := insertTableActionTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insertTableActionTx: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		log.Errorf("flushBatchToDB: %v", err)
	} else {
		log.Debugf("flushed %d actions to DB", len(batchCopy))
	}
}

// inactivityLoop periodically marks tables inactive beyond the configured
// threshold as abandoned.
func (hs *Service) inactivityLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-hs.ctx.Done():
			return

		case <-ticker.C:
			now := time.Now()
			hs.lastActivity.Range(func(key, val interface{}) bool {
				table, ok1 := key.(string)
				last, ok2 := val.(time.Time)
				if ok1 && ok2 && now.Sub(last) > hs.inactivity {
					hs.markTableAbandoned(table)
					hs.lastActivity.Delete(table)
				}
				return true
			})
		}
	}
}

// markTableAbandoned marks a table 'abandoned' in the database if it was
// still 'in_progress'.
func (hs *Service) markTableAbandoned(table string) {
	ctx := context.Background()
	err := beginTxFunc(ctx, database.DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			UPDATE tables
			SET status = 'abandoned', end_time = NOW()
			WHERE name = $1 AND status = 'in_progress'
		`
		_, e := tx.Exec(ctx, q, table)
		return e
	})
	if err != nil {
		log.Errorf("failed to mark table %s abandoned: %v", table, err)
	} else {
		log.Infof("marked table %s as 'abandoned' due to inactivity", table)
	}
}

// insertTableActionTx inserts a single action record into table_actions and
// upserts the table row. A game_over action finalizes the table row.
func insertTableActionTx(ctx context.Context, tx pgx.Tx, rec cache.TableActionRecord) error {
	upsertTableQ := `
		INSERT INTO tables (name, status, start_time)
		VALUES ($1, 'in_progress', NOW())
		ON CONFLICT (name)
		DO UPDATE SET status = 'in_progress'
	`
	if _, err := tx.Exec(ctx, upsertTableQ, rec.TableName); err != nil {
		return err
	}

	actionInsertQ := `
		INSERT INTO table_actions (
			table_name, action_index, actor_id, action_type, action_payload, recorded_at
		) VALUES ($1, $2, $3, $4, $5, to_timestamp($6::double precision / 1000))
	`
	jsonPayload, err := json.Marshal(rec.ActionPayload)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, actionInsertQ,
		rec.TableName, rec.ActionIndex, rec.ActorID, rec.ActionType, jsonPayload, rec.Timestamp,
	); err != nil {
		return err
	}

	if rec.ActionType == "game_over" {
		finalizeQ := `
			UPDATE tables
			SET status = 'completed', end_time = NOW()
			WHERE name = $1 AND status = 'in_progress'
		`
		if _, err := tx.Exec(ctx, finalizeQ, rec.TableName); err != nil {
			return err
		}
	}
	return nil
}

// beginTxFunc starts a transaction on the pool, calls f, and commits or
// rolls back as needed.
func beginTxFunc(ctx context.Context, pool *pgxpool.Pool, txOptions pgx.TxOptions, f func(tx pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, txOptions)
	if err != nil {
		return err
	}
	if err := f(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("tx rollback error: %v; original error: %w", rbErr, err)
		}
		return err
	}
	return tx.Commit(ctx)
}
