// internal/database/db.go
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"github.com/jason-s-yu/playnine/internal/config"
)

// DB is the shared connection pool for the archive database. Only the
// historian writes to it; the game server itself never touches Postgres.
var DB *pgxpool.Pool

// ConnectDB builds the pool from the POSTGRES_*/PG_* environment variables
// and pings it. Fatal on failure: the historian is useless without its
// database.
func ConnectDB() {
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		config.GetEnv("POSTGRES_USER", "play9"),
		config.GetEnv("POSTGRES_PASSWORD", ""),
		config.GetEnv("PG_HOST", "localhost"),
		config.GetEnv("PG_PORT", "5432"),
		config.GetEnv("PG_DATABASE", "play9"),
	)

	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		log.Fatalf("unable to parse pgx config: %v", err)
	}

	DB, err = pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		log.Fatalf("unable to create pgx pool: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := DB.Ping(ctx); err != nil {
		log.Fatalf("db ping error: %v", err)
	}

	log.Infof("connected to archive database %s", config.GetEnv("PG_DATABASE", "play9"))
}
