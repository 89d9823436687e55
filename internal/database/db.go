package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

// 接続プール設定。1リクエストで発行するステートメントは1つなので小さめでよい。
const (
	maxOpenConns    = 20
	maxIdleConns    = 10
	connMaxIdleTime = 5 * time.Minute
)

// Open はPostgreSQLの*sql.DBを生成する。
// この時点では接続しない。疎通確認はConnectかPingContextで行う。
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	return db, nil
}

// Connect はOpenしたうえでPingが通るまでinterval間隔で最大attempts回試行する。
// コンテナ起動直後でDBがまだ受け付けていない場合を想定している。
func Connect(ctx context.Context, databaseURL string, attempts int, interval time.Duration) (*sql.DB, error) {
	db, err := Open(databaseURL)
	if err != nil {
		return nil, err
	}
	if attempts < 1 {
		attempts = 1
	}

	for i := 1; ; i++ {
		err = db.PingContext(ctx)
		if err == nil {
			return db, nil
		}
		if i >= attempts {
			break
		}
		slog.Warn("database not ready, retrying",
			slog.Int("attempt", i),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", ctx.Err())
		case <-time.After(interval):
		}
	}

	db.Close()
	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", attempts, err)
}
