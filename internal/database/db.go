package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/cms-backend/internal/config"
)

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	mc := mysql.NewConfig()
	mc.User = user
	mc.Passwd = pass
	mc.Net = "tcp"
	mc.Addr = host + ":" + port
	mc.DBName = name
	// ParseTime -> DATETIME -> time.Time | Loc=UTC keeps times consistent
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Params = map[string]string{"charset": "utf8mb4"}

	db, err := sql.Open("mysql", mc.FormatDSN())
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenWithRetry calls Open until it succeeds or attempts are exhausted,
// sleeping wait between tries.  The database container is frequently not
// ready when the API or scheduler starts.
func OpenWithRetry(user, pass, host, port, name string, attempts int, wait time.Duration, logf func(string, ...interface{})) (*sql.DB, error) {
	var lastErr error
	for i := 1; i <= attempts; i++ {
		db, err := Open(user, pass, host, port, name)
		if err == nil {
			return db, nil
		}
		lastErr = err
		if logf != nil {
			logf("database not ready (attempt %d/%d): %v", i, attempts, err)
		}
		if i < attempts {
			time.Sleep(wait)
		}
	}
	return nil, fmt.Errorf("could not connect to the database: %w", lastErr)
}

// Connect opens the database selected by cfg.DBDriver and creates the schema
// when missing.  MySQL is retried for up to a minute.
func Connect(ctx context.Context, cfg config.Config, logf func(string, ...interface{})) (*sql.DB, Dialect, error) {
	var (
		db  *sql.DB
		d   Dialect
		err error
	)
	switch cfg.DBDriver {
	case config.DriverSQLite:
		d = SQLite
		db, err = OpenSQLite(cfg.DBPath)
	default:
		d = MySQL
		db, err = OpenWithRetry(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName, 30, 2*time.Second, logf)
	}
	if err != nil {
		return nil, d, err
	}
	if err := Migrate(ctx, db, d); err != nil {
		db.Close()
		return nil, d, err
	}
	return db, d, nil
}
