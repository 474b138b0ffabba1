package database

import (
	"context"
	"database/sql"
	"fmt"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		username      VARCHAR(100) NOT NULL,
		email         VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		role          ENUM('author','public') NOT NULL DEFAULT 'public',
		created_at    DATETIME(6) NOT NULL,
		UNIQUE KEY uq_users_username (username),
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS posts (
		id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		title         VARCHAR(255) NOT NULL,
		slug          VARCHAR(255) NOT NULL,
		content       MEDIUMTEXT NOT NULL,
		status        ENUM('draft','scheduled','published') NOT NULL DEFAULT 'draft',
		author_id     BIGINT UNSIGNED NOT NULL,
		scheduled_for DATETIME(6) NULL,
		published_at  DATETIME(6) NULL,
		created_at    DATETIME(6) NOT NULL,
		updated_at    DATETIME(6) NOT NULL,
		UNIQUE KEY uq_posts_slug (slug),
		KEY idx_posts_author (author_id, id),
		KEY idx_posts_due (status, scheduled_for),
		KEY idx_posts_published (status, published_at),
		CONSTRAINT fk_posts_author FOREIGN KEY (author_id) REFERENCES users (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS post_revisions (
		id                 BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		post_id            BIGINT UNSIGNED NOT NULL,
		title_snapshot     VARCHAR(255) NOT NULL,
		content_snapshot   MEDIUMTEXT NOT NULL,
		revision_author_id BIGINT UNSIGNED NOT NULL,
		created_at         DATETIME(6) NOT NULL,
		KEY idx_revisions_post (post_id, id),
		CONSTRAINT fk_revisions_post FOREIGN KEY (post_id) REFERENCES posts (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		username      TEXT NOT NULL UNIQUE,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL DEFAULT 'public',
		created_at    DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS posts (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		title         TEXT NOT NULL,
		slug          TEXT NOT NULL UNIQUE,
		content       TEXT NOT NULL,
		status        TEXT NOT NULL DEFAULT 'draft',
		author_id     INTEGER NOT NULL REFERENCES users (id),
		scheduled_for DATETIME NULL,
		published_at  DATETIME NULL,
		created_at    DATETIME NOT NULL,
		updated_at    DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_due ON posts (status, scheduled_for)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_published ON posts (status, published_at)`,
	`CREATE TABLE IF NOT EXISTS post_revisions (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		post_id            INTEGER NOT NULL REFERENCES posts (id) ON DELETE CASCADE,
		title_snapshot     TEXT NOT NULL,
		content_snapshot   TEXT NOT NULL,
		revision_author_id INTEGER NOT NULL,
		created_at         DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_revisions_post ON post_revisions (post_id, id)`,
}

// Migrate creates the users, posts and post_revisions tables when they do
// not exist.  Statements run one at a time because the MySQL driver rejects
// multi-statement Exec calls by default.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	stmts := mysqlSchema
	if d == SQLite {
		stmts = sqliteSchema
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate (%s): %w", d, err)
		}
	}
	return nil
}
