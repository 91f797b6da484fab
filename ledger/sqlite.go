package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// DBFile is the ledger database file name inside the configured directory.
const DBFile = "ledger.db"

// SQLite is a durable ledger, so a restart does not re-deliver files.
type SQLite struct {
	db     *sql.DB
	dbPath string
}

// OpenSQLite opens or creates the ledger database inside dir.
func OpenSQLite(ctx context.Context, dir string) (*SQLite, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	dbPath := filepath.Join(dir, DBFile)

	db, err := sql.Open("sqlite", dbPath+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	l := &SQLite{db: db, dbPath: dbPath}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if err := l.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return l, nil
}

// Path returns the database file path.
func (l *SQLite) Path() string { return l.dbPath }

func (l *SQLite) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS posted_links (
		link TEXT PRIMARY KEY,
		delivered_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS seen_topics (
		topic_url TEXT PRIMARY KEY,
		seen_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := l.db.ExecContext(ctx, schema)
	return err
}

func (l *SQLite) IsNewFile(ctx context.Context, link string) (bool, error) {
	found, err := l.exists(ctx, "SELECT 1 FROM posted_links WHERE link = ?", link)
	if err != nil {
		return false, fmt.Errorf("lookup link: %w", err)
	}
	return !found, nil
}

func (l *SQLite) IsSeenTopic(ctx context.Context, topicURL string) (bool, error) {
	found, err := l.exists(ctx, "SELECT 1 FROM seen_topics WHERE topic_url = ?", topicURL)
	if err != nil {
		return false, fmt.Errorf("lookup topic: %w", err)
	}
	return found, nil
}

func (l *SQLite) RecordDelivered(ctx context.Context, link string) error {
	if _, err := l.db.ExecContext(ctx, "INSERT OR IGNORE INTO posted_links (link) VALUES (?)", link); err != nil {
		return fmt.Errorf("record link: %w", err)
	}
	return nil
}

func (l *SQLite) RecordSeenTopic(ctx context.Context, topicURL string) error {
	if _, err := l.db.ExecContext(ctx, "INSERT OR IGNORE INTO seen_topics (topic_url) VALUES (?)", topicURL); err != nil {
		return fmt.Errorf("record topic: %w", err)
	}
	return nil
}

func (l *SQLite) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	if err := l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM seen_topics").Scan(&s.SeenTopics); err != nil {
		return Stats{}, fmt.Errorf("count topics: %w", err)
	}
	if err := l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM posted_links").Scan(&s.PostedLinks); err != nil {
		return Stats{}, fmt.Errorf("count links: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (l *SQLite) Close() error {
	return l.db.Close()
}

func (l *SQLite) exists(ctx context.Context, query, arg string) (bool, error) {
	var one int
	err := l.db.QueryRowContext(ctx, query, arg).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
