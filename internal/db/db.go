package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

func Open(path string) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

type migration struct {
	version int
	stmts   []string
}

// Versions must stay sequential; applied versions are recorded in schema_version.
var migrations = []migration{
	{
		version: 1,
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS keywords (
				id TEXT PRIMARY KEY,
				keyword TEXT NOT NULL UNIQUE,
				source TEXT NOT NULL DEFAULT 'Both',
				is_active INTEGER NOT NULL DEFAULT 1,
				created_at INTEGER NOT NULL
			);`,
			`CREATE TABLE IF NOT EXISTS hotspots (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				content TEXT NOT NULL DEFAULT '',
				source TEXT NOT NULL,
				source_url TEXT,
				relevance_score REAL NOT NULL DEFAULT 0,
				published_at INTEGER NOT NULL,
				views INTEGER NOT NULL DEFAULT 0,
				likes INTEGER NOT NULL DEFAULT 0,
				matched_keywords TEXT NOT NULL DEFAULT '[]',
				created_at INTEGER NOT NULL
			);`,
			`CREATE TABLE IF NOT EXISTS hotspot_keywords (
				hotspot_id TEXT NOT NULL,
				keyword_id TEXT NOT NULL,
				PRIMARY KEY (hotspot_id, keyword_id),
				FOREIGN KEY (hotspot_id) REFERENCES hotspots(id) ON DELETE CASCADE,
				FOREIGN KEY (keyword_id) REFERENCES keywords(id) ON DELETE CASCADE
			);`,
			`CREATE TABLE IF NOT EXISTS notifications (
				id TEXT PRIMARY KEY,
				hotspot_id TEXT NOT NULL,
				is_read INTEGER NOT NULL DEFAULT 0,
				created_at INTEGER NOT NULL,
				FOREIGN KEY (hotspot_id) REFERENCES hotspots(id) ON DELETE CASCADE
			);`,
			`CREATE TABLE IF NOT EXISTS check_history (
				id TEXT PRIMARY KEY,
				status TEXT NOT NULL,
				keywords_checked INTEGER NOT NULL DEFAULT 0,
				hotspots_found INTEGER NOT NULL DEFAULT 0,
				created_at INTEGER NOT NULL
			);`,
			`CREATE INDEX IF NOT EXISTS idx_hotspots_title_created ON hotspots(title, created_at);`,
			`CREATE INDEX IF NOT EXISTS idx_hotspots_created ON hotspots(created_at);`,
			`CREATE INDEX IF NOT EXISTS idx_hotspots_source ON hotspots(source);`,
			`CREATE INDEX IF NOT EXISTS idx_notifications_read ON notifications(is_read, created_at);`,
			`CREATE INDEX IF NOT EXISTS idx_hotspot_keywords_keyword ON hotspot_keywords(keyword_id);`,
		},
	},
}

func migrate(db *sqlx.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);`); err != nil {
		return err
	}
	current := 0
	if err := db.Get(&current, `SELECT COALESCE(MAX(version), 0) FROM schema_version`); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.Beginx()
		if err != nil {
			return err
		}
		for _, stmt := range m.stmts {
			if _, err := tx.Exec(stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("applying migration v%d: %w", m.version, err)
			}
		}
		if _, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, m.version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recording migration v%d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}
