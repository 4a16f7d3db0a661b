// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package impressions

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go driver
)

const sqliteBusyTimeout = 5 * time.Second

// OpenSQLite opens the ledger at path. A path that already is a "file:" DSN
// is used as given; plain paths get the WAL and busy_timeout pragmas applied
// to every pooled connection.
func OpenSQLite(path string) (Store, error) {
	dsn := path
	if !strings.HasPrefix(path, "file:") {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
			path, sqliteBusyTimeout.Milliseconds())
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open failed: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return &sqlStore{
		db: db,
		schema: []string{
			`CREATE TABLE IF NOT EXISTS impressions (
				id TEXT PRIMARY KEY,
				session_id TEXT NOT NULL,
				break_id TEXT NOT NULL,
				media_src TEXT NOT NULL,
				outcome TEXT NOT NULL,
				attentive_seconds INTEGER NOT NULL,
				started_at INTEGER NOT NULL,
				ended_at INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_impressions_session ON impressions(session_id, ended_at)`,
		},
		placeholder: func(int) string { return "?" },
	}, nil
}
