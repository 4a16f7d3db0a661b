// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package impressions

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// OpenPostgres opens the ledger through the pgx database/sql driver. The
// connection is established lazily on first use.
func OpenPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres: empty dsn")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open failed: %w", err)
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
				started_at BIGINT NOT NULL,
				ended_at BIGINT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_impressions_session ON impressions(session_id, ended_at)`,
		},
		placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	}, nil
}
