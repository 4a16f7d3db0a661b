// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package impressions

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// sqlStore is shared by the SQLite and PostgreSQL stores. Timestamps are
// stored as unix nanoseconds so both dialects scan them identically.
type sqlStore struct {
	db          *sql.DB
	schema      []string
	placeholder func(n int) string
}

func (s *sqlStore) Init(ctx context.Context) error {
	for _, stmt := range s.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *sqlStore) params(n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = s.placeholder(i + 1)
	}
	return strings.Join(ps, ", ")
}

func (s *sqlStore) Save(ctx context.Context, imp Impression) error {
	query := `INSERT INTO impressions (id, session_id, break_id, media_src, outcome, attentive_seconds, started_at, ended_at)
		VALUES (` + s.params(8) + `)`
	_, err := s.db.ExecContext(ctx, query,
		imp.ID,
		imp.SessionID,
		imp.BreakID,
		imp.MediaSrc,
		imp.Outcome,
		imp.AttentiveSeconds,
		unixNano(imp.StartedAt),
		unixNano(imp.EndedAt),
	)
	return err
}

func (s *sqlStore) List(ctx context.Context, sessionID string) ([]Impression, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, break_id, media_src, outcome, attentive_seconds, started_at, ended_at
		FROM impressions WHERE session_id = `+s.placeholder(1)+` ORDER BY ended_at, id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Impression
	for rows.Next() {
		var imp Impression
		var started, ended int64
		if err := rows.Scan(&imp.ID, &imp.SessionID, &imp.BreakID, &imp.MediaSrc, &imp.Outcome,
			&imp.AttentiveSeconds, &started, &ended); err != nil {
			return nil, err
		}
		imp.StartedAt = fromUnixNano(started)
		imp.EndedAt = fromUnixNano(ended)
		out = append(out, imp)
	}
	return out, rows.Err()
}

func (s *sqlStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *sqlStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
