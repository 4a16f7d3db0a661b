// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package impressions

import (
	"context"
	"fmt"
)

// Open creates and initialises the store for driver.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		s   Store
		err error
	)
	switch driver {
	case "", "memory":
		s = NewMemoryStore()
	case "sqlite":
		s, err = OpenSQLite(dsn)
	case "postgres":
		s, err = OpenPostgres(dsn)
	case "redis":
		s, err = OpenRedis(dsn)
	case "badger":
		s, err = OpenBadger(dsn)
	default:
		return nil, fmt.Errorf("unknown impression store driver: %s", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Init(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}
