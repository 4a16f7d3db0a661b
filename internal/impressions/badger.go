// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package impressions

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore keys impressions as "imp:<session>:<ended unix nanos>:<id>" so
// a prefix scan returns one session in end-time order.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) the database directory at path. An empty
// path opens an in-memory database.
func OpenBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open failed: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Init(context.Context) error { return nil }

func badgerKey(imp Impression) []byte {
	return []byte(fmt.Sprintf("imp:%s:%020d:%s", imp.SessionID, unixNano(imp.EndedAt), imp.ID))
}

func (s *BadgerStore) Save(_ context.Context, imp Impression) error {
	buf, err := json.Marshal(imp)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(imp), buf)
	})
}

func (s *BadgerStore) List(_ context.Context, sessionID string) ([]Impression, error) {
	prefix := []byte("imp:" + sessionID + ":")
	var out []Impression
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var imp Impression
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &imp)
			}); err != nil {
				return err
			}
			out = append(out, imp)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BadgerStore) Ping(context.Context) error {
	if s.db.IsClosed() {
		return badger.ErrDBClosed
	}
	return nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }
