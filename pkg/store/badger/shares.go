package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/davshare/davshare/pkg/store"
)

// ShareStore implements store.ShareStore on Badger. The primary record
// lives under share:id:<id>; share:token:<token> is a secondary index
// holding the ID, so token lookups stay point reads.
type ShareStore struct {
	db *badger.DB
}

func shareIDKey(id string) []byte {
	return []byte(shareIDPrefix + id)
}

func shareTokenKey(token string) []byte {
	return []byte(shareTokenPrefix + token)
}

func (s *ShareStore) Create(_ context.Context, link store.ShareLink) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(shareIDKey(link.ID)); err == nil {
			return fmt.Errorf("share %s: %w", link.ID, store.ErrExists)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := setJSON(txn, shareIDKey(link.ID), link); err != nil {
			return err
		}
		return txn.Set(shareTokenKey(link.Token), []byte(link.ID))
	})
}

func (s *ShareStore) FindByToken(ctx context.Context, token string) (*store.ShareLink, error) {
	var link store.ShareLink
	err := s.db.View(func(txn *badger.Txn) error {
		id, err := resolveToken(txn, token)
		if err != nil {
			return err
		}
		return getJSON(txn, shareIDKey(id), &link)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("share token: %w", store.ErrNotFound)
		}
		return nil, err
	}
	return &link, nil
}

func (s *ShareStore) FindByID(_ context.Context, id string) (*store.ShareLink, error) {
	var link store.ShareLink
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, shareIDKey(id), &link)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("share %s: %w", id, store.ErrNotFound)
		}
		return nil, err
	}
	return &link, nil
}

func (s *ShareStore) FindByUser(_ context.Context, username string) ([]store.ShareLink, error) {
	var links []store.ShareLink
	err := s.db.View(func(txn *badger.Txn) error {
		return scanJSON(txn, []byte(shareIDPrefix), func(data []byte) error {
			var link store.ShareLink
			if err := json.Unmarshal(data, &link); err != nil {
				return err
			}
			if link.CreatedBy == username {
				links = append(links, link)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(links, func(i, j int) bool {
		return links[i].CreatedAt.After(links[j].CreatedAt)
	})
	return links, nil
}

func (s *ShareStore) List(_ context.Context) ([]store.ShareLink, error) {
	links := make([]store.ShareLink, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		return scanJSON(txn, []byte(shareIDPrefix), func(data []byte) error {
			var link store.ShareLink
			if err := json.Unmarshal(data, &link); err != nil {
				return err
			}
			links = append(links, link)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(links, func(i, j int) bool {
		return links[i].CreatedAt.After(links[j].CreatedAt)
	})
	return links, nil
}

func (s *ShareStore) IncrementAccessCount(_ context.Context, token string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		id, err := resolveToken(txn, token)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("share token: %w", store.ErrNotFound)
			}
			return err
		}
		var link store.ShareLink
		if err := getJSON(txn, shareIDKey(id), &link); err != nil {
			return err
		}
		link.AccessCount++
		return setJSON(txn, shareIDKey(id), link)
	})
}

func (s *ShareStore) Delete(_ context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var link store.ShareLink
		if err := getJSON(txn, shareIDKey(id), &link); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("share %s: %w", id, store.ErrNotFound)
			}
			return err
		}
		if err := txn.Delete(shareIDKey(id)); err != nil {
			return err
		}
		return txn.Delete(shareTokenKey(link.Token))
	})
}

func (s *ShareStore) DeleteExpired(_ context.Context) (int, error) {
	now := time.Now()
	removed := 0

	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(shareIDPrefix)

		it := txn.NewIterator(opts)
		var victims []store.ShareLink
		for it.Rewind(); it.Valid(); it.Next() {
			var link store.ShareLink
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &link)
			})
			if err != nil {
				it.Close()
				return err
			}
			if link.ExpiresAt != nil && now.After(*link.ExpiresAt) {
				victims = append(victims, link)
			}
		}
		it.Close()

		for _, link := range victims {
			if err := txn.Delete(shareIDKey(link.ID)); err != nil {
				return err
			}
			if err := txn.Delete(shareTokenKey(link.Token)); err != nil {
				return err
			}
		}
		removed = len(victims)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// resolveToken reads the token index, returning the share ID.
func resolveToken(txn *badger.Txn, token string) (string, error) {
	item, err := txn.Get(shareTokenKey(token))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return "", store.ErrNotFound
		}
		return "", err
	}
	var id string
	err = item.Value(func(val []byte) error {
		id = string(val)
		return nil
	})
	return id, err
}
