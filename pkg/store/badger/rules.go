package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/davshare/davshare/pkg/store"
)

// RuleStore implements store.RuleStore on Badger. Rules are stored under
// rule:<id>; per-user filtering is a prefix scan, which is fine for the
// rule counts a WebDAV ACL realistically has.
type RuleStore struct {
	db *badger.DB
}

func ruleKey(id string) []byte {
	return []byte(rulePrefix + id)
}

func (s *RuleStore) RulesFor(_ context.Context, username string) ([]store.PermissionRule, error) {
	var rules []store.PermissionRule
	err := s.db.View(func(txn *badger.Txn) error {
		return scanJSON(txn, []byte(rulePrefix), func(data []byte) error {
			var rule store.PermissionRule
			if err := json.Unmarshal(data, &rule); err != nil {
				return err
			}
			if rule.Username == username {
				rules = append(rules, rule)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (s *RuleStore) List(_ context.Context) ([]store.PermissionRule, error) {
	var rules []store.PermissionRule
	err := s.db.View(func(txn *badger.Txn) error {
		return scanJSON(txn, []byte(rulePrefix), func(data []byte) error {
			var rule store.PermissionRule
			if err := json.Unmarshal(data, &rule); err != nil {
				return err
			}
			rules = append(rules, rule)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Username != rules[j].Username {
			return rules[i].Username < rules[j].Username
		}
		return rules[i].Path < rules[j].Path
	})
	return rules, nil
}

func (s *RuleStore) Create(_ context.Context, rule store.PermissionRule) (*store.PermissionRule, error) {
	rule.ID = uuid.NewString()
	err := s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, ruleKey(rule.ID), rule)
	})
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (s *RuleStore) Update(_ context.Context, rule store.PermissionRule) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var existing store.PermissionRule
		if err := getJSON(txn, ruleKey(rule.ID), &existing); err != nil {
			return fmt.Errorf("rule %s: %w", rule.ID, err)
		}
		// Owner and path are immutable; only the flags change.
		rule.Username = existing.Username
		rule.Path = existing.Path
		return setJSON(txn, ruleKey(rule.ID), rule)
	})
}

func (s *RuleStore) Delete(_ context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := ruleKey(id)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("rule %s: %w", id, store.ErrNotFound)
			}
			return err
		}
		return txn.Delete(key)
	})
}

func (s *RuleStore) DeleteByUsername(_ context.Context, username string) (int, error) {
	removed := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(rulePrefix)

		it := txn.NewIterator(opts)
		var victims [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var rule store.PermissionRule
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rule)
			})
			if err != nil {
				it.Close()
				return err
			}
			if rule.Username == username {
				victims = append(victims, item.KeyCopy(nil))
			}
		}
		it.Close()

		for _, key := range victims {
			if err := txn.Delete(key); err != nil {
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
