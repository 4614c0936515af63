package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/davshare/davshare/pkg/store"
)

// UserStore implements store.UserStore on Badger.
type UserStore struct {
	db *badger.DB
}

func userKey(username string) []byte {
	return []byte(userPrefix + username)
}

func (s *UserStore) FindByUsername(_ context.Context, username string) (*store.User, error) {
	var user store.User
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, userKey(username), &user)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("user %s: %w", username, store.ErrNotFound)
		}
		return nil, err
	}
	return &user, nil
}

func (s *UserStore) List(_ context.Context) ([]store.User, error) {
	var users []store.User
	err := s.db.View(func(txn *badger.Txn) error {
		// Keys are prefixed with the username, so prefix iteration
		// yields username order for free.
		return scanJSON(txn, []byte(userPrefix), func(data []byte) error {
			var user store.User
			if err := json.Unmarshal(data, &user); err != nil {
				return err
			}
			users = append(users, user)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (s *UserStore) Create(_ context.Context, user store.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	return s.db.Update(func(txn *badger.Txn) error {
		key := userKey(user.Username)
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("user %s: %w", user.Username, store.ErrExists)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return setJSON(txn, key, user)
	})
}

func (s *UserStore) Update(_ context.Context, user store.User) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var existing store.User
		if err := getJSON(txn, userKey(user.Username), &existing); err != nil {
			return fmt.Errorf("user %s: %w", user.Username, err)
		}
		existing.DisplayName = user.DisplayName
		existing.IsAdmin = user.IsAdmin
		existing.Enabled = user.Enabled
		return setJSON(txn, userKey(user.Username), existing)
	})
}

func (s *UserStore) UpdatePassword(_ context.Context, username, password string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var user store.User
		if err := getJSON(txn, userKey(username), &user); err != nil {
			return fmt.Errorf("user %s: %w", username, err)
		}
		user.Password = password
		return setJSON(txn, userKey(username), user)
	})
}

func (s *UserStore) Delete(_ context.Context, username string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := userKey(username)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("user %s: %w", username, store.ErrNotFound)
			}
			return err
		}
		return txn.Delete(key)
	})
}

func (s *UserStore) Authenticate(_ context.Context, username, password string) (*store.User, error) {
	var user store.User
	var authenticated bool

	err := s.db.Update(func(txn *badger.Txn) error {
		if err := getJSON(txn, userKey(username), &user); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return err
		}
		if !user.Enabled || user.Password != password {
			return nil
		}

		now := time.Now()
		user.LastLoginAt = &now
		authenticated = true
		return setJSON(txn, userKey(username), user)
	})
	if err != nil {
		return nil, err
	}
	if !authenticated {
		return nil, nil
	}
	return &user, nil
}

func (s *UserStore) IsAdmin(_ context.Context, username string) (bool, error) {
	var user store.User
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, userKey(username), &user)
	})
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return user.IsAdmin, nil
}
