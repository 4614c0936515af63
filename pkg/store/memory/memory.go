// Package memory provides mutex-guarded in-memory implementations of the
// store interfaces. Intended for tests and single-process development
// setups; nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/davshare/davshare/pkg/store"
)

// UserStore is an in-memory store.UserStore.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]store.User
}

// NewUserStore returns an empty in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]store.User)}
}

func (s *UserStore) FindByUsername(_ context.Context, username string) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[username]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", username, store.ErrNotFound)
	}
	return &user, nil
}

func (s *UserStore) List(_ context.Context) ([]store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]store.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *UserStore) Create(_ context.Context, user store.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.Username]; ok {
		return fmt.Errorf("user %s: %w", user.Username, store.ErrExists)
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	s.users[user.Username] = user
	return nil
}

func (s *UserStore) Update(_ context.Context, user store.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.Username]
	if !ok {
		return fmt.Errorf("user %s: %w", user.Username, store.ErrNotFound)
	}
	existing.DisplayName = user.DisplayName
	existing.IsAdmin = user.IsAdmin
	existing.Enabled = user.Enabled
	s.users[user.Username] = existing
	return nil
}

func (s *UserStore) UpdatePassword(_ context.Context, username, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[username]
	if !ok {
		return fmt.Errorf("user %s: %w", username, store.ErrNotFound)
	}
	user.Password = password
	s.users[username] = user
	return nil
}

func (s *UserStore) Delete(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[username]; !ok {
		return fmt.Errorf("user %s: %w", username, store.ErrNotFound)
	}
	delete(s.users, username)
	return nil
}

func (s *UserStore) Authenticate(_ context.Context, username, password string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[username]
	if !ok || !user.Enabled || user.Password != password {
		return nil, nil
	}

	now := time.Now()
	user.LastLoginAt = &now
	s.users[username] = user
	return &user, nil
}

func (s *UserStore) IsAdmin(_ context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[username]
	return ok && user.IsAdmin, nil
}

// RuleStore is an in-memory store.RuleStore. Rules keep their insertion
// order, which makes the authorization tie-break ("first maximal rule in
// store order") deterministic.
type RuleStore struct {
	mu    sync.RWMutex
	rules []store.PermissionRule
}

// NewRuleStore returns an empty in-memory rule store.
func NewRuleStore() *RuleStore {
	return &RuleStore{}
}

func (s *RuleStore) RulesFor(_ context.Context, username string) ([]store.PermissionRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rules []store.PermissionRule
	for _, r := range s.rules {
		if r.Username == username {
			rules = append(rules, r)
		}
	}
	return rules, nil
}

func (s *RuleStore) List(_ context.Context) ([]store.PermissionRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rules := make([]store.PermissionRule, len(s.rules))
	copy(rules, s.rules)
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Username != rules[j].Username {
			return rules[i].Username < rules[j].Username
		}
		return rules[i].Path < rules[j].Path
	})
	return rules, nil
}

func (s *RuleStore) Create(_ context.Context, rule store.PermissionRule) (*store.PermissionRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule.ID = uuid.NewString()
	s.rules = append(s.rules, rule)
	return &rule, nil
}

func (s *RuleStore) Update(_ context.Context, rule store.PermissionRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.rules {
		if r.ID == rule.ID {
			rule.Username = r.Username
			rule.Path = r.Path
			s.rules[i] = rule
			return nil
		}
	}
	return fmt.Errorf("rule %s: %w", rule.ID, store.ErrNotFound)
}

func (s *RuleStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.rules {
		if r.ID == id {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("rule %s: %w", id, store.ErrNotFound)
}

func (s *RuleStore) DeleteByUsername(_ context.Context, username string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.rules[:0]
	removed := 0
	for _, r := range s.rules {
		if r.Username == username {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	s.rules = kept
	return removed, nil
}

// ShareStore is an in-memory store.ShareStore.
type ShareStore struct {
	mu    sync.RWMutex
	byID  map[string]store.ShareLink
	order []string
}

// NewShareStore returns an empty in-memory share store.
func NewShareStore() *ShareStore {
	return &ShareStore{byID: make(map[string]store.ShareLink)}
}

func (s *ShareStore) Create(_ context.Context, link store.ShareLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[link.ID]; ok {
		return fmt.Errorf("share %s: %w", link.ID, store.ErrExists)
	}
	s.byID[link.ID] = link
	s.order = append(s.order, link.ID)
	return nil
}

func (s *ShareStore) FindByToken(_ context.Context, token string) (*store.ShareLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, link := range s.byID {
		if link.Token == token {
			l := link
			return &l, nil
		}
	}
	return nil, fmt.Errorf("share token: %w", store.ErrNotFound)
}

func (s *ShareStore) FindByID(_ context.Context, id string) (*store.ShareLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("share %s: %w", id, store.ErrNotFound)
	}
	return &link, nil
}

func (s *ShareStore) FindByUser(_ context.Context, username string) ([]store.ShareLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var links []store.ShareLink
	// Walk newest-first through the insertion order.
	for i := len(s.order) - 1; i >= 0; i-- {
		if link, ok := s.byID[s.order[i]]; ok && link.CreatedBy == username {
			links = append(links, link)
		}
	}
	return links, nil
}

func (s *ShareStore) List(_ context.Context) ([]store.ShareLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	links := make([]store.ShareLink, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		if link, ok := s.byID[s.order[i]]; ok {
			links = append(links, link)
		}
	}
	return links, nil
}

func (s *ShareStore) IncrementAccessCount(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, link := range s.byID {
		if link.Token == token {
			link.AccessCount++
			s.byID[id] = link
			return nil
		}
	}
	return fmt.Errorf("share token: %w", store.ErrNotFound)
}

func (s *ShareStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return fmt.Errorf("share %s: %w", id, store.ErrNotFound)
	}
	delete(s.byID, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *ShareStore) DeleteExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, link := range s.byID {
		if link.ExpiresAt != nil && now.After(*link.ExpiresAt) {
			delete(s.byID, id)
			removed++
		}
	}
	if removed > 0 {
		kept := s.order[:0]
		for _, id := range s.order {
			if _, ok := s.byID[id]; ok {
				kept = append(kept, id)
			}
		}
		s.order = kept
	}
	return removed, nil
}
