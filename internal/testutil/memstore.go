// Package testutil holds in-memory collaborators for handler and service
// tests.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"hrportal-backend/internal/audit"
	"hrportal-backend/internal/database"
	"hrportal-backend/internal/models"
)

// UserStore mirrors database.UserStore semantics over a map, including the
// conditional updates and the error values.
type UserStore struct {
	mu         sync.Mutex
	nextID     uint
	users      map[uint]models.User
	noteCounts map[uint]int64

	// Err, when set, is returned by every method.
	Err error
}

func NewUserStore() *UserStore {
	return &UserStore{
		nextID:     1,
		users:      make(map[uint]models.User),
		noteCounts: make(map[uint]int64),
	}
}

func (s *UserStore) SetNoteCount(userID uint, n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noteCounts[userID] = n
}

// Get returns a copy of the stored record for assertions.
func (s *UserStore) Get(id uint) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return u, ok
}

func (s *UserStore) FindByID(_ context.Context, id uint) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return clone(u), nil
}

func (s *UserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, u := range s.users {
		if u.Email == email {
			return clone(u), nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *UserStore) List(_ context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *clone(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *UserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for _, u := range s.users {
		if u.Email == user.Email {
			return database.ErrDuplicate
		}
	}
	now := time.Now()
	user.ID = s.nextID
	user.CreatedAt, user.UpdatedAt = now, now
	s.nextID++
	s.users[user.ID] = *clone(*user)
	return nil
}

func (s *UserStore) UpdateActive(_ context.Context, id uint, active bool) error {
	return s.mutate(id, func(u *models.User) error { u.Active = active; return nil })
}

func (s *UserStore) UpdateRole(_ context.Context, id uint, role models.UserRole) error {
	return s.mutate(id, func(u *models.User) error { u.Role = role; return nil })
}

func (s *UserStore) SetRecoveryAnswerHash(_ context.Context, id uint, hash string) error {
	return s.mutate(id, func(u *models.User) error { u.RecoveryAnswerHash = &hash; return nil })
}

func (s *UserStore) SwapRecoveryAnswerHash(_ context.Context, id uint, prevHash, newHash string) error {
	return s.mutate(id, func(u *models.User) error {
		if u.RecoveryAnswerHash == nil || *u.RecoveryAnswerHash != prevHash {
			return database.ErrStale
		}
		u.RecoveryAnswerHash = &newHash
		return nil
	})
}

func (s *UserStore) SwapPasswordHash(_ context.Context, id uint, prevHash, newHash string) error {
	return s.mutate(id, func(u *models.User) error {
		if u.PasswordHash != prevHash {
			return database.ErrStale
		}
		u.PasswordHash = newHash
		return nil
	})
}

func (s *UserStore) ResetPasswordHash(_ context.Context, id uint, recoveryHash, newHash string) error {
	return s.mutate(id, func(u *models.User) error {
		if u.RecoveryAnswerHash == nil || *u.RecoveryAnswerHash != recoveryHash {
			return database.ErrStale
		}
		u.PasswordHash = newHash
		return nil
	})
}

func (s *UserStore) CountNotesByAuthor(_ context.Context, id uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	return s.noteCounts[id], nil
}

func (s *UserStore) Delete(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.users[id]; !ok {
		return database.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *UserStore) mutate(id uint, fn func(u *models.User) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	u, ok := s.users[id]
	if !ok {
		return database.ErrNotFound
	}
	if err := fn(&u); err != nil {
		return err
	}
	u.UpdatedAt = time.Now()
	s.users[id] = u
	return nil
}

func clone(u models.User) *models.User {
	if u.RecoveryAnswerHash != nil {
		h := *u.RecoveryAnswerHash
		u.RecoveryAnswerHash = &h
	}
	u.Notes = nil
	return &u
}

// AuditLog collects audit entries in memory.
type AuditLog struct {
	mu      sync.Mutex
	entries []audit.LogOptions
}

func (a *AuditLog) WriteLog(_ context.Context, opts audit.LogOptions) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, opts)
	return nil
}

func (a *AuditLog) Actions() []models.AuditAction {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.AuditAction, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

func (a *AuditLog) Entries() []audit.LogOptions {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]audit.LogOptions(nil), a.entries...)
}
