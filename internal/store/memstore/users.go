package memstore

import (
	"context"
	"sort"
	"strings"
	"time"

	"shuttle_tracker/internal/models"
	"shuttle_tracker/internal/store"
)

func cloneUser(u models.User) models.User {
	if u.StudentID != nil {
		sid := *u.StudentID
		u.StudentID = &sid
	}
	u.AssignedRouteID = copyUint(u.AssignedRouteID)
	u.AssignedBusID = copyUint(u.AssignedBusID)
	u.ActivatedAt = copyTime(u.ActivatedAt)
	return u
}

func (s *Store) userConflict(u *models.User) bool {
	for id, other := range s.users {
		if id == u.ID {
			continue
		}
		if strings.EqualFold(other.Email, u.Email) {
			return true
		}
		if u.StudentID != nil && other.StudentID != nil && *u.StudentID == *other.StudentID {
			return true
		}
	}
	return false
}

func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userConflict(u) {
		return store.ErrDuplicate
	}
	u.ID = s.id()
	now := time.Now()
	u.CreatedAt, u.UpdatedAt = now, now
	s.users[u.ID] = cloneUser(*u)
	return nil
}

func (s *Store) GetUser(_ context.Context, id uint) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	u = cloneUser(u)
	return &u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			u = cloneUser(u)
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) UpdateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return store.ErrNotFound
	}
	if s.userConflict(u) {
		return store.ErrDuplicate
	}
	u.UpdatedAt = time.Now()
	s.users[u.ID] = cloneUser(*u)
	return nil
}

func (s *Store) ListUsers(_ context.Context, f store.UserFilter) ([]models.User, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.User
	for _, u := range s.users {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if f.Status != "" && u.Status != f.Status {
			continue
		}
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, f.Page), int64(len(out)), nil
}

func (s *Store) CountStudentsOnRoute(_ context.Context, routeID uint) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, u := range s.users {
		if u.Role == models.RoleStudent && u.AssignedRouteID != nil && *u.AssignedRouteID == routeID {
			n++
		}
	}
	return n, nil
}
