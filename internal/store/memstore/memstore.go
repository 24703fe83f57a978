// Package memstore is an in-process implementation of the store contracts.
// It backs STORE_DRIVER=memory and the test suites.
package memstore

import (
	"sync"
	"time"

	"shuttle_tracker/internal/models"
	"shuttle_tracker/internal/store"
)

type Store struct {
	mu sync.RWMutex

	nextID        uint
	users         map[uint]models.User
	buses         map[uint]models.Bus
	routes        map[uint]models.Route
	notifications map[uint]models.Notification
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:         make(map[uint]models.User),
		buses:         make(map[uint]models.Bus),
		routes:        make(map[uint]models.Route),
		notifications: make(map[uint]models.Notification),
	}
}

// id hands out a store-wide increasing id. Callers hold mu.
func (s *Store) id() uint {
	s.nextID++
	return s.nextID
}

func page[T any](items []T, p store.Page) []T {
	if p.Limit < 1 {
		return items
	}
	start := p.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func copyUint(v *uint) *uint {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
