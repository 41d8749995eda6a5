// Package memstore is an in-process remote store for local runs and tests.
package memstore

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"vetclinic-booking/internal/model"
)

var ErrUnavailable = errors.New("memstore: unavailable")

type Store struct {
	mu   sync.Mutex
	rows map[string]model.UserDataRow
	subs map[int]sub
	next int

	down  bool
	saves int
}

type sub struct {
	userID string
	fn     func(model.UserDataRow)
}

func New() *Store {
	return &Store{rows: make(map[string]model.UserDataRow), subs: make(map[int]sub)}
}

// SetDown makes every call fail until reset, to simulate an unreachable backend.
func (s *Store) SetDown(down bool) {
	s.mu.Lock()
	s.down = down
	s.mu.Unlock()
}

// Saves counts successful upserts.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *Store) Load(_ context.Context, userID string) (*model.UserData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return nil, ErrUnavailable
	}
	r, ok := s.rows[userID]
	if !ok {
		return nil, nil
	}
	d := clone(r.Data)
	return &d, nil
}

func (s *Store) Save(_ context.Context, userID string, data model.UserData) error {
	s.mu.Lock()
	if s.down {
		s.mu.Unlock()
		return ErrUnavailable
	}
	row := model.UserDataRow{UserID: userID, Data: clone(data), UpdatedAt: time.Now()}
	s.rows[userID] = row
	s.saves++
	fns := s.matching(userID)
	s.mu.Unlock()

	for _, fn := range fns {
		fn(model.UserDataRow{UserID: userID, Data: clone(row.Data), UpdatedAt: row.UpdatedAt})
	}
	return nil
}

func (s *Store) LoadAll(_ context.Context) ([]model.UserDataRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return nil, ErrUnavailable
	}
	out := make([]model.UserDataRow, 0, len(s.rows))
	for _, r := range s.rows {
		r.Data = clone(r.Data)
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *Store) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	if s.down {
		s.mu.Unlock()
		return ErrUnavailable
	}
	_, existed := s.rows[userID]
	delete(s.rows, userID)
	fns := s.matching(userID)
	s.mu.Unlock()

	if existed {
		for _, fn := range fns {
			fn(model.UserDataRow{UserID: userID, UpdatedAt: time.Now()})
		}
	}
	return nil
}

func (s *Store) Subscribe(ctx context.Context, userID string, fn func(model.UserDataRow)) error {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = sub{userID: userID, fn: fn}
	s.mu.Unlock()

	<-ctx.Done()

	s.mu.Lock()
	delete(s.subs, id)
	s.mu.Unlock()
	return nil
}

// Subscribers reports how many watchers are registered.
func (s *Store) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Store) matching(userID string) []func(model.UserDataRow) {
	var fns []func(model.UserDataRow)
	for _, sb := range s.subs {
		if sb.userID == "" || sb.userID == userID {
			fns = append(fns, sb.fn)
		}
	}
	return fns
}

// clone deep-copies through JSON so callers never share slices with the store.
func clone(d model.UserData) model.UserData {
	b, _ := json.Marshal(d)
	var out model.UserData
	_ = json.Unmarshal(b, &out)
	return out
}
