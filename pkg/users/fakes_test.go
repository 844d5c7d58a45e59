package users

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

type memStore struct {
	mu    sync.Mutex
	rows  map[string]*User
	err   error
	gets  int
	lists int

	// afterRead runs once the row is read, outside the lock
	afterRead func()
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]*User)}
}

func (s *memStore) Upsert(ctx context.Context, u *User) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if cur, ok := s.rows[u.ID]; ok {
		if cur.UpdatedAt.After(u.UpdatedAt) {
			return false, nil
		}
		created := cur.CreatedAt
		cp := *u
		cp.CreatedAt = created
		s.rows[u.ID] = &cp
		return true, nil
	}
	cp := *u
	s.rows[u.ID] = &cp
	return true, nil
}

func (s *memStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	_, ok := s.rows[id]
	delete(s.rows, id)
	return ok, nil
}

func (s *memStore) Get(ctx context.Context, id string) (*User, error) {
	u, err := s.get(id)
	s.runAfterRead()
	return u, err
}

func (s *memStore) get(id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) runAfterRead() {
	s.mu.Lock()
	fn := s.afterRead
	s.afterRead = nil
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *memStore) List(ctx context.Context, limit, offset int) ([]*User, error) {
	list, err := s.list(limit, offset)
	s.runAfterRead()
	return list, err
}

func (s *memStore) list(limit, offset int) ([]*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	if s.err != nil {
		return nil, s.err
	}
	ids := make([]string, 0, len(s.rows))
	for id := range s.rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	list := []*User{}
	for i := offset; i < len(ids) && len(list) < limit; i++ {
		cp := *s.rows[ids[i]]
		list = append(list, &cp)
	}
	return list, nil
}

func (s *memStore) Count(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	return int64(len(s.rows)), nil
}

type recordingInvalidator struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (i *recordingInvalidator) InvalidateTags(ctx context.Context, tags ...string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.calls = append(i.calls, append([]string(nil), tags...))
	return i.err
}

type recordingPublisher struct {
	mu      sync.Mutex
	synced  []string
	deleted []string
	err     error
}

func (p *recordingPublisher) PublishUserSynced(ctx context.Context, u *User) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.synced = append(p.synced, u.ID)
	return p.err
}

func (p *recordingPublisher) PublishUserDeleted(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, id)
	return p.err
}

var errBoom = errors.New("boom")

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func strPtr(s string) *string {
	return &s
}

func adaLovelace() *ExternalUser {
	return &ExternalUser{
		ID:        "u1",
		FirstName: strPtr("Ada"),
		LastName:  strPtr("Lovelace"),
		EmailAddresses: []EmailAddress{
			{ID: "e1", EmailAddress: "ada@x.com"},
		},
		PrimaryEmailAddressID: strPtr("e1"),
		ImageURL:              "http://img/u1.png",
		CreatedAt:             1700000000000,
		UpdatedAt:             1700000000000,
	}
}
