package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"cardledger/internal/domain"
	"cardledger/pkg/cache"
)

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]*domain.User)}
}

func (r *fakeUserRepo) FindByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) FindAll(_ context.Context) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.User, 0, len(r.users))
	for _, u := range r.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeUserRepo) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	u.ID = r.nextID
	u.CreatedAt = time.Now().UTC()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
	return nil
}

func (r *fakeUserRepo) Ping(context.Context) error { return nil }

type fakeTransactionRepo struct {
	mu     sync.Mutex
	nextID int64
	txs    []*domain.Transaction
}

func (r *fakeTransactionRepo) FindByID(_ context.Context, id int64) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tx := range r.txs {
		if tx.ID == id {
			cp := *tx
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeTransactionRepo) FindByUserID(_ context.Context, userID int64) ([]*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Transaction, 0)
	for i := len(r.txs) - 1; i >= 0; i-- {
		if r.txs[i].UserID == userID {
			cp := *r.txs[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeTransactionRepo) FindAll(_ context.Context, limit, offset int) ([]*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Transaction, 0)
	for i := len(r.txs) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		cp := *r.txs[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeTransactionRepo) Count(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.txs)), nil
}

func (r *fakeTransactionRepo) Create(_ context.Context, tx *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	tx.ID = r.nextID
	tx.CreatedAt = time.Now().UTC()
	cp := *tx
	r.txs = append(r.txs, &cp)
	return nil
}

func (r *fakeTransactionRepo) Update(_ context.Context, tx *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.txs {
		if existing.ID == tx.ID {
			cp := *tx
			r.txs[i] = &cp
		}
	}
	return nil
}

func (r *fakeTransactionRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, tx := range r.txs {
		if tx.ID == id {
			r.txs = append(r.txs[:i], r.txs[i+1:]...)
			break
		}
	}
	return nil
}

func (r *fakeTransactionRepo) Ping(context.Context) error { return nil }

type fakeDirectory struct {
	mu      sync.Mutex
	outcome domain.LookupOutcome
	err     error
	calls   []int64
}

func (d *fakeDirectory) LookupUser(_ context.Context, id int64) domain.UserLookup {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, id)
	switch d.outcome {
	case domain.LookupFound:
		return domain.UserLookup{Outcome: domain.LookupFound, User: &domain.User{ID: id}}
	case domain.LookupNotFound:
		return domain.UserLookup{Outcome: domain.LookupNotFound}
	default:
		return domain.UserLookup{Outcome: domain.LookupUnavailable, Err: d.err}
	}
}

func (d *fakeDirectory) Ping(context.Context) error { return nil }

func (d *fakeDirectory) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	failGet bool
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (c *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return errors.New("connection refused")
	}
	data, ok := c.entries[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = data
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *memoryCache) Ping(context.Context) error { return nil }

func (c *memoryCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}
