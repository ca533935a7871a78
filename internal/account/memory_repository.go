package account

import (
	"context"
	"errors"
	"sync"
)

type memoryRepository struct {
	mu       sync.RWMutex
	byID     map[string]Account
	byMSISDN map[string]string
}

// NewMemoryRepository constructs an in-memory repository for tests and
// development mode.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		byID:     make(map[string]Account),
		byMSISDN: make(map[string]string),
	}
}

func (r *memoryRepository) Create(_ context.Context, acct Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[acct.ID]; exists {
		return errors.New("account exists")
	}
	if _, exists := r.byMSISDN[acct.MSISDN]; exists {
		return errors.New("msisdn already registered")
	}
	r.byID[acct.ID] = acct
	r.byMSISDN[acct.MSISDN] = acct.ID
	return nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acct, ok := r.byID[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return acct, nil
}

func (r *memoryRepository) FindByMSISDN(_ context.Context, msisdn string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byMSISDN[msisdn]
	if !ok {
		return Account{}, ErrNotFound
	}
	return r.byID[id], nil
}
