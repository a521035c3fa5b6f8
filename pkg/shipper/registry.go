package shipper

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the configured carrier accounts by ID.
type Registry struct {
	accounts map[string]*CarrierAccount
	mu       sync.RWMutex
}

// NewRegistry creates a new account registry.
func NewRegistry() *Registry {
	return &Registry{
		accounts: make(map[string]*CarrierAccount),
	}
}

// Register validates and adds an account, replacing any with the same ID.
func (r *Registry) Register(a *CarrierAccount) error {
	if err := a.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[a.ID] = a
	return nil
}

// Get returns an account by ID.
func (r *Registry) Get(id string) (*CarrierAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if a, ok := r.accounts[id]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
}

// All returns all registered accounts ordered by ID.
func (r *Registry) All() []*CarrierAccount {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*CarrierAccount, 0, len(r.accounts))
	for _, a := range r.accounts {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// IDs returns the IDs of all registered accounts, sorted.
func (r *Registry) IDs() []string {
	all := r.All()
	ids := make([]string, 0, len(all))
	for _, a := range all {
		ids = append(ids, a.ID)
	}
	return ids
}

// Count returns the number of registered accounts.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.accounts)
}

// Select returns the accounts with the given IDs in the given order.
// With no IDs every account is returned.
func (r *Registry) Select(ids []string) ([]*CarrierAccount, error) {
	if len(ids) == 0 {
		return r.All(), nil
	}
	result := make([]*CarrierAccount, 0, len(ids))
	for _, id := range ids {
		a, err := r.Get(id)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, nil
}

// Distinct keeps the first account of every identity, preserving order.
func Distinct(accounts []*CarrierAccount) []*CarrierAccount {
	seen := make(map[string]struct{}, len(accounts))
	result := make([]*CarrierAccount, 0, len(accounts))
	for _, a := range accounts {
		key := a.Identity()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, a)
	}
	return result
}
