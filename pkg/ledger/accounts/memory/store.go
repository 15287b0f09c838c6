package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/code-payments/sol-trust/pkg/ledger/accounts"
)

type store struct {
	mu      sync.RWMutex
	records map[string]*accounts.Record
}

// New returns a new in memory accounts.Store
func New() accounts.Store {
	return &store{
		records: make(map[string]*accounts.Record),
	}
}

// Get implements accounts.Store.Get
func (s *store) Get(_ context.Context, address string) (*accounts.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if item, ok := s.records[address]; ok {
		return item.Clone(), nil
	}
	return nil, accounts.ErrAccountNotFound
}

// GetBatch implements accounts.Store.GetBatch
func (s *store) GetBatch(_ context.Context, addresses ...string) (map[string]*accounts.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make(map[string]*accounts.Record)
	for _, address := range addresses {
		if item, ok := s.records[address]; ok {
			res[address] = item.Clone()
		}
	}
	return res, nil
}

// GetAllByOwner implements accounts.Store.GetAllByOwner
func (s *store) GetAllByOwner(_ context.Context, owner string) ([]*accounts.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var res []*accounts.Record
	for _, item := range s.records {
		if item.Owner == owner {
			res = append(res, item.Clone())
		}
	}

	if len(res) == 0 {
		return nil, accounts.ErrAccountNotFound
	}

	sort.Slice(res, func(i, j int) bool {
		return res[i].Address < res[j].Address
	})
	return res, nil
}

// Commit implements accounts.Store.Commit
func (s *store) Commit(_ context.Context, records ...*accounts.Record) error {
	seen := make(map[string]struct{})
	for _, record := range records {
		if err := record.Validate(); err != nil {
			return err
		}
		if _, ok := seen[record.Address]; ok {
			return accounts.ErrInvalidAccount
		}
		seen[record.Address] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range records {
		var currentVersion uint64
		if item, ok := s.records[record.Address]; ok {
			currentVersion = item.Version
		}
		if currentVersion != record.Version {
			return accounts.ErrStaleAccountState
		}
	}

	now := time.Now()
	for _, record := range records {
		if record.IsEmpty() {
			delete(s.records, record.Address)
			record.Version = 0
			record.LastUpdatedAt = now
			continue
		}

		record.Version++
		record.LastUpdatedAt = now
		s.records[record.Address] = record.Clone()
	}

	return nil
}

func (s *store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*accounts.Record)
}
