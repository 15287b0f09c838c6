package pebble

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/ugorji/go/codec"

	"github.com/code-payments/sol-trust/pkg/ledger/accounts"
)

var (
	accountPrefix = []byte("a/")
	ownerPrefix   = []byte("o/")
)

var msgpack = &codec.MsgpackHandle{}

// value is the msgpack-encoded form of an account.
type value struct {
	Lamports      uint64 `codec:"l"`
	Owner         string `codec:"o"`
	Data          []byte `codec:"d"`
	Executable    bool   `codec:"x"`
	Version       uint64 `codec:"v"`
	Slot          uint64 `codec:"s"`
	LastUpdatedAt int64  `codec:"t"`
}

type store struct {
	// commitMu serializes version checks with batch writes, since pebble
	// batches don't read.
	commitMu sync.Mutex

	db *pebble.DB
}

// New returns a new pebble-backed accounts.Store
func New(db *pebble.DB) accounts.Store {
	return &store{
		db: db,
	}
}

// Open opens (or creates) a pebble database at dir and returns a store over
// it, along with a function to close the database.
func Open(dir string) (accounts.Store, func() error, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, nil, err
	}
	return New(db), db.Close, nil
}

// Get implements accounts.Store.Get
func (s *store) Get(_ context.Context, address string) (*accounts.Record, error) {
	return s.get(address)
}

// GetBatch implements accounts.Store.GetBatch
func (s *store) GetBatch(_ context.Context, addresses ...string) (map[string]*accounts.Record, error) {
	res := make(map[string]*accounts.Record)
	for _, address := range addresses {
		record, err := s.get(address)
		if err == accounts.ErrAccountNotFound {
			continue
		} else if err != nil {
			return nil, err
		}
		res[address] = record
	}
	return res, nil
}

// GetAllByOwner implements accounts.Store.GetAllByOwner
func (s *store) GetAllByOwner(_ context.Context, owner string) ([]*accounts.Record, error) {
	prefix := ownerKey(owner, "")

	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var res []*accounts.Record
	for iter.First(); iter.Valid(); iter.Next() {
		address := string(iter.Key()[len(prefix):])

		record, err := s.get(address)
		if err == accounts.ErrAccountNotFound {
			continue
		} else if err != nil {
			return nil, err
		}
		res = append(res, record)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, accounts.ErrAccountNotFound
	}
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

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	existing := make([]*accounts.Record, len(records))
	for i, record := range records {
		current, err := s.get(record.Address)
		if err == accounts.ErrAccountNotFound {
			current = nil
		} else if err != nil {
			return err
		}

		var currentVersion uint64
		if current != nil {
			currentVersion = current.Version
		}
		if currentVersion != record.Version {
			return accounts.ErrStaleAccountState
		}
		existing[i] = current
	}

	now := time.Now()

	batch := s.db.NewBatch()
	defer batch.Close()

	versions := make([]uint64, len(records))
	for i, record := range records {
		if current := existing[i]; current != nil && (record.IsEmpty() || current.Owner != record.Owner) {
			if err := batch.Delete(ownerKey(current.Owner, record.Address), nil); err != nil {
				return err
			}
		}

		if record.IsEmpty() {
			if existing[i] != nil {
				if err := batch.Delete(accountKey(record.Address), nil); err != nil {
					return err
				}
			}
			continue
		}

		versions[i] = record.Version + 1

		encoded, err := encode(record, versions[i], now)
		if err != nil {
			return err
		}
		if err := batch.Set(accountKey(record.Address), encoded, nil); err != nil {
			return err
		}
		if err := batch.Set(ownerKey(record.Owner, record.Address), nil, nil); err != nil {
			return err
		}
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return err
	}

	for i, record := range records {
		record.Version = versions[i]
		record.LastUpdatedAt = now
	}
	return nil
}

func (s *store) get(address string) (*accounts.Record, error) {
	raw, closer, err := s.db.Get(accountKey(address))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, accounts.ErrAccountNotFound
	} else if err != nil {
		return nil, err
	}
	defer closer.Close()

	var v value
	if err := codec.NewDecoderBytes(raw, msgpack).Decode(&v); err != nil {
		return nil, err
	}

	var data []byte
	if len(v.Data) > 0 {
		data = make([]byte, len(v.Data))
		copy(data, v.Data)
	}

	return &accounts.Record{
		Address: address,

		Lamports:   v.Lamports,
		Owner:      v.Owner,
		Data:       data,
		Executable: v.Executable,

		Version: v.Version,
		Slot:    v.Slot,

		LastUpdatedAt: time.Unix(0, v.LastUpdatedAt),
	}, nil
}

func (s *store) reset() error {
	return s.db.DeleteRange([]byte{0x00}, []byte{0xff}, pebble.Sync)
}

func encode(record *accounts.Record, version uint64, now time.Time) ([]byte, error) {
	var encoded []byte
	err := codec.NewEncoderBytes(&encoded, msgpack).Encode(&value{
		Lamports:      record.Lamports,
		Owner:         record.Owner,
		Data:          record.Data,
		Executable:    record.Executable,
		Version:       version,
		Slot:          record.Slot,
		LastUpdatedAt: now.UnixNano(),
	})
	return encoded, err
}

func accountKey(address string) []byte {
	return append(append([]byte{}, accountPrefix...), address...)
}

func ownerKey(owner, address string) []byte {
	key := append(append([]byte{}, ownerPrefix...), owner...)
	key = append(key, '/')
	return append(key, address...)
}

func prefixUpperBound(prefix []byte) []byte {
	upper := append([]byte{}, prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] < 0xff {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil
}
