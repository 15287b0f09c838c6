package tests

import (
	"context"
	"crypto/ed25519"
	"sync"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/sol-trust/pkg/ledger/accounts"
)

func RunTests(t *testing.T, s accounts.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s accounts.Store){
		testHappyPath,
		testStaleCommit,
		testAtomicCommit,
		testDeleteOnEmpty,
		testGetBatch,
		testGetAllByOwner,
		testConcurrentCommits,
	} {
		tf(t, s)
		teardown()
	}
}

func testHappyPath(t *testing.T, s accounts.Store) {
	t.Run("testHappyPath", func(t *testing.T) {
		start := time.Now()
		ctx := context.Background()

		expected := &accounts.Record{
			Address:  newAddress(t),
			Lamports: 890_880,
			Owner:    newAddress(t),
			Data:     []byte{1, 2, 3},
			Slot:     10,
		}

		_, err := s.Get(ctx, expected.Address)
		assert.Equal(t, accounts.ErrAccountNotFound, err)

		require.NoError(t, s.Commit(ctx, expected))
		assert.EqualValues(t, 1, expected.Version)
		assert.True(t, expected.LastUpdatedAt.After(start))

		actual, err := s.Get(ctx, expected.Address)
		require.NoError(t, err)
		assertEquivalentRecords(t, expected, actual)

		actual.Lamports += 5_000_000_000
		actual.Data = []byte{4, 5, 6, 7}
		actual.Executable = true
		actual.Slot = 11
		require.NoError(t, s.Commit(ctx, actual))
		assert.EqualValues(t, 2, actual.Version)

		updated, err := s.Get(ctx, expected.Address)
		require.NoError(t, err)
		assertEquivalentRecords(t, actual, updated)

		// Mutating a fetched record must not affect the store
		updated.Data[0] = 0xff
		refetched, err := s.Get(ctx, expected.Address)
		require.NoError(t, err)
		assert.EqualValues(t, 4, refetched.Data[0])
	})
}

func testStaleCommit(t *testing.T, s accounts.Store) {
	t.Run("testStaleCommit", func(t *testing.T) {
		ctx := context.Background()

		record := &accounts.Record{
			Address:  newAddress(t),
			Lamports: 1,
			Owner:    newAddress(t),
		}
		require.NoError(t, s.Commit(ctx, record))

		// A second creation of the same address is stale
		duplicate := record.Clone()
		duplicate.Version = 0
		assert.Equal(t, accounts.ErrStaleAccountState, s.Commit(ctx, duplicate))

		first, err := s.Get(ctx, record.Address)
		require.NoError(t, err)
		second := first.Clone()

		first.Lamports = 2
		require.NoError(t, s.Commit(ctx, first))

		second.Lamports = 3
		assert.Equal(t, accounts.ErrStaleAccountState, s.Commit(ctx, second))

		actual, err := s.Get(ctx, record.Address)
		require.NoError(t, err)
		assert.EqualValues(t, 2, actual.Lamports)
		assert.EqualValues(t, 2, actual.Version)
	})
}

func testAtomicCommit(t *testing.T, s accounts.Store) {
	t.Run("testAtomicCommit", func(t *testing.T) {
		ctx := context.Background()
		owner := newAddress(t)

		existing := &accounts.Record{Address: newAddress(t), Lamports: 100, Owner: owner}
		require.NoError(t, s.Commit(ctx, existing))

		stale := existing.Clone()
		stale.Version = 7
		stale.Lamports = 50
		created := &accounts.Record{Address: newAddress(t), Lamports: 50, Owner: owner}

		assert.Equal(t, accounts.ErrStaleAccountState, s.Commit(ctx, created, stale))

		_, err := s.Get(ctx, created.Address)
		assert.Equal(t, accounts.ErrAccountNotFound, err)

		actual, err := s.Get(ctx, existing.Address)
		require.NoError(t, err)
		assert.EqualValues(t, 100, actual.Lamports)

		// Duplicate addresses within a commit aren't allowed
		assert.Equal(t, accounts.ErrInvalidAccount, s.Commit(ctx, actual, actual.Clone()))

		// Invalid addresses are rejected
		assert.Error(t, s.Commit(ctx, &accounts.Record{Address: "invalid", Owner: owner, Lamports: 1}))
	})
}

func testDeleteOnEmpty(t *testing.T, s accounts.Store) {
	t.Run("testDeleteOnEmpty", func(t *testing.T) {
		ctx := context.Background()

		record := &accounts.Record{Address: newAddress(t), Lamports: 1_524_240, Owner: newAddress(t), Data: make([]byte, 91)}
		require.NoError(t, s.Commit(ctx, record))

		record.Lamports = 0
		require.NoError(t, s.Commit(ctx, record))
		assert.EqualValues(t, 0, record.Version)

		_, err := s.Get(ctx, record.Address)
		assert.Equal(t, accounts.ErrAccountNotFound, err)

		// Committing an empty account that never existed is a no-op
		never := &accounts.Record{Address: newAddress(t), Owner: newAddress(t)}
		require.NoError(t, s.Commit(ctx, never))
		_, err = s.Get(ctx, never.Address)
		assert.Equal(t, accounts.ErrAccountNotFound, err)

		// The address can be reused from version zero
		record.Lamports = 10
		record.Data = nil
		require.NoError(t, s.Commit(ctx, record))
		assert.EqualValues(t, 1, record.Version)
	})
}

func testGetBatch(t *testing.T, s accounts.Store) {
	t.Run("testGetBatch", func(t *testing.T) {
		ctx := context.Background()

		var records []*accounts.Record
		var addresses []string
		for i := 0; i < 5; i++ {
			record := &accounts.Record{Address: newAddress(t), Lamports: uint64(i + 1), Owner: newAddress(t)}
			records = append(records, record)
			addresses = append(addresses, record.Address)
		}
		require.NoError(t, s.Commit(ctx, records[:3]...))

		actual, err := s.GetBatch(ctx, addresses...)
		require.NoError(t, err)
		require.Len(t, actual, 3)
		for _, record := range records[:3] {
			assertEquivalentRecords(t, record, actual[record.Address])
		}

		actual, err = s.GetBatch(ctx, addresses[3:]...)
		require.NoError(t, err)
		assert.Empty(t, actual)
	})
}

func testGetAllByOwner(t *testing.T, s accounts.Store) {
	t.Run("testGetAllByOwner", func(t *testing.T) {
		ctx := context.Background()
		owner := newAddress(t)

		_, err := s.GetAllByOwner(ctx, owner)
		assert.Equal(t, accounts.ErrAccountNotFound, err)

		var records []*accounts.Record
		for i := 0; i < 5; i++ {
			records = append(records, &accounts.Record{Address: newAddress(t), Lamports: 1, Owner: owner})
		}
		records = append(records, &accounts.Record{Address: newAddress(t), Lamports: 1, Owner: newAddress(t)})
		require.NoError(t, s.Commit(ctx, records...))

		actual, err := s.GetAllByOwner(ctx, owner)
		require.NoError(t, err)
		require.Len(t, actual, 5)
		for i := 1; i < len(actual); i++ {
			assert.True(t, actual[i-1].Address < actual[i].Address)
		}
		for _, record := range actual {
			assert.Equal(t, owner, record.Owner)
		}
	})
}

func testConcurrentCommits(t *testing.T, s accounts.Store) {
	t.Run("testConcurrentCommits", func(t *testing.T) {
		ctx := context.Background()

		record := &accounts.Record{Address: newAddress(t), Lamports: 1, Owner: newAddress(t)}
		require.NoError(t, s.Commit(ctx, record))

		var wg sync.WaitGroup
		var mu sync.Mutex
		var succeeded int

		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()

				updated := record.Clone()
				updated.Lamports++
				if err := s.Commit(ctx, updated); err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
				} else {
					assert.Equal(t, accounts.ErrStaleAccountState, err)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, succeeded)

		actual, err := s.Get(ctx, record.Address)
		require.NoError(t, err)
		assert.EqualValues(t, 2, actual.Lamports)
		assert.EqualValues(t, 2, actual.Version)
	})
}

func assertEquivalentRecords(t *testing.T, obj1, obj2 *accounts.Record) {
	require.NotNil(t, obj2)
	assert.Equal(t, obj1.Address, obj2.Address)
	assert.Equal(t, obj1.Lamports, obj2.Lamports)
	assert.Equal(t, obj1.Owner, obj2.Owner)
	if len(obj1.Data) == 0 {
		assert.Empty(t, obj2.Data)
	} else {
		assert.Equal(t, obj1.Data, obj2.Data)
	}
	assert.Equal(t, obj1.Executable, obj2.Executable)
	assert.Equal(t, obj1.Version, obj2.Version)
	assert.Equal(t, obj1.Slot, obj2.Slot)
}

func newAddress(t *testing.T) string {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return base58.Encode(pub)
}
