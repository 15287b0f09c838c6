package ledger

import (
	"crypto/sha256"
	"encoding/binary"
	"sync"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"

	"github.com/code-payments/sol-trust/pkg/solana"
)

// blockhashQueue tracks the blockhashes produced for recent slots. A
// blockhash is valid for transactions until maxAge slots have passed.
type blockhashQueue struct {
	mu sync.RWMutex

	maxAge uint64

	slot      uint64
	latest    solana.Blockhash
	bySlot    *treemap.Map
	hashSlots map[solana.Blockhash]uint64

	// onExpire is called, with the lock held, for each blockhash that ages
	// out of the queue.
	onExpire func(solana.Blockhash)
}

func newBlockhashQueue(genesis solana.Blockhash, maxAge uint64, onExpire func(solana.Blockhash)) *blockhashQueue {
	q := &blockhashQueue{
		maxAge:    maxAge,
		bySlot:    treemap.NewWith(utils.UInt64Comparator),
		hashSlots: make(map[solana.Blockhash]uint64),
		onExpire:  onExpire,
	}
	q.push(0, genesis)
	return q
}

// advance moves the queue to the next slot and returns it along with its
// blockhash.
func (q *blockhashQueue) advance() (uint64, solana.Blockhash) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var slotBytes [8]byte
	binary.LittleEndian.PutUint64(slotBytes[:], q.slot+1)

	h := sha256.New()
	h.Write(q.latest[:])
	h.Write(slotBytes[:])

	var next solana.Blockhash
	copy(next[:], h.Sum(nil))

	q.push(q.slot+1, next)
	return q.slot, q.latest
}

func (q *blockhashQueue) push(slot uint64, bh solana.Blockhash) {
	q.slot = slot
	q.latest = bh
	q.bySlot.Put(slot, bh)
	q.hashSlots[bh] = slot

	for q.bySlot.Size() > 0 {
		oldest, value := q.bySlot.Min()
		if slot-oldest.(uint64) <= q.maxAge {
			break
		}

		expired := value.(solana.Blockhash)
		q.bySlot.Remove(oldest)
		delete(q.hashSlots, expired)

		if q.onExpire != nil {
			q.onExpire(expired)
		}
	}
}

// current returns the current slot and its blockhash.
func (q *blockhashQueue) current() (uint64, solana.Blockhash) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return q.slot, q.latest
}

// lastValidSlot returns the last slot a transaction referencing bh can be
// processed in.
func (q *blockhashQueue) lastValidSlot(bh solana.Blockhash) (uint64, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	slot, ok := q.hashSlots[bh]
	if !ok {
		return 0, false
	}
	return slot + q.maxAge, true
}

func (q *blockhashQueue) isValid(bh solana.Blockhash) bool {
	_, ok := q.lastValidSlot(bh)
	return ok
}
