package ledger

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/code-payments/sol-trust/pkg/solana"
)

const (
	signaturesPerBlockhashEstimate = 10_000
	signatureFilterErrRate         = 0.001
)

// Status is the result of a processed transaction.
type Status struct {
	Signature solana.Signature
	Slot      uint64
	Blockhash solana.Blockhash
	Fee       uint64

	// Err is nil for transactions that succeeded.
	Err  *solana.TransactionError
	Logs []string
}

// processedSignatures are the signatures seen for a single blockhash. The
// exact set holds at most exactLimit signatures; past that the bloom filter
// alone answers, so a busy blockhash costs a fixed amount of memory at the
// price of rejecting a fresh signature at the filter's error rate.
type processedSignatures struct {
	filter   *bloom.BloomFilter
	exact    map[solana.Signature]struct{}
	overflow bool
}

// statusCache remembers processed transactions. Statuses are kept in an LRU
// for lookups, while duplicate detection is tracked per blockhash for as long
// as the blockhash is valid, since a transaction can't be replayed once its
// blockhash has expired.
type statusCache struct {
	mu sync.RWMutex

	statuses    *lru.Cache[solana.Signature, *Status]
	byBlockhash map[solana.Blockhash]*processedSignatures
	exactLimit  int
}

func newStatusCache(size int) (*statusCache, error) {
	statuses, err := lru.New[solana.Signature, *Status](size)
	if err != nil {
		return nil, err
	}

	return &statusCache{
		statuses:    statuses,
		byBlockhash: make(map[solana.Blockhash]*processedSignatures),
		exactLimit:  signaturesPerBlockhashEstimate,
	}, nil
}

func (c *statusCache) isProcessed(bh solana.Blockhash, sig solana.Signature) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	processed, ok := c.byBlockhash[bh]
	if !ok {
		return false
	}

	if !processed.filter.Test(sig[:]) {
		return false
	}

	if _, ok := processed.exact[sig]; ok {
		return true
	}
	return processed.overflow
}

func (c *statusCache) insert(status *Status) {
	c.mu.Lock()
	defer c.mu.Unlock()

	processed, ok := c.byBlockhash[status.Blockhash]
	if !ok {
		processed = &processedSignatures{
			filter: bloom.NewWithEstimates(signaturesPerBlockhashEstimate, signatureFilterErrRate),
			exact:  make(map[solana.Signature]struct{}),
		}
		c.byBlockhash[status.Blockhash] = processed
	}

	processed.filter.Add(status.Signature[:])
	if len(processed.exact) < c.exactLimit {
		processed.exact[status.Signature] = struct{}{}
	} else {
		processed.overflow = true
	}

	c.statuses.Add(status.Signature, status)
}

func (c *statusCache) get(sig solana.Signature) (*Status, bool) {
	return c.statuses.Get(sig)
}

func (c *statusCache) purge(bh solana.Blockhash) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.byBlockhash, bh)
}
