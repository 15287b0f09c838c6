package ledger

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/sol-trust/pkg/ledger/accounts"
	"github.com/code-payments/sol-trust/pkg/metrics"
	"github.com/code-payments/sol-trust/pkg/solana"
	"github.com/code-payments/sol-trust/pkg/solana/memo"
	"github.com/code-payments/sol-trust/pkg/solana/system"
	"github.com/code-payments/sol-trust/pkg/sync"
)

const (
	metricsStructName = "ledger"

	transactionsProcessedMetricName = "ledger.transactions_processed"
	transactionsFailedMetricName    = "ledger.transactions_failed"
	executionDurationMetricName     = "ledger.execution_duration"

	airdropEventName = "LedgerAirdrop"
)

var systemProgramAddress = base58.Encode(system.ProgramKey[:])

// Option configures a Ledger.
type Option func(*Ledger)

// WithPrograms registers programs with the ledger, in addition to the native
// system and memo programs.
func WithPrograms(programs ...Program) Option {
	return func(l *Ledger) {
		l.pending = append(l.pending, programs...)
	}
}

// WithClock overrides the ledger's clock.
func WithClock(clock Clock) Option {
	return func(l *Ledger) {
		l.clock = clock
	}
}

// WithFaucet overrides the keypair airdrops are funded from.
func WithFaucet(faucet ed25519.PrivateKey) Option {
	return func(l *Ledger) {
		l.faucet = faucet
	}
}

// Ledger executes transactions against accounts held in an accounts.Store.
//
// Transactions that touch disjoint writable accounts are processed
// concurrently. Conflicting transactions are serialized by account locks,
// and the store's optimistic versioning rejects commits that race with
// another writer of the same store.
type Ledger struct {
	log   *logrus.Entry
	conf  *conf
	store accounts.Store
	clock Clock

	pending  []Program
	programs map[string]Program

	locks       *sync.StripedLock
	blockhashes *blockhashQueue
	statuses    *statusCache

	faucet ed25519.PrivateKey
}

// New returns a ledger backed by store. Genesis accounts for the registered
// programs and the faucet are created on first use of the store.
func New(ctx context.Context, store accounts.Store, configProvider ConfigProvider, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		log:      logrus.StandardLogger().WithField("type", "ledger"),
		conf:     configProvider(),
		store:    store,
		clock:    SystemClock(),
		programs: make(map[string]Program),
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.faucet == nil {
		l.faucet = defaultFaucet()
	}

	natives := []Program{NewSystemProgram(), NewMemoProgram()}
	for _, program := range append(natives, l.pending...) {
		key := base58.Encode(program.Id())
		if _, ok := l.programs[key]; ok {
			return nil, errors.Wrapf(ErrProgramAlreadyRegistered, "program %s", key)
		}
		l.programs[key] = program
	}
	l.pending = nil

	statuses, err := newStatusCache(int(l.conf.statusCacheSize.Get(ctx)))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create status cache")
	}
	l.statuses = statuses

	l.locks = sync.NewStripedLock(uint(l.conf.lockStripes.Get(ctx)))
	l.blockhashes = newBlockhashQueue(
		genesisBlockhash(l.clock.Now()),
		l.conf.maxBlockhashAge.Get(ctx),
		l.statuses.purge,
	)

	if err := l.ensureGenesis(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to create genesis accounts")
	}

	return l, nil
}

// Faucet returns the address airdrops are funded from.
func (l *Ledger) Faucet() ed25519.PublicKey {
	return l.faucet.Public().(ed25519.PublicKey)
}

// Run produces a new slot, and blockhash, every slot interval until ctx is
// done.
func (l *Ledger) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.conf.slotInterval.Get(ctx))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.AdvanceSlot()
		}
	}
}

// AdvanceSlot moves the ledger to the next slot and returns it.
func (l *Ledger) AdvanceSlot() uint64 {
	slot, _ := l.blockhashes.advance()
	return slot
}

func (l *Ledger) GetSlot() uint64 {
	slot, _ := l.blockhashes.current()
	return slot
}

// GetLatestBlockhash returns the most recent blockhash and the last slot a
// transaction referencing it can be processed in.
func (l *Ledger) GetLatestBlockhash() (solana.Blockhash, uint64) {
	_, bh := l.blockhashes.current()
	lastValid, _ := l.blockhashes.lastValidSlot(bh)
	return bh, lastValid
}

func (l *Ledger) IsBlockhashValid(bh solana.Blockhash) bool {
	return l.blockhashes.isValid(bh)
}

// GetAccount returns the account at address, or accounts.ErrAccountNotFound.
func (l *Ledger) GetAccount(ctx context.Context, address ed25519.PublicKey) (*accounts.Record, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetAccount")
	defer tracer.End()

	record, err := l.store.Get(ctx, base58.Encode(address))
	tracer.OnError(err)
	return record, err
}

// GetBalance returns the lamports held by address. Accounts that don't exist
// hold nothing.
func (l *Ledger) GetBalance(ctx context.Context, address ed25519.PublicKey) (uint64, error) {
	record, err := l.GetAccount(ctx, address)
	if err == accounts.ErrAccountNotFound {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return record.Lamports, nil
}

// GetProgramAccounts returns every account owned by program.
func (l *Ledger) GetProgramAccounts(ctx context.Context, program ed25519.PublicKey) ([]*accounts.Record, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetProgramAccounts")
	defer tracer.End()

	records, err := l.store.GetAllByOwner(ctx, base58.Encode(program))
	if err == accounts.ErrAccountNotFound {
		return nil, nil
	}
	tracer.OnError(err)
	return records, err
}

// GetSignatureStatuses returns the status of each signature, or nil for
// signatures that haven't been processed.
func (l *Ledger) GetSignatureStatuses(sigs ...solana.Signature) []*Status {
	statuses := make([]*Status, len(sigs))
	for i, sig := range sigs {
		if status, ok := l.statuses.get(sig); ok {
			statuses[i] = status
		}
	}
	return statuses
}

// RequestAirdrop transfers lamports from the faucet to address.
func (l *Ledger) RequestAirdrop(ctx context.Context, address ed25519.PublicKey, lamports uint64) (solana.Signature, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "RequestAirdrop")
	defer tracer.End()

	faucet := l.Faucet()
	bh, _ := l.GetLatestBlockhash()

	// The memo keeps repeated airdrops of the same amount, within a single
	// slot, from sharing a signature.
	tx := solana.NewTransaction(
		faucet,
		system.Transfer(faucet, address, lamports),
		memo.Instruction("airdrop:"+uuid.New().String()),
	)
	tx.SetBlockhash(bh)
	if err := tx.Sign(l.faucet); err != nil {
		return solana.Signature{}, errors.Wrap(err, "failed to sign airdrop")
	}

	sig, err := l.SubmitTransaction(ctx, tx)
	if err != nil {
		tracer.OnError(err)
		return sig, err
	}

	metrics.RecordEvent(ctx, airdropEventName, map[string]interface{}{
		"recipient": base58.Encode(address),
		"lamports":  lamports,
		"signature": sig.String(),
	})
	return sig, nil
}

// SubmitTransaction processes tx. Transactions that are rejected before
// execution return a *solana.TransactionError and have no effect. Transactions
// that fail during execution are charged a fee and return a
// *TransactionFailedError.
func (l *Ledger) SubmitTransaction(ctx context.Context, tx solana.Transaction) (solana.Signature, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "SubmitTransaction")
	defer tracer.End()

	var sig solana.Signature
	if len(tx.Signatures) > 0 {
		sig = tx.Signatures[0]
	}

	log := l.log.WithFields(logrus.Fields{
		"method":    "SubmitTransaction",
		"signature": sig.String(),
	})

	err := l.submit(ctx, &tx)
	tracer.OnError(err)

	var failed *TransactionFailedError
	switch {
	case err == nil:
		metrics.RecordCount(ctx, transactionsProcessedMetricName, 1)
		log.Trace("transaction processed")
	case errors.As(err, &failed):
		metrics.RecordCount(ctx, transactionsProcessedMetricName, 1)
		metrics.RecordCount(ctx, transactionsFailedMetricName, 1)
		log.WithError(err).Debug("transaction failed")
	default:
		log.WithError(err).Debug("transaction rejected")
	}

	return sig, err
}

func (l *Ledger) submit(ctx context.Context, tx *solana.Transaction) error {
	if len(tx.Marshal()) > solana.MaxTransactionSize {
		return solana.NewTransactionError(solana.TransactionErrorTooLarge)
	}

	if txErr := sanitize(tx); txErr != nil {
		return txErr
	}

	if err := tx.Verify(); err != nil {
		return solana.NewTransactionError(solana.TransactionErrorSignatureFailure)
	}

	m := &tx.Message
	sig := tx.Signatures[0]

	if !l.blockhashes.isValid(m.RecentBlockhash) {
		return solana.NewTransactionError(solana.TransactionErrorBlockhashNotFound)
	}

	if l.statuses.isProcessed(m.RecentBlockhash, sig) {
		return solana.NewTransactionError(solana.TransactionErrorAlreadyProcessed)
	}

	for _, ix := range m.Instructions {
		if _, ok := l.programs[base58.Encode(m.Accounts[ix.ProgramIndex])]; !ok {
			return solana.NewTransactionError(solana.TransactionErrorProgramAccountNotFound)
		}
	}

	addresses := make([]string, len(m.Accounts))
	var writable, readonly [][]byte
	for i, account := range m.Accounts {
		addresses[i] = base58.Encode(account)
		if m.IsWritable(i) {
			writable = append(writable, account)
		} else {
			readonly = append(readonly, account)
		}
	}

	unlock := l.locks.LockKeys(writable, readonly)
	defer unlock()

	// A duplicate may have been processed while waiting on the locks.
	if l.statuses.isProcessed(m.RecentBlockhash, sig) {
		return solana.NewTransactionError(solana.TransactionErrorAlreadyProcessed)
	}

	loaded, err := l.store.GetBatch(ctx, addresses...)
	if err != nil {
		return errors.Wrap(err, "failed to load accounts")
	}

	originals := make([]*accounts.Record, len(addresses))
	for i, address := range addresses {
		record, ok := loaded[address]
		if !ok {
			record = accounts.NewEmptyRecord(address, systemProgramAddress)
		}
		originals[i] = record
	}

	payer := originals[0]
	fee := l.conf.lamportsPerSignature.Get(ctx) * uint64(len(tx.Signatures))
	if payer.IsEmpty() {
		return solana.NewTransactionError(solana.TransactionErrorAccountNotFound)
	}
	if payer.Owner != systemProgramAddress || len(payer.Data) > 0 {
		return solana.NewTransactionError(solana.TransactionErrorInvalidAccountForFee)
	}
	if payer.Lamports < fee {
		return solana.NewTransactionError(solana.TransactionErrorInsufficientFundsForFee)
	}

	slot, _ := l.blockhashes.current()
	now := l.clock.Now()

	exec := &execution{
		programs: l.programs,
		accounts: make(map[string]*Account, len(addresses)),
		clock: ClockSysvar{
			Slot:          slot,
			UnixTimestamp: now.Unix(),
		},
	}
	for i, record := range originals {
		account, err := toAccount(record)
		if err != nil {
			return errors.Wrapf(err, "invalid account %s", addresses[i])
		}
		exec.accounts[addresses[i]] = account
	}
	exec.accounts[addresses[0]].Lamports -= fee

	start := time.Now()
	failedIndex, execErr := l.execute(exec, m, addresses)
	metrics.RecordDuration(ctx, executionDurationMetricName, time.Since(start))

	var txErr *solana.TransactionError
	if execErr != nil {
		txErr, err = solana.TransactionErrorFromInstructionError(
			solana.NewInstructionError(failedIndex, toInstructionError(execErr)),
		)
		if err != nil {
			return errors.Wrap(err, "failed to encode instruction error")
		}
	} else {
		txErr = checkRent(m, originals, exec.accounts, addresses)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	var changes []*accounts.Record
	if txErr == nil {
		for i, original := range originals {
			updated := toRecord(original, exec.accounts[addresses[i]], slot)
			if updated.HasChanged(original) {
				changes = append(changes, updated)
			}
		}
	} else if fee > 0 {
		charged := payer.Clone()
		charged.Lamports -= fee
		charged.Slot = slot
		changes = append(changes, charged)
	}

	if len(changes) > 0 {
		err := l.store.Commit(ctx, changes...)
		if err == accounts.ErrStaleAccountState {
			return solana.NewTransactionError(solana.TransactionErrorAccountInUse)
		} else if err != nil {
			return errors.Wrap(err, "failed to commit accounts")
		}
	}

	status := &Status{
		Signature: sig,
		Slot:      slot,
		Blockhash: m.RecentBlockhash,
		Fee:       fee,
		Err:       txErr,
		Logs:      exec.logs,
	}
	l.statuses.insert(status)

	if txErr != nil {
		return &TransactionFailedError{
			Status: status,
			txErr:  txErr,
			cause:  execErr,
		}
	}
	return nil
}

// execute runs each instruction in order, stopping at the first failure.
func (l *Ledger) execute(exec *execution, m *solana.Message, addresses []string) (int, error) {
	for i, ix := range m.Instructions {
		program := l.programs[addresses[ix.ProgramIndex]]

		infos := make([]*AccountInfo, len(ix.Accounts))
		for j, index := range ix.Accounts {
			infos[j] = &AccountInfo{
				Account:    exec.accounts[addresses[index]],
				IsSigner:   m.IsSigner(int(index)),
				IsWritable: m.IsWritable(int(index)),
			}
		}

		if err := exec.invoke(program, infos, ix.Data, 1); err != nil {
			return i, err
		}
	}
	return 0, nil
}

// sanitize checks the transaction is well formed.
func sanitize(tx *solana.Transaction) *solana.TransactionError {
	m := &tx.Message

	if len(tx.Signatures) == 0 || m.Header.NumSignatures == 0 {
		return solana.NewTransactionError(solana.TransactionErrorSanitizeFailure)
	}
	if int(m.Header.NumSignatures) > len(m.Accounts) {
		return solana.NewTransactionError(solana.TransactionErrorSanitizeFailure)
	}
	if m.Header.NumReadonlySigned >= m.Header.NumSignatures {
		return solana.NewTransactionError(solana.TransactionErrorSanitizeFailure)
	}
	if int(m.Header.NumSignatures)+int(m.Header.NumReadOnly) > len(m.Accounts) {
		return solana.NewTransactionError(solana.TransactionErrorSanitizeFailure)
	}

	seen := make(map[string]struct{}, len(m.Accounts))
	for _, account := range m.Accounts {
		if len(account) != ed25519.PublicKeySize {
			return solana.NewTransactionError(solana.TransactionErrorSanitizeFailure)
		}

		key := string(account)
		if _, ok := seen[key]; ok {
			return solana.NewTransactionError(solana.TransactionErrorAccountLoadedTwice)
		}
		seen[key] = struct{}{}
	}

	for _, ix := range m.Instructions {
		// The fee payer can't be invoked as a program.
		if ix.ProgramIndex == 0 || int(ix.ProgramIndex) >= len(m.Accounts) {
			return solana.NewTransactionError(solana.TransactionErrorInvalidAccountIndex)
		}
		for _, index := range ix.Accounts {
			if int(index) >= len(m.Accounts) {
				return solana.NewTransactionError(solana.TransactionErrorInvalidAccountIndex)
			}
		}
	}

	return nil
}

// checkRent rejects transactions that leave a writable account funded below
// the rent exempt minimum for its size.
func checkRent(m *solana.Message, originals []*accounts.Record, post map[string]*Account, addresses []string) *solana.TransactionError {
	for i, original := range originals {
		if !m.IsWritable(i) {
			continue
		}

		account := post[addresses[i]]
		if account.Lamports == original.Lamports || account.Lamports == 0 {
			continue
		}

		if !system.IsRentExempt(account.Lamports, uint64(len(account.Data))) {
			return solana.NewInsufficientFundsForRentError(i)
		}
	}
	return nil
}

func toAccount(record *accounts.Record) (*Account, error) {
	address, err := base58.Decode(record.Address)
	if err != nil {
		return nil, err
	}

	owner, err := base58.Decode(record.Owner)
	if err != nil {
		return nil, err
	}

	data := make([]byte, len(record.Data))
	copy(data, record.Data)

	return &Account{
		Address:    address,
		Lamports:   record.Lamports,
		Owner:      owner,
		Data:       data,
		Executable: record.Executable,
	}, nil
}

func toRecord(original *accounts.Record, account *Account, slot uint64) *accounts.Record {
	updated := original.Clone()
	updated.Lamports = account.Lamports
	updated.Owner = base58.Encode(account.Owner)
	updated.Data = account.Data
	updated.Executable = account.Executable
	updated.Slot = slot

	// Deallocated accounts don't keep their data or owner.
	if updated.IsEmpty() {
		updated.Owner = systemProgramAddress
		updated.Data = nil
	}
	return updated
}

func genesisBlockhash(now time.Time) solana.Blockhash {
	var seed [8]byte
	binary.LittleEndian.PutUint64(seed[:], uint64(now.UnixNano()))
	return sha256.Sum256(seed[:])
}
