package rpc

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"

	"github.com/mr-tron/base58"

	"github.com/code-payments/sol-trust/pkg/ledger"
	"github.com/code-payments/sol-trust/pkg/ledger/accounts"
	"github.com/code-payments/sol-trust/pkg/solana"
	"github.com/code-payments/sol-trust/pkg/solana/system"
)

const (
	encodingBase58 = "base58"
	encodingBase64 = "base64"

	// Single node ledger: everything processed is final.
	confirmationStatusFinalized = "finalized"
)

type accountConfig struct {
	Encoding   string `json:"encoding"`
	Commitment string `json:"commitment"`
}

type memcmpFilter struct {
	Offset uint   `json:"offset"`
	Bytes  string `json:"bytes"`
}

type programAccountsFilter struct {
	Memcmp   *memcmpFilter `json:"memcmp"`
	DataSize *uint64       `json:"dataSize"`
}

type programAccountsConfig struct {
	Encoding    string                  `json:"encoding"`
	Commitment  string                  `json:"commitment"`
	Filters     []programAccountsFilter `json:"filters"`
	WithContext bool                    `json:"withContext"`
}

type sendTransactionConfig struct {
	Encoding            string `json:"encoding"`
	SkipPreflight       bool   `json:"skipPreflight"`
	PreflightCommitment string `json:"preflightCommitment"`
}

type rpcAccount struct {
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Data       []string `json:"data"`
	Executable bool     `json:"executable"`
	RentEpoch  uint64   `json:"rentEpoch"`
	Space      int      `json:"space"`
}

type rpcProgramAccount struct {
	Pubkey  string     `json:"pubkey"`
	Account rpcAccount `json:"account"`
}

type rpcBlockhash struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

type rpcSignatureStatus struct {
	Slot               uint64      `json:"slot"`
	Confirmations      *int        `json:"confirmations"`
	ConfirmationStatus string      `json:"confirmationStatus"`
	Err                interface{} `json:"err"`
}

func (s *Server) context() rpcContext {
	return rpcContext{Slot: s.ledger.GetSlot()}
}

func (s *Server) getAccountInfo(ctx context.Context, p params) (interface{}, *Error) {
	address, rpcErr := decodePublicKey(p, 0)
	if rpcErr != nil {
		return nil, rpcErr
	}

	var config accountConfig
	if _, rpcErr := p.decode(1, &config); rpcErr != nil {
		return nil, rpcErr
	}

	record, err := s.ledger.GetAccount(ctx, address)
	if err == accounts.ErrAccountNotFound {
		return &contextResult{Context: s.context(), Value: nil}, nil
	} else if err != nil {
		return nil, s.internalError(err)
	}

	account, rpcErr := toRPCAccount(record, config.Encoding)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return &contextResult{Context: s.context(), Value: account}, nil
}

func (s *Server) getBalance(ctx context.Context, p params) (interface{}, *Error) {
	address, rpcErr := decodePublicKey(p, 0)
	if rpcErr != nil {
		return nil, rpcErr
	}

	balance, err := s.ledger.GetBalance(ctx, address)
	if err != nil {
		return nil, s.internalError(err)
	}
	return &contextResult{Context: s.context(), Value: balance}, nil
}

func (s *Server) getHealth(_ context.Context, _ params) (interface{}, *Error) {
	return "ok", nil
}

func (s *Server) getLatestBlockhash(_ context.Context, _ params) (interface{}, *Error) {
	bh, lastValid := s.ledger.GetLatestBlockhash()
	return &contextResult{
		Context: s.context(),
		Value: &rpcBlockhash{
			Blockhash:            base58.Encode(bh[:]),
			LastValidBlockHeight: lastValid,
		},
	}, nil
}

func (s *Server) isBlockhashValid(_ context.Context, p params) (interface{}, *Error) {
	var encoded string
	if rpcErr := p.require(0, &encoded); rpcErr != nil {
		return nil, rpcErr
	}

	decoded, err := base58.Decode(encoded)
	if err != nil || len(decoded) != len(solana.Blockhash{}) {
		return nil, invalidParams("Invalid param: invalid blockhash")
	}

	var bh solana.Blockhash
	copy(bh[:], decoded)
	return &contextResult{Context: s.context(), Value: s.ledger.IsBlockhashValid(bh)}, nil
}

func (s *Server) getMinimumBalanceForRentExemption(_ context.Context, p params) (interface{}, *Error) {
	var size uint64
	if rpcErr := p.require(0, &size); rpcErr != nil {
		return nil, rpcErr
	}
	if size > system.MaxPermittedDataLen {
		return nil, invalidParams("Invalid param: data size %d exceeds %d", size, system.MaxPermittedDataLen)
	}
	return system.MinimumBalanceForRentExemption(size), nil
}

func (s *Server) getSlot(_ context.Context, _ params) (interface{}, *Error) {
	return s.ledger.GetSlot(), nil
}

func (s *Server) getProgramAccounts(ctx context.Context, p params) (interface{}, *Error) {
	program, rpcErr := decodePublicKey(p, 0)
	if rpcErr != nil {
		return nil, rpcErr
	}

	var config programAccountsConfig
	if _, rpcErr := p.decode(1, &config); rpcErr != nil {
		return nil, rpcErr
	}

	type memcmp struct {
		offset uint
		bytes  []byte
	}
	var memcmps []memcmp
	var dataSizes []uint64
	for _, filter := range config.Filters {
		switch {
		case filter.Memcmp != nil:
			decoded, err := base58.Decode(filter.Memcmp.Bytes)
			if err != nil {
				return nil, invalidParams("Invalid param: memcmp bytes are not base58")
			}
			memcmps = append(memcmps, memcmp{offset: filter.Memcmp.Offset, bytes: decoded})
		case filter.DataSize != nil:
			dataSizes = append(dataSizes, *filter.DataSize)
		default:
			return nil, invalidParams("Invalid param: unsupported filter")
		}
	}

	records, err := s.ledger.GetProgramAccounts(ctx, program)
	if err != nil {
		return nil, s.internalError(err)
	}

	matches := func(record *accounts.Record) bool {
		for _, size := range dataSizes {
			if uint64(len(record.Data)) != size {
				return false
			}
		}
		for _, filter := range memcmps {
			end := filter.offset + uint(len(filter.bytes))
			if end > uint(len(record.Data)) || !bytes.Equal(record.Data[filter.offset:end], filter.bytes) {
				return false
			}
		}
		return true
	}

	result := make([]*rpcProgramAccount, 0, len(records))
	for _, record := range records {
		if !matches(record) {
			continue
		}

		account, rpcErr := toRPCAccount(record, config.Encoding)
		if rpcErr != nil {
			return nil, rpcErr
		}
		result = append(result, &rpcProgramAccount{
			Pubkey:  record.Address,
			Account: *account,
		})
	}

	if config.WithContext {
		return &contextResult{Context: s.context(), Value: result}, nil
	}
	return result, nil
}

func (s *Server) getSignatureStatuses(_ context.Context, p params) (interface{}, *Error) {
	var encoded []string
	if rpcErr := p.require(0, &encoded); rpcErr != nil {
		return nil, rpcErr
	}
	if len(encoded) > 256 {
		return nil, invalidParams("Invalid param: too many signatures")
	}

	sigs := make([]solana.Signature, len(encoded))
	for i, value := range encoded {
		decoded, err := base58.Decode(value)
		if err != nil || len(decoded) != len(solana.Signature{}) {
			return nil, invalidParams("Invalid param: invalid signature %q", value)
		}
		copy(sigs[i][:], decoded)
	}

	statuses := s.ledger.GetSignatureStatuses(sigs...)

	value := make([]*rpcSignatureStatus, len(statuses))
	for i, status := range statuses {
		if status == nil {
			continue
		}

		value[i] = &rpcSignatureStatus{
			Slot:               status.Slot,
			ConfirmationStatus: confirmationStatusFinalized,
		}
		if status.Err != nil {
			value[i].Err = status.Err.Raw()
		}
	}

	return &contextResult{Context: s.context(), Value: value}, nil
}

func (s *Server) requestAirdrop(ctx context.Context, p params) (interface{}, *Error) {
	address, rpcErr := decodePublicKey(p, 0)
	if rpcErr != nil {
		return nil, rpcErr
	}

	var lamports uint64
	if rpcErr := p.require(1, &lamports); rpcErr != nil {
		return nil, rpcErr
	}

	max := s.conf.maxAirdropLamports.Get(ctx)
	if lamports == 0 || lamports > max {
		return nil, invalidParams("Invalid param: airdrop amount must be between 1 and %d lamports", max)
	}

	allowed, err := s.airdropLimiter.Allow(remoteAddrFromContext(ctx))
	if err != nil {
		return nil, s.internalError(err)
	}
	if !allowed {
		return nil, newError(rateLimitedCode, "airdrop request limit reached")
	}

	sig, err := s.ledger.RequestAirdrop(ctx, address, lamports)
	if err != nil {
		if rpcErr := transactionFailure(err); rpcErr != nil {
			return nil, rpcErr
		}
		return nil, s.internalError(err)
	}
	return base58.Encode(sig[:]), nil
}

func (s *Server) sendTransaction(ctx context.Context, p params) (interface{}, *Error) {
	var encoded string
	if rpcErr := p.require(0, &encoded); rpcErr != nil {
		return nil, rpcErr
	}

	config := sendTransactionConfig{Encoding: encodingBase58}
	if _, rpcErr := p.decode(1, &config); rpcErr != nil {
		return nil, rpcErr
	}

	var raw []byte
	var err error
	switch config.Encoding {
	case "", encodingBase58:
		raw, err = base58.Decode(encoded)
	case encodingBase64:
		raw, err = base64.StdEncoding.DecodeString(encoded)
	default:
		return nil, invalidParams("Invalid param: unsupported encoding %q", config.Encoding)
	}
	if err != nil {
		return nil, invalidParams("Invalid param: failed to decode transaction: %v", err)
	}
	if len(raw) > solana.MaxTransactionSize {
		return nil, invalidParams("Invalid param: transaction too large: %d bytes", len(raw))
	}

	var tx solana.Transaction
	if err := tx.Unmarshal(raw); err != nil {
		return nil, invalidParams("Invalid param: failed to deserialize transaction: %v", err)
	}

	sig, err := s.ledger.SubmitTransaction(ctx, tx)
	if err != nil {
		if rpcErr := transactionFailure(err); rpcErr != nil {
			return nil, rpcErr
		}
		return nil, s.internalError(err)
	}
	return base58.Encode(sig[:]), nil
}

// transactionFailure converts transaction errors into the error returned by
// Solana nodes when preflight fails, or nil for other errors.
func transactionFailure(err error) *Error {
	var failed *ledger.TransactionFailedError
	if errors.As(err, &failed) {
		rpcErr := newError(sendTransactionFailureCode, "Transaction simulation failed: %v", failed.TransactionError())
		rpcErr.Data = &transactionFailureData{
			Err:  failed.TransactionError().Raw(),
			Logs: failed.Status.Logs,
		}
		return rpcErr
	}

	var txErr *solana.TransactionError
	if errors.As(err, &txErr) {
		rpcErr := newError(sendTransactionFailureCode, "Transaction simulation failed: %v", txErr)
		rpcErr.Data = &transactionFailureData{
			Err:  txErr.Raw(),
			Logs: []string{},
		}
		return rpcErr
	}

	return nil
}

func (s *Server) internalError(err error) *Error {
	s.log.WithError(err).Warn("internal error")
	return newError(internalErrorCode, "Internal error")
}

func decodePublicKey(p params, index int) (ed25519.PublicKey, *Error) {
	var encoded string
	if rpcErr := p.require(index, &encoded); rpcErr != nil {
		return nil, rpcErr
	}

	decoded, err := base58.Decode(encoded)
	if err != nil || len(decoded) != ed25519.PublicKeySize {
		return nil, invalidParams("Invalid param: Invalid")
	}
	return decoded, nil
}

func toRPCAccount(record *accounts.Record, encoding string) (*rpcAccount, *Error) {
	account := &rpcAccount{
		Lamports:   record.Lamports,
		Owner:      record.Owner,
		Executable: record.Executable,
		Space:      len(record.Data),
	}

	switch encoding {
	case "", encodingBase64:
		account.Data = []string{base64.StdEncoding.EncodeToString(record.Data), encodingBase64}
	case encodingBase58:
		account.Data = []string{base58.Encode(record.Data), encodingBase58}
	default:
		return nil, invalidParams("Invalid param: unsupported encoding %q", encoding)
	}
	return account, nil
}
