package solana

import (
	"crypto/ed25519"
	"crypto/sha256"
	"math"

	"github.com/jdgcs/ed25519/edwards25519"
	"github.com/pkg/errors"
)

const (
	maxSeeds      = 16
	maxSeedLength = 32

	programDerivedAddressMarker = "ProgramDerivedAddress"
)

var (
	ErrTooManySeeds          = errors.New("too many seeds")
	ErrMaxSeedLengthExceeded = errors.New("max seed length exceeded")

	ErrInvalidPublicKey = errors.New("invalid public key")

	ErrAddressDerivationFailure = errors.New("unable to find a viable program address bump seed")
)

// Overridden in tests to force on-curve results.
var programHashCtor = sha256.New

// CreateProgramAddress derives the address sha256(seeds || program ||
// "ProgramDerivedAddress"). A program derived address must lie off the
// ed25519 curve so that no private key exists for it, so ErrInvalidPublicKey
// is returned when the hash happens to be a valid point.
//
// Reference: https://github.com/solana-labs/solana/blob/5548e599fe4920b71766e0ad1d121755ce9c63d5/sdk/program/src/pubkey.rs#L158
func CreateProgramAddress(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, error) {
	if len(seeds) > maxSeeds {
		return nil, ErrTooManySeeds
	}
	for _, s := range seeds {
		if len(s) > maxSeedLength {
			return nil, ErrMaxSeedLengthExceeded
		}
	}

	h := programHashCtor()
	for _, s := range seeds {
		h.Write(s)
	}
	h.Write(program)
	h.Write([]byte(programDerivedAddressMarker))

	address := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(address, h.Sum(nil))

	if IsOnCurve(address) {
		return nil, ErrInvalidPublicKey
	}
	return address, nil
}

// IsOnCurve reports whether key is a valid compressed ed25519 point.
//
// The standard library keeps its point decoding internal, so decoding goes
// through the edwards25519 package that ed25519.Verify was built on.
func IsOnCurve(key []byte) bool {
	if len(key) != ed25519.PublicKeySize {
		return false
	}

	var compressed [ed25519.PublicKeySize]byte
	copy(compressed[:], key)

	var point edwards25519.ExtendedGroupElement
	return point.FromBytes(&compressed)
}

// FindProgramAddressAndBump searches bump seeds from 255 downwards, returning
// the first address that lies off the curve along with its bump.
//
// Reference: https://github.com/solana-labs/solana/blob/5548e599fe4920b71766e0ad1d121755ce9c63d5/sdk/program/src/pubkey.rs#L234
func FindProgramAddressAndBump(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, uint8, error) {
	bump := []byte{math.MaxUint8}
	withBump := append(seeds[:len(seeds):len(seeds)], bump)

	for ; bump[0] > 0; bump[0]-- {
		address, err := CreateProgramAddress(program, withBump...)
		switch err {
		case nil:
			return address, bump[0], nil
		case ErrInvalidPublicKey:
		default:
			return nil, 0, err
		}
	}

	return nil, 0, ErrAddressDerivationFailure
}

// FindProgramAddress is FindProgramAddressAndBump without the bump.
func FindProgramAddress(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, error) {
	address, _, err := FindProgramAddressAndBump(program, seeds...)
	return address, err
}
