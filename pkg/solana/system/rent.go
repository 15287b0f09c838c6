package system

const (
	// AccountStorageOverhead is the number of bytes charged for an account
	// in addition to its data.
	//
	// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/rent.rs#L43
	AccountStorageOverhead = 128

	// DefaultLamportsPerByteYear is the default rent rate.
	DefaultLamportsPerByteYear = 3480

	// DefaultExemptionThreshold is the number of years of rent an account must
	// hold to be exempt.
	DefaultExemptionThreshold = 2
)

// MinimumBalanceForRentExemption returns the lamports an account of size
// bytes must hold to be rent exempt under the default rent parameters.
func MinimumBalanceForRentExemption(size uint64) uint64 {
	return (AccountStorageOverhead + size) * DefaultLamportsPerByteYear * DefaultExemptionThreshold
}

// IsRentExempt reports whether an account holding lamports with size bytes of
// data is rent exempt.
func IsRentExempt(lamports, size uint64) bool {
	return lamports >= MinimumBalanceForRentExemption(size)
}
