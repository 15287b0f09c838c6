package ledger

import (
	"crypto/ed25519"

	"github.com/code-payments/sol-trust/pkg/solana"
	"github.com/code-payments/sol-trust/pkg/solana/memo"
)

type memoProgram struct{}

// NewMemoProgram returns the native memo program. Memos must be valid utf8,
// and every account passed to the instruction must sign.
func NewMemoProgram() Program {
	return memoProgram{}
}

func (memoProgram) Id() ed25519.PublicKey {
	return memo.ProgramKey
}

func (memoProgram) Process(ic *InvokeContext, data []byte) error {
	for _, account := range ic.Accounts() {
		if !account.IsSigner {
			ic.Log("Missing required signature for %s", account)
			return solana.InstructionErrorMissingRequiredSignature
		}
	}

	if err := memo.Validate(data); err != nil {
		ic.Log("Invalid UTF-8")
		return solana.InstructionErrorInvalidInstructionData
	}

	ic.Log("Memo (len %d): %q", len(data), string(data))
	return nil
}
