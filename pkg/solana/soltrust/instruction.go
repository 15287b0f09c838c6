package soltrust

import (
	"bytes"

	"github.com/code-payments/sol-trust/pkg/solana/binary"
)

type InstructionType uint8

const (
	InstructionTypeUnknown InstructionType = iota
	InstructionTypeInitialize
	InstructionTypeDeposit
	InstructionTypeMatureClose
	InstructionTypePrematureClose
)

func (t InstructionType) String() string {
	switch t {
	case InstructionTypeInitialize:
		return "initialize"
	case InstructionTypeDeposit:
		return "deposit"
	case InstructionTypeMatureClose:
		return "mature_close"
	case InstructionTypePrematureClose:
		return "premature_close"
	}
	return "unknown"
}

// InstructionData is a decoded vault program instruction. Only the argument
// belonging to Type is populated.
type InstructionData struct {
	Type         InstructionType
	LockDuration int64
	Amount       uint64
}

// UnmarshalInstructionData decodes the discriminator and arguments of a vault
// program instruction.
func UnmarshalInstructionData(data []byte) (*InstructionData, error) {
	if len(data) < 8 {
		return nil, ErrInvalidInstructionData
	}

	offset := 8
	discriminator := data[:8]
	args := data[offset:]

	switch {
	case bytes.Equal(discriminator, initializeInstructionDiscriminator):
		if len(args) != InitializeInstructionArgsSize {
			return nil, ErrInvalidInstructionData
		}
		v := &InstructionData{Type: InstructionTypeInitialize}
		binary.GetInt64(args, &v.LockDuration, &offset)
		return v, nil
	case bytes.Equal(discriminator, depositInstructionDiscriminator):
		if len(args) != DepositInstructionArgsSize {
			return nil, ErrInvalidInstructionData
		}
		v := &InstructionData{Type: InstructionTypeDeposit}
		binary.GetUint64(args, &v.Amount, &offset)
		return v, nil
	case bytes.Equal(discriminator, matureCloseInstructionDiscriminator):
		if len(args) != 0 {
			return nil, ErrInvalidInstructionData
		}
		return &InstructionData{Type: InstructionTypeMatureClose}, nil
	case bytes.Equal(discriminator, prematureCloseInstructionDiscriminator):
		if len(args) != 0 {
			return nil, ErrInvalidInstructionData
		}
		return &InstructionData{Type: InstructionTypePrematureClose}, nil
	}

	return nil, ErrInvalidInstructionData
}
