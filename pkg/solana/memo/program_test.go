package memo

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstruction(t *testing.T) {
	i := Instruction("hello, world!")
	assert.Equal(t, ProgramKey, i.Program)
	assert.Empty(t, i.Accounts)
	assert.Equal(t, "hello, world!", string(i.Data))

	signer, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	i = Instruction("signed", signer)
	require.Len(t, i.Accounts, 1)
	assert.True(t, i.Accounts[0].IsSigner)
	assert.False(t, i.Accounts[0].IsWritable)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate([]byte("airdrop 7d3c")))
	assert.Equal(t, ErrInvalidMemo, Validate([]byte{0xff, 0xfe}))
}
