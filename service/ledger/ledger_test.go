package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClient_TransferIsIdempotentOnMemo(t *testing.T) {
	c := NewMemoryClient()
	ctx := context.Background()
	var memo [32]byte
	memo[0] = 1

	ok, dup, err := c.Transfer(ctx, "principal-1", 100, memo)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, dup)

	ok, dup, err = c.Transfer(ctx, "principal-1", 100, memo)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, dup)

	assert.Equal(t, uint64(100), c.Balance("principal-1"))
}

func TestMemoryClient_BurnDebitsBalance(t *testing.T) {
	c := NewMemoryClient()
	ctx := context.Background()
	var memo [32]byte

	_, _, err := c.Transfer(ctx, "principal-1", 500, memo)
	require.NoError(t, err)

	blk, err := c.Burn(ctx, "principal-1", 200, memo)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), blk)
	assert.Equal(t, uint64(300), c.Balance("principal-1"))
}

func TestMemoryClient_BurnInsufficientBalance(t *testing.T) {
	c := NewMemoryClient()
	_, err := c.Burn(context.Background(), "principal-1", 1, [32]byte{})
	assert.Error(t, err)
}

func TestMemoryClient_TransferErrorInjection(t *testing.T) {
	c := NewMemoryClient()
	c.SetTransferError(&TransientError{Err: assertErr})

	_, _, err := c.Transfer(context.Background(), "p", 1, [32]byte{})
	assert.Error(t, err)
}

var assertErr = assertError("injected")

type assertError string

func (e assertError) Error() string { return string(e) }
