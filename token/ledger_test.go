package token

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrDelphi/NoLossLottery/data"
)

func balance(t *testing.T, l *Ledger, holder string) uint64 {
	b, err := l.BalanceOf(context.Background(), holder)
	require.NoError(t, err)
	return b.Uint64()
}

func TestLedgerMintAndBurn(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(data.Token{Ticker: "TICKET"}, "engine")

	require.NoError(t, l.Mint(ctx, "engine", "alice", uint256.NewInt(5)))
	assert.Equal(t, uint64(5), balance(t, l, "alice"))
	assert.Equal(t, uint64(5), l.TotalSupply().Uint64())

	err := l.Mint(ctx, "alice", "alice", uint256.NewInt(1))
	assert.True(t, errors.Is(err, ErrNotController))

	err = l.Burn(ctx, "engine", "alice", uint256.NewInt(6))
	assert.True(t, errors.Is(err, ErrInsufficientBalance))

	require.NoError(t, l.Burn(ctx, "engine", "alice", uint256.NewInt(2)))
	assert.Equal(t, uint64(3), balance(t, l, "alice"))
	assert.Equal(t, uint64(3), l.TotalSupply().Uint64())
}

func TestLedgerTransferFrom(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(data.Token{Ticker: "USDC"}, "minter")
	require.NoError(t, l.Mint(ctx, "minter", "alice", uint256.NewInt(100)))

	err := l.TransferFrom(ctx, "engine", "alice", "engine", uint256.NewInt(10))
	assert.True(t, errors.Is(err, ErrInsufficientAllowance))

	require.NoError(t, l.Approve(ctx, "alice", "engine", uint256.NewInt(15)))
	require.NoError(t, l.TransferFrom(ctx, "engine", "alice", "engine", uint256.NewInt(10)))
	assert.Equal(t, uint64(90), balance(t, l, "alice"))
	assert.Equal(t, uint64(10), balance(t, l, "engine"))

	left, err := l.Allowance(ctx, "alice", "engine")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), left.Uint64())

	require.NoError(t, l.TransferFrom(ctx, "bob", "carol", "bob", new(uint256.Int)))

	err = l.Transfer(ctx, "engine", "", uint256.NewInt(1))
	assert.Equal(t, ErrZeroAddress, err)

	err = l.Transfer(ctx, "engine", "bob", uint256.NewInt(11))
	assert.True(t, errors.Is(err, ErrInsufficientBalance))

	require.NoError(t, l.Transfer(ctx, "engine", "engine", uint256.NewInt(10)))
	assert.Equal(t, uint64(10), balance(t, l, "engine"))
}

func TestLedgerStateRestore(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(data.Token{Ticker: "USDC"}, "minter")
	require.NoError(t, l.Mint(ctx, "minter", "alice", uint256.NewInt(42)))
	require.NoError(t, l.Approve(ctx, "alice", "engine", uint256.NewInt(7)))

	raw, err := json.Marshal(l.State())
	require.NoError(t, err)

	var st LedgerState
	require.NoError(t, json.Unmarshal(raw, &st))

	restored := NewLedger(data.Token{Ticker: "USDC"}, "minter")
	require.NoError(t, restored.Restore(&st))
	assert.Equal(t, uint64(42), balance(t, restored, "alice"))
	allowed, err := restored.Allowance(ctx, "alice", "engine")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), allowed.Uint64())

	st.TotalSupply = uint256.NewInt(1)
	assert.True(t, errors.Is(restored.Restore(&st), ErrCorruptState))
}
