package node

import (
	"context"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrDelphi/NoLossLottery/config"
	"github.com/DrDelphi/NoLossLottery/data"
	"github.com/DrDelphi/NoLossLottery/store"
	"github.com/DrDelphi/NoLossLottery/utils"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func testConfig() *data.AppConfig {
	cfg := config.Default(testMnemonic)
	cfg.Engine.PlayIntervalSeconds = 60
	cfg.Engine.WithdrawIntervalSeconds = 60
	cfg.Venue.Reserve = "1000000000"

	return cfg
}

// start runs the engine of n until the returned stop is called
func start(t *testing.T, n *Node) func() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- n.engine.Run(ctx)
	}()

	return func() {
		cancel()
		require.NoError(t, <-done)
	}
}

func player(t *testing.T, index int64) string {
	sk, err := utils.GetPrivateKeyFromSeed(testMnemonic, index)
	require.NoError(t, err)
	addr, err := utils.GetAddressFromPrivateKey(sk)
	require.NoError(t, err)

	return addr
}

func TestDeriveAccounts(t *testing.T) {
	acc, err := DeriveAccounts(testMnemonic)
	require.NoError(t, err)
	seen := map[string]bool{acc.Admin: true, acc.Engine: true, acc.Venue: true, acc.Coordinator: true}
	assert.Len(t, seen, 4)

	_, err = DeriveAccounts("not a mnemonic")
	assert.Error(t, err)
}

func TestBootstrapFundsReserveOnce(t *testing.T) {
	db, err := store.OpenMem()
	require.NoError(t, err)
	defer db.Close()
	clock := utils.NewManualClock(time.Unix(1700000000, 0))

	n, err := New(testConfig(), db, clock)
	require.NoError(t, err)
	reserve, err := n.stablecoin.BalanceOf(context.Background(), n.accounts.Venue)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000000000), reserve.Uint64())

	again, err := New(testConfig(), db, clock)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000000000), again.stablecoin.TotalSupply().Uint64())
}

func TestRoundSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	db, err := store.OpenMem()
	require.NoError(t, err)
	defer db.Close()
	clock := utils.NewManualClock(time.Unix(1700000000, 0))

	n, err := New(testConfig(), db, clock)
	require.NoError(t, err)
	stop := start(t, n)

	tokens := n.Tokens()
	fee, err := utils.ParseBaseUnits(n.cfg.Engine.EntryFee)
	require.NoError(t, err)
	players := []string{player(t, 10), player(t, 11)}
	for _, p := range players {
		require.NoError(t, tokens.Mint(ctx, utils.StablecoinTicker, p, uint256.NewInt(100000000)))
		require.NoError(t, tokens.Mint(ctx, utils.NativeTicker, p, fee))
		require.NoError(t, tokens.Approve(ctx, utils.StablecoinTicker, p, n.accounts.Engine, uint256.NewInt(100000000)))
		require.NoError(t, tokens.Approve(ctx, utils.NativeTicker, p, n.accounts.Engine, fee))
		require.NoError(t, n.engine.Enter(ctx, p, fee))
	}
	assert.Error(t, tokens.Mint(ctx, utils.TicketTicker, players[0], uint256.NewInt(1)))

	clock.Advance(61 * time.Second)
	assert.Equal(t, []data.PathID{data.PathLock}, n.keeper.Tick(ctx))

	info, err := n.engine.Info(ctx)
	require.NoError(t, err)
	require.Equal(t, data.LockingForRandomness, info.State)
	require.NotNil(t, info.PendingRequestID)
	requestID := *info.PendingRequestID

	clock.Advance(time.Duration(n.cfg.Randomness.Confirmations*6) * time.Second)
	assert.Equal(t, 1, n.coord.FulfillReady(ctx))

	info, err = n.engine.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, data.OpenToWithdraw, info.State)
	winners, err := n.engine.Winners(ctx)
	require.NoError(t, err)
	require.Len(t, winners, 1)
	assert.Contains(t, players, winners[0].Address)

	proof, ok := n.coord.Proof(requestID)
	require.True(t, ok)
	assert.True(t, proof.Delivered)
	balances := make(map[string]uint64)
	for _, p := range players {
		b, err := n.stablecoin.BalanceOf(ctx, p)
		require.NoError(t, err)
		balances[p] = b.Uint64()
	}
	stop()

	restarted, err := New(testConfig(), db, clock)
	require.NoError(t, err)
	stop = start(t, restarted)
	defer stop()

	again, err := restarted.engine.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, data.OpenToWithdraw, again.State)
	assert.Equal(t, uint64(2), again.TotalTickets)
	for _, p := range players {
		b, err := restarted.stablecoin.BalanceOf(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, balances[p], b.Uint64())
		tickets, err := restarted.engine.Tickets(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), tickets.Tickets)
	}

	stored, err := StoredWinners(db)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, winners[0].Address, stored[0].Address)
}
