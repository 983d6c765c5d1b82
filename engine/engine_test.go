package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrDelphi/NoLossLottery/data"
)

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(Config{Address: engineAddr, Admin: adminAddr, Asset: "USDC"}, Dependencies{})
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	valid := Config{
		Address:          engineAddr,
		Admin:            adminAddr,
		Asset:            "USDC",
		TicketPrice:      uint256.NewInt(10),
		TicketUnit:       ticketUnit,
		PlayInterval:     time.Hour,
		WithdrawInterval: time.Hour,
	}
	for _, fee := range []*uint256.Int{nil, new(uint256.Int)} {
		cfg := valid
		cfg.EntryFee = fee
		_, err = New(cfg, Dependencies{})
		assert.True(t, errors.Is(err, ErrInvalidConfig))
		assert.Contains(t, err.Error(), "entry fee")
	}

	_, err = PolicyByName("half")
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestEnterCountsTicketsAndMintsUnits(t *testing.T) {
	env := newTestEnv(t)
	players := []string{"alice", "bob", "alice", "carol", "alice"}
	for _, p := range []string{"alice", "bob", "carol"} {
		env.fund(p)
	}
	env.enter(players...)

	r := env.snapshot()
	assert.Equal(t, uint64(len(players)), r.TotalTickets)
	assert.Equal(t, players, r.Participants)
	assert.Equal(t, []string{"alice", "bob", "carol"}, r.Holders)
	assert.Equal(t, uint64(3), r.Tickets["alice"])
	assert.False(t, r.FirstEntrant)
	assert.Equal(t, env.clock.Now().Add(time.Hour).Unix(), r.EndOfPlayDeadline)

	assert.True(t, units(3).Eq(env.ticketUnitsOf("alice")))
	assert.True(t, units(1).Eq(env.ticketUnitsOf("bob")))

	assert.Equal(t, uint64(50), env.venueOf(engineAddr))
	assert.Equal(t, uint64(0), env.usdcOf(engineAddr))
	assert.Equal(t, uint64(5), env.egldOf(engineAddr))
	assert.Equal(t, uint64(70), env.usdcOf("alice"))

	info, err := env.engine.Tickets(env.ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), info.Tickets)
	assert.Equal(t, uint64(30), info.Principal.Uint64())

	assert.Equal(t, uint64(5), env.persister.last().TotalTickets)
}

func TestFirstEntrantSuppliesWholeBalance(t *testing.T) {
	env := newTestEnv(t)
	env.fund("alice")
	env.fund("bob")
	require.NoError(t, env.usdc.Mint(context.Background(), minterAddr, engineAddr, uint256.NewInt(7)))

	env.enter("alice")
	assert.Equal(t, uint64(17), env.venueOf(engineAddr))
	env.enter("bob")
	assert.Equal(t, uint64(27), env.venueOf(engineAddr))
	assert.Equal(t, uint64(0), env.usdcOf(engineAddr))
}

func TestEnterWrongPaymentChangesNothing(t *testing.T) {
	env := newTestEnv(t)
	env.fund("alice")
	env.enter("alice")
	env.fund("bob")
	before := env.snapshot()
	supplies := env.venue.supplies.Load()

	for _, payment := range []*uint256.Int{nil, uint256.NewInt(0), uint256.NewInt(2)} {
		err := env.engine.Enter(env.ctx, "bob", payment)
		assert.True(t, errors.Is(err, ErrInsufficientPayment))
	}

	assert.Equal(t, before, env.snapshot())
	assert.Equal(t, supplies, env.venue.supplies.Load())
	assert.Equal(t, uint64(100), env.usdcOf("bob"))
	assert.Equal(t, uint64(10), env.egldOf("bob"))
	assert.True(t, env.ticketUnitsOf("bob").IsZero())
}

func TestEnterWithoutStablecoinAllowanceRefundsFee(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.egld.Mint(ctx, minterAddr, "bob", uint256.NewInt(10)))
	require.NoError(t, env.egld.Approve(ctx, "bob", engineAddr, uint256.NewInt(10)))

	err := env.engine.Enter(env.ctx, "bob", uint256.NewInt(1))
	assert.True(t, errors.Is(err, ErrInsufficientPayment))
	assert.Equal(t, uint64(10), env.egldOf("bob"))
	assert.Equal(t, uint64(0), env.egldOf(engineAddr))
	assert.Equal(t, uint64(0), env.snapshot().TotalTickets)
}

func TestEnterVenueFailuresAreAllOrNothing(t *testing.T) {
	env := newTestEnv(t)
	env.fund("alice")

	env.stable.failApprove.Store(true)
	err := env.engine.Enter(env.ctx, "alice", uint256.NewInt(1))
	assert.True(t, errors.Is(err, ErrVenueAllowanceFailed))
	env.stable.failApprove.Store(false)

	env.venue.failSupply.Store(true)
	err = env.engine.Enter(env.ctx, "alice", uint256.NewInt(1))
	assert.True(t, errors.Is(err, ErrTransferFailed))
	env.venue.failSupply.Store(false)

	assert.Equal(t, uint64(100), env.usdcOf("alice"))
	assert.Equal(t, uint64(10), env.egldOf("alice"))
	assert.Equal(t, uint64(0), env.usdcOf(engineAddr))
	assert.Equal(t, uint64(0), env.egldOf(engineAddr))
	assert.True(t, env.ticketUnitsOf("alice").IsZero())
	r := env.snapshot()
	assert.Equal(t, uint64(0), r.TotalTickets)
	assert.True(t, r.FirstEntrant)

	env.enter("alice")
	assert.Equal(t, uint64(1), env.snapshot().TotalTickets)
}

func TestEnterOnlyWhileOpenToPlay(t *testing.T) {
	env := newTestEnv(t)
	env.fund("alice")
	env.enter("alice")
	env.lock()

	err := env.engine.Enter(env.ctx, "alice", uint256.NewInt(1))
	assert.True(t, errors.Is(err, ErrInvalidState))
}

// three players, price 10, fee 1, the venue gives back 33 and the word 7
// picks the second participant
func TestFullRoundScenario(t *testing.T) {
	env := newTestEnv(t)
	players := []string{"alice", "bob", "carol"}
	for _, p := range players {
		env.fund(p)
	}
	env.enter(players...)
	assert.Equal(t, uint64(30), env.venueOf(engineAddr))

	ready, err := env.engine.CheckTransitionReady(env.ctx, data.PathLock)
	require.NoError(t, err)
	assert.False(t, ready)

	env.addInterest(3)
	systemBefore := env.usdcOf(engineAddr) + env.usdcOf(venueAddr)

	env.clock.Advance(time.Hour + time.Second)
	ready, err = env.engine.CheckTransitionReady(env.ctx, data.PathLock)
	require.NoError(t, err)
	assert.True(t, ready)
	require.NoError(t, env.engine.TriggerTransition(env.ctx, data.PathLock))

	r := env.snapshot()
	assert.Equal(t, data.LockingForRandomness, r.State)
	assert.True(t, r.FundsLiquid)
	require.NotNil(t, r.PendingRequestID)
	assert.Equal(t, env.provider.last(), *r.PendingRequestID)
	assert.Equal(t, uint64(33), env.usdcOf(engineAddr))
	assert.Equal(t, uint64(0), env.venueOf(engineAddr))

	require.NoError(t, env.deliver(7))

	r = env.snapshot()
	assert.Equal(t, data.OpenToWithdraw, r.State)
	require.Len(t, r.Winners, 1)
	winner := r.Winners[0]
	assert.Equal(t, "bob", winner.Address)
	assert.Equal(t, uint64(3), winner.Prize.Uint64())
	assert.Equal(t, uint64(7), winner.RandomWord.Uint64())
	assert.Equal(t, uint64(3), r.LastPrize.Uint64())
	assert.Equal(t, env.clock.Now().Add(time.Hour).Unix(), r.EndOfWithdrawDeadline)
	assert.Nil(t, r.PendingRequestID)
	assert.Empty(t, r.PendingWinner)

	for _, p := range players {
		assert.Equal(t, uint64(1), r.Tickets[p])
		assert.True(t, units(1).Eq(env.ticketUnitsOf(p)))
	}
	assert.Equal(t, players, r.Participants)
	assert.Equal(t, uint64(93), env.usdcOf("bob"))

	// conservation: everything but the prize is still in the system
	systemAfter := env.usdcOf(engineAddr) + env.usdcOf(venueAddr)
	assert.Equal(t, systemBefore-winner.Prize.Uint64(), systemAfter)
	assert.Equal(t, uint64(30), env.usdcOf(engineAddr))

	winners, err := env.engine.Winners(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, r.Winners, winners)
}

func TestNoPrizeWithoutYield(t *testing.T) {
	env := newTestEnv(t)
	env.fund("alice")
	env.fund("bob")
	env.enter("alice", "bob")
	env.lock()
	require.NoError(t, env.deliver(4))

	r := env.snapshot()
	assert.Equal(t, data.OpenToWithdraw, r.State)
	assert.Equal(t, "alice", r.Winners[0].Address)
	assert.True(t, r.Winners[0].Prize.IsZero())
	assert.Equal(t, uint64(90), env.usdcOf("alice"))
}

func TestWithdrawRules(t *testing.T) {
	env := newTestEnv(t)
	env.fund("alice")
	env.fund("bob")
	env.enter("alice", "bob", "alice")

	_, err := env.engine.Withdraw(env.ctx, "alice")
	assert.True(t, errors.Is(err, ErrInvalidState))

	env.addInterest(6)
	env.lock()
	require.NoError(t, env.deliver(1))
	assert.Equal(t, uint64(96), env.usdcOf("bob"))

	_, err = env.engine.Withdraw(env.ctx, "dave")
	assert.True(t, errors.Is(err, ErrNoActiveTickets))

	paid, err := env.engine.Withdraw(env.ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(20), paid.Uint64())
	assert.Equal(t, uint64(100), env.usdcOf("alice"))
	assert.True(t, env.ticketUnitsOf("alice").IsZero())

	r := env.snapshot()
	assert.Equal(t, uint64(1), r.TotalTickets)
	assert.Equal(t, []string{"bob"}, r.Participants)
	assert.Equal(t, []string{"bob"}, r.Holders)
	_, ok := r.Tickets["alice"]
	assert.False(t, ok)

	_, err = env.engine.Withdraw(env.ctx, "alice")
	assert.True(t, errors.Is(err, ErrNoActiveTickets))
}

func TestWithdrawIsAllOrNothing(t *testing.T) {
	env := newTestEnv(t)
	env.fund("alice")
	env.fund("bob")
	env.enter("alice", "bob")
	env.lock()
	require.NoError(t, env.deliver(0))

	// ticket units moved away can not be returned
	require.NoError(t, env.tickets.Transfer(context.Background(), "alice", "dave", ticketUnit))
	before := env.snapshot()
	_, err := env.engine.Withdraw(env.ctx, "alice")
	assert.True(t, errors.Is(err, ErrTransferFailed))
	assert.Equal(t, before, env.snapshot())
	require.NoError(t, env.tickets.Transfer(context.Background(), "dave", "alice", ticketUnit))

	// a rejected payment gives the burned units back
	env.stable.failTransfer.Store(true)
	_, err = env.engine.Withdraw(env.ctx, "alice")
	assert.True(t, errors.Is(err, ErrTransferFailed))
	env.stable.failTransfer.Store(false)
	assert.Equal(t, before, env.snapshot())
	assert.True(t, units(1).Eq(env.ticketUnitsOf("alice")))
	assert.Equal(t, uint64(90), env.usdcOf("alice"))

	paid, err := env.engine.Withdraw(env.ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), paid.Uint64())
}

func TestProportionalWithdrawal(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.Policy = ProportionalPolicy{}
	})
	env.fund("alice")
	env.fund("bob")
	env.enter("alice", "bob")
	env.lock()
	require.NoError(t, env.deliver(0))

	// yield arriving after the draw is shared by whoever withdraws
	require.NoError(t, env.usdc.Mint(context.Background(), minterAddr, engineAddr, uint256.NewInt(4)))
	paid, err := env.engine.Withdraw(env.ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(12), paid.Uint64())

	paid, err = env.engine.Withdraw(env.ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(12), paid.Uint64())
}

func TestPolicies(t *testing.T) {
	price := uint256.NewInt(10)
	tests := []struct {
		policy PayoutPolicy
		count  uint64
		pool   uint64
		total  uint64
		due    uint64
	}{
		{FlatPolicy{}, 3, 33, 3, 30},
		{FlatPolicy{}, 1, 5, 3, 10},
		{ProportionalPolicy{}, 1, 33, 3, 11},
		{ProportionalPolicy{}, 2, 10, 3, 6},
		{ProportionalPolicy{}, 1, 10, 0, 0},
	}
	for _, tt := range tests {
		due := tt.policy.AmountDue(tt.count, price, uint256.NewInt(tt.pool), tt.total)
		assert.Equal(t, tt.due, due.Uint64(), "%s %d/%d of %d", tt.policy.Name(), tt.count, tt.total, tt.pool)
	}
}

func TestEngineStopped(t *testing.T) {
	env := newTestEnv(t)
	env.stop()

	err := env.engine.Enter(context.Background(), "alice", uint256.NewInt(1))
	assert.Equal(t, ErrEngineStopped, err)
	_, err = env.engine.Info(context.Background())
	assert.Equal(t, ErrEngineStopped, err)
}

func TestRestore(t *testing.T) {
	env := newTestEnv(t)
	env.fund("alice")
	env.enter("alice")
	saved := env.persister.last()

	restored, err := New(env.engine.cfg, Dependencies{
		Stablecoin: env.stable,
		Native:     env.egld,
		Ledger:     env.tickets,
		Venue:      env.venue,
		Randomness: env.provider,
		Clock:      env.clock,
	})
	require.NoError(t, err)
	require.NoError(t, restored.Restore(saved))
	assert.Equal(t, uint64(1), restored.round.TotalTickets)

	corrupt := saved.clone()
	corrupt.TotalTickets = 2
	assert.True(t, errors.Is(restored.Restore(corrupt), ErrCorruptRound))

	corrupt = saved.clone()
	corrupt.State = data.LockingForRandomness
	assert.True(t, errors.Is(restored.Restore(corrupt), ErrCorruptRound))
}

func TestConcurrentEntriesAreSerialized(t *testing.T) {
	env := newTestEnv(t)
	var players []string
	for i := 0; i < 20; i++ {
		p := fmt.Sprintf("player%02d", i)
		env.fund(p)
		players = append(players, p)
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(players))
	for _, p := range players {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			errs <- env.engine.Enter(env.ctx, p, uint256.NewInt(1))
		}(p)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	r := env.snapshot()
	assert.Equal(t, uint64(20), r.TotalTickets)
	assert.Len(t, r.Participants, 20)
	assert.Equal(t, uint64(200), env.venueOf(engineAddr))
	assert.NoError(t, r.validate())
}
