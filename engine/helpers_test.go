package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/DrDelphi/NoLossLottery/data"
	"github.com/DrDelphi/NoLossLottery/token"
	"github.com/DrDelphi/NoLossLottery/utils"
	"github.com/DrDelphi/NoLossLottery/venue"
)

const (
	engineAddr   = "engine"
	adminAddr    = "admin"
	providerAddr = "provider"
	venueAddr    = "venue"
	minterAddr   = "minter"
)

var ticketUnit = uint256.NewInt(1_000_000_000_000_000_000)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeProvider struct {
	mu       sync.Mutex
	requests []data.RequestID
	fail     atomic.Bool
}

func (p *fakeProvider) Address() string {
	return providerAddr
}

func (p *fakeProvider) RequestRandom(_ context.Context, _ string, cfg data.RandomnessConfig) (data.RequestID, error) {
	if p.fail.Load() {
		return data.RequestID{}, errors.New("provider unavailable")
	}
	if cfg.NumWords != 1 {
		return data.RequestID{}, errors.Errorf("asked for %d words", cfg.NumWords)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var id data.RequestID
	id[0] = byte(len(p.requests) + 1)
	p.requests = append(p.requests, id)

	return id, nil
}

func (p *fakeProvider) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.requests)
}

func (p *fakeProvider) last() data.RequestID {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.requests[len(p.requests)-1]
}

type flakyToken struct {
	*token.Ledger
	failTransfer atomic.Bool
	failApprove  atomic.Bool
}

func (f *flakyToken) Transfer(ctx context.Context, from, to string, amount *uint256.Int) error {
	if f.failTransfer.Load() {
		return errors.New("transfer rejected")
	}

	return f.Ledger.Transfer(ctx, from, to, amount)
}

func (f *flakyToken) Approve(ctx context.Context, owner, spender string, amount *uint256.Int) error {
	if f.failApprove.Load() {
		return errors.New("approve rejected")
	}

	return f.Ledger.Approve(ctx, owner, spender, amount)
}

type countingVenue struct {
	*venue.Market
	supplies     atomic.Int32
	withdrawals  atomic.Int32
	failSupply   atomic.Bool
	failWithdraw atomic.Bool
}

func (v *countingVenue) Supply(ctx context.Context, asset, supplier string, amount *uint256.Int) error {
	v.supplies.Add(1)
	if v.failSupply.Load() {
		return errors.New("market paused")
	}

	return v.Market.Supply(ctx, asset, supplier, amount)
}

func (v *countingVenue) Withdraw(ctx context.Context, asset, holder string, amount *uint256.Int) (*uint256.Int, error) {
	v.withdrawals.Add(1)
	if v.failWithdraw.Load() {
		return nil, errors.New("market paused")
	}

	return v.Market.Withdraw(ctx, asset, holder, amount)
}

type memPersister struct {
	mu     sync.Mutex
	rounds []*Round
}

func (p *memPersister) Persist(_ context.Context, round *Round) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.rounds = append(p.rounds, round)

	return nil
}

func (p *memPersister) last() *Round {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.rounds) == 0 {
		return nil
	}

	return p.rounds[len(p.rounds)-1]
}

type failureObserver struct {
	nopObserver
	mu     sync.Mutex
	failed map[string]error
}

func (o *failureObserver) OperationDone(op string, _ time.Duration, err error) {
	if err == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.failed == nil {
		o.failed = make(map[string]error)
	}
	o.failed[op] = err
}

func (o *failureObserver) failure(op string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.failed[op]
}

type testEnv struct {
	t         *testing.T
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan error
	clock     *utils.ManualClock
	usdc      *token.Ledger
	egld      *token.Ledger
	tickets   *token.Ledger
	stable    *flakyToken
	market    *venue.Market
	venue     *countingVenue
	provider  *fakeProvider
	persister *memPersister
	observer  *failureObserver
	engine    *Engine
}

func newTestEnv(t *testing.T, opts ...func(*Config)) *testEnv {
	env := &testEnv{
		t:         t,
		done:      make(chan error, 1),
		clock:     utils.NewManualClock(time.Unix(1_700_000_000, 0)),
		usdc:      token.NewLedger(data.Token{Ticker: "USDC"}, minterAddr),
		egld:      token.NewLedger(data.Token{Ticker: "EGLD"}, minterAddr),
		tickets:   token.NewLedger(data.Token{Ticker: "TICKET"}, engineAddr),
		provider:  &fakeProvider{},
		persister: &memPersister{},
		observer:  &failureObserver{},
	}
	env.stable = &flakyToken{Ledger: env.usdc}
	env.market = venue.NewMarket(venue.Config{Address: venueAddr, Asset: "USDC"}, env.usdc, env.clock)
	env.venue = &countingVenue{Market: env.market}

	cfg := Config{
		Address:           engineAddr,
		Admin:             adminAddr,
		Asset:             "USDC",
		TicketPrice:       uint256.NewInt(10),
		EntryFee:          uint256.NewInt(1),
		TicketUnit:        ticketUnit,
		PlayInterval:      time.Hour,
		WithdrawInterval:  time.Hour,
		RandomnessTimeout: 10 * time.Minute,
		Randomness:        data.RandomnessConfig{Confirmations: 3, CallbackGasLimit: 100000, NumWords: 1},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	e, err := New(cfg, Dependencies{
		Stablecoin: env.stable,
		Native:     env.egld,
		Ledger:     env.tickets,
		Venue:      env.venue,
		Randomness: env.provider,
		Persister:  env.persister,
		Observer:   env.observer,
		Clock:      env.clock,
	})
	require.NoError(t, err)
	env.engine = e
	env.start()
	t.Cleanup(env.stop)

	return env
}

func (env *testEnv) start() {
	env.ctx, env.cancel = context.WithCancel(context.Background())
	go func() {
		env.done <- env.engine.Run(env.ctx)
	}()
}

func (env *testEnv) stop() {
	if env.cancel == nil {
		return
	}
	env.cancel()
	<-env.done
	env.cancel = nil
}

// fund gives addr 100 USDC and 10 EGLD and approves the engine for both
func (env *testEnv) fund(addr string) {
	ctx := context.Background()
	require.NoError(env.t, env.usdc.Mint(ctx, minterAddr, addr, uint256.NewInt(100)))
	require.NoError(env.t, env.egld.Mint(ctx, minterAddr, addr, uint256.NewInt(10)))
	require.NoError(env.t, env.usdc.Approve(ctx, addr, engineAddr, uint256.NewInt(1000)))
	require.NoError(env.t, env.egld.Approve(ctx, addr, engineAddr, uint256.NewInt(1000)))
}

func (env *testEnv) enter(addrs ...string) {
	for _, addr := range addrs {
		require.NoError(env.t, env.engine.Enter(env.ctx, addr, uint256.NewInt(1)))
	}
}

// addInterest credits the engine position and backs it with market cash
func (env *testEnv) addInterest(amount uint64) {
	env.market.AddInterest(engineAddr, uint256.NewInt(amount))
	require.NoError(env.t, env.usdc.Mint(context.Background(), minterAddr, venueAddr, uint256.NewInt(amount)))
}

func (env *testEnv) lock() {
	env.clock.Advance(time.Hour + time.Second)
	require.NoError(env.t, env.engine.TriggerTransition(env.ctx, data.PathLock))
}

func (env *testEnv) deliver(word uint64) error {
	return env.engine.OnRandomDelivered(env.ctx, providerAddr, env.provider.last(), []*uint256.Int{uint256.NewInt(word)})
}

func (env *testEnv) usdcOf(addr string) uint64 {
	b, err := env.usdc.BalanceOf(context.Background(), addr)
	require.NoError(env.t, err)
	return b.Uint64()
}

func (env *testEnv) egldOf(addr string) uint64 {
	b, err := env.egld.BalanceOf(context.Background(), addr)
	require.NoError(env.t, err)
	return b.Uint64()
}

func (env *testEnv) venueOf(addr string) uint64 {
	b, err := env.market.BalanceOf(context.Background(), addr)
	require.NoError(env.t, err)
	return b.Uint64()
}

func (env *testEnv) ticketUnitsOf(addr string) *uint256.Int {
	b, err := env.tickets.BalanceOf(context.Background(), addr)
	require.NoError(env.t, err)
	return b
}

func (env *testEnv) snapshot() *Round {
	r, err := env.engine.Snapshot(env.ctx)
	require.NoError(env.t, err)
	return r
}

func units(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), ticketUnit)
}
