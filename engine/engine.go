package engine

import (
	"context"
	"time"

	logger "github.com/ElrondNetwork/elrond-go-logger"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/DrDelphi/NoLossLottery/data"
	"github.com/DrDelphi/NoLossLottery/utils"
)

var log = logger.GetOrCreate("engine")

// Config holds the fixed parameters of a lottery
type Config struct {
	Address           string
	Admin             string
	Asset             string
	TicketPrice       *uint256.Int
	EntryFee          *uint256.Int
	TicketUnit        *uint256.Int
	PlayInterval      time.Duration
	WithdrawInterval  time.Duration
	RandomnessTimeout time.Duration
	Randomness        data.RandomnessConfig
	Policy            PayoutPolicy
}

// Dependencies are the collaborators the engine drives
type Dependencies struct {
	Stablecoin Token
	Native     Token
	Ledger     LedgerToken
	Venue      YieldVenue
	Randomness RandomnessProvider
	Persister  Persister
	Observer   Observer
	Clock      utils.Clock
}

type request struct {
	op   string
	fn   func() error
	done chan error
}

// Engine is the lottery state machine. All state lives in one Round owned by
// the goroutine running Run, every public method is executed there one at a
// time.
type Engine struct {
	cfg        Config
	stablecoin Token
	native     Token
	ledger     LedgerToken
	venue      YieldVenue
	randomness RandomnessProvider
	persister  Persister
	observer   Observer
	clock      utils.Clock

	round    *Round
	requests chan *request
	stopped  chan struct{}
}

func New(cfg Config, deps Dependencies) (*Engine, error) {
	if err := checkConfig(&cfg); err != nil {
		return nil, err
	}
	if deps.Stablecoin == nil || deps.Native == nil || deps.Ledger == nil || deps.Venue == nil || deps.Randomness == nil {
		return nil, errors.Wrap(ErrInvalidConfig, "missing collaborator")
	}
	if deps.Clock == nil {
		deps.Clock = utils.SystemClock{}
	}
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}

	return &Engine{
		cfg:        cfg,
		stablecoin: deps.Stablecoin,
		native:     deps.Native,
		ledger:     deps.Ledger,
		venue:      deps.Venue,
		randomness: deps.Randomness,
		persister:  deps.Persister,
		observer:   deps.Observer,
		clock:      deps.Clock,
		round:      newRound(),
		requests:   make(chan *request),
		stopped:    make(chan struct{}),
	}, nil
}

func checkConfig(cfg *Config) error {
	switch {
	case cfg.Address == "" || cfg.Admin == "":
		return errors.Wrap(ErrInvalidConfig, "engine and admin addresses are required")
	case cfg.Asset == "":
		return errors.Wrap(ErrInvalidConfig, "asset is required")
	case cfg.TicketPrice == nil || cfg.TicketPrice.IsZero():
		return errors.Wrap(ErrInvalidConfig, "ticket price must be positive")
	case cfg.EntryFee == nil || cfg.EntryFee.IsZero():
		return errors.Wrap(ErrInvalidConfig, "entry fee must be positive")
	case cfg.TicketUnit == nil || cfg.TicketUnit.IsZero():
		return errors.Wrap(ErrInvalidConfig, "ticket unit must be positive")
	case cfg.PlayInterval <= 0 || cfg.WithdrawInterval <= 0:
		return errors.Wrap(ErrInvalidConfig, "intervals must be positive")
	case cfg.RandomnessTimeout < 0:
		return errors.Wrap(ErrInvalidConfig, "negative randomness timeout")
	}
	if cfg.Randomness.NumWords == 0 {
		cfg.Randomness.NumWords = 1
	}
	if cfg.Policy == nil {
		cfg.Policy = FlatPolicy{}
	}

	return nil
}

func (e *Engine) Address() string {
	return e.cfg.Address
}

// Restore replaces the initial round with a persisted one, only valid
// before Run is started
func (e *Engine) Restore(round *Round) error {
	if round == nil {
		return nil
	}
	r := round.clone()
	if r.Tickets == nil {
		r.Tickets = make(map[string]uint64)
	}
	if r.LastPrize == nil {
		r.LastPrize = new(uint256.Int)
	}
	if err := r.validate(); err != nil {
		return err
	}
	e.round = r
	log.Info("round restored", "round", r.Number, "state", r.State, "tickets", r.TotalTickets)

	return nil
}

// Run executes queued operations until ctx is done
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.stopped)

	log.Info("engine started", "address", e.cfg.Address, "round", e.round.Number, "state", e.round.State)
	for {
		select {
		case <-ctx.Done():
			log.Info("engine stopped", "round", e.round.Number, "state", e.round.State)
			return nil
		case req := <-e.requests:
			start := time.Now()
			err := req.fn()
			e.observer.OperationDone(req.op, time.Since(start), err)
			req.done <- err
		}
	}
}

func (e *Engine) do(ctx context.Context, op string, fn func() error) error {
	req := &request{op: op, fn: fn, done: make(chan error, 1)}
	select {
	case e.requests <- req:
	case <-e.stopped:
		return ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	return <-req.done
}

// commit swaps next in and stores it
func (e *Engine) commit(ctx context.Context, next *Round) {
	next.LastTimestamp = e.clock.Now().Unix()
	e.round = next
	e.observer.RoundUpdated(next.Number, next.State, next.TotalTickets, len(next.Participants))
	if e.persister == nil {
		return
	}
	if err := e.persister.Persist(ctx, next.clone()); err != nil {
		// the next successful commit writes the whole round again
		log.Error("persist round", "round", next.Number, "state", next.State, "error", err)
	}
}

func (e *Engine) now() time.Time {
	return e.clock.Now()
}

func (e *Engine) stableBalance(ctx context.Context) (*uint256.Int, error) {
	return e.stablecoin.BalanceOf(ctx, e.cfg.Address)
}

func (e *Engine) venueBalance(ctx context.Context) (*uint256.Int, error) {
	return e.venue.BalanceOf(ctx, e.cfg.Address)
}

func (e *Engine) feeBalance(ctx context.Context) (*uint256.Int, error) {
	return e.native.BalanceOf(ctx, e.cfg.Address)
}

// supply approves the venue and supplies amount, registering the way back
func (e *Engine) supply(ctx context.Context, j *journal, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	if err := e.stablecoin.Approve(ctx, e.cfg.Address, e.venue.Address(), amount); err != nil {
		return errors.Wrap(ErrVenueAllowanceFailed, err.Error())
	}
	if err := e.venue.Supply(ctx, e.cfg.Asset, e.cfg.Address, amount); err != nil {
		return errors.Wrapf(ErrTransferFailed, "supply %s to venue: %v", amount, err)
	}
	j.add("venue supply", func(ctx context.Context) error {
		_, err := e.venue.Withdraw(ctx, e.cfg.Asset, e.cfg.Address, amount)
		return err
	})
	log.Debug("supplied venue", "amount", amount)

	return nil
}

// withdrawAll pulls the whole engine position out of the venue and returns
// what was received
func (e *Engine) withdrawAll(ctx context.Context, j *journal) (*uint256.Int, error) {
	balance, err := e.venueBalance(ctx)
	if err != nil {
		return nil, errors.Wrapf(ErrTransferFailed, "venue balance: %v", err)
	}
	if balance.IsZero() {
		return balance, nil
	}
	got, err := e.venue.Withdraw(ctx, e.cfg.Asset, e.cfg.Address, balance)
	if err != nil {
		return nil, errors.Wrapf(ErrTransferFailed, "withdraw %s from venue: %v", balance, err)
	}
	if !got.IsZero() {
		j.add("venue withdraw", func(ctx context.Context) error {
			if err := e.stablecoin.Approve(ctx, e.cfg.Address, e.venue.Address(), got); err != nil {
				return err
			}
			return e.venue.Supply(ctx, e.cfg.Asset, e.cfg.Address, got)
		})
	}
	log.Debug("withdrew venue", "requested", balance, "received", got)

	return got, nil
}
