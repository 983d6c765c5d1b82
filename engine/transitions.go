package engine

import (
	"context"
	"time"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/DrDelphi/NoLossLottery/data"
)

// CheckTransitionReady evaluates the guard of path without side effects
func (e *Engine) CheckTransitionReady(ctx context.Context, path data.PathID) (bool, error) {
	var ready bool
	err := e.do(ctx, "check", func() error {
		notReady, err := e.check(ctx, path)
		if err != nil {
			return err
		}
		ready = notReady == nil
		return nil
	})

	return ready, err
}

// TriggerTransition re-evaluates the guard of path and performs the
// transition. It fails with an *UpkeepNotReadyError when the guard does not
// hold.
func (e *Engine) TriggerTransition(ctx context.Context, path data.PathID) error {
	return e.do(ctx, "trigger:"+string(path), func() error {
		return e.trigger(ctx, path)
	})
}

func (e *Engine) trigger(ctx context.Context, path data.PathID) error {
	notReady, err := e.check(ctx, path)
	if err != nil {
		return err
	}
	if notReady != nil {
		e.observer.UpkeepRejected(path)
		log.Debug("upkeep not ready", "path", path, "state", notReady.State, "reason", notReady.Reason)
		return notReady
	}

	from := e.round.State
	switch path {
	case data.PathLock:
		err = e.lock(ctx)
	case data.PathPayout:
		err = e.payout(ctx)
	case data.PathReopen:
		err = e.reopen(ctx)
	case data.PathRetryRandomness:
		err = e.retryRandomness(ctx)
	}
	if err != nil {
		var nr *UpkeepNotReadyError
		if errors.As(err, &nr) {
			e.observer.UpkeepRejected(path)
			log.Debug("upkeep not ready", "path", path, "reason", nr.Reason)
		} else {
			log.Error("transition aborted", "path", path, "state", from, "error", err)
		}
		return err
	}
	e.observer.Transitioned(path, from, e.round.State)

	return nil
}

// check returns nil when path may run, otherwise the diagnostics of the miss
func (e *Engine) check(ctx context.Context, path data.PathID) (*UpkeepNotReadyError, error) {
	if !path.IsValid() {
		return nil, errors.Wrapf(ErrUnknownPath, "%q", path)
	}
	diag, err := e.diagnostics(ctx, path)
	if err != nil {
		return nil, err
	}

	r := e.round
	now := e.now()
	switch path {
	case data.PathLock:
		switch {
		case r.State != data.OpenToPlay:
			diag.Reason = "not open to play"
		case r.EndOfPlayDeadline == 0 || now.Unix() <= r.EndOfPlayDeadline:
			diag.Reason = "play interval not elapsed"
		case len(r.Participants) == 0:
			diag.Reason = "no participants"
		case diag.FeeBalance.IsZero():
			diag.Reason = "no fee balance"
		}
	case data.PathPayout:
		switch {
		case r.State != data.ComputingPayout:
			diag.Reason = "not computing payout"
		case r.PendingWinner == "":
			diag.Reason = "no pending winner"
		}
	case data.PathReopen:
		switch {
		case r.State != data.OpenToWithdraw:
			diag.Reason = "not open to withdraw"
		case now.Unix() < r.EndOfWithdrawDeadline:
			diag.Reason = "withdraw interval not elapsed"
		}
	case data.PathRetryRandomness:
		switch {
		case r.State != data.LockingForRandomness:
			diag.Reason = "not locking for randomness"
		case e.cfg.RandomnessTimeout == 0:
			diag.Reason = "randomness retry disabled"
		case now.Sub(time.Unix(r.RandomRequestedAt, 0)) <= e.cfg.RandomnessTimeout:
			diag.Reason = "randomness request not timed out"
		}
	}
	if diag.Reason != "" {
		return diag, nil
	}

	return nil, nil
}

func (e *Engine) diagnostics(ctx context.Context, path data.PathID) (*UpkeepNotReadyError, error) {
	balance, err := e.stableBalance(ctx)
	if err != nil {
		return nil, err
	}
	venueBalance, err := e.venueBalance(ctx)
	if err != nil {
		return nil, err
	}
	fees, err := e.feeBalance(ctx)
	if err != nil {
		return nil, err
	}

	return &UpkeepNotReadyError{
		Path:         path,
		State:        e.round.State,
		Balance:      balance,
		VenueBalance: venueBalance,
		FeeBalance:   fees,
		Participants: len(e.round.Participants),
	}, nil
}

// lock pulls the pool out of the venue and asks for randomness
func (e *Engine) lock(ctx context.Context) error {
	j := newJournal("lock")
	if _, err := e.withdrawAll(ctx, j); err != nil {
		return j.abort(ctx, err)
	}
	remaining, err := e.venueBalance(ctx)
	if err != nil {
		return j.abort(ctx, err)
	}
	id, err := e.randomness.RequestRandom(ctx, e.cfg.Address, e.cfg.Randomness)
	if err != nil {
		return j.abort(ctx, errors.Wrap(err, "request randomness"))
	}

	next := e.round.clone()
	next.State = data.LockingForRandomness
	next.PendingRequestID = &id
	next.RandomRequestedAt = e.now().Unix()
	next.FundsLiquid = remaining.IsZero()
	if err = next.validate(); err != nil {
		return j.abort(ctx, err)
	}

	e.commit(ctx, next)
	log.Info("round locked", "round", next.Number, "request", id.String(), "participants", len(next.Participants),
		"fundsLiquid", next.FundsLiquid)

	return nil
}

// payout finishes a round whose winner is known once the pool is liquid
func (e *Engine) payout(ctx context.Context) error {
	j := newJournal("payout")
	if _, err := e.withdrawAll(ctx, j); err != nil {
		return j.abort(ctx, err)
	}
	remaining, err := e.venueBalance(ctx)
	if err != nil {
		return j.abort(ctx, err)
	}
	if !remaining.IsZero() {
		// what was pulled out stays with the engine, the next attempt
		// continues from there
		diag, err := e.diagnostics(ctx, data.PathPayout)
		if err != nil {
			return err
		}
		diag.Reason = "funds not liquid"
		return diag
	}

	next := e.round.clone()
	next.FundsLiquid = true

	return e.settle(ctx, j, next)
}

// settle pays the prize of next.PendingWinner and opens the withdraw window
func (e *Engine) settle(ctx context.Context, j *journal, next *Round) error {
	pool, err := e.stableBalance(ctx)
	if err != nil {
		return j.abort(ctx, err)
	}
	base := new(uint256.Int).Mul(uint256.NewInt(next.TotalTickets), e.cfg.TicketPrice)
	prize := new(uint256.Int)
	if pool.Gt(base) {
		prize.Sub(pool, base)
	}

	now := e.now()
	winner := data.Winner{
		Round:      next.Number,
		Address:    next.PendingWinner,
		Prize:      prize,
		RandomWord: next.RandomWord,
		Timestamp:  now.Unix(),
	}
	next.Winners = append(next.Winners, winner)
	next.LastPrize = prize.Clone()
	next.PendingWinner = ""
	next.RandomWord = nil
	next.reseed()
	next.EndOfWithdrawDeadline = now.Add(e.cfg.WithdrawInterval).Unix()
	next.State = data.OpenToWithdraw
	if err = next.validate(); err != nil {
		return j.abort(ctx, err)
	}

	if !prize.IsZero() {
		if err = e.stablecoin.Transfer(ctx, e.cfg.Address, winner.Address, prize); err != nil {
			return j.abort(ctx, errors.Wrapf(ErrTransferFailed, "pay prize %s to %s: %v", prize, winner.Address, err))
		}
	}

	e.commit(ctx, next)
	e.observer.WinnerPaid(cloneWinner(winner))
	log.Info("prize paid", "round", next.Number, "winner", winner.Address, "prize", prize, "pool", pool)

	return nil
}

// reopen puts the whole pool back to work and starts the next round
func (e *Engine) reopen(ctx context.Context) error {
	j := newJournal("reopen")
	balance, err := e.stableBalance(ctx)
	if err != nil {
		return err
	}
	if err = e.supply(ctx, j, balance); err != nil {
		return j.abort(ctx, err)
	}

	next := e.round.clone()
	next.Number++
	next.State = data.OpenToPlay
	next.FirstEntrant = true
	next.FundsLiquid = false
	next.EndOfWithdrawDeadline = 0
	next.EndOfPlayDeadline = 0
	if next.TotalTickets > 0 {
		next.EndOfPlayDeadline = e.now().Add(e.cfg.PlayInterval).Unix()
	}
	if err = next.validate(); err != nil {
		return j.abort(ctx, err)
	}

	e.commit(ctx, next)
	log.Info("round opened", "round", next.Number, "carriedTickets", next.TotalTickets, "supplied", balance)

	return nil
}

// retryRandomness replaces a request the provider never answered
func (e *Engine) retryRandomness(ctx context.Context) error {
	id, err := e.randomness.RequestRandom(ctx, e.cfg.Address, e.cfg.Randomness)
	if err != nil {
		return errors.Wrap(err, "request randomness")
	}

	next := e.round.clone()
	stale := next.PendingRequestID
	next.PendingRequestID = &id
	next.RandomRequestedAt = e.now().Unix()

	e.commit(ctx, next)
	log.Warn("randomness request retried", "round", next.Number, "stale", stale.String(), "request", id.String())

	return nil
}
