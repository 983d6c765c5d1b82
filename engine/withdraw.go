package engine

import (
	"context"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/DrDelphi/NoLossLottery/data"
)

// Withdraw settles every ticket of caller: ledger units are burned and the
// amount due under the payout policy is sent back
func (e *Engine) Withdraw(ctx context.Context, caller string) (*uint256.Int, error) {
	var paid *uint256.Int
	err := e.do(ctx, "withdraw", func() error {
		var err error
		paid, err = e.withdraw(ctx, caller)
		return err
	})

	return paid, err
}

func (e *Engine) withdraw(ctx context.Context, caller string) (*uint256.Int, error) {
	if e.round.State != data.OpenToWithdraw {
		return nil, errors.Wrapf(ErrInvalidState, "withdraw in state %s", e.round.State)
	}
	count := e.round.Tickets[caller]
	if count == 0 {
		return nil, errors.Wrapf(ErrNoActiveTickets, "caller %s", caller)
	}

	pool, err := e.stableBalance(ctx)
	if err != nil {
		return nil, err
	}
	due := e.cfg.Policy.AmountDue(count, e.cfg.TicketPrice, pool, e.round.TotalTickets)

	j := newJournal("withdraw")
	units := new(uint256.Int).Mul(uint256.NewInt(count), e.cfg.TicketUnit)
	if err = e.ledger.Burn(ctx, e.cfg.Address, caller, units); err != nil {
		return nil, errors.Wrapf(ErrTransferFailed, "return %s ticket units: %v", units, err)
	}
	j.add("burn ticket units", func(ctx context.Context) error {
		return e.ledger.Mint(ctx, e.cfg.Address, caller, units)
	})

	next := e.round.clone()
	next.removeHolder(caller)
	if err = next.validate(); err != nil {
		return nil, j.abort(ctx, err)
	}
	if !due.IsZero() {
		if err = e.stablecoin.Transfer(ctx, e.cfg.Address, caller, due); err != nil {
			return nil, j.abort(ctx, errors.Wrapf(ErrTransferFailed, "pay %s to %s: %v", due, caller, err))
		}
	}

	e.commit(ctx, next)
	e.observer.Withdrew(caller, due)
	log.Info("withdrew", "round", next.Number, "caller", caller, "tickets", count, "amount", due)

	return due, nil
}
