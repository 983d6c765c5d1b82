package engine

import (
	"context"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/DrDelphi/NoLossLottery/data"
)

// Enter buys one ticket for caller. payment must equal the entry fee, the
// fee and the ticket price are pulled from caller allowances.
func (e *Engine) Enter(ctx context.Context, caller string, payment *uint256.Int) error {
	return e.do(ctx, "enter", func() error {
		return e.enter(ctx, caller, payment)
	})
}

func (e *Engine) enter(ctx context.Context, caller string, payment *uint256.Int) error {
	if caller == "" {
		return errors.Wrap(ErrUnauthorized, "empty caller")
	}
	if e.round.State != data.OpenToPlay {
		return errors.Wrapf(ErrInvalidState, "enter in state %s", e.round.State)
	}
	if payment == nil || !payment.Eq(e.cfg.EntryFee) {
		return errors.Wrapf(ErrInsufficientPayment, "paid %v, entry fee is %s", payment, e.cfg.EntryFee)
	}

	j := newJournal("enter")
	fee := e.cfg.EntryFee
	if !fee.IsZero() {
		if err := e.native.TransferFrom(ctx, e.cfg.Address, caller, e.cfg.Address, fee); err != nil {
			return errors.Wrapf(ErrInsufficientPayment, "entry fee: %v", err)
		}
		j.add("refund fee", func(ctx context.Context) error {
			return e.native.Transfer(ctx, e.cfg.Address, caller, fee)
		})
	}

	price := e.cfg.TicketPrice
	before, err := e.stableBalance(ctx)
	if err != nil {
		return j.abort(ctx, err)
	}
	if err = e.stablecoin.TransferFrom(ctx, e.cfg.Address, caller, e.cfg.Address, price); err != nil {
		return j.abort(ctx, errors.Wrapf(ErrInsufficientPayment, "ticket price: %v", err))
	}
	j.add("refund ticket", func(ctx context.Context) error {
		return e.stablecoin.Transfer(ctx, e.cfg.Address, caller, price)
	})
	after, err := e.stableBalance(ctx)
	if err != nil {
		return j.abort(ctx, err)
	}
	if after.Lt(new(uint256.Int).Add(before, price)) {
		return j.abort(ctx, errors.Wrapf(ErrInsufficientPayment, "balance grew from %s to %s, ticket price is %s",
			before, after, price))
	}

	next := e.round.clone()
	amount := price
	if next.FirstEntrant {
		amount = after
	}
	if err = e.supply(ctx, j, amount); err != nil {
		return j.abort(ctx, err)
	}

	unit := e.cfg.TicketUnit
	if err = e.ledger.Mint(ctx, e.cfg.Address, caller, unit); err != nil {
		return j.abort(ctx, errors.Wrapf(ErrTransferFailed, "mint ticket unit: %v", err))
	}
	j.add("mint ticket unit", func(ctx context.Context) error {
		return e.ledger.Burn(ctx, e.cfg.Address, caller, unit)
	})

	next.addTicket(caller)
	if next.FirstEntrant {
		next.FirstEntrant = false
		if next.EndOfPlayDeadline == 0 {
			next.EndOfPlayDeadline = e.now().Add(e.cfg.PlayInterval).Unix()
		}
	}
	if err = next.validate(); err != nil {
		return j.abort(ctx, err)
	}

	e.commit(ctx, next)
	e.observer.Entered(caller)
	log.Info("entered", "round", next.Number, "caller", caller, "tickets", next.Tickets[caller], "total", next.TotalTickets)

	return nil
}
