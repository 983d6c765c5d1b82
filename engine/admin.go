package engine

import (
	"context"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/DrDelphi/NoLossLottery/data"
)

// WithdrawFees sends the collected entry fees to the admin
func (e *Engine) WithdrawFees(ctx context.Context, caller string) (*uint256.Int, error) {
	var amount *uint256.Int
	err := e.do(ctx, "withdraw-fees", func() error {
		if caller != e.cfg.Admin {
			return errors.Wrapf(ErrUnauthorized, "%s is not the admin", caller)
		}
		fees, err := e.feeBalance(ctx)
		if err != nil {
			return err
		}
		amount = fees
		if fees.IsZero() {
			return nil
		}
		if err = e.native.Transfer(ctx, e.cfg.Address, e.cfg.Admin, fees); err != nil {
			return errors.Wrapf(ErrTransferFailed, "send fees: %v", err)
		}
		e.commit(ctx, e.round.clone())
		log.Info("fees withdrawn", "admin", caller, "amount", fees)

		return nil
	})

	return amount, err
}

// ForceSupply puts the whole stablecoin balance of the engine into the venue
func (e *Engine) ForceSupply(ctx context.Context, caller string) (*uint256.Int, error) {
	var amount *uint256.Int
	err := e.do(ctx, "force-supply", func() error {
		if caller != e.cfg.Admin {
			return errors.Wrapf(ErrUnauthorized, "%s is not the admin", caller)
		}
		if e.round.State != data.OpenToPlay {
			return errors.Wrapf(ErrInvalidState, "force supply in state %s", e.round.State)
		}
		balance, err := e.stableBalance(ctx)
		if err != nil {
			return err
		}
		amount = balance
		if balance.IsZero() {
			return nil
		}
		if err = e.supply(ctx, newJournal("force-supply"), balance); err != nil {
			return err
		}
		e.commit(ctx, e.round.clone())
		log.Info("forced venue supply", "admin", caller, "amount", balance)

		return nil
	})

	return amount, err
}
