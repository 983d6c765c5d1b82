package engine

import (
	"context"
	"time"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/DrDelphi/NoLossLottery/data"
)

// OnRandomDelivered is the randomness callback. Only the provider may call
// it and only for the pending request. The first word picks the winner; when
// the pool is already liquid the payout happens right away, otherwise (or
// when that payout fails) the round waits in COMPUTING_PAYOUT for the payout
// path.
func (e *Engine) OnRandomDelivered(ctx context.Context, caller string, id data.RequestID, words []*uint256.Int) error {
	return e.do(ctx, "randomness", func() error {
		return e.onRandomDelivered(ctx, caller, id, words)
	})
}

func (e *Engine) onRandomDelivered(ctx context.Context, caller string, id data.RequestID, words []*uint256.Int) error {
	if caller != e.randomness.Address() {
		return errors.Wrapf(ErrUnauthorized, "randomness delivered by %s", caller)
	}
	r := e.round
	if r.State != data.LockingForRandomness || r.PendingRequestID == nil || *r.PendingRequestID != id {
		return errors.Wrapf(ErrStaleRequest, "request %s in state %s", id, r.State)
	}
	if len(words) == 0 || words[0] == nil {
		return errors.Wrap(ErrInvalidState, "no random words delivered")
	}
	if len(r.Participants) == 0 {
		return errors.Wrap(ErrInvalidState, "no participants to draw from")
	}

	idx := new(uint256.Int).Mod(words[0], uint256.NewInt(uint64(len(r.Participants)))).Uint64()
	next := r.clone()
	next.PendingWinner = next.Participants[idx]
	next.RandomWord = words[0].Clone()
	next.PendingRequestID = nil
	next.State = data.ComputingPayout
	if err := next.validate(); err != nil {
		return err
	}

	e.commit(ctx, next)
	e.observer.Transitioned(data.PathDelivery, data.LockingForRandomness, data.ComputingPayout)
	log.Info("winner drawn", "round", next.Number, "winner", next.PendingWinner, "index", idx,
		"fundsLiquid", next.FundsLiquid)

	if !next.FundsLiquid {
		return nil
	}
	// the draw is committed from here on, a failed payout is left to the
	// payout path
	start := time.Now()
	err := e.settle(ctx, newJournal("payout"), e.round.clone())
	e.observer.OperationDone("payout", time.Since(start), err)
	if err != nil {
		log.Error("payout after draw failed", "round", next.Number, "winner", next.PendingWinner, "error", err)
		return nil
	}
	e.observer.Transitioned(data.PathPayout, data.ComputingPayout, data.OpenToWithdraw)

	return nil
}
