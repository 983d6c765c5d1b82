package engine

import (
	"context"

	"github.com/holiman/uint256"

	"github.com/DrDelphi/NoLossLottery/data"
)

func (e *Engine) EntryFee() *uint256.Int {
	return e.cfg.EntryFee.Clone()
}

func (e *Engine) TicketPrice() *uint256.Int {
	return e.cfg.TicketPrice.Clone()
}

func (e *Engine) Admin() string {
	return e.cfg.Admin
}

// Info returns the read surface of the engine together with the balances it
// holds
func (e *Engine) Info(ctx context.Context) (*data.EngineInfo, error) {
	var info *data.EngineInfo
	err := e.do(ctx, "info", func() error {
		pool, err := e.stableBalance(ctx)
		if err != nil {
			return err
		}
		venueBalance, err := e.venueBalance(ctx)
		if err != nil {
			return err
		}
		fees, err := e.feeBalance(ctx)
		if err != nil {
			return err
		}

		r := e.round
		info = &data.EngineInfo{
			Address:               e.cfg.Address,
			Admin:                 e.cfg.Admin,
			Round:                 r.Number,
			State:                 r.State,
			EntryFee:              e.cfg.EntryFee.Clone(),
			TicketPrice:           e.cfg.TicketPrice.Clone(),
			TicketUnit:            e.cfg.TicketUnit.Clone(),
			TotalTickets:          r.TotalTickets,
			Participants:          len(r.Participants),
			Pool:                  pool,
			VenueBalance:          venueBalance,
			FeeBalance:            fees,
			LastPrize:             r.LastPrize.Clone(),
			LastTimestamp:         r.LastTimestamp,
			EndOfPlayDeadline:     r.EndOfPlayDeadline,
			EndOfWithdrawDeadline: r.EndOfWithdrawDeadline,
			PendingWinner:         r.PendingWinner,
			PayoutPolicy:          e.cfg.Policy.Name(),
		}
		if r.PendingRequestID != nil {
			id := *r.PendingRequestID
			info.PendingRequestID = &id
		}

		return nil
	})

	return info, err
}

// Participants returns the current draw list, one entry per ticket
func (e *Engine) Participants(ctx context.Context) ([]string, error) {
	var res []string
	err := e.do(ctx, "participants", func() error {
		res = append([]string{}, e.round.Participants...)
		return nil
	})

	return res, err
}

// Tickets returns the active tickets of address
func (e *Engine) Tickets(ctx context.Context, address string) (*data.TicketInfo, error) {
	var info *data.TicketInfo
	err := e.do(ctx, "tickets", func() error {
		balance, err := e.ledger.BalanceOf(ctx, address)
		if err != nil {
			return err
		}
		n := e.round.Tickets[address]
		info = &data.TicketInfo{
			Address:       address,
			Tickets:       n,
			LedgerBalance: balance,
			Principal:     new(uint256.Int).Mul(uint256.NewInt(n), e.cfg.TicketPrice),
		}
		return nil
	})

	return info, err
}

// Winners returns the winners history, oldest first
func (e *Engine) Winners(ctx context.Context) ([]data.Winner, error) {
	var res []data.Winner
	err := e.do(ctx, "winners", func() error {
		res = make([]data.Winner, len(e.round.Winners))
		for i, w := range e.round.Winners {
			res[i] = cloneWinner(w)
		}
		return nil
	})

	return res, err
}

// Snapshot returns a copy of the whole round
func (e *Engine) Snapshot(ctx context.Context) (*Round, error) {
	var res *Round
	err := e.do(ctx, "snapshot", func() error {
		res = e.round.clone()
		return nil
	})

	return res, err
}
