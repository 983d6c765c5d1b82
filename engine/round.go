package engine

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/DrDelphi/NoLossLottery/data"
)

// Round is the whole bookkeeping of the engine. It is owned by the engine
// goroutine, every operation works on a clone and swaps it in on success.
type Round struct {
	Number                uint64            `json:"round"`
	State                 data.State        `json:"state"`
	Participants          []string          `json:"participants"`
	Tickets               map[string]uint64 `json:"tickets"`
	Holders               []string          `json:"holders"`
	TotalTickets          uint64            `json:"totalTickets"`
	FirstEntrant          bool              `json:"firstEntrant"`
	EndOfPlayDeadline     int64             `json:"endOfPlayDeadline"`
	EndOfWithdrawDeadline int64             `json:"endOfWithdrawDeadline"`
	PendingWinner         string            `json:"pendingWinner,omitempty"`
	PendingRequestID      *data.RequestID   `json:"pendingRequestId,omitempty"`
	RandomRequestedAt     int64             `json:"randomRequestedAt"`
	RandomWord            *uint256.Int      `json:"randomWord,omitempty"`
	FundsLiquid           bool              `json:"fundsLiquid"`
	LastPrize             *uint256.Int      `json:"lastPrize"`
	LastTimestamp         int64             `json:"lastTimestamp"`
	Winners               []data.Winner     `json:"winners"`
}

func newRound() *Round {
	return &Round{
		Number:       1,
		State:        data.OpenToPlay,
		Tickets:      make(map[string]uint64),
		FirstEntrant: true,
		LastPrize:    new(uint256.Int),
	}
}

func (r *Round) clone() *Round {
	c := *r
	c.Participants = append([]string(nil), r.Participants...)
	c.Holders = append([]string(nil), r.Holders...)
	c.Tickets = make(map[string]uint64, len(r.Tickets))
	for addr, n := range r.Tickets {
		c.Tickets[addr] = n
	}
	if r.PendingRequestID != nil {
		id := *r.PendingRequestID
		c.PendingRequestID = &id
	}
	if r.RandomWord != nil {
		c.RandomWord = r.RandomWord.Clone()
	}
	if r.LastPrize != nil {
		c.LastPrize = r.LastPrize.Clone()
	}
	c.Winners = make([]data.Winner, len(r.Winners))
	for i, w := range r.Winners {
		c.Winners[i] = cloneWinner(w)
	}

	return &c
}

func (r *Round) addTicket(addr string) {
	if r.Tickets[addr] == 0 {
		r.Holders = append(r.Holders, addr)
	}
	r.Tickets[addr]++
	r.TotalTickets++
	r.Participants = append(r.Participants, addr)
}

// removeHolder drops every ticket of addr and returns how many there were
func (r *Round) removeHolder(addr string) uint64 {
	n := r.Tickets[addr]
	delete(r.Tickets, addr)
	r.TotalTickets -= n
	r.Participants = without(r.Participants, addr)
	r.Holders = without(r.Holders, addr)

	return n
}

// reseed rebuilds the draw list from the carried ticket counts
func (r *Round) reseed() {
	r.Participants = make([]string, 0, r.TotalTickets)
	for _, addr := range r.Holders {
		for i := uint64(0); i < r.Tickets[addr]; i++ {
			r.Participants = append(r.Participants, addr)
		}
	}
}

func (r *Round) validate() error {
	if r.State > data.OpenToWithdraw {
		return errors.Wrapf(ErrCorruptRound, "state %d", r.State)
	}
	var sum uint64
	for addr, n := range r.Tickets {
		if n == 0 {
			return errors.Wrapf(ErrCorruptRound, "zero ticket entry for %s", addr)
		}
		sum += n
	}
	if sum != r.TotalTickets || uint64(len(r.Participants)) != r.TotalTickets {
		return errors.Wrapf(ErrCorruptRound, "total %d, sum %d, participants %d",
			r.TotalTickets, sum, len(r.Participants))
	}
	seen := make(map[string]uint64, len(r.Tickets))
	for _, addr := range r.Participants {
		seen[addr]++
	}
	for addr, n := range seen {
		if r.Tickets[addr] != n {
			return errors.Wrapf(ErrCorruptRound, "%s drawn %d times, holds %d tickets", addr, n, r.Tickets[addr])
		}
	}
	if len(r.Holders) != len(r.Tickets) {
		return errors.Wrapf(ErrCorruptRound, "%d holders for %d ticket entries", len(r.Holders), len(r.Tickets))
	}
	for _, addr := range r.Holders {
		if r.Tickets[addr] == 0 {
			return errors.Wrapf(ErrCorruptRound, "holder %s has no tickets", addr)
		}
	}

	switch r.State {
	case data.LockingForRandomness:
		if r.PendingRequestID == nil {
			return errors.Wrap(ErrCorruptRound, "locking without a pending request")
		}
	case data.ComputingPayout:
		if r.PendingWinner == "" {
			return errors.Wrap(ErrCorruptRound, "computing payout without a winner")
		}
	}

	return nil
}

func without(list []string, addr string) []string {
	res := list[:0:0]
	for _, a := range list {
		if a != addr {
			res = append(res, a)
		}
	}

	return res
}

func cloneWinner(w data.Winner) data.Winner {
	if w.Prize != nil {
		w.Prize = w.Prize.Clone()
	}
	if w.RandomWord != nil {
		w.RandomWord = w.RandomWord.Clone()
	}

	return w
}
