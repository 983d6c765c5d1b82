package engine

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/DrDelphi/NoLossLottery/utils"
)

// PayoutPolicy computes what a withdrawing participant is owed
type PayoutPolicy interface {
	Name() string
	AmountDue(tickets uint64, ticketPrice, pool *uint256.Int, totalTickets uint64) *uint256.Int
}

// FlatPolicy returns exactly the principal, yield only ever goes to winners
type FlatPolicy struct{}

func (FlatPolicy) Name() string {
	return utils.PayoutPolicyFlat
}

func (FlatPolicy) AmountDue(tickets uint64, ticketPrice, _ *uint256.Int, _ uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(tickets), ticketPrice)
}

// ProportionalPolicy returns a share of the current pool, interest included.
// Experimental.
type ProportionalPolicy struct{}

func (ProportionalPolicy) Name() string {
	return utils.PayoutPolicyProportional
}

func (ProportionalPolicy) AmountDue(tickets uint64, _, pool *uint256.Int, totalTickets uint64) *uint256.Int {
	if totalTickets == 0 {
		return new(uint256.Int)
	}
	due := new(uint256.Int).Mul(uint256.NewInt(tickets), pool)

	return due.Div(due, uint256.NewInt(totalTickets))
}

// PolicyByName resolves a configured policy, empty means flat
func PolicyByName(name string) (PayoutPolicy, error) {
	switch name {
	case "", utils.PayoutPolicyFlat:
		return FlatPolicy{}, nil
	case utils.PayoutPolicyProportional:
		return ProportionalPolicy{}, nil
	}

	return nil, errors.Wrapf(ErrInvalidConfig, "unknown payout policy %q", name)
}
