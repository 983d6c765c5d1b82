package engine

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/DrDelphi/NoLossLottery/data"
)

var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInvalidState         = errors.New("invalid state")
	ErrInsufficientPayment  = errors.New("insufficient payment")
	ErrNoActiveTickets      = errors.New("no active tickets")
	ErrTransferFailed       = errors.New("transfer failed")
	ErrUpkeepNotReady       = errors.New("upkeep not ready")
	ErrStaleRequest         = errors.New("stale randomness request")
	ErrVenueAllowanceFailed = errors.New("venue allowance failed")

	ErrUnknownPath   = errors.New("unknown transition path")
	ErrEngineStopped = errors.New("engine stopped")
	ErrCorruptRound  = errors.New("corrupt round state")
	ErrInvalidConfig = errors.New("invalid engine config")
)

// UpkeepNotReadyError reports why a transition guard did not hold
type UpkeepNotReadyError struct {
	Path         data.PathID
	State        data.State
	Reason       string
	Balance      *uint256.Int
	VenueBalance *uint256.Int
	FeeBalance   *uint256.Int
	Participants int
}

func (e *UpkeepNotReadyError) Error() string {
	return fmt.Sprintf("%s: path %s in state %s: %s (balance %s, venue %s, fees %s, participants %d)",
		ErrUpkeepNotReady, e.Path, e.State, e.Reason, e.Balance, e.VenueBalance, e.FeeBalance, e.Participants)
}

func (e *UpkeepNotReadyError) Unwrap() error {
	return ErrUpkeepNotReady
}

// Diagnostics flattens the error for API responses
func (e *UpkeepNotReadyError) Diagnostics() map[string]string {
	return map[string]string{
		"path":         string(e.Path),
		"state":        e.State.String(),
		"reason":       e.Reason,
		"balance":      e.Balance.Dec(),
		"venueBalance": e.VenueBalance.Dec(),
		"feeBalance":   e.FeeBalance.Dec(),
		"participants": fmt.Sprint(e.Participants),
	}
}
