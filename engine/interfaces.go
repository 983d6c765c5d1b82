package engine

import (
	"context"
	"time"

	"github.com/holiman/uint256"

	"github.com/DrDelphi/NoLossLottery/data"
)

// Token is a fungible asset the engine holds, the stablecoin or the native coin
type Token interface {
	BalanceOf(ctx context.Context, holder string) (*uint256.Int, error)
	Transfer(ctx context.Context, from, to string, amount *uint256.Int) error
	TransferFrom(ctx context.Context, spender, from, to string, amount *uint256.Int) error
	Approve(ctx context.Context, owner, spender string, amount *uint256.Int) error
}

// LedgerToken tracks active entries, the engine is one of its controllers
type LedgerToken interface {
	BalanceOf(ctx context.Context, holder string) (*uint256.Int, error)
	Mint(ctx context.Context, controller, to string, amount *uint256.Int) error
	Burn(ctx context.Context, controller, from string, amount *uint256.Int) error
}

// YieldVenue is the lending market the pool is supplied to
type YieldVenue interface {
	Address() string
	Supply(ctx context.Context, asset, supplier string, amount *uint256.Int) error
	Withdraw(ctx context.Context, asset, holder string, amount *uint256.Int) (*uint256.Int, error)
	BalanceOf(ctx context.Context, holder string) (*uint256.Int, error)
}

// RandomnessProvider answers requests asynchronously through OnRandomDelivered
type RandomnessProvider interface {
	Address() string
	RequestRandom(ctx context.Context, requester string, cfg data.RandomnessConfig) (data.RequestID, error)
}

// Persister stores the round after every successful operation
type Persister interface {
	Persist(ctx context.Context, round *Round) error
}

// Observer is told about every engine operation
type Observer interface {
	OperationDone(op string, took time.Duration, err error)
	Entered(caller string)
	Withdrew(caller string, amount *uint256.Int)
	Transitioned(path data.PathID, from, to data.State)
	UpkeepRejected(path data.PathID)
	WinnerPaid(winner data.Winner)
	RoundUpdated(round uint64, state data.State, totalTickets uint64, participants int)
}

type nopObserver struct{}

func (nopObserver) OperationDone(string, time.Duration, error) {}
func (nopObserver) Entered(string) {}
func (nopObserver) Withdrew(string, *uint256.Int) {}
func (nopObserver) Transitioned(data.PathID, data.State, data.State) {}
func (nopObserver) UpkeepRejected(data.PathID) {}
func (nopObserver) WinnerPaid(data.Winner) {}
func (nopObserver) RoundUpdated(uint64, data.State, uint64, int) {}
