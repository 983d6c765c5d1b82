package token

import (
	"context"
	"sync"

	logger "github.com/ElrondNetwork/elrond-go-logger"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/DrDelphi/NoLossLottery/data"
)

var log = logger.GetOrCreate("token")

// Ledger is an in-process fungible token with ERC20 semantics plus a set of
// controllers allowed to mint and burn
type Ledger struct {
	mu sync.Mutex

	info        data.Token
	totalSupply *uint256.Int
	balances    map[string]*uint256.Int
	allowances  map[string]map[string]*uint256.Int
	controllers map[string]bool
}

// LedgerState is the persisted form of a Ledger
type LedgerState struct {
	TotalSupply *uint256.Int                       `json:"totalSupply"`
	Balances    map[string]*uint256.Int            `json:"balances"`
	Allowances  map[string]map[string]*uint256.Int `json:"allowances"`
}

// NewLedger creates an empty token ledger
func NewLedger(info data.Token, controllers ...string) *Ledger {
	l := &Ledger{
		info:        info,
		totalSupply: new(uint256.Int),
		balances:    make(map[string]*uint256.Int),
		allowances:  make(map[string]map[string]*uint256.Int),
		controllers: make(map[string]bool),
	}
	for _, c := range controllers {
		l.controllers[c] = true
	}

	return l
}

func (l *Ledger) Info() data.Token {
	return l.info
}

// AddController grants mint and burn rights to address
func (l *Ledger) AddController(address string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.controllers[address] = true
}

func (l *Ledger) BalanceOf(_ context.Context, holder string) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.balanceOf(holder).Clone(), nil
}

func (l *Ledger) TotalSupply() *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.totalSupply.Clone()
}

func (l *Ledger) Allowance(_ context.Context, owner, spender string) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.allowance(owner, spender).Clone(), nil
}

func (l *Ledger) Approve(_ context.Context, owner, spender string, amount *uint256.Int) error {
	if owner == "" || spender == "" {
		return ErrZeroAddress
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.allowances[owner] == nil {
		l.allowances[owner] = make(map[string]*uint256.Int)
	}
	l.allowances[owner][spender] = amount.Clone()
	log.Trace("approve", "token", l.info.Ticker, "owner", owner, "spender", spender, "amount", amount)

	return nil
}

func (l *Ledger) Transfer(_ context.Context, from, to string, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.transfer(from, to, amount)
}

func (l *Ledger) TransferFrom(_ context.Context, spender, from, to string, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	allowed := l.allowance(from, spender)
	if allowed.Lt(amount) {
		return errors.Wrapf(ErrInsufficientAllowance, "%s allowed %s to spend %s of %s, needs %s",
			from, spender, allowed, l.info.Ticker, amount)
	}
	if err := l.transfer(from, to, amount); err != nil {
		return err
	}
	if !amount.IsZero() {
		l.allowances[from][spender] = new(uint256.Int).Sub(allowed, amount)
	}

	return nil
}

func (l *Ledger) Mint(_ context.Context, controller, to string, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.controllers[controller] {
		return errors.Wrapf(ErrNotController, "%s can not mint %s", controller, l.info.Ticker)
	}
	if to == "" {
		return ErrZeroAddress
	}
	supply, overflow := new(uint256.Int).AddOverflow(l.totalSupply, amount)
	if overflow {
		return ErrOverflow
	}
	l.totalSupply = supply
	l.balances[to] = new(uint256.Int).Add(l.balanceOf(to), amount)
	log.Trace("mint", "token", l.info.Ticker, "to", to, "amount", amount)

	return nil
}

func (l *Ledger) Burn(_ context.Context, controller, from string, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.controllers[controller] {
		return errors.Wrapf(ErrNotController, "%s can not burn %s", controller, l.info.Ticker)
	}
	balance := l.balanceOf(from)
	if balance.Lt(amount) {
		return errors.Wrapf(ErrInsufficientBalance, "%s holds %s %s, burning %s", from, balance, l.info.Ticker, amount)
	}
	l.balances[from] = new(uint256.Int).Sub(balance, amount)
	l.totalSupply = new(uint256.Int).Sub(l.totalSupply, amount)
	log.Trace("burn", "token", l.info.Ticker, "from", from, "amount", amount)

	return nil
}

// State returns a deep copy of the ledger balances
func (l *Ledger) State() *LedgerState {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := &LedgerState{
		TotalSupply: l.totalSupply.Clone(),
		Balances:    make(map[string]*uint256.Int, len(l.balances)),
		Allowances:  make(map[string]map[string]*uint256.Int, len(l.allowances)),
	}
	for holder, balance := range l.balances {
		st.Balances[holder] = balance.Clone()
	}
	for owner, spenders := range l.allowances {
		st.Allowances[owner] = make(map[string]*uint256.Int, len(spenders))
		for spender, amount := range spenders {
			st.Allowances[owner][spender] = amount.Clone()
		}
	}

	return st
}

// Restore replaces the ledger balances with st
func (l *Ledger) Restore(st *LedgerState) error {
	if st == nil {
		return nil
	}

	sum := new(uint256.Int)
	for _, balance := range st.Balances {
		sum.Add(sum, balance)
	}
	if st.TotalSupply == nil || !sum.Eq(st.TotalSupply) {
		return errors.Wrapf(ErrCorruptState, "%s balances sum to %s", l.info.Ticker, sum)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.totalSupply = st.TotalSupply.Clone()
	l.balances = make(map[string]*uint256.Int, len(st.Balances))
	for holder, balance := range st.Balances {
		l.balances[holder] = balance.Clone()
	}
	l.allowances = make(map[string]map[string]*uint256.Int, len(st.Allowances))
	for owner, spenders := range st.Allowances {
		l.allowances[owner] = make(map[string]*uint256.Int, len(spenders))
		for spender, amount := range spenders {
			l.allowances[owner][spender] = amount.Clone()
		}
	}

	return nil
}

func (l *Ledger) transfer(from, to string, amount *uint256.Int) error {
	if to == "" {
		return ErrZeroAddress
	}
	balance := l.balanceOf(from)
	if balance.Lt(amount) {
		return errors.Wrapf(ErrInsufficientBalance, "%s holds %s %s, sending %s", from, balance, l.info.Ticker, amount)
	}
	l.balances[from] = new(uint256.Int).Sub(balance, amount)
	l.balances[to] = new(uint256.Int).Add(l.balanceOf(to), amount)
	log.Trace("transfer", "token", l.info.Ticker, "from", from, "to", to, "amount", amount)

	return nil
}

func (l *Ledger) balanceOf(holder string) *uint256.Int {
	if b, ok := l.balances[holder]; ok {
		return b
	}

	return new(uint256.Int)
}

func (l *Ledger) allowance(owner, spender string) *uint256.Int {
	if a, ok := l.allowances[owner][spender]; ok {
		return a
	}

	return new(uint256.Int)
}
