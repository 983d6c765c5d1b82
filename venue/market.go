package venue

import (
	"context"
	"sync"

	logger "github.com/ElrondNetwork/elrond-go-logger"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/DrDelphi/NoLossLottery/utils"
)

var log = logger.GetOrCreate("venue")

// Token is the part of the supplied asset the market needs
type Token interface {
	BalanceOf(ctx context.Context, holder string) (*uint256.Int, error)
	Transfer(ctx context.Context, from, to string, amount *uint256.Int) error
	TransferFrom(ctx context.Context, spender, from, to string, amount *uint256.Int) error
}

// Config describes one lending market
type Config struct {
	Address       string
	Asset         string
	AnnualRateBps uint64
	// LiquidityCap bounds a single withdrawal, nil or zero means unbounded
	LiquidityCap *uint256.Int
}

// Market is an in-process lending market for a single asset. Supplied funds
// accrue simple interest per second and can be withdrawn on demand as far as
// the market holds cash.
type Market struct {
	mu sync.Mutex

	cfg         Config
	token       Token
	clock       utils.Clock
	deposits    map[string]*uint256.Int
	lastAccrual int64
}

// MarketState is the persisted form of a Market
type MarketState struct {
	Deposits    map[string]*uint256.Int `json:"deposits"`
	LastAccrual int64                   `json:"lastAccrual"`
}

func NewMarket(cfg Config, token Token, clock utils.Clock) *Market {
	return &Market{
		cfg:         cfg,
		token:       token,
		clock:       clock,
		deposits:    make(map[string]*uint256.Int),
		lastAccrual: clock.Now().Unix(),
	}
}

// Address is the account that holds the market cash, suppliers approve it
func (m *Market) Address() string {
	return m.cfg.Address
}

func (m *Market) Asset() string {
	return m.cfg.Asset
}

// SetLiquidityCap changes the per withdrawal cap
func (m *Market) SetLiquidityCap(limit *uint256.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit == nil {
		m.cfg.LiquidityCap = nil
		return
	}
	m.cfg.LiquidityCap = limit.Clone()
}

// Supply pulls amount of asset from supplier, the market must be approved first
func (m *Market) Supply(ctx context.Context, asset, supplier string, amount *uint256.Int) error {
	if asset != m.cfg.Asset {
		return errors.Wrapf(ErrUnknownAsset, "supply %s", asset)
	}
	if amount.IsZero() {
		return ErrZeroAmount
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.accrue()
	if err := m.token.TransferFrom(ctx, m.cfg.Address, supplier, m.cfg.Address, amount); err != nil {
		return errors.Wrap(err, "pull supplied funds")
	}
	m.deposits[supplier] = new(uint256.Int).Add(m.deposit(supplier), amount)
	log.Debug("supply", "supplier", supplier, "amount", amount, "deposit", m.deposits[supplier])

	return nil
}

// Withdraw sends up to amount back to holder and returns what was actually
// paid. The payment is bounded by the holder deposit, the market cash and the
// liquidity cap.
func (m *Market) Withdraw(ctx context.Context, asset, holder string, amount *uint256.Int) (*uint256.Int, error) {
	if asset != m.cfg.Asset {
		return nil, errors.Wrapf(ErrUnknownAsset, "withdraw %s", asset)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.accrue()
	deposit := m.deposit(holder)
	if deposit.IsZero() {
		return nil, errors.Wrapf(ErrNothingSupplied, "holder %s", holder)
	}
	cash, err := m.token.BalanceOf(ctx, m.cfg.Address)
	if err != nil {
		return nil, err
	}

	actual := minAmount(amount, deposit, cash)
	if m.cfg.LiquidityCap != nil && !m.cfg.LiquidityCap.IsZero() {
		actual = minAmount(actual, m.cfg.LiquidityCap)
	}
	if actual.IsZero() {
		return actual.Clone(), nil
	}
	if err = m.token.Transfer(ctx, m.cfg.Address, holder, actual); err != nil {
		return nil, errors.Wrap(err, "pay withdrawal")
	}
	m.deposits[holder] = new(uint256.Int).Sub(deposit, actual)
	log.Debug("withdraw", "holder", holder, "requested", amount, "actual", actual, "left", m.deposits[holder])

	return actual.Clone(), nil
}

// BalanceOf returns the deposit of holder including accrued interest
func (m *Market) BalanceOf(_ context.Context, holder string) (*uint256.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.accrue()

	return m.deposit(holder).Clone(), nil
}

// AddInterest credits holder with amount of interest on top of the accrual
func (m *Market) AddInterest(holder string, amount *uint256.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.accrue()
	m.deposits[holder] = new(uint256.Int).Add(m.deposit(holder), amount)
}

func (m *Market) State() *MarketState {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := &MarketState{
		Deposits:    make(map[string]*uint256.Int, len(m.deposits)),
		LastAccrual: m.lastAccrual,
	}
	for holder, deposit := range m.deposits {
		st.Deposits[holder] = deposit.Clone()
	}

	return st
}

func (m *Market) Restore(st *MarketState) error {
	if st == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.deposits = make(map[string]*uint256.Int, len(st.Deposits))
	for holder, deposit := range st.Deposits {
		if deposit == nil {
			return errors.Errorf("nil deposit for %s", holder)
		}
		m.deposits[holder] = deposit.Clone()
	}
	m.lastAccrual = st.LastAccrual

	return nil
}

func (m *Market) accrue() {
	now := m.clock.Now().Unix()
	elapsed := now - m.lastAccrual
	if elapsed <= 0 {
		return
	}
	m.lastAccrual = now
	if m.cfg.AnnualRateBps == 0 {
		return
	}

	num := new(uint256.Int).Mul(uint256.NewInt(m.cfg.AnnualRateBps), uint256.NewInt(uint64(elapsed)))
	den := uint256.NewInt(10000 * secondsPerYear)
	for holder, deposit := range m.deposits {
		interest := new(uint256.Int).Mul(deposit, num)
		interest.Div(interest, den)
		if !interest.IsZero() {
			m.deposits[holder] = new(uint256.Int).Add(deposit, interest)
		}
	}
}

func (m *Market) deposit(holder string) *uint256.Int {
	if d, ok := m.deposits[holder]; ok {
		return d
	}

	return new(uint256.Int)
}

func minAmount(values ...*uint256.Int) *uint256.Int {
	res := values[0]
	for _, v := range values[1:] {
		if v.Lt(res) {
			res = v
		}
	}

	return res
}
