package node

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	logger "github.com/ElrondNetwork/elrond-go-logger"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/DrDelphi/NoLossLottery/data"
	"github.com/DrDelphi/NoLossLottery/engine"
	"github.com/DrDelphi/NoLossLottery/keeper"
	"github.com/DrDelphi/NoLossLottery/metrics"
	"github.com/DrDelphi/NoLossLottery/store"
	"github.com/DrDelphi/NoLossLottery/token"
	"github.com/DrDelphi/NoLossLottery/utils"
	"github.com/DrDelphi/NoLossLottery/venue"
	"github.com/DrDelphi/NoLossLottery/vrf"
)

var log = logger.GetOrCreate("node")

var (
	keySnapshot     = []byte("engine/snapshot")
	keyWinnerPrefix = []byte("engine/winner/")
	keyStablecoin   = []byte("host/stablecoin")
	keyNative       = []byte("host/native")
	keyTickets      = []byte("host/tickets")
	keyVenue        = []byte("host/venue")
	keyVRF          = []byte("host/vrf")
)

const hostsSaveInterval = 30 * time.Second

// Accounts are the addresses derived from the operator seed
type Accounts struct {
	Admin       string
	Engine      string
	Venue       string
	Coordinator string
}

// Node wires the engine to its host services and keeps them persisted
type Node struct {
	cfg      *data.AppConfig
	db       *store.Store
	clock    utils.Clock
	accounts Accounts
	registry *prometheus.Registry

	stablecoin *token.Ledger
	native     *token.Ledger
	tickets    *token.Ledger
	market     *venue.Market
	coord      *vrf.Coordinator
	engine     *engine.Engine
	keeper     *keeper.Keeper

	// serializes snapshot writes
	mu sync.Mutex
}

// DeriveAccounts returns the well known accounts of seed
func DeriveAccounts(seed string) (Accounts, error) {
	var acc Accounts
	targets := []struct {
		index int64
		addr  *string
	}{
		{utils.AdminKeyIndex, &acc.Admin},
		{utils.EngineKeyIndex, &acc.Engine},
		{utils.VenueKeyIndex, &acc.Venue},
		{utils.CoordinatorKeyIndex, &acc.Coordinator},
	}
	for _, target := range targets {
		sk, err := utils.GetPrivateKeyFromSeed(seed, target.index)
		if err != nil {
			return acc, err
		}
		if *target.addr, err = utils.GetAddressFromPrivateKey(sk); err != nil {
			return acc, err
		}
	}

	return acc, nil
}

// New builds every component from cfg and restores the last snapshot
// found in db
func New(cfg *data.AppConfig, db *store.Store, clock utils.Clock) (*Node, error) {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	accounts, err := DeriveAccounts(cfg.Seedphrase)
	if err != nil {
		return nil, errors.Wrap(err, "derive accounts")
	}

	n := &Node{
		cfg:      cfg,
		db:       db,
		clock:    clock,
		accounts: accounts,
		registry: prometheus.NewRegistry(),
	}
	n.stablecoin = token.NewLedger(data.Token{Name: "USD Coin", Ticker: utils.StablecoinTicker, Decimals: 6}, accounts.Admin)
	n.native = token.NewLedger(data.Token{Name: "eGold", Ticker: utils.NativeTicker, Decimals: 18}, accounts.Admin)
	n.tickets = token.NewLedger(data.Token{Name: "Lottery Ticket", Ticker: utils.TicketTicker, Decimals: 18}, accounts.Engine)

	liquidityCap, err := utils.ParseBaseUnits(cfg.Venue.LiquidityCap)
	if err != nil {
		return nil, err
	}
	n.market = venue.NewMarket(venue.Config{
		Address:       accounts.Venue,
		Asset:         cfg.Venue.Asset,
		AnnualRateBps: cfg.Venue.AnnualRateBps,
		LiquidityCap:  liquidityCap,
	}, n.stablecoin, clock)

	n.coord, err = vrf.NewCoordinator(vrf.Config{
		Address:   accounts.Coordinator,
		SecretKey: vrf.SecretKeyFromSeed(cfg.Randomness.KeySeed),
		BlockTime: time.Duration(cfg.Randomness.BlockTimeSeconds) * time.Second,
	}, clock)
	if err != nil {
		return nil, err
	}

	collector, err := metrics.NewCollector(n.registry)
	if err != nil {
		return nil, err
	}
	engineCfg, err := n.engineConfig()
	if err != nil {
		return nil, err
	}
	n.engine, err = engine.New(engineCfg, engine.Dependencies{
		Stablecoin: n.stablecoin,
		Native:     n.native,
		Ledger:     n.tickets,
		Venue:      n.market,
		Randomness: n.coord,
		Persister:  n,
		Observer:   collector,
		Clock:      clock,
	})
	if err != nil {
		return nil, err
	}
	n.coord.Register(accounts.Engine, n.engine)
	n.keeper = keeper.New(n.engine, time.Duration(cfg.Keeper.IntervalSeconds)*time.Second)

	if err = n.load(); err != nil {
		return nil, err
	}

	return n, nil
}

func (n *Node) engineConfig() (engine.Config, error) {
	price, err := utils.ParseBaseUnits(n.cfg.Engine.TicketPrice)
	if err != nil {
		return engine.Config{}, err
	}
	fee, err := utils.ParseBaseUnits(n.cfg.Engine.EntryFee)
	if err != nil {
		return engine.Config{}, err
	}
	unit, err := utils.ParseBaseUnits(n.cfg.Engine.TicketUnit)
	if err != nil {
		return engine.Config{}, err
	}
	policy, err := engine.PolicyByName(n.cfg.Engine.PayoutPolicy)
	if err != nil {
		return engine.Config{}, err
	}

	return engine.Config{
		Address:           n.accounts.Engine,
		Admin:             n.accounts.Admin,
		Asset:             n.cfg.Venue.Asset,
		TicketPrice:       price,
		EntryFee:          fee,
		TicketUnit:        unit,
		PlayInterval:      time.Duration(n.cfg.Engine.PlayIntervalSeconds) * time.Second,
		WithdrawInterval:  time.Duration(n.cfg.Engine.WithdrawIntervalSeconds) * time.Second,
		RandomnessTimeout: time.Duration(n.cfg.Engine.RandomnessTimeoutSeconds) * time.Second,
		Randomness: data.RandomnessConfig{
			KeyHash:          n.coord.KeyHash(),
			Confirmations:    n.cfg.Randomness.Confirmations,
			CallbackGasLimit: n.cfg.Randomness.CallbackGasLimit,
			NumWords:         1,
		},
		Policy: policy,
	}, nil
}

// load restores the persisted state, on first start it funds the venue
// reserve instead
func (n *Node) load() error {
	found, err := n.db.Has(keyStablecoin)
	if err != nil {
		return err
	}
	if !found {
		return n.bootstrap()
	}

	var (
		stablecoin, native, tickets token.LedgerState
		market                      venue.MarketState
		coord                       vrf.CoordinatorState
	)
	hosts := []struct {
		key []byte
		v   interface{}
	}{
		{keyStablecoin, &stablecoin},
		{keyNative, &native},
		{keyTickets, &tickets},
		{keyVenue, &market},
		{keyVRF, &coord},
	}
	for _, h := range hosts {
		if err = n.db.GetJSON(h.key, h.v); err != nil {
			return errors.Wrapf(err, "load %s", h.key)
		}
	}

	if err = n.stablecoin.Restore(&stablecoin); err != nil {
		return err
	}
	if err = n.native.Restore(&native); err != nil {
		return err
	}
	if err = n.tickets.Restore(&tickets); err != nil {
		return err
	}
	if err = n.market.Restore(&market); err != nil {
		return err
	}
	if err = n.coord.Restore(&coord); err != nil {
		return err
	}

	var round engine.Round
	err = n.db.GetJSON(keySnapshot, &round)
	if n.db.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}

	return n.engine.Restore(&round)
}

func (n *Node) bootstrap() error {
	reserve, err := utils.ParseBaseUnits(n.cfg.Venue.Reserve)
	if err != nil {
		return err
	}
	if !reserve.IsZero() {
		err = n.stablecoin.Mint(context.Background(), n.accounts.Admin, n.accounts.Venue, reserve)
		if err != nil {
			return errors.Wrap(err, "fund venue reserve")
		}
	}
	log.Info("fresh state", "engine", n.accounts.Engine, "venue", n.accounts.Venue, "reserve", reserve)

	return n.SaveHosts()
}

// Persist writes the round and every host ledger in one batch
func (n *Node) Persist(_ context.Context, round *engine.Round) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	batch := n.db.NewBatch()
	batch.PutJSON(keySnapshot, round)
	for _, w := range round.Winners {
		batch.PutJSON(winnerKey(w.Round), w)
	}
	n.putHosts(batch)

	return n.db.Write(batch)
}

// SaveHosts persists the host ledgers alone, they change outside of engine
// operations through approvals and the faucet
func (n *Node) SaveHosts() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	batch := n.db.NewBatch()
	n.putHosts(batch)

	return n.db.Write(batch)
}

func (n *Node) putHosts(batch *store.Batch) {
	batch.PutJSON(keyStablecoin, n.stablecoin.State())
	batch.PutJSON(keyNative, n.native.State())
	batch.PutJSON(keyTickets, n.tickets.State())
	batch.PutJSON(keyVenue, n.market.State())
	batch.PutJSON(keyVRF, n.coord.State())
}

func winnerKey(round uint64) []byte {
	return append(append([]byte(nil), keyWinnerPrefix...), fmt.Sprintf("%020d", round)...)
}

// StoredWinners reads the winners history straight from db
func StoredWinners(db *store.Store) ([]data.Winner, error) {
	var winners []data.Winner
	err := db.Iterate(keyWinnerPrefix, func(_, val []byte) error {
		var w data.Winner
		if err := json.Unmarshal(val, &w); err != nil {
			return err
		}
		winners = append(winners, w)
		return nil
	})

	return winners, err
}

// Run drives the engine, the randomness coordinator and the keeper until
// ctx is done
func (n *Node) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return n.engine.Run(ctx)
	})
	g.Go(func() error {
		interval := time.Duration(n.cfg.Randomness.BlockTimeSeconds) * time.Second
		return n.coord.Run(ctx, interval)
	})
	g.Go(func() error {
		return n.keeper.Run(ctx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(hostsSaveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := n.SaveHosts(); err != nil {
					log.Error("save hosts", "error", err)
				}
			}
		}
	})
	log.Info("node started", "engine", n.accounts.Engine, "admin", n.accounts.Admin)

	err := g.Wait()
	if serr := n.SaveHosts(); serr != nil {
		log.Error("save hosts on shutdown", "error", serr)
	}

	return err
}

func (n *Node) Engine() *engine.Engine {
	return n.engine
}

func (n *Node) Coordinator() *vrf.Coordinator {
	return n.coord
}

func (n *Node) Market() *venue.Market {
	return n.market
}

func (n *Node) Accounts() Accounts {
	return n.accounts
}

// Gatherer exposes the node metrics registry
func (n *Node) Gatherer() prometheus.Gatherer {
	return n.registry
}

// Tokens returns the asset lookup served by the API
func (n *Node) Tokens() *Tokens {
	return &Tokens{node: n}
}

// Ledger returns the ledger of asset
func (n *Node) Ledger(asset string) (*token.Ledger, bool) {
	switch asset {
	case utils.StablecoinTicker:
		return n.stablecoin, true
	case utils.NativeTicker:
		return n.native, true
	case utils.TicketTicker:
		return n.tickets, true
	}

	return nil, false
}

// Tokens adapts the node ledgers to the API
type Tokens struct {
	node *Node
}

func (t *Tokens) Info(asset string) (data.Token, bool) {
	l, ok := t.node.Ledger(asset)
	if !ok {
		return data.Token{}, false
	}

	return l.Info(), true
}

func (t *Tokens) BalanceOf(ctx context.Context, asset, holder string) (*uint256.Int, error) {
	l, ok := t.node.Ledger(asset)
	if !ok {
		return nil, errors.Wrapf(venue.ErrUnknownAsset, "%q", asset)
	}

	return l.BalanceOf(ctx, holder)
}

func (t *Tokens) Approve(ctx context.Context, asset, owner, spender string, amount *uint256.Int) error {
	l, ok := t.node.Ledger(asset)
	if !ok {
		return errors.Wrapf(venue.ErrUnknownAsset, "%q", asset)
	}
	if err := l.Approve(ctx, owner, spender, amount); err != nil {
		return err
	}

	return t.node.SaveHosts()
}

// Mint credits amount to a caller from the admin account, tickets are only
// minted by the engine
func (t *Tokens) Mint(ctx context.Context, asset, to string, amount *uint256.Int) error {
	l, ok := t.node.Ledger(asset)
	if !ok {
		return errors.Wrapf(venue.ErrUnknownAsset, "%q", asset)
	}
	if err := l.Mint(ctx, t.node.accounts.Admin, to, amount); err != nil {
		return err
	}

	return t.node.SaveHosts()
}
