package vrf

import (
	"context"
	"crypto/ecdsa"
	"encoding/binary"
	"sort"
	"sync"
	"time"

	logger "github.com/ElrondNetwork/elrond-go-logger"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/vechain/go-ecvrf"
	"golang.org/x/crypto/sha3"

	"github.com/DrDelphi/NoLossLottery/data"
	"github.com/DrDelphi/NoLossLottery/utils"
)

var log = logger.GetOrCreate("vrf")

// Consumer receives the fulfilled randomness of its requests
type Consumer interface {
	OnRandomDelivered(ctx context.Context, caller string, id data.RequestID, words []*uint256.Int) error
}

// Config holds the coordinator settings
type Config struct {
	Address   string
	SecretKey []byte
	BlockTime time.Duration
}

// Request is one outstanding randomness request
type Request struct {
	ID          data.RequestID        `json:"id"`
	Requester   string                `json:"requester"`
	Alpha       []byte                `json:"alpha"`
	Config      data.RandomnessConfig `json:"config"`
	RequestedAt int64                 `json:"requestedAt"`
	ReadyAt     int64                 `json:"readyAt"`
}

// Proof is the public evidence of one fulfilled request
type Proof struct {
	ID          data.RequestID `json:"id"`
	Requester   string         `json:"requester"`
	PublicKey   []byte         `json:"publicKey"`
	Alpha       []byte         `json:"alpha"`
	Beta        []byte         `json:"beta"`
	Pi          []byte         `json:"pi"`
	Words       []*uint256.Int `json:"words"`
	FulfilledAt int64          `json:"fulfilledAt"`
	Delivered   bool           `json:"delivered"`
}

// CoordinatorState is the persisted form of a Coordinator
type CoordinatorState struct {
	Nonce   uint64     `json:"nonce"`
	Pending []*Request `json:"pending"`
	Proofs  []*Proof   `json:"proofs"`
}

// Coordinator is an in-process VRF randomness provider. Requests become
// fulfillable after their confirmation depth and are answered with an ECVRF
// proof over the request seed, so anybody holding the public key can check
// the delivered words.
type Coordinator struct {
	mu sync.Mutex

	address   string
	sk        *ecdsa.PrivateKey
	publicKey []byte
	keyHash   [32]byte
	blockTime time.Duration
	clock     utils.Clock

	nonce     uint64
	pending   map[data.RequestID]*Request
	proofs    map[data.RequestID]*Proof
	consumers map[string]Consumer
}

func NewCoordinator(cfg Config, clock utils.Clock) (*Coordinator, error) {
	if len(cfg.SecretKey) != 32 {
		return nil, errors.Wrapf(ErrInvalidSecretKey, "length %d", len(cfg.SecretKey))
	}
	priv := secp256k1.PrivKeyFromBytes(cfg.SecretKey)
	if priv.Key.IsZero() {
		return nil, ErrInvalidSecretKey
	}
	pub := priv.PubKey().SerializeCompressed()

	c := &Coordinator{
		address:   cfg.Address,
		sk:        priv.ToECDSA(),
		publicKey: pub,
		keyHash:   KeyHash(pub),
		blockTime: cfg.BlockTime,
		clock:     clock,
		pending:   make(map[data.RequestID]*Request),
		proofs:    make(map[data.RequestID]*Proof),
		consumers: make(map[string]Consumer),
	}
	log.Info("vrf coordinator ready", "address", c.address, "keyHash", data.RequestID(c.keyHash).String())

	return c, nil
}

// SecretKeyFromSeed derives a VRF secret key from an arbitrary seed string
func SecretKeyFromSeed(seed string) []byte {
	return keccak([]byte("vrf-key"), []byte(seed))
}

// KeyHash identifies a proving key, requests must name it
func KeyHash(publicKey []byte) [32]byte {
	var h [32]byte
	copy(h[:], keccak(publicKey))

	return h
}

func (c *Coordinator) Address() string {
	return c.address
}

func (c *Coordinator) KeyHash() [32]byte {
	return c.keyHash
}

func (c *Coordinator) PublicKey() []byte {
	return append([]byte(nil), c.publicKey...)
}

// Register routes the fulfillments of requester to consumer
func (c *Coordinator) Register(requester string, consumer Consumer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consumers[requester] = consumer
}

// RequestRandom records a new request and returns its id. The answer is
// delivered asynchronously once the confirmation depth has passed.
func (c *Coordinator) RequestRandom(_ context.Context, requester string, cfg data.RandomnessConfig) (data.RequestID, error) {
	if cfg.KeyHash != c.keyHash {
		return data.RequestID{}, ErrUnknownKeyHash
	}
	if cfg.NumWords == 0 || cfg.NumWords > MaxWords {
		return data.RequestID{}, errors.Wrapf(ErrInvalidConfig, "numWords %d", cfg.NumWords)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.nonce++
	nonce := make([]byte, 8)
	binary.BigEndian.PutUint64(nonce, c.nonce)

	var id data.RequestID
	copy(id[:], keccak(c.keyHash[:], []byte(requester), nonce))

	now := c.clock.Now()
	req := &Request{
		ID:          id,
		Requester:   requester,
		Alpha:       keccak(id[:], nonce),
		Config:      cfg,
		RequestedAt: now.Unix(),
		ReadyAt:     now.Add(time.Duration(cfg.Confirmations) * c.blockTime).Unix(),
	}
	c.pending[id] = req
	log.Debug("randomness requested", "id", id.String(), "requester", requester, "readyAt", req.ReadyAt)

	return id, nil
}

// Pending returns the outstanding requests ordered by request time
func (c *Coordinator) Pending() []*Request {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sortedPending()
}

// Fulfill proves the request and delivers its words to the registered
// consumer. The request is consumed even when the consumer rejects it.
func (c *Coordinator) Fulfill(ctx context.Context, id data.RequestID) error {
	c.mu.Lock()
	req, ok := c.pending[id]
	if !ok {
		c.mu.Unlock()
		return errors.Wrapf(ErrUnknownRequest, "id %s", id)
	}
	if c.clock.Now().Unix() < req.ReadyAt {
		c.mu.Unlock()
		return errors.Wrapf(ErrNotReady, "id %s ready at %d", id, req.ReadyAt)
	}
	consumer, ok := c.consumers[req.Requester]
	if !ok {
		c.mu.Unlock()
		return errors.Wrapf(ErrNoConsumer, "requester %s", req.Requester)
	}

	beta, pi, err := ecvrf.Secp256k1Sha256Tai.Prove(c.sk, req.Alpha)
	if err != nil {
		c.mu.Unlock()
		return errors.Wrap(err, "vrf prove")
	}
	proof := &Proof{
		ID:          id,
		Requester:   req.Requester,
		PublicKey:   c.PublicKey(),
		Alpha:       req.Alpha,
		Beta:        beta,
		Pi:          pi,
		Words:       expandWords(beta, req.Config.NumWords),
		FulfilledAt: c.clock.Now().Unix(),
	}
	delete(c.pending, id)
	c.proofs[id] = proof
	c.mu.Unlock()

	// the consumer may call back into RequestRandom, the lock must be released
	err = consumer.OnRandomDelivered(ctx, c.address, id, cloneWords(proof.Words))
	if err != nil {
		log.Warn("randomness delivery rejected", "id", id.String(), "requester", req.Requester, "error", err)
		return err
	}

	c.mu.Lock()
	proof.Delivered = true
	c.mu.Unlock()
	log.Debug("randomness delivered", "id", id.String(), "requester", req.Requester)

	return nil
}

// FulfillReady fulfills every request whose confirmation depth has passed
// and returns how many were delivered
func (c *Coordinator) FulfillReady(ctx context.Context) int {
	c.mu.Lock()
	now := c.clock.Now().Unix()
	var ready []data.RequestID
	for _, req := range c.sortedPending() {
		if req.ReadyAt <= now {
			ready = append(ready, req.ID)
		}
	}
	c.mu.Unlock()

	delivered := 0
	for _, id := range ready {
		if err := c.Fulfill(ctx, id); err == nil {
			delivered++
		}
	}

	return delivered
}

// Run fulfills ready requests every interval until ctx is done
func (c *Coordinator) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "block time %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.FulfillReady(ctx)
		}
	}
}

// Proof returns the proof of a fulfilled request
func (c *Coordinator) Proof(id data.RequestID) (*Proof, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.proofs[id]
	if !ok {
		return nil, false
	}
	cp := *p
	cp.Words = cloneWords(p.Words)

	return &cp, true
}

// Verify checks p against its public key and returns the proven words
func Verify(p *Proof) ([]*uint256.Int, error) {
	pub, err := secp256k1.ParsePubKey(p.PublicKey)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidProof, err.Error())
	}
	beta, err := ecvrf.Secp256k1Sha256Tai.Verify(pub.ToECDSA(), p.Alpha, p.Pi)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidProof, err.Error())
	}
	words := expandWords(beta, uint32(len(p.Words)))
	for i := range words {
		if p.Words[i] == nil || !words[i].Eq(p.Words[i]) {
			return nil, errors.Wrapf(ErrInvalidProof, "word %d does not match", i)
		}
	}

	return words, nil
}

func (c *Coordinator) State() *CoordinatorState {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := &CoordinatorState{
		Nonce:   c.nonce,
		Pending: c.sortedPending(),
		Proofs:  make([]*Proof, 0, len(c.proofs)),
	}
	for _, p := range c.proofs {
		st.Proofs = append(st.Proofs, p)
	}
	sort.Slice(st.Proofs, func(i, j int) bool {
		return st.Proofs[i].FulfilledAt < st.Proofs[j].FulfilledAt
	})

	return st
}

func (c *Coordinator) Restore(st *CoordinatorState) error {
	if st == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.nonce = st.Nonce
	c.pending = make(map[data.RequestID]*Request, len(st.Pending))
	for _, req := range st.Pending {
		if req.Config.KeyHash != c.keyHash {
			return errors.Wrapf(ErrUnknownKeyHash, "pending request %s", req.ID)
		}
		c.pending[req.ID] = req
	}
	c.proofs = make(map[data.RequestID]*Proof, len(st.Proofs))
	for _, p := range st.Proofs {
		c.proofs[p.ID] = p
	}

	return nil
}

func (c *Coordinator) sortedPending() []*Request {
	res := make([]*Request, 0, len(c.pending))
	for _, req := range c.pending {
		res = append(res, req)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].RequestedAt != res[j].RequestedAt {
			return res[i].RequestedAt < res[j].RequestedAt
		}
		return res[i].ID.String() < res[j].ID.String()
	})

	return res
}

func expandWords(beta []byte, n uint32) []*uint256.Int {
	words := make([]*uint256.Int, n)
	idx := make([]byte, 4)
	for i := uint32(0); i < n; i++ {
		binary.BigEndian.PutUint32(idx, i)
		words[i] = new(uint256.Int).SetBytes(keccak(beta, idx))
	}

	return words
}

func cloneWords(words []*uint256.Int) []*uint256.Int {
	res := make([]*uint256.Int, len(words))
	for i, w := range words {
		res[i] = w.Clone()
	}

	return res
}

func keccak(parts ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		h.Write(p)
	}

	return h.Sum(nil)
}
