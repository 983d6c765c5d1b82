package api

import (
	"context"
	"net/http"
	"time"

	logger "github.com/ElrondNetwork/elrond-go-logger"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	lru "github.com/hashicorp/golang-lru"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/rs/cors"

	"github.com/DrDelphi/NoLossLottery/data"
	"github.com/DrDelphi/NoLossLottery/utils"
	"github.com/DrDelphi/NoLossLottery/vrf"
)

var log = logger.GetOrCreate("api")

const (
	requestIDHeader = "X-Request-ID"
	proofCacheSize  = 1024
)

// Engine is the lottery surface served by the API
type Engine interface {
	Info(ctx context.Context) (*data.EngineInfo, error)
	Participants(ctx context.Context) ([]string, error)
	Tickets(ctx context.Context, address string) (*data.TicketInfo, error)
	Winners(ctx context.Context) ([]data.Winner, error)
	CheckTransitionReady(ctx context.Context, path data.PathID) (bool, error)
	TriggerTransition(ctx context.Context, path data.PathID) error
	Enter(ctx context.Context, caller string, payment *uint256.Int) error
	Withdraw(ctx context.Context, caller string) (*uint256.Int, error)
	WithdrawFees(ctx context.Context, caller string) (*uint256.Int, error)
	ForceSupply(ctx context.Context, caller string) (*uint256.Int, error)
}

// Proofs looks up fulfilled randomness
type Proofs interface {
	Proof(id data.RequestID) (*vrf.Proof, bool)
}

// Tokens gives access to the assets by ticker
type Tokens interface {
	Info(asset string) (data.Token, bool)
	BalanceOf(ctx context.Context, asset, holder string) (*uint256.Int, error)
	Approve(ctx context.Context, asset, owner, spender string, amount *uint256.Int) error
	// Mint is the development faucet
	Mint(ctx context.Context, asset, to string, amount *uint256.Int) error
}

// Config holds the API settings
type Config struct {
	Listen            string
	AllowedOrigins    []string
	Faucet            bool
	SignatureValidity time.Duration
}

// Server exposes the engine over HTTP
type Server struct {
	cfg      Config
	engine   Engine
	proofs   Proofs
	tokens   Tokens
	clock    utils.Clock
	replays  *replayGuard
	verified *lru.Cache
	handler  http.Handler
}

func New(cfg Config, engine Engine, proofs Proofs, tokens Tokens, clock utils.Clock) (*Server, error) {
	if cfg.SignatureValidity == 0 {
		cfg.SignatureValidity = utils.DefaultSignatureValidity * time.Second
	}
	verified, err := lru.New(proofCacheSize)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		engine:   engine,
		proofs:   proofs,
		tokens:   tokens,
		clock:    clock,
		replays:  newReplayGuard(cfg.SignatureValidity),
		verified: verified,
	}

	router := mux.NewRouter()
	s.mountLottery(router.PathPrefix("/lottery").Subrouter())
	s.mountTokens(router.PathPrefix("/tokens").Subrouter())
	s.mountRandomness(router.PathPrefix("/randomness").Subrouter())
	router.NotFoundHandler = wrapHandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
		return &httpError{cause: errors.Errorf("no route for %s %s", r.Method, r.URL.Path), status: http.StatusNotFound, code: "NOT_FOUND"}
	})

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	handler := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
	}).Handler(router)
	s.handler = requestLogger(handler)

	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is done
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	log.Info("api listening", "address", s.cfg.Listen, "faucet", s.cfg.Faucet)

	select {
	case err := <-errc:
		return errors.Wrap(err, "api server")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// requestLogger tags every request with an id and logs its outcome
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		log.Debug("api request", "id", id, "method", r.Method, "uri", r.URL.String(),
			"status", rec.status, "took", time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// authenticate verifies a signed request and rejects replays
func (s *Server) authenticate(operation string, req *data.SignedRequest) error {
	if !utils.IsValidAddress(req.Caller) {
		return BadRequest(errors.Errorf("invalid caller %q", req.Caller))
	}
	now := s.clock.Now()
	if err := utils.VerifyRequest(operation, req, now, s.cfg.SignatureValidity); err != nil {
		return err
	}
	if !s.replays.accept(utils.SigningMessage(operation, req), req.Timestamp, now) {
		return errors.Wrapf(errReplayed, "%s by %s at %d", operation, req.Caller, req.Timestamp)
	}

	return nil
}

func (s *Server) readSigned(r *http.Request, operation string) (*data.SignedRequest, error) {
	var req data.SignedRequest
	if err := parseJSON(r.Body, &req); err != nil {
		return nil, BadRequest(errors.WithMessage(err, "body"))
	}
	if err := s.authenticate(operation, &req); err != nil {
		return nil, err
	}

	return &req, nil
}
