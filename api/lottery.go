package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/DrDelphi/NoLossLottery/data"
	"github.com/DrDelphi/NoLossLottery/utils"
)

// signed operation names
const (
	OpEnter        = "enter"
	OpWithdraw     = "withdraw"
	OpWithdrawFees = "withdraw-fees"
	OpForceSupply  = "force-supply"
	OpApprove      = "approve"
	OpMint         = "mint"
)

// UpkeepResponse answers upkeep checks and triggers
type UpkeepResponse struct {
	Path  data.PathID `json:"path"`
	Ready bool        `json:"ready"`
	State data.State  `json:"state,omitempty"`
}

// AmountResponse carries the amount moved by an operation
type AmountResponse struct {
	Amount string `json:"amount"`
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) error {
	info, err := s.engine.Info(r.Context())
	if err != nil {
		return err
	}

	return writeJSON(w, info)
}

func (s *Server) handleParticipants(w http.ResponseWriter, r *http.Request) error {
	participants, err := s.engine.Participants(r.Context())
	if err != nil {
		return err
	}

	return writeJSON(w, participants)
}

func (s *Server) handleTickets(w http.ResponseWriter, r *http.Request) error {
	address := mux.Vars(r)["address"]
	if !utils.IsValidAddress(address) {
		return BadRequest(errors.Errorf("invalid address %q", address))
	}
	tickets, err := s.engine.Tickets(r.Context(), address)
	if err != nil {
		return err
	}

	return writeJSON(w, tickets)
}

func (s *Server) handleWinners(w http.ResponseWriter, r *http.Request) error {
	winners, err := s.engine.Winners(r.Context())
	if err != nil {
		return err
	}

	return writeJSON(w, winners)
}

func (s *Server) handleCheckUpkeep(w http.ResponseWriter, r *http.Request) error {
	path := data.PathID(mux.Vars(r)["path"])
	ready, err := s.engine.CheckTransitionReady(r.Context(), path)
	if err != nil {
		return err
	}

	return writeJSON(w, &UpkeepResponse{Path: path, Ready: ready})
}

// handlePerformUpkeep is open to anybody, the engine re-checks the guard
func (s *Server) handlePerformUpkeep(w http.ResponseWriter, r *http.Request) error {
	path := data.PathID(mux.Vars(r)["path"])
	if err := s.engine.TriggerTransition(r.Context(), path); err != nil {
		return err
	}
	info, err := s.engine.Info(r.Context())
	if err != nil {
		return err
	}

	return writeJSON(w, &UpkeepResponse{Path: path, Ready: true, State: info.State})
}

func (s *Server) handleEnter(w http.ResponseWriter, r *http.Request) error {
	req, err := s.readSigned(r, OpEnter)
	if err != nil {
		return err
	}
	payment, err := utils.ParseBaseUnits(req.Amount)
	if err != nil {
		return BadRequest(err)
	}
	if err = s.engine.Enter(r.Context(), req.Caller, payment); err != nil {
		return err
	}
	tickets, err := s.engine.Tickets(r.Context(), req.Caller)
	if err != nil {
		return err
	}

	return writeJSON(w, tickets)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) error {
	req, err := s.readSigned(r, OpWithdraw)
	if err != nil {
		return err
	}
	amount, err := s.engine.Withdraw(r.Context(), req.Caller)
	if err != nil {
		return err
	}

	return writeJSON(w, &AmountResponse{Amount: amount.Dec()})
}

func (s *Server) handleWithdrawFees(w http.ResponseWriter, r *http.Request) error {
	req, err := s.readSigned(r, OpWithdrawFees)
	if err != nil {
		return err
	}
	amount, err := s.engine.WithdrawFees(r.Context(), req.Caller)
	if err != nil {
		return err
	}

	return writeJSON(w, &AmountResponse{Amount: amount.Dec()})
}

func (s *Server) handleForceSupply(w http.ResponseWriter, r *http.Request) error {
	req, err := s.readSigned(r, OpForceSupply)
	if err != nil {
		return err
	}
	amount, err := s.engine.ForceSupply(r.Context(), req.Caller)
	if err != nil {
		return err
	}

	return writeJSON(w, &AmountResponse{Amount: amount.Dec()})
}

func (s *Server) mountLottery(sub *mux.Router) {
	sub.Path("/info").Methods(http.MethodGet).HandlerFunc(wrapHandlerFunc(s.handleInfo))
	sub.Path("/participants").Methods(http.MethodGet).HandlerFunc(wrapHandlerFunc(s.handleParticipants))
	sub.Path("/tickets/{address}").Methods(http.MethodGet).HandlerFunc(wrapHandlerFunc(s.handleTickets))
	sub.Path("/winners").Methods(http.MethodGet).HandlerFunc(wrapHandlerFunc(s.handleWinners))
	sub.Path("/upkeep/{path}").Methods(http.MethodGet).HandlerFunc(wrapHandlerFunc(s.handleCheckUpkeep))
	sub.Path("/upkeep/{path}").Methods(http.MethodPost).HandlerFunc(wrapHandlerFunc(s.handlePerformUpkeep))
	sub.Path("/enter").Methods(http.MethodPost).HandlerFunc(wrapHandlerFunc(s.handleEnter))
	sub.Path("/withdraw").Methods(http.MethodPost).HandlerFunc(wrapHandlerFunc(s.handleWithdraw))
	sub.Path("/admin/withdraw-fees").Methods(http.MethodPost).HandlerFunc(wrapHandlerFunc(s.handleWithdrawFees))
	sub.Path("/admin/force-supply").Methods(http.MethodPost).HandlerFunc(wrapHandlerFunc(s.handleForceSupply))
}
