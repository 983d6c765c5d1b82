package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/DrDelphi/NoLossLottery/data"
	"github.com/DrDelphi/NoLossLottery/utils"
)

// BalanceResponse is the balance of one holder
type BalanceResponse struct {
	Token   data.Token `json:"token"`
	Address string     `json:"address"`
	Balance string     `json:"balance"`
}

func (s *Server) asset(r *http.Request) (string, data.Token, error) {
	asset := mux.Vars(r)["asset"]
	info, ok := s.tokens.Info(asset)
	if !ok {
		return "", data.Token{}, errors.Wrapf(errUnknownAsset, "%q", asset)
	}

	return asset, info, nil
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) error {
	asset, info, err := s.asset(r)
	if err != nil {
		return err
	}
	address := mux.Vars(r)["address"]
	if !utils.IsValidAddress(address) {
		return BadRequest(errors.Errorf("invalid address %q", address))
	}
	balance, err := s.tokens.BalanceOf(r.Context(), asset, address)
	if err != nil {
		return err
	}

	return writeJSON(w, &BalanceResponse{Token: info, Address: address, Balance: balance.Dec()})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) error {
	asset, _, err := s.asset(r)
	if err != nil {
		return err
	}
	req, err := s.readSigned(r, OpApprove+":"+asset)
	if err != nil {
		return err
	}
	if !utils.IsValidAddress(req.Spender) {
		return BadRequest(errors.Errorf("invalid spender %q", req.Spender))
	}
	amount, err := utils.ParseBaseUnits(req.Amount)
	if err != nil {
		return BadRequest(err)
	}
	if err = s.tokens.Approve(r.Context(), asset, req.Caller, req.Spender, amount); err != nil {
		return err
	}

	return writeJSON(w, &AmountResponse{Amount: amount.Dec()})
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) error {
	if !s.cfg.Faucet {
		return errFaucetDisabled
	}
	asset, _, err := s.asset(r)
	if err != nil {
		return err
	}
	req, err := s.readSigned(r, OpMint+":"+asset)
	if err != nil {
		return err
	}
	amount, err := utils.ParseBaseUnits(req.Amount)
	if err != nil {
		return BadRequest(err)
	}
	if err = s.tokens.Mint(r.Context(), asset, req.Caller, amount); err != nil {
		return err
	}
	log.Info("faucet mint", "asset", asset, "to", req.Caller, "amount", amount)

	return writeJSON(w, &AmountResponse{Amount: amount.Dec()})
}

func (s *Server) mountTokens(sub *mux.Router) {
	sub.Path("/{asset}/balance/{address}").Methods(http.MethodGet).HandlerFunc(wrapHandlerFunc(s.handleBalance))
	sub.Path("/{asset}/approve").Methods(http.MethodPost).HandlerFunc(wrapHandlerFunc(s.handleApprove))
	sub.Path("/{asset}/mint").Methods(http.MethodPost).HandlerFunc(wrapHandlerFunc(s.handleMint))
}
