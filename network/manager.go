package network

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	logger "github.com/ElrondNetwork/elrond-go-logger"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/DrDelphi/NoLossLottery/api"
	"github.com/DrDelphi/NoLossLottery/data"
	"github.com/DrDelphi/NoLossLottery/utils"
)

var log = logger.GetOrCreate("network")

// APIError is a failure answered by the lottery API
type APIError struct {
	Status   int
	Response data.ErrorResponse
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d %s)", e.Response.Error, e.Status, e.Response.Code)
}

// Code returns the machine readable error code
func (e *APIError) Code() string {
	return e.Response.Code
}

// NetworkManager - talks to a lottery node over its HTTP API
type NetworkManager struct {
	endpoint string
}

// NewNetworkManager - creates a new NetworkManager object for the node
// listening at endpoint
func NewNetworkManager(endpoint string) (*NetworkManager, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Wrapf(ErrInvalidEndpoint, "%q", endpoint)
	}

	return &NetworkManager{endpoint: strings.TrimRight(endpoint, "/")}, nil
}

func (nm *NetworkManager) get(ctx context.Context, path string, res interface{}) error {
	bytes, err := utils.GetHTTP(ctx, nm.endpoint+path)
	if err != nil {
		return apiError(err)
	}

	return decode(bytes, res)
}

func (nm *NetworkManager) post(ctx context.Context, path string, payload, res interface{}) error {
	bytes, err := utils.PostHTTP(ctx, nm.endpoint+path, payload)
	if err != nil {
		return apiError(err)
	}

	return decode(bytes, res)
}

// signedPost signs req for operation with privateKey and posts it
func (nm *NetworkManager) signedPost(ctx context.Context, path, operation string, privateKey []byte,
	req *data.SignedRequest, res interface{}) error {
	if err := utils.SignRequest(privateKey, operation, req); err != nil {
		return err
	}

	return nm.post(ctx, path, req, res)
}

func decode(bytes []byte, res interface{}) error {
	if res == nil {
		return nil
	}
	if len(bytes) == 0 {
		return errEmptyResponse
	}
	if err := json.Unmarshal(bytes, res); err != nil {
		return errors.Wrap(errInvalidResponse, err.Error())
	}

	return nil
}

// apiError turns an error status into an APIError when the body carries one
func apiError(err error) error {
	httpErr, ok := err.(*utils.HTTPError)
	if !ok {
		return err
	}
	res := &APIError{Status: httpErr.StatusCode}
	if jerr := json.Unmarshal(httpErr.Body, &res.Response); jerr != nil || res.Response.Code == "" {
		return err
	}

	return res
}

func (nm *NetworkManager) GetInfo(ctx context.Context) (*data.EngineInfo, error) {
	info := &data.EngineInfo{}
	if err := nm.get(ctx, "/lottery/info", info); err != nil {
		log.Debug("getInfo", "error", err)
		return nil, err
	}

	return info, nil
}

func (nm *NetworkManager) GetParticipants(ctx context.Context) ([]string, error) {
	participants := make([]string, 0)
	err := nm.get(ctx, "/lottery/participants", &participants)

	return participants, err
}

func (nm *NetworkManager) GetTickets(ctx context.Context, address string) (*data.TicketInfo, error) {
	tickets := &data.TicketInfo{}
	if err := nm.get(ctx, "/lottery/tickets/"+address, tickets); err != nil {
		return nil, err
	}

	return tickets, nil
}

func (nm *NetworkManager) GetWinners(ctx context.Context) ([]data.Winner, error) {
	winners := make([]data.Winner, 0)
	err := nm.get(ctx, "/lottery/winners", &winners)

	return winners, err
}

func (nm *NetworkManager) CheckUpkeep(ctx context.Context, path data.PathID) (bool, error) {
	res := &api.UpkeepResponse{}
	if err := nm.get(ctx, "/lottery/upkeep/"+string(path), res); err != nil {
		return false, err
	}

	return res.Ready, nil
}

// PerformUpkeep triggers path and returns the state the engine ended in
func (nm *NetworkManager) PerformUpkeep(ctx context.Context, path data.PathID) (data.State, error) {
	res := &api.UpkeepResponse{}
	if err := nm.post(ctx, "/lottery/upkeep/"+string(path), nil, res); err != nil {
		return 0, err
	}

	return res.State, nil
}

// Enter buys a ticket, payment is the entry fee in native base units
func (nm *NetworkManager) Enter(ctx context.Context, privateKey []byte, payment *uint256.Int) (*data.TicketInfo, error) {
	tickets := &data.TicketInfo{}
	req := &data.SignedRequest{Amount: payment.Dec()}
	if err := nm.signedPost(ctx, "/lottery/enter", api.OpEnter, privateKey, req, tickets); err != nil {
		return nil, err
	}

	return tickets, nil
}

func (nm *NetworkManager) Withdraw(ctx context.Context, privateKey []byte) (*uint256.Int, error) {
	return nm.amountCall(ctx, "/lottery/withdraw", api.OpWithdraw, privateKey, &data.SignedRequest{})
}

func (nm *NetworkManager) WithdrawFees(ctx context.Context, privateKey []byte) (*uint256.Int, error) {
	return nm.amountCall(ctx, "/lottery/admin/withdraw-fees", api.OpWithdrawFees, privateKey, &data.SignedRequest{})
}

func (nm *NetworkManager) ForceSupply(ctx context.Context, privateKey []byte) (*uint256.Int, error) {
	return nm.amountCall(ctx, "/lottery/admin/force-supply", api.OpForceSupply, privateKey, &data.SignedRequest{})
}

func (nm *NetworkManager) GetBalance(ctx context.Context, asset, address string) (*uint256.Int, data.Token, error) {
	res := &api.BalanceResponse{}
	if err := nm.get(ctx, fmt.Sprintf("/tokens/%s/balance/%s", asset, address), res); err != nil {
		return nil, data.Token{}, err
	}
	balance, err := utils.ParseBaseUnits(res.Balance)
	if err != nil {
		return nil, data.Token{}, errors.Wrap(errInvalidResponse, err.Error())
	}

	return balance, res.Token, nil
}

func (nm *NetworkManager) Approve(ctx context.Context, privateKey []byte, asset, spender string, amount *uint256.Int) error {
	req := &data.SignedRequest{Spender: spender, Amount: amount.Dec()}
	_, err := nm.amountCall(ctx, fmt.Sprintf("/tokens/%s/approve", asset), api.OpApprove+":"+asset, privateKey, req)

	return err
}

// Mint asks the development faucet for amount of asset
func (nm *NetworkManager) Mint(ctx context.Context, privateKey []byte, asset string, amount *uint256.Int) error {
	req := &data.SignedRequest{Amount: amount.Dec()}
	_, err := nm.amountCall(ctx, fmt.Sprintf("/tokens/%s/mint", asset), api.OpMint+":"+asset, privateKey, req)

	return err
}

func (nm *NetworkManager) GetProof(ctx context.Context, id data.RequestID) (*api.ProofResponse, error) {
	res := &api.ProofResponse{}
	if err := nm.get(ctx, "/randomness/proof/"+id.String(), res); err != nil {
		return nil, err
	}

	return res, nil
}

func (nm *NetworkManager) amountCall(ctx context.Context, path, operation string, privateKey []byte,
	req *data.SignedRequest) (*uint256.Int, error) {
	res := &api.AmountResponse{}
	if err := nm.signedPost(ctx, path, operation, privateKey, req, res); err != nil {
		return nil, err
	}
	amount, err := utils.ParseBaseUnits(res.Amount)
	if err != nil {
		return nil, errors.Wrap(errInvalidResponse, err.Error())
	}

	return amount, nil
}
