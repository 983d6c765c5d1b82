package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/DrDelphi/NoLossLottery/data"
	"github.com/DrDelphi/NoLossLottery/engine"
	"github.com/DrDelphi/NoLossLottery/token"
	"github.com/DrDelphi/NoLossLottery/utils"
)

const JSONContentType = "application/json; charset=utf-8"

var (
	errReplayed       = errors.New("request already processed")
	errFaucetDisabled = errors.New("faucet disabled")
	errUnknownAsset   = errors.New("unknown asset")
)

type httpError struct {
	cause  error
	status int
	code   string
}

func (e *httpError) Error() string {
	return e.cause.Error()
}

func (e *httpError) Cause() error {
	return e.cause
}

// BadRequest wraps cause as a 400 answer
func BadRequest(cause error) error {
	return &httpError{cause: cause, status: http.StatusBadRequest, code: "BAD_REQUEST"}
}

// handlerFunc is like http.HandlerFunc but returns an error that is turned
// into a JSON error response
type handlerFunc func(http.ResponseWriter, *http.Request) error

func wrapHandlerFunc(f handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := f(w, r)
		if err == nil {
			return
		}
		status, resp := errorResponse(err)
		if status >= http.StatusInternalServerError {
			log.Warn("request failed", "method", r.Method, "uri", r.URL.String(), "status", status, "error", err)
		}
		w.Header().Set("Content-Type", JSONContentType)
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// errorResponse maps an error to its status code and body
func errorResponse(err error) (int, *data.ErrorResponse) {
	resp := &data.ErrorResponse{Error: err.Error()}

	var he *httpError
	if errors.As(err, &he) {
		resp.Code = he.code
		return he.status, resp
	}
	var nr *engine.UpkeepNotReadyError
	if errors.As(err, &nr) {
		resp.Code = "UPKEEP_NOT_READY"
		resp.Diagnostics = nr.Diagnostics()
		return http.StatusConflict, resp
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			resp.Code = m.code
			return m.status, resp
		}
	}
	resp.Code = "INTERNAL"

	return http.StatusInternalServerError, resp
}

var errorMappings = []struct {
	err    error
	status int
	code   string
}{
	{engine.ErrUnauthorized, http.StatusForbidden, "UNAUTHORIZED"},
	{engine.ErrInvalidState, http.StatusConflict, "INVALID_STATE"},
	{engine.ErrInsufficientPayment, http.StatusPaymentRequired, "INSUFFICIENT_PAYMENT"},
	{engine.ErrNoActiveTickets, http.StatusNotFound, "NO_ACTIVE_TICKETS"},
	{engine.ErrTransferFailed, http.StatusBadGateway, "TRANSFER_FAILED"},
	{engine.ErrStaleRequest, http.StatusConflict, "STALE_REQUEST"},
	{engine.ErrVenueAllowanceFailed, http.StatusBadGateway, "VENUE_ALLOWANCE_FAILED"},
	{engine.ErrUnknownPath, http.StatusNotFound, "UNKNOWN_PATH"},
	{engine.ErrEngineStopped, http.StatusServiceUnavailable, "ENGINE_STOPPED"},
	{utils.ErrInvalidSignature, http.StatusUnauthorized, "INVALID_SIGNATURE"},
	{utils.ErrExpiredSignature, http.StatusUnauthorized, "EXPIRED_SIGNATURE"},
	{utils.ErrInvalidAmount, http.StatusBadRequest, "INVALID_AMOUNT"},
	{errReplayed, http.StatusConflict, "REPLAYED"},
	{errFaucetDisabled, http.StatusNotFound, "FAUCET_DISABLED"},
	{errUnknownAsset, http.StatusNotFound, "UNKNOWN_ASSET"},
	{token.ErrInsufficientBalance, http.StatusBadRequest, "INSUFFICIENT_BALANCE"},
	{token.ErrInsufficientAllowance, http.StatusBadRequest, "INSUFFICIENT_ALLOWANCE"},
	{token.ErrNotController, http.StatusForbidden, "NOT_CONTROLLER"},
	{token.ErrZeroAddress, http.StatusBadRequest, "ZERO_ADDRESS"},
}

// parseJSON decodes a JSON object in strict mode
func parseJSON(r io.Reader, v interface{}) error {
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()

	return decoder.Decode(v)
}

func writeJSON(w http.ResponseWriter, obj interface{}) error {
	w.Header().Set("Content-Type", JSONContentType)

	return json.NewEncoder(w).Encode(obj)
}

// M shortcut for type map[string]interface{}
type M map[string]interface{}
