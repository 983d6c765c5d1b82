package data

// Token describes one of the assets the lottery moves around
type Token struct {
	Name     string `json:"name"`
	Ticker   string `json:"ticker"`
	Decimals int32  `json:"decimals"`
}

// SignedRequest carries an authenticated call to the lottery API
type SignedRequest struct {
	Caller    string `json:"caller"`
	Amount    string `json:"amount,omitempty"`
	Spender   string `json:"spender,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Signature string `json:"signature"`
}

// ErrorResponse is returned by the API on failure
type ErrorResponse struct {
	Error       string            `json:"error"`
	Code        string            `json:"code"`
	Diagnostics map[string]string `json:"diagnostics,omitempty"`
}
