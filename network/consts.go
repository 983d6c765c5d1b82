package network

import "github.com/pkg/errors"

var (
	ErrInvalidEndpoint = errors.New("invalid api endpoint")

	errEmptyResponse   = errors.New("empty response body")
	errInvalidResponse = errors.New("malformed response body")
)
