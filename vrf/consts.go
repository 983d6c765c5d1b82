package vrf

import "github.com/pkg/errors"

// MaxWords bounds the number of words one request can ask for
const MaxWords = 16

var (
	ErrUnknownKeyHash   = errors.New("unknown key hash")
	ErrInvalidConfig    = errors.New("invalid randomness config")
	ErrUnknownRequest   = errors.New("unknown randomness request")
	ErrNotReady         = errors.New("randomness request not ready")
	ErrNoConsumer       = errors.New("no consumer registered for requester")
	ErrInvalidProof     = errors.New("invalid vrf proof")
	ErrInvalidSecretKey = errors.New("invalid vrf secret key")
)
