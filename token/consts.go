package token

import "github.com/pkg/errors"

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrNotController         = errors.New("caller is not a token controller")
	ErrZeroAddress           = errors.New("empty address")
	ErrOverflow              = errors.New("amount overflow")
	ErrCorruptState          = errors.New("corrupt ledger state")
)
