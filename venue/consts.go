package venue

import "github.com/pkg/errors"

const secondsPerYear = 365 * 24 * 3600

var (
	ErrUnknownAsset    = errors.New("unknown asset")
	ErrZeroAmount      = errors.New("zero amount")
	ErrNothingSupplied = errors.New("nothing supplied")
)
