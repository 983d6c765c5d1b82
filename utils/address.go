package utils

import (
	"github.com/ElrondNetwork/elrond-go-core/core"
	"github.com/ElrondNetwork/elrond-go-core/core/pubkeyConverter"
	logger "github.com/ElrondNetwork/elrond-go-logger"
	"github.com/btcsuite/btcutil/bech32"
	"github.com/pkg/errors"
)

const (
	AddressHRP = "erd"
	AddressLen = 32
)

var log = logger.GetOrCreate("utils")

var converter core.PubkeyConverter

func init() {
	conv, err := pubkeyConverter.NewBech32PubkeyConverter(AddressLen, log)
	if err != nil {
		panic(err)
	}
	converter = conv
}

// DecodeAddress returns the public key behind a bech32 address
func DecodeAddress(address string) ([]byte, error) {
	pubkey, err := converter.Decode(address)
	if err != nil {
		return nil, errors.Wrapf(err, "decode address %q", address)
	}

	return pubkey, nil
}

// EncodeAddress returns the bech32 address of a public key
func EncodeAddress(pubkey []byte) string {
	conv, err := bech32.ConvertBits(pubkey, 8, 5, true)
	if err != nil {
		log.Warn("encode address", "error", err)
		return ""
	}
	address, err := bech32.Encode(AddressHRP, conv)
	if err != nil {
		log.Warn("encode address", "error", err)
		return ""
	}

	return address
}

// IsValidAddress reports whether address is a well formed bech32 address
func IsValidAddress(address string) bool {
	_, err := converter.Decode(address)

	return err == nil
}

func ShortenAddress(address string) string {
	l := len(address)
	if l < 14 {
		return address
	}

	return address[:8] + "..." + address[l-6:]
}
