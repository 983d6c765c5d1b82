package utils

import (
	"math"

	erdData "github.com/ElrondNetwork/elrond-sdk-erdgo/data"
	"github.com/ElrondNetwork/elrond-sdk-erdgo/interactors"
	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip39"
)

var (
	ErrInvalidMnemonic = errors.New("invalid mnemonic")
	ErrInvalidKeyIndex = errors.New("invalid key index")

	wallet = interactors.NewWallet()
)

// NewMnemonic generates a fresh 24 words operator seed
func NewMnemonic() (string, error) {
	mnemonic, err := wallet.GenerateMnemonic()
	if err != nil {
		return "", err
	}

	return string(mnemonic), nil
}

// GetPrivateKeyFromSeed derives the ed25519 private key of the account with
// the given index from a bip39 mnemonic, path m/44'/508'/0'/0'/index'
func GetPrivateKeyFromSeed(mnemonic string, index int64) ([]byte, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	if index < 0 || index > math.MaxUint32 {
		return nil, errors.Wrapf(ErrInvalidKeyIndex, "%d", index)
	}

	return wallet.GetPrivateKeyFromMnemonic(erdData.Mnemonic(mnemonic), 0, uint32(index)), nil
}

func GetAddressFromPrivateKey(privBytes []byte) (string, error) {
	address, err := wallet.GetAddressFromPrivateKey(privBytes)
	if err != nil {
		return "", err
	}

	return address.AddressAsBech32String(), nil
}

// SavePemFile writes the private key in the wallet PEM layout
func SavePemFile(filename string, privBytes []byte) error {
	return wallet.SavePrivateKeyToPemFile(privBytes, filename)
}

// LoadPemFile reads a private key written by SavePemFile or by a wallet
func LoadPemFile(filename string) ([]byte, error) {
	sk, err := wallet.LoadPrivateKeyFromPemFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", filename)
	}

	return sk, nil
}
