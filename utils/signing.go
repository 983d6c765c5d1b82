package utils

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ElrondNetwork/elrond-go-crypto/signing"
	"github.com/ElrondNetwork/elrond-go-crypto/signing/ed25519"
	"github.com/ElrondNetwork/elrond-go-crypto/signing/ed25519/singlesig"
	"github.com/pkg/errors"

	"github.com/DrDelphi/NoLossLottery/data"
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrExpiredSignature = errors.New("signature expired")
)

var (
	keyGen = signing.NewKeyGenerator(ed25519.NewEd25519())
	signer = &singlesig.Ed25519Signer{}
)

// SigningMessage is the byte string a caller signs for an API operation
func SigningMessage(operation string, req *data.SignedRequest) []byte {
	return []byte(fmt.Sprintf("%s|%s|%s|%s|%d", operation, req.Caller, req.Amount, req.Spender, req.Timestamp))
}

// SignRequest fills in caller, timestamp and signature of req
func SignRequest(privBytes []byte, operation string, req *data.SignedRequest) error {
	address, err := GetAddressFromPrivateKey(privBytes)
	if err != nil {
		return err
	}
	req.Caller = address
	if req.Timestamp == 0 {
		req.Timestamp = time.Now().Unix()
	}

	sig, err := Sign(privBytes, SigningMessage(operation, req))
	if err != nil {
		return err
	}
	req.Signature = hex.EncodeToString(sig)

	return nil
}

// VerifyRequest checks the signature of req against the caller address and
// rejects requests older than validity
func VerifyRequest(operation string, req *data.SignedRequest, now time.Time, validity time.Duration) error {
	ts := time.Unix(req.Timestamp, 0)
	if now.Sub(ts) > validity || ts.Sub(now) > validity {
		return errors.Wrapf(ErrExpiredSignature, "timestamp %d", req.Timestamp)
	}

	sig, err := hex.DecodeString(req.Signature)
	if err != nil {
		return errors.Wrap(ErrInvalidSignature, err.Error())
	}

	return VerifySignature(req.Caller, SigningMessage(operation, req), sig)
}

func Sign(privBytes []byte, msg []byte) ([]byte, error) {
	sk, err := keyGen.PrivateKeyFromByteArray(privBytes)
	if err != nil {
		return nil, err
	}

	return signer.Sign(sk, msg)
}

// VerifySignature checks sig over msg against the key behind address
func VerifySignature(address string, msg []byte, sig []byte) error {
	pubBytes, err := DecodeAddress(address)
	if err != nil {
		return err
	}
	pk, err := keyGen.PublicKeyFromByteArray(pubBytes)
	if err != nil {
		return errors.Wrap(ErrInvalidSignature, err.Error())
	}
	if err = signer.Verify(pk, msg, sig); err != nil {
		return errors.Wrap(ErrInvalidSignature, err.Error())
	}

	return nil
}
