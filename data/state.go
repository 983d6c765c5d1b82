package data

import (
	"encoding/hex"
	"fmt"
)

// State is the phase the lottery engine is in
type State uint8

const (
	OpenToPlay State = iota
	LockingForRandomness
	ComputingPayout
	OpenToWithdraw
)

var stateNames = []string{"OPEN_TO_PLAY", "LOCKING_FOR_RANDOMNESS", "COMPUTING_PAYOUT", "OPEN_TO_WITHDRAW"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}

	return fmt.Sprintf("STATE(%d)", uint8(s))
}

// MarshalText encodes the state by name
func (s State) MarshalText() ([]byte, error) {
	if int(s) >= len(stateNames) {
		return nil, fmt.Errorf("unknown state %d", uint8(s))
	}

	return []byte(stateNames[s]), nil
}

// UnmarshalText decodes a state name
func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}

	return fmt.Errorf("unknown state %q", string(text))
}

// PathID names one transition path of the state machine
type PathID string

const (
	PathLock            PathID = "lock"
	PathPayout          PathID = "payout"
	PathReopen          PathID = "reopen"
	PathRetryRandomness PathID = "retry-randomness"

	// PathDelivery labels the randomness callback, it is not an upkeep path
	PathDelivery PathID = "delivery"
)

// TransitionPaths lists every path an upkeep driver should poll
var TransitionPaths = []PathID{PathLock, PathPayout, PathReopen, PathRetryRandomness}

// IsValid reports whether p is a known transition path
func (p PathID) IsValid() bool {
	for _, known := range TransitionPaths {
		if p == known {
			return true
		}
	}

	return false
}

// RequestID identifies one randomness request
type RequestID [32]byte

func (id RequestID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether the id is unset
func (id RequestID) IsZero() bool {
	return id == RequestID{}
}

// MarshalText encodes the id as hex
func (id RequestID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText decodes a hex encoded id
func (id *RequestID) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	if len(b) != len(id) {
		return fmt.Errorf("invalid request id length %d", len(b))
	}
	copy(id[:], b)

	return nil
}

// ParseRequestID decodes a hex request id
func ParseRequestID(s string) (RequestID, error) {
	var id RequestID
	err := id.UnmarshalText([]byte(s))

	return id, err
}

// RandomnessConfig is sent with every randomness request
type RandomnessConfig struct {
	KeyHash          [32]byte `json:"keyHash"`
	Confirmations    uint16   `json:"confirmations"`
	CallbackGasLimit uint32   `json:"callbackGasLimit"`
	NumWords         uint32   `json:"numWords"`
}
