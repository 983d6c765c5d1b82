package data

import "github.com/holiman/uint256"

// EngineInfo is the read surface of the lottery engine
type EngineInfo struct {
	Address               string       `json:"address"`
	Admin                 string       `json:"admin"`
	Round                 uint64       `json:"round"`
	State                 State        `json:"state"`
	EntryFee              *uint256.Int `json:"entryFee"`
	TicketPrice           *uint256.Int `json:"ticketPrice"`
	TicketUnit            *uint256.Int `json:"ticketUnit"`
	TotalTickets          uint64       `json:"totalTickets"`
	Participants          int          `json:"participants"`
	Pool                  *uint256.Int `json:"pool"`
	VenueBalance          *uint256.Int `json:"venueBalance"`
	FeeBalance            *uint256.Int `json:"feeBalance"`
	LastPrize             *uint256.Int `json:"lastPrize"`
	LastTimestamp         int64        `json:"lastTimestamp"`
	EndOfPlayDeadline     int64        `json:"endOfPlayDeadline"`
	EndOfWithdrawDeadline int64        `json:"endOfWithdrawDeadline"`
	PendingRequestID      *RequestID   `json:"pendingRequestId,omitempty"`
	PendingWinner         string       `json:"pendingWinner,omitempty"`
	PayoutPolicy          string       `json:"payoutPolicy"`
}

// Winner is one entry of the winners history
type Winner struct {
	Round      uint64       `json:"round"`
	Address    string       `json:"address"`
	Prize      *uint256.Int `json:"prize"`
	RandomWord *uint256.Int `json:"randomWord"`
	Timestamp  int64        `json:"timestamp"`
}

// TicketInfo describes the active tickets of one participant
type TicketInfo struct {
	Address       string       `json:"address"`
	Tickets       uint64       `json:"tickets"`
	LedgerBalance *uint256.Int `json:"ledgerBalance"`
	Principal     *uint256.Int `json:"principal"`
}
