package utils

const (
	DefaultConfigPath = "config.json"

	// account indexes derived from the operator seed
	AdminKeyIndex       = 0
	EngineKeyIndex      = 1
	VenueKeyIndex       = 2
	CoordinatorKeyIndex = 3

	DefaultTicketUnit        = "1000000000000000000"
	DefaultKeeperInterval    = 5
	DefaultSignatureValidity = 300

	PayoutPolicyFlat         = "flat"
	PayoutPolicyProportional = "proportional"

	StablecoinTicker = "USDC"
	NativeTicker     = "EGLD"
	TicketTicker     = "TICKET"
)
