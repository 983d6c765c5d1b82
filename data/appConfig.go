package data

// AppConfig holds the application configuration read from config.json
type AppConfig struct {
	Bot struct {
		Token   string `json:"token"`
		Owner   int64  `json:"owner"`
		Group   string `json:"group"`
		GroupID int64  `json:"groupID"`
	} `json:"bot"`
	Seedphrase string `json:"seed"`
	LogLevel   string `json:"logLevel"`
	DBPath     string `json:"dbPath"`
	Engine     struct {
		TicketPrice              string `json:"ticketPrice"`
		EntryFee                 string `json:"entryFee"`
		TicketUnit               string `json:"ticketUnit"`
		PlayIntervalSeconds      int64  `json:"playIntervalSeconds"`
		WithdrawIntervalSeconds  int64  `json:"withdrawIntervalSeconds"`
		RandomnessTimeoutSeconds int64  `json:"randomnessTimeoutSeconds"`
		PayoutPolicy             string `json:"payoutPolicy"`
	} `json:"engine"`
	Randomness struct {
		KeySeed          string `json:"keySeed"`
		Confirmations    uint16 `json:"confirmations"`
		CallbackGasLimit uint32 `json:"callbackGasLimit"`
		BlockTimeSeconds int64  `json:"blockTimeSeconds"`
	} `json:"randomness"`
	Venue struct {
		Asset         string `json:"asset"`
		AnnualRateBps uint64 `json:"annualRateBps"`
		Reserve       string `json:"reserve"`
		LiquidityCap  string `json:"liquidityCap"`
	} `json:"venue"`
	API struct {
		Listen         string   `json:"listen"`
		AllowedOrigins []string `json:"allowedOrigins"`
		Faucet         bool     `json:"faucet"`
	} `json:"api"`
	Metrics struct {
		Listen string `json:"listen"`
	} `json:"metrics"`
	Keeper struct {
		IntervalSeconds int64 `json:"intervalSeconds"`
	} `json:"keeper"`
	Network struct {
		API string `json:"api"`
	} `json:"network"`
}
