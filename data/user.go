package data

// User - a telegram user following the lottery through the bot
type User struct {
	ID        int64  `json:"id"`
	UserName  string `json:"userName"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Wallet    string `json:"wallet"`
}
