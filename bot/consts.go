package bot

import (
	"time"

	"github.com/pkg/errors"
)

var errNoGroup = errors.New("group chat not known yet")

const (
	menuInfo      = "ℹ️ Lottery Info"
	menuMyTickets = "🎫 My Tickets"
	menuWinners   = "🏆 Winners"
	menuMainHelp  = "📖 Help"
	menuAbout     = "©️ About"

	callbackRefresh = "REFRESH"
	callbackWinners = "WINNERS"

	pollInterval  = 6 * time.Second
	winnersToShow = 5

	aboutMessage = "*Made with ❤️ by* [@DrDelphi](https://t.me/DrDelphi)"
)

var stateLabels = map[string]string{
	"OPEN_TO_PLAY":           "🟢 Open to play",
	"LOCKING_FOR_RANDOMNESS": "🔒 Drawing the winner",
	"COMPUTING_PAYOUT":       "⏳ Paying the prize",
	"OPEN_TO_WITHDRAW":       "💸 Open to withdraw",
}

var helpMessage = "`Instructions`\n" +
	"\n" +
	"This bot follows a no-loss lottery: every ticket deposit is lent out, " +
	"the interest it earns is the prize and everybody keeps the deposit.\n\n" +
	"Rounds are announced on @NoLossLottery\n\n" +
	"`/wallet <address>` - remember your wallet\n" +
	"`/tickets [address]` - show active tickets\n" +
	"`/info` - current round\n" +
	"`/winners` - last winners\n" +
	"\n" +
	"🍀 Good luck!"
