package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"

	"github.com/DrDelphi/NoLossLottery/utils"
)

func (b *Bot) privateCommandReceived(ctx context.Context, message *tgbotapi.Message) {
	cmd := message.Command()
	args := strings.TrimSpace(message.CommandArguments())

	user := b.getOrCreateUser(message.From)
	log.Info("private command received", "command", cmd, "args", args, "user", formatTgUser(message.From))

	switch cmd {
	case "start", "help":
		b.sendMessage(user.ID, helpMessage)
		b.mainMenu(user)
	case "info":
		b.sendLotteryInfo(ctx, user)
	case "winners":
		b.sendWinners(ctx, user.ID)
	case "wallet":
		if !utils.IsValidAddress(args) {
			b.sendMessage(user.ID, "⛔️ Usage: `/wallet erd1...`")
			return
		}
		b.setWallet(user.ID, args)
		b.sendMessage(user.ID, "✅ Wallet saved: `"+utils.ShortenAddress(args)+"`")
	case "tickets":
		address := args
		if address == "" {
			address = user.Wallet
		}
		b.sendTickets(ctx, user.ID, address)
	default:
		b.sendMessage(user.ID, "❔ Unknown command, try /help")
	}
}
