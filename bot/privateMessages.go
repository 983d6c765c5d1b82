package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
)

func (b *Bot) privateMessageReceived(ctx context.Context, message *tgbotapi.Message) {
	user := b.getOrCreateUser(message.From)
	log.Info("private message received", "message", message.Text, "user", formatTgUser(message.From))

	switch message.Text {
	case menuAbout:
		b.sendMessage(user.ID, aboutMessage)
	case menuMainHelp:
		b.sendMessage(user.ID, helpMessage)
	case menuInfo:
		b.sendLotteryInfo(ctx, user)
	case menuWinners:
		b.sendWinners(ctx, user.ID)
	case menuMyTickets:
		b.sendTickets(ctx, user.ID, user.Wallet)
	}
}
