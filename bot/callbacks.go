package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
)

func (b *Bot) callbackQueryReceived(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if b.tgBot != nil {
		_, _ = b.tgBot.AnswerCallbackQuery(tgbotapi.NewCallback(callback.ID, ""))
	}
	user := b.getOrCreateUser(callback.From)
	log.Info("callback received", "callback", callback.Data, "user", formatTgUser(callback.From))

	switch callback.Data {
	case callbackRefresh:
		if callback.Message == nil {
			return
		}
		info, err := b.lottery.GetInfo(ctx)
		if err != nil {
			b.sendMessage(user.ID, "❗️ Lottery unavailable ("+err.Error()+")")
			return
		}
		msg := tgbotapi.NewEditMessageText(callback.Message.Chat.ID, callback.Message.MessageID, b.lotteryInfo(ctx, info, user))
		msg.ParseMode = tgbotapi.ModeMarkdown
		keyboard := infoKeyboard()
		msg.ReplyMarkup = &keyboard
		b.send(msg)
	case callbackWinners:
		b.sendWinners(ctx, user.ID)
	}
}
