package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	logger "github.com/ElrondNetwork/elrond-go-logger"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/holiman/uint256"

	"github.com/DrDelphi/NoLossLottery/config"
	"github.com/DrDelphi/NoLossLottery/data"
	"github.com/DrDelphi/NoLossLottery/utils"
)

var log = logger.GetOrCreate("bot")

// Sender is the part of the telegram API the bot talks through
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Lottery is the read surface the bot follows
type Lottery interface {
	GetInfo(ctx context.Context) (*data.EngineInfo, error)
	GetTickets(ctx context.Context, address string) (*data.TicketInfo, error)
	GetWinners(ctx context.Context) ([]data.Winner, error)
	GetBalance(ctx context.Context, asset, address string) (*uint256.Int, data.Token, error)
}

// Bot - holds the required fields of the bot application
type Bot struct {
	tgBot   *tgbotapi.BotAPI
	sender  Sender
	cfg     *data.AppConfig
	lottery Lottery

	mu          sync.Mutex
	groupID     int64
	users       map[int64]*data.User
	last        *data.EngineInfo
	infoMessage int
	decimals    int32
}

// NewBot - creates a new Bot object
func NewBot(cfg *data.AppConfig, lottery Lottery) (*Bot, error) {
	tgBot, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		log.Error("can not create telegram bot", "error", err)
		return nil, err
	}

	b := newBot(cfg, lottery, tgBot)
	b.tgBot = tgBot
	if cfg.Bot.Group != "" {
		helpMessage = strings.ReplaceAll(helpMessage, "NoLossLottery", cfg.Bot.Group)
	}

	return b, nil
}

func newBot(cfg *data.AppConfig, lottery Lottery, sender Sender) *Bot {
	return &Bot{
		sender:   sender,
		cfg:      cfg,
		lottery:  lottery,
		groupID:  cfg.Bot.GroupID,
		users:    make(map[int64]*data.User),
		decimals: -1,
	}
}

// StartTasks - follows the lottery and answers private chats until ctx is done
func (b *Bot) StartTasks(ctx context.Context) error {
	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			b.poll(ctx)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates, err := b.tgBot.GetUpdatesChan(u)
	if err != nil {
		log.Error("can not get Telegram bot updates", "error", err)
		return err
	}
	updates.Clear()
	for {
		select {
		case <-ctx.Done():
			b.tgBot.StopReceivingUpdates()
			return nil
		case update := <-updates:
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		b.callbackQueryReceived(ctx, update.CallbackQuery)
		return
	}
	if update.Message == nil {
		return
	}
	if update.Message.Chat.IsPrivate() {
		if update.Message.IsCommand() {
			b.privateCommandReceived(ctx, update.Message)
			return
		}
		b.privateMessageReceived(ctx, update.Message)
		return
	}

	// public
	b.mu.Lock()
	if b.groupID == 0 && update.Message.Chat.UserName == b.cfg.Bot.Group {
		b.groupID = update.Message.Chat.ID
		b.cfg.Bot.GroupID = b.groupID
		if err := config.Save(b.cfg); err != nil {
			log.Warn("can not save group id", "error", err)
		}
	}
	b.mu.Unlock()
	if update.Message.IsCommand() {
		b.send(tgbotapi.DeleteMessageConfig{ChatID: update.Message.Chat.ID, MessageID: update.Message.MessageID})
	}
}

// poll compares the lottery with the last seen state and announces the
// difference to the group
func (b *Bot) poll(ctx context.Context) {
	info, err := b.lottery.GetInfo(ctx)
	if err != nil {
		if ctx.Err() == nil {
			b.reportError("Unable to get lottery info. Error: " + err.Error())
		}
		return
	}

	b.mu.Lock()
	last := b.last
	b.last = info
	b.mu.Unlock()

	switch {
	case last == nil || last.Round != info.Round || last.State != info.State:
		if last != nil {
			b.announceTransition(ctx, last, info)
		}
		msg, err := b.sendToGroup(b.lotteryInfo(ctx, info, nil))
		if err == nil {
			b.mu.Lock()
			b.infoMessage = msg.MessageID
			b.mu.Unlock()
		}
	case last.TotalTickets != info.TotalTickets:
		b.mu.Lock()
		messageID := b.infoMessage
		b.mu.Unlock()
		if messageID == 0 {
			return
		}
		msg := tgbotapi.NewEditMessageText(b.group(), messageID, b.lotteryInfo(ctx, info, nil))
		msg.ParseMode = tgbotapi.ModeMarkdown
		b.send(msg)
	}
}

func (b *Bot) announceTransition(ctx context.Context, from, to *data.EngineInfo) {
	switch to.State {
	case data.LockingForRandomness:
		b.sendToGroup(fmt.Sprintf("`Round #%v:` play closed with %v tickets, drawing the winner 🎲", to.Round, to.TotalTickets))
	case data.OpenToWithdraw:
		winners, err := b.lottery.GetWinners(ctx)
		if err != nil || len(winners) == 0 {
			log.Warn("can not get winners", "error", err)
			return
		}
		w := winners[len(winners)-1]
		b.sendToGroup(fmt.Sprintf("🤑 `Round #%v winner:` `%s` won %s",
			w.Round, utils.ShortenAddress(w.Address), b.niceAmount(ctx, to.Address, w.Prize)))
	case data.OpenToPlay:
		if from.Round != to.Round {
			b.sendToGroup(fmt.Sprintf("🟢 `Round #%v` is open, deadline %s", to.Round, utils.FormatDeadline(to.EndOfPlayDeadline)))
		}
	}
}

func (b *Bot) reportError(text string) {
	if b.cfg.Bot.Owner == 0 {
		log.Warn("error report", "text", text)
		return
	}
	msg := tgbotapi.NewMessage(b.cfg.Bot.Owner, "⛔️ "+text)
	b.send(msg)
}

func (b *Bot) send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	res, err := b.sender.Send(c)
	if err != nil {
		log.Warn("error sending to telegram", "error", err)
	}

	return res, err
}

func (b *Bot) group() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.groupID
}

func (b *Bot) sendToGroup(text string) (tgbotapi.Message, error) {
	groupID := b.group()
	if groupID == 0 {
		log.Debug("no group to announce to", "text", text)
		return tgbotapi.Message{}, errNoGroup
	}
	msg := tgbotapi.NewMessage(groupID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true

	return b.send(msg)
}

func (b *Bot) sendMessage(userID int64, text string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(userID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true

	return b.send(msg)
}

// niceAmount formats a stablecoin amount, the decimals are looked up once
func (b *Bot) niceAmount(ctx context.Context, holder string, amount *uint256.Int) string {
	b.mu.Lock()
	decimals := b.decimals
	b.mu.Unlock()
	if decimals < 0 {
		_, token, err := b.lottery.GetBalance(ctx, utils.StablecoinTicker, holder)
		if err != nil {
			return amount.Dec() + " units"
		}
		decimals = token.Decimals
		b.mu.Lock()
		b.decimals = decimals
		b.mu.Unlock()
	}

	return utils.NiceAmount(amount, decimals) + " " + utils.StablecoinTicker
}

func (b *Bot) lotteryInfo(ctx context.Context, info *data.EngineInfo, user *data.User) string {
	text := "`Lottery Info`\n\n"
	text += fmt.Sprintf("`Round:` #%v\n", info.Round)
	text += fmt.Sprintf("`Status:` %s\n", stateLabels[info.State.String()])
	text += fmt.Sprintf("`Ticket price:` %s\n", b.niceAmount(ctx, info.Address, info.TicketPrice))
	text += fmt.Sprintf("`Tickets:` %v (%v players)\n", info.TotalTickets, info.Participants)
	if info.Pool != nil && info.VenueBalance != nil {
		pool := new(uint256.Int).Add(info.Pool, info.VenueBalance)
		text += fmt.Sprintf("`Pool:` %s\n", b.niceAmount(ctx, info.Address, pool))
	}
	if info.LastPrize != nil && !info.LastPrize.IsZero() {
		text += fmt.Sprintf("`Last prize:` %s\n", b.niceAmount(ctx, info.Address, info.LastPrize))
	}
	switch info.State {
	case data.OpenToPlay:
		text += fmt.Sprintf("`Deadline:` %s\n", utils.FormatDeadline(info.EndOfPlayDeadline))
	case data.OpenToWithdraw:
		text += fmt.Sprintf("`Withdraw until:` %s\n", utils.FormatDeadline(info.EndOfWithdrawDeadline))
	}
	if user != nil && user.Wallet != "" {
		tickets, err := b.lottery.GetTickets(ctx, user.Wallet)
		if err == nil && tickets.Tickets > 0 {
			if tickets.Tickets > 1 {
				text += fmt.Sprintf("\nYou have `%v` tickets", tickets.Tickets)
			} else {
				text += "\nYou have `1` ticket"
			}
		}
	}

	return text
}

func (b *Bot) sendLotteryInfo(ctx context.Context, user *data.User) {
	info, err := b.lottery.GetInfo(ctx)
	if err != nil {
		b.sendMessage(user.ID, "❗️ Lottery unavailable ("+err.Error()+")")
		return
	}
	msg := tgbotapi.NewMessage(user.ID, b.lotteryInfo(ctx, info, user))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = infoKeyboard()
	b.send(msg)
}

func (b *Bot) sendTickets(ctx context.Context, userID int64, address string) {
	if address == "" {
		b.sendMessage(userID, "❕ Set your wallet first with `/wallet <address>`")
		return
	}
	if !utils.IsValidAddress(address) {
		b.sendMessage(userID, "⛔️ Invalid address")
		return
	}
	tickets, err := b.lottery.GetTickets(ctx, address)
	if err != nil {
		b.sendMessage(userID, "❗️ Lottery unavailable ("+err.Error()+")")
		return
	}
	if tickets.Tickets == 0 {
		b.sendMessage(userID, "🚫 No active tickets")
		return
	}
	b.sendMessage(userID, fmt.Sprintf("🎫 `%s` holds %v ticket(s)", utils.ShortenAddress(address), tickets.Tickets))
}

func (b *Bot) sendWinners(ctx context.Context, userID int64) {
	winners, err := b.lottery.GetWinners(ctx)
	if err != nil {
		b.sendMessage(userID, "❗️ Lottery unavailable ("+err.Error()+")")
		return
	}
	if len(winners) == 0 {
		b.sendMessage(userID, "😔 No winners yet")
		return
	}

	text := "`Winners`\n\n"
	start := len(winners) - winnersToShow
	if start < 0 {
		start = 0
	}
	for i := len(winners) - 1; i >= start; i-- {
		w := winners[i]
		text += fmt.Sprintf("#%v `%s` %s\n", w.Round, utils.ShortenAddress(w.Address), b.niceAmount(ctx, w.Address, w.Prize))
	}
	b.sendMessage(userID, text)
}

func (b *Bot) getOrCreateUser(tgUser *tgbotapi.User) *data.User {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := int64(tgUser.ID)
	user, ok := b.users[id]
	if !ok {
		user = &data.User{ID: id}
		b.users[id] = user
	}
	user.UserName = tgUser.UserName
	user.FirstName = tgUser.FirstName
	user.LastName = tgUser.LastName

	return user
}

func (b *Bot) setWallet(userID int64, address string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if user, ok := b.users[userID]; ok {
		user.Wallet = address
	}
}

func formatTgUser(user *tgbotapi.User) string {
	if user == nil {
		return ""
	}
	name := fmt.Sprintf("%s %s [%v]", user.FirstName, user.LastName, user.ID)
	name = strings.TrimSpace(name)
	name = strings.Replace(name, "  ", " ", 1)
	if user.UserName != "" {
		name = fmt.Sprintf("@%s (%s)", user.UserName, name)
	}

	return name
}
