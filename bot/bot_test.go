package bot

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrDelphi/NoLossLottery/config"
	"github.com/DrDelphi/NoLossLottery/data"
	"github.com/DrDelphi/NoLossLottery/utils"
)

const (
	groupID = int64(-100)
	ownerID = int64(42)
	wallet  = "erd1qyu5wthldzr8wx5c9ucg8kjagg0jfs53s8nr3zpz3hypefsdd8ssycr6th"
)

type sentMessage struct {
	chatID int64
	edit   bool
	text   string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	next int
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.next++
	switch m := c.(type) {
	case tgbotapi.MessageConfig:
		f.sent = append(f.sent, sentMessage{chatID: m.ChatID, text: m.Text})
	case tgbotapi.EditMessageTextConfig:
		f.sent = append(f.sent, sentMessage{chatID: m.ChatID, edit: true, text: m.Text})
	}

	return tgbotapi.Message{MessageID: f.next}, nil
}

func (f *fakeSender) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]sentMessage(nil), f.sent...)
}

func (f *fakeSender) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent = nil
}

type fakeLottery struct {
	info    data.EngineInfo
	winners []data.Winner
	tickets map[string]uint64
	err     error
}

func (f *fakeLottery) GetInfo(context.Context) (*data.EngineInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	info := f.info

	return &info, nil
}

func (f *fakeLottery) GetTickets(_ context.Context, address string) (*data.TicketInfo, error) {
	return &data.TicketInfo{Address: address, Tickets: f.tickets[address]}, nil
}

func (f *fakeLottery) GetWinners(context.Context) ([]data.Winner, error) {
	return f.winners, nil
}

func (f *fakeLottery) GetBalance(context.Context, string, string) (*uint256.Int, data.Token, error) {
	return new(uint256.Int), data.Token{Ticker: utils.StablecoinTicker, Decimals: 6}, nil
}

func newTestBot() (*Bot, *fakeSender, *fakeLottery) {
	cfg := &data.AppConfig{}
	cfg.Bot.GroupID = groupID
	cfg.Bot.Owner = ownerID

	return newTestBotWith(cfg)
}

func newTestBotWith(cfg *data.AppConfig) (*Bot, *fakeSender, *fakeLottery) {
	lottery := &fakeLottery{
		info: data.EngineInfo{
			Address:     "engine",
			Round:       1,
			State:       data.OpenToPlay,
			TicketPrice: uint256.NewInt(10000000),
			LastPrize:   new(uint256.Int),
		},
		tickets: make(map[string]uint64),
	}
	sender := &fakeSender{}

	return newBot(cfg, lottery, sender), sender, lottery
}

func TestPollAnnouncesRound(t *testing.T) {
	ctx := context.Background()
	b, sender, lottery := newTestBot()

	b.poll(ctx)
	sent := sender.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, groupID, sent[0].chatID)
	assert.Contains(t, sent[0].text, "`Round:` #1")
	assert.Contains(t, sent[0].text, "10 USDC")

	sender.reset()
	b.poll(ctx)
	assert.Empty(t, sender.messages())

	lottery.info.TotalTickets = 2
	b.poll(ctx)
	sent = sender.messages()
	require.Len(t, sent, 1)
	assert.True(t, sent[0].edit)
	assert.Contains(t, sent[0].text, "`Tickets:` 2")

	sender.reset()
	lottery.info.State = data.LockingForRandomness
	b.poll(ctx)
	sent = sender.messages()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[0].text, "drawing the winner")

	sender.reset()
	lottery.info.State = data.OpenToWithdraw
	lottery.winners = []data.Winner{{Round: 1, Address: wallet, Prize: uint256.NewInt(2500000)}}
	b.poll(ctx)
	sent = sender.messages()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[0].text, "2.5 USDC")
	assert.Contains(t, sent[0].text, utils.ShortenAddress(wallet))
}

func TestGroupLearnedWhilePolling(t *testing.T) {
	ctx := context.Background()
	cfg := &data.AppConfig{}
	cfg.Bot.Group = "nolosslottery"
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, config.SaveAs(cfg, path))
	b, sender, _ := newTestBotWith(cfg)

	_, err := b.sendToGroup("before")
	assert.True(t, errors.Is(err, errNoGroup))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			b.poll(ctx)
			b.sendToGroup("ping")
		}
	}()
	b.handleUpdate(ctx, tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: 7},
		Chat: &tgbotapi.Chat{ID: groupID, Type: "supergroup", UserName: "nolosslottery"},
		Text: "hello",
	}})
	wg.Wait()

	sender.reset()
	_, err = b.sendToGroup("after")
	require.NoError(t, err)
	sent := sender.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, groupID, sent[0].chatID)

	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(saved), `"groupID": -100`)
}

func TestPollReportsErrors(t *testing.T) {
	b, sender, lottery := newTestBot()
	lottery.err = errors.New("connection refused")

	b.poll(context.Background())
	sent := sender.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, ownerID, sent[0].chatID)
	assert.True(t, strings.HasPrefix(sent[0].text, "⛔️"))
}

func TestPrivateCommands(t *testing.T) {
	ctx := context.Background()
	b, sender, lottery := newTestBot()
	lottery.tickets[wallet] = 3
	from := &tgbotapi.User{ID: 7, UserName: "alice"}
	command := func(text string) *tgbotapi.Message {
		return &tgbotapi.Message{
			From:     from,
			Chat:     &tgbotapi.Chat{ID: 7, Type: "private"},
			Text:     text,
			Entities: &[]tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: strings.IndexByte(text+" ", ' ')}},
		}
	}

	b.privateCommandReceived(ctx, command("/tickets"))
	sent := sender.messages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].text, "/wallet")

	sender.reset()
	b.privateCommandReceived(ctx, command("/wallet nope"))
	assert.Contains(t, sender.messages()[0].text, "Usage")

	sender.reset()
	b.privateCommandReceived(ctx, command("/wallet "+wallet))
	b.privateCommandReceived(ctx, command("/tickets"))
	sent = sender.messages()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[1].text, "3 ticket(s)")

	sender.reset()
	b.privateMessageReceived(ctx, &tgbotapi.Message{From: from, Chat: &tgbotapi.Chat{ID: 7, Type: "private"}, Text: menuInfo})
	sent = sender.messages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].text, "You have `3` tickets")

	sender.reset()
	b.privateCommandReceived(ctx, command("/winners"))
	assert.Contains(t, sender.messages()[0].text, "No winners yet")
}
