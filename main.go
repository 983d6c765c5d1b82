package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	logger "github.com/ElrondNetwork/elrond-go-logger"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"

	"github.com/DrDelphi/NoLossLottery/api"
	"github.com/DrDelphi/NoLossLottery/bot"
	"github.com/DrDelphi/NoLossLottery/config"
	"github.com/DrDelphi/NoLossLottery/data"
	"github.com/DrDelphi/NoLossLottery/metrics"
	"github.com/DrDelphi/NoLossLottery/network"
	"github.com/DrDelphi/NoLossLottery/node"
	"github.com/DrDelphi/NoLossLottery/store"
	"github.com/DrDelphi/NoLossLottery/utils"
)

var log = logger.GetOrCreate("main")

func main() {
	app := cli.NewApp()
	app.Name = "nolosslottery"
	app.Usage = "No-loss lottery daemon and client"
	app.Flags = []cli.Flag{configFlag, logLevelFlag}
	app.Commands = []cli.Command{
		{
			Name:   "init",
			Usage:  "write a development configuration with a fresh seed",
			Flags:  []cli.Flag{forceFlag},
			Action: initAction,
		},
		{
			Name:   "run",
			Usage:  "run the lottery node, its API and the keeper",
			Action: runAction,
		},
		{
			Name:   "keys",
			Usage:  "print the addresses derived from the seed",
			Flags:  []cli.Flag{indexFlag, pemFlag},
			Action: keysAction,
		},
		{
			Name:   "info",
			Usage:  "print the current round",
			Action: infoAction,
		},
		{
			Name:   "enter",
			Usage:  "buy a ticket with the account at --index",
			Flags:  []cli.Flag{indexFlag, keyFileFlag, faucetFlag},
			Action: enterAction,
		},
		{
			Name:   "withdraw",
			Usage:  "withdraw every ticket of the account at --index",
			Flags:  []cli.Flag{indexFlag, keyFileFlag},
			Action: withdrawAction,
		},
		{
			Name:      "trigger",
			Usage:     "trigger a transition path",
			ArgsUsage: "lock|payout|reopen|retry-randomness",
			Action:    triggerAction,
		},
		{
			Name:   "history",
			Usage:  "print the winners stored in the local database",
			Action: historyAction,
		},
		{
			Name:  "admin",
			Usage: "escape hatches signed by the admin account",
			Subcommands: []cli.Command{
				{
					Name:   "withdraw-fees",
					Usage:  "send the collected entry fees to the admin",
					Action: withdrawFeesAction,
				},
				{
					Name:   "force-supply",
					Usage:  "supply the idle pool to the venue",
					Action: forceSupplyAction,
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(ctx *cli.Context) (*data.AppConfig, error) {
	cfg, err := config.NewConfig(ctx.GlobalString(configFlag.Name))
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if ctx.GlobalIsSet(logLevelFlag.Name) {
		level = ctx.GlobalString(logLevelFlag.Name)
	}
	if err = logger.SetLogLevel(level); err != nil {
		return nil, errors.Wrapf(err, "log level %q", level)
	}

	return cfg, nil
}

func networkManager(ctx *cli.Context) (*data.AppConfig, *network.NetworkManager, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, nil, err
	}
	nm, err := network.NewNetworkManager(cfg.Network.API)

	return cfg, nm, err
}

func handleExitSignal() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigs
		log.Info("exit signal received", "signal", sig)
		cancel()
	}()

	return ctx
}

func initAction(ctx *cli.Context) error {
	path := ctx.GlobalString(configFlag.Name)
	if _, err := os.Stat(path); err == nil && !ctx.Bool(forceFlag.Name) {
		return errors.Errorf("%s already exists, use --force to overwrite", path)
	}
	mnemonic, err := utils.NewMnemonic()
	if err != nil {
		return err
	}
	if err = config.SaveAs(config.Default(mnemonic), path); err != nil {
		return err
	}
	fmt.Println("configuration written to", path)

	return nil
}

func runAction(ctx *cli.Context) error {
	defer func() { log.Info("exited") }()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() { log.Info("closing database..."); db.Close() }()

	n, err := node.New(cfg, db, utils.SystemClock{})
	if err != nil {
		return err
	}
	srv, err := api.New(api.Config{
		Listen:         cfg.API.Listen,
		AllowedOrigins: cfg.API.AllowedOrigins,
		Faucet:         cfg.API.Faucet,
	}, n.Engine(), n.Coordinator(), n.Tokens(), utils.SystemClock{})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(handleExitSignal())
	g.Go(func() error {
		return n.Run(gctx)
	})
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if cfg.Metrics.Listen != "" {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.Metrics.Listen, n)
		})
	}
	if cfg.Bot.Token != "" {
		nm, err := network.NewNetworkManager(cfg.Network.API)
		if err != nil {
			return err
		}
		announcer, err := bot.NewBot(cfg, nm)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return announcer.StartTasks(gctx)
		})
	}

	return g.Wait()
}

func serveMetrics(ctx context.Context, listen string, n *node.Node) error {
	srv := &http.Server{
		Addr:              listen,
		Handler:           metrics.Handler(n.Gatherer()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()
	log.Info("metrics listening", "address", listen)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

func keysAction(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	acc, err := node.DeriveAccounts(cfg.Seedphrase)
	if err != nil {
		return err
	}
	fmt.Println("admin:      ", acc.Admin)
	fmt.Println("engine:     ", acc.Engine)
	fmt.Println("venue:      ", acc.Venue)
	fmt.Println("coordinator:", acc.Coordinator)

	index := ctx.Int64(indexFlag.Name)
	sk, err := utils.GetPrivateKeyFromSeed(cfg.Seedphrase, index)
	if err != nil {
		return err
	}
	address, err := utils.GetAddressFromPrivateKey(sk)
	if err != nil {
		return err
	}
	fmt.Printf("account %d: %s\n", index, address)

	if pem := ctx.String(pemFlag.Name); pem != "" {
		if err = utils.SavePemFile(pem, sk); err != nil {
			return err
		}
		fmt.Println("private key written to", pem)
	}

	return nil
}

func infoAction(ctx *cli.Context) error {
	_, nm, err := networkManager(ctx)
	if err != nil {
		return err
	}
	info, err := nm.GetInfo(context.Background())
	if err != nil {
		return err
	}
	_, token, err := nm.GetBalance(context.Background(), utils.StablecoinTicker, info.Address)
	if err != nil {
		return err
	}

	fmt.Printf("round:          #%d\n", info.Round)
	fmt.Printf("state:          %s\n", info.State)
	fmt.Printf("ticket price:   %s %s\n", utils.NiceAmount(info.TicketPrice, token.Decimals), token.Ticker)
	fmt.Printf("entry fee:      %s %s\n", utils.NiceAmount(info.EntryFee, 18), utils.NativeTicker)
	fmt.Printf("tickets:        %d (%d players)\n", info.TotalTickets, info.Participants)
	fmt.Printf("pool:           %s idle, %s supplied\n",
		utils.NiceAmount(info.Pool, token.Decimals), utils.NiceAmount(info.VenueBalance, token.Decimals))
	fmt.Printf("last prize:     %s\n", utils.NiceAmount(info.LastPrize, token.Decimals))
	fmt.Printf("play deadline:  %s\n", utils.FormatDeadline(info.EndOfPlayDeadline))
	fmt.Printf("withdraw until: %s\n", utils.FormatDeadline(info.EndOfWithdrawDeadline))
	fmt.Printf("payout policy:  %s\n", info.PayoutPolicy)
	if info.PendingRequestID != nil {
		fmt.Printf("randomness:     %s\n", info.PendingRequestID)
	}

	return nil
}

func playerKey(ctx *cli.Context, cfg *data.AppConfig) ([]byte, string, error) {
	var sk []byte
	var err error
	if file := ctx.String(keyFileFlag.Name); file != "" {
		sk, err = utils.LoadPemFile(file)
	} else {
		sk, err = utils.GetPrivateKeyFromSeed(cfg.Seedphrase, ctx.Int64(indexFlag.Name))
	}
	if err != nil {
		return nil, "", err
	}
	address, err := utils.GetAddressFromPrivateKey(sk)

	return sk, address, err
}

func enterAction(ctx *cli.Context) error {
	cfg, nm, err := networkManager(ctx)
	if err != nil {
		return err
	}
	sk, address, err := playerKey(ctx, cfg)
	if err != nil {
		return err
	}
	c := context.Background()
	info, err := nm.GetInfo(c)
	if err != nil {
		return err
	}

	if ctx.Bool(faucetFlag.Name) {
		if err = nm.Mint(c, sk, utils.StablecoinTicker, info.TicketPrice); err != nil {
			return err
		}
		if !info.EntryFee.IsZero() {
			if err = nm.Mint(c, sk, utils.NativeTicker, info.EntryFee); err != nil {
				return err
			}
		}
	}
	if err = nm.Approve(c, sk, utils.StablecoinTicker, info.Address, info.TicketPrice); err != nil {
		return err
	}
	if !info.EntryFee.IsZero() {
		if err = nm.Approve(c, sk, utils.NativeTicker, info.Address, info.EntryFee); err != nil {
			return err
		}
	}
	tickets, err := nm.Enter(c, sk, info.EntryFee)
	if err != nil {
		return err
	}
	fmt.Printf("%s now holds %d ticket(s)\n", address, tickets.Tickets)

	return nil
}

func withdrawAction(ctx *cli.Context) error {
	cfg, nm, err := networkManager(ctx)
	if err != nil {
		return err
	}
	sk, address, err := playerKey(ctx, cfg)
	if err != nil {
		return err
	}
	amount, err := nm.Withdraw(context.Background(), sk)
	if err != nil {
		return err
	}
	fmt.Printf("%s withdrew %s\n", address, amount.Dec())

	return nil
}

func triggerAction(ctx *cli.Context) error {
	path := data.PathID(ctx.Args().First())
	if !path.IsValid() {
		return errors.Errorf("unknown path %q", path)
	}
	_, nm, err := networkManager(ctx)
	if err != nil {
		return err
	}
	state, err := nm.PerformUpkeep(context.Background(), path)
	if err != nil {
		return err
	}
	fmt.Printf("%s performed, state is now %s\n", path, state)

	return nil
}

func historyAction(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	winners, err := node.StoredWinners(db)
	if err != nil {
		return err
	}
	if len(winners) == 0 {
		fmt.Println("no winners yet")
		return nil
	}
	for _, w := range winners {
		fmt.Printf("#%d %s %s %s\n", w.Round, time.Unix(w.Timestamp, 0).UTC().Format(time.RFC3339),
			w.Address, utils.NiceAmount(w.Prize, 6))
	}

	return nil
}

func adminCall(ctx *cli.Context, call func(*network.NetworkManager, []byte) (*uint256.Int, error)) error {
	cfg, nm, err := networkManager(ctx)
	if err != nil {
		return err
	}
	sk, err := utils.GetPrivateKeyFromSeed(cfg.Seedphrase, utils.AdminKeyIndex)
	if err != nil {
		return err
	}
	amount, err := call(nm, sk)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", ctx.Command.Name, amount.Dec())

	return nil
}

func withdrawFeesAction(ctx *cli.Context) error {
	return adminCall(ctx, func(nm *network.NetworkManager, sk []byte) (*uint256.Int, error) {
		return nm.WithdrawFees(context.Background(), sk)
	})
}

func forceSupplyAction(ctx *cli.Context) error {
	return adminCall(ctx, func(nm *network.NetworkManager, sk []byte) (*uint256.Int, error) {
		return nm.ForceSupply(context.Background(), sk)
	})
}
