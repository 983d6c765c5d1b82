package main

import (
	"github.com/urfave/cli"

	"github.com/DrDelphi/NoLossLottery/utils"
)

var (
	configFlag = cli.StringFlag{
		Name:  "config",
		Value: utils.DefaultConfigPath,
		Usage: "path of the JSON configuration file",
	}
	logLevelFlag = cli.StringFlag{
		Name:  "log-level",
		Usage: "log level pattern overriding the configuration, e.g. *:INFO,engine:DEBUG",
	}
	indexFlag = cli.Int64Flag{
		Name:  "index",
		Value: defaultPlayerIndex,
		Usage: "index of the account derived from the seed",
	}
	faucetFlag = cli.BoolFlag{
		Name:  "faucet",
		Usage: "mint the needed funds from the development faucet first",
	}
	pemFlag = cli.StringFlag{
		Name:  "pem",
		Usage: "write the private key of the account to this PEM file",
	}
	keyFileFlag = cli.StringFlag{
		Name:  "key-file",
		Usage: "sign with the private key of this PEM file instead of --index",
	}
	forceFlag = cli.BoolFlag{
		Name:  "force",
		Usage: "overwrite an existing configuration",
	}
)

const defaultPlayerIndex = 100
