// Package main implements the client of the flash-loan and prediction-market
// dApps. The daemon holds the wallet session and the trackers of the
// transactions, the other commands are sent to it.
//
//  stxdapp --config ~/.stxdapp start --session ~/session.json
//  stxdapp flashlend deposit --amount 10
//  stxdapp flashlend dashboard --watch
//  stxdapp prediction wager --id 0 --choice 1 --amount 2.5
//  stxdapp watch tx --txid 0x... --wait
//  stxdapp metrics start --addr 127.0.0.1:9100
//
package main

import (
	"fmt"
	"io"
	"os"

	"go.flashlend.io/stxdapp/cli/node"
	config "go.flashlend.io/stxdapp/config/controller"
	flashlend "go.flashlend.io/stxdapp/flashlend/controller"
	history "go.flashlend.io/stxdapp/history/controller"
	metrics "go.flashlend.io/stxdapp/metrics/controller"
	prediction "go.flashlend.io/stxdapp/prediction/controller"
	session "go.flashlend.io/stxdapp/session/controller"
	watch "go.flashlend.io/stxdapp/watch/controller"
)

type runConfig struct {
	Channel chan os.Signal
	Writer  io.Writer
}

func main() {
	err := run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	return runWithCfg(args, runConfig{Writer: os.Stdout})
}

func runWithCfg(args []string, cfg runConfig) error {
	// The configuration comes first as the other controllers resolve it.
	builder := node.NewBuilderWithCfg(
		cfg.Channel,
		cfg.Writer,
		config.NewController(),
		history.NewController(),
		watch.NewController(),
		session.NewController(),
		flashlend.NewController(),
		prediction.NewController(),
		metrics.NewController(),
	)

	app := builder.Build()

	return app.Run(args)
}
