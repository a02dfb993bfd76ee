// Package controller implements the commands of the metrics server of the
// daemon.
package controller

import (
	"go.flashlend.io/stxdapp/cli"
	"go.flashlend.io/stxdapp/cli/node"
	"go.flashlend.io/stxdapp/metrics/http"
)

const defaultAddr = "127.0.0.1:9100"

const defaultPath = "/metrics"

// NewController returns a new initializer of the metrics commands.
func NewController() node.Initializer {
	return controller{}
}

// controller defines the commands to start and stop the metrics server.
//
// - implements node.Initializer
type controller struct{}

// SetCommands implements node.Initializer.
func (controller) SetCommands(builder node.Builder) {
	cmd := builder.SetCommand("metrics")
	cmd.SetDescription("serve the prometheus metrics of the daemon")

	sub := cmd.SetSubCommand("start")
	sub.SetDescription("start the metrics server")
	sub.SetFlags(
		cli.StringFlag{
			Name:  "addr",
			Usage: "the address of the server",
			Value: defaultAddr,
		},
		cli.StringFlag{
			Name:  "path",
			Usage: "the path of the prometheus handler",
			Value: defaultPath,
		},
	)
	sub.SetAction(builder.MakeAction(startAction{}))

	sub = cmd.SetSubCommand("stop")
	sub.SetDescription("stop the metrics server")
	sub.SetAction(builder.MakeAction(stopAction{}))
}

// OnStart implements node.Initializer. The server is started by command.
func (controller) OnStart(cli.Flags, node.Injector) error {
	return nil
}

// OnStop implements node.Initializer. It stops the server if it is running.
func (controller) OnStop(inj node.Injector) error {
	var srv *http.Server

	err := inj.Resolve(&srv)
	if err != nil {
		return nil
	}

	return srv.Stop()
}
