// Package controller loads the configuration when the daemon starts and makes
// it available to the other controllers.
package controller

import (
	"fmt"

	"go.flashlend.io/stxdapp/cli"
	"go.flashlend.io/stxdapp/cli/node"
	"go.flashlend.io/stxdapp/config"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

// NewController returns the initializer of the configuration. It must come
// before the controllers that resolve it.
func NewController() node.Initializer {
	return controller{}
}

// controller injects the *config.Config.
//
// - implements node.Initializer
type controller struct{}

// SetCommands implements node.Initializer.
func (controller) SetCommands(builder node.Builder) {
	cmd := builder.SetCommand("config")
	cmd.SetDescription("inspect the configuration of the daemon")

	sub := cmd.SetSubCommand("show")
	sub.SetDescription("print the configuration in use")
	sub.SetAction(builder.MakeAction(showAction{}))
}

// OnStart implements node.Initializer. It loads the configuration of the
// config folder.
func (controller) OnStart(flags cli.Flags, inj node.Injector) error {
	cfg, err := config.Load(flags.Path(node.ConfigFlag))
	if err != nil {
		return xerrors.Errorf("failed to load config: %v", err)
	}

	inj.Inject(&cfg)

	return nil
}

// OnStop implements node.Initializer.
func (controller) OnStop(node.Injector) error {
	return nil
}

// showAction prints the configuration.
//
// - implements node.ActionTemplate
type showAction struct{}

// Execute implements node.ActionTemplate.
func (showAction) Execute(ctx node.Context) error {
	var cfg *config.Config

	err := ctx.Injector.Resolve(&cfg)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return xerrors.Errorf("failed to encode config: %v", err)
	}

	fmt.Fprint(ctx.Out, string(data))

	return nil
}
