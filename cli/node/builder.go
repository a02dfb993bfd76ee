package node

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	urfave "github.com/urfave/cli/v2"
	"go.flashlend.io/stxdapp"
	"go.flashlend.io/stxdapp/cli"
	"go.flashlend.io/stxdapp/cli/ucli"
	"golang.org/x/xerrors"
)

const (
	// AppName is the name of the binary.
	AppName = "stxdapp"

	// ConfigFlag is the global flag of the config folder. The daemon socket,
	// the configuration file and the history live there.
	ConfigFlag = "config"

	// EnvConfig can replace the config flag.
	EnvConfig = "STXDAPP_CONFIG"

	defaultConfigDir = ".stxdapp"
)

// AppBuilder assembles the command line of the initializers and the start
// command of the daemon.
//
// - implements node.Builder
// - implements cli.Builder
type AppBuilder struct {
	cli.Builder

	factory    DaemonFactory
	inj        Injector
	actions    *actionMap
	inits      []Initializer
	startFlags []cli.Flag

	// sigs stops the daemon. It is wired to SIGINT and SIGTERM unless the
	// caller provides its own channel.
	sigs     chan os.Signal
	osSignal bool
}

// NewBuilder returns a builder that prints to the standard output and stops
// on the usual signals.
func NewBuilder(inits ...Initializer) *AppBuilder {
	return NewBuilderWithCfg(nil, nil, inits...)
}

// NewBuilderWithCfg returns a builder with an optional stop channel and
// output.
func NewBuilderWithCfg(sigs chan os.Signal, out io.Writer, inits ...Initializer) *AppBuilder {
	b := &AppBuilder{
		inj:     NewInjector(),
		actions: &actionMap{},
		inits:   inits,
		sigs:    sigs,
	}

	if b.sigs == nil {
		b.sigs = make(chan os.Signal, 1)
		b.osSignal = true
	}

	if out == nil {
		out = os.Stdout
	}

	b.factory = unixFactory{inj: b.inj, actions: b.actions, out: out}

	root := ucli.NewBuilder(AppName, nil, cli.StringFlag{
		Name:    ConfigFlag,
		Usage:   "path to the config folder",
		EnvVars: []string{EnvConfig},
		Value:   defaultConfigDir,
	})
	root.SetUsage("client of the flash-loan and prediction-market dApps")

	b.Builder = root

	return b
}

// SetStartFlags implements node.Builder.
func (b *AppBuilder) SetStartFlags(flags ...cli.Flag) {
	b.startFlags = append(b.startFlags, flags...)
}

// MakeAction implements node.Builder. The returned action collects the values
// of every flag visible from the command and sends them to the daemon.
func (b *AppBuilder) MakeAction(tmpl ActionTemplate) cli.Action {
	id := b.actions.add(tmpl)

	return func(flags cli.Flags) error {
		client, err := b.factory.ClientFromContext(flags)
		if err != nil {
			return xerrors.Errorf("couldn't make client: %v", err)
		}

		values := FlagSet{}

		uctx, ok := flags.(*urfave.Context)
		if ok {
			values = collectFlags(uctx)
		}

		err = client.Send(id, values)
		if err != nil {
			// The message of the daemon is shown as is.
			return xerrors.Opaque(err)
		}

		return nil
	}
}

// collectFlags reads the flags of the command, its parents and the
// application. The value of a flag comes from the closest context that
// defines it.
func collectFlags(ctx *urfave.Context) FlagSet {
	values := FlagSet{}

	for _, lvl := range ctx.Lineage() {
		var defined []urfave.Flag

		if lvl.Command != nil {
			defined = append(defined, lvl.Command.Flags...)
		}
		if lvl.App != nil {
			defined = append(defined, lvl.App.Flags...)
		}

		for _, f := range defined {
			names := f.Names()
			if len(names) == 0 {
				continue
			}

			_, seen := values[names[0]]
			if seen {
				continue
			}

			values[names[0]] = jsonValue(lvl.Value(names[0]))
		}
	}

	return values
}

// jsonValue unwraps the values that the JSON encoder cannot handle.
func jsonValue(v interface{}) interface{} {
	switch slice := v.(type) {
	case urfave.StringSlice:
		return slice.Value()
	case *urfave.StringSlice:
		return slice.Value()
	}

	return v
}

// Build implements cli.Builder. It adds the start command after the commands
// of the initializers.
func (b *AppBuilder) Build() cli.Application {
	for _, ctrl := range b.inits {
		ctrl.SetCommands(b)
	}

	start := b.SetCommand("start")
	start.SetDescription("start the daemon")
	start.SetFlags(b.startFlags...)
	start.SetAction(b.runDaemon)

	return b.Builder.Build()
}

func (b *AppBuilder) runDaemon(flags cli.Flags) error {
	if b.osSignal {
		signal.Notify(b.sigs, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(b.sigs)
	}

	dir := flags.Path(ConfigFlag)
	if dir != "" {
		err := os.MkdirAll(dir, 0700)
		if err != nil {
			return xerrors.Errorf("couldn't make path: %v", err)
		}
	}

	daemon, err := b.factory.DaemonFromContext(flags)
	if err != nil {
		return xerrors.Errorf("couldn't make daemon: %v", err)
	}

	for _, ctrl := range b.inits {
		err = ctrl.OnStart(flags, b.inj)
		if err != nil {
			return xerrors.Errorf("couldn't run the controller: %v", err)
		}
	}

	err = daemon.Listen()
	if err != nil {
		return xerrors.Errorf("couldn't start the daemon: %v", err)
	}

	stxdapp.Logger.Info().Str("config", dir).Msg("daemon started")

	<-b.sigs

	err = daemon.Close()
	if err != nil {
		return xerrors.Errorf("couldn't close the daemon: %v", err)
	}

	for i := len(b.inits) - 1; i >= 0; i-- {
		err = b.inits[i].OnStop(b.inj)
		if err != nil {
			return xerrors.Errorf("couldn't stop controller: %v", err)
		}
	}

	stxdapp.Logger.Info().Msg("daemon stopped")

	return nil
}

// actionMap numbers the action templates in the order of registration. The
// client and the daemon are built from the same commands and agree on the
// numbers.
type actionMap struct {
	templates []ActionTemplate
}

func (m *actionMap) add(tmpl ActionTemplate) uint16 {
	m.templates = append(m.templates, tmpl)

	return uint16(len(m.templates) - 1)
}

// Get returns the template or nil if the number is unknown.
func (m *actionMap) Get(id uint16) ActionTemplate {
	if int(id) >= len(m.templates) {
		return nil
	}

	return m.templates[id]
}
