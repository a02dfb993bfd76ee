// Package node builds the command-line application of the dApps around a
// long-running daemon.
//
// "start" runs the daemon in the foreground. Every other command created with
// MakeAction is forwarded to the daemon over a UNIX socket in the config
// folder and runs there in its own goroutine. The wallet session, the
// trackers and the history store therefore outlive a single invocation.
//
// Documentation Last Review: 19.10.2026
//
package node

import (
	"context"
	"io"

	"go.flashlend.io/stxdapp/cli"
)

// Builder is handed to the initializers so that they declare their commands.
type Builder interface {
	SetCommand(name string) cli.CommandBuilder

	// SetStartFlags adds flags to the start command. Their values are
	// available to the initializers when the daemon starts.
	SetStartFlags(...cli.Flag)

	// MakeAction returns a command action that forwards the flags to the
	// daemon, which executes the template.
	MakeAction(ActionTemplate) cli.Action
}

// ActionTemplate is the daemon side of a command.
type ActionTemplate interface {
	Execute(Context) error
}

// Context is what an action receives on the daemon.
type Context struct {
	// Ctx is cancelled when the daemon stops.
	Ctx      context.Context
	Injector Injector
	Flags    cli.Flags

	// Out is streamed back to the command line.
	Out io.Writer
}

// Injector holds the components started by the initializers.
type Injector interface {
	// Resolve sets the pointed value to the first injected dependency that is
	// assignable to it.
	Resolve(interface{}) error

	Inject(interface{})
}

// Initializer is implemented by the controller of each package.
type Initializer interface {
	SetCommands(Builder)

	// OnStart is called in order when the daemon starts, before it accepts
	// commands.
	OnStart(cli.Flags, Injector) error

	// OnStop is called in reverse order when the daemon stops.
	OnStop(Injector) error
}

// Client forwards a command to the daemon.
type Client interface {
	Send(action uint16, flags FlagSet) error
}

// Daemon serves the commands.
type Daemon interface {
	Listen() error
	Close() error
}

// DaemonFactory creates the daemon and its clients from the global flags.
type DaemonFactory interface {
	ClientFromContext(cli.Flags) (Client, error)
	DaemonFromContext(cli.Flags) (Daemon, error)
}
