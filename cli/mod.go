// Package cli describes a command line independently of the library that
// parses it. Each package declares its commands through a CommandBuilder and
// reads its flags through Flags, which lets the same action run either in
// the process or on the daemon.
//
//	cmd := builder.SetCommand("flashlend")
//	deposit := cmd.SetSubCommand("deposit")
//	deposit.SetFlags(Float64Flag{Name: "amount", Required: true})
//	deposit.SetAction(func(flags Flags) error {
//		fmt.Println(flags.Float64("amount"))
//		return nil
//	})
//
// Documentation Last Review: 19.10.2026
//
package cli

import "time"

// Builder collects the commands of an application.
type Builder interface {
	SetCommand(name string) CommandBuilder

	Build() Application
}

// Application runs the command line.
type Application interface {
	Run(arguments []string) error
}

// CommandBuilder describes one command. A command with subcommands usually
// has no action.
type CommandBuilder interface {
	SetDescription(value string)

	SetFlags(...Flag)

	SetAction(Action)

	SetSubCommand(name string) CommandBuilder
}

// Action is run when its command is invoked.
type Action func(Flags) error

// Flag is one of the flag definitions of this package.
type Flag interface {
	Flag()
}

// Flags gives access to the parsed flags. A flag that is not defined returns
// the zero value.
type Flags interface {
	String(name string) string
	StringSlice(name string) []string
	Duration(name string) time.Duration
	Path(name string) string
	Int(name string) int
	Float64(name string) float64
	Bool(name string) bool
}
