// Package ucli implements the command-line builder on top of urfave/cli.
package ucli

import (
	"fmt"

	urfave "github.com/urfave/cli/v2"
	"go.flashlend.io/stxdapp/cli"
)

// Builder is the root of the command tree.
//
// - implements cli.Builder
type Builder struct {
	name     string
	usage    string
	action   cli.Action
	flags    []cli.Flag
	commands []*command
}

// NewBuilder returns a builder for the application. The action runs when no
// command is given and can be nil. The flags are global.
func NewBuilder(name string, action cli.Action, flags ...cli.Flag) *Builder {
	return &Builder{name: name, action: action, flags: flags}
}

// SetUsage sets the one-line description of the application.
func (b *Builder) SetUsage(usage string) {
	b.usage = usage
}

// SetCommand implements cli.Builder.
func (b *Builder) SetCommand(name string) cli.CommandBuilder {
	cmd := &command{name: name}
	b.commands = append(b.commands, cmd)

	return cmd
}

// Build implements cli.Builder. It panics if a flag has an unknown type.
func (b *Builder) Build() cli.Application {
	app := &urfave.App{
		Name:     b.name,
		Usage:    b.usage,
		Flags:    buildFlags(b.flags),
		Action:   makeAction(b.action),
		Commands: make([]*urfave.Command, len(b.commands)),
	}

	for i, cmd := range b.commands {
		app.Commands[i] = cmd.build()
	}

	app.Setup()

	return app
}

// command is a node of the command tree.
//
// - implements cli.CommandBuilder
type command struct {
	name        string
	description string
	action      cli.Action
	flags       []cli.Flag
	subcommands []*command
}

// SetDescription implements cli.CommandBuilder.
func (c *command) SetDescription(value string) {
	c.description = value
}

// SetFlags implements cli.CommandBuilder. The flags are appended.
func (c *command) SetFlags(flags ...cli.Flag) {
	c.flags = append(c.flags, flags...)
}

// SetAction implements cli.CommandBuilder.
func (c *command) SetAction(a cli.Action) {
	c.action = a
}

// SetSubCommand implements cli.CommandBuilder.
func (c *command) SetSubCommand(name string) cli.CommandBuilder {
	sub := &command{name: name}
	c.subcommands = append(c.subcommands, sub)

	return sub
}

func (c *command) build() *urfave.Command {
	out := &urfave.Command{
		Name:   c.name,
		Usage:  c.description,
		Flags:  buildFlags(c.flags),
		Action: makeAction(c.action),
	}

	for _, sub := range c.subcommands {
		out.Subcommands = append(out.Subcommands, sub.build())
	}

	return out
}

func buildFlags(flags []cli.Flag) []urfave.Flag {
	out := make([]urfave.Flag, len(flags))
	for i, f := range flags {
		out[i] = toUrfave(f)
	}

	return out
}

func toUrfave(f cli.Flag) urfave.Flag {
	switch def := f.(type) {
	case cli.StringFlag:
		return &urfave.StringFlag{Name: def.Name, Aliases: def.Aliases,
			EnvVars: def.EnvVars, Usage: def.Usage, Required: def.Required, Value: def.Value}
	case cli.StringSliceFlag:
		return &urfave.StringSliceFlag{Name: def.Name, Aliases: def.Aliases,
			EnvVars: def.EnvVars, Usage: def.Usage, Required: def.Required,
			Value: urfave.NewStringSlice(def.Value...)}
	case cli.DurationFlag:
		return &urfave.DurationFlag{Name: def.Name, Aliases: def.Aliases,
			EnvVars: def.EnvVars, Usage: def.Usage, Required: def.Required, Value: def.Value}
	case cli.IntFlag:
		return &urfave.IntFlag{Name: def.Name, Aliases: def.Aliases,
			EnvVars: def.EnvVars, Usage: def.Usage, Required: def.Required, Value: def.Value}
	case cli.Float64Flag:
		return &urfave.Float64Flag{Name: def.Name, Aliases: def.Aliases,
			EnvVars: def.EnvVars, Usage: def.Usage, Required: def.Required, Value: def.Value}
	case cli.BoolFlag:
		return &urfave.BoolFlag{Name: def.Name, Aliases: def.Aliases,
			EnvVars: def.EnvVars, Usage: def.Usage, Required: def.Required, Value: def.Value}
	default:
		panic(fmt.Sprintf("flag type '%T' not supported", f))
	}
}

// makeAction adapts the action to urfave, whose context implements cli.Flags.
func makeAction(a cli.Action) urfave.ActionFunc {
	if a == nil {
		return nil
	}

	return func(ctx *urfave.Context) error {
		return a(ctx)
	}
}
