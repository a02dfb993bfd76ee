package cli

import "time"

// The flag definitions share the same properties: Aliases are alternative
// names, EnvVars are read when the flag is missing from the command line and
// Value is the default.

// StringFlag is a flag parsed as a string, such as an address or a contract
// identifier.
type StringFlag struct {
	Name     string
	Aliases  []string
	EnvVars  []string
	Usage    string
	Required bool
	Value    string
}

// StringSliceFlag is a flag that can be repeated, such as the choices of a
// market.
type StringSliceFlag struct {
	Name     string
	Aliases  []string
	EnvVars  []string
	Usage    string
	Required bool
	Value    []string
}

// DurationFlag is a flag parsed as a duration.
type DurationFlag struct {
	Name     string
	Aliases  []string
	EnvVars  []string
	Usage    string
	Required bool
	Value    time.Duration
}

// IntFlag is a flag parsed as an integer.
type IntFlag struct {
	Name     string
	Aliases  []string
	EnvVars  []string
	Usage    string
	Required bool
	Value    int
}

// Float64Flag is a flag parsed as a floating-point number. Amounts of STX are
// given in this form.
type Float64Flag struct {
	Name     string
	Aliases  []string
	EnvVars  []string
	Usage    string
	Required bool
	Value    float64
}

// BoolFlag is a switch.
type BoolFlag struct {
	Name     string
	Aliases  []string
	EnvVars  []string
	Usage    string
	Required bool
	Value    bool
}

// Flag implements cli.Flag.
func (StringFlag) Flag() {}

// Flag implements cli.Flag.
func (StringSliceFlag) Flag() {}

// Flag implements cli.Flag.
func (DurationFlag) Flag() {}

// Flag implements cli.Flag.
func (IntFlag) Flag() {}

// Flag implements cli.Flag.
func (Float64Flag) Flag() {}

// Flag implements cli.Flag.
func (BoolFlag) Flag() {}
