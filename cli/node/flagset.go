package node

import (
	"math"
	"time"
)

// FlagSet carries the flag values from the command line to the daemon. After
// the JSON round-trip, numbers are float64 and slices are []interface{}, so
// the getters accept both forms.
//
// - implements cli.Flags
type FlagSet map[string]interface{}

// String implements cli.Flags.
func (fset FlagSet) String(name string) string {
	str, _ := fset[name].(string)
	return str
}

// Path implements cli.Flags.
func (fset FlagSet) Path(name string) string {
	return fset.String(name)
}

// Bool implements cli.Flags.
func (fset FlagSet) Bool(name string) bool {
	b, _ := fset[name].(bool)
	return b
}

// StringSlice implements cli.Flags. Elements that are not strings are
// skipped.
func (fset FlagSet) StringSlice(name string) []string {
	switch list := fset[name].(type) {
	case []string:
		return list
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, elem := range list {
			if str, ok := elem.(string); ok {
				out = append(out, str)
			}
		}

		return out
	}

	return nil
}

// Duration implements cli.Flags. A number is read as nanoseconds.
func (fset FlagSet) Duration(name string) time.Duration {
	if d, ok := fset[name].(time.Duration); ok {
		return d
	}

	if f, ok := fset[name].(float64); ok {
		return time.Duration(f)
	}

	return 0
}

// Int implements cli.Flags. A number with a fraction is not an integer and
// returns zero.
func (fset FlagSet) Int(name string) int {
	if i, ok := fset[name].(int); ok {
		return i
	}

	f, ok := fset[name].(float64)
	if !ok || f != math.Trunc(f) {
		return 0
	}

	return int(f)
}

// Float64 implements cli.Flags.
func (fset FlagSet) Float64(name string) float64 {
	switch num := fset[name].(type) {
	case float64:
		return num
	case int:
		return float64(num)
	}

	return 0
}
