package builtins

import (
	"regexp"
	"strings"

	"github.com/maestro-lang/maestro/value"
	"github.com/maestro-lang/maestro/vm"
)

// stringArgs returns the first n arguments as strings. It fails the call
// and returns false when any of them is not a string.
func stringArgs(c *vm.Context, name string, n int) ([]string, bool) {
	result := make([]string, n)
	for i := 0; i < n; i++ {
		arg := c.Arg(i)
		s, ok := arg.Str()
		if !ok {
			c.Fail("%s: expected a string argument (%s given)", name, arg.Kind())
			return nil, false
		}
		result[i] = s
	}
	return result, true
}

func Contains(c *vm.Context) {
	args, ok := stringArgs(c, "contains", 2)
	if !ok {
		return
	}
	c.Push(value.NewBool(strings.Contains(args[0], args[1])))
}

func Upper(c *vm.Context) {
	args, ok := stringArgs(c, "upper", 1)
	if !ok {
		return
	}
	c.Push(value.NewString(strings.ToUpper(args[0])))
}

func Lower(c *vm.Context) {
	args, ok := stringArgs(c, "lower", 1)
	if !ok {
		return
	}
	c.Push(value.NewString(strings.ToLower(args[0])))
}

// Trim removes leading and trailing white space.
func Trim(c *vm.Context) {
	args, ok := stringArgs(c, "trim", 1)
	if !ok {
		return
	}
	c.Push(value.NewString(strings.TrimSpace(args[0])))
}

// Split outputs the parts of a string around each separator.
func Split(c *vm.Context) {
	args, ok := stringArgs(c, "split", 2)
	if !ok {
		return
	}
	parts := strings.Split(args[0], args[1])
	for _, part := range parts {
		c.Push(value.NewString(part))
	}
}

// Join joins the text of its inputs with a separator.
func Join(c *vm.Context) {
	args, ok := stringArgs(c, "join", 1)
	if !ok {
		return
	}
	parts := make([]string, c.InputCount)
	for i, v := range c.Inputs() {
		parts[i] = v.String()
	}
	c.Push(value.NewString(strings.Join(parts, args[0])))
}

func Replace(c *vm.Context) {
	args, ok := stringArgs(c, "replace", 3)
	if !ok {
		return
	}
	c.Push(value.NewString(strings.ReplaceAll(args[0], args[1], args[2])))
}

// Match reports whether a string contains a match of a regular expression.
func Match(c *vm.Context) {
	args, ok := stringArgs(c, "match", 2)
	if !ok {
		return
	}
	matched, err := regexp.MatchString(args[0], args[1])
	if err != nil {
		c.Fail("match: %s", err)
		return
	}
	c.Push(value.NewBool(matched))
}
