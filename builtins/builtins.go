// Package builtins defines a default set of host commands.
package builtins

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/hashicorp/go-multierror"
	"github.com/maestro-lang/maestro/value"
	"github.com/maestro-lang/maestro/vm"
)

// Definition describes one builtin command.
type Definition struct {
	Name           string
	ParameterCount int
	Factory        vm.NativeFactory
}

type options struct {
	output io.Writer
}

// Option configures the builtins created by Builtins and Register.
type Option func(*options)

// WithOutput sets where print writes. The default is os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		o.output = w
	}
}

// Print writes its inputs to w separated by spaces and followed by a
// newline. It outputs nothing.
func Print(w io.Writer) vm.NativeFunc {
	return func(c *vm.Context) {
		var sb strings.Builder
		for i, v := range c.Inputs() {
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(v.String())
		}
		sb.WriteByte('\n')
		if _, err := io.WriteString(w, sb.String()); err != nil {
			c.Fail("print: %s", err)
		}
	}
}

// Bypass outputs its first input, or null when there is none.
func Bypass(c *vm.Context) {
	c.Push(c.Input(0))
}

// elements outputs one input per invocation. Once the inputs are exhausted
// it outputs null and starts over.
type elements struct {
	index int
}

func (e *elements) Invoke(c *vm.Context) {
	if e.index < c.InputCount {
		c.Push(c.Input(e.index))
		e.index++
		return
	}
	e.index = 0
	c.Push(value.Null)
}

func Count(c *vm.Context) {
	c.Push(value.NewInt(int32(c.InputCount)))
}

func Add(c *vm.Context) {
	arithmetic(c, "add", func(a, b int32) (int32, bool) { return a + b, true },
		func(a, b float32) float32 { return a + b })
}

func Sub(c *vm.Context) {
	arithmetic(c, "sub", func(a, b int32) (int32, bool) { return a - b, true },
		func(a, b float32) float32 { return a - b })
}

func Mul(c *vm.Context) {
	arithmetic(c, "mul", func(a, b int32) (int32, bool) { return a * b, true },
		func(a, b float32) float32 { return a * b })
}

func Div(c *vm.Context) {
	arithmetic(c, "div", func(a, b int32) (int32, bool) {
		if b == 0 {
			return 0, false
		}
		return a / b, true
	}, func(a, b float32) float32 { return a / b })
}

// arithmetic applies intOp when both arguments are ints and floatOp when
// either is a float.
func arithmetic(c *vm.Context, name string, intOp func(a, b int32) (int32, bool), floatOp func(a, b float32) float32) {
	a, b := c.Arg(0), c.Arg(1)
	if a.Kind() == value.Int && b.Kind() == value.Int {
		result, ok := intOp(a.Int(), b.Int())
		if !ok {
			c.Fail("%s: division by zero", name)
			return
		}
		c.Push(value.NewInt(result))
		return
	}
	x, okA := toFloat(a)
	y, okB := toFloat(b)
	if !okA || !okB {
		c.Fail("%s: expected numbers (%s and %s given)", name, a.Kind(), b.Kind())
		return
	}
	c.Push(value.NewFloat(floatOp(x, y)))
}

func toFloat(v value.Value) (float32, bool) {
	switch v.Kind() {
	case value.Int:
		return float32(v.Int()), true
	case value.Float:
		return v.Float(), true
	default:
		return 0, false
	}
}

// Lt compares two numbers or two strings.
func Lt(c *vm.Context) {
	a, b := c.Arg(0), c.Arg(1)
	if s, ok := a.Str(); ok {
		if t, ok := b.Str(); ok {
			c.Push(value.NewBool(s < t))
			return
		}
	}
	if a.Kind() == value.Int && b.Kind() == value.Int {
		c.Push(value.NewBool(a.Int() < b.Int()))
		return
	}
	x, okA := toFloat(a)
	y, okB := toFloat(b)
	if !okA || !okB {
		c.Fail("lt: unable to compare %s and %s", a.Kind(), b.Kind())
		return
	}
	c.Push(value.NewBool(x < y))
}

func Eq(c *vm.Context) {
	c.Push(value.NewBool(c.Arg(0).Equal(c.Arg(1))))
}

func Not(c *vm.Context) {
	c.Push(value.NewBool(!c.Arg(0).IsTruthy()))
}

// Concat joins the text of its inputs into one string.
func Concat(c *vm.Context) {
	var sb strings.Builder
	for _, v := range c.Inputs() {
		sb.WriteString(v.String())
	}
	c.Push(value.NewString(sb.String()))
}

// Array collects its inputs into a single array value.
func Array(c *vm.Context) {
	items := make([]value.Value, c.InputCount)
	copy(items, c.Inputs())
	c.Push(value.NewArray(items))
}

// Spread outputs the elements of an array argument. Any other value is
// output as is.
func Spread(c *vm.Context) {
	arg := c.Arg(0)
	if arg.Kind() != value.Array {
		c.Push(arg)
		return
	}
	c.Push(arg.Array()...)
}

// Length outputs the element count of an array or the character count of
// a string.
func Length(c *vm.Context) {
	arg := c.Arg(0)
	if arg.Kind() == value.Array {
		c.Push(value.NewInt(int32(len(arg.Array()))))
		return
	}
	if s, ok := arg.Str(); ok {
		c.Push(value.NewInt(int32(utf8.RuneCountInString(s))))
		return
	}
	c.Fail("length: unsupported argument (%s given)", arg.Kind())
}

// Fail aborts the execution with its argument as the message.
func Fail(c *vm.Context) {
	arg := c.Arg(0)
	if s, ok := arg.Str(); ok {
		c.Fail("%s", s)
		return
	}
	c.Fail("%s", arg)
}

func stateless(fn vm.NativeFunc) vm.NativeFactory {
	return func() vm.NativeCommand { return fn }
}

// Builtins returns the default command set.
func Builtins(opts ...Option) []Definition {
	o := &options{output: os.Stdout}
	for _, opt := range opts {
		opt(o)
	}
	return []Definition{
		{"add", 2, stateless(Add)},
		{"array", 0, stateless(Array)},
		{"bypass", 0, stateless(Bypass)},
		{"concat", 0, stateless(Concat)},
		{"contains", 2, stateless(Contains)},
		{"count", 0, stateless(Count)},
		{"div", 2, stateless(Div)},
		{"elements", 0, func() vm.NativeCommand { return &elements{} }},
		{"eq", 2, stateless(Eq)},
		{"fail", 1, stateless(Fail)},
		{"join", 1, stateless(Join)},
		{"length", 1, stateless(Length)},
		{"lower", 1, stateless(Lower)},
		{"lt", 2, stateless(Lt)},
		{"match", 2, stateless(Match)},
		{"mul", 2, stateless(Mul)},
		{"not", 1, stateless(Not)},
		{"print", 0, stateless(Print(o.output))},
		{"replace", 3, stateless(Replace)},
		{"split", 2, stateless(Split)},
		{"spread", 1, stateless(Spread)},
		{"sub", 2, stateless(Sub)},
		{"trim", 1, stateless(Trim)},
		{"upper", 1, stateless(Upper)},
	}
}

// Register adds every builtin to registry. Names that are already taken are
// reported together; the remaining builtins are still registered.
func Register(registry *vm.Registry, opts ...Option) error {
	var result *multierror.Error
	for _, def := range Builtins(opts...) {
		if err := registry.Register(def.Name, def.ParameterCount, def.Factory); err != nil {
			result = multierror.Append(result, fmt.Errorf("builtins: %w", err))
		}
	}
	return result.ErrorOrNil()
}
