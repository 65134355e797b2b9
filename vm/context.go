package vm

import (
	"context"
	"fmt"

	"github.com/maestro-lang/maestro/value"
)

// Context is handed to a native command for one invocation. The stack above
// StartIndex holds the piped input followed by the arguments. A command
// appends its outputs with Push; the VM then moves them down over the input
// and arguments. Removing values below the outputs is not allowed.
type Context struct {
	context.Context

	Stack          []value.Value
	InputCount     int
	StartIndex     int
	ParameterCount int

	errorMessage string
	failed       bool
}

// Inputs returns the values piped into the command.
func (c *Context) Inputs() []value.Value {
	return c.Stack[c.StartIndex : c.StartIndex+c.InputCount]
}

// Input returns the i-th piped value, or null when out of range.
func (c *Context) Input(i int) value.Value {
	if i < 0 || i >= c.InputCount {
		return value.Null
	}
	return c.Stack[c.StartIndex+i]
}

// Args returns the explicit arguments of the call.
func (c *Context) Args() []value.Value {
	start := c.StartIndex + c.InputCount
	return c.Stack[start : start+c.ParameterCount]
}

// Arg returns the i-th argument, or null when out of range.
func (c *Context) Arg(i int) value.Value {
	if i < 0 || i >= c.ParameterCount {
		return value.Null
	}
	return c.Stack[c.StartIndex+c.InputCount+i]
}

// Push appends outputs.
func (c *Context) Push(values ...value.Value) {
	c.Stack = append(c.Stack, values...)
}

// Fail aborts the execution after the command returns. Only the first
// message is kept.
func (c *Context) Fail(format string, args ...any) {
	if c.failed {
		return
	}
	c.failed = true
	c.errorMessage = fmt.Sprintf(format, args...)
}

// Failed reports whether Fail was called.
func (c *Context) Failed() bool {
	return c.failed
}

// ErrorMessage returns the message given to Fail.
func (c *Context) ErrorMessage() string {
	return c.errorMessage
}

// NativeCommand is a host command instance. The linker creates one instance
// per call site, so an instance may keep state across invocations from the
// same place in a program.
type NativeCommand interface {
	Invoke(ctx *Context)
}

// NativeFunc adapts a function to the NativeCommand interface.
type NativeFunc func(ctx *Context)

func (f NativeFunc) Invoke(ctx *Context) {
	f(ctx)
}

// NativeFactory creates the instance bound to one call site.
type NativeFactory func() NativeCommand
