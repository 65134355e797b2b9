// Package debug serves a debug adapter session for maestro programs.
//
// A Server speaks Content-Length framed JSON requests, responses and events
// over any byte stream and attaches to a VirtualMachine as its Debugger.
// The VM runs on its own goroutine; OnHook blocks it while the session is
// stopped so requests may inspect frames and variables.
package debug

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/maestro-lang/maestro/bytecode"
	"github.com/maestro-lang/maestro/errz"
	"github.com/maestro-lang/maestro/value"
	"github.com/maestro-lang/maestro/vm"
	"github.com/rs/zerolog"
)

// threadID is the only thread a session reports.
const threadID = 1

type stepMode uint8

const (
	stepNone stepMode = iota
	stepOver
	stepIn
	stepOut
)

// position is a source line.
type position struct {
	uri  string
	line int
}

// Server is a debug session bound to one connection.
type Server struct {
	conn   io.ReadWriter
	reader *reader
	writer *writer
	logger zerolog.Logger

	configured     chan struct{}
	configuredOnce sync.Once

	mutex       sync.Mutex
	breakpoints map[string]map[int]bool
	stopOnEntry bool
	started     bool
	detached    bool
	pause       bool
	step        stepMode
	stepDepth   int
	machine     *vm.VirtualMachine
	resume      chan stepMode
	// lines holds the line each active frame last executed, indexed by
	// frame depth.
	lines []position
}

// Option is a configuration function for a Server.
type Option func(*Server)

// WithLogger sets the logger used for protocol traffic.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithStopOnEntry stops before the first instruction of every execution.
func WithStopOnEntry(stop bool) Option {
	return func(s *Server) {
		s.stopOnEntry = stop
	}
}

// NewServer creates a session speaking over conn.
func NewServer(conn io.ReadWriter, opts ...Option) *Server {
	s := &Server{
		conn:        conn,
		reader:      newReader(conn),
		writer:      &writer{w: conn},
		logger:      zerolog.Nop(),
		configured:  make(chan struct{}),
		breakpoints: map[string]map[int]bool{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Accept waits for one client on listener and returns its session.
func Accept(ctx context.Context, listener net.Listener, opts ...Option) (*Server, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	accepted := make(chan result, 1)
	go func() {
		conn, err := listener.Accept()
		accepted <- result{conn, err}
	}()
	select {
	case <-ctx.Done():
		listener.Close()
		return nil, ctx.Err()
	case r := <-accepted:
		if r.err != nil {
			return nil, r.err
		}
		return NewServer(r.conn, opts...), nil
	}
}

// Serve handles requests until the client disconnects, the stream ends or
// ctx is cancelled. A paused execution is released when Serve returns.
func (s *Server) Serve(ctx context.Context) error {
	defer s.detach()
	messages := make(chan []byte)
	failed := make(chan error, 1)
	go func() {
		for {
			body, err := s.reader.read()
			if err != nil {
				failed <- err
				return
			}
			select {
			case messages <- body:
			case <-ctx.Done():
				return
			}
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-failed:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		case body := <-messages:
			var req Request
			if err := json.Unmarshal(body, &req); err != nil {
				s.logger.Warn().Err(err).Msg("dropping malformed message")
				continue
			}
			if req.Type != "request" {
				continue
			}
			done, err := s.handle(&req)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}

// Close closes the underlying connection when it supports closing.
func (s *Server) Close() error {
	if c, ok := s.conn.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// WaitConfigured blocks until the client sent configurationDone or left.
func (s *Server) WaitConfigured(ctx context.Context) error {
	select {
	case <-s.configured:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) markConfigured() {
	s.configuredOnce.Do(func() { close(s.configured) })
}

// detach stops hooking, releasing a paused execution.
func (s *Server) detach() {
	s.markConfigured()
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.detached = true
	if s.resume != nil {
		s.resume <- stepNone
		s.resume = nil
	}
}

// OnBegin implements vm.Debugger.
func (s *Server) OnBegin(machine *vm.VirtualMachine, asm *bytecode.Assembly) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.started = false
	s.lines = s.lines[:0]
	s.step = stepNone
	s.logger.Debug().Str("assembly", asm.Name).Msg("execution started")
}

// OnEnd implements vm.Debugger.
func (s *Server) OnEnd(machine *vm.VirtualMachine, asm *bytecode.Assembly) {
	s.mutex.Lock()
	detached := s.detached
	s.mutex.Unlock()
	s.logger.Debug().Str("assembly", asm.Name).Msg("execution ended")
	if !detached {
		s.sendEvent("terminated", nil)
	}
}

// OnHook implements vm.Debugger. It blocks while the session is stopped.
func (s *Server) OnHook(machine *vm.VirtualMachine) {
	s.mutex.Lock()
	if s.detached {
		s.mutex.Unlock()
		return
	}
	depth := len(machine.Frames()) - 1
	loc := machine.FrameLocation(depth)
	here := position{uri: loc.URI, line: loc.Line}
	if len(s.lines) > depth+1 {
		s.lines = s.lines[:depth+1]
	}
	for len(s.lines) < depth+1 {
		s.lines = append(s.lines, position{})
	}
	newLine := s.lines[depth] != here
	s.lines[depth] = here

	var reason string
	switch {
	case s.pause:
		reason = "pause"
	case s.stopOnEntry && !s.started:
		reason = "entry"
	case newLine && s.stepDone(depth):
		reason = "step"
	case newLine && s.hasBreakpoint(loc):
		reason = "breakpoint"
	}
	s.started = true
	if reason == "" {
		s.mutex.Unlock()
		return
	}

	s.pause = false
	s.step = stepNone
	s.machine = machine
	resume := make(chan stepMode, 1)
	s.resume = resume
	s.mutex.Unlock()

	s.logger.Debug().Str("reason", reason).Str("location", loc.String()).Msg("stopped")
	s.sendEvent("stopped", map[string]any{
		"reason":            reason,
		"threadId":          threadID,
		"allThreadsStopped": true,
	})
	mode := <-resume

	s.mutex.Lock()
	s.machine = nil
	s.step = mode
	s.stepDepth = depth
	s.mutex.Unlock()
}

// stepDone reports whether a new line at depth completes the pending step.
func (s *Server) stepDone(depth int) bool {
	switch s.step {
	case stepOver:
		return depth <= s.stepDepth
	case stepIn:
		return true
	case stepOut:
		return depth < s.stepDepth
	}
	return false
}

func (s *Server) hasBreakpoint(loc errz.SourceLocation) bool {
	for source, lines := range s.breakpoints {
		if lines[loc.Line] && sameSource(source, loc.URI) {
			return true
		}
	}
	return false
}

// sameSource matches a client path against a source URI. Clients send
// absolute paths while sources are usually named relative to a project.
func sameSource(clientPath, uri string) bool {
	if uri == "" {
		return false
	}
	clientPath = strings.ReplaceAll(clientPath, "\\", "/")
	return clientPath == uri || strings.HasSuffix(clientPath, "/"+strings.TrimPrefix(uri, "./"))
}

func (s *Server) sendEvent(name string, body any) {
	if err := s.writer.event(name, body); err != nil {
		s.logger.Warn().Err(err).Str("event", name).Msg("failed to send event")
	}
}

// handle dispatches one request. It reports whether the session ended.
func (s *Server) handle(req *Request) (bool, error) {
	s.logger.Debug().Int("seq", req.Seq).Str("command", req.Command).Msg("request")
	var (
		body any
		err  error
		done bool
	)
	switch req.Command {
	case "initialize":
		body = map[string]any{
			"supportsConfigurationDoneRequest": true,
		}
	case "setBreakpoints":
		body, err = s.setBreakpoints(req.Arguments)
	case "configurationDone":
		s.markConfigured()
	case "threads":
		body = map[string]any{
			"threads": []map[string]any{{"id": threadID, "name": "main"}},
		}
	case "stackTrace":
		body, err = s.stackTrace()
	case "scopes":
		body, err = s.scopes(req.Arguments)
	case "variables":
		body, err = s.variables(req.Arguments)
	case "continue":
		err = s.proceed(stepNone)
		body = map[string]any{"allThreadsContinued": true}
	case "next":
		err = s.proceed(stepOver)
	case "stepIn":
		err = s.proceed(stepIn)
	case "stepOut":
		err = s.proceed(stepOut)
	case "pause":
		s.mutex.Lock()
		s.pause = true
		s.mutex.Unlock()
	case "disconnect":
		s.detach()
		done = true
	default:
		err = fmt.Errorf("unknown request '%s'", req.Command)
	}
	if werr := s.writer.respond(req, body, err); werr != nil {
		return true, werr
	}
	if req.Command == "initialize" {
		s.sendEvent("initialized", nil)
	}
	return done, nil
}

func (s *Server) proceed(mode stepMode) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.resume == nil {
		return fmt.Errorf("not stopped")
	}
	s.resume <- mode
	s.resume = nil
	return nil
}

// stopped returns the machine while an execution is stopped. The caller
// must hold the mutex.
func (s *Server) stopped() (*vm.VirtualMachine, error) {
	if s.machine == nil || s.resume == nil {
		return nil, fmt.Errorf("not stopped")
	}
	return s.machine, nil
}

func (s *Server) setBreakpoints(raw json.RawMessage) (any, error) {
	var args struct {
		Source struct {
			Path string `json:"path"`
		} `json:"source"`
		Breakpoints []struct {
			Line int `json:"line"`
		} `json:"breakpoints"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	lines := map[int]bool{}
	result := make([]map[string]any, 0, len(args.Breakpoints))
	for _, bp := range args.Breakpoints {
		lines[bp.Line] = true
		result = append(result, map[string]any{"verified": true, "line": bp.Line})
	}
	s.mutex.Lock()
	s.breakpoints[args.Source.Path] = lines
	s.mutex.Unlock()
	return map[string]any{"breakpoints": result}, nil
}

func (s *Server) stackTrace() (any, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	machine, err := s.stopped()
	if err != nil {
		return nil, err
	}
	frames := machine.Frames()
	// Frame 0 is the VM sentinel and has no source.
	result := make([]map[string]any, 0, len(frames)-1)
	for depth := len(frames) - 1; depth > 0; depth-- {
		loc := machine.FrameLocation(depth)
		result = append(result, map[string]any{
			"id":     depth,
			"name":   frames[depth].CommandName(),
			"line":   loc.Line,
			"column": loc.Column,
			"source": map[string]any{"name": baseName(loc.URI), "path": loc.URI},
		})
	}
	return map[string]any{"stackFrames": result, "totalFrames": len(result)}, nil
}

func baseName(uri string) string {
	if i := strings.LastIndexByte(uri, '/'); i >= 0 {
		return uri[i+1:]
	}
	return uri
}

func (s *Server) scopes(raw json.RawMessage) (any, error) {
	var args struct {
		FrameID int `json:"frameId"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	machine, err := s.stopped()
	if err != nil {
		return nil, err
	}
	if args.FrameID < 1 || args.FrameID >= len(machine.Frames()) {
		return nil, fmt.Errorf("unknown frame %d", args.FrameID)
	}
	return map[string]any{
		"scopes": []map[string]any{{
			"name":               "Locals",
			"variablesReference": args.FrameID,
			"expensive":          false,
		}},
	}, nil
}

func (s *Server) variables(raw json.RawMessage) (any, error) {
	var args struct {
		VariablesReference int `json:"variablesReference"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	machine, err := s.stopped()
	if err != nil {
		return nil, err
	}
	stack := machine.Stack()
	var infos []vm.VariableInfo
	if index, ok := machine.DebugFrameIndex(args.VariablesReference); ok {
		infos = machine.DebugInfo().FrameVariables(index)
	}
	result := make([]map[string]any, 0, len(infos))
	for _, info := range infos {
		if info.StackIndex >= len(stack) {
			continue
		}
		v := stack[info.StackIndex]
		result = append(result, map[string]any{
			"name":               info.Name,
			"value":              formatValue(v),
			"type":               v.Kind().String(),
			"variablesReference": 0,
		})
	}
	return map[string]any{"variables": result}, nil
}

func formatValue(v value.Value) string {
	if s, ok := v.Str(); ok {
		return strconv.Quote(s)
	}
	return v.String()
}
