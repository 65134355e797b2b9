package main

import (
	"context"
	"fmt"
	"net"

	"github.com/maestro-lang/maestro"
	"github.com/maestro-lang/maestro/bytecode"
	"github.com/maestro-lang/maestro/debug"
	"github.com/maestro-lang/maestro/value"
	"github.com/maestro-lang/maestro/vm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newDebugCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "debug [file]",
		Short: "Run a script under a debug adapter",
		Long: "Compile a script or the current project in debug mode, wait for a\n" +
			"debug adapter client to connect and run the program under its control.",
		Args: cobra.MaximumNArgs(1),
		RunE: debugHandler,
	}
	addSourceFlags(cmd)
	addExecFlags(cmd)
	cmd.Flags().String("listen", "127.0.0.1:4711", "Address to accept the debugger connection on")
	cmd.Flags().Bool("stop-on-entry", false, "Stop before the first instruction")
	return cmd
}

func debugHandler(cmd *cobra.Command, args []string) error {
	prog, err := getProgram(cmd, args)
	if err != nil {
		return err
	}
	engine, err := prog.newEngine(cmd, maestro.WithDebug(true))
	if err != nil {
		return err
	}
	c, err := prog.compile(engine)
	if err != nil {
		return err
	}
	exe, err := c.link(engine)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	listener, err := net.Listen("tcp", viper.GetString("listen"))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "waiting for a debugger on %s\n", listener.Addr())
	server, err := debug.Accept(ctx, listener,
		debug.WithLogger(logger.With().Str("component", "debug").Logger()),
		debug.WithStopOnEntry(viper.GetBool("stop-on-entry")))
	listener.Close()
	if err != nil {
		return err
	}
	defer server.Close()

	served := make(chan error, 1)
	go func() { served <- server.Serve(ctx) }()
	if err := server.WaitConfigured(ctx); err != nil {
		return err
	}
	err = execute(cmd, func(ctx context.Context, input []value.Value) ([]value.Value, error) {
		return engine.NewVM(vm.WithDebugger(server)).Execute(ctx, exe, bytecode.EntryCommand, input)
	})
	if err != nil {
		return err
	}
	select {
	case err := <-served:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
