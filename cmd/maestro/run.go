package main

import (
	"context"
	"fmt"
	"time"

	"github.com/maestro-lang/maestro/bytecode"
	"github.com/maestro-lang/maestro/value"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Compile and run a script or the current project",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runHandler,
	}
	addSourceFlags(cmd)
	addExecFlags(cmd)
	return cmd
}

func runHandler(cmd *cobra.Command, args []string) error {
	prog, err := getProgram(cmd, args)
	if err != nil {
		return err
	}
	engine, err := prog.newEngine(cmd)
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
	return execute(cmd, func(ctx context.Context, input []value.Value) ([]value.Value, error) {
		return engine.Execute(ctx, exe, bytecode.EntryCommand, input)
	})
}

// execute runs fn with the --input values and prints its output tuple.
func execute(cmd *cobra.Command, fn func(ctx context.Context, input []value.Value) ([]value.Value, error)) error {
	// Read directly: viper would split JSON values at commas.
	args, err := cmd.Flags().GetStringArray("input")
	if err != nil {
		return err
	}
	input := parseInputs(args)
	start := time.Now()
	results, err := fn(cmd.Context(), input)
	if err != nil {
		return err
	}
	dt := time.Since(start)

	output, err := getOutput(results, viper.GetString("output"))
	if err != nil {
		return err
	}
	if output != "" {
		fmt.Fprintln(cmd.OutOrStdout(), output)
	}
	if viper.GetBool("timing") {
		fmt.Fprintf(cmd.OutOrStdout(), "%v\n", dt)
	}
	return nil
}
