package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "maestro",
		Short:         "Compile, run and debug maestro pipeline scripts",
		SilenceUsage:  true,
		SilenceErrors: true,
		// Flags are bound for the command being run, so subcommands may share
		// flag names. Every flag may also be set with a MAESTRO_ prefixed
		// environment variable.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			return processGlobalFlags()
		},
	}
	flags := root.PersistentFlags()
	flags.Bool("no-color", false, "Disable colored output")
	flags.String("log-level", "warn", "Log level (trace, debug, info, warn, error)")
	flags.StringP("output", "o", "", "Output format (json, text)")
	flags.Bool("no-builtins", false, "Do not register the builtin commands")
	root.RegisterFlagCompletionFunc("output", cobra.FixedCompletions(outputFormatsCompletion, cobra.ShellCompDirectiveNoFileComp))

	root.AddCommand(
		newRunCmd(),
		newDisCmd(),
		newBuildCmd(),
		newExecCmd(),
		newDebugCmd(),
		newCommandsCmd(),
		newVersionCmd(),
	)
	return root
}

func initViper() {
	viper.SetEnvPrefix("maestro")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.ToLower(viper.GetString("output")) == "json" {
				out, err := getOutputJSON(map[string]any{
					"version": version,
					"commit":  commit,
					"date":    date,
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	}
}

func main() {
	initViper()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fatal(err)
	}
}
