package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/maestro-lang/maestro"
	"github.com/maestro-lang/maestro/bytecode"
	"github.com/maestro-lang/maestro/value"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [file]",
		Short: "Compile a script or the current project into an artifact",
		Long: "Compile a script or the current project into an artifact. Modules\n" +
			"compiled for a project are written next to the project artifact.",
		Args: cobra.MaximumNArgs(1),
		RunE: buildHandler,
	}
	addSourceFlags(cmd)
	cmd.Flags().String("out", "", "Artifact file (defaults to the manifest output or the script name)")
	return cmd
}

func buildHandler(cmd *cobra.Command, args []string) error {
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
	// Link to report missing commands and modules at build time.
	if _, err := c.link(engine); err != nil {
		return err
	}

	var written []string
	if c.project != nil {
		if out := viper.GetString("out"); out != "" {
			c.project.Manifest.Build.Output = out
		}
		written, err = maestro.WriteProject(c.project)
	} else {
		out := viper.GetString("out")
		if out == "" {
			out = artifactName(prog.source.URI)
		}
		err = maestro.WriteArtifact(out, c.assembly)
		written = []string{out}
	}
	if err != nil {
		return err
	}
	for _, file := range written {
		fmt.Fprintln(cmd.OutOrStdout(), file)
	}
	return nil
}

// artifactName derives the artifact file of a script.
func artifactName(uri string) string {
	if strings.HasPrefix(uri, "<") {
		uri = "main"
	}
	return strings.TrimSuffix(uri, ".mae") + maestro.ArtifactExt
}

func newExecCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec <artifact>",
		Short: "Run a compiled artifact",
		Args:  cobra.ExactArgs(1),
		RunE:  execHandler,
	}
	addExecFlags(cmd)
	cmd.Flags().String("command", "", "Run the named command instead of the entry")
	cmd.Flags().StringArray("arg", nil, "Argument passed to --command (JSON or text, repeatable)")
	return cmd
}

func execHandler(cmd *cobra.Command, args []string) error {
	engine, err := (&program{}).newEngine(cmd)
	if err != nil {
		return err
	}
	exe, err := engine.LinkArtifact(args[0])
	if err != nil {
		return err
	}
	name := viper.GetString("command")
	if name == "" {
		name = bytecode.EntryCommand
	}
	cmdArgs, err := cmd.Flags().GetStringArray("arg")
	if err != nil {
		return err
	}
	return execute(cmd, func(ctx context.Context, input []value.Value) ([]value.Value, error) {
		return engine.Execute(ctx, exe, name, input, parseInputs(cmdArgs)...)
	})
}
