package main

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/maestro-lang/maestro"
	"github.com/maestro-lang/maestro/builtins"
	"github.com/maestro-lang/maestro/bytecode"
	"github.com/maestro-lang/maestro/manifest"
	"github.com/maestro-lang/maestro/vm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// addSourceFlags adds the flags selecting the program a command works on.
func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("code", "c", "", "Code to compile")
	cmd.Flags().Bool("stdin", false, "Read code from stdin")
	cmd.Flags().Bool("debug", false, "Compile in debug mode")
}

// addExecFlags adds the flags controlling an execution.
func addExecFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayP("input", "i", nil, "Value piped into the program (JSON or text, repeatable)")
	cmd.Flags().Bool("trace", false, "Log every executed instruction at trace level")
	cmd.Flags().Int("max-frame-depth", vm.DefaultMaxFrameDepth, "Maximum command call depth (0 for no limit)")
	cmd.Flags().Bool("timing", false, "Print the execution time")
}

// program is the code a command works on: a single source or the project
// found in the working directory.
type program struct {
	source   bytecode.Source
	dir      string
	manifest *manifest.Manifest
}

func getProgram(cmd *cobra.Command, args []string) (*program, error) {
	// Determine what code is to be compiled. There are four possibilities:
	// 1. --code <code>
	// 2. --stdin (read code from stdin)
	// 3. path as args[0]
	// 4. the maestro.toml project enclosing the working directory
	codeFlagSet := cmd.Flags().Changed("code")
	stdinFlagSet := viper.GetBool("stdin")
	pathSupplied := len(args) > 0
	if pathSupplied && (codeFlagSet || stdinFlagSet) {
		return nil, errors.New("multiple input sources specified")
	} else if codeFlagSet && stdinFlagSet {
		return nil, errors.New("multiple input sources specified")
	}
	switch {
	case stdinFlagSet:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, err
		}
		return &program{source: bytecode.Source{URI: "<stdin>", Content: string(data)}}, nil
	case pathSupplied:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return nil, err
		}
		return &program{
			source: bytecode.Source{URI: filepath.Base(args[0]), Content: string(data)},
			dir:    filepath.Dir(args[0]),
		}, nil
	case codeFlagSet:
		return &program{source: bytecode.Source{URI: maestro.MainURI, Content: viper.GetString("code")}}, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	m, err := manifest.FindAndLoad(wd)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errors.New("no input provided and no project found")
	}
	return &program{manifest: m}, nil
}

// newEngine creates an engine configured by the command flags and the
// project manifest, if any.
func (p *program) newEngine(cmd *cobra.Command, extra ...maestro.Option) (*maestro.Engine, error) {
	logger, err := newLogger(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	debug := viper.GetBool("debug")
	opts := []maestro.Option{
		maestro.WithLogger(logger),
		maestro.WithTrace(viper.GetBool("trace")),
		maestro.WithBuiltins(builtins.WithOutput(cmd.OutOrStdout())),
	}
	if viper.GetBool("no-builtins") {
		opts = append(opts, maestro.WithoutBuiltins())
	}
	if p.dir != "" {
		opts = append(opts, maestro.WithSourceLoader(manifest.DirLoader(p.dir)))
	}
	if m := p.manifest; m != nil {
		debug = debug || m.Build.Debug
		if m.Build.MaxFrameDepth > 0 {
			opts = append(opts, maestro.WithMaxFrameDepth(m.Build.MaxFrameDepth))
		}
	}
	// An explicit flag wins over the manifest.
	if f := cmd.Flags().Lookup("max-frame-depth"); f != nil && (f.Changed || p.manifest == nil) {
		opts = append(opts, maestro.WithMaxFrameDepth(viper.GetInt("max-frame-depth")))
	}
	opts = append(opts, maestro.WithDebug(debug))
	return maestro.New(append(opts, extra...)...), nil
}

// compiled is a program compiled by an engine.
type compiled struct {
	assembly *bytecode.Assembly
	project  *maestro.Project
}

func (p *program) compile(e *maestro.Engine) (*compiled, error) {
	if p.manifest != nil {
		project, err := e.CompileProject(p.manifest)
		if err != nil {
			return nil, err
		}
		return &compiled{assembly: project.Assembly, project: project}, nil
	}
	asm, err := e.Compile(p.source)
	if err != nil {
		return nil, err
	}
	return &compiled{assembly: asm}, nil
}

func (c *compiled) link(e *maestro.Engine) (*vm.Executable, error) {
	if c.project != nil {
		return e.LinkProject(c.project)
	}
	return e.Link(c.assembly)
}
