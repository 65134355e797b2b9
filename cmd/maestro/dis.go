package main

import (
	"fmt"
	"path/filepath"

	"github.com/maestro-lang/maestro"
	"github.com/maestro-lang/maestro/bytecode"
	"github.com/maestro-lang/maestro/dis"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newDisCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dis [file]",
		Short: "Disassemble a script, an artifact or the current project",
		Args:  cobra.MaximumNArgs(1),
		RunE:  disHandler,
	}
	addSourceFlags(cmd)
	cmd.Flags().String("command", "", "Only disassemble the named command")
	return cmd
}

func disHandler(cmd *cobra.Command, args []string) error {
	asm, err := disAssembly(cmd, args)
	if err != nil {
		return err
	}
	instructions, err := dis.Disassemble(asm)
	if err != nil {
		return err
	}

	// If a command name was provided, disassemble its code only
	if name := viper.GetString("command"); name != "" {
		index, ok := asm.FindCommand(name)
		if !ok {
			return fmt.Errorf("command %q not found", name)
		}
		instructions = commandInstructions(asm, instructions, index)
	}
	dis.Print(instructions, cmd.OutOrStdout())
	return nil
}

func disAssembly(cmd *cobra.Command, args []string) (*bytecode.Assembly, error) {
	if len(args) > 0 && filepath.Ext(args[0]) == maestro.ArtifactExt {
		return maestro.ReadArtifact(args[0])
	}
	prog, err := getProgram(cmd, args)
	if err != nil {
		return nil, err
	}
	engine, err := prog.newEngine(cmd)
	if err != nil {
		return nil, err
	}
	c, err := prog.compile(engine)
	if err != nil {
		return nil, err
	}
	return c.assembly, nil
}

// commandInstructions selects the body of command index. Bodies are
// compiled in place behind a forward jump that skips them, so the jump
// target ends the body. The entry command spans all code.
func commandInstructions(asm *bytecode.Assembly, instructions []dis.Instruction, index int) []dis.Instruction {
	start := asm.Commands[index].CodeIndex
	end := len(asm.Bytes)
	for i, instr := range instructions {
		if instr.Offset < start {
			continue
		}
		if i > 0 && instructions[i-1].Target > start {
			end = instructions[i-1].Target
		}
		break
	}
	var result []dis.Instruction
	for _, instr := range instructions {
		if instr.Offset >= start && instr.Offset < end {
			result = append(result, instr)
		}
	}
	return result
}
