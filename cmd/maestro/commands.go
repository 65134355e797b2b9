package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/maestro-lang/maestro/builtins"
	"github.com/maestro-lang/maestro/internal/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newCommandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List the builtin commands",
		Args:  cobra.NoArgs,
		RunE:  commandsHandler,
	}
}

func commandsHandler(cmd *cobra.Command, args []string) error {
	docs := builtins.Docs()
	if strings.ToLower(viper.GetString("output")) == "json" {
		items := make([]map[string]any, len(docs))
		for i, doc := range docs {
			params := doc.Parameters
			if params == nil {
				params = []string{}
			}
			items[i] = map[string]any{
				"name":       doc.Name,
				"parameters": params,
				"doc":        doc.Doc,
				"example":    doc.Example,
			}
		}
		out, err := getOutputJSON(items)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}
	rows := make([][]string, len(docs))
	for i, doc := range docs {
		params := make([]string, len(doc.Parameters))
		for j, p := range doc.Parameters {
			params[j] = "$" + p
		}
		rows[i] = []string{
			color.New(color.Bold).Sprint(doc.Name),
			strings.Join(params, " "),
			doc.Doc,
			color.GreenString("%s", doc.Example),
		}
	}
	table.NewTable(cmd.OutOrStdout()).
		WithHeader([]string{"COMMAND", "PARAMETERS", "DESCRIPTION", "EXAMPLE"}).
		WithRows(rows).
		Render()
	return nil
}
