package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/hokaccha/go-prettyjson"
	"github.com/maestro-lang/maestro/errz"
	"github.com/maestro-lang/maestro/value"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

var red = color.New(color.FgRed).SprintFunc()

func fatal(msg interface{}) {
	var s string
	switch msg := msg.(type) {
	case string:
		s = red(msg)
	case error:
		// Diagnostics carry their own colors.
		s = strings.TrimSuffix(errz.NewFormatter(!color.NoColor).Format(msg), "\n")
	default:
		s = red(fmt.Sprintf("%v", msg))
	}
	fmt.Fprintln(os.Stderr, s)
	os.Exit(1)
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func isTerminalIO() bool {
	return isTerminal(os.Stdin) && isTerminal(os.Stdout)
}

var outputFormatsCompletion = []string{"json", "text"}

// getOutput renders the output tuple of a script. Without a format, an
// empty tuple prints nothing, a single value prints as JSON and larger
// tuples print as a JSON array.
func getOutput(results []value.Value, format string) (string, error) {
	switch strings.ToLower(format) {
	case "":
		if len(results) == 0 {
			return "", nil
		}
		output, err := getOutputJSON(tupleInterface(results))
		if err != nil {
			return getOutputText(results), nil
		}
		return string(output), nil
	case "json":
		output, err := getOutputJSON(tupleInterface(results))
		if err != nil {
			return "", err
		}
		return string(output), nil
	case "text":
		return getOutputText(results), nil
	default:
		return "", fmt.Errorf("unknown output format: %s", format)
	}
}

func tupleInterface(results []value.Value) any {
	if len(results) == 1 {
		return results[0].Interface()
	}
	items := make([]any, len(results))
	for i, v := range results {
		items[i] = v.Interface()
	}
	return items
}

// getOutputText prints one value per line.
func getOutputText(results []value.Value) string {
	lines := make([]string, len(results))
	for i, v := range results {
		lines[i] = v.String()
	}
	return strings.Join(lines, "\n")
}

func getOutputJSON(result any) ([]byte, error) {
	if color.NoColor {
		return json.MarshalIndent(result, "", "  ")
	}
	return prettyjson.Marshal(result)
}

// parseInput reads a command line value as JSON, falling back to the
// literal text. Whole numbers in the int32 range become ints.
func parseInput(s string) value.Value {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil || dec.More() {
		return value.NewString(s)
	}
	return fromJSON(x)
}

func fromJSON(x any) value.Value {
	switch x := x.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(string(x), 10, 32); err == nil {
			return value.NewInt(int32(i))
		}
		f, _ := x.Float64()
		return value.NewFloat(float32(f))
	case []any:
		items := make([]value.Value, len(x))
		for i, e := range x {
			items[i] = fromJSON(e)
		}
		return value.NewArray(items)
	default:
		return value.FromInterface(x)
	}
}

func parseInputs(args []string) []value.Value {
	values := make([]value.Value, len(args))
	for i, arg := range args {
		values[i] = parseInput(arg)
	}
	return values
}

func newLogger(w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return zerolog.Nop(), err
	}
	console := zerolog.ConsoleWriter{Out: w, NoColor: color.NoColor}
	return zerolog.New(console).Level(level).With().Timestamp().Logger(), nil
}

// Reads global flags from Viper and adjusts the environment accordingly.
func processGlobalFlags() error {
	if viper.GetBool("no-color") || !isTerminal(os.Stdout) {
		color.NoColor = true
	}
	if _, err := zerolog.ParseLevel(viper.GetString("log-level")); err != nil {
		return fmt.Errorf("invalid log level %q", viper.GetString("log-level"))
	}
	return nil
}
