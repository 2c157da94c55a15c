package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/HydroGest/lmarena/core"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

// Options is the root command line. Without a subcommand the bot runs in
// the foreground.
type Options struct {
	EnvFile string `long:"env-file" default:".env" description:"dotenv file loaded before the configuration is read"`

	Run     RunCmd     `command:"run" description:"Run the bot in the foreground (default)"`
	Service ServiceCmd `command:"service" description:"Install, control or run the system service"`
	History HistoryCmd `command:"history" description:"Print recent generations from the history database"`
	Version VersionCmd `command:"version" description:"Print the version"`
}

var options Options

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d (%s)", e.code, core.ExitCodeName(e.code))
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run parses args, executes the selected command and returns the exit code.
func run(args []string) int {
	parser := newParser()
	rest, err := parser.ParseArgs(args)
	if err != nil {
		return exitCodeFor(err)
	}
	if parser.Active == nil {
		if len(rest) > 0 {
			return exitCodeFor(fmt.Errorf("unknown command %q", rest[0]))
		}
		loadEnv(options.EnvFile)
		return exitCodeFor(options.Run.Execute(nil))
	}
	return core.ExitCodeSuccess
}

func newParser() *flags.Parser {
	options = Options{}
	parser := flags.NewParser(&options, flags.HelpFlag|flags.PassDoubleDash)
	parser.SubcommandsOptional = true
	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		if cmd == nil {
			return nil
		}
		loadEnv(options.EnvFile)
		return cmd.Execute(args)
	}
	return parser
}

func exitCodeFor(err error) int {
	if err == nil {
		return core.ExitCodeSuccess
	}
	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	var flagsErr *flags.Error
	if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
		fmt.Fprintln(os.Stdout, flagsErr.Message)
		return core.ExitCodeSuccess
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return core.ExitCodeError
}

// loadEnv loads path into the environment. A missing file is fine: every
// setting can come from the real environment.
func loadEnv(path string) {
	if path == "" {
		return
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		// The logger does not exist yet.
		fmt.Fprintf(os.Stderr, "Warning: could not load %s: %v\n", path, err)
	}
}

// RunCmd runs the bot until SIGINT/SIGTERM.
type RunCmd struct{}

func (c *RunCmd) Execute(_ []string) error {
	if code := runBot(context.Background(), options.EnvFile); code != core.ExitCodeSuccess {
		return &exitError{code: code}
	}
	return nil
}

// VersionCmd prints the build version.
type VersionCmd struct{}

func (c *VersionCmd) Execute(_ []string) error {
	fmt.Println("lmarena", version)
	return nil
}
