// Command bvlscheck is a developer smoke-test harness for the bvls
// local-search engine: it builds one of the named scenario graphs from
// the engine's own test suite and runs Engine.Move in a loop until the
// engine reports sat, unsat or unknown, printing the result and every
// leaf's final assignment. It is not a parser or a general-purpose
// solver CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/bvlocal/bvls"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err == flag.ErrHelp {
		os.Exit(1)
	} else if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	var cmd string
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "", "-h", "--help", "help":
		usage()
		return flag.ErrHelp
	case "run":
		return NewRunCommand().Run(ctx, args)
	case "list":
		for _, name := range scenarioNames() {
			fmt.Println(name)
		}
		return nil
	default:
		return fmt.Errorf("bvlscheck %s: unknown command", cmd)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `
Bvlscheck runs one of the bvls engine's built-in scenarios to
completion and prints the result.

Usage:

	bvlscheck <command> [arguments]

The commands are:

	run         run a named scenario
	list        list available scenario names
	help        this screen
`[1:])
}

// RunCommand represents the "run" subcommand.
type RunCommand struct{}

// NewRunCommand returns a new instance of RunCommand.
func NewRunCommand() *RunCommand {
	return &RunCommand{}
}

func (cmd *RunCommand) Run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("bvlscheck-run", flag.ContinueOnError)
	seed := fs.Uint("seed", 1, "RNG seed")
	maxMoves := fs.Uint64("max-moves", 10000, "maximum number of Move calls before giving up")
	fs.Usage = cmd.usage
	if err := fs.Parse(args); err != nil {
		return err
	} else if fs.NArg() != 1 {
		return fmt.Errorf("exactly one scenario name required")
	}

	name := fs.Arg(0)
	build, ok := scenarios[name]
	if !ok {
		return fmt.Errorf("unknown scenario %q; see %q for the list", name, "bvlscheck list")
	}

	s := build(uint32(*seed))

	var result bvls.MoveResult
	var moves uint64
	for moves < *maxMoves {
		result = s.engine.Move()
		moves++
		if result != bvls.Unknown || s.engine.AllRootsSat() {
			break
		}
	}

	fmt.Printf("scenario: %s\n", name)
	fmt.Printf("result:   %s\n", result)
	fmt.Printf("moves:    %d (nprops=%d, nupdates=%d)\n", moves, s.engine.NProps(), s.engine.NUpdates())
	for _, leaf := range s.leaves {
		fmt.Printf("%-12s = %s\n", leaf.name, s.engine.GetAssignment(leaf.id))
	}
	return nil
}

func (cmd *RunCommand) usage() {
	fmt.Fprintln(os.Stderr, `
usage: bvlscheck run [arguments] <scenario>

Arguments:

	-seed int
		RNG seed (default 1)
	-max-moves int
		maximum number of Move calls before giving up (default 10000)
`[1:])
}
