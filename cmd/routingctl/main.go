package main

import (
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// errUsage signals that the command already printed its usage.
var errUsage = errors.New("usage")

// cli holds the process streams so commands can run in tests.
type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-version") {
		fmt.Printf("routingctl version %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	c := &cli{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	os.Exit(c.run(os.Args[1], os.Args[2:]))
}

// run dispatches a subcommand and returns the process exit code.
func (c *cli) run(subcommand string, args []string) int {
	var err error
	switch subcommand {
	case "encode":
		err = c.runEncode(args)
	case "decode":
		err = c.runDecode(args)
	case "diff":
		err = c.runDiff(args)
	case "serve":
		err = c.runServe(args)
	case "version":
		fmt.Fprintf(c.stdout, "routingctl version %s (built %s, commit %s)\n", version, buildTime, gitCommit)
	case "help", "-h", "--help":
		printUsage(c.stdout)
	default:
		fmt.Fprintf(c.stderr, "unknown command: %s\n\n", subcommand)
		printUsage(c.stderr)
		return 1
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		if err != errUsage {
			fmt.Fprintf(c.stderr, "routingctl %s: %v\n", subcommand, err)
		}
		return 2
	case errors.Is(err, errRoutingsDiffer):
		return 1
	default:
		fmt.Fprintf(c.stderr, "routingctl %s: %v\n", subcommand, err)
		return 1
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `Usage: routingctl <command> [options]

Commands:
  encode      Build a binary fragment from a YAML description
  decode      Print the routing carried by a binary fragment
  diff        Compare the routing of two fragments
  serve       Start the fragment HTTP API
  version     Print version information

Run 'routingctl <command> --help' for more information on a command.`)
}
