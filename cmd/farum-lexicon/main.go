package main

import (
	"fmt"
	"os"
)

var version = "dev"

var commands = map[string]func([]string) error{
	"check":   runCheck,
	"dump":    runDump,
	"analyze": runAnalyze,
}

func usage() {
	fmt.Fprintf(os.Stderr, `farum-lexicon - lexicon review tool (version %s)

Usage:
  farum-lexicon <command> [options]

Commands:
  check     Validate a lexicon file (.toml, .yaml, .yml)
  dump      Print the embedded or given lexicon as toml or yaml
  analyze   Run analysis, crisis detection and selection on one message

Run 'farum-lexicon <command> -h' for command-specific help.
`, version)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	if cmd == "-h" || cmd == "--help" || cmd == "help" {
		usage()
		os.Exit(0)
	}
	if cmd == "-v" || cmd == "--version" || cmd == "version" {
		fmt.Println(version)
		os.Exit(0)
	}

	fn, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}

	if err := fn(os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
