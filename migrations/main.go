// Command migrator manages the starlog database schema.
//
// Migrations are embedded in the binary, so a single artifact can bring
// any environment up to the schema version it was built for.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Set at build time via -ldflags "-X main.version=...".
var (
	version   = "dev"
	gitCommit = "unknown"
	buildTime = "unknown"
)

// schemaMigrator is the set of operations the CLI dispatches to.
type schemaMigrator interface {
	Up() error
	Down() error
	Status() error
	Version() error
	Drop() error
	Close() error
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("migrator", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() { printUsage(stderr) }

	showVersion := flags.Bool("version", false, "print build information and exit")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}

		return 2
	}

	if *showVersion {
		fmt.Fprintf(stdout, "migrator %s (commit %s, built %s)\n", version, gitCommit, buildTime)

		return 0
	}

	command := flags.Arg(0)
	if command == "" {
		printUsage(stderr)

		return 2
	}

	logger := slog.New(slog.NewTextHandler(stderr, nil))

	cfg, err := LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", slog.String("error", err.Error()))

		return 1
	}

	logger.Info("starting migrator", slog.String("config", cfg.String()))

	mg, err := newMigrator(cfg, nil, logger)
	if err != nil {
		logger.Error("failed to initialize migrator", slog.String("error", err.Error()))

		return 1
	}

	defer func() {
		_ = mg.Close()
	}()

	mg.out = stdout

	if err := executeCommand(command, mg, stdin, stdout); err != nil {
		logger.Error("migration command failed",
			slog.String("command", command),
			slog.String("error", err.Error()))

		return 1
	}

	return 0
}

// executeCommand dispatches one CLI command. Drop asks for confirmation
// on stdin before doing anything.
func executeCommand(command string, mg schemaMigrator, stdin io.Reader, stdout io.Writer) error {
	switch command {
	case "up":
		return mg.Up()
	case "down":
		return mg.Down()
	case "status":
		return mg.Status()
	case "version":
		return mg.Version()
	case "drop":
		if !confirmDrop(stdin, stdout) {
			fmt.Fprintln(stdout, "drop cancelled")

			return nil
		}

		return mg.Drop()
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// confirmDrop requires an explicit yes before a destructive drop.
func confirmDrop(stdin io.Reader, stdout io.Writer) bool {
	fmt.Fprint(stdout, "this drops every table in the database; continue? (y/N): ")

	scanner := bufio.NewScanner(stdin)
	if !scanner.Scan() {
		return false
	}

	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))

	return answer == "y" || answer == "yes"
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `migrator %s - starlog schema migration tool

usage:
    migrator [flags] <command>

commands:
    up       apply every pending migration
    down     roll back the most recent migration
    status   report applied vs embedded schema versions
    version  print the applied schema version
    drop     drop every table (asks for confirmation)

flags:
    -version  print build information and exit

environment:
    DATABASE_URL     Postgres connection string (required)
    MIGRATION_TABLE  version tracking table (default %s)
`, version, defaultMigrationTable)
}
