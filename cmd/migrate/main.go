// Command migrate manages the schema of the master catalog.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/bau/backend/internal/infrastructure/config"
	"github.com/bau/backend/internal/infrastructure/logger"
	"github.com/bau/backend/internal/infrastructure/migration"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// env is what a command runs against. migrator is nil for offline commands.
type env struct {
	dir      string
	log      *zap.Logger
	migrator *migration.Migrator
}

type command struct {
	usage   string
	summary string
	args    int
	offline bool
	run     func(e *env, args []string) error
}

var commands = map[string]command{
	"up": {summary: "Apply all pending migrations", run: func(e *env, _ []string) error {
		return e.migrator.Up()
	}},
	"down": {summary: "Roll back all migrations", run: func(e *env, _ []string) error {
		return e.migrator.Down()
	}},
	"step": {usage: "<n>", summary: "Apply n migrations, negative n rolls back", args: 1, run: func(e *env, args []string) error {
		n, err := intArg("step count", args[0])
		if err != nil {
			return err
		}
		return e.migrator.Steps(n)
	}},
	"force": {usage: "<version>", summary: "Set the version and clear the dirty flag", args: 1, run: func(e *env, args []string) error {
		v, err := intArg("version", args[0])
		if err != nil {
			return err
		}
		return e.migrator.Force(v)
	}},
	"version": {summary: "Show the applied version", run: func(e *env, _ []string) error {
		v, dirty, err := e.migrator.Version()
		if err != nil {
			return err
		}
		e.log.Info("Master catalog version", zap.Uint("version", v), zap.Bool("dirty", dirty))
		return nil
	}},
	"create": {usage: "<name>", summary: "Create an empty up/down pair", args: 1, offline: true, run: func(e *env, args []string) error {
		mf, err := migration.CreateMigration(e.dir, args[0], time.Now())
		if err != nil {
			return err
		}
		e.log.Info("Migration created", zap.String("version", mf.Version), zap.String("up", mf.UpPath), zap.String("down", mf.DownPath))
		return nil
	}},
	"list": {summary: "List migration files", offline: true, run: func(e *env, _ []string) error {
		files, err := migration.ListMigrations(e.dir)
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Println(f)
		}
		e.log.Info("Migrations found", zap.Int("count", len(files)))
		return nil
	}},
}

var errUsage = errors.New("usage")

func intArg(name, raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, errUsage)
	}
	return n, nil
}

// lookup resolves the command and checks its arity
func lookup(args []string) (command, []string, error) {
	if len(args) == 0 {
		return command{}, nil, errUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return command{}, nil, fmt.Errorf("unknown command %q: %w", args[0], errUsage)
	}
	if len(args)-1 < cmd.args {
		return command{}, nil, fmt.Errorf("%s needs %s: %w", args[0], cmd.usage, errUsage)
	}
	return cmd, args[1:], nil
}

func main() {
	path := flag.String("path", "", "Migrations directory (default: database.migrations_path)")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Usage = printUsage
	flag.Parse()

	cmd, args, err := lookup(flag.Args())
	if err != nil {
		if errors.Is(err, errUsage) && len(flag.Args()) > 0 {
			fmt.Fprintln(os.Stderr, err)
		}
		printUsage()
		os.Exit(2)
	}

	log, err := logger.New(&logger.Config{Level: *logLevel, Format: "console", Output: "stdout", TimeFormat: time.DateTime})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync(log)

	if err := run(cmd, args, *path, log); err != nil {
		log.Error("Migration command failed", zap.String("command", flag.Arg(0)), zap.Error(err))
		logger.Sync(log)
		os.Exit(1)
	}
}

func run(cmd command, args []string, dir string, log *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if dir == "" {
		dir = cfg.Database.MigrationsPath
	}
	if dir, err = filepath.Abs(dir); err != nil {
		return err
	}

	e := &env{dir: dir, log: log}
	if cmd.offline {
		return cmd.run(e, args)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open master catalog: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping master catalog %s: %w", cfg.Database.DBName, err)
	}

	if e.migrator, err = migration.New(db, dir, log); err != nil {
		return err
	}
	defer e.migrator.Close()

	return cmd.run(e, args)
}

func printUsage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	out := flag.CommandLine.Output()
	fmt.Fprintln(out, "Usage: migrate [flags] <command> [argument]")
	fmt.Fprintln(out, "\nCommands:")
	for _, name := range names {
		c := commands[name]
		fmt.Fprintf(out, "  %-18s %s\n", name+" "+c.usage, c.summary)
	}
	fmt.Fprintln(out, "\nFlags:")
	flag.PrintDefaults()
	fmt.Fprintln(out, "\nThe master catalog is configured by config.toml or BAU_DATABASE_* variables.")
	fmt.Fprintln(out, "Tenant databases are built by the provisioning service, not by this tool.")
}
