package main

import (
	"database/sql"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/flora/backend/internal/infrastructure/config"
	"github.com/flora/backend/internal/infrastructure/logger"
	"github.com/flora/backend/internal/infrastructure/migration"
	"github.com/flora/backend/migrations"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// session is what a command runs against. migrator is nil for file-only commands.
type session struct {
	log      *zap.Logger
	dir      string
	migrator *migration.Migrator
}

type command struct {
	args    string
	help    string
	minArgs int
	offline bool
	run     func(s *session, args []string) error
}

var commands = map[string]command{
	"up": {help: "Apply all pending migrations", run: func(s *session, _ []string) error {
		return s.migrator.Up()
	}},
	"down": {help: "Roll back all migrations", run: func(s *session, _ []string) error {
		return s.migrator.Down()
	}},
	"step": {args: "<n>", help: "Apply n migrations (negative rolls back)", minArgs: 1, run: func(s *session, args []string) error {
		n, err := intArg(args[0])
		if err != nil {
			return err
		}
		return s.migrator.Steps(n)
	}},
	"goto": {args: "<version>", help: "Migrate up or down to a version", minArgs: 1, run: func(s *session, args []string) error {
		v, err := intArg(args[0])
		if err != nil {
			return err
		}
		if v < 0 {
			return fmt.Errorf("version must not be negative: %d", v)
		}
		return s.migrator.GoTo(uint(v))
	}},
	"force": {args: "<version>", help: "Record a version without migrating, clearing the dirty flag", minArgs: 1, run: func(s *session, args []string) error {
		v, err := intArg(args[0])
		if err != nil {
			return err
		}
		return s.migrator.Force(v)
	}},
	"version": {help: "Show the applied version", run: func(s *session, _ []string) error {
		version, dirty, err := s.migrator.Version()
		if err != nil {
			return err
		}
		s.log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil
	}},
	"create": {args: "<name> [description]", help: "Write the next numbered up/down pair", minArgs: 1, offline: true, run: func(s *session, args []string) error {
		description := ""
		if len(args) > 1 {
			description = args[1]
		}
		mf, err := migration.CreateMigration(s.fileDir(), args[0], description)
		if err != nil {
			return err
		}
		s.log.Info("Migration created",
			zap.String("version", mf.Version),
			zap.String("up_file", mf.UpPath),
			zap.String("down_file", mf.DownPath),
		)
		return nil
	}},
	"list": {help: "List migrations in version order", offline: true, run: func(s *session, _ []string) error {
		names, err := migration.ListMigrations(s.fileDir())
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	}},
	"validate": {help: "Check pairs and version numbering", offline: true, run: func(s *session, _ []string) error {
		var fsys fs.FS = migrations.FS
		if s.dir != "" {
			fsys = os.DirFS(s.dir)
		}
		if err := migration.ValidateFS(fsys); err != nil {
			return err
		}
		s.log.Info("Migrations are consistent")
		return nil
	}},
}

func main() {
	dir := flag.String("path", "", "Read migrations from this directory instead of the embedded set")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}
	name, args := args[0], args[1:]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		printUsage()
		os.Exit(2)
	}
	if len(args) < cmd.minArgs {
		fmt.Fprintf(os.Stderr, "usage: migrate %s %s\n", name, cmd.args)
		os.Exit(2)
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = *logLevel
	log, err := logger.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}
	s := &session{log: log, dir: *dir}
	if s.dir == "" {
		s.dir = cfg.Migration.Path
	}

	if !cmd.offline {
		closeFn, err := s.connect(cfg)
		if err != nil {
			log.Fatal("Failed to prepare migrator", zap.Error(err))
		}
		defer closeFn()
	}
	if err := cmd.run(s, args); err != nil {
		log.Fatal("Migration command failed", zap.String("command", name), zap.Error(err))
	}
}

// connect opens the database and the migrator; the returned func closes both
func (s *session) connect(cfg *config.Config) (func(), error) {
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if s.dir == "" {
		s.migrator, err = migration.NewEmbedded(db, s.log)
	} else {
		abs, absErr := filepath.Abs(s.dir)
		if absErr != nil {
			_ = db.Close()
			return nil, absErr
		}
		s.log.Info("Using migrations directory", zap.String("path", abs))
		s.migrator, err = migration.New(db, abs, s.log)
	}
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return func() {
		if err := s.migrator.Close(); err != nil {
			s.log.Warn("Error closing migrator", zap.Error(err))
		}
	}, nil
}

// fileDir is where create and list operate; the embedded set lives in migrations/
func (s *session) fileDir() string {
	if s.dir == "" {
		return "migrations"
	}
	return s.dir
}

func intArg(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("expected an integer, got %q", v)
	}
	return n, nil
}

func printUsage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(os.Stderr, "Flora database migration tool")
	fmt.Fprintln(os.Stderr, "\nUsage:\n  migrate [flags] <command> [arguments]\n\nCommands:")
	for _, name := range names {
		c := commands[name]
		fmt.Fprintf(os.Stderr, "  %-26s %s\n", name+" "+c.args, c.help)
	}
	fmt.Fprintln(os.Stderr, "\nFlags:")
	flag.PrintDefaults()
	fmt.Fprintln(os.Stderr, "\nDatabase settings come from config.toml and FLORA_DATABASE_* variables.")
}
