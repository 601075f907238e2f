package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/hpungsan/keepsake/internal/config"
	"github.com/hpungsan/keepsake/internal/errors"
	"github.com/hpungsan/keepsake/internal/mcp"
	"github.com/hpungsan/keepsake/internal/ops"
	"github.com/hpungsan/keepsake/internal/store"
	"github.com/hpungsan/keepsake/internal/web"
)

// newCLIApp creates the CLI application with all commands.
// cfg is the loaded base configuration; flags override it per command.
func newCLIApp(cfg *config.Config) *cli.App {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	app := &cli.App{
		Name:    "keepsake",
		Usage:   "Time capsule service",
		Version: Version,
		Commands: []*cli.Command{
			serveCmd(cfg),
			mcpCmd(cfg),
			exportCmd(cfg),
			checkCmd(cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// seedFlags are accepted by every command that builds a store.
func seedFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "seed-dir", Usage: "Directory of JSON/YAML seed files"},
		&cli.StringFlag{Name: "seed-db", Usage: "SQLite snapshot file (ignored when --seed-dir is set)"},
		&cli.StringFlag{Name: "log-level", Usage: "Log level: debug|info|warn|error"},
	}
}

// session is a seeded store and the logger and config it was built with.
type session struct {
	cfg    *config.Config
	logger zerolog.Logger
	st     *store.Store
	report *store.LoadReport
	ctx    context.Context
}

// open applies flag overrides to base, configures logging on the app's error
// writer, and seeds a fresh store.
func open(c *cli.Context, base *config.Config) (*session, error) {
	cfg := config.Merge(base, &config.Config{
		SeedDir:  c.String("seed-dir"),
		SeedDB:   c.String("seed-db"),
		LogLevel: c.String("log-level"),
	})

	logger, err := newLogger(c.App.ErrWriter, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	st := store.New(store.WithLedgerLimit(cfg.IdempotencyMaxEntries))
	ctx := logger.WithContext(c.Context)
	report, err := ops.Bootstrap(ctx, st, cfg, ops.BootstrapInput{SeedDir: cfg.SeedDir, SeedDB: cfg.SeedDB})
	if err != nil {
		return nil, err
	}

	return &session{cfg: cfg, logger: logger, st: st, report: report, ctx: ctx}, nil
}

// newLogger builds the process logger. Output is human-readable on w.
func newLogger(w io.Writer, level string) (zerolog.Logger, error) {
	if level == "" {
		level = "info"
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), errors.NewInvalidRequest(fmt.Sprintf("invalid log level %q", level))
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().Str("service", "keepsake").Logger(), nil
}

// serveCmd creates the serve command.
func serveCmd(base *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Flags: append(seedFlags(),
			&cli.StringFlag{Name: "bind", Usage: "Listen address (default from config, 127.0.0.1)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Listen port (default from config, 8080)"},
		),
		Action: func(c *cli.Context) error {
			s, err := open(c, base)
			if err != nil {
				return outputError(err)
			}
			cfg := config.Merge(s.cfg, &config.Config{HTTPBind: c.String("bind"), HTTPPort: c.Int("port")})

			handler := web.NewHandler(s.st, cfg, prometheus.NewRegistry(), s.logger, Version)
			srv := web.NewServer(handler, cfg.HTTPBind, cfg.HTTPPort)
			if err := web.Run(s.ctx, srv, s.logger); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(base *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Run the MCP server on stdio",
		Flags: seedFlags(),
		Action: func(c *cli.Context) error {
			s, err := open(c, base)
			if err != nil {
				return outputError(err)
			}
			if unknown := mcp.ValidateDisabledTools(s.cfg.DisabledTools); len(unknown) > 0 {
				s.logger.Warn().Strs("tools", unknown).Msg("unknown tools in disabled_tools")
			}
			if unknown := mcp.ValidateDisabledTypes(s.cfg.DisabledTypes); len(unknown) > 0 {
				s.logger.Warn().Strs("types", unknown).Msg("unknown types in disabled_types")
			}
			if err := mcp.Run(s.st, s.cfg, s.logger, Version); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// exportCmd creates the export command.
func exportCmd(base *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Convert a seed to a JSON seed directory or a SQLite snapshot",
		Flags: append(seedFlags(),
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output directory (json) or database file (sqlite)"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: ops.FormatJSON, Usage: "Output format: json|sqlite"},
		),
		Action: func(c *cli.Context) error {
			if err := requireSeed(c, base); err != nil {
				return outputError(err)
			}
			if c.String("out") == "" {
				return outputError(errors.NewInvalidRequest("--out is required"))
			}
			s, err := open(c, base)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Export(s.ctx, s.st, ops.ExportInput{Path: c.String("out"), Format: c.String("format")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// CheckOutput reports a seed's load counts and whether the store passed verification.
type CheckOutput struct {
	*store.LoadReport
	OK bool `json:"ok"`
}

// checkCmd creates the check command.
func checkCmd(base *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Load a seed and verify the store's invariants",
		Flags: seedFlags(),
		Action: func(c *cli.Context) error {
			if err := requireSeed(c, base); err != nil {
				return outputError(err)
			}
			s, err := open(c, base)
			if err != nil {
				return outputError(err)
			}
			if err := s.st.Verify(); err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, CheckOutput{LoadReport: s.report, OK: true})
		},
	}
}

// requireSeed fails unless a seed source is set by flag or config.
func requireSeed(c *cli.Context, base *config.Config) error {
	if c.String("seed-dir") == "" && c.String("seed-db") == "" && base.SeedDir == "" && base.SeedDB == "" {
		return errors.NewInvalidRequest("a seed is required (--seed-dir or --seed-db)")
	}
	return nil
}

// Helper functions

// outputJSON marshals result to w as JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if kErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", kErr.Code, kErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
