package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ahrav/go-tally/infrastructure/legacy"
	"github.com/ahrav/go-tally/infrastructure/middleware"
	"github.com/ahrav/go-tally/infrastructure/snapshot"
	"github.com/ahrav/go-tally/internal/application"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	snapshot   string
	deleteMode string
	logLevel   string
}

// app is the wired ledger plus what commands need around it.
type app struct {
	cfg      application.Config
	logger   *slog.Logger
	store    *snapshot.FileStore
	ledger   *application.Ledger
	registry *prometheus.Registry
	out      io.Writer
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "tallyctl",
		Short:         "Inspect and maintain a problem rating ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&opts.snapshot, "snapshot", "", "snapshot file (overrides config)")
	root.PersistentFlags().StringVar(&opts.deleteMode, "delete-mode", "", "vote delete mode: soft or purge (overrides config)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")

	root.AddCommand(
		newStatsCmd(opts),
		newVotesCmd(opts),
		newRebuildCmd(opts),
		newImportCmd(opts),
		newDeleteUserVotesCmd(opts),
		newReportsCmd(opts),
		newWatchCmd(opts),
	)
	return root
}

// loadConfig resolves the configuration: file if given, then flag
// overrides, then validation.
func loadConfig(opts *globalOptions) (application.Config, error) {
	cfg := application.DefaultConfig()
	if opts.configPath != "" {
		var err error
		if cfg, err = application.LoadConfig(opts.configPath); err != nil {
			return application.Config{}, err
		}
	}
	if opts.snapshot != "" {
		cfg.SnapshotPath = opts.snapshot
	}
	if opts.deleteMode != "" {
		cfg.DeleteMode = application.DeleteMode(opts.deleteMode)
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return application.Config{}, err
	}
	return cfg, nil
}

func newApp(cmd *cobra.Command, opts *globalOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	store, err := snapshot.NewFileStore(cfg.SnapshotPath, logger)
	if err != nil {
		return nil, err
	}
	reg := prometheus.NewRegistry()
	metrics := middleware.NewPrometheusMetrics(reg)
	ledger, err := application.NewLedger(cfg, store,
		application.WithLogger(logger),
		application.WithMetrics(metrics),
		application.WithObserver(middleware.NewOTelObserver(metrics)),
	)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		ledger:   ledger,
		registry: reg,
		out:      cmd.OutOrStdout(),
	}, nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseID(arg, what string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, arg)
	}
	return id, nil
}

func newStatsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <problem-id>",
		Short: "Print the aggregate statistics of a problem",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "problem")
			if err != nil {
				return err
			}
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			stats, err := a.ledger.GetProblemStats(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.printJSON(stats)
		},
	}
}

func newVotesCmd(opts *globalOptions) *cobra.Command {
	var userID, courseID int
	cmd := &cobra.Command{
		Use:   "votes [problem-id]",
		Short: "List live votes of a problem, or of a user with --user",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			if userID > 0 {
				votes, err := a.ledger.ListVotesForUser(cmd.Context(), userID, courseID)
				if err != nil {
					return err
				}
				return a.printJSON(votes)
			}
			if len(args) == 0 {
				return errors.New("a problem id or --user is required")
			}
			id, err := parseID(args[0], "problem")
			if err != nil {
				return err
			}
			votes, err := a.ledger.ListVotesForProblem(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.printJSON(votes)
		},
	}
	cmd.Flags().IntVar(&userID, "user", 0, "list votes cast by this user id")
	cmd.Flags().IntVar(&courseID, "course", 0, "with --user, restrict to problems of this course")
	return cmd
}

func newRebuildCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Recompute every aggregate and median from live votes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			return a.ledger.Rebuild(cmd.Context())
		},
	}
}

func newImportCmd(opts *globalOptions) *cobra.Command {
	var src legacy.Sources
	cmd := &cobra.Command{
		Use:   "import [legacy-dir]",
		Short: "Merge a legacy export (user.json, votes.json, problem.txt)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sources := src
			if len(args) == 1 {
				def := legacy.DirSources(args[0])
				if sources.Users == "" {
					sources.Users = def.Users
				}
				if sources.Votes == "" {
					sources.Votes = def.Votes
				}
				if sources.Problems == "" {
					sources.Problems = def.Problems
				}
			}
			if sources == (legacy.Sources{}) {
				return errors.New("a legacy directory or at least one source flag is required")
			}
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			batch, err := legacy.Load(cmd.Context(), sources)
			if err != nil {
				return err
			}
			summary, err := a.ledger.ImportLegacy(cmd.Context(), batch)
			if err != nil {
				return err
			}
			return a.printJSON(summary)
		},
	}
	cmd.Flags().StringVar(&src.Users, "users", "", "legacy user export")
	cmd.Flags().StringVar(&src.Votes, "votes", "", "legacy vote export")
	cmd.Flags().StringVar(&src.Problems, "problems", "", "legacy title/URL list")
	return cmd
}

func newDeleteUserVotesCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-user-votes <user-id>",
		Short: "Retire every live vote of a user and purge reports on them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "user")
			if err != nil {
				return err
			}
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			n, err := a.ledger.DeleteVotesForUser(cmd.Context(), id)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.out, "retired %d vote(s) of user %d\n", n, id)
			return err
		},
	}
}

func newReportsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reports",
		Short: "List open vote reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			reports, err := a.ledger.ListReports(cmd.Context())
			if err != nil {
				return err
			}
			return a.printJSON(reports)
		},
	}
}

func newWatchCmd(opts *globalOptions) *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reload the ledger whenever another process rewrites the snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.watch(ctx, metricsAddr)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	return cmd
}

func (a *app) watch(ctx context.Context, metricsAddr string) error {
	if err := a.ledger.Load(ctx); err != nil {
		return err
	}
	w, err := snapshot.NewWatcher(a.store.Path(), a.ledger.EnsureFresh, a.logger)
	if err != nil {
		return err
	}
	defer w.Close()

	if metricsAddr != "" {
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics server stopped", slog.String("error", err.Error()))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		a.logger.Info("serving metrics", slog.String("addr", metricsAddr))
	}

	a.logger.Info("watching snapshot", slog.String("path", a.store.Path()))
	return w.Run(ctx)
}
