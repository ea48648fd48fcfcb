package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/example/cardsched/internal/api"
	"github.com/example/cardsched/internal/config"
	"github.com/example/cardsched/internal/database"
	"github.com/example/cardsched/internal/excel"
	"github.com/example/cardsched/internal/logging"
	"github.com/example/cardsched/internal/notify"
	"github.com/example/cardsched/internal/review"
	"github.com/example/cardsched/internal/scheduler"
	sr "github.com/example/cardsched/internal/spaced_repetition"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// app holds what every command needs once configuration is loaded
type app struct {
	cfg *config.Config
	log zerolog.Logger
}

func loadApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}, os.Stderr)
	return &app{cfg: cfg, log: log}, nil
}

// openService connects to the database and builds the review service
func (a *app) openService(reg prometheus.Registerer) (*sqlx.DB, *review.Service, error) {
	db, err := database.Connect(a.cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	engine, err := sr.NewEngine(a.cfg.Scheduling)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	opts := []review.Option{review.WithLogger(logging.Component(a.log, "review"))}
	if reg != nil {
		metrics, err := review.NewMetrics(reg)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		opts = append(opts, review.WithMetrics(metrics))
	}
	return db, review.NewService(db, engine, opts...), nil
}

func (a *app) notifier() (scheduler.Notifier, error) {
	if a.cfg.TelegramToken == "" {
		a.log.Warn().Msg("TELEGRAM_BOT_TOKEN is not set, reminders go to the log")
		return notify.NewLogNotifier(logging.Component(a.log, "notify")), nil
	}
	return notify.NewTelegramNotifier(a.cfg.TelegramToken, logging.Component(a.log, "notify"))
}

func (a *app) newScheduler(db *sqlx.DB) (*scheduler.Scheduler, error) {
	n, err := a.notifier()
	if err != nil {
		return nil, err
	}
	return scheduler.New(db, n, scheduler.Config{
		StartHour: a.cfg.NotificationStartHour,
		EndHour:   a.cfg.NotificationEndHour,
	}, logging.Component(a.log, "scheduler")), nil
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "cardsched",
		Short:        "Spaced-repetition scheduling service for flashcards",
		SilenceUsage: true,
	}
	root.AddCommand(
		newServeCommand(),
		newImportCommand(),
		newExportLogsCommand(),
		newRemindCommand(),
		newSimulateCommand(),
	)
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the reminder scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, svc, err := a.openService(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer db.Close()

	if a.cfg.SchedulerEnabled {
		sched, err := a.newScheduler(db)
		if err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer sched.Stop()
	}

	serverCfg := api.DefaultServerConfig()
	serverCfg.Addr = a.cfg.HTTPAddr
	server := api.NewServer(serverCfg, svc, prometheus.DefaultGatherer, logging.Component(a.log, "http"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.log.Info().Msg("stopped")
	return nil
}

func newImportCommand() *cobra.Command {
	cfg := excel.DefaultImportConfig()
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import cards from an xlsx or csv file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			db, svc, err := a.openService(nil)
			if err != nil {
				return err
			}
			defer db.Close()

			cfg.FilePath = args[0]
			res, err := excel.ImportCards(cmd.Context(), cfg, svc)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed %d, created %d, skipped %d, errors %d\n",
				res.TotalProcessed, res.Created, res.Skipped, len(res.Errors))
			for _, e := range res.Errors {
				fmt.Fprintln(cmd.ErrOrStderr(), e)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&cfg.OwnerID, "user", 0, "user receiving the cards")
	cmd.Flags().StringVar(&cfg.SheetName, "sheet", "", "sheet to import (first sheet by default)")
	cmd.Flags().IntVar(&cfg.StartRow, "start-row", cfg.StartRow, "first row to import, 1-based")
	cmd.Flags().StringVar(&cfg.DefaultDeck, "deck", cfg.DefaultDeck, "deck for rows without one")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newExportLogsCommand() *cobra.Command {
	var since string
	cmd := &cobra.Command{
		Use:   "export-logs <user-id> <out.xlsx>",
		Short: "Export a user's review history to a spreadsheet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			var from time.Time
			if since != "" {
				if from, err = time.Parse("2006-01-02", since); err != nil {
					return fmt.Errorf("invalid --since %q: %w", since, err)
				}
			}

			a, err := loadApp()
			if err != nil {
				return err
			}
			db, svc, err := a.openService(nil)
			if err != nil {
				return err
			}
			defer db.Close()

			logs, err := svc.OwnerHistory(cmd.Context(), userID, from)
			if err != nil {
				return err
			}
			out, err := os.Create(args[1])
			if err != nil {
				return err
			}
			if err := excel.ExportReviewLogs(out, logs); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d reviews to %s\n", len(logs), args[1])
			return nil
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "only reviews on or after this date (YYYY-MM-DD)")
	return cmd
}

func newRemindCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remind <user-id>",
		Short: "Send a reminder to one user now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			a, err := loadApp()
			if err != nil {
				return err
			}
			db, err := database.Connect(a.cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			sched, err := a.newScheduler(db)
			if err != nil {
				return err
			}
			sent, err := sched.RunManualCheck(cmd.Context(), userID)
			if err != nil {
				return err
			}
			if !sent {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing due")
			}
			return nil
		},
	}
}

func newSimulateCommand() *cobra.Command {
	var (
		ratings   string
		retention float64
		maxIvl    int
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Print the schedule produced by a sequence of ratings",
		Long: `Simulate reviews of one card, each taken on its due date.

Example:
  cardsched simulate --ratings Good,Good,Again,Easy`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := sr.DefaultConfig()
			cfg.RequestRetention = retention
			cfg.MaximumInterval = maxIvl
			engine, err := sr.NewEngine(cfg)
			if err != nil {
				return err
			}
			var seq []sr.Rating
			for _, s := range strings.Split(ratings, ",") {
				r, err := sr.ParseRating(s)
				if err != nil {
					return err
				}
				seq = append(seq, r)
			}
			return simulate(cmd, engine, seq)
		},
	}
	cmd.Flags().StringVar(&ratings, "ratings", "Good,Good,Good,Good", "comma separated ratings")
	cmd.Flags().Float64Var(&retention, "retention", sr.DefaultRequestRetention, "target recall probability")
	cmd.Flags().IntVar(&maxIvl, "max-interval", sr.DefaultMaximumInterval, "longest interval in days")
	return cmd
}

func simulate(cmd *cobra.Command, engine *sr.Engine, seq []sr.Rating) error {
	start := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	state := engine.Initial(start)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\trating\tday\tstability\tdifficulty\tinterval\tdue")
	for i, r := range seq {
		res := engine.Review(state, r, state.Due)
		day := int(state.Due.Sub(start).Hours() / 24)
		fmt.Fprintf(w, "%d\t%s\t%d\t%.2f\t%.2f\t%d\t%s\n",
			i+1, r, day, res.State.Stability, res.State.Difficulty, res.Interval,
			res.State.Due.Format("2006-01-02"))
		state = res.State
	}
	return w.Flush()
}
