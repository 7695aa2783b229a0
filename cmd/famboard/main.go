package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"famboard/internal/board"
	"famboard/internal/cache"
	"famboard/internal/config"
	"famboard/internal/ics"
	appLog "famboard/internal/log"
	"famboard/internal/model"
	"famboard/internal/prefs"
	"famboard/internal/timeutil"
	"famboard/internal/todo"
	"famboard/internal/web"
)

const version = "0.1.0"

type rootFlags struct {
	configPath string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags rootFlags

	root := &cobra.Command{
		Use:           "famboard",
		Short:         "Family organizer board: calendars, schedule grid and todo lists",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level := flags.logLevel
			if !cmd.Flags().Changed("log-level") {
				if env := os.Getenv("LOG_LEVEL"); env != "" {
					level = env
				}
			}
			l, err := appLog.ParseLevel(level)
			if err != nil {
				return err
			}
			appLog.SetLevel(l)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "/etc/famboard/config.yaml", "Path to config file")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error); LOG_LEVEL env is used when unset")

	root.AddCommand(newServeCmd(&flags), newRenderCmd(&flags))
	return root
}

func newServeCmd(flags *rootFlags) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := loadConfig(flags.configPath)
			if err != nil {
				return err
			}
			if listen != "" {
				conf.Listen = listen
			}
			return serve(conf)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}

func newRenderCmd(flags *rootFlags) *cobra.Command {
	var (
		days  int
		start string
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Refresh once and print the schedule as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := loadConfig(flags.configPath)
			if err != nil {
				return err
			}
			return render(cmd.Context(), conf, days, start)
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Number of days (defaults to schedule.days)")
	cmd.Flags().StringVar(&start, "start", "", "First day, YYYY-MM-DD (defaults to today)")
	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	appLog.Info("famboard starting", "version", version)
	conf, err := config.Load(path)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", path)
		return nil, err
	}
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"days", conf.Schedule.Days,
		"calendar_count", len(conf.Calendars),
		"data_dir", conf.DataDir,
	)
	return conf, nil
}

type app struct {
	board *board.Board
	db    *prefs.DB
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		appLog.Error("closing preferences database", err)
	}
}

// newApp wires storage, the calendar backend and the board.
func newApp(ctx context.Context, conf *config.Config) (*app, error) {
	loc := web.ResolveLocation(conf.Timezone)
	clock := timeutil.SystemClock{}

	db, err := prefs.Open(ctx, filepath.Join(conf.DataDir, "famboard.db"), clock)
	if err != nil {
		return nil, err
	}

	fetcher := ics.NewFetcher(filepath.Join(conf.DataDir, "ics-cache"), nil, clock)
	calendar := ics.NewCalendar(fetcher, cache.New[[]model.RawEvent](cache.DefaultConfig, clock), loc)

	b, err := board.New(board.Options{
		Config:     conf,
		Location:   loc,
		Clock:      clock,
		Calendar:   calendar,
		Prefs:      db,
		Todos:      todo.NewStore(db, loc),
		TodoSource: db,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := b.LoadPrefs(ctx); err != nil {
		appLog.Error("failed to load saved preferences; using config defaults", err)
	}
	return &app{board: b, db: db}, nil
}

func serve(conf *config.Config) error {
	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	a, err := newApp(ctx, conf)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.board.Refresh(ctx); err != nil {
		appLog.Warn("initial refresh finished with errors", "err", err)
	}

	sched, err := board.NewScheduler(ctx, a.board)
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	err = web.NewServer(conf, a.board).ListenAndServe(ctx)
	appLog.Info("famboard exiting")
	return err
}

func render(ctx context.Context, conf *config.Config, days int, start string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	a, err := newApp(ctx, conf)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.board.Refresh(ctx); err != nil {
		appLog.Warn("refresh finished with errors", "err", err)
	}

	if days <= 0 {
		days = conf.Schedule.Days
	}
	first := a.board.Now()
	if start != "" {
		first, err = timeutil.ParseDayKey(start, a.board.Location())
		if err != nil {
			return fmt.Errorf("--start: %w", err)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(a.board.Schedule(first, days))
}
