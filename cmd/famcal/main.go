// Command famcal is the family calendar board CLI. It shows the shared
// week view, creates and moves events across the family's calendars,
// and manages the shared task list.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/famboard/famcal"
)

var (
	configPath string
	verbose    bool
)

// app bundles everything a subcommand needs after setup.
type app struct {
	cfg   *famcal.Config
	svc   *famcal.Service
	board *famcal.TaskBoard
	log   zerolog.Logger
}

// newApp loads the config and connects the remote services.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := famcal.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	client, err := famcal.NewServiceAccountClient(ctx, cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}
	store, err := famcal.NewGoogleStore(ctx, client)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg: cfg,
		svc: famcal.NewService(store, cfg.Calendars, log),
		log: log,
	}
	if cfg.TaskList != "" {
		taskStore, err := famcal.NewGoogleTaskStore(ctx, client)
		if err != nil {
			return nil, err
		}
		a.board = famcal.NewTaskBoard(taskStore, cfg.TaskList, log)
	}
	return a, nil
}

// parseDay accepts YYYY-MM-DD in the configured display timezone, or
// returns today when the argument is empty.
func (a *app) parseDay(arg string) (time.Time, error) {
	loc := a.cfg.Location()
	if arg == "" {
		return time.Now().In(loc), nil
	}
	day, err := time.ParseInLocation("2006-01-02", arg, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date %q, want YYYY-MM-DD", arg)
	}
	return day, nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "famcal",
		Short:         "Shared family calendar and task board",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/famcal/famcal.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(
		newWeekCmd(),
		newCalendarsCmd(),
		newAddCmd(),
		newMoveCmd(),
		newTasksCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "famcal:", err)
		os.Exit(1)
	}
}
