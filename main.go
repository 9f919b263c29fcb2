package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/justinsantoro/warframesync/content"
	"github.com/justinsantoro/warframesync/git"
	"github.com/justinsantoro/warframesync/warframestat"
	"github.com/justinsantoro/warframesync/workflow"
)

var rootFlags struct {
	config   string
	listen   string
	interval time.Duration
	dryRun   bool
	debug    bool
}

var rootCmd = &cobra.Command{
	Use:   "warframesync",
	Short: "Keep the warframe blog's event data in sync with warframestat",
	Long: `warframesync periodically fetches world state events from the warframestat
api, writes the changed data into the front matter of the blog's content files
and pushes a commit to the blog repository when something changed.`,
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Sync on an interval and serve status endpoints until interrupted",
	RunE:  runServe,
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Sync every repository a single time and exit",
	RunE:  runOnce,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&rootFlags.config, "config", "", "path to config file (default: $HOME/warframesync/config.yaml)")
	f.StringVar(&rootFlags.listen, "listen", "", "address for the status server")
	f.DurationVar(&rootFlags.interval, "interval", 0, "time between two syncs")
	f.BoolVar(&rootFlags.dryRun, "dry-run", false, "discard changes instead of committing and pushing")
	f.BoolVar(&rootFlags.debug, "debug", false, "development logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(onceCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type app struct {
	conf      *Config
	log       *zap.SugaredLogger
	registry  *prometheus.Registry
	scheduler *Scheduler
}

func loadConfig(cmd *cobra.Command) (*Config, error) {
	usrDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error getting user home dir: %w", err)
	}
	appDir := filepath.Join(usrDir, "warframesync")
	defaults := DefaultConfig(appDir)

	configFile := filepath.Join(appDir, "config.yaml")
	explicit := cmd.Flags().Changed("config")
	if explicit {
		configFile = rootFlags.config
	}
	conf, err := ReadConfig(configFile, defaults)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		conf = defaults
	case err != nil:
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	conf.ApplyEnv(os.LookupEnv)

	//override conf with set cmdline flag values
	flags := cmd.Flags()
	if flags.Changed("listen") {
		conf.Listen = rootFlags.listen
	}
	if flags.Changed("interval") {
		conf.Interval = rootFlags.interval
	}
	if flags.Changed("dry-run") {
		conf.DryRun = rootFlags.dryRun
	}
	if flags.Changed("debug") {
		conf.Debug = rootFlags.debug
	}
	return conf, conf.Validate()
}

func newLogger(debug bool) (*zap.SugaredLogger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if debug {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

func newApp(cmd *cobra.Command) (*app, error) {
	conf, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log, err := newLogger(conf.Debug)
	if err != nil {
		return nil, fmt.Errorf("error creating logger: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	layout := conf.Layout()
	var backend workflow.Backend = git.NewBackend(layout, conf.GitOptions(), log.Named("git"))
	if conf.DryRun {
		log.Warnw("dry run: changes will not be pushed")
		backend = workflow.DryRun(backend, log.Named("git"))
	}
	flow := workflow.New(backend, workflow.Options{
		ResetAttempts: conf.ResetAttempts,
		ResetBackoff:  workflow.DefaultResetBackoff,
		Metrics:       workflow.NewMetrics(reg),
	}, log.Named("workflow"))

	gate := content.NewGate(layout, nil, log.Named("content"))
	client := warframestat.NewClient(conf.WarframestatURL, conf.WarframestatToken, log.Named("warframestat"))
	job := Job{
		Repository: conf.Repository,
		Task:       content.Task(gate, warframestat.Producers(client)...),
	}

	return &app{
		conf:      conf,
		log:       log,
		registry:  reg,
		scheduler: NewScheduler(flow, conf.Interval, log, job),
	}, nil
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.log.Sync() //nolint:errcheck

	ctx, cancel := signalContext(cmd)
	defer cancel()

	a.log.Infow("starting", "repository", a.conf.Repository.String(), "interval", a.conf.Interval)
	a.scheduler.Start(ctx)
	serverErr := NewServer(a.conf.Listen, a.registry, a.log.Named("http")).Start(ctx)

	err = waitServer(ctx, serverErr)
	if err != nil {
		a.log.Errorw("status server stopped unexpectedly", "error", err)
		cancel()
	} else {
		a.log.Infow("shutting down")
	}
	a.scheduler.Wait()
	return err
}

func runOnce(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.log.Sync() //nolint:errcheck

	ctx, cancel := signalContext(cmd)
	defer cancel()
	return a.scheduler.RunOnce(ctx)
}
