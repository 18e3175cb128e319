package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/knyar/urconf"
	"github.com/knyar/urconf/internal/config"
	"github.com/knyar/urconf/internal/daemon"
	"github.com/knyar/urconf/internal/declfile"
	"github.com/knyar/urconf/internal/journal"
	"github.com/knyar/urconf/internal/version"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	// Subcommand dispatch (before flag.Parse).
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version":
			fmt.Println(version.Info())
			return
		case "history":
			runHistory(os.Args[2:])
			return
		}
	}

	configPath := flag.String("config", "", "path to configuration file")
	dryRun := flag.Bool("dry-run", false, "log planned changes without applying them")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	v, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("urconf starting", zap.String("version", version.Short()))

	if f := v.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded", zap.String("source", f))
	}

	apiKey := v.GetString("api.key")
	if apiKey == "" {
		logger.Fatal("api.key is required (config file or URCONF_API_KEY)")
	}

	ur := buildConfiguration(v, apiKey, *dryRun, logger)

	f, err := declfile.Parse(v)
	if err != nil {
		logger.Fatal("invalid declarations", zap.Error(err))
	}
	if err := f.Apply(ur); err != nil {
		logger.Fatal("invalid declarations", zap.Error(err))
	}
	logger.Info("declarations loaded",
		zap.Int("contacts", len(f.Contacts)),
		zap.Int("monitors", len(f.Monitors)),
	)

	var jnl *journal.Journal
	if path := v.GetString("journal.path"); path != "" {
		jnl, err = journal.Open(path)
		if err != nil {
			logger.Fatal("failed to open journal", zap.Error(err))
		}
		defer jnl.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if v.GetBool("daemon.enabled") {
		d := daemon.New(ur, jnl, daemon.Config{
			SyncInterval: v.GetDuration("daemon.sync_interval"),
			Listen:       v.GetString("daemon.listen"),
		}, logger.Named("daemon"))
		if err := d.Run(ctx); err != nil {
			logger.Fatal("daemon failed", zap.Error(err))
		}
		return
	}

	started := time.Now().UTC()
	result, err := ur.Sync(ctx)
	finished := time.Now().UTC()

	if jnl != nil {
		run := &journal.Run{StartedAt: started, FinishedAt: finished}
		if result != nil {
			run.DryRun = result.DryRun
			run.Contacts = result.Contacts
			run.Monitors = result.Monitors
		}
		if err != nil {
			run.Err = err.Error()
		}
		if jerr := jnl.Record(ctx, run); jerr != nil {
			logger.Warn("failed to record sync run", zap.Error(jerr))
		}
	}

	if err != nil {
		logger.Error("sync failed", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("sync completed",
		zap.Bool("dry_run", result.DryRun),
		zap.Int("mutations", result.Mutations()),
		zap.Int("contacts_created", result.Contacts.Created),
		zap.Int("contacts_updated", result.Contacts.Updated),
		zap.Int("contacts_deleted", result.Contacts.Deleted),
		zap.Int("monitors_created", result.Monitors.Created),
		zap.Int("monitors_updated", result.Monitors.Updated),
		zap.Int("monitors_deleted", result.Monitors.Deleted),
	)
}

// buildConfiguration assembles the library configuration from settings.
func buildConfiguration(v *viper.Viper, apiKey string, dryRun bool, logger *zap.Logger) *urconf.UptimeRobot {
	opts := []urconf.Option{
		urconf.WithBaseURL(v.GetString("api.base_url")),
		urconf.WithHTTPClient(&http.Client{Timeout: v.GetDuration("api.timeout")}),
		urconf.WithLogger(logger.Named("urconf")),
		urconf.WithDefaultInterval(v.GetDuration("defaults.interval")),
	}
	if dryRun || v.GetBool("dry_run") {
		opts = append(opts, urconf.WithDryRun(true))
	}
	if gap := v.GetDuration("api.min_request_interval"); gap > 0 {
		opts = append(opts, urconf.WithMinRequestInterval(gap))
	}
	return urconf.New(apiKey, opts...)
}

// runHistory prints recent sync runs from the journal.
func runHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	limit := fs.Int("limit", 20, "number of runs to show")
	_ = fs.Parse(args)

	v, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	path := v.GetString("journal.path")
	if path == "" {
		fmt.Fprintln(os.Stderr, "journal.path is not configured")
		os.Exit(1)
	}

	jnl, err := journal.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open journal: %v\n", err)
		os.Exit(1)
	}
	defer jnl.Close()

	runs, err := jnl.Recent(context.Background(), *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read journal: %v\n", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tDRY RUN\tCONTACTS (c/u/d)\tMONITORS (c/u/d)\tERROR")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%v\t%d/%d/%d\t%d/%d/%d\t%s\n",
			r.StartedAt.Format(time.RFC3339), r.DryRun,
			r.Contacts.Created, r.Contacts.Updated, r.Contacts.Deleted,
			r.Monitors.Created, r.Monitors.Updated, r.Monitors.Deleted,
			r.Err,
		)
	}
	_ = w.Flush()
}
