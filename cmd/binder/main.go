// binder serves a single flat container of files over HTTP.
//
// Commands:
//
//	binder serve      run the HTTP API (default)
//	binder init       write a sample configuration file
//	binder reconcile  run one consistency pass between the entry index and
//	                  the content store, then exit
//	binder version    print build information
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/binder/internal/logger"
	"github.com/marmos91/binder/pkg/config"
	"github.com/spf13/pflag"
)

// Set with -ldflags "-X main.Version=... -X main.Commit=...".
var (
	Version = "dev"
	Commit  = "none"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	command := "serve"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		command, args = args[0], args[1:]
	}

	switch command {
	case "serve":
		return runServe(args)
	case "init":
		return runInit(args)
	case "reconcile":
		return runReconcile(args)
	case "version":
		fmt.Printf("binder %s (commit %s)\n", Version, Commit)
		return nil
	case "help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `Usage: binder <command> [flags]

Commands:
  serve       Run the HTTP API (default)
  init        Write a sample configuration file
  reconcile   Repair drift between the entry index and the content store
  version     Print build information

Run "binder <command> --help" for command flags.
`)
}

// parseFlags parses args, treating --help as a clean exit.
func parseFlags(fs *pflag.FlagSet, args []string) (bool, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return false, nil
		}
		return false, err
	}
	if rest := fs.Args(); len(rest) > 0 {
		return false, fmt.Errorf("unexpected argument: %s", rest[0])
	}
	return true, nil
}

// loadConfig loads the configuration and configures the logger from it.
func loadConfig(path, logLevel string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		return nil, fmt.Errorf("failed to configure logger: %w", err)
	}
	return cfg, nil
}

func runServe(args []string) error {
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	configPath := fs.StringP("config", "c", "", "path to config file (default: $XDG_CONFIG_HOME/binder/config.yaml)")
	logLevel := fs.String("log-level", "", "override logging.level (DEBUG, INFO, WARN, ERROR)")
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}

	cfg, err := loadConfig(*configPath, *logLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	logger.Info("binder %s (commit %s)", Version, Commit)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsResult := config.InitializeMetrics(cfg)

	rt, err := config.InitializeRuntime(ctx, cfg, metricsResult)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Error("Failed to close stores: %v", err)
		}
	}()

	if metricsResult.Server != nil {
		go func() {
			if err := metricsResult.Server.Serve(ctx); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
	}

	err = rt.Server.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runInit(args []string) error {
	fs := pflag.NewFlagSet("init", pflag.ContinueOnError)
	path := fs.StringP("config", "c", "", "where to write the file (default: $XDG_CONFIG_HOME/binder/config.yaml)")
	force := fs.BoolP("force", "f", false, "overwrite an existing file")
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}

	written := *path
	if written == "" {
		var err error
		if written, err = config.InitConfig(*force); err != nil {
			return err
		}
	} else if err := config.InitConfigToPath(written, *force); err != nil {
		return err
	}

	fmt.Printf("Configuration written to %s\n", written)
	fmt.Println("Set auth.token (or BINDER_AUTH_TOKEN) before running 'binder serve'.")
	return nil
}

func runReconcile(args []string) error {
	fs := pflag.NewFlagSet("reconcile", pflag.ContinueOnError)
	configPath := fs.StringP("config", "c", "", "path to config file")
	logLevel := fs.String("log-level", "", "override logging.level")
	dryRun := fs.Bool("dry-run", false, "report drift without repairing it")
	orphans := fs.String("orphans", "", "override reconcile.orphans (delete, adopt, report)")
	asJSON := fs.Bool("json", false, "print run statistics as JSON")
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}

	cfg, err := loadConfig(*configPath, *logLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	cfg.Reconcile.Enabled = false
	if *dryRun {
		cfg.Reconcile.DryRun = true
	}
	if *orphans != "" {
		cfg.Reconcile.Orphans = *orphans
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cs, err := config.CreateContentStore(ctx, &cfg.Content, nil)
	if err != nil {
		return err
	}
	defer func() { _ = cs.Close() }()

	is, err := config.CreateIndexStore(ctx, &cfg.Index)
	if err != nil {
		return err
	}
	defer func() { _ = is.Close() }()

	r, err := config.CreateReconciler(cfg, cs, is, nil)
	if err != nil {
		return err
	}

	stats, err := r.RunNow(ctx)
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	fmt.Println(stats.Summary())
	return nil
}
