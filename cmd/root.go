// Package cmd defines the securitytxt command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/securitytxt-crawler/internal/app"
	"github.com/JakeFAU/securitytxt-crawler/internal/config"
	"github.com/JakeFAU/securitytxt-crawler/internal/logging"
)

// flagBindings maps command line flags onto config keys.
var flagBindings = map[string]string{
	"concurrency": "crawler.concurrency",
	"domains":     "crawler.domains_path",
	"outdir":      "output.dir",
	"dry-run":     "output.dry_run",
	"status-addr": "server.addr",
	"user-agent":  "crawler.user_agent",
	"log-level":   "logging.level",
}

// cli carries state shared by every command in one invocation.
type cli struct {
	v          *viper.Viper
	configPath string
	noProgress bool
	deps       app.Deps
}

// newRootCmd builds the command tree. deps lets tests swap the network and output.
func newRootCmd(deps app.Deps) *cobra.Command {
	c := &cli{v: viper.New(), deps: deps}

	cmd := &cobra.Command{
		Use:   "securitytxt",
		Short: "Fetch /.well-known/security.txt from a large list of domains.",
		Long: `securitytxt reads a rank,domain CSV (downloading the top-sites list when the
file is missing), shuffles it, and fetches http://<domain>/.well-known/security.txt
for every entry with a bounded number of requests in flight. Each response body is
written verbatim to <outdir>/<domain>, and a success summary is printed at the end.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE:         c.runFetch,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "config file (default ./securitytxt.yaml if present)")
	flags.IntP("concurrency", "c", 200, "maximum requests in flight")
	flags.StringP("domains", "d", "1m.csv", "rank,domain CSV; downloaded and cached here when missing")
	flags.StringP("outdir", "o", "output", "output directory; must not exist")
	flags.Bool("dry-run", false, "fetch but keep bodies in memory instead of writing files")
	flags.BoolVar(&c.noProgress, "no-progress", false, "disable the terminal progress bar")
	flags.String("status-addr", "", "serve /healthz, /metrics and /v1/progress on this address")
	flags.String("user-agent", "", "User-Agent header for every request")
	flags.String("log-level", "info", "minimum log level (debug, info, warn, error)")
	for name, key := range flagBindings {
		if err := c.v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}

	cmd.AddCommand(newFetchCmd(c), newDomainsCmd(c))
	return cmd
}

// load resolves configuration and builds the logger for one command.
func (c *cli) load() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(c.v, c.configPath)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	if c.noProgress {
		cfg.Progress.Enabled = false
	}
	logger, err := logging.New(logging.Config{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

func (c *cli) runner(cmd *cobra.Command, cfg config.Config, logger *zap.Logger) *app.Runner {
	deps := c.deps
	if deps.Out == nil {
		deps.Out = cmd.OutOrStdout()
	}
	if deps.ProgressOut == nil {
		deps.ProgressOut = cmd.ErrOrStderr()
	}
	return app.NewRunner(cfg, deps, logger)
}

func (c *cli) runFetch(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := c.load()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	if _, err := c.runner(cmd, cfg, logger).Run(cmd.Context()); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	return nil
}

// Execute runs the CLI until completion or SIGINT/SIGTERM and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(app.Deps{}).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
