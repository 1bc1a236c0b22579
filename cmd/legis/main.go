// Command legis browses the legislation API from the terminal.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/Sternrassler/legis-client/pkg/client"
	"github.com/Sternrassler/legis-client/pkg/config"
	"github.com/Sternrassler/legis-client/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// app holds what the commands share. Tests fill client and cfg directly.
type app struct {
	cfg     config.Config
	client  *client.Client
	redis   *redis.Client
	now     func() time.Time
	verbose bool
	timeout time.Duration
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, &app{}, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// run executes one command line. Connections opened by setup are closed
// whether or not the command succeeds.
func run(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) error {
	defer a.close()

	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.ExecuteContext(ctx)
}

// newRootCmd builds the command tree around a.
func newRootCmd(a *app) *cobra.Command {
	if a.now == nil {
		a.now = time.Now
	}

	rootCmd := &cobra.Command{
		Use:   "legis",
		Short: "Browse federal, state and executive legislation",
		Long: `legis reads the legislation API through a Redis-backed cache.

Configuration comes from the environment (API_URL, API_VERSION, PAGE_SIZE,
STALE_TIME, DATE_FORMAT, REDIS_URL, ...) and from a .env file outside
production.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&a.timeout, "timeout", 2*time.Minute, "Operation timeout")

	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the response cache",
	}
	cacheCmd.AddCommand(newCacheClearCmd(a))

	rootCmd.AddCommand(newListCmd(a))
	rootCmd.AddCommand(newShowCmd(a))
	rootCmd.AddCommand(newSearchCmd(a))
	rootCmd.AddCommand(newStatsCmd(a))
	rootCmd.AddCommand(newExportCmd(a))
	rootCmd.AddCommand(cacheCmd)
	return rootCmd
}

// setup loads configuration and connects the client unless one is injected.
func (a *app) setup(stderr io.Writer) error {
	if a.client != nil {
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	logCfg := logging.FromConfig(cfg, "legis")
	logCfg.Output = stderr
	if a.verbose {
		logCfg.Level = logging.LevelDebug
	} else if cfg.LogLevel == "info" {
		// Keep command output clean unless asked otherwise.
		logCfg.Level = logging.LevelWarn
	}
	logging.Setup(logCfg)

	a.redis = redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	c, err := client.New(client.FromConfig(cfg, a.redis))
	if err != nil {
		a.redis.Close()
		return err
	}
	a.client = c
	return nil
}

func (a *app) close() {
	if a.client != nil {
		a.client.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
}

// context bounds a command by the --timeout flag.
func (a *app) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(cmd.Context())
	}
	return context.WithTimeout(cmd.Context(), a.timeout)
}
