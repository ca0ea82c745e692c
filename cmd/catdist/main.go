// Command catdist computes frequency-weighted categorical distance matrices.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/23skdu/catdist/internal/logging"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// app carries the resolved configuration through one command invocation.
type app struct {
	cfg     Config
	logger  zerolog.Logger
	metrics *http.Server
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zerolog.Nop()}

	root := &cobra.Command{
		Use:   "catdist",
		Short: "Frequency-weighted categorical distance matrices",
		Long: `catdist computes the all-pairs distance matrix of a categorical dataset.

Matching values cost the number of samples sharing that value in the
feature, mismatches cost the sample count, and features missing in both
samples cost nothing. Settings come from CATDIST_* environment variables
(or a .env file); flags override them.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.teardown(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.Int("block-bytes", 0, "packed block width in bytes (power of two)")
	flags.Int("workers", 0, "goroutines computing rows (0 = GOMAXPROCS)")
	flags.Bool("presence", false, "pack presence masks so that code 0 is a valid category")
	flags.Bool("verify", false, "cross-check the blocked matrix against the naive one")
	flags.String("element", "", "code element type: u8, u16, u32 or u64")
	flags.String("log-format", "", "log format: json or console")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address")

	root.AddCommand(newGenerateCmd(a), newComputeCmd(a), newNearestCmd(a))
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, &cfg); err != nil {
		return err
	}
	if err := ValidateConfig(&cfg); err != nil {
		return err
	}
	a.cfg = cfg

	a.logger, err = logging.NewLogger(logging.Config{
		Format: cfg.LogFormat,
		Level:  cfg.LogLevel,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		a.serveMetrics(cfg.MetricsAddr)
	}
	return nil
}

// applyFlags overrides cfg with every flag set on the command line.
func applyFlags(cmd *cobra.Command, cfg *Config) error {
	fs := cmd.Flags()
	var err error
	if fs.Changed("block-bytes") {
		if cfg.BlockBytes, err = fs.GetInt("block-bytes"); err != nil {
			return err
		}
	}
	if fs.Changed("workers") {
		if cfg.Workers, err = fs.GetInt("workers"); err != nil {
			return err
		}
	}
	if fs.Changed("presence") {
		if cfg.Presence, err = fs.GetBool("presence"); err != nil {
			return err
		}
	}
	if fs.Changed("verify") {
		if cfg.Verify, err = fs.GetBool("verify"); err != nil {
			return err
		}
	}
	for name, dst := range map[string]*string{
		"element":      &cfg.Element,
		"log-format":   &cfg.LogFormat,
		"log-level":    &cfg.LogLevel,
		"metrics-addr": &cfg.MetricsAddr,
	} {
		if fs.Changed(name) {
			if *dst, err = fs.GetString(name); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *app) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	a.metrics = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		a.logger.Info().Str("address", addr).Msg("Starting metrics server")
		if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
}

func (a *app) teardown(ctx context.Context) error {
	if a.metrics == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return a.metrics.Shutdown(shutdownCtx)
}
