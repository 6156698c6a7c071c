// minikern is a simulated operating-system kernel focused on the process
// lifecycle: fork, exec, exit and wait over a bounded process registry.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var (
	verbose     bool
	metricsAddr string
	memPages    int
	maxProcs    int
)

var rootCmd = &cobra.Command{
	Use:   "minikern",
	Short: "A simulated process-lifecycle kernel",
	Long: `minikern runs user programs inside simulated 32-bit address spaces and
gives them the classic process-lifecycle system calls: fork, execv, _exit,
waitpid and getpid.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "trace system calls to stderr")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	rootCmd.PersistentFlags().IntVar(&memPages, "mem-pages", 4096, "physical page pool size")
	rootCmd.PersistentFlags().IntVar(&maxProcs, "max-procs", 0, "live process limit (0 for the default)")
	rootCmd.AddCommand(demoCmd)
}

// newLogger builds the syscall-trace logger. Traces are debug level, so a
// quiet run discards them.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// serveMetrics exposes reg on metricsAddr when configured.
func serveMetrics(reg *prometheus.Registry, log *slog.Logger) {
	if metricsAddr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Error("metrics server stopped", "err", err)
		}
	}()
	log.Info("serving metrics", "addr", metricsAddr)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
