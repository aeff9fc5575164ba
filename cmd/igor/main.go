package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/igor-ci/igor/pkg/log"
	"github.com/igor-ci/igor/pkg/protocol"
	"github.com/igor-ci/igor/pkg/server"
	"github.com/igor-ci/igor/pkg/worker"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "igor",
	Short: "igor - git-backed continuous integration",
	Long: `Igor is a continuous-integration coordinator whose state of record
is a git repository. Build specs live under refs/ci/spec/, build reports
under refs/ci/report/; a central server hands build orders to workers that
execute shell steps and push their reports back.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"igor version %s\nCommit: %s\n", Version, Commit,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(orderCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the igor control server",
	Long: `Run the control server. The server owns the in-memory order queue
and event fan-out; it never touches git itself.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		srv := server.NewServer(&server.Config{
			Addr:        fmt.Sprintf(":%d", port),
			MetricsAddr: metricsAddr,
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			srv.Stop()
		}()

		return srv.ListenAndServe()
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a build worker",
	Long: `Run a build worker. The worker connects to the server, subscribes
for orders up to its parallelism, and executes each order: check out the
source, run the spec's steps, and push the report.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		host, _ := cmd.Flags().GetString("host")
		port, _ := cmd.Flags().GetInt("port")
		parallelism, _ := cmd.Flags().GetInt("parallelism")

		w := worker.NewWorker(&worker.Config{
			Host:        host,
			Port:        port,
			Parallelism: parallelism,
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return w.Run(ctx)
	},
}

func init() {
	serverCmd.Flags().Int("port", protocol.DefaultPort, "TCP port to listen on")
	serverCmd.Flags().String("metrics-addr", "", "Address to serve Prometheus metrics on (disabled if empty)")

	workerCmd.Flags().String("host", "", "Hostname of the igor server")
	workerCmd.Flags().Int("port", protocol.DefaultPort, "Port of the igor server")
	workerCmd.Flags().Int("parallelism", 0, "Concurrent builds (0 = CPU count)")
	workerCmd.MarkFlagRequired("host")
}
