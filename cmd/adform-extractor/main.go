// Command adform-extractor downloads Adform buyer statistics reports into a
// CSV file.
//
// Usage:
//
//	adform-extractor extract --config config.yaml
//
// Credentials come from the config file or the ADFORM_CLIENT_ID,
// ADFORM_CLIENT_SECRET or ADFORM_ACCESS_TOKEN environment variables.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/adform-stats-client/internal/config"
	"github.com/Sternrassler/adform-stats-client/internal/output"
	"github.com/Sternrassler/adform-stats-client/pkg/client"
	"github.com/spf13/cobra"
)

var version = "dev"

// Exit codes.
const (
	exitOK         = 0
	exitUserOrAPI  = 1
	exitUnexpected = 2
)

// globalOptions are the persistent flags shared by all subcommands.
type globalOptions struct {
	logLevel    string
	prettyLogs  bool
	metricsAddr string
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "adform-extractor",
		Short: "Extract Adform buyer statistics reports",
		Long: `adform-extractor submits a buyer stats report definition to the Adform API,
waits for each page of the report to be processed and appends the rows to a
CSV file, together with a manifest describing the table.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&opts.prettyLogs, "pretty-logs", false, "Human-readable console logs instead of JSON")
	rootCmd.PersistentFlags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve /metrics and /health on this address while running")

	rootCmd.AddCommand(newExtractCommand(opts))

	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(exitCode(err))
	}
}

// exitCode maps classified failures (bad configuration, credentials or
// request, and service failures) to 1 and anything else to 2.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}

	if errors.Is(err, config.ErrInvalidConfig) || errors.Is(err, output.ErrHeaderMismatch) {
		return exitUserOrAPI
	}

	switch client.CategoryOf(err) {
	case client.CategoryUser, client.CategoryService:
		return exitUserOrAPI
	default:
		return exitUnexpected
	}
}
