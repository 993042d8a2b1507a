package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	uerrors "github.com/abdul-hamid-achik/hitupload/packages/core/errors"
	"github.com/abdul-hamid-achik/hitupload/packages/logger"
	"github.com/abdul-hamid-achik/hitupload/packages/telemetry"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	configFlag       string
	verboseFlag      int // 0=off, 1=-v, 2=-vv, 3=-vvv
	logLevelFlag     string
	noColorFlag      bool
	otlpEndpointFlag string
	otlpInsecureFlag bool
	otlpSampleFlag   float64
)

var (
	log               = zerolog.Nop()
	shutdownTelemetry telemetry.ShutdownFunc
)

var rootCmd = &cobra.Command{
	Use:   "hitupload",
	Short: "Multipart file uploads from the command line.",
	Long: `hitupload sends files to an HTTP endpoint as multipart/form-data and
prints what the server answered. It can check the response, extract values
from it, repeat the upload as a small benchmark and keep a history of
everything it sent.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFlag, "config", getEnvString("HITUPLOAD_CONFIG", ""), "Path to config file (env: HITUPLOAD_CONFIG)")
	pf.CountVarP(&verboseFlag, "verbose", "v", "Verbose output (-v, -vv, -vvv for more detail)")
	pf.StringVar(&logLevelFlag, "log-level", getEnvString("HITUPLOAD_LOG_LEVEL", ""), "Log level: trace, debug, info, warn, error (env: HITUPLOAD_LOG_LEVEL)")
	pf.BoolVar(&noColorFlag, "no-color", getEnvBool("HITUPLOAD_NO_COLOR", false), "Disable colored output (env: HITUPLOAD_NO_COLOR)")
	pf.StringVar(&otlpEndpointFlag, "otlp-endpoint", getEnvString("HITUPLOAD_OTLP_ENDPOINT", ""), "OTLP/HTTP collector host:port for traces and metrics (env: HITUPLOAD_OTLP_ENDPOINT)")
	pf.BoolVar(&otlpInsecureFlag, "otlp-insecure", getEnvBool("HITUPLOAD_OTLP_INSECURE", false), "Send telemetry without TLS (env: HITUPLOAD_OTLP_INSECURE)")
	pf.Float64Var(&otlpSampleFlag, "otlp-sample-rate", 1, "Fraction of uploads to trace")

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &uerrors.UsageError{Message: err.Error()}
	})

	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(importCmd)
}

// Execute runs the CLI and exits with the code matching the error.
func Execute(v, bt string) {
	version = v
	buildTime = bt

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if shutdownTelemetry != nil {
		if serr := shutdownTelemetry(context.Background()); serr != nil {
			log.Warn().Err(serr).Msg("telemetry shutdown")
		}
	}

	if err != nil {
		reportError(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func reportError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
	var usageErr *uerrors.UsageError
	if errors.As(err, &usageErr) {
		fmt.Fprintf(w, "Run '%s --help' for usage.\n", rootCmd.Name())
	}
}

// setup builds the logger and, when a collector is configured, the
// OpenTelemetry providers.
func setup(cmd *cobra.Command, args []string) error {
	noColor := noColorFlag || !isTerminal(os.Stderr)
	l, err := logger.New(cmd.ErrOrStderr(), logger.Config{
		Level:     logLevelFlag,
		Verbosity: verboseFlag,
		NoColor:   noColor,
	})
	if err != nil {
		return &uerrors.UsageError{Message: err.Error()}
	}
	log = l

	if noColorFlag {
		color.NoColor = true
	}

	shutdown, err := telemetry.Setup(cmd.Context(), telemetry.Config{
		Endpoint:       otlpEndpointFlag,
		Insecure:       otlpInsecureFlag,
		SampleRate:     otlpSampleFlag,
		ServiceVersion: version,
	}, log)
	if err != nil {
		return &uerrors.ConfigError{Field: "otlp-endpoint", Value: otlpEndpointFlag, Message: err.Error()}
	}
	shutdownTelemetry = shutdown
	return nil
}
