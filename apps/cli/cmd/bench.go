package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitupload/packages/bench"
	"github.com/abdul-hamid-achik/hitupload/packages/notify"
)

var (
	benchReqFlags requestFlags

	benchCountFlag       int
	benchDurationFlag    string
	benchRateFlag        float64
	benchConcurrencyFlag int
	benchThresholdFlag   string
	benchNoProgressFlag  bool
	benchJSONFlag        bool
)

var benchCmd = &cobra.Command{
	Use:   "bench [<host> <port> <target> <file> [1.0|1.1]]",
	Short: "Repeat an upload and report latency and throughput",
	Long: `Send the same upload many times and summarize latency percentiles,
throughput and error rate. Thresholds turn the summary into a pass/fail
exit code.

Examples:
  hitupload bench localhost 8080 /upload report.pdf -n 500 -c 8
  hitupload bench -u http://localhost:8080/upload -f a.bin -d 30s -r 20
  hitupload bench -u http://localhost:8080/upload -f a.bin -d 1m --threshold "p95<200ms,errors<1%"
  hitupload bench -u http://localhost:8080/upload -f a.bin --json`,
	Args: targetArgs,
	RunE: benchCommand,
}

func init() {
	addRequestFlags(benchCmd.Flags(), &benchReqFlags)

	benchCmd.Flags().IntVarP(&benchCountFlag, "count", "n", 0, "Number of uploads (default 100, unbounded with --duration)")
	benchCmd.Flags().StringVarP(&benchDurationFlag, "duration", "d", "", "Keep uploading for this long (e.g., 30s, 5m)")
	benchCmd.Flags().Float64VarP(&benchRateFlag, "rate", "r", 0, "Target uploads per second (default: as fast as possible)")
	benchCmd.Flags().IntVarP(&benchConcurrencyFlag, "concurrency", "c", getEnvInt("HITUPLOAD_CONCURRENCY", 0), "Concurrent uploads (env: HITUPLOAD_CONCURRENCY)")
	benchCmd.Flags().StringVar(&benchThresholdFlag, "threshold", "", "Pass/fail thresholds (e.g., \"p95<200ms,errors<1%\")")
	benchCmd.Flags().BoolVar(&benchNoProgressFlag, "no-progress", false, "Disable real-time progress display")
	benchCmd.Flags().BoolVar(&benchJSONFlag, "json", false, "Output the summary as JSON")
}

func benchCommand(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args, &benchReqFlags)
	if err != nil {
		return err
	}

	if benchCountFlag > 0 {
		cfg.Bench.Count = benchCountFlag
	}
	if benchDurationFlag != "" {
		cfg.Bench.Duration = benchDurationFlag
		if benchCountFlag == 0 {
			cfg.Bench.Count = 0
		}
	}
	if benchRateFlag > 0 {
		cfg.Bench.Rate = benchRateFlag
	}
	if benchConcurrencyFlag > 0 {
		cfg.Bench.Concurrency = benchConcurrencyFlag
	}
	if benchThresholdFlag != "" {
		cfg.Bench.Thresholds = benchThresholdFlag
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	bcfg, err := bench.FromConfig(cfg.Bench)
	if err != nil {
		return err
	}

	notifier, err := benchReqFlags.notifier()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	sess, err := newSession(ctx, cfg, &benchReqFlags, false)
	if err != nil {
		return err
	}
	defer sess.Close()

	reporter := bench.NewReporter(
		bench.WithWriter(cmd.OutOrStdout()),
		bench.WithNoColor(noColorFlag || cfg.GetNoColor()),
		bench.WithNoProgress(benchNoProgressFlag || !isTerminal(os.Stdout)),
		bench.WithQuiet(benchJSONFlag),
	)

	runner := bench.NewRunner(bcfg, sess.runner, bench.WithReporter(reporter), bench.WithLogger(log))
	result, err := runner.Run(ctx, sess.job)
	if result != nil && benchJSONFlag {
		if jerr := reporter.JSONSummary(result); jerr != nil && err == nil {
			err = jerr
		}
	}
	sendNotification(ctx, notifier, notify.FromBench(sess.job.URL, sess.job.Files, result, err))
	return err
}
