// Command jsonlbatch runs a JSONL batch processor against a configured
// transform endpoint: bounded-concurrency retrying dispatch over an input
// file, with resumable success/failure output streams.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"jsonlbatch/internal/config"
	"jsonlbatch/internal/engine"
	"jsonlbatch/internal/logger"
	"jsonlbatch/internal/report"
	"jsonlbatch/internal/transform"
)

var (
	cfgFile      string
	inputFile    string
	outputFile   string
	errorFile    string
	logFile      string
	idKey        string
	rerunKey     string
	concurrency  int
	reqPerMinute int
	batchSize    int
	maxRetries   int
	retryDelay   float64
	logLevel     string
	reportFile   string
	transformURL string
)

var rootCmd = &cobra.Command{
	Use:   "jsonlbatch",
	Short: "Process a JSONL file with bounded concurrency and resumable output",
	Long: `jsonlbatch reads newline-delimited JSON records, runs each one through a
configured transform, and appends outcomes to a success and a failure file.

Re-running against the same output files resumes: records whose id already
appears in the success file are skipped unless they carry the configured
rerun key.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file")
	rootCmd.Flags().StringVar(&inputFile, "input", "", "input JSONL file (overrides config)")
	rootCmd.Flags().StringVar(&outputFile, "output", "", "success output JSONL file (overrides config)")
	rootCmd.Flags().StringVar(&errorFile, "error-file", "", "failure output JSONL file (overrides config)")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "append structured logs to this file (overrides config)")
	rootCmd.Flags().StringVar(&idKey, "id-key", "", "record field holding the unique id (overrides config)")
	rootCmd.Flags().StringVar(&rerunKey, "rerun-key", "", "success-record field forcing reprocessing (overrides config)")
	rootCmd.Flags().IntVar(&concurrency, "max-concurrency", 0, "worker pool size (overrides config)")
	rootCmd.Flags().IntVar(&reqPerMinute, "requests-per-minute", 0, "global rate limit, 0 disables (overrides config)")
	rootCmd.Flags().IntVar(&batchSize, "write-batch-size", 0, "records per output flush (overrides config)")
	rootCmd.Flags().IntVar(&maxRetries, "max-retries", 0, "retry attempts beyond the first (overrides config)")
	rootCmd.Flags().Float64Var(&retryDelay, "retry-initial-delay", 0, "first backoff in seconds (overrides config)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "debug, info, warn, or error (overrides config)")
	rootCmd.Flags().StringVar(&reportFile, "report", "", "write a JSON run summary to this path")
	rootCmd.Flags().StringVar(&transformURL, "transform-url", "", "HTTP endpoint the reference transform posts records to")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if cfgFile != "" {
		fileCfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = config.Merge(cfg, fileCfg)
	}
	cfg = config.FromEnv(cfg)
	cfg = config.Merge(cfg, config.Config{
		InputFile:         inputFile,
		OutputFile:        outputFile,
		ErrorFile:         errorFile,
		LogFile:           logFile,
		IDKey:             idKey,
		RerunKey:          rerunKey,
		MaxConcurrency:    concurrency,
		RequestsPerMinute: reqPerMinute,
		WriteBatchSize:    batchSize,
		MaxRetries:        maxRetries,
		RetryInitialDelay: retryDelay,
		LogLevel:          logLevel,
	})
	// Zero is meaningful for these two, so Merge's non-zero rule cannot
	// see an explicit --requests-per-minute=0 or --max-retries=0.
	if cmd.Flags().Changed("requests-per-minute") {
		cfg.RequestsPerMinute = reqPerMinute
	}
	if cmd.Flags().Changed("max-retries") {
		cfg.MaxRetries = maxRetries
	}

	if err := config.Validate(cfg); err != nil {
		return err
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()
	logger.SetLogger(log)

	if transformURL == "" {
		return fmt.Errorf("--transform-url is required")
	}
	httpTransform := transform.NewHTTPTransform(transform.HTTPConfig{
		URL:         transformURL,
		BreakerName: "jsonlbatch-transform",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Warn("received shutdown signal, finishing in-flight work and flushing output")
		cancel()
	}()

	opts := cfg.ToRunOptions()
	hooks := engine.Hooks{
		NewProgress: func(total int) engine.ProgressReporter {
			return report.NewProgress(total, os.Stderr)
		},
	}
	runReport, err := engine.Run(ctx, log, opts, httpTransform.Process, hooks)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	rep := report.FromRunReport(runReport)
	if reportFile != "" {
		if err := rep.WriteJSON(reportFile); err != nil {
			log.Errorw("failed to write report", "error", err)
		}
	}
	fmt.Println(rep.Prometheus())

	return nil
}
