package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/northstaraokeystone/trumpproof/pkg/config"
	"github.com/northstaraokeystone/trumpproof/pkg/crypto"
	"github.com/northstaraokeystone/trumpproof/pkg/observability"
	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
	"github.com/northstaraokeystone/trumpproof/pkg/store"
)

// Version is set at build time.
var Version = "1.0.0"

// Dispatcher
func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing.
//
// Exit codes:
//
//	0 = ok
//	1 = a check or scenario failed
//	2 = usage or runtime error
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		return runTestCmd(stdout, stderr)
	}

	switch args[1] {
	case "test":
		return runTestCmd(stdout, stderr)
	case "receipt":
		return runReceiptCmd(args[2:], stdout, stderr)
	case "scenario":
		return runScenarioCmd(args[2:], stdout, stderr)
	case "all":
		return runAllCmd(args[2:], stdout, stderr)
	case "cycle":
		return runCycleCmd(args[2:], stdout, stderr)
	case "verify":
		return runVerifyCmd(args[2:], stdout, stderr)
	case "seal":
		return runSealCmd(args[2:], stdout, stderr)
	case "pif":
		return runPIFCmd(stdout, stderr)
	case "version":
		return runVersionCmd(stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

// ANSI Colors
const (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorRed   = "\033[31m"
	ColorGreen = "\033[32m"
	ColorBlue  = "\033[34m"
	ColorCyan  = "\033[36m"
	ColorGray  = "\033[37m"
)

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sTrumpProof %s%s\n", ColorBold+ColorBlue, Version, ColorReset)
	fmt.Fprintf(w, "%sNo receipt, not real.%s\n", ColorGray, ColorReset)
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sUSAGE:%s\n", ColorBold, ColorReset)
	fmt.Fprintln(w, "  proofctl <command> [flags]")
	fmt.Fprintln(w, "")

	printSection(w, "VALIDATION")
	printCommand(w, "test", "Run quick validation (default)")
	printCommand(w, "receipt", "Emit a sample receipt (receipt <type>)")
	printCommand(w, "version", "Show version information")

	printSection(w, "SIMULATION")
	printCommand(w, "scenario", "Run one scenario (scenario <name> --seed)")
	printCommand(w, "all", "Run all six scenarios (--seed)")

	printSection(w, "RECEIPT STREAMS")
	printCommand(w, "cycle", "Run one correlator cycle over a stream (--in)")
	printCommand(w, "verify", "Recompute payload hashes and the Merkle root (--in)")
	printCommand(w, "seal", "Archive and anchor a stream (--in, --key)")
	printCommand(w, "pif", "Emit the PIF exposure aggregate")
	printCommand(w, "help", "Show this help")
	fmt.Fprintln(w, "")
}

func printSection(w io.Writer, title string) {
	fmt.Fprintf(w, "%s%s:%s\n", ColorBold+ColorCyan, title, ColorReset)
}

func printCommand(w io.Writer, name, desc string) {
	fmt.Fprintf(w, "  %s%-12s%s %s\n", ColorGreen, name, ColorReset, desc)
}

// app is the wiring shared by every command: config, logger, receipt sink,
// emitter and observability.
type app struct {
	cfg      *config.Config
	emitter  *receipts.Emitter
	provider *observability.Provider
	metrics  *observability.Metrics
	logger   *slog.Logger

	closeSink func() error
}

func newApp(ctx context.Context, stdout, stderr io.Writer) (*app, error) {
	cfg, err := config.LoadWithProfile()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	provider, err := observability.New(ctx, observability.FromConfig(cfg, Version))
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	sink, closeSink, err := store.Open(ctx, cfg.Sink, stdout)
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, fmt.Errorf("open sink: %w", err)
	}

	metrics := observability.NewMetrics()
	emitter := receipts.NewEmitter(sink).
		WithTenant(cfg.TenantID).
		WithHasher(crypto.NewDualHasher(cfg.HashSecondary)).
		WithObserver(metrics).
		WithLogger(logger)
	if cfg.ValidateReceipts {
		v, err := receipts.NewValidator()
		if err != nil {
			_ = closeSink()
			_ = provider.Shutdown(ctx)
			return nil, fmt.Errorf("receipt schema: %w", err)
		}
		emitter = emitter.WithValidator(v)
	}

	return &app{
		cfg:       cfg,
		emitter:   emitter,
		provider:  provider,
		metrics:   metrics,
		logger:    logger,
		closeSink: closeSink,
	}, nil
}

// close flushes metrics, the sink and the tracer. Failures are logged only.
func (a *app) close() {
	if a.cfg.MetricsTextfile != "" {
		if err := a.metrics.WriteToTextfile(a.cfg.MetricsTextfile); err != nil {
			a.logger.Warn("metrics textfile not written", "path", a.cfg.MetricsTextfile, "error", err)
		}
	}
	if err := a.closeSink(); err != nil {
		a.logger.Warn("sink close failed", "error", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.provider.Shutdown(ctx); err != nil {
		a.logger.Warn("observability shutdown failed", "error", err)
	}
}

// withApp runs fn with a fully wired app and maps setup failures to exit 2.
func withApp(stdout, stderr io.Writer, fn func(ctx context.Context, a *app) int) int {
	ctx := context.Background()
	a, err := newApp(ctx, stdout, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer a.close()
	return fn(ctx, a)
}

func runVersionCmd(stdout, stderr io.Writer) int {
	return withApp(stdout, stderr, func(_ context.Context, a *app) int {
		_, _ = fmt.Fprintf(stdout, "TrumpProof v%s\n", Version)
		_, _ = fmt.Fprintf(stdout, "Tenant: %s\n", a.cfg.TenantID)
		_, _ = fmt.Fprintf(stdout, "Total Exposure: $%.1fB+\n", a.cfg.Exposure.PIFTotal()/1e9)
		return 0
	})
}
