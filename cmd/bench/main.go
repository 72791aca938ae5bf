// cmd/bench/main.go
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pion/logging"

	"github.com/agentbench/protocol-sim/internal/bench"
)

func main() {
	var (
		seed        = flag.Int64("seed", 1, "base seed (scenario seeds derive from it)")
		iterations  = flag.Int("iterations", 20, "iterations for count-bounded scenarios")
		chatTurns   = flag.Int("turns", 10, "turns per chat scenario")
		concurrency = flag.Int("concurrency", 50, "agents in the concurrency scenario")
		complexity  = flag.Int("complexity", 5, "long-running task complexity")
		outPath     = flag.String("out", "results/summary.csv", "output summary CSV file")
		recordsPath = flag.String("records", "", "optional: write raw per-call records CSV to this path (empty disables)")
		reportPath  = flag.String("report", "", "optional: write a Markdown comparison report to this path (empty disables)")
		filter      = flag.String("scenario", "", "scenario name filter (substring)")
		logLevel    = flag.String("loglevel", "info", "log level: trace, debug, info, warn, error")
	)
	flag.Parse()

	opt := bench.DefaultOptions()
	opt.Seed = *seed
	opt.Iterations = *iterations
	opt.ChatTurns = *chatTurns
	opt.Concurrency = *concurrency
	opt.TaskComplexity = *complexity
	opt.LoggerFactory = newLoggerFactory(*logLevel)

	var rec bench.Recorder
	if *recordsPath != "" {
		csvRec, err := bench.NewCSVRecorder(*recordsPath)
		if err != nil {
			panic(err)
		}
		rec = csvRec
		defer func() { _ = csvRec.Close() }()
	}

	scenarios := bench.DefaultScenarios()
	if *filter != "" {
		scenarios = filterScenarios(scenarios, *filter)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := bench.NewRunner(opt, rec)
	rows, err := runner.RunAll(ctx, scenarios)
	if err != nil {
		panic(err)
	}

	w, err := bench.NewSummaryCSVWriter(*outPath)
	if err != nil {
		panic(err)
	}
	for _, row := range rows {
		if err := w.WriteRow(row); err != nil {
			panic(err)
		}
	}
	if err := w.Close(); err != nil {
		panic(err)
	}

	if *reportPath != "" {
		f, err := os.Create(*reportPath)
		if err != nil {
			panic(err)
		}
		if err := bench.WriteReport(f, rows, time.Now()); err != nil {
			_ = f.Close()
			panic(err)
		}
		if err := f.Close(); err != nil {
			panic(err)
		}
	}
}

func filterScenarios(scenarios []bench.Scenario, filter string) []bench.Scenario {
	out := make([]bench.Scenario, 0, len(scenarios))
	for _, sc := range scenarios {
		if strings.Contains(sc.Name, filter) {
			out = append(out, sc)
		}
	}
	return out
}

func newLoggerFactory(level string) *logging.DefaultLoggerFactory {
	fac := logging.NewDefaultLoggerFactory()
	switch strings.ToLower(level) {
	case "trace":
		fac.DefaultLogLevel = logging.LogLevelTrace
	case "debug":
		fac.DefaultLogLevel = logging.LogLevelDebug
	case "warn":
		fac.DefaultLogLevel = logging.LogLevelWarn
	case "error":
		fac.DefaultLogLevel = logging.LogLevelError
	default:
		fac.DefaultLogLevel = logging.LogLevelInfo
	}
	return fac
}
