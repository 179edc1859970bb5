// Command detector runs the arbitrage-detection core: it wires an Ingestor,
// the Price Graph, the Cycle Engine, the Gas & Net-Profit Evaluator, and the
// Block Scheduler together, then prints (and optionally persists) every
// opportunity the scheduler emits. Grounded on the teacher's cmd/scanner/
// main.go: flag parsing, config.Load, setupLogger, signal.NotifyContext,
// deferred store.Close(), same overall shape.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aptosarb/arbcore/config"
	"github.com/aptosarb/arbcore/internal/adapters/history"
	"github.com/aptosarb/arbcore/internal/adapters/ingest"
	"github.com/aptosarb/arbcore/internal/adapters/notify"
	"github.com/aptosarb/arbcore/internal/adapters/oracle"
	"github.com/aptosarb/arbcore/internal/cycle"
	"github.com/aptosarb/arbcore/internal/domain"
	"github.com/aptosarb/arbcore/internal/evaluator"
	"github.com/aptosarb/arbcore/internal/graph"
	"github.com/aptosarb/arbcore/internal/metrics"
	"github.com/aptosarb/arbcore/internal/ports"
	"github.com/aptosarb/arbcore/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print full table (default: compact 1-line)")
	replayPath := flag.String("replay", "", "replay recorded messages from this NDJSON file instead of a live ingestor")
	replayPaceMs := flag.Int("replay-pace-ms", 0, "sleep this long between replayed messages (0 = as fast as possible)")
	dumpGraph := flag.Bool("dump-graph", false, "print the Price Graph's current edges and exit (requires -replay)")
	metricsAddr := flag.String("metrics-addr", "", "address to serve Prometheus metrics on, e.g. :9090 (empty disables)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("arbcore detector starting",
		"config", *configPath,
		"interval", cfg.IntervalDuration(),
		"replay", *replayPath,
	)

	store, err := history.Open(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open opportunity history store", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()
	var storage ports.Storage = store

	notifier := notify.NewConsole(*table)

	g := graph.New(graphConfig(cfg))
	registry := cycle.NewRegistry()
	registry.Register(cycle.NewEngine("default", sizingPolicy(cfg), thresholds(cfg), cfg.Detector.Workers))

	metricsReg := metrics.New()
	promRegistry := prometheus.NewRegistry()
	metricsReg.MustRegister(promRegistry)
	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, promRegistry)
	}

	gasOracle, priceOracle := buildOracles(cfg)
	ev := evaluator.New(gasOracle, priceOracle, evaluatorConfig(cfg), func(reason string) {
		metricsReg.DroppedByGasTotal.Inc()
		slog.Debug("candidate dropped by evaluator", "reason", reason)
	})

	schedCfg := schedulerConfig(cfg)
	sched := scheduler.New(g, registry, ev, metricsReg, schedCfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ingestor, closeIngestor := buildIngestor(*replayPath, *replayPaceMs)
	if closeIngestor != nil {
		defer closeIngestor()
	}

	if *dumpGraph {
		runDumpGraph(ctx, g, sched, ingestor)
		return
	}

	runDetector(ctx, sched, ingestor, notifier, storage)

	slog.Info("arbcore detector stopped cleanly")
}

// runDetector wires the Ingestor into the Scheduler and drains its output
// channel until ctx is cancelled or the Ingestor ends.
func runDetector(ctx context.Context, sched *scheduler.Scheduler, ingestor ports.Ingestor, notifier ports.Notifier, store ports.Storage) {
	in := make(chan scheduler.DetectorMessage, 64)

	ingestErr := make(chan error, 1)
	go func() {
		defer close(in)
		ingestErr <- ingestor.Run(ctx, in)
	}()

	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx, in) }()

	var batch []domain.Opportunity
	flush := time.NewTicker(200 * time.Millisecond)
	defer flush.Stop()

	for {
		select {
		case <-ctx.Done():
			drainErr := <-done
			if drainErr != nil {
				slog.Warn("scheduler exited", "err", drainErr)
			}
			flushBatch(ctx, &batch, notifier, store)
			return

		case opp, ok := <-sched.Output():
			if !ok {
				flushBatch(ctx, &batch, notifier, store)
				return
			}
			batch = append(batch, opp)

		case <-flush.C:
			flushBatch(ctx, &batch, notifier, store)

		case err := <-ingestErr:
			if err != nil {
				slog.Error("ingestor exited with error", "err", err)
			}

		case drainErr := <-done:
			// The Ingestor ended and closed in, so Run has returned: collect
			// whatever is still buffered, flush it, and stop.
			if drainErr != nil && drainErr != domain.ErrChannelClosed {
				slog.Warn("scheduler exited", "err", drainErr)
			}
			for {
				select {
				case opp := <-sched.Output():
					batch = append(batch, opp)
				default:
					flushBatch(ctx, &batch, notifier, store)
					return
				}
			}
		}
	}
}

func flushBatch(ctx context.Context, batch *[]domain.Opportunity, notifier ports.Notifier, store ports.Storage) {
	if len(*batch) == 0 {
		return
	}
	if err := notifier.Notify(ctx, *batch); err != nil {
		slog.Warn("notifier error", "err", err)
	}
	if err := store.SaveOpportunities(ctx, *batch); err != nil {
		slog.Warn("failed to persist opportunity history", "err", err)
	}
	*batch = (*batch)[:0]
}

// runDumpGraph replays every message through the scheduler, then prints the
// resulting Price Graph's edges and exits (a supplemented CLI feature, spec
// section 9's graph-introspection tooling).
func runDumpGraph(ctx context.Context, g *graph.Graph, sched *scheduler.Scheduler, ingestor ports.Ingestor) {
	in := make(chan scheduler.DetectorMessage, 64)
	go func() {
		defer close(in)
		if err := ingestor.Run(ctx, in); err != nil {
			slog.Warn("ingestor exited", "err", err)
		}
	}()

	go func() {
		for range sched.Output() {
			// Discard opportunities in dump mode; we only care about the
			// final graph state.
		}
	}()

	if err := sched.Run(ctx, in); err != nil {
		slog.Warn("scheduler exited", "err", err)
	}

	snap := g.Snapshot()
	fmt.Printf("graph generation %d, %d edges\n", snap.Generation(), snap.EdgeCount())
	for _, asset := range snap.Assets() {
		for _, e := range snap.Neighbors(asset) {
			fmt.Printf("  %s -> %s via %s\n", e.Pair.AssetX, e.Pair.AssetY, e.Exchange)
		}
	}
}

func buildIngestor(replayPath string, paceMs int) (ports.Ingestor, func()) {
	if replayPath == "" {
		slog.Error("no ingestor configured: pass -replay until a live chain adapter is wired")
		os.Exit(1)
	}

	f, err := os.Open(replayPath)
	if err != nil {
		slog.Error("failed to open replay file", "err", err, "path", replayPath)
		os.Exit(1)
	}
	return ingest.NewReplay(f, time.Duration(paceMs)*time.Millisecond), func() { f.Close() }
}

func buildOracles(cfg *config.Config) (evaluator.GasOracle, evaluator.PriceOracle) {
	fallback, err := domain.ParseQuantity("0")
	if err != nil {
		fallback = domain.ZeroQuantity
	}
	simGasUsed, err := domain.ParseQuantity("0.0002")
	if err != nil {
		simGasUsed = domain.ZeroQuantity
	}

	prices := oracle.FixedPriceTable(map[domain.TradingPair]domain.Quantity{})
	o := oracle.NewStatic("APT", nil, time.Duration(cfg.Sim.GasPriceMaxAgeS)*time.Second, fallback, simGasUsed, prices)
	return o, o
}

func graphConfig(cfg *config.Config) graph.Config {
	minTVL, err := domain.ParseQuantity(cfg.Graph.MinTVL)
	if err != nil {
		minTVL = domain.ZeroQuantity
	}
	protected := make(map[domain.TradingPair]struct{}, len(cfg.Graph.ProtectedPairs))
	for _, raw := range cfg.Graph.ProtectedPairs {
		if pair, ok := parsePair(raw); ok {
			protected[pair] = struct{}{}
		}
	}
	return graph.Config{
		MaxStaleAge:       time.Duration(cfg.Graph.TTLSeconds) * time.Second,
		MinTVL:            minTVL,
		OpportunityWindow: time.Duration(cfg.Graph.OpportunityWindowS) * time.Second,
		ProtectedPairs:    protected,
		MaxGraphEdges:     cfg.Graph.MaxEdges,
	}
}

func sizingPolicy(cfg *config.Config) cycle.SizingPolicy {
	ladder := make([]domain.Quantity, 0, len(cfg.Detector.SizeLadder))
	for _, raw := range cfg.Detector.SizeLadder {
		q, err := domain.ParseQuantity(raw)
		if err != nil {
			continue
		}
		ladder = append(ladder, q)
	}
	policy := cycle.DefaultSizingPolicy()
	if len(ladder) > 0 {
		policy.Ladder = ladder
	}
	policy.SizeFraction = cfg.Detector.SizeFraction
	return policy
}

func thresholds(cfg *config.Config) cycle.Thresholds {
	allowed := make(map[domain.TradingPair]struct{}, len(cfg.Detector.AllowedPairs))
	for _, raw := range cfg.Detector.AllowedPairs {
		if pair, ok := parsePair(raw); ok {
			allowed[pair] = struct{}{}
		}
	}
	return cycle.Thresholds{
		MinProfitPct:   cfg.Detector.MinProfitPct,
		SlippageCapPct: cfg.Detector.SlippageCapPct,
		MaxCycleLen:    cfg.Detector.MaxCycleLen,
		AllowedPairs:   allowed,
	}
}

func evaluatorConfig(cfg *config.Config) evaluator.Config {
	minNetProfit, err := domain.ParseQuantity(cfg.Detector.MinNetProfit)
	if err != nil {
		minNetProfit = domain.ZeroQuantity
	}
	return evaluator.Config{
		SimTimeout:       time.Duration(cfg.Sim.TimeoutMs) * time.Millisecond,
		MaxConcurrent:    cfg.Sim.MaxConcurrent,
		MinNetProfit:     minNetProfit,
		GasPriceMaxAge:   time.Duration(cfg.Sim.GasPriceMaxAgeS) * time.Second,
		OracleRatePerSec: cfg.Sim.OracleRatePerSec,
	}
}

func schedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		PruneEveryBlocks:        cfg.Graph.Pruning.EveryBlocks,
		PruneTTL:                time.Duration(cfg.Graph.TTLSeconds) * time.Second,
		DedupWindow:             time.Duration(cfg.Dedup.WindowMs) * time.Millisecond,
		DedupReemitThresholdPct: cfg.Dedup.ReemitThresholdPct,
		OutputBufferSize:        cfg.Dedup.OutputBufferSize,
		BlockBudget:             200 * time.Millisecond,
	}
}

func parsePair(raw string) (domain.TradingPair, bool) {
	for i := 0; i < len(raw); i++ {
		if raw[i] == '/' {
			return domain.TradingPair{AssetX: domain.Asset(raw[:i]), AssetY: domain.Asset(raw[i+1:])}, true
		}
	}
	return domain.TradingPair{}, false
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("metrics server exited", "err", err)
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
