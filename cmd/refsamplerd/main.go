// Command refsamplerd drives the reuse-distance sampler against a
// synthetic memory-access stream and, at shutdown, prints how many
// references were dispatched and how many bursts were opened. Per-kind
// event counts are recorded through the OTel metrics reporter only;
// this command does not print them. It exists to exercise core/sampler
// end to end; real
// deployments call the package directly from an instrumentation
// front-end instead of shelling out to this binary.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"

	"github.com/deepaucksharma/refdist-sampler/core/sampler"
	"github.com/deepaucksharma/refdist-sampler/internal/retention"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

var (
	outputFlag       = flag.String("output", "refsampler-trace", "Output path prefix for burst files")
	lineSizeLog2Flag = flag.Uint("line-size-log2", 6, "log2 of the cache line size")
	burstSizeFlag    = flag.Uint64("burst-size", 1000, "Burst window length, in logical-time units")
	burstPeriodFlag  = flag.Uint64("burst-period", 500, "Mean logical-time gap between bursts")
	samplePeriodFlag = flag.Uint64("sample-period", 100, "Mean logical-time gap between samples within a burst")
	accessesFlag     = flag.Uint64("accesses", 20000, "Number of synthetic accesses to dispatch")
	policyFlag       = flag.String("policy", "exponential", "Inter-arrival policy: constant or exponential")
	compressFlag     = flag.Bool("compress", false, "Compress burst trace streams with zstd")
	seedFlag         = flag.Int64("seed", 1, "Seed for both the synthetic access generator and the sampling policy")
	verboseFlag      = flag.Bool("verbose", false, "Enable verbose logging")

	retentionScheduleFlag = flag.String("retention-schedule", "", "Cron schedule for pruning closed burst files, e.g. \"@every 1h\"")
	retentionMaxBytesFlag = flag.Int64("retention-max-bytes", 0, "Combined burst-file size budget enforced by -retention-schedule")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "refsamplerd: %v\n", err)
		os.Exit(1)
	}
}

func createLogger() (*zap.Logger, error) {
	if *verboseFlag {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run() error {
	logger, err := createLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	policyRNG := rand.New(rand.NewSource(*seedFlag))
	var samplePolicy, burstPolicy sampler.SamplingFunc
	switch *policyFlag {
	case "constant":
		samplePolicy = sampler.ConstantPolicy()
		burstPolicy = sampler.ConstantPolicy()
	case "exponential":
		samplePolicy = sampler.ExponentialPolicy(policyRNG)
		burstPolicy = sampler.ExponentialPolicy(policyRNG)
	default:
		return fmt.Errorf("unknown -policy %q (want constant or exponential)", *policyFlag)
	}

	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	reporter, err := sampler.NewOTelMetrics(provider.Meter("refsamplerd"))
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	cfg := &sampler.Config{
		OutputPrefix: *outputFlag,
		LineSizeLog2: uint8(*lineSizeLog2Flag),
		BurstSize:    *burstSizeFlag,
		BurstPeriod:  *burstPeriodFlag,
		SamplePeriod: *samplePeriodFlag,
		SampleRnd:    samplePolicy,
		BurstRnd:     burstPolicy,
		Compress:     *compressFlag,
		Logger:       logger,
		Metrics:      reporter,
	}

	s, err := sampler.New(cfg)
	if err != nil {
		return fmt.Errorf("init sampler: %w", err)
	}

	// Every burst's writer stays open until Finalize (spec §4.6), so
	// every opened burst index counts as "active" from the retention
	// sweeper's point of view for the life of this process.
	sweeper := retention.NewSweeper(retention.Config{
		Prefix:        *outputFlag,
		Schedule:      *retentionScheduleFlag,
		MaxTotalBytes: *retentionMaxBytesFlag,
		Logger:        logger,
	}, func() map[int]bool {
		active := map[int]bool{}
		for _, idx := range collectBurstIdxs(s) {
			active[idx] = true
		}
		return active
	})
	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("start retention sweeper: %w", err)
	}
	defer sweeper.Stop()

	gen := newAccessGenerator(*seedFlag, uint8(*lineSizeLog2Flag))
	for i := uint64(0); i < *accessesFlag; i++ {
		if err := s.Reference(gen.next()); err != nil {
			return fmt.Errorf("dispatch access %d: %w", i, err)
		}
	}

	if err := s.Finalize(); err != nil {
		return fmt.Errorf("finalize sampler: %w", err)
	}

	fmt.Printf("dispatched %d references across %d bursts (prefix %q)\n",
		s.TotalReferences(), len(collectBurstIdxs(s)), *outputFlag)
	return nil
}

// collectBurstIdxs reports every burst index opened, by probing
// BurstHeader upward from 0 until it reports absent.
func collectBurstIdxs(s *sampler.Sampler) []int {
	var idxs []int
	for i := 0; ; i++ {
		if _, ok := s.BurstHeader(i); !ok {
			break
		}
		idxs = append(idxs, i)
	}
	return idxs
}

// accessGenerator produces a synthetic but plausible memory-access
// stream: a small working set of addresses revisited with decaying
// locality, program counters drawn from a small instruction window,
// and strictly increasing logical time.
type accessGenerator struct {
	rng          *rand.Rand
	time         uint64
	lineSizeLog2 uint8
	workingSet   []uint64
}

func newAccessGenerator(seed int64, lineSizeLog2 uint8) *accessGenerator {
	workingSet := make([]uint64, 64)
	rng := rand.New(rand.NewSource(seed))
	for i := range workingSet {
		workingSet[i] = uint64(rng.Intn(1 << 20))
	}
	return &accessGenerator{rng: rng, lineSizeLog2: lineSizeLog2, workingSet: workingSet}
}

func (g *accessGenerator) next() sampler.AccessRecord {
	t := g.time
	g.time++
	addr := g.workingSet[g.rng.Intn(len(g.workingSet))] << g.lineSizeLog2
	pc := uint64(g.rng.Intn(256))
	return sampler.AccessRecord{
		Addr:    addr,
		PC:      pc,
		Time:    t,
		Operand: uint8(g.rng.Intn(4)),
		Type:    sampler.AccessType(g.rng.Intn(3)),
	}
}
