// Package retention prunes closed burst trace files on a wall-clock
// schedule, independent of the sampler's own logical-time burst
// scheduler. It exists because a long-running sampler process can
// accumulate burst files faster than a downstream consumer drains
// them; the sampler itself has no notion of wall time and must not be
// taught one just to bound disk usage.
package retention

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Config configures a Sweeper. Grounded on the teacher's compaction
// schedule fields (DbCompactionScheduleCron / DbCompactionTargetSize
// in internal/processor/reservoirsampler/config.go), generalized from
// "shrink one bolt file" to "delete whole burst files until under
// budget".
type Config struct {
	// Prefix is the sampler's OutputPrefix; burst files are named
	// "<Prefix>.<idx>".
	Prefix string

	// Schedule is a cron spec as accepted by cron.New()'s default
	// parser: a standard five-field expression or a descriptor such as
	// "@every 1h".
	Schedule string

	// MaxTotalBytes bounds the combined size of all closed burst files
	// under Prefix. A sweep deletes the oldest closed files first until
	// the total drops at or below this budget. Zero disables pruning.
	MaxTotalBytes int64

	Logger *zap.Logger
}

// ActiveIndexFunc reports which burst indices are still open and must
// never be deleted, however old they look on disk.
type ActiveIndexFunc func() map[int]bool

// Sweeper runs Config's retention policy on Config's cron schedule.
type Sweeper struct {
	cfg       Config
	active    ActiveIndexFunc
	cron      *cron.Cron
	logger    *zap.Logger
	lastBytes int64
}

var burstFilePattern = regexp.MustCompile(`\.(\d+)$`)

// NewSweeper builds a Sweeper that will never delete a burst index for
// which active returns true.
func NewSweeper(cfg Config, active ActiveIndexFunc) *Sweeper {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{cfg: cfg, active: active, logger: logger}
}

// Start schedules the sweep and begins running it in the background.
func (s *Sweeper) Start() error {
	if s.cfg.Schedule == "" || s.cfg.MaxTotalBytes <= 0 {
		return nil
	}

	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.cfg.Schedule, s.sweepOnce)
	if err != nil {
		return fmt.Errorf("retention: schedule %q: %w", s.cfg.Schedule, err)
	}
	s.cron.Start()
	s.logger.Info("burst retention scheduled",
		zap.String("schedule", s.cfg.Schedule),
		zap.Int64("max_total_bytes", s.cfg.MaxTotalBytes))
	return nil
}

// Stop halts the cron scheduler. Safe to call even if Start never
// scheduled anything.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

type burstFile struct {
	path string
	idx  int
	size int64
	mod  int64
}

func (s *Sweeper) sweepOnce() {
	files, err := s.listBurstFiles()
	if err != nil {
		s.logger.Error("retention sweep: list burst files", zap.Error(err))
		return
	}

	active := map[int]bool{}
	if s.active != nil {
		active = s.active()
	}

	var total int64
	var candidates []burstFile
	for _, f := range files {
		total += f.size
		if !active[f.idx] {
			candidates = append(candidates, f)
		}
	}
	s.lastBytes = total

	if total <= s.cfg.MaxTotalBytes {
		return
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].mod < candidates[j].mod })

	removed := 0
	for _, f := range candidates {
		if total <= s.cfg.MaxTotalBytes {
			break
		}
		if err := os.Remove(f.path); err != nil {
			s.logger.Error("retention sweep: remove burst file", zap.String("path", f.path), zap.Error(err))
			continue
		}
		total -= f.size
		removed++
	}

	s.logger.Info("retention sweep complete",
		zap.Int("removed", removed),
		zap.Int64("bytes_remaining", total))
}

func (s *Sweeper) listBurstFiles() ([]burstFile, error) {
	matches, err := filepath.Glob(s.cfg.Prefix + ".*")
	if err != nil {
		return nil, err
	}

	var out []burstFile
	for _, path := range matches {
		suffix := strings.TrimPrefix(path, s.cfg.Prefix)
		m := burstFilePattern.FindStringSubmatch(suffix)
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		fi, err := os.Stat(path)
		if err != nil {
			continue
		}
		out = append(out, burstFile{path: path, idx: idx, size: fi.Size(), mod: fi.ModTime().UnixNano()})
	}
	return out, nil
}
