package convert

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"pxtorem/transform"
)

// tally accumulates results of a single run.
type tally struct {
	mu       sync.Mutex
	total    transform.Stats
	files    int
	changed  int
	excluded int
	failed   int
}

func (t *tally) add(s transform.Stats, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.files++
	switch {
	case err != nil:
		t.failed++
	case s.Excluded:
		t.excluded++
	case s.Changed():
		t.changed++
	}
	t.total.Add(s)
}

func (t *tally) report(log *zap.Logger, elapsed time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.Int("stylesheets", t.files),
		zap.Int("changed", t.changed),
		zap.Int("excluded", t.excluded),
		zap.Int("declarations", t.total.Converted+t.total.Inserted),
		zap.Int("media", t.total.MediaQueries),
	}
	if t.failed > 0 {
		log.Warn("Processing completed with errors", append(fields, zap.Int("failed", t.failed))...)
		return
	}
	log.Info("Processing completed", fields...)
}

func (t *tally) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return fmt.Sprintf("stylesheets: %d\nchanged: %d\nexcluded: %d\nfailed: %d\nconverted: %d\ninserted: %d\nduplicates: %d\nblacklisted: %d\nmedia: %d\n",
		t.files, t.changed, t.excluded, t.failed,
		t.total.Converted, t.total.Inserted, t.total.Duplicates, t.total.Blacklisted, t.total.MediaQueries)
}
