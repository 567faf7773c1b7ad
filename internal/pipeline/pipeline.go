// Package pipeline wires the stages of a load end-to-end: streaming record
// source, decomposition into relational write sets, and batched persistence
// into the configured storage backend.
//
// The concurrency model is deliberately narrow: one producer goroutine streams
// records from disk, one consumer goroutine decomposes and persists them.
// Decomposition must stay sequential because the drug registry's first-seen
// semantics depend on record order; back-pressure is enforced via the bounded
// channel between the two stages.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"faersload/internal/config"
	"faersload/internal/decompose"
	"faersload/internal/metrics"
	"faersload/internal/parser/report"
	"faersload/internal/sidefile"
	"faersload/internal/storage"
	"faersload/pkg/records"
)

const sampleErrors = 3

// Stats is the end-of-run accounting. The invariant for records is:
//
//	processed == inserted + rejected + duplicates + oversized + write_errors
type Stats struct {
	Processed   int64
	Inserted    int64
	Rejected    int64
	Duplicates  int64
	Oversized   int64
	WriteErrors int64
	Batches     int64
	Drugs       int64
}

// counters holds cross-goroutine statistics for a run.
type counters struct {
	processed   atomic.Int64 // records leaving the stream stage
	inserted    atomic.Int64 // records whose write set fully applied
	rejected    atomic.Int64 // records dropped before persistence
	duplicates  atomic.Int64 // records whose report row already existed (policy=ignore)
	oversized   atomic.Int64 // records diverted to the side file
	writeErrors atomic.Int64 // records abandoned on unexpected write failure
	batches     atomic.Int64 // committed transactions
}

func (c *counters) snapshot(drugs int64) Stats {
	return Stats{
		Processed:   c.processed.Load(),
		Inserted:    c.inserted.Load(),
		Rejected:    c.rejected.Load(),
		Duplicates:  c.duplicates.Load(),
		Oversized:   c.oversized.Load(),
		WriteErrors: c.writeErrors.Load(),
		Batches:     c.batches.Load(),
		Drugs:       drugs,
	}
}

// Function variables used to introduce test seams. In production these point
// to real implementations; tests can override them.
var (
	newRepositoryFn = func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return storage.New(ctx, cfg)
	}

	openSideFileFn = sidefile.Open
)

// Run executes a full load per spec and returns its stats. A non-nil error
// means the run aborted; the returned stats still reflect work done up to the
// abort. Per-record problems (rejects, duplicates, oversized records) never
// abort the run.
func Run(ctx context.Context, spec config.Pipeline) (Stats, error) {
	start := time.Now()
	var stats counters

	repo, err := newRepositoryFn(ctx, storage.Config{
		Kind:      spec.Storage.Kind,
		DSN:       spec.Storage.DB.DSN,
		Namespace: spec.Storage.DB.Namespace,
	})
	if err != nil {
		return stats.snapshot(0), fmt.Errorf("init repo: %w", err)
	}
	defer repo.Close()

	if err := repo.EnsureSchema(ctx); err != nil {
		return stats.snapshot(0), fmt.Errorf("ensure schema: %w", err)
	}

	dec := decompose.New()
	entries, err := repo.DrugCatalog(ctx)
	if err != nil {
		return stats.snapshot(0), fmt.Errorf("hydrate drug catalog: %w", err)
	}
	dec.Hydrate(entries)
	if len(entries) > 0 {
		log.Printf("registry hydrated: drugs=%d", len(entries))
	}

	var side *sidefile.Writer
	if spec.Runtime.MaxPayloadBytes > 0 {
		side, err = openSideFileFn(spec.Runtime.OversizedPath)
		if err != nil {
			return stats.snapshot(0), err
		}
		defer side.Close()
	}

	// Cancellation: limit or a fatal consumer error stops the producer.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	src := report.NewSource(
		spec.Source.File.Path,
		spec.Source.Options.String("pattern", config.DefaultPattern),
	)

	g, gctx := errgroup.WithContext(ctx)
	recCh := make(chan records.Record, spec.Runtime.ChannelBuffer)
	g.Go(func() error {
		defer close(recCh)
		return src.Stream(gctx, recCh)
	})

	ld := &loader{
		repo:      repo,
		dec:       dec,
		side:      side,
		stats:     &stats,
		rejectAgg: newErrAgg(sampleErrors),
		writeAgg:  newErrAgg(sampleErrors),
		spec:      spec,
		start:     start,
	}
	limitReached, loadErr := ld.consume(gctx, recCh)
	if limitReached {
		// Stop the producer and drain so it can exit.
		cancel()
		for range recCh {
		}
	}

	streamErr := g.Wait()
	if limitReached && errors.Is(streamErr, context.Canceled) {
		streamErr = nil
	}

	runErr := loadErr
	if runErr == nil {
		runErr = streamErr
	}

	drugs := int64(dec.Drugs())
	final := stats.snapshot(drugs)
	ld.rejectAgg.logSummary("record rejects")
	ld.writeAgg.logSummary("write errors")
	logSummary(final)
	publishMetrics(spec.Job, final, runErr, time.Since(start))

	return final, runErr
}

// loader is the sequential consumer stage.
type loader struct {
	repo      storage.Repository
	dec       *decompose.Decomposer
	side      *sidefile.Writer
	stats     *counters
	rejectAgg *errAgg
	writeAgg  *errAgg
	spec      config.Pipeline
	start     time.Time
}

// consume drains recCh, decomposing and persisting each record in commit
// batches. It reports whether the record limit stopped the run.
func (l *loader) consume(ctx context.Context, recCh <-chan records.Record) (bool, error) {
	rt := l.spec.Runtime

	if err := l.repo.Begin(ctx); err != nil {
		return false, fmt.Errorf("begin batch: %w", err)
	}
	inBatch := 0

	commit := func(ctx context.Context) error {
		if err := l.repo.Commit(ctx); err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
		inBatch = 0
		batchNum := l.stats.batches.Add(1)
		elapsed := time.Since(l.start)
		total := l.stats.inserted.Load()
		rate := int64(float64(l.stats.processed.Load()) / elapsed.Seconds())
		log.Printf(
			"batch=%d rps=%d total_inserted=%d duplicates=%d elapsed=%s",
			batchNum, rate, total, l.stats.duplicates.Load(), elapsed.Truncate(time.Millisecond),
		)
		return nil
	}

	for rec := range recCh {
		select {
		case <-ctx.Done():
			// Cooperative stop: flush the open batch so records already
			// written are not rolled back with the transaction.
			if inBatch > 0 {
				if err := commit(context.WithoutCancel(ctx)); err != nil {
					return false, err
				}
			}
			return false, ctx.Err()
		default:
		}

		n := l.stats.processed.Add(1)

		if err := l.load(ctx, rec); err != nil {
			return false, err
		}

		if rt.ProgressEvery > 0 && n%rt.ProgressEvery == 0 {
			log.Printf("progress: processed=%d inserted=%d duplicates=%d rejected=%d oversized=%d",
				n, l.stats.inserted.Load(), l.stats.duplicates.Load(),
				l.stats.rejected.Load(), l.stats.oversized.Load())
		}

		inBatch++
		if inBatch >= rt.CommitEvery {
			if err := commit(ctx); err != nil {
				return false, err
			}
			if err := l.repo.Begin(ctx); err != nil {
				return false, fmt.Errorf("begin batch: %w", err)
			}
		}

		if rt.Limit > 0 && n >= rt.Limit {
			if inBatch > 0 {
				if err := commit(ctx); err != nil {
					return true, err
				}
			}
			log.Printf("record limit reached: limit=%d", rt.Limit)
			return true, nil
		}
	}

	if err := commit(context.WithoutCancel(ctx)); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return false, nil
}

// load processes one record. Per-record failures are counted and sampled but
// never returned; only infrastructure errors (side file, registry write inside
// the transaction) propagate.
func (l *loader) load(ctx context.Context, rec records.Record) error {
	rt := l.spec.Runtime

	if rt.MaxPayloadBytes > 0 {
		if size := decompose.EstimateSize(rec); size > rt.MaxPayloadBytes {
			l.stats.oversized.Add(1)
			return l.side.Record(sidefile.Entry{
				SafetyReportID: reportID(rec),
				Reason:         fmt.Sprintf("estimated payload %d bytes exceeds limit %d", size, rt.MaxPayloadBytes),
			})
		}
	}

	ws, err := l.dec.Decompose(ctx, rec)
	if err != nil {
		var rejected *decompose.RejectedRecordError
		if errors.As(err, &rejected) {
			l.stats.rejected.Add(1)
			l.rejectAgg.add(fmt.Sprintf("report=%s: %s", reportID(rec), rejected.Reason))
			return nil
		}
		return err
	}

	replace := l.spec.Storage.Policy == "replace"
	reportDuplicate := false
	for _, w := range ws {
		if w.Table == storage.TableReport && replace {
			if err := l.repo.Upsert(ctx, w.Table, storage.Keys[w.Table], w.Columns, w.Values); err != nil {
				l.stats.writeErrors.Add(1)
				l.writeAgg.add(fmt.Sprintf("report=%s table=%s: %v", reportID(rec), w.Table, err))
				return nil
			}
			continue
		}

		outcome, err := l.repo.InsertIgnore(ctx, w.Table, w.Columns, w.Values)
		if err != nil {
			l.stats.writeErrors.Add(1)
			l.writeAgg.add(fmt.Sprintf("report=%s table=%s: %v", reportID(rec), w.Table, err))
			return nil
		}
		if w.Table == storage.TableReport && outcome == storage.OutcomeDuplicate {
			reportDuplicate = true
		}
	}

	if reportDuplicate {
		l.stats.duplicates.Add(1)
	} else {
		l.stats.inserted.Add(1)
	}
	return nil
}

// reportID extracts the report id for log and side-file attribution, shaped
// but not validated.
func reportID(rec records.Record) string {
	switch v := rec.Value("safetyreportid").(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func logSummary(s Stats) {
	log.Printf(
		"summary: processed=%d inserted=%d duplicates=%d rejected=%d oversized=%d write_errors=%d batches=%d drugs=%d",
		s.Processed, s.Inserted, s.Duplicates, s.Rejected, s.Oversized, s.WriteErrors, s.Batches, s.Drugs,
	)

	accounted := s.Inserted + s.Duplicates + s.Rejected + s.Oversized + s.WriteErrors
	if accounted != s.Processed {
		log.Printf(
			"WARNING: record accounting mismatch: processed=%d accounted=%d (delta=%d)",
			s.Processed, accounted, s.Processed-accounted,
		)
	}
}

func publishMetrics(job string, s Stats, runErr error, elapsed time.Duration) {
	metrics.RecordStep(job, "run", runErr, elapsed)
	metrics.RecordRow(job, "processed", s.Processed)
	metrics.RecordRow(job, "inserted", s.Inserted)
	metrics.RecordRow(job, "duplicates", s.Duplicates)
	metrics.RecordRow(job, "rejected", s.Rejected)
	metrics.RecordRow(job, "oversized", s.Oversized)
	metrics.RecordRow(job, "drugs", s.Drugs)
	metrics.RecordBatches(job, s.Batches)
}

// errAgg aggregates per-record error messages, keeping the first N verbatim.
type errAgg struct {
	mu    sync.Mutex
	limit int
	count int
	first []string
}

func newErrAgg(limit int) *errAgg {
	return &errAgg{limit: limit}
}

func (a *errAgg) add(msg string) {
	a.mu.Lock()
	if a.count < a.limit {
		a.first = append(a.first, msg)
	}
	a.count++
	a.mu.Unlock()
}

func (a *errAgg) logSummary(label string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.count == 0 {
		return
	}
	log.Printf("%s: %d (showing first %d)", label, a.count, len(a.first))
	for i, s := range a.first {
		log.Printf("  #%03d: %s", i+1, s)
	}
}
