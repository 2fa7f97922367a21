// Package ingestjob implements the worker's job lease/process/terminal
// loop: it polls for a queued job, normalizes and classifies its source
// file line by line, persists the resulting events and unknown-signature
// stats, and marks the job completed or failed.
package ingestjob

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/logging"

	"github.com/xpnow/bugpanel/internal/apierr"
	"github.com/xpnow/bugpanel/internal/dictionary"
	"github.com/xpnow/bugpanel/internal/event"
	"github.com/xpnow/bugpanel/internal/metrics"
	"github.com/xpnow/bugpanel/internal/normalize"
	"github.com/xpnow/bugpanel/internal/objectstore"
	"github.com/xpnow/bugpanel/internal/parsers"
	"github.com/xpnow/bugpanel/internal/rawblock"
	"github.com/xpnow/bugpanel/internal/sourcefile"
	"github.com/xpnow/bugpanel/internal/unknownsig"
)

// Status is the lifecycle state of an ingest job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Job is one unit of ingestion work against a single source file.
type Job struct {
	ID           int64
	SourceFileID string
	Status       Status
	ErrorText    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Store persists ingest_job rows.
type Store struct {
	db *sql.DB
}

// NewStore wraps db for ingest job access.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create queues a new job for sourceFileID.
func (s *Store) Create(ctx context.Context, sourceFileID string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO ingest_job (source_file_id, status)
		VALUES ($1, 'queued')
		RETURNING id, source_file_id, status, error_text, created_at, updated_at`,
		sourceFileID)
	return scanJob(row)
}

// Get returns the job with the given id, or a not-found apierr.
func (s *Store) Get(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source_file_id, status, error_text, created_at, updated_at
		FROM ingest_job WHERE id = $1`, id)
	return scanJob(row)
}

// List returns every job, most recently created first.
func (s *Store) List(ctx context.Context) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_file_id, status, error_text, created_at, updated_at
		FROM ingest_job ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.Annotate(err, "list ingest jobs").Err()
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// leaseNext atomically claims the oldest queued job, marking it running.
// Returns a nil job and nil error if no job is queued.
func (s *Store) leaseNext(ctx context.Context) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE ingest_job SET status = 'running', updated_at = now()
		WHERE id = (
			SELECT id FROM ingest_job
			WHERE status = 'queued'
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, source_file_id, status, error_text, created_at, updated_at`)
	job, err := scanJob(row)
	if apierr.KindOf(err) == apierr.KindNotFound {
		return nil, nil
	}
	return job, err
}

func (s *Store) markCompleted(ctx context.Context, id int64, stats map[string]any) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return errors.Annotate(err, "marshal job stats").Err()
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE ingest_job SET status = 'completed', stats = $2, updated_at = now() WHERE id = $1`,
		id, statsJSON)
	if err != nil {
		return errors.Annotate(err, "mark job completed").Err()
	}
	return nil
}

func (s *Store) markFailed(ctx context.Context, id int64, cause error) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE ingest_job SET status = 'failed', error_text = $2, updated_at = now() WHERE id = $1`,
		id, cause.Error())
	if err != nil {
		return errors.Annotate(err, "mark job failed").Err()
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var j Job
	err := row.Scan(&j.ID, &j.SourceFileID, &j.Status, &j.ErrorText, &j.CreatedAt, &j.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apierr.NotFound("ingest job not found")
	}
	if err != nil {
		return nil, errors.Annotate(err, "scan ingest job").Err()
	}
	return &j, nil
}

// Runner drives the worker's lease/process loop.
type Runner struct {
	db          *sql.DB
	store       *Store
	files       *sourcefile.Store
	objectStore *objectstore.Store
	dateOrder   string
	timezone    *time.Location
	blockSize   int
	metrics     *metrics.Metrics
}

// NewRunner wires a Runner from its dependencies.
func NewRunner(db *sql.DB, store *Store, files *sourcefile.Store, objectStore *objectstore.Store, dateOrder string, timezone *time.Location, blockSize int, m *metrics.Metrics) *Runner {
	return &Runner{
		db:          db,
		store:       store,
		files:       files,
		objectStore: objectStore,
		dateOrder:   dateOrder,
		timezone:    timezone,
		blockSize:   blockSize,
		metrics:     m,
	}
}

// RunOnce leases and processes at most one queued job. It returns false
// if no job was queued.
func (r *Runner) RunOnce(ctx context.Context) (bool, error) {
	job, err := r.store.leaseNext(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	if err := r.process(ctx, job); err != nil {
		logging.Errorf(ctx, "ingest job %d failed: %s", job.ID, err)
		if r.metrics != nil {
			r.metrics.JobsFailed.Inc()
		}
		if markErr := r.store.markFailed(ctx, job.ID, err); markErr != nil {
			return true, markErr
		}
		return true, nil
	}
	if r.metrics != nil {
		r.metrics.JobsCompleted.Inc()
	}
	return true, nil
}

// Loop polls for queued jobs every pollInterval until ctx is canceled.
func (r *Runner) Loop(ctx context.Context, pollInterval time.Duration) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		ran, err := r.RunOnce(ctx)
		if err != nil {
			logging.Errorf(ctx, "ingest job runner: %s", err)
		}
		if !ran {
			select {
			case <-ctx.Done():
				return
			case <-time.After(pollInterval):
			}
		}
	}
}

func (r *Runner) process(ctx context.Context, job *Job) error {
	sourceFile, err := r.files.Get(ctx, job.SourceFileID)
	if err != nil {
		return errors.Annotate(err, "load source file").Err()
	}

	f, err := r.objectStore.Open(sourceFile.BlobURI)
	if err != nil {
		return errors.Annotate(err, "open source file blob").Err()
	}
	defer f.Close()

	writer, err := rawblock.NewWriter(r.db, r.objectStore, sourceFile.ID, r.blockSize)
	if err != nil {
		return err
	}
	resolver := normalize.NewTimestampResolver(time.Now().In(r.timezone), r.dateOrder, r.timezone)
	stream := normalize.NewStream(resolver)
	dict := dictionary.New(r.db)
	events := event.NewStore(r.db)
	unknown := unknownsig.NewAggregator()

	var eventCount, unknownCount int
	eventTypeCounts := map[string]int{}
	parserCounts := map[string]int{}
	qualityCounts := map[string]int{}

	emit := func(block normalize.Block) error {
		qualityCounts[string(block.OccurredAtQuality)]++
		if r.metrics != nil {
			r.metrics.BlocksByQuality.WithLabelValues(string(block.OccurredAtQuality)).Inc()
		}
		parsed := parsers.Dispatch(block)
		if len(parsed) == 0 {
			for _, pl := range block.Payload {
				unknown.Add(pl.Text)
				unknownCount++
			}
			return nil
		}
		for _, p := range parsed {
			if err := r.storeEvent(ctx, job, sourceFile, dict, events, block, p); err != nil {
				return err
			}
			eventCount++
			eventTypeCounts[p.EventType]++
			parserCounts[p.ParserID]++
		}
		return nil
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		ref, err := writer.Append(ctx, scanner.Text())
		if err != nil {
			return err
		}
		if block, ok := stream.Push(normalize.RawLine{Text: scanner.Text(), Ref: ref}); ok {
			if err := emit(block); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Annotate(err, "read source file").Err()
	}
	if block, ok := stream.Flush(); ok {
		if err := emit(block); err != nil {
			return err
		}
	}
	if err := writer.Flush(ctx); err != nil {
		return err
	}

	dropped, err := unknown.Flush(ctx, r.db, job.ID)
	if err != nil {
		return err
	}
	if r.metrics != nil && unknownCount > 0 {
		r.metrics.UnknownSignatures.Add(float64(unknownCount))
	}
	if dropped > 0 {
		logging.Warningf(ctx, "ingest job %d: dropped %d unknown signatures beyond top %d", job.ID, dropped, unknownsig.TopN)
	}

	return r.store.markCompleted(ctx, job.ID, map[string]any{
		"events":            eventCount,
		"unknown_lines":     unknownCount,
		"unknown_sigs_kept": min(len(unknown.Counts()), unknownsig.TopN),
		"event_types":       eventTypeCounts,
		"parsers":           parserCounts,
		"timestamp_quality": qualityCounts,
	})
}

func (r *Runner) storeEvent(ctx context.Context, job *Job, sourceFile *sourcefile.SourceFile, dict *dictionary.Cache, events *event.Store, block normalize.Block, p parsers.EventData) error {
	eventTypeID, err := dict.EventTypeID(ctx, p.EventType)
	if err != nil {
		return err
	}
	var srcID, dstID, itemID, containerID *int64
	if p.SrcPlayerID != "" {
		id, err := dict.PlayerID(ctx, p.SrcPlayerID)
		if err != nil {
			return err
		}
		srcID = &id
	}
	if p.DstPlayerID != "" {
		id, err := dict.PlayerID(ctx, p.DstPlayerID)
		if err != nil {
			return err
		}
		dstID = &id
	}
	if p.Item != "" {
		id, err := dict.ItemID(ctx, p.Item)
		if err != nil {
			return err
		}
		itemID = &id
	}
	if p.Container != "" {
		id, err := dict.ContainerID(ctx, p.Container)
		if err != nil {
			return err
		}
		containerID = &id
	}

	if r.metrics != nil {
		r.metrics.EventsByParser.WithLabelValues(p.ParserID).Inc()
		r.metrics.EventsByType.WithLabelValues(p.EventType).Inc()
	}

	return events.Insert(ctx, sourceFile.Digest, event.Entry{
		SourceFileID:      sourceFile.ID,
		IngestJobID:       job.ID,
		ParserID:          p.ParserID,
		ParserVersion:     p.ParserVersion,
		OccurredAt:        block.OccurredAt,
		OccurredAtQuality: block.OccurredAtQuality,
		EventType:         p.EventType,
		EventTypeID:       eventTypeID,
		SrcPlayerID:       srcID,
		DstPlayerID:       dstID,
		ItemID:            itemID,
		ContainerID:       containerID,
		Money:             p.Money,
		Qty:               p.Qty,
		Metadata:          p.Metadata,
		Ref:               p.Ref,
	})
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
