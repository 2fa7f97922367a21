// Package event persists classified events into the partitioned event
// table, computing each row's dedupe key and ensuring the monthly
// partition it belongs to exists before inserting.
package event

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"go.chromium.org/luci/common/errors"

	"github.com/xpnow/bugpanel/internal/normalize"
	"github.com/xpnow/bugpanel/internal/rawblock"
)

// Entry is a fully-resolved event row ready for insertion: all dictionary
// lookups have already happened and every foreign key is a plain id.
type Entry struct {
	SourceFileID      string
	IngestJobID       int64
	ParserID          string
	ParserVersion     string
	OccurredAt        *time.Time
	OccurredAtQuality normalize.Quality
	EventType         string
	EventTypeID       int64
	SrcPlayerID       *int64
	DstPlayerID       *int64
	ItemID            *int64
	ContainerID       *int64
	Money             *int64
	Qty               *int64
	Metadata          map[string]any
	Ref               rawblock.Ref
}

// Store inserts Entries into the partitioned event table, creating
// monthly partitions on demand.
type Store struct {
	db *sql.DB

	// ensuredMonths memoizes which (year, month) partitions this Store has
	// already confirmed exist, scoped to one ingest job's lifetime.
	ensuredMonths map[string]bool
}

// NewStore wraps db for event persistence.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, ensuredMonths: make(map[string]bool)}
}

// DedupeKey computes the stable hash that makes re-ingesting the same
// source file a no-op: two events derived from the same global line of
// the same source file, classified as the same event type, are always
// the same event. Keyed on global_line_no rather than (raw_block_id,
// raw_line_index) because raw_block_id is a fresh random id on every
// ingest job run — it cannot anchor dedupe across re-ingests.
func DedupeKey(sourceDigest string, globalLineNo int64, eventTypeID int64, eventType string) string {
	seed := fmt.Sprintf("%s:%d:%d:%s", sourceDigest, globalLineNo, eventTypeID, eventType)
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}

// Insert writes one event row. A dedupe-key collision (the event was
// already ingested, e.g. from a prior run of the same job) is treated as
// success: the row already present is the correct one.
func (s *Store) Insert(ctx context.Context, sourceDigest string, e Entry) error {
	if err := s.ensurePartition(ctx, e.OccurredAt); err != nil {
		return err
	}
	dedupeKey := DedupeKey(sourceDigest, e.Ref.GlobalLineNo, e.EventTypeID, e.EventType)

	metadata := e.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return errors.Annotate(err, "marshal event metadata").Err()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO event (
			source_file_id, ingest_job_id, parser_id, parser_version,
			occurred_at, occurred_at_quality, event_type_id,
			src_player_id, dst_player_id, item_id, container_id,
			money, qty, metadata, raw_block_id, raw_line_index, global_line_no,
			dedupe_key
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18
		)
		ON CONFLICT (dedupe_key) DO NOTHING`,
		e.SourceFileID, e.IngestJobID, e.ParserID, e.ParserVersion,
		e.OccurredAt, string(e.OccurredAtQuality), e.EventTypeID,
		e.SrcPlayerID, e.DstPlayerID, e.ItemID, e.ContainerID,
		e.Money, e.Qty, metadataJSON, e.Ref.BlockID, e.Ref.LineIndex, e.Ref.GlobalLineNo,
		dedupeKey)
	if err != nil {
		return errors.Annotate(err, "insert event").Err()
	}
	return nil
}

// ensurePartition creates the monthly range partition covering occurredAt
// if it does not already exist. A nil occurredAt (UNKNOWN quality) routes
// to the catch-all default partition and needs no DDL.
func (s *Store) ensurePartition(ctx context.Context, occurredAt *time.Time) error {
	if occurredAt == nil {
		return nil
	}
	t := occurredAt.UTC()
	monthStart := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	key := monthStart.Format("2006-01")
	if s.ensuredMonths[key] {
		return nil
	}
	monthEnd := monthStart.AddDate(0, 1, 0)
	partitionName := fmt.Sprintf("event_%s", monthStart.Format("200601"))
	dedupeIdx := partitionName + "_dedupe_idx"
	jobOccurredIdx := partitionName + "_job_occurred_idx"
	jobTypeIdx := partitionName + "_job_type_idx"

	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		DO $$
		BEGIN
			IF NOT EXISTS (
				SELECT 1 FROM pg_class WHERE relname = '%s'
			) THEN
				EXECUTE format(
					'CREATE TABLE %%I PARTITION OF event FOR VALUES FROM (%%L) TO (%%L)',
					'%s', %s, %s
				);
				EXECUTE format(
					'CREATE UNIQUE INDEX %%I ON %%I (dedupe_key)',
					'%s', '%s'
				);
				EXECUTE format(
					'CREATE INDEX %%I ON %%I (ingest_job_id, occurred_at)',
					'%s', '%s'
				);
				EXECUTE format(
					'CREATE INDEX %%I ON %%I (ingest_job_id, event_type_id)',
					'%s', '%s'
				);
			END IF;
		END
		$$;`,
		partitionName, partitionName,
		quoteLiteral(monthStart), quoteLiteral(monthEnd),
		dedupeIdx, partitionName,
		jobOccurredIdx, partitionName,
		jobTypeIdx, partitionName))
	if err != nil {
		return errors.Annotate(err, "ensure event partition").Err()
	}
	s.ensuredMonths[key] = true
	return nil
}

func quoteLiteral(t time.Time) string {
	return "'" + t.Format("2006-01-02T15:04:05Z07:00") + "'"
}
