// Package unknownsig aggregates payload lines that no parser recognized,
// grouped by a signature that collapses digits and whitespace, so an
// operator reviewing an ingest job sees unrecognized line shapes rather
// than a wall of near-duplicate rows.
package unknownsig

import (
	"context"
	"database/sql"
	"sort"

	"go.chromium.org/luci/common/errors"

	"github.com/xpnow/bugpanel/internal/signature"
)

// TopN is the number of distinct signatures persisted per job, matching
// the upstream worker's most_common(50) cutoff.
const TopN = 50

// Aggregator counts unknown-signature occurrences for a single ingest
// job in memory, to be flushed once at the end of the job.
type Aggregator struct {
	counts map[string]int
}

// NewAggregator creates an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{counts: make(map[string]int)}
}

// Add records one occurrence of line's normalized signature.
func (a *Aggregator) Add(line string) {
	a.counts[signature.Normalize(line)]++
}

// Counts returns the occurrence count of each distinct signature seen so
// far.
func (a *Aggregator) Counts() map[string]int {
	return a.counts
}

// count pairs a signature with its occurrence count, used for sorting
// before persisting the top N.
type count struct {
	signature string
	n         int
}

// Flush persists the top TopN signatures by count for ingestJobID,
// dropping the rest. The number of signatures dropped is returned so
// callers can log it; nothing is silently truncated without a trace.
func (a *Aggregator) Flush(ctx context.Context, db *sql.DB, ingestJobID int64) (dropped int, err error) {
	if len(a.counts) == 0 {
		return 0, nil
	}
	counts := make([]count, 0, len(a.counts))
	for sig, n := range a.counts {
		counts = append(counts, count{signature: sig, n: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].n != counts[j].n {
			return counts[i].n > counts[j].n
		}
		return counts[i].signature < counts[j].signature
	})

	top := counts
	if len(top) > TopN {
		dropped = len(top) - TopN
		top = top[:TopN]
	}

	for _, c := range top {
		_, err := db.ExecContext(ctx, `
			INSERT INTO unknown_signature (ingest_job_id, signature, count)
			VALUES ($1, $2, $3)`, ingestJobID, c.signature, c.n)
		if err != nil {
			return dropped, errors.Annotate(err, "persist unknown signature").Err()
		}
	}
	return dropped, nil
}
