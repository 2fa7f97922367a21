// Package reportpack assembles and persists filtered exports of ingested
// events: a manifest, an events.csv, and an evidence.txt carrying the raw
// lines around each event, zipped and written through the blob store.
package reportpack

import (
	"archive/zip"
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.chromium.org/luci/common/errors"

	"github.com/xpnow/bugpanel/internal/apierr"
	"github.com/xpnow/bugpanel/internal/objectstore"
	"github.com/xpnow/bugpanel/internal/rawblock"
)

// Filters narrows which events a report pack covers. All fields are
// optional; an unset field applies no filter.
type Filters struct {
	EventType   string     `json:"event_type,omitempty"`
	PlayerID    string     `json:"player_id,omitempty"`
	IngestJobID *int64     `json:"ingest_job_id,omitempty"`
	Start       *time.Time `json:"start,omitempty"`
	End         *time.Time `json:"end,omitempty"`
}

// Pack is a persisted report pack record.
type Pack struct {
	ID        string
	Name      string
	Filters   Filters
	BlobURI   string
	CreatedAt time.Time
}

// eventRow is one joined row read back for export, mirroring the upstream
// query's aliased src/dst player join.
type eventRow struct {
	ID            int64
	OccurredAt    *time.Time
	EventType     string
	SrcPlayerID   *string
	DstPlayerID   *string
	Item          *string
	Container     *string
	Money         *int64
	Qty           *int64
	IngestJobID   int64
	RawBlockID    string
	RawLineIndex  int
}

// Store persists report_pack rows and builds their ZIP contents.
type Store struct {
	db    *sql.DB
	files *objectstore.Store
}

// NewStore wraps db and files for report pack assembly.
func NewStore(db *sql.DB, files *objectstore.Store) *Store {
	return &Store{db: db, files: files}
}

// Create runs filters against the event table, assembles the ZIP, writes
// it through the blob store, and persists the resulting Pack record.
func (s *Store) Create(ctx context.Context, name string, filters Filters) (*Pack, error) {
	rows, err := s.queryEvents(ctx, filters)
	if err != nil {
		return nil, err
	}

	zipBytes, err := s.buildZip(ctx, filters, rows)
	if err != nil {
		return nil, err
	}

	packID := fmt.Sprintf("%s-%s", name, uuid.NewString())
	relPath := s.files.ReportPackPath(packID)
	if err := s.files.WriteReportPack(relPath, zipBytes); err != nil {
		return nil, errors.Annotate(err, "write report pack blob").Err()
	}

	filtersJSON, err := json.Marshal(filters)
	if err != nil {
		return nil, errors.Annotate(err, "marshal report pack filters").Err()
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO report_pack (name, filters, blob_uri)
		VALUES ($1, $2, $3)
		RETURNING id, name, filters, blob_uri, created_at`,
		name, filtersJSON, relPath)
	return scanPack(row)
}

// Get returns the report pack with the given id, or a not-found apierr.
func (s *Store) Get(ctx context.Context, id string) (*Pack, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, filters, blob_uri, created_at FROM report_pack WHERE id = $1`, id)
	return scanPack(row)
}

// List returns every report pack, most recently created first.
func (s *Store) List(ctx context.Context) ([]*Pack, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, filters, blob_uri, created_at FROM report_pack ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.Annotate(err, "list report packs").Err()
	}
	defer rows.Close()

	var packs []*Pack
	for rows.Next() {
		p, err := scanPack(rows)
		if err != nil {
			return nil, err
		}
		packs = append(packs, p)
	}
	return packs, rows.Err()
}

func (s *Store) queryEvents(ctx context.Context, f Filters) ([]eventRow, error) {
	query := `
		SELECT e.id, e.occurred_at, et.key, sp.player_id, dp.player_id,
			di.name, dc.key, e.money, e.qty, e.ingest_job_id, e.raw_block_id, e.raw_line_index
		FROM event e
		JOIN dict_event_type et ON et.id = e.event_type_id
		LEFT JOIN dict_player sp ON sp.id = e.src_player_id
		LEFT JOIN dict_player dp ON dp.id = e.dst_player_id
		LEFT JOIN dict_item di ON di.id = e.item_id
		LEFT JOIN dict_container dc ON dc.id = e.container_id
		WHERE 1 = 1`
	var args []any
	argN := 0
	next := func(v any) string {
		argN++
		args = append(args, v)
		return "$" + strconv.Itoa(argN)
	}
	if f.EventType != "" {
		query += " AND et.key = " + next(f.EventType)
	}
	if f.IngestJobID != nil {
		query += " AND e.ingest_job_id = " + next(*f.IngestJobID)
	}
	if f.PlayerID != "" {
		ph := next(f.PlayerID)
		query += " AND (sp.player_id = " + ph + " OR dp.player_id = " + ph + ")"
	}
	if f.Start != nil {
		query += " AND e.occurred_at >= " + next(*f.Start)
	}
	if f.End != nil {
		query += " AND e.occurred_at <= " + next(*f.End)
	}
	query += " ORDER BY e.created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Annotate(err, "query events for report pack").Err()
	}
	defer rows.Close()

	var out []eventRow
	for rows.Next() {
		var r eventRow
		if err := rows.Scan(&r.ID, &r.OccurredAt, &r.EventType, &r.SrcPlayerID, &r.DstPlayerID,
			&r.Item, &r.Container, &r.Money, &r.Qty, &r.IngestJobID, &r.RawBlockID, &r.RawLineIndex); err != nil {
			return nil, errors.Annotate(err, "scan report pack event row").Err()
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// buildZip assembles manifest.json, events.csv, and evidence.txt into a
// ZIP archive, loading each distinct raw block's decompressed lines at
// most once regardless of how many events it contributed.
func (s *Store) buildZip(ctx context.Context, filters Filters, rows []eventRow) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	manifest := map[string]any{
		"filters":     filters,
		"event_count": len(rows),
	}
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, errors.Annotate(err, "marshal report pack manifest").Err()
	}
	if err := writeZipEntry(zw, "manifest.json", manifestJSON); err != nil {
		return nil, err
	}

	var csvBuf bytes.Buffer
	csvWriter := csv.NewWriter(&csvBuf)
	csvWriter.Write([]string{
		"event_id", "occurred_at", "event_type", "src_player_id", "dst_player_id",
		"item", "container", "money", "qty", "ingest_job_id", "raw_block_id", "raw_line_index",
	})

	rawLineCache := map[string][]string{}
	var evidence bytes.Buffer
	for _, r := range rows {
		csvWriter.Write([]string{
			strconv.FormatInt(r.ID, 10),
			formatOccurredAt(r.OccurredAt),
			r.EventType,
			deref(r.SrcPlayerID),
			deref(r.DstPlayerID),
			deref(r.Item),
			deref(r.Container),
			derefInt(r.Money),
			derefInt(r.Qty),
			strconv.FormatInt(r.IngestJobID, 10),
			r.RawBlockID,
			strconv.Itoa(r.RawLineIndex),
		})

		lines, ok := rawLineCache[r.RawBlockID]
		if !ok {
			lines = s.loadRawBlockLines(r.RawBlockID)
			rawLineCache[r.RawBlockID] = lines
		}
		if r.RawLineIndex >= 0 && r.RawLineIndex < len(lines) {
			start := max(0, r.RawLineIndex-2)
			end := min(len(lines), r.RawLineIndex+3)
			fmt.Fprintf(&evidence, "[%d]\n", r.ID)
			for _, l := range lines[start:end] {
				evidence.WriteString(l)
				evidence.WriteString("\n")
			}
			evidence.WriteString("\n")
		}
	}
	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return nil, errors.Annotate(err, "write events.csv").Err()
	}
	if err := writeZipEntry(zw, "events.csv", csvBuf.Bytes()); err != nil {
		return nil, err
	}
	if err := writeZipEntry(zw, "evidence.txt", evidence.Bytes()); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, errors.Annotate(err, "close report pack zip").Err()
	}
	return buf.Bytes(), nil
}

// loadRawBlockLines reads and decompresses a raw block's lines for
// evidence context. A missing or unreadable block yields no lines rather
// than failing the whole export.
func (s *Store) loadRawBlockLines(rawBlockID string) []string {
	var relPath string
	err := s.db.QueryRow(`SELECT blob_uri FROM raw_block WHERE id = $1`, rawBlockID).Scan(&relPath)
	if err != nil {
		return nil
	}
	dec, err := rawblock.NewDecompressor(s.files)
	if err != nil {
		return nil
	}
	lines, err := dec.Lines(relPath)
	if err != nil {
		return nil
	}
	return lines
}

func writeZipEntry(zw *zip.Writer, name string, content []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return errors.Annotate(err, "create zip entry "+name).Err()
	}
	if _, err := w.Write(content); err != nil {
		return errors.Annotate(err, "write zip entry "+name).Err()
	}
	return nil
}

func formatOccurredAt(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(n *int64) string {
	if n == nil {
		return ""
	}
	return strconv.FormatInt(*n, 10)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPack(row rowScanner) (*Pack, error) {
	var p Pack
	var filtersJSON []byte
	if err := row.Scan(&p.ID, &p.Name, &filtersJSON, &p.BlobURI, &p.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, apierr.NotFound("report pack not found")
		}
		return nil, errors.Annotate(err, "scan report pack").Err()
	}
	if len(filtersJSON) > 0 {
		if err := json.Unmarshal(filtersJSON, &p.Filters); err != nil {
			return nil, errors.Annotate(err, "unmarshal report pack filters").Err()
		}
	}
	return &p, nil
}
