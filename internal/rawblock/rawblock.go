// Package rawblock buffers raw transcript lines into fixed-size
// blocks, compresses each with zstd, and writes it to the object store so
// every persisted event can point back at its exact source bytes.
package rawblock

import (
	"bytes"
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"go.chromium.org/luci/common/errors"

	"github.com/xpnow/bugpanel/internal/objectstore"
)

// DefaultBlockSize is the number of lines buffered per block before a
// flush, matching the upstream worker's default.
const DefaultBlockSize = 500

// Ref points at a single line within a persisted raw block, the evidence
// pointer carried by every Event. GlobalLineNo is the 1-indexed position
// of the line within its whole source file, independent of block
// boundaries.
type Ref struct {
	BlockID      string
	LineIndex    int
	GlobalLineNo int64
}

// Writer buffers lines for a single source file's ingestion and flushes
// them as zstd-compressed blocks once BlockSize lines have accumulated.
// The current block's id is pre-generated before any of its lines are
// written, so Append can hand back a stable (blockID, lineIndex) evidence
// pointer immediately, well before that block is actually flushed to
// storage.
type Writer struct {
	db        *sql.DB
	store     *objectstore.Store
	encoder   *zstd.Encoder
	sourceID  string
	blockSize int

	blockID      string
	buffer       []string
	globalLineNo int64
}

// NewWriter creates a Writer for sourceID, flushing every blockSize lines.
// If blockSize is <= 0, DefaultBlockSize is used.
func NewWriter(db *sql.DB, store *objectstore.Store, sourceID string, blockSize int) (*Writer, error) {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(10)))
	if err != nil {
		return nil, errors.Annotate(err, "init zstd encoder").Err()
	}
	return &Writer{
		db:        db,
		store:     store,
		encoder:   enc,
		sourceID:  sourceID,
		blockSize: blockSize,
		blockID:   uuid.NewString(),
	}, nil
}

// Append queues a line for the current block and returns the Ref it will
// be stored at. Once BlockSize lines have accumulated the block is
// flushed automatically and a fresh block id is generated for subsequent
// lines.
func (w *Writer) Append(ctx context.Context, line string) (Ref, error) {
	w.globalLineNo++
	ref := Ref{BlockID: w.blockID, LineIndex: len(w.buffer), GlobalLineNo: w.globalLineNo}
	w.buffer = append(w.buffer, line)

	if len(w.buffer) >= w.blockSize {
		if err := w.flush(ctx); err != nil {
			return Ref{}, err
		}
	}
	return ref, nil
}

// Flush writes out any remaining buffered lines as a final, possibly
// short, block. It is a no-op if the buffer is empty. Callers must call
// Flush exactly once after the last Append, mirroring the upstream
// writer's flush-on-end-of-input contract.
func (w *Writer) Flush(ctx context.Context) error {
	if len(w.buffer) == 0 {
		return nil
	}
	return w.flush(ctx)
}

func (w *Writer) flush(ctx context.Context) error {
	blockID := w.blockID
	lineCount := len(w.buffer)
	raw := strings.Join(w.buffer, "\n")
	w.buffer = w.buffer[:0]
	w.blockID = uuid.NewString()

	compressed := w.encoder.EncodeAll([]byte(raw), make([]byte, 0, len(raw)))
	var buf bytes.Buffer
	buf.Write(compressed)

	relPath := w.store.RawBlockPath(w.sourceID, blockID)
	if err := w.store.WriteRawBlock(relPath, buf.Bytes()); err != nil {
		return err
	}

	_, err := w.db.ExecContext(ctx, `
		INSERT INTO raw_block (id, source_file_id, blob_uri, codec, line_count)
		VALUES ($1, $2, $3, 'zstd', $4)`,
		blockID, w.sourceID, relPath, lineCount)
	if err != nil {
		return errors.Annotate(err, "insert raw block").Err()
	}
	return nil
}

// Decompressor reads back zstd-compressed raw blocks from the object
// store, used to serve evidence lookups.
type Decompressor struct {
	store   *objectstore.Store
	decoder *zstd.Decoder
}

// NewDecompressor creates a Decompressor over store.
func NewDecompressor(store *objectstore.Store) (*Decompressor, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, errors.Annotate(err, "init zstd decoder").Err()
	}
	return &Decompressor{store: store, decoder: dec}, nil
}

// Lines decompresses the block at relPath and splits it back into its
// original lines.
func (d *Decompressor) Lines(relPath string) ([]string, error) {
	f, err := d.store.Open(relPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var compressed bytes.Buffer
	if _, err := compressed.ReadFrom(f); err != nil {
		return nil, errors.Annotate(err, "read raw block blob").Err()
	}
	raw, err := d.decoder.DecodeAll(compressed.Bytes(), nil)
	if err != nil {
		return nil, errors.Annotate(err, "decompress raw block").Err()
	}
	return strings.Split(string(raw), "\n"), nil
}
