// Package uploadsession implements chunked-upload session lifecycle:
// create, write chunks, and finalize into a content-addressed source file.
package uploadsession

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"sort"
	"time"

	"go.chromium.org/luci/common/errors"

	"github.com/xpnow/bugpanel/internal/apierr"
	"github.com/xpnow/bugpanel/internal/objectstore"
	"github.com/xpnow/bugpanel/internal/sourcefile"
)

// Status is the lifecycle state of an upload session.
type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusFinalized Status = "FINALIZED"
)

// Session is a chunked upload in progress or finalized.
type Session struct {
	ID              string
	Filename        string
	DeclaredSize    int64
	ChunkSize       int64
	ExpectedChunks  *int
	ReceivedChunks  []int
	TempPrefix      string
	Status          Status
	FinalDigest     *string
	FinalURI        *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Service coordinates upload sessions against the database and the object
// store's upload staging area.
type Service struct {
	db    *sql.DB
	store *objectstore.Store
	files *sourcefile.Store
}

// NewService wires a Service from its dependencies.
func NewService(db *sql.DB, store *objectstore.Store, files *sourcefile.Store) *Service {
	return &Service{db: db, store: store, files: files}
}

// Create starts a new upload session for filename, of declaredSize bytes,
// to be uploaded in chunkSize-byte pieces. expectedChunks, if the client
// supplied one, is trusted as-is; otherwise it is derived from declaredSize
// and chunkSize.
func (s *Service) Create(ctx context.Context, filename string, declaredSize, chunkSize int64, expectedChunks *int) (*Session, error) {
	prefix, err := s.store.NewUploadPrefix()
	if err != nil {
		return nil, err
	}
	expected := expectedChunks
	if expected == nil && chunkSize > 0 {
		n := int((declaredSize + chunkSize - 1) / chunkSize)
		expected = &n
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO upload_session (filename, declared_size, chunk_size, expected_chunks, temp_prefix)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, filename, declared_size, chunk_size, expected_chunks, received_chunks,
		          temp_prefix, status, final_digest, final_uri, created_at, updated_at`,
		filename, declaredSize, chunkSize, expected, prefix)
	return scanSession(row)
}

// Get returns the session with the given id, or a not-found apierr.
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, filename, declared_size, chunk_size, expected_chunks, received_chunks,
		       temp_prefix, status, final_digest, final_uri, created_at, updated_at
		FROM upload_session WHERE id = $1`, id)
	return scanSession(row)
}

// PutChunkResult reports the bytes accepted by one chunk write and the
// session's cumulative received-chunk set.
type PutChunkResult struct {
	// BytesReceived is the number of bytes read from r for this chunk.
	BytesReceived int64
	// ReceivedChunks is the session's full set of received indices, after
	// recording this one.
	ReceivedChunks []int
}

// PutChunk writes chunk index of session id. It rejects the write if the
// session is already finalized.
func (s *Service) PutChunk(ctx context.Context, id string, index int, r io.Reader) (PutChunkResult, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return PutChunkResult{}, err
	}
	if sess.Status != StatusOpen {
		return PutChunkResult{}, apierr.Conflict("upload session is not open")
	}
	n, err := s.store.WriteChunk(sess.TempPrefix, index, r)
	if err != nil {
		return PutChunkResult{}, err
	}

	received := mergeChunkIndex(sess.ReceivedChunks, index)
	receivedJSON, err := json.Marshal(received)
	if err != nil {
		return PutChunkResult{}, errors.Annotate(err, "marshal received chunks").Err()
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE upload_session
		SET received_chunks = $2, updated_at = now()
		WHERE id = $1`, id, receivedJSON)
	if err != nil {
		return PutChunkResult{}, errors.Annotate(err, "record received chunk").Err()
	}
	return PutChunkResult{BytesReceived: n, ReceivedChunks: received}, nil
}

// finalizeChunkCount decides how many chunks to assemble: if the session
// has expected_chunks (client-supplied, or derived from size and chunk size
// at Create), at least that many chunks must have been received and
// exactly that many are assembled; otherwise the session finalizes with
// as many chunks as it has recorded, assembling indices 0 through
// len(received)-1.
func finalizeChunkCount(sess *Session) (int, error) {
	if sess.ExpectedChunks != nil {
		if len(sess.ReceivedChunks) < *sess.ExpectedChunks {
			return 0, apierr.Conflict("upload session is missing chunks")
		}
		return *sess.ExpectedChunks, nil
	}
	if len(sess.ReceivedChunks) == 0 {
		return 0, apierr.Conflict("upload session is missing chunks")
	}
	return len(sess.ReceivedChunks), nil
}

func mergeChunkIndex(received []int, index int) []int {
	for _, v := range received {
		if v == index {
			return received
		}
	}
	merged := append(append([]int{}, received...), index)
	sort.Ints(merged)
	return merged
}

// Finalize closes the session, assembling its chunks into a source file.
// If the session is already finalized, it idempotently returns the
// previously assembled source file.
func (s *Service) Finalize(ctx context.Context, id string) (*sourcefile.SourceFile, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Status == StatusFinalized {
		return s.files.GetByDigest(ctx, *sess.FinalDigest)
	}

	count, err := finalizeChunkCount(sess)
	if err != nil {
		return nil, err
	}

	digest, relPath, size, err := s.store.FinalizeUpload(sess.TempPrefix, count)
	if err != nil {
		return nil, err
	}
	sf, err := s.files.Create(ctx, digest, sess.Filename, size, relPath)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE upload_session
		SET status = 'FINALIZED', final_digest = $2, final_uri = $3, updated_at = now()
		WHERE id = $1`, id, digest, relPath)
	if err != nil {
		return nil, errors.Annotate(err, "mark upload session finalized").Err()
	}
	return sf, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var sess Session
	var receivedJSON []byte
	err := row.Scan(
		&sess.ID, &sess.Filename, &sess.DeclaredSize, &sess.ChunkSize, &sess.ExpectedChunks,
		&receivedJSON, &sess.TempPrefix, &sess.Status, &sess.FinalDigest, &sess.FinalURI,
		&sess.CreatedAt, &sess.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apierr.NotFound("upload session not found")
	}
	if err != nil {
		return nil, errors.Annotate(err, "scan upload session").Err()
	}
	if err := json.Unmarshal(receivedJSON, &sess.ReceivedChunks); err != nil {
		return nil, errors.Annotate(err, "unmarshal received chunks").Err()
	}
	return &sess, nil
}
