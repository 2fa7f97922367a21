// Package sourcefile stores metadata about finalized uploaded transcripts,
// keyed by content digest so re-uploading the same file is a no-op.
package sourcefile

import (
	"context"
	"database/sql"
	"time"

	"go.chromium.org/luci/common/errors"

	"github.com/xpnow/bugpanel/internal/apierr"
)

// SourceFile is a finalized, content-addressed upload.
type SourceFile struct {
	ID        string
	Digest    string
	Filename  string
	SizeBytes int64
	BlobURI   string
	CreatedAt time.Time
}

// Store persists SourceFile rows.
type Store struct {
	db *sql.DB
}

// NewStore wraps a *sql.DB for source_file access.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetByDigest returns the source file with the given digest, or a
// not-found apierr if none exists.
func (s *Store) GetByDigest(ctx context.Context, digest string) (*SourceFile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, digest, filename, size_bytes, blob_uri, created_at
		FROM source_file WHERE digest = $1`, digest)
	return scanSourceFile(row)
}

// Get returns the source file with the given id, or a not-found apierr.
func (s *Store) Get(ctx context.Context, id string) (*SourceFile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, digest, filename, size_bytes, blob_uri, created_at
		FROM source_file WHERE id = $1`, id)
	return scanSourceFile(row)
}

// Create inserts a new source file row and returns it with its generated id
// and timestamp. If a row with the same digest already exists it is
// returned instead (dedupe-on-exists), matching the object store's own
// dedupe behavior.
func (s *Store) Create(ctx context.Context, digest, filename string, sizeBytes int64, blobURI string) (*SourceFile, error) {
	existing, err := s.GetByDigest(ctx, digest)
	if err == nil {
		return existing, nil
	}
	if apierr.KindOf(err) != apierr.KindNotFound {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO source_file (digest, filename, size_bytes, blob_uri)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (digest) DO UPDATE SET digest = EXCLUDED.digest
		RETURNING id, digest, filename, size_bytes, blob_uri, created_at`,
		digest, filename, sizeBytes, blobURI)
	return scanSourceFile(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSourceFile(row rowScanner) (*SourceFile, error) {
	var sf SourceFile
	err := row.Scan(&sf.ID, &sf.Digest, &sf.Filename, &sf.SizeBytes, &sf.BlobURI, &sf.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apierr.NotFound("source file not found")
	}
	if err != nil {
		return nil, errors.Annotate(err, "scan source file").Err()
	}
	return &sf, nil
}
