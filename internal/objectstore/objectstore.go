// Package objectstore implements the content-addressed local blob store
// used for finalized source files, raw ingest blocks, and report-pack
// archives, plus the staging area for in-progress chunked uploads.
package objectstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"go.chromium.org/luci/common/errors"
)

// Store roots a content-addressed blob tree plus an upload staging tree on
// the local filesystem. Both roots are plain directories; Store never talks
// to a remote bucket.
type Store struct {
	objectRoot string
	uploadRoot string
}

// New creates a Store rooted at objectRoot (finalized blobs) and uploadRoot
// (in-progress chunk staging), creating both directories if needed.
func New(objectRoot, uploadRoot string) (*Store, error) {
	if err := os.MkdirAll(objectRoot, 0o755); err != nil {
		return nil, errors.Annotate(err, "create object store root").Err()
	}
	if err := os.MkdirAll(uploadRoot, 0o755); err != nil {
		return nil, errors.Annotate(err, "create upload root").Err()
	}
	return &Store{objectRoot: objectRoot, uploadRoot: uploadRoot}, nil
}

// NewUploadPrefix allocates a fresh staging directory for a chunked upload
// session and returns its id, used to name the directory under uploadRoot.
func (s *Store) NewUploadPrefix() (string, error) {
	id := uuid.NewString()
	dir := filepath.Join(s.uploadRoot, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Annotate(err, "create upload prefix").Err()
	}
	return id, nil
}

// WriteChunk writes chunk index of an upload session to its staging
// directory, overwriting any prior write at the same index. Per-index
// writes are idempotent: re-uploading the same index just replaces the
// bytes, matching the upstream PUT-chunk semantics.
func (s *Store) WriteChunk(prefix string, index int, r io.Reader) (int64, error) {
	path := filepath.Join(s.uploadRoot, prefix, chunkName(index))
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, errors.Annotate(err, "create chunk temp file").Err()
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return 0, errors.Annotate(err, "write chunk").Err()
	}
	if err := os.Rename(tmp, path); err != nil {
		return 0, errors.Annotate(err, "commit chunk").Err()
	}
	return n, nil
}

// FinalizeUpload concatenates chunks 0..count-1 of an upload session in
// order, streams them through SHA-256, and moves the result into the
// content-addressed store. If a blob with the same digest already exists,
// the newly assembled file is discarded and the existing blob is reused
// (dedupe-on-exists). Returns the digest and the final blob's relative
// path under the object root.
func (s *Store) FinalizeUpload(prefix string, count int) (digest string, relPath string, size int64, err error) {
	tmp, err := os.CreateTemp(s.objectRoot, "finalize-*.tmp")
	if err != nil {
		return "", "", 0, errors.Annotate(err, "create finalize temp file").Err()
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	h := sha256.New()
	w := io.MultiWriter(tmp, h)
	for i := 0; i < count; i++ {
		chunkPath := filepath.Join(s.uploadRoot, prefix, chunkName(i))
		cf, err := os.Open(chunkPath)
		if err != nil {
			tmp.Close()
			return "", "", 0, errors.Annotate(err, "open chunk").Err()
		}
		n, err := io.Copy(w, cf)
		cf.Close()
		if err != nil {
			tmp.Close()
			return "", "", 0, errors.Annotate(err, "assemble chunk").Err()
		}
		size += n
	}
	if err := tmp.Close(); err != nil {
		return "", "", 0, errors.Annotate(err, "close finalize temp file").Err()
	}

	digest = hex.EncodeToString(h.Sum(nil))
	relPath = sourceFileRelPath(digest)
	finalPath := filepath.Join(s.objectRoot, relPath)

	if _, err := os.Stat(finalPath); err == nil {
		// Dedupe: identical content already stored under this digest.
		return digest, relPath, size, nil
	}
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return "", "", 0, errors.Annotate(err, "create source-files directory").Err()
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", "", 0, errors.Annotate(err, "commit source file blob").Err()
	}
	return digest, relPath, size, nil
}

// RawBlockPath returns the relative path (under the object root) a raw
// block with the given id should be stored at for sourceFileID.
func (s *Store) RawBlockPath(sourceFileID, blockID string) string {
	return filepath.Join("raw-blocks", sourceFileID, blockID+".zst")
}

// WriteRawBlock writes the compressed bytes of a raw block to its path,
// creating parent directories as needed.
func (s *Store) WriteRawBlock(relPath string, data []byte) error {
	full := filepath.Join(s.objectRoot, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return errors.Annotate(err, "create raw-blocks directory").Err()
	}
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Annotate(err, "write raw block").Err()
	}
	if err := os.Rename(tmp, full); err != nil {
		return errors.Annotate(err, "commit raw block").Err()
	}
	return nil
}

// Open opens a blob at a path relative to the object root for reading,
// e.g. a source file or a raw block.
func (s *Store) Open(relPath string) (*os.File, error) {
	f, err := os.Open(filepath.Join(s.objectRoot, relPath))
	if err != nil {
		return nil, errors.Annotate(err, "open blob").Err()
	}
	return f, nil
}

// ReportPackPath returns the relative path a report pack archive with the
// given id should be stored at.
func (s *Store) ReportPackPath(id string) string {
	return filepath.Join("report-packs", id+".zip")
}

// WriteReportPack writes a report pack archive's bytes to its path.
func (s *Store) WriteReportPack(relPath string, data []byte) error {
	full := filepath.Join(s.objectRoot, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return errors.Annotate(err, "create report-packs directory").Err()
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return errors.Annotate(err, "write report pack").Err()
	}
	return nil
}

// AbsPath resolves a relative blob path to an absolute filesystem path,
// for handlers that need to stream a file directly (e.g. report pack
// download).
func (s *Store) AbsPath(relPath string) string {
	return filepath.Join(s.objectRoot, relPath)
}

func chunkName(index int) string {
	return fmt.Sprintf("chunk_%06d.part", index)
}

func sourceFileRelPath(digest string) string {
	return filepath.Join("source-files", digest)
}
