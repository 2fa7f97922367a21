// Package httpapi implements the JSON HTTP surface: upload sessions,
// ingest jobs, events, evidence lookups, report packs, and dictionary
// search. Routing is handled by julienschmidt/httprouter; every handler
// maps apierr.Kind to the matching HTTP status code.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/julienschmidt/httprouter"
	"go.chromium.org/luci/common/logging"

	"github.com/xpnow/bugpanel/internal/apierr"
	"github.com/xpnow/bugpanel/internal/ingestjob"
	"github.com/xpnow/bugpanel/internal/objectstore"
	"github.com/xpnow/bugpanel/internal/reportpack"
	"github.com/xpnow/bugpanel/internal/sourcefile"
	"github.com/xpnow/bugpanel/internal/uploadsession"
)

// Server groups the stores and object store the HTTP surface reads and
// writes through.
type Server struct {
	db          *sql.DB
	uploads     *uploadsession.Service
	files       *sourcefile.Store
	jobs        *ingestjob.Store
	packs       *reportpack.Store
	objectStore *objectstore.Store
	allowOrigins []string
}

// NewServer wires a Server from its dependencies.
func NewServer(db *sql.DB, uploads *uploadsession.Service, files *sourcefile.Store, jobs *ingestjob.Store, packs *reportpack.Store, objectStore *objectstore.Store, allowOrigins []string) *Server {
	return &Server{
		db:           db,
		uploads:      uploads,
		files:        files,
		jobs:         jobs,
		packs:        packs,
		objectStore:  objectStore,
		allowOrigins: allowOrigins,
	}
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := httprouter.New()

	r.POST("/uploads/create", s.createUpload)
	r.PUT("/uploads/:id/chunk", s.putUploadChunk)
	r.POST("/uploads/:id/finalize", s.finalizeUpload)

	r.POST("/ingest-jobs", s.createIngestJob)
	r.GET("/ingest-jobs", s.listIngestJobs)
	r.GET("/ingest-jobs/:id", s.getIngestJob)

	r.GET("/events", s.listEvents)
	r.GET("/events/:id", s.getEvent)

	r.GET("/evidence/raw-line", s.getRawLine)

	r.POST("/report-packs", s.createReportPack)
	r.GET("/report-packs", s.listReportPacks)
	r.GET("/report-packs/:id", s.getReportPack)

	r.GET("/search", s.search)

	return s.withCORS(r)
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowed := s.originAllowed(origin); allowed != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) string {
	for _, o := range s.allowOrigins {
		if o == "*" {
			return "*"
		}
		if o == origin {
			return origin
		}
	}
	return ""
}

// writeJSON encodes v as the response body with a 200 status, or the
// given status if nonzero.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Errorf(context.Background(), "encode response: %s", err)
	}
}

// writeError maps err's apierr.Kind to an HTTP status and writes a JSON
// error body, matching the upstream FastAPI routers' HTTPException shape.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apierr.KindOf(err) {
	case apierr.KindNotFound:
		status = http.StatusNotFound
	case apierr.KindConflict:
		status = http.StatusConflict
	case apierr.KindValidation:
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"detail": err.Error()})
}

func parseLimit(r *http.Request, def, max int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apierr.Validation("limit must be an integer")
	}
	if n > max {
		return 0, apierr.Validation("limit exceeds maximum of " + strconv.Itoa(max))
	}
	return n, nil
}

// parseIntQuery reads a required integer query parameter.
func parseIntQuery(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, apierr.Validation(name + " query parameter is required")
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apierr.Validation(name + " must be an integer")
	}
	return n, nil
}

// parseIntQueryDefault reads an optional integer query parameter, falling
// back to def when unset and rejecting values above max.
func parseIntQueryDefault(r *http.Request, name string, def, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apierr.Validation(name + " must be an integer")
	}
	if n > max {
		return 0, apierr.Validation(name + " exceeds maximum of " + strconv.Itoa(max))
	}
	return n, nil
}

func parseOffset(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("offset")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apierr.Validation("offset must be an integer")
	}
	return n, nil
}

func parseTimeParam(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apierr.Validation(name + " must be an RFC 3339 timestamp")
	}
	return &t, nil
}

func humanBytes(n int64) string {
	return humanize.Bytes(uint64(n))
}
