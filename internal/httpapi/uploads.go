package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"go.chromium.org/luci/common/logging"

	"github.com/xpnow/bugpanel/internal/apierr"
)

type createUploadRequest struct {
	Filename       string `json:"filename"`
	Size           int64  `json:"size"`
	ChunkSize      int64  `json:"chunk_size"`
	ExpectedChunks *int   `json:"expected_chunks"`
}

func (s *Server) createUpload(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req createUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apierr.Validation("invalid request body"))
		return
	}
	if req.Filename == "" {
		writeError(w, apierr.Validation("filename is required"))
		return
	}

	sess, err := s.uploads.Create(r.Context(), req.Filename, req.Size, req.ChunkSize, req.ExpectedChunks)
	if err != nil {
		writeError(w, err)
		return
	}
	logging.Infof(r.Context(), "created upload session %s for %s (%s declared)", sess.ID, sess.Filename, humanBytes(sess.DeclaredSize))
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) putUploadChunk(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	index, err := parseIntQuery(r, "index")
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := s.uploads.PutChunk(r.Context(), id, index, r.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"index":           index,
		"received":        result.BytesReceived,
		"received_chunks": result.ReceivedChunks,
	})
}

func (s *Server) finalizeUpload(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	sf, err := s.uploads.Finalize(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sf)
}
