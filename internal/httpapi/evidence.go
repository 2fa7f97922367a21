package httpapi

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/xpnow/bugpanel/internal/apierr"
	"github.com/xpnow/bugpanel/internal/rawblock"
)

type evidenceOut struct {
	RawBlockID     string   `json:"raw_block_id"`
	LineIndex      int      `json:"line_index"`
	Line           string   `json:"line"`
	ContextBefore  []string `json:"context_before"`
	ContextAfter   []string `json:"context_after"`
}

// getRawLine serves ?raw_block_id=...&line_index=...&context=N, returning
// the line at that index plus up to context lines on either side.
func (s *Server) getRawLine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	rawBlockID := r.URL.Query().Get("raw_block_id")
	if rawBlockID == "" {
		writeError(w, apierr.Validation("raw_block_id query parameter is required"))
		return
	}
	lineIndex, err := parseIntQuery(r, "line_index")
	if err != nil {
		writeError(w, err)
		return
	}
	context, err := parseIntQueryDefault(r, "context", 2, 10)
	if err != nil {
		writeError(w, err)
		return
	}

	var relPath string
	err = s.db.QueryRowContext(r.Context(), `SELECT blob_uri FROM raw_block WHERE id = $1`, rawBlockID).Scan(&relPath)
	if err != nil {
		writeError(w, apierr.NotFound("raw block not found"))
		return
	}

	dec, err := rawblock.NewDecompressor(s.objectStore)
	if err != nil {
		writeError(w, err)
		return
	}
	lines, err := dec.Lines(relPath)
	if err != nil {
		writeError(w, err)
		return
	}
	if lineIndex < 0 || lineIndex >= len(lines) {
		writeError(w, apierr.NotFound("line index out of range"))
		return
	}

	start := max0(lineIndex - context)
	end := minLen(len(lines), lineIndex+context+1)
	writeJSON(w, http.StatusOK, evidenceOut{
		RawBlockID:    rawBlockID,
		LineIndex:     lineIndex,
		Line:          lines[lineIndex],
		ContextBefore: lines[start:lineIndex],
		ContextAfter:  lines[lineIndex+1 : end],
	})
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func minLen(a, b int) int {
	if a < b {
		return a
	}
	return b
}
