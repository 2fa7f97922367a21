package httpapi

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"go.chromium.org/luci/common/errors"

	"github.com/xpnow/bugpanel/internal/apierr"
)

// search answers ?q=..., a case-insensitive substring match against
// known player ids and aliases, each capped at 20 results.
func (s *Server) search(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := r.URL.Query().Get("q")
	if len(q) < 2 {
		writeError(w, apierr.Validation("q must be at least 2 characters"))
		return
	}
	pattern := "%" + q + "%"

	players, err := queryStrings(r, s, `
		SELECT player_id FROM dict_player WHERE player_id ILIKE $1 LIMIT 20`, pattern)
	if err != nil {
		writeError(w, err)
		return
	}
	aliases, err := queryStrings(r, s, `
		SELECT alias FROM dict_alias WHERE alias ILIKE $1 LIMIT 20`, pattern)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string][]string{
		"players": players,
		"aliases": aliases,
	})
}

func queryStrings(r *http.Request, s *Server, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(r.Context(), query, args...)
	if err != nil {
		return nil, errors.Annotate(err, "search query").Err()
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, errors.Annotate(err, "scan search result").Err()
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
