package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/xpnow/bugpanel/internal/apierr"
	"github.com/xpnow/bugpanel/internal/reportpack"
)

type createReportPackRequest struct {
	Name    string             `json:"name"`
	Filters reportpack.Filters `json:"filters"`
}

func (s *Server) createReportPack(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req createReportPackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apierr.Validation("invalid request body"))
		return
	}
	if req.Name == "" {
		writeError(w, apierr.Validation("name is required"))
		return
	}
	pack, err := s.packs.Create(r.Context(), req.Name, req.Filters)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pack)
}

func (s *Server) listReportPacks(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	packs, err := s.packs.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, packs)
}

func (s *Server) getReportPack(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	pack, err := s.packs.Get(r.Context(), ps.ByName("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pack)
}
