package httpapi

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"go.chromium.org/luci/common/errors"

	"github.com/xpnow/bugpanel/internal/apierr"
)

// eventOut is the JSON shape returned for a single event, joined against
// its dictionary rows so callers never see raw foreign-key ids.
type eventOut struct {
	ID                int64      `json:"id"`
	OccurredAt        *string    `json:"occurred_at"`
	OccurredAtQuality string     `json:"occurred_at_quality"`
	EventType         string     `json:"event_type"`
	SrcPlayerID       *string    `json:"src_player_id"`
	DstPlayerID       *string    `json:"dst_player_id"`
	Item              *string    `json:"item"`
	Container         *string    `json:"container"`
	Money             *int64     `json:"money"`
	Qty               *int64     `json:"qty"`
	RawBlockID        string     `json:"raw_block_id"`
	RawLineIndex      int        `json:"raw_line_index"`
}

const eventSelect = `
	SELECT e.id, e.occurred_at, e.occurred_at_quality, et.key,
		sp.player_id, dp.player_id, di.name, dc.key, e.money, e.qty,
		e.raw_block_id, e.raw_line_index
	FROM event e
	JOIN dict_event_type et ON et.id = e.event_type_id
	LEFT JOIN dict_player sp ON sp.id = e.src_player_id
	LEFT JOIN dict_player dp ON dp.id = e.dst_player_id
	LEFT JOIN dict_item di ON di.id = e.item_id
	LEFT JOIN dict_container dc ON dc.id = e.container_id`

func scanEventOut(row interface{ Scan(dest ...any) error }) (*eventOut, error) {
	var e eventOut
	var occurredAt *string
	err := row.Scan(&e.ID, &occurredAt, &e.OccurredAtQuality, &e.EventType,
		&e.SrcPlayerID, &e.DstPlayerID, &e.Item, &e.Container, &e.Money, &e.Qty,
		&e.RawBlockID, &e.RawLineIndex)
	if err != nil {
		return nil, err
	}
	e.OccurredAt = occurredAt
	return &e, nil
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, err := parseLimit(r, 100, 500)
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := parseOffset(r)
	if err != nil {
		writeError(w, err)
		return
	}
	start, err := parseTimeParam(r, "start")
	if err != nil {
		writeError(w, err)
		return
	}
	end, err := parseTimeParam(r, "end")
	if err != nil {
		writeError(w, err)
		return
	}

	query := eventSelect + " WHERE 1 = 1"
	var args []any
	argN := 0
	next := func(v any) string {
		argN++
		args = append(args, v)
		return "$" + strconv.Itoa(argN)
	}
	if eventType := r.URL.Query().Get("event_type"); eventType != "" {
		query += " AND et.key = " + next(eventType)
	}
	if playerID := r.URL.Query().Get("player_id"); playerID != "" {
		ph := next(playerID)
		query += " AND (sp.player_id = " + ph + " OR dp.player_id = " + ph + ")"
	}
	if start != nil {
		query += " AND e.occurred_at >= " + next(*start)
	}
	if end != nil {
		query += " AND e.occurred_at <= " + next(*end)
	}
	query += " ORDER BY e.created_at DESC OFFSET " + next(offset) + " LIMIT " + next(limit)

	rows, err := s.db.QueryContext(r.Context(), query, args...)
	if err != nil {
		writeError(w, errors.Annotate(err, "query events").Err())
		return
	}
	defer rows.Close()

	events := []*eventOut{}
	for rows.Next() {
		e, err := scanEventOut(rows)
		if err != nil {
			writeError(w, errors.Annotate(err, "scan event").Err())
			return
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		writeError(w, errors.Annotate(err, "iterate events").Err())
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) getEvent(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := strconv.ParseInt(ps.ByName("id"), 10, 64)
	if err != nil {
		writeError(w, apierr.Validation("id must be an integer"))
		return
	}
	row := s.db.QueryRowContext(r.Context(), eventSelect+" WHERE e.id = $1", id)
	e, err := scanEventOut(row)
	if err == sql.ErrNoRows {
		writeError(w, apierr.NotFound("event not found"))
		return
	}
	if err != nil {
		writeError(w, errors.Annotate(err, "scan event").Err())
		return
	}
	writeJSON(w, http.StatusOK, e)
}
