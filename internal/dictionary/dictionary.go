// Package dictionary interns the small, frequently-repeated vocabulary of
// an ingest job — event type keys, item names, container keys, player
// ids — into id-bearing lookup tables, memoized for the lifetime of a
// single ingest job so a transcript with millions of lines only costs a
// handful of lookups per distinct value.
package dictionary

import (
	"context"
	"database/sql"
	"strings"

	"go.chromium.org/luci/common/errors"
)

// Cache get-or-creates dictionary rows, memoizing results for the
// lifetime of one ingest job. It is not safe for concurrent use, nor
// intended to be: the job runner processes one job at a time.
type Cache struct {
	db *sql.DB

	eventTypes map[string]int64
	items      map[string]int64
	containers map[string]int64
	players    map[string]int64
}

// New creates an empty Cache over db, scoped to a single ingest job.
func New(db *sql.DB) *Cache {
	return &Cache{
		db:         db,
		eventTypes: make(map[string]int64),
		items:      make(map[string]int64),
		containers: make(map[string]int64),
		players:    make(map[string]int64),
	}
}

// EventTypeID returns the id of event type key, creating it if needed.
func (c *Cache) EventTypeID(ctx context.Context, key string) (int64, error) {
	return getOrCreate(ctx, c.db, c.eventTypes, key,
		`SELECT id FROM dict_event_type WHERE key = $1`,
		`INSERT INTO dict_event_type (key) VALUES ($1) ON CONFLICT (key) DO NOTHING RETURNING id`)
}

// ItemID returns the id of item name, creating it if needed.
func (c *Cache) ItemID(ctx context.Context, name string) (int64, error) {
	return getOrCreate(ctx, c.db, c.items, name,
		`SELECT id FROM dict_item WHERE name = $1`,
		`INSERT INTO dict_item (name) VALUES ($1) ON CONFLICT (name) DO NOTHING RETURNING id`)
}

// ContainerID returns the id of container key, creating it if needed. The
// owner_player_id column is derived once, at creation time, from the
// "portbagaj_<id>" naming convention used by the source game's personal
// vehicle trunks; it is left null for shared/world containers.
func (c *Cache) ContainerID(ctx context.Context, key string) (int64, error) {
	if id, ok := c.containers[key]; ok {
		return id, nil
	}
	id, err := queryID(ctx, c.db, `SELECT id FROM dict_container WHERE key = $1`, key)
	if err == nil {
		c.containers[key] = id
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, errors.Annotate(err, "look up container").Err()
	}

	owner := containerOwner(key)
	id, err = queryID(ctx, c.db, `
		INSERT INTO dict_container (key, owner_player_id) VALUES ($1, $2)
		ON CONFLICT (key) DO NOTHING RETURNING id`, key, owner)
	if err == sql.ErrNoRows {
		// Lost a create race: re-read the row the other writer committed.
		id, err = queryID(ctx, c.db, `SELECT id FROM dict_container WHERE key = $1`, key)
	}
	if err != nil {
		return 0, errors.Annotate(err, "create container").Err()
	}
	c.containers[key] = id
	return id, nil
}

// PlayerID returns the id of playerID, creating it if needed.
func (c *Cache) PlayerID(ctx context.Context, playerID string) (int64, error) {
	return getOrCreate(ctx, c.db, c.players, playerID,
		`SELECT id FROM dict_player WHERE player_id = $1`,
		`INSERT INTO dict_player (player_id) VALUES ($1) ON CONFLICT (player_id) DO NOTHING RETURNING id`)
}

const containerOwnerPrefix = "portbagaj_"

// containerOwner extracts the owning player id from a "portbagaj_<id>_..."
// container key: the second underscore-delimited field, not everything
// after the prefix.
func containerOwner(key string) *string {
	if !strings.HasPrefix(key, containerOwnerPrefix) {
		return nil
	}
	parts := strings.SplitN(key, "_", 3)
	if len(parts) < 2 || parts[1] == "" {
		return nil
	}
	owner := parts[1]
	return &owner
}

func getOrCreate(ctx context.Context, db *sql.DB, cache map[string]int64, key, selectQuery, insertQuery string) (int64, error) {
	if id, ok := cache[key]; ok {
		return id, nil
	}
	id, err := queryID(ctx, db, selectQuery, key)
	if err == nil {
		cache[key] = id
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, errors.Annotate(err, "look up dictionary row").Err()
	}

	id, err = queryID(ctx, db, insertQuery, key)
	if err == sql.ErrNoRows {
		// Another writer committed the row first; read it back once.
		id, err = queryID(ctx, db, selectQuery, key)
	}
	if err != nil {
		return 0, errors.Annotate(err, "create dictionary row").Err()
	}
	cache[key] = id
	return id, nil
}

func queryID(ctx context.Context, db *sql.DB, query string, args ...any) (int64, error) {
	var id int64
	err := db.QueryRowContext(ctx, query, args...).Scan(&id)
	return id, err
}
