package catalog

import (
	"database/sql"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// FlareRow is the persisted metadata for one flare, per spec.md §3
// Flare's commit fields and §4.3 load()'s "(type, commit_path,
// commit_time, uid, gid)".
type FlareRow struct {
	Hash       string `db:"hash"`
	Path       string `db:"path"`
	ParentHash string `db:"parent_hash"`
	Type       string `db:"type"`
	CommitPath string `db:"commit_path"`
	CommitTime int64  `db:"commit_time"`
	CommitURL  string `db:"commit_url"`
	UID        uint32 `db:"uid"`
	GID        uint32 `db:"gid"`
}

// NodeRow is the persisted profile for one volcano (spec.md §4.9
// "persists both node rows", §6 DHT profile directory fields).
type NodeRow struct {
	Nickname  string `db:"nickname"`
	FQDN      string `db:"fqdn"`
	IPAddr    string `db:"ip_addr"`
	Port      uint16 `db:"port"`
	Bandwidth uint32 `db:"bandwidth"`
	Storage   uint32 `db:"storage"`
	StartKey  string `db:"start_key"`
	StopKey   string `db:"stop_key"`
}

const schema = `
CREATE TABLE IF NOT EXISTS flares (
	hash        TEXT PRIMARY KEY,
	path        TEXT NOT NULL,
	parent_hash TEXT NOT NULL,
	type        TEXT NOT NULL,
	commit_path TEXT NOT NULL DEFAULT '',
	commit_time INTEGER NOT NULL DEFAULT 0,
	commit_url  TEXT NOT NULL DEFAULT '',
	uid         INTEGER NOT NULL DEFAULT 0,
	gid         INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_flares_parent_hash ON flares(parent_hash);

CREATE TABLE IF NOT EXISTS nodes (
	nickname  TEXT PRIMARY KEY,
	fqdn      TEXT NOT NULL,
	ip_addr   TEXT NOT NULL,
	port      INTEGER NOT NULL,
	bandwidth INTEGER NOT NULL,
	storage   INTEGER NOT NULL,
	start_key TEXT NOT NULL,
	stop_key  TEXT NOT NULL
);
`

// Catalog serializes all access through a single mutex, per spec.md §5
// "SQL catalog handle: serialized by a catalog mutex" — sqlite's own
// single-writer model makes this a correctness requirement, not just a
// style choice inherited from the source.
type Catalog struct {
	mu sync.Mutex
	db *sqlx.DB
}

// Open opens (creating if absent) the catalog file at path and ensures
// the schema exists.
func Open(path string) (*Catalog, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open catalog %s", path)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, errors.Wrap(err, "apply catalog schema")
	}
	return &Catalog{db: db}, nil
}

// Close releases the underlying database handle.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// InsertFlare inserts (first_time) or replaces a flare's metadata row,
// per spec.md §4.3 save().
func (c *Catalog) InsertFlare(row FlareRow) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.db.NamedExec(`
		INSERT INTO flares (hash, path, parent_hash, type, commit_path, commit_time, commit_url, uid, gid)
		VALUES (:hash, :path, :parent_hash, :type, :commit_path, :commit_time, :commit_url, :uid, :gid)
		ON CONFLICT(hash) DO UPDATE SET
			path=excluded.path, parent_hash=excluded.parent_hash, type=excluded.type,
			uid=excluded.uid, gid=excluded.gid
	`, row)
	return errors.Wrap(err, "insert flare row")
}

// GetFlareByHash loads metadata for hash, per spec.md §4.3 load().
func (c *Catalog) GetFlareByHash(hash string) (FlareRow, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var row FlareRow
	err := c.db.Get(&row, `SELECT * FROM flares WHERE hash = ?`, hash)
	if err != nil {
		return FlareRow{}, errors.Wrapf(err, "get flare %s", hash)
	}
	return row, nil
}

// DeleteFlare removes a flare's metadata row, per spec.md §4.3 erase().
func (c *Catalog) DeleteFlare(hash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.db.Exec(`DELETE FROM flares WHERE hash = ?`, hash)
	return errors.Wrap(err, "delete flare row")
}

// CountByParent returns the number of flares whose parent_hash is
// parentHash.
func (c *Catalog) CountByParent(parentHash string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int
	err := c.db.Get(&n, `SELECT COUNT(*) FROM flares WHERE parent_hash = ?`, parentHash)
	return n, errors.Wrap(err, "count by parent")
}

// CountAll returns the total number of flare rows in this catalog. The
// balancer's total_keys refresh counts only its own interval, through
// CountHashRange.
func (c *Catalog) CountAll() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int
	err := c.db.Get(&n, `SELECT COUNT(*) FROM flares`)
	return n, errors.Wrap(err, "count all")
}

// UpsertNode persists a volcano's profile row, per spec.md §4.9
// "persists both node rows" and §4.11 "persist self's node profile
// row."
func (c *Catalog) UpsertNode(row NodeRow) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.db.NamedExec(`
		INSERT INTO nodes (nickname, fqdn, ip_addr, port, bandwidth, storage, start_key, stop_key)
		VALUES (:nickname, :fqdn, :ip_addr, :port, :bandwidth, :storage, :start_key, :stop_key)
		ON CONFLICT(nickname) DO UPDATE SET
			fqdn=excluded.fqdn, ip_addr=excluded.ip_addr, port=excluded.port,
			bandwidth=excluded.bandwidth, storage=excluded.storage,
			start_key=excluded.start_key, stop_key=excluded.stop_key
	`, row)
	return errors.Wrap(err, "upsert node row")
}

// LoadNodes returns every persisted node row, in start-key order, used
// by coordinated-reboot (spec.md §4.9 "After loading the stored ring").
func (c *Catalog) LoadNodes() ([]NodeRow, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var rows []NodeRow
	err := c.db.Select(&rows, `SELECT * FROM nodes ORDER BY start_key`)
	return rows, errors.Wrap(err, "load nodes")
}

// MaxHash returns the lexicographically highest stored flare hash and
// whether this node has any flares at all. Used by membership's
// join_network to compute a joining node's new start key as one past
// everything this node already has on disk — so the range handed to a
// joiner is, by construction, empty at handoff time (spec.md §4.9; see
// vulcano.c's magma_get_highest_used_key, which scans the hashpath
// directory for the same purpose).
func (c *Catalog) MaxHash() (hash string, ok bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	err = c.db.Get(&hash, `SELECT hash FROM flares ORDER BY hash DESC LIMIT 1`)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, errors.Wrap(err, "max hash")
	}
	return hash, true, nil
}

// ListHashRange returns every flare row whose hash falls within
// [start, stop] inclusive, ordered by hash. Used by membership's
// join-time keyspace streaming (spec.md §4.9 finish_join_network): the
// rows owned by a node's narrowed interval are exactly the ones whose
// hash now belongs to the joiner.
func (c *Catalog) ListHashRange(start, stop string) ([]FlareRow, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var rows []FlareRow
	err := c.db.Select(&rows, `SELECT * FROM flares WHERE hash >= ? AND hash <= ? ORDER BY hash`, start, stop)
	return rows, errors.Wrap(err, "list hash range")
}

// CountHashRange returns the number of flare rows whose hash falls
// within [start, stop] inclusive, used by the balancer's total_keys
// refresh (spec.md §4.11 — the source's equivalent query is `select
// count(*) from flare_<node> where hash >= start and hash <= stop`).
func (c *Catalog) CountHashRange(start, stop string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int
	err := c.db.Get(&n, `SELECT COUNT(*) FROM flares WHERE hash >= ? AND hash <= ?`, start, stop)
	return n, errors.Wrap(err, "count hash range")
}

// Now is a seam for tests; production code always uses time.Now.
var Now = time.Now
