package coverage

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// ErrNoCapture is returned when store does not have requested run.
var ErrNoCapture = errors.New("no captured coverage")

// startedLayout has fixed width so stored stamps sort as text.
const startedLayout = "2006-01-02T15:04:05.000000000Z"

const storeSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id      TEXT PRIMARY KEY,
	started TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS resources (
	id         INTEGER PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	page_url   TEXT NOT NULL,
	device     TEXT NOT NULL,
	source_url TEXT NOT NULL,
	file_name  TEXT NOT NULL,
	inline     INTEGER NOT NULL,
	text       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS resources_run ON resources(run_id, page_url, device);
CREATE TABLE IF NOT EXISTS ranges (
	resource_id INTEGER NOT NULL REFERENCES resources(id),
	start_offset INTEGER NOT NULL,
	end_offset   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS ranges_resource ON ranges(resource_id);
`

// Store persists captured reports so they could be reconstructed later
// without a browser. Not to be used concurrently.
type Store struct {
	conn *sqlite.Conn
	log  *zap.Logger
	now  func() time.Time
}

// OpenStore opens (creating if necessary) capture database at path.
func OpenStore(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite, sqlite.OpenCreate)
	if err != nil {
		return nil, fmt.Errorf("unable to open capture store (%s): %w", path, err)
	}
	if err := sqlitex.ExecuteScript(conn, storeSchema, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to prepare capture store (%s): %w", path, err)
	}
	return &Store{conn: conn, log: log.Named("store"), now: time.Now}, nil
}

func (s *Store) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Save stores reports under run id in a single transaction.
func (s *Store) Save(runID string, reports []Report) (err error) {
	defer sqlitex.Save(s.conn)(&err)

	err = sqlitex.Execute(s.conn, `INSERT OR IGNORE INTO runs (id, started) VALUES (?, ?)`,
		&sqlitex.ExecOptions{Args: []any{runID, s.now().UTC().Format(startedLayout)}})
	if err != nil {
		return fmt.Errorf("unable to register run: %w", err)
	}

	for _, rep := range reports {
		err = sqlitex.Execute(s.conn,
			`INSERT INTO resources (run_id, page_url, device, source_url, file_name, inline, text) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{runID, rep.PageURL, rep.Device,
				rep.Resource.SourceURL, rep.Resource.FileName, boolToInt(rep.Resource.Inline), rep.Resource.Text}})
		if err != nil {
			return fmt.Errorf("unable to store resource (%s): %w", rep.Resource.FileName, err)
		}
		id := s.conn.LastInsertRowID()
		for _, r := range rep.Ranges {
			err = sqlitex.Execute(s.conn, `INSERT INTO ranges (resource_id, start_offset, end_offset) VALUES (?, ?, ?)`,
				&sqlitex.ExecOptions{Args: []any{id, r.Start, r.End}})
			if err != nil {
				return fmt.Errorf("unable to store range %s of %s: %w", r, rep.Resource.FileName, err)
			}
		}
	}
	s.log.Debug("Coverage stored", zap.String("capture", runID), zap.Int("reports", len(reports)))
	return nil
}

// LatestRun returns id of the most recently started run, runs started at
// the same time are ordered by registration.
func (s *Store) LatestRun() (string, error) {
	var id string
	err := sqlitex.Execute(s.conn, `SELECT id FROM runs ORDER BY started DESC, rowid DESC LIMIT 1`,
		&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
			id = stmt.ColumnText(0)
			return nil
		}})
	if err != nil {
		return "", fmt.Errorf("unable to query runs: %w", err)
	}
	if id == "" {
		return "", ErrNoCapture
	}
	return id, nil
}

// Load returns reports captured for page under device during run, in the
// order they were stored.
func (s *Store) Load(runID, pageURL, device string) ([]Report, error) {
	var (
		reports []Report
		ids     []int64
	)
	err := sqlitex.Execute(s.conn,
		`SELECT id, source_url, file_name, inline, text FROM resources WHERE run_id = ? AND page_url = ? AND device = ? ORDER BY id`,
		&sqlitex.ExecOptions{
			Args: []any{runID, pageURL, device},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				ids = append(ids, stmt.ColumnInt64(0))
				reports = append(reports, Report{
					Resource: StyleResource{
						SourceURL: stmt.ColumnText(1),
						FileName:  stmt.ColumnText(2),
						Inline:    stmt.ColumnInt64(3) != 0,
						Text:      stmt.ColumnText(4),
					},
					Device:  device,
					PageURL: pageURL,
				})
				return nil
			}})
	if err != nil {
		return nil, fmt.Errorf("unable to query resources: %w", err)
	}
	if len(reports) == 0 {
		return nil, fmt.Errorf("%w: run %s, page %s, device %s", ErrNoCapture, runID, pageURL, device)
	}

	for i, id := range ids {
		err := sqlitex.Execute(s.conn, `SELECT start_offset, end_offset FROM ranges WHERE resource_id = ? ORDER BY start_offset`,
			&sqlitex.ExecOptions{
				Args: []any{id},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					reports[i].Ranges = append(reports[i].Ranges, Range{
						Start: int(stmt.ColumnInt64(0)),
						End:   int(stmt.ColumnInt64(1)),
					})
					return nil
				}})
		if err != nil {
			return nil, fmt.Errorf("unable to query ranges: %w", err)
		}
	}
	return reports, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
