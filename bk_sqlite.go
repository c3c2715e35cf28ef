package upchuk

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/bwmarrin/snowflake"
	"github.com/mattn/go-sqlite3"
)

type sqliteBackend struct {
	path    string
	db      *sql.DB
	snode   *snowflake.Node
	created bool
}

func init() {
	snowflake.Epoch = 1745020800000 // 2025/4/19 0:00:00 UTC
}

// SqliteOpen opens or creates the sqlite store. The node id is written to
// PRAGMA user_version on creation and must match on every later open.
func SqliteOpen(filename string, nodeId int64) (*sqliteBackend, error) {
	if nodeId < 0 || nodeId > 1023 {
		return nil, fmt.Errorf("%v is not a valid snowflake node id", nodeId)
	}
	_, err := os.Stat(filename)
	needInit := false
	if os.IsNotExist(err) {
		file, err := os.Create(filename)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", filename, err)
		}
		_ = file.Close()
		needInit = true
	} else if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, err
	}
	if needInit {
		if _, err = db.Exec(fmt.Sprintf("PRAGMA user_version = %d", nodeId)); err != nil {
			_ = db.Close()
			return nil, err
		}
		if err = createTables(db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	s := &sqliteBackend{path: filename, db: db, created: needInit}
	dbNodeId, err := s.getNodeId()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if dbNodeId != nodeId {
		_ = db.Close()
		return nil, fmt.Errorf("node id is not identical, expected %d, actually got %d", dbNodeId, nodeId)
	}
	s.snode, err = snowflake.NewNode(nodeId)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// SqliteOpenDir opens the sqlite store inside <baseDir>/upchuk.
func SqliteOpenDir(baseDir string, nodeId int64) (*sqliteBackend, error) {
	path, err := ResolvePath(baseDir, SqliteDbName)
	if err != nil {
		return nil, err
	}
	return SqliteOpen(path, nodeId)
}

func createTables(db *sql.DB) error {
	ddl := `CREATE TABLE url (
			"id" INTEGER NOT NULL PRIMARY KEY,
			"url" TEXT NOT NULL,
			"tag" TEXT,
			"date" TEXT NOT NULL);`
	_, err := db.Exec(ddl)
	return err
}

func (s *sqliteBackend) Append(rec *UrlRecord) error {
	query := `INSERT INTO url(id, url, tag, date) VALUES (?,?,?,?)`
	tag := sql.NullString{}
	if rec.Tag != nil {
		tag = sql.NullString{String: *rec.Tag, Valid: true}
	}
	var err error
	// another process on the same node id can hand out the same id
	for attempt := 0; attempt < 5; attempt++ {
		_, err = s.db.Exec(query, s.snode.Generate().Int64(), rec.Url, tag, rec.Date)
		var sqliteErr sqlite3.Error
		if !errors.As(err, &sqliteErr) || sqliteErr.ExtendedCode != sqlite3.ErrConstraintPrimaryKey {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("insert into %s: %w", s.path, err)
	}
	return nil
}

func (s *sqliteBackend) ReadAll() (*ReadReport, error) {
	rows, err := s.db.Query(`SELECT id, url, tag, date FROM url ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.path, err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)
	report := &ReadReport{Records: make([]UrlRecord, 0), Created: s.created}
	s.created = false
	line := 0
	for rows.Next() {
		line++
		var (
			id   int64
			url  string
			tag  sql.NullString
			date string
		)
		if err = rows.Scan(&id, &url, &tag, &date); err != nil {
			report.Skipped = append(report.Skipped, SkippedLine{Line: line, Err: fmt.Errorf("%w: %v", ErrMalformedRecord, err)})
			continue
		}
		if url == "" || date == "" {
			report.Skipped = append(report.Skipped, SkippedLine{
				Line: line,
				Raw:  snowflake.ID(id).String(),
				Err:  fmt.Errorf("%w: empty url or date", ErrMalformedRecord),
			})
			continue
		}
		rec := UrlRecord{Url: url, Date: date}
		if tag.Valid {
			t := tag.String
			rec.Tag = &t
		}
		report.Records = append(report.Records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return report, nil
}

func (s *sqliteBackend) Stamp() (string, error) {
	var (
		n     int64
		maxId sql.NullInt64
	)
	if err := s.db.QueryRow(`SELECT COUNT(*), MAX(id) FROM url`).Scan(&n, &maxId); err != nil {
		return "", fmt.Errorf("stamp %s: %w", s.path, err)
	}
	return fmt.Sprintf("%d:%d", n, maxId.Int64), nil
}

func (s *sqliteBackend) Path() string {
	return s.path
}

func (s *sqliteBackend) Close() error {
	return s.db.Close()
}

func (s *sqliteBackend) count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM url`).Scan(&n)
	return n, err
}

func (s *sqliteBackend) getNodeId() (int64, error) {
	row, err := s.db.Query(`PRAGMA user_version`)
	if err != nil {
		return 0, err
	}
	defer func(row *sql.Rows) {
		_ = row.Close()
	}(row)
	for row.Next() {
		var userVer int64
		err = row.Scan(&userVer)
		if err != nil {
			return 0, err
		}
		return userVer & 0x3ff, nil
	}
	return 0, nil
}
