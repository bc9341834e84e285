// Package localdb is the embedded relational store that mirrors catalog and
// seed data locally. The live database is a SQLite file in a working directory;
// durable state is a full snapshot of that file kept in a storage.Sink and
// rewritten after every change.
package localdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	_ "modernc.org/sqlite"

	"muhuratai/pkg/auth"
	"muhuratai/pkg/storage"
)

// SnapshotKey is the fixed sink key of the store snapshot.
const SnapshotKey = "muhurat-localdb.sqlite"

const liveFile = "live.sqlite"

var (
	ErrUnknownTable  = errors.New("unknown table")
	ErrUnknownColumn = errors.New("unknown column")
	ErrNotFound      = errors.New("row not found")
	ErrInvalidValue  = errors.New("invalid column value")
)

// Options configures Open.
type Options struct {
	// Sink holds the durable snapshot. Nil keeps the store in the working directory only.
	Sink storage.Sink
	// Dir is the working directory of the live database. Empty uses a private temp dir.
	Dir    string
	Tables []Table
	// Seeds defaults to DefaultSeeds when nil.
	Seeds map[string][]Row
	// SeedPassword, when set, is hashed into password_hash of seeded users.
	SeedPassword string
	Logger       *slog.Logger
}

// Store is an open embedded store. It is safe for concurrent use.
type Store struct {
	db           *sql.DB
	dir          string
	ownsDir      bool
	sink         storage.Sink
	tables       []Table
	byName       map[string]Table
	seeds        map[string][]Row
	seedPassword string
	logger       *slog.Logger
	exportSem    *semaphore.Weighted
}

// Open restores the store from its snapshot. A missing or unreadable snapshot
// yields an empty store. Call Bootstrap before use.
func Open(ctx context.Context, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tables := opts.Tables
	if len(tables) == 0 {
		tables = DefaultTables()
	}
	byName := make(map[string]Table, len(tables))
	for _, t := range tables {
		if err := t.validate(); err != nil {
			return nil, err
		}
		if _, dup := byName[t.Name]; dup {
			return nil, fmt.Errorf("duplicate table %q", t.Name)
		}
		byName[t.Name] = t
	}
	seeds := opts.Seeds
	if seeds == nil {
		seeds = DefaultSeeds()
	}
	if opts.SeedPassword != "" {
		if err := auth.ValidatePassword(opts.SeedPassword); err != nil {
			return nil, fmt.Errorf("seed password: %w", err)
		}
	}

	dir, ownsDir := opts.Dir, false
	if strings.TrimSpace(dir) == "" {
		tmp, err := os.MkdirTemp("", "muhurat-localdb-*")
		if err != nil {
			return nil, fmt.Errorf("create work dir: %w", err)
		}
		dir, ownsDir = tmp, true
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}

	s := &Store{
		dir:          dir,
		ownsDir:      ownsDir,
		sink:         opts.Sink,
		tables:       tables,
		byName:       byName,
		seeds:        seeds,
		seedPassword: opts.SeedPassword,
		logger:       logger.With("component", "localdb"),
		exportSem:    semaphore.NewWeighted(1),
	}
	db, err := s.restore(ctx)
	if err != nil {
		s.cleanup()
		return nil, err
	}
	s.db = db
	return s, nil
}

func (s *Store) livePath() string {
	return filepath.Join(s.dir, liveFile)
}

func (s *Store) restore(ctx context.Context) (*sql.DB, error) {
	path := s.livePath()
	removeDBFiles(path)

	restored := false
	if s.sink != nil {
		data, err := s.sink.Load(ctx, SnapshotKey)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			s.logger.Info("no snapshot found, starting empty")
		case err != nil:
			s.logger.Warn("load snapshot failed, starting empty", "err", err)
		default:
			if err := os.WriteFile(path, data, 0o600); err != nil {
				return nil, fmt.Errorf("write live database: %w", err)
			}
			restored = true
		}
	}

	db, err := openDB(ctx, path)
	if err == nil || !restored {
		return db, err
	}
	s.logger.Warn("snapshot unreadable, starting empty", "err", err)
	removeDBFiles(path)
	return openDB(ctx, path)
}

func openDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	var n int
	if err := db.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master").Scan(&n); err != nil {
		db.Close()
		return nil, fmt.Errorf("read database: %w", err)
	}
	return db, nil
}

func removeDBFiles(path string) {
	for _, p := range []string{path, path + "-wal", path + "-shm", path + "-journal"} {
		_ = os.Remove(p)
	}
}

// Close releases the live database. The snapshot in the sink is left as is.
func (s *Store) Close() error {
	var err error
	if s.db != nil {
		err = s.db.Close()
	}
	s.cleanup()
	return err
}

func (s *Store) cleanup() {
	if s.ownsDir {
		_ = os.RemoveAll(s.dir)
	}
}

// Tables returns the declared table names in declaration order.
func (s *Store) Tables() []string {
	out := make([]string, 0, len(s.tables))
	for _, t := range s.tables {
		out = append(out, t.Name)
	}
	return out
}

func (s *Store) table(name string) (Table, error) {
	t, ok := s.byName[name]
	if !ok {
		return Table{}, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	return t, nil
}

// Columns returns the physical column names of a table.
func (s *Store) Columns(ctx context.Context, table string) ([]string, error) {
	if _, err := s.table(table); err != nil {
		return nil, err
	}
	cols, err := s.existingColumns(ctx, table)
	if err != nil {
		return nil, err
	}
	return cols, nil
}

func (s *Store) existingColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()
	var cols []string
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan table info %s: %w", table, err)
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

// Count returns the number of rows in a table.
func (s *Store) Count(ctx context.Context, table string) (int, error) {
	if _, err := s.table(table); err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT count(*) FROM %s", table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// Rows returns up to limit rows ordered by id. A limit <= 0 returns all rows.
func (s *Store) Rows(ctx context.Context, table string, limit, offset int) ([]Row, error) {
	t, err := s.table(table)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY id LIMIT ? OFFSET ?", selectList(t), t.Name)
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()
	out := make([]Row, 0)
	for rows.Next() {
		row, err := scanRow(rows, t)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Get returns one row by id.
func (s *Store) Get(ctx context.Context, table, id string) (Row, error) {
	t, err := s.table(table)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", selectList(t), t.Name)
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return scanRow(rows, t)
}

func selectList(t Table) string {
	names := make([]string, 0, len(t.Columns)+1)
	names = append(names, "id")
	for _, c := range t.Columns {
		names = append(names, c.Name)
	}
	return strings.Join(names, ", ")
}

func scanRow(rows *sql.Rows, t Table) (Row, error) {
	values := make([]any, len(t.Columns)+1)
	ptrs := make([]any, len(values))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scan %s: %w", t.Name, err)
	}
	row := Row{"id": decodeValue(Text, values[0])}
	for i, c := range t.Columns {
		row[c.Name] = decodeValue(c.Type, values[i+1])
	}
	return row, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Insert adds a row and persists a snapshot. A missing id is generated.
func (s *Store) Insert(ctx context.Context, table string, row Row) (string, error) {
	t, err := s.table(table)
	if err != nil {
		return "", err
	}
	id, err := insertRow(ctx, s.db, t, row)
	if err != nil {
		return "", err
	}
	if err := s.persist(ctx); err != nil {
		return id, err
	}
	return id, nil
}

func insertRow(ctx context.Context, ex execer, t Table, row Row) (string, error) {
	id, _ := row["id"].(string)
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}
	names := sortedKeys(row)
	cols := []string{"id"}
	args := []any{id}
	for _, name := range names {
		if name == "id" {
			continue
		}
		col, ok := t.column(name)
		if !ok {
			return "", fmt.Errorf("%w: %s.%s", ErrUnknownColumn, t.Name, name)
		}
		v, err := encodeValue(col.Type, row[name])
		if err != nil {
			return "", fmt.Errorf("%w: %s.%s: %v", ErrInvalidValue, t.Name, name, err)
		}
		cols = append(cols, name)
		args = append(args, v)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.Name, strings.Join(cols, ", "), placeholders)
	if _, err := ex.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("insert %s: %w", t.Name, err)
	}
	return id, nil
}

// Update sets fields on the row with the given id and persists a snapshot.
func (s *Store) Update(ctx context.Context, table, id string, fields Row) error {
	t, err := s.table(table)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return fmt.Errorf("no fields to update")
	}
	names := sortedKeys(fields)
	sets := make([]string, 0, len(names))
	args := make([]any, 0, len(names)+1)
	for _, name := range names {
		if name == "id" {
			return fmt.Errorf("id cannot be updated")
		}
		col, ok := t.column(name)
		if !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, t.Name, name)
		}
		v, err := encodeValue(col.Type, fields[name])
		if err != nil {
			return fmt.Errorf("%w: %s.%s: %v", ErrInvalidValue, t.Name, name, err)
		}
		sets = append(sets, name+" = ?")
		args = append(args, v)
	}
	args = append(args, id)
	res, err := s.db.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", t.Name, strings.Join(sets, ", ")), args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", t.Name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return s.persist(ctx)
}

func sortedKeys(row Row) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot exports the live database as one binary blob.
func (s *Store) Snapshot(ctx context.Context) ([]byte, error) {
	if err := s.exportSem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.exportSem.Release(1)
	return s.export(ctx)
}

// persist writes a full snapshot to the sink. At most one export runs at a time.
func (s *Store) persist(ctx context.Context) error {
	if s.sink == nil {
		return nil
	}
	if err := s.exportSem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.exportSem.Release(1)
	data, err := s.export(ctx)
	if err != nil {
		return err
	}
	if err := s.sink.Save(ctx, SnapshotKey, data); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	s.logger.Debug("snapshot persisted", "bytes", len(data))
	return nil
}

func (s *Store) export(ctx context.Context) ([]byte, error) {
	f, err := os.CreateTemp(s.dir, "export-*.sqlite")
	if err != nil {
		return nil, fmt.Errorf("create export file: %w", err)
	}
	name := f.Name()
	f.Close()
	// VACUUM INTO refuses to overwrite an existing file.
	_ = os.Remove(name)
	defer os.Remove(name)
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", name); err != nil {
		return nil, fmt.Errorf("export database: %w", err)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	return data, nil
}
