// Package journal keeps a queryable SQLite index of accepted mutations
// (creates, edits, deletes). Writes go through a single writer goroutine with
// batched transactions so the domain loop never blocks on disk; the edit log
// JSONL remains the source of truth and this index may drop rows under
// pressure.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/RyanDowne/hifi/internal/sim/domain"
)

type Store struct {
	db *sql.DB

	ch   chan domain.JournalEdit
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		db: db,
		// High buffer: edit storms (a bot dragging an entity every frame)
		// must not stall the domain loop.
		ch: make(chan domain.JournalEdit, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads; NORMAL is a decent
	// durability/perf tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS edits (
			seq INTEGER PRIMARY KEY,
			received_usec INTEGER NOT NULL,
			op TEXT NOT NULL,
			session_id TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			flags INTEGER NOT NULL,
			blob_bytes INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_edits_entity_seq ON edits(entity_id, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_edits_session_seq ON edits(session_id, seq);`,
		`CREATE TABLE IF NOT EXISTS archives (
			written_usec INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			entities INTEGER NOT NULL
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// WriteEdit queues one accepted edit for indexing. Never blocks; rows are
// dropped if the writer falls behind.
func (s *Store) WriteEdit(e domain.JournalEdit) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- e:
	default:
	}
	return nil
}

func (s *Store) loop() {
	ctx := context.Background()

	insert, _ := s.db.Prepare(`INSERT OR REPLACE INTO edits(seq,received_usec,op,session_id,entity_id,entity_type,flags,blob_bytes) VALUES(?,?,?,?,?,?,?,?)`)
	defer func() {
		if insert != nil {
			_ = insert.Close()
		}
	}()

	// seq continues from the last run so restarts keep a single ordering
	var seq int64
	_ = s.db.QueryRow(`SELECT COALESCE(MAX(seq),0) FROM edits`).Scan(&seq)

	var (
		tx          *sql.Tx
		opCount     int
		commitEvery = 2000
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
	}

	// An open transaction holds the sole connection and every reader on
	// this db blocks behind it, so idle batches must commit on a timer.
	flush := time.NewTicker(2 * time.Second)
	defer flush.Stop()

	for {
		select {
		case e, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			begin()
			if tx == nil || insert == nil {
				continue
			}
			seq++
			if _, err := tx.Stmt(insert).Exec(
				seq,
				int64(e.ReceivedUsec),
				e.Op,
				e.SessionID,
				e.EntityID.String(),
				e.EntityType,
				int64(e.Flags),
				e.BlobBytes,
			); err != nil {
				seq--
				rollback()
				continue
			}
			opCount++
			if opCount >= commitEvery {
				commit()
			}
		case <-flush.C:
			commit()
		}
	}
}

// RecordArchive indexes one written archive. Called from the archive writer
// goroutine on its own cadence, so a plain synchronous insert is fine here.
func (s *Store) RecordArchive(writtenUsec uint64, path string, entities int) error {
	if s == nil {
		return nil
	}
	_, err := s.db.Exec(`INSERT OR REPLACE INTO archives(written_usec,path,entities) VALUES(?,?,?)`,
		int64(writtenUsec), path, entities)
	return err
}

// ArchiveRow is one indexed archive as stored.
type ArchiveRow struct {
	WrittenUsec uint64
	Path        string
	Entities    int
}

// Archives returns indexed archives, newest first.
func (s *Store) Archives(ctx context.Context, limit int) ([]ArchiveRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT written_usec,path,entities FROM archives ORDER BY written_usec DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ArchiveRow
	for rows.Next() {
		var (
			r       ArchiveRow
			written int64
		)
		if err := rows.Scan(&written, &r.Path, &r.Entities); err != nil {
			return nil, err
		}
		r.WrittenUsec = uint64(written)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Row is one indexed edit as stored.
type Row struct {
	Seq          int64
	ReceivedUsec uint64
	Op           string
	SessionID    string
	EntityID     uuid.UUID
	EntityType   string
	Flags        uint64
	BlobBytes    int
}

// EditsForEntity returns an entity's indexed edits in arrival order. With the
// single connection a read can wait out an in-flight writer batch, so this is
// for tools and tests, not the hot path.
func (s *Store) EditsForEntity(ctx context.Context, id uuid.UUID, limit int) ([]Row, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq,received_usec,op,session_id,entity_id,entity_type,flags,blob_bytes
		 FROM edits WHERE entity_id=? ORDER BY seq LIMIT ?`, id.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

// RecentEdits returns the newest indexed edits, newest first.
func (s *Store) RecentEdits(ctx context.Context, limit int) ([]Row, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq,received_usec,op,session_id,entity_id,entity_type,flags,blob_bytes
		 FROM edits ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

// EditCount reports the number of indexed edits.
func (s *Store) EditCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM edits`).Scan(&n)
	return n, err
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	var out []Row
	for rows.Next() {
		var (
			r        Row
			received int64
			entityID string
			flags    int64
		)
		if err := rows.Scan(&r.Seq, &received, &r.Op, &r.SessionID, &entityID, &r.EntityType, &flags, &r.BlobBytes); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(entityID)
		if err != nil {
			return nil, fmt.Errorf("edit row %d: %w", r.Seq, err)
		}
		r.ReceivedUsec = uint64(received)
		r.EntityID = id
		r.Flags = uint64(flags)
		out = append(out, r)
	}
	return out, rows.Err()
}
