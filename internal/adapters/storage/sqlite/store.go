// Package sqlite persists profiles, global effectiveness and transcripts in
// a single SQLite file. Sessions stay in memory or Redis.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/PabloGalante/farum-triage/internal/domain"
)

type Store struct {
	db *sql.DB

	// serializes read-modify-write of effectiveness rows
	mu sync.Mutex
}

var (
	_ domain.ProfileStore       = (*Store)(nil)
	_ domain.EffectivenessStore = (*Store)(nil)
	_ domain.MessageStore       = (*Store)(nil)
)

// NewStore opens (or creates) the database at path and ensures the schema.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewStoreFromDB wraps an existing *sql.DB.
func NewStoreFromDB(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			id         TEXT PRIMARY KEY,
			body       TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS global_effectiveness (
			key          TEXT PRIMARY KEY,
			uses         INTEGER NOT NULL DEFAULT 0,
			successes    INTEGER NOT NULL DEFAULT 0,
			total_rating REAL NOT NULL DEFAULT 0,
			recent       TEXT NOT NULL DEFAULT '[]'
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			id         TEXT NOT NULL UNIQUE,
			session_id TEXT NOT NULL,
			user_id    TEXT NOT NULL DEFAULT '',
			author     TEXT NOT NULL,
			text       TEXT NOT NULL,
			kind       TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, seq)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// Ping checks the connection, for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ---------- Profiles ----------

func (s *Store) GetProfile(ctx context.Context, id domain.UserID) (*domain.UserProfile, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM profiles WHERE id = ?`, string(id)).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite GetProfile: %w", err)
	}

	var p domain.UserProfile
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return nil, fmt.Errorf("sqlite GetProfile decode: %w", err)
	}
	if p.Effectiveness == nil {
		p.Effectiveness = make(map[domain.InterventionKey]domain.EffectivenessRecord)
	}
	return &p, nil
}

func (s *Store) PutProfile(ctx context.Context, p *domain.UserProfile) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("sqlite PutProfile encode: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO profiles (id, body, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		string(p.ID), string(body), p.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("sqlite PutProfile: %w", err)
	}
	return nil
}

func (s *Store) DeleteProfile(ctx context.Context, id domain.UserID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("sqlite DeleteProfile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

// ---------- Global effectiveness ----------

func (s *Store) GlobalEffectiveness(ctx context.Context) (map[domain.InterventionKey]domain.EffectivenessRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, uses, successes, total_rating, recent FROM global_effectiveness`)
	if err != nil {
		return nil, fmt.Errorf("sqlite GlobalEffectiveness: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.InterventionKey]domain.EffectivenessRecord)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out[rec.Key] = rec
	}
	return out, rows.Err()
}

func (s *Store) AddGlobalOutcome(ctx context.Context, key domain.InterventionKey, o domain.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite AddGlobalOutcome: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	rec := domain.EffectivenessRecord{Key: key}
	row := tx.QueryRowContext(ctx,
		`SELECT key, uses, successes, total_rating, recent FROM global_effectiveness WHERE key = ?`, string(key))
	switch got, err := scanRecord(row); {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return err
	default:
		rec = got
	}

	rec = rec.Apply(o)
	recent, err := json.Marshal(rec.Recent)
	if err != nil {
		return fmt.Errorf("sqlite AddGlobalOutcome encode: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO global_effectiveness (key, uses, successes, total_rating, recent) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET uses = excluded.uses, successes = excluded.successes,
		   total_rating = excluded.total_rating, recent = excluded.recent`,
		string(key), rec.Uses, rec.Successes, rec.TotalRating, string(recent))
	if err != nil {
		return fmt.Errorf("sqlite AddGlobalOutcome: %w", err)
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (domain.EffectivenessRecord, error) {
	var (
		rec    domain.EffectivenessRecord
		key    string
		recent string
	)
	if err := sc.Scan(&key, &rec.Uses, &rec.Successes, &rec.TotalRating, &recent); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("sqlite scan effectiveness: %w", err)
	}
	rec.Key = domain.InterventionKey(key)
	if err := json.Unmarshal([]byte(recent), &rec.Recent); err != nil {
		return rec, fmt.Errorf("sqlite decode recent outcomes: %w", err)
	}
	if len(rec.Recent) == 0 {
		rec.Recent = nil
	}
	return rec, nil
}

// ---------- Messages ----------

func (s *Store) AppendMessage(ctx context.Context, msg *domain.Message) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, session_id, user_id, author, text, kind, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(msg.ID), string(msg.SessionID), string(msg.UserID), string(msg.Author),
		msg.Text, msg.Kind, msg.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("sqlite AppendMessage: %w", err)
	}
	return nil
}

// GetMessagesBySession returns the last limit messages in append order.
// limit <= 0 returns all of them.
func (s *Store) GetMessagesBySession(ctx context.Context, sessionID domain.SessionID, limit int) ([]*domain.Message, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, user_id, author, text, kind, created_at FROM (
			SELECT * FROM messages WHERE session_id = ? ORDER BY seq DESC LIMIT ?
		 ) ORDER BY seq ASC`,
		string(sessionID), limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite GetMessagesBySession: %w", err)
	}
	defer rows.Close()

	var out []*domain.Message
	for rows.Next() {
		var m domain.Message
		var id, sid, uid, author, createdAt string
		if err := rows.Scan(&id, &sid, &uid, &author, &m.Text, &m.Kind, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite scan message: %w", err)
		}
		m.ID = domain.MessageID(id)
		m.SessionID = domain.SessionID(sid)
		m.UserID = domain.UserID(uid)
		m.Author = domain.Role(author)
		m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (s *Store) DeleteSessionMessages(ctx context.Context, sessionID domain.SessionID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, string(sessionID)); err != nil {
		return fmt.Errorf("sqlite DeleteSessionMessages: %w", err)
	}
	return nil
}
