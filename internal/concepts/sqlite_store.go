package concepts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/ppiankov/aclarai/internal/model"
)

const candidateSchema = `
CREATE TABLE IF NOT EXISTS concept_candidates (
	id               TEXT PRIMARY KEY,
	text             TEXT NOT NULL,
	normalized_text  TEXT NOT NULL,
	source_node_id   TEXT NOT NULL,
	source_node_type TEXT NOT NULL,
	aclarai_id       TEXT NOT NULL DEFAULT '',
	embedding        TEXT,
	status           TEXT NOT NULL DEFAULT 'pending',
	concept_id       TEXT NOT NULL DEFAULT '',
	created_at       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_candidates_status ON concept_candidates(status);
CREATE INDEX IF NOT EXISTS idx_candidates_source ON concept_candidates(source_node_id);
`

// candidateRow is the table layout; embeddings are JSON arrays and times unix nanoseconds
type candidateRow struct {
	ID             string         `db:"id"`
	Text           string         `db:"text"`
	NormalizedText string         `db:"normalized_text"`
	SourceNodeID   string         `db:"source_node_id"`
	SourceNodeType string         `db:"source_node_type"`
	AclaraiID      string         `db:"aclarai_id"`
	Embedding      sql.NullString `db:"embedding"`
	Status         string         `db:"status"`
	ConceptID      string         `db:"concept_id"`
	CreatedAt      int64          `db:"created_at"`
}

func toRow(c model.NounPhraseCandidate) (candidateRow, error) {
	r := candidateRow{
		ID:             c.ID,
		Text:           c.Text,
		NormalizedText: c.NormalizedText,
		SourceNodeID:   c.SourceNodeID,
		SourceNodeType: string(c.SourceNodeType),
		AclaraiID:      c.AclaraiID,
		Status:         string(c.Status),
		ConceptID:      c.ConceptID,
		CreatedAt:      c.Timestamp.UnixNano(),
	}
	if r.Status == "" {
		r.Status = string(model.StatusPending)
	}
	if c.Embedding != nil {
		b, err := json.Marshal(c.Embedding)
		if err != nil {
			return r, fmt.Errorf("encode embedding: %w", err)
		}
		r.Embedding = sql.NullString{String: string(b), Valid: true}
	}
	return r, nil
}

func (r candidateRow) candidate() (model.NounPhraseCandidate, error) {
	c := model.NounPhraseCandidate{
		ID:             r.ID,
		Text:           r.Text,
		NormalizedText: r.NormalizedText,
		SourceNodeID:   r.SourceNodeID,
		SourceNodeType: model.SourceNodeType(r.SourceNodeType),
		AclaraiID:      r.AclaraiID,
		Status:         model.CandidateStatus(r.Status),
		ConceptID:      r.ConceptID,
		Timestamp:      time.Unix(0, r.CreatedAt).UTC(),
	}
	if r.Embedding.Valid {
		if err := json.Unmarshal([]byte(r.Embedding.String), &c.Embedding); err != nil {
			return c, fmt.Errorf("decode embedding of %s: %w", r.ID, err)
		}
	}
	return c, nil
}

// SQLiteStore persists candidates in a SQLite file
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) the database at path. ":memory:" gives a private in-memory store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if strings.HasPrefix(path, "~/") {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("resolve home: %w", err)
			}
			path = filepath.Join(home, path[2:])
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open candidate store: %w", err)
	}
	// One connection: keeps ":memory:" a single database and serializes writers
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping candidate store: %w", err)
	}
	if _, err := db.Exec(candidateSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate candidate store: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Store(ctx context.Context, candidates []model.NounPhraseCandidate) (int, error) {
	if len(candidates) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin store: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `
		INSERT OR IGNORE INTO concept_candidates
			(id, text, normalized_text, source_node_id, source_node_type, aclarai_id, embedding, status, concept_id, created_at)
		VALUES
			(:id, :text, :normalized_text, :source_node_id, :source_node_type, :aclarai_id, :embedding, :status, :concept_id, :created_at)
	`
	n := 0
	for _, c := range candidates {
		row, err := toRow(c)
		if err != nil {
			return 0, err
		}
		res, err := tx.NamedExecContext(ctx, query, row)
		if err != nil {
			return 0, fmt.Errorf("insert candidate %s: %w", c.ID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		n += int(affected)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit store: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.NounPhraseCandidate, error) {
	var row candidateRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM concept_candidates WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	c, err := row.candidate()
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, id string, status model.CandidateStatus, conceptID string) error {
	if err := checkTarget(id, status); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE concept_candidates SET status = ?, concept_id = ? WHERE id = ? AND status = ?`,
		string(status), conceptID, id, string(model.StatusPending))
	if err != nil {
		return fmt.Errorf("update %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	var current string
	err = s.db.GetContext(ctx, &current, `SELECT status FROM concept_candidates WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", id, err)
	}
	return fmt.Errorf("candidate %s already %s: %w", id, current, ErrInvalidTransition)
}

func (s *SQLiteStore) ListIndexable(ctx context.Context) ([]model.NounPhraseCandidate, error) {
	var rows []candidateRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM concept_candidates
		WHERE embedding IS NOT NULL AND status IN (?, ?)
		ORDER BY created_at, id`,
		string(model.StatusPending), string(model.StatusPromoted))
	if err != nil {
		return nil, fmt.Errorf("list indexable: %w", err)
	}
	out := make([]model.NounPhraseCandidate, 0, len(rows))
	for _, r := range rows {
		c, err := r.candidate()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
