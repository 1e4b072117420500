package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_turn_store.go -package=mocks docchat/internal/storage TurnStore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TurnStore defines the interface for the session audit log.
type TurnStore interface {
	// AppendTurn stores a completed turn. ID and Seq are assigned when empty.
	AppendTurn(ctx context.Context, turn *TurnRecord) error
	// AppendCorpus stores a processed document set. ID is assigned when empty.
	AppendCorpus(ctx context.Context, corpus *CorpusRecord) error
	// ListTurns returns the turns of a session ordered by Seq.
	ListTurns(ctx context.Context, sessionID string) ([]*TurnRecord, error)
}

// TurnRepo provides the SQLite implementation of TurnStore.
type TurnRepo struct {
	db *sql.DB
}

// NewTurnRepo creates a new TurnRepo.
func NewTurnRepo(db *sql.DB) *TurnRepo {
	return &TurnRepo{db: db}
}

// AppendTurn inserts turn with the next sequence number of its session.
func (r *TurnRepo) AppendTurn(ctx context.Context, turn *TurnRecord) error {
	if turn.ID == "" {
		turn.ID = uuid.New().String()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if turn.Seq == 0 {
		err := tx.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(seq), 0) + 1 FROM turns WHERE session_id = ?",
			turn.SessionID,
		).Scan(&turn.Seq)
		if err != nil {
			return fmt.Errorf("failed to compute turn sequence: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO turns (id, session_id, seq, question, standalone_question, answer, sources)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		turn.ID, turn.SessionID, turn.Seq, turn.Question, turn.StandaloneQuestion, turn.Answer, turn.Sources,
	)
	if err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit turn: %w", err)
	}
	return nil
}

// AppendCorpus inserts corpus.
func (r *TurnRepo) AppendCorpus(ctx context.Context, corpus *CorpusRecord) error {
	if corpus.ID == "" {
		corpus.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO corpora (id, session_id, documents, characters, chunks) VALUES (?, ?, ?, ?, ?)",
		corpus.ID, corpus.SessionID, corpus.Documents, corpus.Characters, corpus.Chunks,
	)
	if err != nil {
		return fmt.Errorf("failed to insert corpus: %w", err)
	}
	return nil
}

// ListTurns returns all turns of sessionID ordered by sequence number.
func (r *TurnRepo) ListTurns(ctx context.Context, sessionID string) ([]*TurnRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, seq, question, standalone_question, answer, sources, created_at
		 FROM turns WHERE session_id = ? ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var turns []*TurnRecord
	for rows.Next() {
		var turn TurnRecord
		var createdAtStr string
		if err := rows.Scan(&turn.ID, &turn.SessionID, &turn.Seq, &turn.Question,
			&turn.StandaloneQuestion, &turn.Answer, &turn.Sources, &createdAtStr); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turn.CreatedAt, err = parseTimestamp(createdAtStr)
		if err != nil {
			return nil, err
		}
		turns = append(turns, &turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return turns, nil
}

// parseTimestamp parses a SQLite DATETIME value.
func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}
