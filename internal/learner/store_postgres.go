package learner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed Store. It expects the schema created by
// the database package migrations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed learner store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Load(ctx context.Context, learnerID string) (*State, error) {
	if learnerID == "" {
		return nil, fmt.Errorf("learner id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	st := NewState(learnerID)

	var masteryBytes []byte
	err := s.pool.QueryRow(ctx,
		`SELECT mastery FROM learners WHERE id = $1`,
		learnerID,
	).Scan(&masteryBytes)
	if errors.Is(err, pgx.ErrNoRows) {
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get learner: %w", err)
	}
	if len(masteryBytes) > 0 {
		if err := json.Unmarshal(masteryBytes, &st.Mastery); err != nil {
			return nil, fmt.Errorf("decode mastery: %w", err)
		}
		if st.Mastery == nil {
			st.Mastery = map[string]float64{}
		}
	}

	rows, err := s.pool.Query(ctx,
		`SELECT question_id, is_correct, response_time_ms, answered_at
		 FROM interactions
		 WHERE learner_id = $1
		 ORDER BY id ASC`,
		learnerID,
	)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var in Interaction
		if err := rows.Scan(&in.QuestionID, &in.IsCorrect, &in.ResponseTimeMs, &in.Timestamp); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		st.History = append(st.History, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interactions: %w", err)
	}

	return st, nil
}

func (s *PostgresStore) AppendInteraction(ctx context.Context, learnerID string, in Interaction) error {
	if learnerID == "" {
		return fmt.Errorf("learner id is required")
	}
	if in.QuestionID == "" {
		return fmt.Errorf("question id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	answeredAt := in.Timestamp
	if answeredAt.IsZero() {
		answeredAt = time.Now()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := ensureLearner(ctx, tx, learnerID); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO interactions (learner_id, question_id, is_correct, response_time_ms, answered_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		learnerID,
		in.QuestionID,
		in.IsCorrect,
		in.ResponseTimeMs,
		answeredAt,
	); err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetMastery(ctx context.Context, learnerID string, mastery map[string]float64) error {
	if learnerID == "" {
		return fmt.Errorf("learner id is required")
	}

	payload := mastery
	if payload == nil {
		payload = map[string]float64{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal mastery: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO learners (id, mastery)
		 VALUES ($1, $2::jsonb)
		 ON CONFLICT (id) DO UPDATE
		 SET mastery = EXCLUDED.mastery, updated_at = NOW()`,
		learnerID,
		string(data),
	); err != nil {
		return fmt.Errorf("set mastery: %w", err)
	}
	return nil
}

func ensureLearner(ctx context.Context, tx pgx.Tx, learnerID string) error {
	if _, err := tx.Exec(ctx,
		`INSERT INTO learners (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`,
		learnerID,
	); err != nil {
		return fmt.Errorf("ensure learner: %w", err)
	}
	return nil
}
