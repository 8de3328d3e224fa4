package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vbonduro/nutrivision/internal/domain"
)

type AnalysisStore struct {
	db *sql.DB
}

func NewAnalysisStore(db *sql.DB) *AnalysisStore {
	return &AnalysisStore{db: db}
}

func (s *AnalysisStore) Create(ctx context.Context, a *domain.Analysis) (*domain.Analysis, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO analyses (analysis_id, model, temperature, instruction, outcome, result_text, error_message, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.AnalysisID, a.Model, a.Temperature, a.Instruction, a.Outcome, a.ResultText, a.ErrorMessage, a.DurationMS)
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

const analysisColumns = `id, analysis_id, model, temperature, instruction, outcome, result_text, error_message, duration_ms, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row scanner) (*domain.Analysis, error) {
	a := &domain.Analysis{}
	err := row.Scan(&a.ID, &a.AnalysisID, &a.Model, &a.Temperature, &a.Instruction,
		&a.Outcome, &a.ResultText, &a.ErrorMessage, &a.DurationMS, &a.CreatedAt)
	return a, err
}

func (s *AnalysisStore) GetByID(ctx context.Context, id int64) (*domain.Analysis, error) {
	a, err := scanAnalysis(s.db.QueryRowContext(ctx, `
		SELECT `+analysisColumns+` FROM analyses WHERE id = ?
	`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return a, nil
}

// ListRecent returns up to limit analyses, newest first.
func (s *AnalysisStore) ListRecent(ctx context.Context, limit int) ([]*domain.Analysis, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+analysisColumns+` FROM analyses ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	analyses := make([]*domain.Analysis, 0)
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		analyses = append(analyses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate analyses: %w", err)
	}
	return analyses, nil
}
