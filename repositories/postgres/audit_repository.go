package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/upb/llm-council-router/models"
	"github.com/upb/llm-council-router/repositories"
	"go.uber.org/zap"
)

// AuditRepository implements the repositories.AuditRepository interface
type AuditRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB, logger *zap.Logger) repositories.AuditRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

const insertAuditLog = `
	INSERT INTO audit_logs (
		id, request_id, action, council, prompt, details, subject, timestamp,
		model, provider, prompt_tokens, completion_tokens, cost, latency_ms, error_message
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
	)
`

// Insert inserts a new audit log entry
func (r *AuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	var details interface{}
	if len(log.Details) > 0 {
		details = []byte(log.Details)
	}

	_, err := r.db.ExecContext(ctx, insertAuditLog,
		log.ID,
		log.RequestID,
		log.Action,
		log.Council,
		log.Prompt,
		details,
		nullString(log.Subject),
		log.Timestamp,
		nullString(log.Model),
		nullString(log.Provider),
		nullInt(log.PromptTokens),
		nullInt(log.CompletionTokens),
		nullFloat(log.Cost),
		nullInt(log.LatencyMs),
		nullString(log.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	r.logger.Debug("audit log inserted",
		zap.String("id", log.ID.String()),
		zap.String("action", string(log.Action)))
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
