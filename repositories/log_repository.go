package repositories

import (
	"context"

	"github.com/upb/llm-council-router/models"
	"go.uber.org/zap"
)

// LogAuditRepository writes audit entries to the structured log. It is the
// sink used when no database is configured.
type LogAuditRepository struct {
	logger *zap.Logger
}

// NewLogAuditRepository creates a log-backed audit repository
func NewLogAuditRepository(logger *zap.Logger) *LogAuditRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogAuditRepository{logger: logger.Named("audit")}
}

// Insert logs the entry at info level
func (r *LogAuditRepository) Insert(_ context.Context, log *models.AuditLog) error {
	fields := []zap.Field{
		zap.String("id", log.ID.String()),
		zap.String("request_id", log.RequestID),
		zap.String("action", string(log.Action)),
		zap.String("council", log.Council),
		zap.Time("timestamp", log.Timestamp),
	}
	if log.Model != nil {
		fields = append(fields, zap.String("model", *log.Model))
	}
	if log.Provider != nil {
		fields = append(fields, zap.String("provider", *log.Provider))
	}
	if log.Cost != nil {
		fields = append(fields, zap.Float64("cost", *log.Cost))
	}
	if log.LatencyMs != nil {
		fields = append(fields, zap.Int("latency_ms", *log.LatencyMs))
	}
	if log.ErrorMessage != nil {
		fields = append(fields, zap.String("error", *log.ErrorMessage))
	}
	if len(log.Details) > 0 {
		fields = append(fields, zap.ByteString("details", log.Details))
	}

	r.logger.Info("audit entry", fields...)
	return nil
}
