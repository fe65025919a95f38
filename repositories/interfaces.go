package repositories

import (
	"context"

	"github.com/upb/llm-council-router/models"
)

// AuditRepository persists routed-request audit entries.
type AuditRepository interface {
	// Insert inserts a new audit log entry
	Insert(ctx context.Context, log *models.AuditLog) error
}
