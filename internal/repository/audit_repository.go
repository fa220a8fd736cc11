package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/noah-isme/sportlearn-api/internal/models"
)

// CollectionAuditLogs holds the audit trail.
const CollectionAuditLogs = "audit_logs"

// AuditRepository appends audit trail records.
type AuditRepository struct {
	logs *Collection
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(store *DocumentStore) *AuditRepository {
	return &AuditRepository{logs: store.Collection(CollectionAuditLogs)}
}

// Create stores an audit record, assigning an id when missing.
func (r *AuditRepository) Create(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if err := r.logs.Create(ctx, log.ID, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}
