package models

import (
	"encoding/json"
	"time"
)

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin           = "LOGIN"
	AuditActionRoleChange      = "ROLE_CHANGE"
	AuditActionUserCreate      = "USER_CREATE"
	AuditActionTemplateCreate  = "TEMPLATE_CREATE"
	AuditActionTemplateUpdate  = "TEMPLATE_UPDATE"
	AuditActionTemplateDelete  = "TEMPLATE_DELETE"
	AuditActionResponsePrune   = "RESPONSE_PRUNE"
	AuditActionContentGenerate = "CONTENT_GENERATE"
	AuditActionContentGrade    = "CONTENT_GRADE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string          `json:"id"`
	UserID     *string         `json:"userId,omitempty"`
	Action     string          `json:"action"`
	Resource   string          `json:"resource"`
	ResourceID *string         `json:"resourceId,omitempty"`
	NewValues  json.RawMessage `json:"newValues,omitempty"`
	IPAddress  string          `json:"ipAddress"`
	UserAgent  string          `json:"userAgent"`
	CreatedAt  time.Time       `json:"createdAt"`
}
