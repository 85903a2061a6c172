// Package audit writes the append-only audit trail.
//
// Rows are never updated or deleted. Callers treat audit writes as best
// effort through Record; LogAction returns the error for callers that care.
package audit

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"plantops.io/mis/internal/pkg/logger"
	"plantops.io/mis/internal/repository"
)

// Writer persists audit rows.
type Writer interface {
	InsertAuditLog(ctx context.Context, p repository.AuditLogParams) error
}

// Logger writes audit records to the database.
type Logger struct {
	writer Writer
}

// NewLogger creates a new audit Logger.
func NewLogger(writer Writer) *Logger {
	return &Logger{writer: writer}
}

// LogAction records an auditable action. An empty actor is stored as NULL.
func (l *Logger) LogAction(ctx context.Context, action, resourceType, resourceID, actor string, details map[string]interface{}) error {
	if l == nil || l.writer == nil {
		return nil
	}
	var actorID *string
	if a := strings.TrimSpace(actor); a != "" {
		actorID = &a
	}
	err := l.writer.InsertAuditLog(ctx, repository.AuditLogParams{
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		ActorID:      actorID,
		Details:      details,
	})
	if err != nil {
		logger.Error("Failed to write audit log",
			zap.String("action", action),
			zap.String("resource_type", resourceType),
			zap.String("resource_id", resourceID),
			zap.Error(err),
		)
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// Record is LogAction for callers that must not fail on audit errors.
func (l *Logger) Record(ctx context.Context, action, resourceType, resourceID, actor string, details map[string]interface{}) {
	_ = l.LogAction(ctx, action, resourceType, resourceID, actor, details)
}

// LogLogin records a successful login.
func (l *Logger) LogLogin(ctx context.Context, userID, email string, passwordMigrated bool) {
	l.Record(ctx, "user.login", "profile", userID, userID, map[string]interface{}{
		"email":             email,
		"password_migrated": passwordMigrated,
	})
}

// LogRegister records a new account.
func (l *Logger) LogRegister(ctx context.Context, userID, email, role, actor string) {
	l.Record(ctx, "user.register", "profile", userID, actor, map[string]interface{}{
		"email": email,
		"role":  role,
	})
}

// LogRoleChange records a role change.
func (l *Logger) LogRoleChange(ctx context.Context, userID, from, to, actor string) {
	l.Record(ctx, "user.role_change", "profile", userID, actor, map[string]interface{}{
		"from": from,
		"to":   to,
	})
}

// LogDelete records the deletion of a resource.
func (l *Logger) LogDelete(ctx context.Context, resourceType, resourceID, actor string, details map[string]interface{}) {
	l.Record(ctx, resourceType+".delete", resourceType, resourceID, actor, details)
}
