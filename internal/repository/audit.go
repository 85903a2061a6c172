package repository

import (
	"context"
	"encoding/json"
	"fmt"
)

// AuditLogParams is one audit row.
type AuditLogParams struct {
	Action       string
	ResourceType string
	ResourceID   string
	ActorID      *string
	Details      map[string]any
}

// InsertAuditLog appends an audit row.
func (q *Queries) InsertAuditLog(ctx context.Context, p AuditLogParams) error {
	details := p.Details
	if details == nil {
		details = map[string]any{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}
	_, err = q.db.Exec(ctx, `
		INSERT INTO audit_logs (action, resource_type, resource_id, actor_id, details)
		VALUES ($1, $2, $3, $4, $5::jsonb)`,
		p.Action, p.ResourceType, p.ResourceID, p.ActorID, raw,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// AuditLog is a stored audit row.
type AuditLog struct {
	Action       string
	ResourceType string
	ResourceID   string
	ActorID      *string
	Details      map[string]any
}

// ListAuditLogs returns rows for a resource type, oldest first.
func (q *Queries) ListAuditLogs(ctx context.Context, resourceType string) ([]AuditLog, error) {
	rows, err := q.db.Query(ctx, `
		SELECT action, resource_type, resource_id, actor_id, details
		FROM audit_logs
		WHERE resource_type = $1
		ORDER BY created_at, id`, resourceType)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var out []AuditLog
	for rows.Next() {
		var a AuditLog
		if err := rows.Scan(&a.Action, &a.ResourceType, &a.ResourceID, &a.ActorID, &a.Details); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
