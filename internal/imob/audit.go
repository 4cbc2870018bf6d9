package imob

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditService writes security-relevant events to the audit log.
type AuditService struct {
	db *pgxpool.Pool
}

func NewAuditService(db *pgxpool.Pool) *AuditService {
	return &AuditService{db: db}
}

// Log records an audit event from an HTTP request. Errors are
// silently ignored since audit logging should never break the main flow.
func (a *AuditService) Log(ctx context.Context, userID *string, action, resourceType, resourceID string, r *http.Request, metadata map[string]interface{}) {
	a.LogRaw(ctx, userID, action, resourceType, resourceID, ExtractClientIP(r), r.Header.Get("User-Agent"), metadata)
}

// LogRaw records an audit event with pre-extracted client info. Used by
// services that don't hold the request (scheduler, auth internals).
// The insert runs in the background on its own deadline so the write
// outlives the request and never delays it.
func (a *AuditService) LogRaw(_ context.Context, userID *string, action, resourceType, resourceID, ip, userAgent string, metadata map[string]interface{}) {
	if a == nil || a.db == nil {
		return
	}

	metaJSON := []byte("{}")
	if metadata != nil {
		metaJSON, _ = json.Marshal(metadata)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		a.db.Exec(ctx, `
			INSERT INTO audit_log (user_id, action, resource_type, resource_id, ip_address, user_agent, metadata)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, userID, action, resourceType, resourceID, ip, userAgent, string(metaJSON))
	}()
}

// PurgeOld deletes audit entries older than the retention window.
func (a *AuditService) PurgeOld(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	tag, err := a.db.Exec(ctx, `
		DELETE FROM audit_log
		WHERE created_at < NOW() - make_interval(days => $1)
	`, retentionDays)
	if err != nil {
		return 0, fmt.Errorf("purge audit log: %w", err)
	}
	return tag.RowsAffected(), nil
}

type AuditEntry struct {
	ID           int64           `json:"id"`
	UserID       *string         `json:"user_id"`
	Action       string          `json:"action"`
	ResourceType *string         `json:"resource_type"`
	ResourceID   *string         `json:"resource_id"`
	IPAddress    *string         `json:"ip_address"`
	UserAgent    *string         `json:"user_agent"`
	Metadata     json.RawMessage `json:"metadata"`
	CreatedAt    time.Time       `json:"created_at"`
}

type AuditListResult struct {
	Entries []AuditEntry `json:"entries"`
	Total   int          `json:"total"`
	Page    int          `json:"page"`
	PerPage int          `json:"per_page"`
}

// List returns audit entries newest first, optionally filtered by action
// and/or user.
func (a *AuditService) List(ctx context.Context, action, userID string, page, perPage int) (*AuditListResult, error) {
	where := []string{"TRUE"}
	args := []interface{}{}
	i := 1

	if action != "" {
		where = append(where, fmt.Sprintf("action = $%d", i))
		args = append(args, action)
		i++
	}
	if userID != "" {
		where = append(where, fmt.Sprintf("user_id = $%d", i))
		args = append(args, userID)
		i++
	}

	cond := strings.Join(where, " AND ")

	var total int
	err := a.db.QueryRow(ctx, `SELECT COUNT(*) FROM audit_log WHERE `+cond, args...).Scan(&total)
	if err != nil {
		return nil, err
	}

	args = append(args, perPage, (page-1)*perPage)
	rows, err := a.db.Query(ctx, fmt.Sprintf(`
		SELECT id, user_id, action, resource_type, resource_id, ip_address, user_agent, metadata, created_at
		FROM audit_log WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, cond, i, i+1), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []AuditEntry{}
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.ResourceType, &e.ResourceID, &e.IPAddress, &e.UserAgent, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &AuditListResult{Entries: entries, Total: total, Page: page, PerPage: perPage}, nil
}

// ExtractClientIP returns the client IP, honoring proxy headers.
func ExtractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx > 0 {
		ip = ip[:idx]
	}
	return ip
}
