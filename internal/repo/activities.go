package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"creatordesk/internal/domain"
)

// ActivityFilters narrows ListActivities. Cursor is an exclusive upper bound
// on the sequence number.
type ActivityFilters struct {
	Type   string
	Cursor int64
	Limit  int
}

// ListActivities returns activities newest first.
func (r Repo) ListActivities(ctx context.Context, workspaceID string, f ActivityFilters) ([]domain.Activity, error) {
	clauses := []string{"workspace_id=?"}
	args := []any{workspaceID}
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.Cursor > 0 {
		clauses = append(clauses, "seq<?")
		args = append(args, f.Cursor)
	}
	query := fmt.Sprintf(`SELECT seq,id,workspace_id,type,description,brand_id,campaign_id,user_id,metadata_json,created_at FROM activities WHERE %s ORDER BY seq DESC LIMIT ?`,
		strings.Join(clauses, " AND "))
	args = append(args, normalizeLimit(f.Limit, 50, 201))
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Activity{}
	for rows.Next() {
		var (
			a                      domain.Activity
			brand, campaign, actor sql.NullString
			meta                   string
		)
		if err := rows.Scan(&a.Seq, &a.ID, &a.WorkspaceID, &a.Type, &a.Description, &brand, &campaign, &actor, &meta, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.BrandID = strPtr(brand)
		a.CampaignID = strPtr(campaign)
		a.UserID = strPtr(actor)
		if meta != "" {
			_ = json.Unmarshal([]byte(meta), &a.Metadata)
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// CountActivities returns the number of activities of the workspace.
func (r Repo) CountActivities(ctx context.Context, workspaceID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM activities WHERE workspace_id=?`, workspaceID).Scan(&n)
	return n, err
}
