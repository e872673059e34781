package repo

import (
	"context"
	"database/sql"
	"errors"

	"creatordesk/internal/domain"
)

func (r Repo) InsertEmail(ctx context.Context, tx *sql.Tx, e domain.Email) error {
	if e.ID == "" || e.WorkspaceID == "" || e.BrandID == "" {
		return errors.New("email id, workspace id and brand id required")
	}
	if e.Direction == "" {
		e.Direction = domain.DirectionOutbound
	}
	if e.Status == "" {
		e.Status = domain.StatusDraft
	}
	if e.CreatedAt == "" {
		e.CreatedAt = r.now()
	}
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO emails(id,workspace_id,brand_id,direction,subject,body,to_email,status,created_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		e.ID, e.WorkspaceID, e.BrandID, e.Direction, e.Subject, e.Body, e.ToEmail, e.Status, e.CreatedAt)
	return err
}

// RecentEmailsForBrand returns the newest emails of a brand.
func (r Repo) RecentEmailsForBrand(ctx context.Context, workspaceID, brandID string, limit int) ([]domain.Email, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,workspace_id,brand_id,direction,subject,body,to_email,status,created_at FROM emails WHERE workspace_id=? AND brand_id=? ORDER BY created_at DESC, id ASC LIMIT ?`,
		workspaceID, brandID, normalizeLimit(limit, 5, 50))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Email{}
	for rows.Next() {
		var e domain.Email
		if err := rows.Scan(&e.ID, &e.WorkspaceID, &e.BrandID, &e.Direction, &e.Subject, &e.Body, &e.ToEmail, &e.Status, &e.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// CountEmails returns the number of emails stored for the workspace.
func (r Repo) CountEmails(ctx context.Context, workspaceID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM emails WHERE workspace_id=?`, workspaceID).Scan(&n)
	return n, err
}
