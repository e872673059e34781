package repo

import (
	"context"
	"database/sql"

	"creatordesk/internal/domain"
)

// UpsertCredential stores the workspace's sealed provider key, replacing any
// previous one.
func (r Repo) UpsertCredential(ctx context.Context, c domain.Credential) error {
	if c.UpdatedAt == "" {
		c.UpdatedAt = r.now()
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO workspace_credentials(workspace_id,provider,sealed_key,hint,updated_at) VALUES (?,?,?,?,?)
ON CONFLICT(workspace_id) DO UPDATE SET provider=excluded.provider, sealed_key=excluded.sealed_key, hint=excluded.hint, updated_at=excluded.updated_at`,
		c.WorkspaceID, c.Provider, c.SealedKey, c.Hint, c.UpdatedAt)
	return err
}

func (r Repo) GetCredential(ctx context.Context, workspaceID string) (domain.Credential, error) {
	var c domain.Credential
	err := r.DB.QueryRowContext(ctx, `SELECT workspace_id,provider,sealed_key,hint,updated_at FROM workspace_credentials WHERE workspace_id=?`, workspaceID).
		Scan(&c.WorkspaceID, &c.Provider, &c.SealedKey, &c.Hint, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

func (r Repo) DeleteCredential(ctx context.Context, workspaceID string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM workspace_credentials WHERE workspace_id=?`, workspaceID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
