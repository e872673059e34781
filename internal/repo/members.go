package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"creatordesk/internal/domain"
)

func (r Repo) InsertUser(ctx context.Context, tx *sql.Tx, u domain.User) error {
	if u.ID == "" || strings.TrimSpace(u.Email) == "" {
		return errors.New("user id and email required")
	}
	if u.CreatedAt == "" {
		u.CreatedAt = r.now()
	}
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO users(id,email,name,created_at) VALUES (?,?,?,?)`,
		u.ID, strings.ToLower(strings.TrimSpace(u.Email)), nullable(u.Name), u.CreatedAt)
	return err
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, `SELECT id,email,COALESCE(name,''),created_at FROM users WHERE id=?`, id))
}

func (r Repo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, `SELECT id,email,COALESCE(name,''),created_at FROM users WHERE email=?`,
		strings.ToLower(strings.TrimSpace(email))))
}

func scanUser(row *sql.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	return u, err
}

func (r Repo) InsertWorkspace(ctx context.Context, tx *sql.Tx, w domain.Workspace) error {
	if w.CreatedAt == "" {
		w.CreatedAt = r.now()
	}
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO workspaces(id,name,created_at) VALUES (?,?,?)`, w.ID, w.Name, w.CreatedAt)
	return err
}

func (r Repo) GetWorkspace(ctx context.Context, id string) (domain.Workspace, error) {
	var w domain.Workspace
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,created_at FROM workspaces WHERE id=?`, id).Scan(&w.ID, &w.Name, &w.CreatedAt)
	if err == sql.ErrNoRows {
		return w, ErrNotFound
	}
	return w, err
}

func (r Repo) AddMembership(ctx context.Context, tx *sql.Tx, m domain.Membership) error {
	if m.Role == "" {
		m.Role = "owner"
	}
	if m.CreatedAt == "" {
		m.CreatedAt = r.now()
	}
	_, err := r.q(tx).ExecContext(ctx, `INSERT OR IGNORE INTO memberships(workspace_id,user_id,role,created_at) VALUES (?,?,?,?)`,
		m.WorkspaceID, m.UserID, m.Role, m.CreatedAt)
	return err
}

// EarliestMembership returns the user's oldest membership.
func (r Repo) EarliestMembership(ctx context.Context, userID string) (domain.Membership, error) {
	var m domain.Membership
	err := r.DB.QueryRowContext(ctx, `SELECT workspace_id,user_id,role,created_at FROM memberships WHERE user_id=? ORDER BY created_at ASC, workspace_id ASC LIMIT 1`, userID).
		Scan(&m.WorkspaceID, &m.UserID, &m.Role, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	return m, err
}
