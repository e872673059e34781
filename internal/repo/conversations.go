package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"creatordesk/internal/domain"
)

// Conversations are owned by a workspace and a user; every query filters on both.

func (r Repo) InsertConversation(ctx context.Context, c domain.Conversation) error {
	if c.ID == "" || c.WorkspaceID == "" || c.UserID == "" {
		return errors.New("conversation id, workspace id and user id required")
	}
	now := r.now()
	if c.CreatedAt == "" {
		c.CreatedAt = now
	}
	if c.UpdatedAt == "" {
		c.UpdatedAt = c.CreatedAt
	}
	var title any
	if c.Title != nil {
		title = *c.Title
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO conversations(id,workspace_id,user_id,title,created_at,updated_at) VALUES (?,?,?,?,?,?)`,
		c.ID, c.WorkspaceID, c.UserID, title, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r Repo) GetConversation(ctx context.Context, workspaceID, userID, id string) (domain.Conversation, error) {
	var (
		c     domain.Conversation
		title sql.NullString
	)
	err := r.DB.QueryRowContext(ctx, `SELECT id,workspace_id,user_id,title,created_at,updated_at FROM conversations WHERE workspace_id=? AND user_id=? AND id=?`,
		workspaceID, userID, id).Scan(&c.ID, &c.WorkspaceID, &c.UserID, &title, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	c.Title = strPtr(title)
	return c, nil
}

// LoadConversation returns the conversation with its messages in creation order.
func (r Repo) LoadConversation(ctx context.Context, workspaceID, userID, id string) (domain.Conversation, error) {
	c, err := r.GetConversation(ctx, workspaceID, userID, id)
	if err != nil {
		return c, err
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,conversation_id,role,content,created_at FROM messages WHERE conversation_id=? ORDER BY seq ASC`, id)
	if err != nil {
		return c, err
	}
	defer rows.Close()
	c.Messages = []domain.Message{}
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return c, err
		}
		c.Messages = append(c.Messages, m)
	}
	return c, rows.Err()
}

func (r Repo) ListConversations(ctx context.Context, workspaceID, userID string, limit int) ([]domain.Conversation, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,workspace_id,user_id,title,created_at,updated_at FROM conversations WHERE workspace_id=? AND user_id=? ORDER BY updated_at DESC, id ASC LIMIT ?`,
		workspaceID, userID, normalizeLimit(limit, 50, 200))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Conversation{}
	for rows.Next() {
		var (
			c     domain.Conversation
			title sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.WorkspaceID, &c.UserID, &title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.Title = strPtr(title)
		res = append(res, c)
	}
	return res, rows.Err()
}

// AppendMessage stores a message and bumps the conversation's updatedAt.
func (r Repo) AppendMessage(ctx context.Context, workspaceID, userID string, m domain.Message) (domain.Message, error) {
	if m.Role != domain.RoleUser && m.Role != domain.RoleAssistant {
		return m, errors.New("invalid message role")
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return m, err
	}
	defer tx.Rollback()
	if m.CreatedAt == "" {
		m.CreatedAt = r.now()
	}
	res, err := tx.ExecContext(ctx, `UPDATE conversations SET updated_at=? WHERE workspace_id=? AND user_id=? AND id=?`,
		m.CreatedAt, workspaceID, userID, m.ConversationID)
	if err != nil {
		return m, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return m, ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO messages(id,conversation_id,role,content,created_at) VALUES (?,?,?,?,?)`,
		m.ID, m.ConversationID, m.Role, m.Content, m.CreatedAt); err != nil {
		return m, err
	}
	return m, tx.Commit()
}

func (r Repo) RenameConversation(ctx context.Context, workspaceID, userID, id, title string) error {
	var v any
	if t := strings.TrimSpace(title); t != "" {
		v = t
	}
	res, err := r.DB.ExecContext(ctx, `UPDATE conversations SET title=?, updated_at=? WHERE workspace_id=? AND user_id=? AND id=?`,
		v, r.now(), workspaceID, userID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteConversation removes the conversation; messages cascade.
func (r Repo) DeleteConversation(ctx context.Context, workspaceID, userID, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM conversations WHERE workspace_id=? AND user_id=? AND id=?`, workspaceID, userID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
