package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"creatordesk/internal/domain"
	"creatordesk/internal/repo"
)

var (
	// ErrUnauthenticated means the request carried no usable identity.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrNoWorkspace means the user exists but belongs to no workspace.
	ErrNoWorkspace = errors.New("no workspace for user")
)

// Scope is the resolved tenant for one request. Everything downstream of the
// resolver receives it by value and never re-derives it.
type Scope struct {
	WorkspaceID string
	UserID      string
}

// Service resolves callers to workspaces and bootstraps new accounts.
type Service struct {
	Repo repo.Repo
	Now  func() time.Time
}

// Resolve maps an authenticated user to the workspace of their earliest
// membership.
func (s Service) Resolve(ctx context.Context, userID string) (Scope, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Scope{}, ErrUnauthenticated
	}
	m, err := s.Repo.EarliestMembership(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return Scope{}, ErrNoWorkspace
	}
	if err != nil {
		return Scope{}, fmt.Errorf("resolve workspace: %w", err)
	}
	return Scope{WorkspaceID: m.WorkspaceID, UserID: userID}, nil
}

// Signup is the result of Bootstrap.
type Signup struct {
	User      domain.User      `json:"user"`
	Workspace domain.Workspace `json:"workspace"`
}

// Bootstrap creates a user (or reuses one with the same email), a new
// workspace and an owner membership in one transaction.
func (s Service) Bootstrap(ctx context.Context, email, userName, workspaceName string) (Signup, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return Signup{}, errors.New("valid email required")
	}
	if strings.TrimSpace(workspaceName) == "" {
		workspaceName = email
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	ts := domain.FormatTime(now())

	u, err := s.Repo.GetUserByEmail(ctx, email)
	newUser := errors.Is(err, repo.ErrNotFound)
	if err != nil && !newUser {
		return Signup{}, err
	}

	tx, err := s.Repo.DB.BeginTx(ctx, nil)
	if err != nil {
		return Signup{}, err
	}
	defer tx.Rollback()
	if newUser {
		u = domain.User{ID: uuid.NewString(), Email: email, Name: userName, CreatedAt: ts}
		if err := s.Repo.InsertUser(ctx, tx, u); err != nil {
			return Signup{}, fmt.Errorf("insert user: %w", err)
		}
	}
	w := domain.Workspace{ID: uuid.NewString(), Name: strings.TrimSpace(workspaceName), CreatedAt: ts}
	if err := s.Repo.InsertWorkspace(ctx, tx, w); err != nil {
		return Signup{}, fmt.Errorf("insert workspace: %w", err)
	}
	if err := s.Repo.AddMembership(ctx, tx, domain.Membership{WorkspaceID: w.ID, UserID: u.ID, Role: "owner", CreatedAt: ts}); err != nil {
		return Signup{}, fmt.Errorf("add membership: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Signup{}, err
	}
	return Signup{User: u, Workspace: w}, nil
}
