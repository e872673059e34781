package repo

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"creatordesk/internal/domain"
)

// GetProfile returns the creator profile with platform stats. A workspace
// without a saved profile yields ErrNotFound.
func (r Repo) GetProfile(ctx context.Context, workspaceID string) (domain.CreatorProfile, error) {
	var (
		p                               domain.CreatorProfile
		niche, bio, audience, rateCard sql.NullString
	)
	err := r.DB.QueryRowContext(ctx, `SELECT workspace_id,display_name,niche,bio,audience,rate_card,updated_at FROM creator_profiles WHERE workspace_id=?`, workspaceID).
		Scan(&p.WorkspaceID, &p.DisplayName, &niche, &bio, &audience, &rateCard, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	p.Niche = niche.String
	p.Bio = bio.String
	p.Audience = audience.String
	p.RateCard = rateCard.String
	p.Platforms, err = r.ListPlatformStats(ctx, workspaceID)
	return p, err
}

func (r Repo) ListPlatformStats(ctx context.Context, workspaceID string) ([]domain.PlatformStat, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT platform,COALESCE(handle,''),followers,avg_views,engagement_rate FROM platform_stats WHERE workspace_id=? ORDER BY followers DESC, platform ASC`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.PlatformStat{}
	for rows.Next() {
		var (
			s    domain.PlatformStat
			rate sql.NullFloat64
		)
		if err := rows.Scan(&s.Platform, &s.Handle, &s.Followers, &s.AvgViews, &rate); err != nil {
			return nil, err
		}
		s.EngagementRate = floatPtr(rate)
		res = append(res, s)
	}
	return res, rows.Err()
}

// SaveProfile replaces the profile and its platform stats atomically.
func (r Repo) SaveProfile(ctx context.Context, workspaceID string, p domain.CreatorProfile) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	now := r.now()
	if _, err := tx.ExecContext(ctx, `INSERT INTO creator_profiles(workspace_id,display_name,niche,bio,audience,rate_card,updated_at) VALUES (?,?,?,?,?,?,?)
ON CONFLICT(workspace_id) DO UPDATE SET display_name=excluded.display_name, niche=excluded.niche, bio=excluded.bio, audience=excluded.audience, rate_card=excluded.rate_card, updated_at=excluded.updated_at`,
		workspaceID, p.DisplayName, nullable(p.Niche), nullable(p.Bio), nullable(p.Audience), nullable(p.RateCard), now); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM platform_stats WHERE workspace_id=?`, workspaceID); err != nil {
		return err
	}
	for _, s := range p.Platforms {
		if _, err := tx.ExecContext(ctx, `INSERT INTO platform_stats(id,workspace_id,platform,handle,followers,avg_views,engagement_rate,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
			uuid.NewString(), workspaceID, s.Platform, nullable(s.Handle), s.Followers, s.AvgViews, nullableFloat(s.EngagementRate), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}
