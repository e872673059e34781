package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"creatordesk/internal/domain"
)

// SourceAgent marks activities produced by tool calls of the AI manager.
const SourceAgent = "agent"

type Writer struct {
	Now func() time.Time
}

type Metadata map[string]any

// Entry is one Activity to append.
type Entry struct {
	WorkspaceID string
	Type        string
	Description string
	BrandID     string
	CampaignID  string
	UserID      string
	Metadata    Metadata
}

// Append inserts a single activity row inside tx. Activities are never
// updated or deleted by the application.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, e Entry) (domain.Activity, error) {
	if tx == nil {
		return domain.Activity{}, errors.New("activity append requires a transaction")
	}
	if e.WorkspaceID == "" {
		return domain.Activity{}, errors.New("workspace id required")
	}
	if e.Type == "" {
		return domain.Activity{}, errors.New("activity type required")
	}
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	if e.Metadata == nil {
		e.Metadata = Metadata{}
	}
	if _, ok := e.Metadata["source"]; !ok {
		e.Metadata["source"] = SourceAgent
	}
	data, err := json.Marshal(e.Metadata)
	if err != nil {
		return domain.Activity{}, fmt.Errorf("marshal activity metadata: %w", err)
	}
	a := domain.Activity{
		ID:          uuid.NewString(),
		WorkspaceID: e.WorkspaceID,
		Type:        e.Type,
		Description: e.Description,
		BrandID:     optional(e.BrandID),
		CampaignID:  optional(e.CampaignID),
		UserID:      optional(e.UserID),
		Metadata:    e.Metadata,
		CreatedAt:   domain.FormatTime(now()),
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO activities(id,workspace_id,type,description,brand_id,campaign_id,user_id,metadata_json,created_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		a.ID, a.WorkspaceID, a.Type, a.Description, nullable(e.BrandID), nullable(e.CampaignID), nullable(e.UserID), string(data), a.CreatedAt)
	if err != nil {
		return domain.Activity{}, fmt.Errorf("insert activity: %w", err)
	}
	if seq, err := res.LastInsertId(); err == nil {
		a.Seq = seq
	}
	return a, nil
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
