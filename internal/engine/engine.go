package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"creatordesk/internal/activity"
	"creatordesk/internal/domain"
	"creatordesk/internal/repo"
)

// Engine performs workspace mutations. Each write runs in one transaction
// together with exactly one Activity row.
type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Activity activity.Writer
	Now      func() time.Time
}

func New(db *sql.DB) Engine {
	return Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Activity: activity.Writer{},
		Now:      time.Now,
	}
}

// WithClock returns a copy of e whose repo, activity writer and engine share now.
func (e Engine) WithClock(now func() time.Time) Engine {
	e.Now = now
	e.Repo.Now = now
	e.Activity.Now = now
	return e
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Actor identifies who a mutation is attributed to.
type Actor struct {
	WorkspaceID string
	UserID      string
}

func (a Actor) validate() error {
	if strings.TrimSpace(a.WorkspaceID) == "" {
		return errors.New("workspace id required")
	}
	return nil
}

// BrandCreateOptions are the fields of a new pipeline entry.
type BrandCreateOptions struct {
	Name           string
	Industry       string
	Website        string
	ContactName    string
	ContactTitle   string
	ContactEmail   string
	ContactPhone   string
	Source         string
	EstimatedValue *float64
	PipelineStage  string
	Notes          string
	Tags           []string
}

func (e Engine) CreateBrand(ctx context.Context, actor Actor, opts BrandCreateOptions) (domain.Brand, error) {
	if err := actor.validate(); err != nil {
		return domain.Brand{}, err
	}
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return domain.Brand{}, errors.New("brand name is required")
	}
	stage := opts.PipelineStage
	if stage == "" {
		stage = domain.StageResearch
	}
	if !domain.ValidStage(stage) {
		return domain.Brand{}, fmt.Errorf("invalid pipeline stage %q", stage)
	}
	ts := domain.FormatTime(e.now())
	b := domain.Brand{
		ID:             uuid.NewString(),
		WorkspaceID:    actor.WorkspaceID,
		Name:           name,
		Industry:       opts.Industry,
		Website:        opts.Website,
		ContactName:    opts.ContactName,
		ContactTitle:   opts.ContactTitle,
		ContactEmail:   opts.ContactEmail,
		ContactPhone:   opts.ContactPhone,
		Source:         opts.Source,
		EstimatedValue: opts.EstimatedValue,
		PipelineStage:  stage,
		Notes:          opts.Notes,
		Tags:           opts.Tags,
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}
	if b.Tags == nil {
		b.Tags = []string{}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Brand{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertBrand(ctx, tx, b); err != nil {
		return domain.Brand{}, fmt.Errorf("insert brand: %w", err)
	}
	if _, err := e.Activity.Append(ctx, tx, activity.Entry{
		WorkspaceID: actor.WorkspaceID,
		Type:        domain.ActivityBrandCreated,
		Description: fmt.Sprintf("AI manager added %s to the pipeline (%s)", b.Name, b.PipelineStage),
		BrandID:     b.ID,
		UserID:      actor.UserID,
		Metadata:    activity.Metadata{"stage": b.PipelineStage},
	}); err != nil {
		return domain.Brand{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Brand{}, err
	}
	return b, nil
}

// StageChange is the outcome of ChangeStage.
type StageChange struct {
	Brand    domain.Brand
	OldStage string
	NewStage string
	Changed  bool
}

// ChangeStage moves the brand matching brandName to newStage. Moving a brand
// to the stage it is already in changes nothing and logs nothing.
func (e Engine) ChangeStage(ctx context.Context, actor Actor, brandName, newStage, reason string) (StageChange, error) {
	if err := actor.validate(); err != nil {
		return StageChange{}, err
	}
	if !domain.ValidStage(newStage) {
		return StageChange{}, fmt.Errorf("invalid pipeline stage %q", newStage)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return StageChange{}, err
	}
	defer tx.Rollback()
	b, err := e.Repo.FindBrand(ctx, tx, actor.WorkspaceID, brandName)
	if err != nil {
		return StageChange{}, err
	}
	res := StageChange{Brand: b, OldStage: b.PipelineStage, NewStage: newStage}
	if b.PipelineStage == newStage {
		return res, nil
	}
	if err := e.Repo.UpdateBrandStage(ctx, tx, actor.WorkspaceID, b.ID, newStage); err != nil {
		return StageChange{}, fmt.Errorf("update stage: %w", err)
	}
	desc := fmt.Sprintf("AI manager moved %s from %s to %s", b.Name, res.OldStage, newStage)
	meta := activity.Metadata{"oldStage": res.OldStage, "newStage": newStage}
	if reason = strings.TrimSpace(reason); reason != "" {
		desc += ": " + reason
		meta["reason"] = reason
	}
	if _, err := e.Activity.Append(ctx, tx, activity.Entry{
		WorkspaceID: actor.WorkspaceID,
		Type:        domain.ActivityStageChanged,
		Description: desc,
		BrandID:     b.ID,
		UserID:      actor.UserID,
		Metadata:    meta,
	}); err != nil {
		return StageChange{}, err
	}
	if err := tx.Commit(); err != nil {
		return StageChange{}, err
	}
	res.Brand.PipelineStage = newStage
	res.Changed = true
	return res, nil
}

// EmailDraftOptions describe a draft email to a brand in the pipeline.
type EmailDraftOptions struct {
	BrandName string
	Subject   string
	Body      string
	Direction string
}

// DraftEmail stores a draft addressed to the brand's contact email, or to
// the empty string when none is on file.
func (e Engine) DraftEmail(ctx context.Context, actor Actor, opts EmailDraftOptions) (domain.Email, domain.Brand, error) {
	if err := actor.validate(); err != nil {
		return domain.Email{}, domain.Brand{}, err
	}
	direction := opts.Direction
	if direction == "" {
		direction = domain.DirectionOutbound
	}
	if direction != domain.DirectionOutbound && direction != domain.DirectionInbound {
		return domain.Email{}, domain.Brand{}, fmt.Errorf("invalid direction %q", direction)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Email{}, domain.Brand{}, err
	}
	defer tx.Rollback()
	b, err := e.Repo.FindBrand(ctx, tx, actor.WorkspaceID, opts.BrandName)
	if err != nil {
		return domain.Email{}, domain.Brand{}, err
	}
	em := domain.Email{
		ID:          uuid.NewString(),
		WorkspaceID: actor.WorkspaceID,
		BrandID:     b.ID,
		Direction:   direction,
		Subject:     opts.Subject,
		Body:        opts.Body,
		ToEmail:     b.ContactEmail,
		Status:      domain.StatusDraft,
		CreatedAt:   domain.FormatTime(e.now()),
	}
	if err := e.Repo.InsertEmail(ctx, tx, em); err != nil {
		return domain.Email{}, domain.Brand{}, fmt.Errorf("insert email: %w", err)
	}
	if _, err := e.Activity.Append(ctx, tx, activity.Entry{
		WorkspaceID: actor.WorkspaceID,
		Type:        domain.ActivityEmailDrafted,
		Description: fmt.Sprintf("AI manager drafted email %q for %s", em.Subject, b.Name),
		BrandID:     b.ID,
		UserID:      actor.UserID,
		Metadata:    activity.Metadata{"emailId": em.ID, "direction": em.Direction},
	}); err != nil {
		return domain.Email{}, domain.Brand{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Email{}, domain.Brand{}, err
	}
	return em, b, nil
}

// CampaignCreateOptions describe a new campaign for an existing brand.
type CampaignCreateOptions struct {
	BrandName    string
	Name         string
	Brief        string
	Fee          *float64
	StartDate    string
	EndDate      string
	PaymentTerms string
	UsageRights  string
	Exclusivity  string
}

func (e Engine) CreateCampaign(ctx context.Context, actor Actor, opts CampaignCreateOptions) (domain.Campaign, error) {
	if err := actor.validate(); err != nil {
		return domain.Campaign{}, err
	}
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return domain.Campaign{}, errors.New("campaign name is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Campaign{}, err
	}
	defer tx.Rollback()
	b, err := e.Repo.FindBrand(ctx, tx, actor.WorkspaceID, opts.BrandName)
	if err != nil {
		return domain.Campaign{}, err
	}
	ts := domain.FormatTime(e.now())
	c := domain.Campaign{
		ID:           uuid.NewString(),
		WorkspaceID:  actor.WorkspaceID,
		BrandID:      b.ID,
		BrandName:    b.Name,
		Name:         name,
		Brief:        opts.Brief,
		Fee:          opts.Fee,
		StartDate:    opts.StartDate,
		EndDate:      opts.EndDate,
		PaymentTerms: opts.PaymentTerms,
		UsageRights:  opts.UsageRights,
		Exclusivity:  opts.Exclusivity,
		Status:       domain.StatusDraft,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}
	if err := e.Repo.InsertCampaign(ctx, tx, c); err != nil {
		return domain.Campaign{}, fmt.Errorf("insert campaign: %w", err)
	}
	meta := activity.Metadata{}
	if c.Fee != nil {
		meta["fee"] = *c.Fee
	}
	if _, err := e.Activity.Append(ctx, tx, activity.Entry{
		WorkspaceID: actor.WorkspaceID,
		Type:        domain.ActivityCampaignCreated,
		Description: fmt.Sprintf("AI manager created campaign %s for %s", c.Name, b.Name),
		BrandID:     b.ID,
		CampaignID:  c.ID,
		UserID:      actor.UserID,
		Metadata:    meta,
	}); err != nil {
		return domain.Campaign{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Campaign{}, err
	}
	return c, nil
}
