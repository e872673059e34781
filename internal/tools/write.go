package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"creatordesk/internal/domain"
	"creatordesk/internal/engine"
	"creatordesk/internal/repo"
)

type PipelineEntryInput struct {
	Name           string   `json:"name" doc:"Brand name" validate:"required,max=200"`
	Industry       string   `json:"industry,omitempty" validate:"max=200"`
	Website        string   `json:"website,omitempty" doc:"Brand website URL" validate:"max=500"`
	ContactName    string   `json:"contactName,omitempty" validate:"max=200"`
	ContactEmail   string   `json:"contactEmail,omitempty" validate:"omitempty,email,max=320"`
	ContactTitle   string   `json:"contactTitle,omitempty" validate:"max=200"`
	Source         string   `json:"source,omitempty" doc:"Where the lead came from" validate:"max=200"`
	EstimatedValue *float64 `json:"estimatedValue,omitempty" doc:"Estimated deal value" validate:"omitempty,gte=0"`
	PipelineStage  string   `json:"pipelineStage,omitempty" enum:"research,outreach,negotiation,contracted,active,completed,lost" doc:"Defaults to research" validate:"omitempty,oneof=research outreach negotiation contracted active completed lost"`
	Notes          string   `json:"notes,omitempty" validate:"max=5000"`
}

type PipelineEntryResult struct {
	Success bool         `json:"success"`
	Brand   domain.Brand `json:"brand"`
	Message string       `json:"message"`
}

func (r *Registry) createPipelineEntry(ctx context.Context, in PipelineEntryInput) (any, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, failf("name is required")
	}
	b, err := r.engine.CreateBrand(ctx, r.actor(), engine.BrandCreateOptions{
		Name:           in.Name,
		Industry:       in.Industry,
		Website:        in.Website,
		ContactName:    in.ContactName,
		ContactTitle:   in.ContactTitle,
		ContactEmail:   in.ContactEmail,
		Source:         in.Source,
		EstimatedValue: in.EstimatedValue,
		PipelineStage:  in.PipelineStage,
		Notes:          in.Notes,
	})
	if err != nil {
		return nil, err
	}
	return PipelineEntryResult{
		Success: true,
		Brand:   b,
		Message: fmt.Sprintf("Added %s to the pipeline in stage %s.", b.Name, b.PipelineStage),
	}, nil
}

type StageUpdateInput struct {
	BrandName string `json:"brandName" doc:"Full or partial brand name" validate:"required,max=200"`
	NewStage  string `json:"newStage" enum:"research,outreach,negotiation,contracted,active,completed,lost" validate:"required,oneof=research outreach negotiation contracted active completed lost"`
	Reason    string `json:"reason,omitempty" doc:"Why the brand moved" validate:"max=1000"`
}

type StageUpdateResult struct {
	Success  bool   `json:"success"`
	BrandID  string `json:"brandId"`
	Brand    string `json:"brand"`
	OldStage string `json:"oldStage"`
	NewStage string `json:"newStage"`
	Message  string `json:"message"`
}

func (r *Registry) updatePipelineStage(ctx context.Context, in StageUpdateInput) (any, error) {
	res, err := r.engine.ChangeStage(ctx, r.actor(), in.BrandName, in.NewStage, in.Reason)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, noBrand(in.BrandName)
	}
	if err != nil {
		return nil, err
	}
	out := StageUpdateResult{
		Success:  true,
		BrandID:  res.Brand.ID,
		Brand:    res.Brand.Name,
		OldStage: res.OldStage,
		NewStage: res.NewStage,
	}
	if res.Changed {
		out.Message = fmt.Sprintf("Moved %s from %s to %s.", res.Brand.Name, res.OldStage, res.NewStage)
	} else {
		out.Message = fmt.Sprintf("%s is already in %s; nothing changed.", res.Brand.Name, res.NewStage)
	}
	return out, nil
}

type DraftEmailInput struct {
	BrandName string `json:"brandName" doc:"Brand that must already be in the pipeline" validate:"required,max=200"`
	Subject   string `json:"subject" validate:"required,max=500"`
	Body      string `json:"body" validate:"required,max=20000"`
	Direction string `json:"direction,omitempty" enum:"outbound,inbound" doc:"Defaults to outbound" validate:"omitempty,oneof=outbound inbound"`
}

type DraftEmailResult struct {
	Success bool         `json:"success"`
	Email   domain.Email `json:"email"`
	Message string       `json:"message"`
}

func (r *Registry) draftEmail(ctx context.Context, in DraftEmailInput) (any, error) {
	em, b, err := r.engine.DraftEmail(ctx, r.actor(), engine.EmailDraftOptions{
		BrandName: in.BrandName,
		Subject:   in.Subject,
		Body:      in.Body,
		Direction: in.Direction,
	})
	if errors.Is(err, repo.ErrNotFound) {
		return nil, noBrand(in.BrandName)
	}
	if err != nil {
		return nil, err
	}
	msg := fmt.Sprintf("Saved draft %q for %s to %s.", em.Subject, b.Name, em.ToEmail)
	if em.ToEmail == "" {
		msg = fmt.Sprintf("Saved draft %q for %s. No contact email is on file, so the recipient is empty.", em.Subject, b.Name)
	}
	return DraftEmailResult{Success: true, Email: em, Message: msg}, nil
}

type CampaignInput struct {
	BrandName    string   `json:"brandName" doc:"Brand that must already be in the pipeline" validate:"required,max=200"`
	CampaignName string   `json:"campaignName" validate:"required,max=200"`
	Brief        string   `json:"brief,omitempty" validate:"max=10000"`
	Fee          *float64 `json:"fee,omitempty" validate:"omitempty,gte=0"`
	StartDate    string   `json:"startDate,omitempty" doc:"YYYY-MM-DD" validate:"omitempty,datetime=2006-01-02"`
	EndDate      string   `json:"endDate,omitempty" doc:"YYYY-MM-DD" validate:"omitempty,datetime=2006-01-02"`
	PaymentTerms string   `json:"paymentTerms,omitempty" validate:"max=500"`
	UsageRights  string   `json:"usageRights,omitempty" validate:"max=500"`
	Exclusivity  string   `json:"exclusivity,omitempty" validate:"max=500"`
}

type CampaignResult struct {
	Success  bool            `json:"success"`
	Campaign domain.Campaign `json:"campaign"`
	Message  string          `json:"message"`
}

func (r *Registry) createCampaign(ctx context.Context, in CampaignInput) (any, error) {
	if strings.TrimSpace(in.CampaignName) == "" {
		return nil, failf("campaignName is required")
	}
	c, err := r.engine.CreateCampaign(ctx, r.actor(), engine.CampaignCreateOptions{
		BrandName:    in.BrandName,
		Name:         in.CampaignName,
		Brief:        in.Brief,
		Fee:          in.Fee,
		StartDate:    in.StartDate,
		EndDate:      in.EndDate,
		PaymentTerms: in.PaymentTerms,
		UsageRights:  in.UsageRights,
		Exclusivity:  in.Exclusivity,
	})
	if errors.Is(err, repo.ErrNotFound) {
		return nil, noBrand(in.BrandName)
	}
	if err != nil {
		return nil, err
	}
	return CampaignResult{
		Success:  true,
		Campaign: c,
		Message:  fmt.Sprintf("Created draft campaign %s for %s.", c.Name, c.BrandName),
	}, nil
}

func (r *Registry) actor() engine.Actor {
	return engine.Actor{WorkspaceID: r.scope.WorkspaceID, UserID: r.scope.UserID}
}
