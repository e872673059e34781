package tools

import (
	"context"
	"errors"
	"strings"

	"creatordesk/internal/domain"
	"creatordesk/internal/repo"
)

const (
	recentLimit       = 5
	campaignListLimit = 10
)

type PipelineStatusInput struct{}

type StageSummary struct {
	Count int     `json:"count"`
	Value float64 `json:"value"`
}

type OverdueFollowUp struct {
	BrandID        string `json:"brandId"`
	Name           string `json:"name"`
	PipelineStage  string `json:"pipelineStage"`
	NextFollowUpAt string `json:"nextFollowUpAt"`
	ContactEmail   string `json:"contactEmail,omitempty"`
}

type PipelineStatus struct {
	TotalBrands        int                     `json:"totalBrands"`
	TotalPipelineValue float64                 `json:"totalPipelineValue"`
	Stages             map[string]StageSummary `json:"stages"`
	OverdueFollowUps   []OverdueFollowUp       `json:"overdueFollowUps"`
}

func (r *Registry) pipelineStatus(ctx context.Context, _ PipelineStatusInput) (any, error) {
	brands, err := r.repo.ListBrands(ctx, r.scope.WorkspaceID)
	if err != nil {
		return nil, err
	}
	now := domain.FormatTime(r.now())
	out := PipelineStatus{
		Stages:           map[string]StageSummary{},
		OverdueFollowUps: []OverdueFollowUp{},
	}
	for _, b := range brands {
		out.TotalBrands++
		s := out.Stages[b.PipelineStage]
		s.Count++
		if b.EstimatedValue != nil {
			s.Value += *b.EstimatedValue
			out.TotalPipelineValue += *b.EstimatedValue
		}
		out.Stages[b.PipelineStage] = s
		if b.NextFollowUpAt != nil && *b.NextFollowUpAt < now {
			out.OverdueFollowUps = append(out.OverdueFollowUps, OverdueFollowUp{
				BrandID:        b.ID,
				Name:           b.Name,
				PipelineStage:  b.PipelineStage,
				NextFollowUpAt: *b.NextFollowUpAt,
				ContactEmail:   b.ContactEmail,
			})
		}
	}
	return out, nil
}

type BrandDetailsInput struct {
	BrandName string `json:"brandName,omitempty" doc:"Full or partial brand name, case-insensitive" validate:"max=200"`
	BrandID   string `json:"brandId,omitempty" doc:"Exact brand id; takes precedence over brandName" validate:"max=100"`
}

type BrandDetails struct {
	Brand           domain.Brand      `json:"brand"`
	RecentCampaigns []domain.Campaign `json:"recentCampaigns"`
	RecentEmails    []domain.Email    `json:"recentEmails"`
}

func (r *Registry) brandDetails(ctx context.Context, in BrandDetailsInput) (any, error) {
	var (
		b   domain.Brand
		err error
	)
	switch {
	case strings.TrimSpace(in.BrandID) != "":
		b, err = r.repo.GetBrand(ctx, nil, r.scope.WorkspaceID, strings.TrimSpace(in.BrandID))
		if errors.Is(err, repo.ErrNotFound) {
			return nil, failf("No brand found with id %q.", in.BrandID)
		}
	case strings.TrimSpace(in.BrandName) != "":
		b, err = r.repo.FindBrand(ctx, nil, r.scope.WorkspaceID, in.BrandName)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, noBrand(in.BrandName)
		}
	default:
		return nil, failf("Provide brandName or brandId.")
	}
	if err != nil {
		return nil, err
	}
	out := BrandDetails{Brand: b}
	if out.RecentCampaigns, err = r.repo.RecentCampaignsForBrand(ctx, r.scope.WorkspaceID, b.ID, recentLimit); err != nil {
		return nil, err
	}
	if out.RecentEmails, err = r.repo.RecentEmailsForBrand(ctx, r.scope.WorkspaceID, b.ID, recentLimit); err != nil {
		return nil, err
	}
	if out.RecentCampaigns == nil {
		out.RecentCampaigns = []domain.Campaign{}
	}
	if out.RecentEmails == nil {
		out.RecentEmails = []domain.Email{}
	}
	return out, nil
}

type CampaignStatusInput struct {
	CampaignID   string `json:"campaignId,omitempty" doc:"Exact campaign id" validate:"max=100"`
	CampaignName string `json:"campaignName,omitempty" doc:"Full or partial campaign name" validate:"max=200"`
	BrandName    string `json:"brandName,omitempty" doc:"Full or partial name of the brand that owns the campaign" validate:"max=200"`
}

type CampaignDetail struct {
	Campaign     domain.Campaign      `json:"campaign"`
	Deliverables []domain.Deliverable `json:"deliverables"`
	Invoices     []domain.Invoice     `json:"invoices"`
}

type CampaignList struct {
	Campaigns []repo.CampaignSummary `json:"campaigns"`
	Count     int                    `json:"count"`
}

func (r *Registry) campaignStatus(ctx context.Context, in CampaignStatusInput) (any, error) {
	if id := strings.TrimSpace(in.CampaignID); id != "" {
		c, err := r.repo.GetCampaign(ctx, nil, r.scope.WorkspaceID, id)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, failf("No campaign found with id %q.", id)
		}
		if err != nil {
			return nil, err
		}
		out := CampaignDetail{Campaign: c}
		if out.Deliverables, err = r.repo.ListDeliverables(ctx, r.scope.WorkspaceID, c.ID); err != nil {
			return nil, err
		}
		if out.Invoices, err = r.repo.ListInvoices(ctx, r.scope.WorkspaceID, c.ID); err != nil {
			return nil, err
		}
		if out.Deliverables == nil {
			out.Deliverables = []domain.Deliverable{}
		}
		if out.Invoices == nil {
			out.Invoices = []domain.Invoice{}
		}
		return out, nil
	}

	f := repo.CampaignFilters{
		Name:      strings.TrimSpace(in.CampaignName),
		BrandName: strings.TrimSpace(in.BrandName),
		Limit:     campaignListLimit,
	}
	list, err := r.repo.SearchCampaigns(ctx, r.scope.WorkspaceID, f)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 && (f.Name != "" || f.BrandName != "") {
		return nil, failf("No campaigns found matching %s.", describeCampaignFilter(f))
	}
	if list == nil {
		list = []repo.CampaignSummary{}
	}
	return CampaignList{Campaigns: list, Count: len(list)}, nil
}

func describeCampaignFilter(f repo.CampaignFilters) string {
	var parts []string
	if f.Name != "" {
		parts = append(parts, "name \""+f.Name+"\"")
	}
	if f.BrandName != "" {
		parts = append(parts, "brand \""+f.BrandName+"\"")
	}
	return strings.Join(parts, " and ")
}
