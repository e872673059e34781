package tools

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"creatordesk/internal/domain"
	"creatordesk/internal/repo"
)

const caseStudyLimit = 5

type PitchInput struct {
	BrandName         string `json:"brandName" doc:"Brand to pitch; it does not need to be in the pipeline" validate:"required,max=200"`
	PitchType         string `json:"pitchType" enum:"cold_outreach,follow_up,proposal,renewal" validate:"required,oneof=cold_outreach follow_up proposal renewal"`
	AdditionalContext string `json:"additionalContext,omitempty" doc:"Anything the pitch should mention" validate:"max=5000"`
}

type CaseStudy struct {
	Campaign string   `json:"campaign"`
	Brand    string   `json:"brand"`
	Fee      *float64 `json:"fee,omitempty"`
	Brief    string   `json:"brief,omitempty"`
	EndDate  string   `json:"endDate,omitempty"`
}

// PitchContext is everything the model needs to write the pitch itself.
type PitchContext struct {
	PitchType         string                 `json:"pitchType"`
	BrandName         string                 `json:"brandName"`
	BrandInPipeline   bool                   `json:"brandInPipeline"`
	Brand             *domain.Brand          `json:"brand,omitempty"`
	Website           *PageSummary           `json:"website,omitempty"`
	Creator           *domain.CreatorProfile `json:"creator,omitempty"`
	PlatformStats     []domain.PlatformStat  `json:"platformStats"`
	CaseStudies       []CaseStudy            `json:"caseStudies"`
	AdditionalContext string                 `json:"additionalContext,omitempty"`
	Instructions      string                 `json:"instructions"`
}

func (r *Registry) generatePitch(ctx context.Context, in PitchInput) (any, error) {
	out := PitchContext{
		PitchType:         in.PitchType,
		BrandName:         strings.TrimSpace(in.BrandName),
		AdditionalContext: in.AdditionalContext,
		PlatformStats:     []domain.PlatformStat{},
		CaseStudies:       []CaseStudy{},
		Instructions:      "Write the " + strings.ReplaceAll(in.PitchType, "_", " ") + " pitch in your reply using this context. Cite real numbers from platformStats and caseStudies only; do not invent metrics.",
	}

	b, err := r.repo.FindBrand(ctx, nil, r.scope.WorkspaceID, in.BrandName)
	switch {
	case err == nil:
		out.BrandInPipeline = true
		out.Brand = &b
		out.BrandName = b.Name
	case errors.Is(err, repo.ErrNotFound):
	default:
		return nil, err
	}

	if out.Brand != nil && out.Brand.Website != "" && r.fetcher != nil {
		page, err := r.fetcher.Fetch(ctx, out.Brand.Website)
		if err != nil {
			r.log.Debug("brand website fetch failed",
				zap.String("workspace_id", r.scope.WorkspaceID),
				zap.String("brand_id", out.Brand.ID),
				zap.Error(err))
		} else {
			out.Website = &page
		}
	}

	profile, err := r.repo.GetProfile(ctx, r.scope.WorkspaceID)
	switch {
	case err == nil:
		out.Creator = &profile
		if len(profile.Platforms) > 0 {
			out.PlatformStats = profile.Platforms
		}
	case errors.Is(err, repo.ErrNotFound):
	default:
		return nil, err
	}

	done, err := r.repo.CompletedCampaigns(ctx, r.scope.WorkspaceID, caseStudyLimit)
	if err != nil {
		return nil, err
	}
	for _, c := range done {
		out.CaseStudies = append(out.CaseStudies, CaseStudy{
			Campaign: c.Name,
			Brand:    c.BrandName,
			Fee:      c.Fee,
			Brief:    c.Brief,
			EndDate:  c.EndDate,
		})
	}
	return out, nil
}
