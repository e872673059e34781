package server

import (
	"creatordesk/internal/domain"
)

// Request payloads

type ChatMessage struct {
	Role    string `json:"role" enum:"user,assistant"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Messages       []ChatMessage `json:"messages" minItems:"1"`
	ConversationID string        `json:"conversationId,omitempty"`
}

type RenameConversationRequest struct {
	Title string `json:"title"`
}

// SetCredentialRequest carries a provider key. The key is validated by hand
// so that it never appears in validation error details.
type SetCredentialRequest struct {
	Provider string `json:"provider" enum:"anthropic,openai"`
	APIKey   string `json:"apiKey"`
}

type PlatformStatRequest struct {
	Platform       string   `json:"platform" minLength:"1"`
	Handle         string   `json:"handle,omitempty"`
	Followers      int64    `json:"followers" minimum:"0"`
	AvgViews       int64    `json:"avgViews" minimum:"0"`
	EngagementRate *float64 `json:"engagementRate,omitempty" minimum:"0"`
}

type ProfileRequest struct {
	DisplayName string                `json:"displayName" minLength:"1"`
	Niche       string                `json:"niche,omitempty"`
	Bio         string                `json:"bio,omitempty"`
	Audience    string                `json:"audience,omitempty"`
	RateCard    string                `json:"rateCard,omitempty"`
	Platforms   []PlatformStatRequest `json:"platforms,omitempty"`
}

// Response payloads

type WhoAmIResponse struct {
	User      domain.User      `json:"user"`
	Workspace domain.Workspace `json:"workspace"`
	Source    string           `json:"source" enum:"jwt,api_key"`
}

type ConversationList struct {
	Items []domain.Conversation `json:"items"`
}

// CredentialStatus never includes the key itself.
type CredentialStatus struct {
	Provider   string `json:"provider,omitempty"`
	Configured bool   `json:"configured"`
	Hint       string `json:"hint,omitempty"`
	UpdatedAt  string `json:"updatedAt,omitempty"`
}

type paginatedActivities struct {
	Items      []domain.Activity `json:"items"`
	NextCursor string            `json:"nextCursor,omitempty"`
}

func credentialStatus(c domain.Credential) CredentialStatus {
	return CredentialStatus{
		Provider:   c.Provider,
		Configured: true,
		Hint:       c.Hint,
		UpdatedAt:  c.UpdatedAt,
	}
}

func profileFromRequest(req ProfileRequest) domain.CreatorProfile {
	p := domain.CreatorProfile{
		DisplayName: req.DisplayName,
		Niche:       req.Niche,
		Bio:         req.Bio,
		Audience:    req.Audience,
		RateCard:    req.RateCard,
		Platforms:   []domain.PlatformStat{},
	}
	for _, s := range req.Platforms {
		p.Platforms = append(p.Platforms, domain.PlatformStat{
			Platform:       s.Platform,
			Handle:         s.Handle,
			Followers:      s.Followers,
			AvgViews:       s.AvgViews,
			EngagementRate: s.EngagementRate,
		})
	}
	return p
}
