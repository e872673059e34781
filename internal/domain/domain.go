package domain

import "time"

// TimeLayout is the fixed-width UTC layout used for every stored timestamp so
// lexical order matches chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Pipeline stages in lifecycle order.
const (
	StageResearch    = "research"
	StageOutreach    = "outreach"
	StageNegotiation = "negotiation"
	StageContracted  = "contracted"
	StageActive      = "active"
	StageCompleted   = "completed"
	StageLost        = "lost"
)

// PipelineStages lists every valid stage.
var PipelineStages = []string{
	StageResearch, StageOutreach, StageNegotiation, StageContracted, StageActive, StageCompleted, StageLost,
}

// ValidStage reports whether s is a known pipeline stage.
func ValidStage(s string) bool {
	for _, st := range PipelineStages {
		if st == s {
			return true
		}
	}
	return false
}

// Activity types appended by agent mutations.
const (
	ActivityBrandCreated    = "brand_created"
	ActivityStageChanged    = "stage_changed"
	ActivityEmailDrafted    = "email_drafted"
	ActivityCampaignCreated = "campaign_created"
)

const (
	StatusDraft       = "draft"
	CampaignCompleted = "completed"

	DirectionOutbound = "outbound"
	DirectionInbound  = "inbound"

	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"createdAt" format:"date-time"`
}

type Workspace struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt" format:"date-time"`
}

type Membership struct {
	WorkspaceID string `json:"workspaceId"`
	UserID      string `json:"userId"`
	Role        string `json:"role" enum:"owner,member"`
	CreatedAt   string `json:"createdAt" format:"date-time"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"-"`
	CreatedAt string `json:"createdAt" format:"date-time"`
}

// Credential is a workspace's sealed model-provider key. SealedKey is never
// serialized.
type Credential struct {
	WorkspaceID string `json:"workspaceId"`
	Provider    string `json:"provider"`
	SealedKey   string `json:"-"`
	Hint        string `json:"hint"`
	UpdatedAt   string `json:"updatedAt" format:"date-time"`
}

type Brand struct {
	ID             string   `json:"id"`
	WorkspaceID    string   `json:"workspaceId"`
	Name           string   `json:"name"`
	Industry       string   `json:"industry,omitempty"`
	Website        string   `json:"website,omitempty"`
	ContactName    string   `json:"contactName,omitempty"`
	ContactTitle   string   `json:"contactTitle,omitempty"`
	ContactEmail   string   `json:"contactEmail,omitempty"`
	ContactPhone   string   `json:"contactPhone,omitempty"`
	Source         string   `json:"source,omitempty"`
	EstimatedValue *float64 `json:"estimatedValue"`
	PipelineStage  string   `json:"pipelineStage"`
	Notes          string   `json:"notes,omitempty"`
	Tags           []string `json:"tags"`
	NextFollowUpAt *string  `json:"nextFollowUpAt,omitempty"`
	CreatedAt      string   `json:"createdAt"`
	UpdatedAt      string   `json:"updatedAt"`
}

type Campaign struct {
	ID           string   `json:"id"`
	WorkspaceID  string   `json:"workspaceId"`
	BrandID      string   `json:"brandId"`
	BrandName    string   `json:"brandName,omitempty"`
	Name         string   `json:"name"`
	Brief        string   `json:"brief,omitempty"`
	Fee          *float64 `json:"fee"`
	StartDate    string   `json:"startDate,omitempty"`
	EndDate      string   `json:"endDate,omitempty"`
	PaymentTerms string   `json:"paymentTerms,omitempty"`
	UsageRights  string   `json:"usageRights,omitempty"`
	Exclusivity  string   `json:"exclusivity,omitempty"`
	Status       string   `json:"status"`
	CreatedAt    string   `json:"createdAt"`
	UpdatedAt    string   `json:"updatedAt"`
}

type Deliverable struct {
	ID         string `json:"id"`
	CampaignID string `json:"campaignId"`
	Title      string `json:"title"`
	Platform   string `json:"platform,omitempty"`
	Status     string `json:"status"`
	DueDate    string `json:"dueDate,omitempty"`
	CreatedAt  string `json:"createdAt"`
}

type Invoice struct {
	ID         string  `json:"id"`
	CampaignID string  `json:"campaignId"`
	Number     string  `json:"number"`
	Amount     float64 `json:"amount"`
	Status     string  `json:"status"`
	DueDate    string  `json:"dueDate,omitempty"`
	CreatedAt  string  `json:"createdAt"`
}

type Email struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspaceId"`
	BrandID     string `json:"brandId"`
	Direction   string `json:"direction" enum:"outbound,inbound"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	ToEmail     string `json:"toEmail"`
	Status      string `json:"status"`
	CreatedAt   string `json:"createdAt"`
}

type Activity struct {
	Seq         int64          `json:"seq"`
	ID          string         `json:"id"`
	WorkspaceID string         `json:"workspaceId"`
	Type        string         `json:"type"`
	Description string         `json:"description"`
	BrandID     *string        `json:"brandId,omitempty"`
	CampaignID  *string        `json:"campaignId,omitempty"`
	UserID      *string        `json:"userId,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   string         `json:"createdAt" format:"date-time"`
}

type Conversation struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"-"`
	UserID      string    `json:"-"`
	Title       *string   `json:"title"`
	CreatedAt   string    `json:"createdAt" format:"date-time"`
	UpdatedAt   string    `json:"updatedAt" format:"date-time"`
	Messages    []Message `json:"messages,omitempty"`
}

type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"-"`
	Role           string `json:"role" enum:"user,assistant"`
	Content        string `json:"content"`
	CreatedAt      string `json:"createdAt" format:"date-time"`
}

type CreatorProfile struct {
	WorkspaceID string         `json:"-"`
	DisplayName string         `json:"displayName"`
	Niche       string         `json:"niche,omitempty"`
	Bio         string         `json:"bio,omitempty"`
	Audience    string         `json:"audience,omitempty"`
	RateCard    string         `json:"rateCard,omitempty"`
	Platforms   []PlatformStat `json:"platforms"`
	UpdatedAt   string         `json:"updatedAt,omitempty"`
}

type PlatformStat struct {
	Platform       string   `json:"platform"`
	Handle         string   `json:"handle,omitempty"`
	Followers      int64    `json:"followers"`
	AvgViews       int64    `json:"avgViews"`
	EngagementRate *float64 `json:"engagementRate,omitempty"`
}
