package desksdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	ConversationHeader = "X-Conversation-Id"
	NDJSONContentType  = "application/x-ndjson"
	ErrorMarker        = "\n\n[error] "
)

// Client is a minimal creatordesk HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	// StreamClient serves chat turns. It must not carry a total timeout;
	// cancel the context instead.
	StreamClient *http.Client
	Timeout      time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v1",
		Timeout:  10 * time.Second,
	}
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type Workspace struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Me struct {
	User      User      `json:"user"`
	Workspace Workspace `json:"workspace"`
	Source    string    `json:"source"`
}

// Message is one stored conversation message.
type Message struct {
	ID        string `json:"id,omitempty"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt,omitempty"`
}

type Conversation struct {
	ID        string    `json:"id"`
	Title     *string   `json:"title"`
	CreatedAt string    `json:"createdAt"`
	UpdatedAt string    `json:"updatedAt"`
	Messages  []Message `json:"messages,omitempty"`
}

type CredentialStatus struct {
	Provider   string `json:"provider,omitempty"`
	Configured bool   `json:"configured"`
	Hint       string `json:"hint,omitempty"`
	UpdatedAt  string `json:"updatedAt,omitempty"`
}

type PlatformStat struct {
	Platform       string   `json:"platform"`
	Handle         string   `json:"handle,omitempty"`
	Followers      int64    `json:"followers"`
	AvgViews       int64    `json:"avgViews"`
	EngagementRate *float64 `json:"engagementRate,omitempty"`
}

type Profile struct {
	DisplayName string         `json:"displayName"`
	Niche       string         `json:"niche,omitempty"`
	Bio         string         `json:"bio,omitempty"`
	Audience    string         `json:"audience,omitempty"`
	RateCard    string         `json:"rateCard,omitempty"`
	Platforms   []PlatformStat `json:"platforms"`
	UpdatedAt   string         `json:"updatedAt,omitempty"`
}

// Activity represents an audit log entry.
type Activity struct {
	Seq         int64          `json:"seq"`
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Description string         `json:"description"`
	BrandID     *string        `json:"brandId,omitempty"`
	CampaignID  *string        `json:"campaignId,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   string         `json:"createdAt"`
}

// PaginatedActivities wraps list responses with cursors.
type PaginatedActivities struct {
	Items      []Activity `json:"items"`
	NextCursor string     `json:"nextCursor"`
}

// APIError wraps non-2xx responses. Code and Message come from the error
// envelope when the body carries one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Me returns the authenticated user and workspace.
func (c *Client) Me(ctx context.Context) (Me, error) {
	var resp Me
	err := c.do(ctx, http.MethodGet, "me", nil, &resp)
	return resp, err
}

// Conversations lists conversations, most recently updated first.
func (c *Client) Conversations(ctx context.Context, limit int) ([]Conversation, error) {
	endpoint := "conversations"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp struct {
		Items []Conversation `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// Conversation fetches a conversation with its ordered messages.
func (c *Client) Conversation(ctx context.Context, id string) (Conversation, error) {
	var resp Conversation
	err := c.do(ctx, http.MethodGet, "conversations/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

func (c *Client) RenameConversation(ctx context.Context, id, title string) (Conversation, error) {
	var resp Conversation
	err := c.do(ctx, http.MethodPatch, "conversations/"+url.PathEscape(id), map[string]string{"title": title}, &resp)
	return resp, err
}

func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "conversations/"+url.PathEscape(id), nil, nil)
}

// Credentials reports whether the workspace has a model key. The key itself
// is never returned.
func (c *Client) Credentials(ctx context.Context) (CredentialStatus, error) {
	var resp CredentialStatus
	err := c.do(ctx, http.MethodGet, "credentials", nil, &resp)
	return resp, err
}

func (c *Client) SetCredentials(ctx context.Context, provider, apiKey string) (CredentialStatus, error) {
	var resp CredentialStatus
	err := c.do(ctx, http.MethodPut, "credentials", map[string]string{"provider": provider, "apiKey": apiKey}, &resp)
	return resp, err
}

func (c *Client) ClearCredentials(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "credentials", nil, nil)
}

func (c *Client) Profile(ctx context.Context) (Profile, error) {
	var resp Profile
	err := c.do(ctx, http.MethodGet, "profile", nil, &resp)
	return resp, err
}

func (c *Client) SaveProfile(ctx context.Context, p Profile) (Profile, error) {
	var resp Profile
	err := c.do(ctx, http.MethodPut, "profile", p, &resp)
	return resp, err
}

// ActivitiesPage returns a paginated activity listing, newest first.
func (c *Client) ActivitiesPage(ctx context.Context, limit int, cursor, activityType string) (PaginatedActivities, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if activityType != "" {
		q.Set("type", activityType)
	}
	endpoint := "activities"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedActivities
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ChatRequest is the body of one chat turn.
type ChatRequest struct {
	Messages       []Message `json:"messages"`
	ConversationID string    `json:"conversationId,omitempty"`
}

// ChatStream is an open chat response. Body yields plain text, or NDJSON
// events when Framed is set. The caller must close Body.
type ChatStream struct {
	ConversationID string
	Framed         bool
	Body           io.ReadCloser
}

// Chat starts a turn and returns once response headers arrive. Errors the
// server reports before streaming come back as *APIError.
func (c *Client) Chat(ctx context.Context, req ChatRequest, framed bool) (*ChatStream, error) {
	for i := range req.Messages {
		req.Messages[i].ID = ""
		req.Messages[i].CreatedAt = ""
	}
	b, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("chat"), bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	c.headers(httpReq)
	if framed {
		httpReq.Header.Set("Accept", NDJSONContentType)
	} else {
		httpReq.Header.Set("Accept", "text/plain")
	}
	client := c.StreamClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, readAPIError(resp)
	}
	return &ChatStream{
		ConversationID: resp.Header.Get(ConversationHeader),
		Framed:         strings.HasPrefix(resp.Header.Get("Content-Type"), NDJSONContentType),
		Body:           resp.Body,
	}, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(endpoint), &buf)
	if err != nil {
		return err
	}
	c.headers(req)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return readAPIError(resp)
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) headers(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
}

func readAPIError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(b, &env) == nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
	}
	return apiErr
}

func (c *Client) url(endpoint string) string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base + "/" + strings.TrimLeft(endpoint, "/")
}
