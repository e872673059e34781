package repo_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creatordesk/internal/db"
	"creatordesk/internal/domain"
	"creatordesk/internal/engine/auth"
	"creatordesk/internal/migrate"
	"creatordesk/internal/repo"
)

type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newRepo(t *testing.T) (repo.Repo, auth.Scope) {
	t.Helper()
	conn, err := db.Open(db.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	c := &stepClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	r := repo.Repo{DB: conn, Now: c.Now}
	s, err := auth.Service{Repo: r, Now: c.Now}.Bootstrap(context.Background(), "creator@example.com", "", "Studio")
	require.NoError(t, err)
	return r, auth.Scope{WorkspaceID: s.Workspace.ID, UserID: s.User.ID}
}

func TestConversationRoundTrip(t *testing.T) {
	ctx := context.Background()
	r, scope := newRepo(t)
	title := "pitch for acme"
	require.NoError(t, r.InsertConversation(ctx, domain.Conversation{ID: "c1", WorkspaceID: scope.WorkspaceID, UserID: scope.UserID, Title: &title}))
	require.NoError(t, r.InsertConversation(ctx, domain.Conversation{ID: "c2", WorkspaceID: scope.WorkspaceID, UserID: scope.UserID}))

	for i, m := range []domain.Message{
		{ID: "m1", Role: domain.RoleUser, Content: "write a pitch"},
		{ID: "m2", Role: domain.RoleAssistant, Content: "Here it is"},
		{ID: "m3", Role: domain.RoleUser, Content: "shorter"},
	} {
		m.ConversationID = "c1"
		_, err := r.AppendMessage(ctx, scope.WorkspaceID, scope.UserID, m)
		require.NoError(t, err, "message %d", i)
	}
	_, err := r.AppendMessage(ctx, scope.WorkspaceID, scope.UserID, domain.Message{ID: "bad", ConversationID: "c1", Role: "system"})
	assert.Error(t, err)

	conv, err := r.LoadConversation(ctx, scope.WorkspaceID, scope.UserID, "c1")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 3)
	assert.Equal(t, []string{"write a pitch", "Here it is", "shorter"}, []string{conv.Messages[0].Content, conv.Messages[1].Content, conv.Messages[2].Content})
	require.NotNil(t, conv.Title)
	assert.Equal(t, title, *conv.Title)

	list, err := r.ListConversations(ctx, scope.WorkspaceID, scope.UserID, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c1", list[0].ID, "appending a message bumps updatedAt")

	require.NoError(t, r.RenameConversation(ctx, scope.WorkspaceID, scope.UserID, "c2", "  "))
	c2, err := r.GetConversation(ctx, scope.WorkspaceID, scope.UserID, "c2")
	require.NoError(t, err)
	assert.Nil(t, c2.Title, "blank rename clears the title")

	require.NoError(t, r.DeleteConversation(ctx, scope.WorkspaceID, scope.UserID, "c1"))
	var n int
	require.NoError(t, r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE conversation_id='c1'`).Scan(&n))
	assert.Zero(t, n, "messages cascade")
	assert.ErrorIs(t, r.DeleteConversation(ctx, scope.WorkspaceID, scope.UserID, "c1"), repo.ErrNotFound)
}

func TestConversationsAreScopedToUser(t *testing.T) {
	ctx := context.Background()
	r, scope := newRepo(t)
	require.NoError(t, r.InsertConversation(ctx, domain.Conversation{ID: "c1", WorkspaceID: scope.WorkspaceID, UserID: scope.UserID}))

	_, err := r.GetConversation(ctx, scope.WorkspaceID, "someone-else", "c1")
	assert.ErrorIs(t, err, repo.ErrNotFound)
	_, err = r.GetConversation(ctx, "other-workspace", scope.UserID, "c1")
	assert.ErrorIs(t, err, repo.ErrNotFound)
	_, err = r.AppendMessage(ctx, "other-workspace", scope.UserID, domain.Message{ID: "m1", ConversationID: "c1", Role: domain.RoleUser, Content: "hi"})
	assert.ErrorIs(t, err, repo.ErrNotFound)
	assert.ErrorIs(t, r.RenameConversation(ctx, scope.WorkspaceID, "someone-else", "c1", "x"), repo.ErrNotFound)
	assert.ErrorIs(t, r.DeleteConversation(ctx, "other-workspace", scope.UserID, "c1"), repo.ErrNotFound)
}

func TestCredentialUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	r, scope := newRepo(t)
	_, err := r.GetCredential(ctx, scope.WorkspaceID)
	assert.ErrorIs(t, err, repo.ErrNotFound)

	require.NoError(t, r.UpsertCredential(ctx, domain.Credential{WorkspaceID: scope.WorkspaceID, Provider: "anthropic", SealedKey: "v1.a", Hint: "...aaaa"}))
	require.NoError(t, r.UpsertCredential(ctx, domain.Credential{WorkspaceID: scope.WorkspaceID, Provider: "openai", SealedKey: "v1.b", Hint: "...bbbb"}))
	c, err := r.GetCredential(ctx, scope.WorkspaceID)
	require.NoError(t, err)
	assert.Equal(t, "openai", c.Provider)
	assert.Equal(t, "v1.b", c.SealedKey)
	assert.NotEmpty(t, c.UpdatedAt)

	require.NoError(t, r.DeleteCredential(ctx, scope.WorkspaceID))
	assert.ErrorIs(t, r.DeleteCredential(ctx, scope.WorkspaceID), repo.ErrNotFound)
}

func TestAPIKeyLookupByHash(t *testing.T) {
	ctx := context.Background()
	r, scope := newRepo(t)
	key := "dsk_0123456789"
	require.NoError(t, r.InsertAPIKey(ctx, nil, domain.APIKey{ID: "k1", UserID: scope.UserID, KeyHash: repo.HashAPIKey(key)}))

	got, err := r.GetAPIKeyByHash(ctx, repo.HashAPIKey(" "+key+" "))
	require.NoError(t, err)
	assert.Equal(t, scope.UserID, got.UserID)
	_, err = r.GetAPIKeyByHash(ctx, repo.HashAPIKey("dsk_wrong"))
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestProfileSaveReplacesPlatforms(t *testing.T) {
	ctx := context.Background()
	r, scope := newRepo(t)
	_, err := r.GetProfile(ctx, scope.WorkspaceID)
	assert.ErrorIs(t, err, repo.ErrNotFound)

	rate := 4.2
	require.NoError(t, r.SaveProfile(ctx, scope.WorkspaceID, domain.CreatorProfile{
		DisplayName: "Sam Cooks",
		Niche:       "food",
		Platforms: []domain.PlatformStat{
			{Platform: "youtube", Handle: "@samcooks", Followers: 120000, AvgViews: 40000, EngagementRate: &rate},
			{Platform: "tiktok", Followers: 90000},
		},
	}))
	require.NoError(t, r.SaveProfile(ctx, scope.WorkspaceID, domain.CreatorProfile{
		DisplayName: "Sam Cooks",
		Platforms:   []domain.PlatformStat{{Platform: "youtube", Followers: 125000}},
	}))
	p, err := r.GetProfile(ctx, scope.WorkspaceID)
	require.NoError(t, err)
	assert.Empty(t, p.Niche)
	require.Len(t, p.Platforms, 1)
	assert.Equal(t, int64(125000), p.Platforms[0].Followers)
	assert.Nil(t, p.Platforms[0].EngagementRate)
}

func TestFindBrandFoldsUnicodeCase(t *testing.T) {
	ctx := context.Background()
	r, scope := newRepo(t)
	for _, b := range []domain.Brand{
		{ID: "b1", Name: "Ärzte Ohne Grenzen"},
		{ID: "b2", Name: "ärzte"},
	} {
		b.WorkspaceID = scope.WorkspaceID
		b.PipelineStage = domain.StageResearch
		require.NoError(t, r.InsertBrand(ctx, nil, b))
	}

	got, err := r.FindBrand(ctx, nil, scope.WorkspaceID, "OHNE grenzen")
	require.NoError(t, err)
	assert.Equal(t, "b1", got.ID)

	got, err = r.FindBrand(ctx, nil, scope.WorkspaceID, "ÄRZTE")
	require.NoError(t, err)
	assert.Equal(t, "b2", got.ID, "exact folded match ranks first")

	_, err = r.FindBrand(ctx, nil, scope.WorkspaceID, "Ærzte")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}
