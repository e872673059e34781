package tools_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creatordesk/internal/db"
	"creatordesk/internal/domain"
	"creatordesk/internal/engine"
	"creatordesk/internal/engine/auth"
	"creatordesk/internal/migrate"
	"creatordesk/internal/repo"
	"creatordesk/internal/tools"
)

type testEnv struct {
	Ctx    context.Context
	Engine engine.Engine
	Auth   auth.Service
	clock  *clock
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

// Now advances by one second per call so updated_at ordering is deterministic.
func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	c := &clock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	eng := engine.New(conn).WithClock(c.Now)
	return testEnv{
		Ctx:    context.Background(),
		Engine: eng,
		Auth:   auth.Service{Repo: eng.Repo, Now: c.Now},
		clock:  c,
	}
}

func (env testEnv) workspace(t *testing.T, email string) auth.Scope {
	t.Helper()
	s, err := env.Auth.Bootstrap(env.Ctx, email, "Creator", "Studio "+email)
	require.NoError(t, err)
	return auth.Scope{WorkspaceID: s.Workspace.ID, UserID: s.User.ID}
}

func (env testEnv) registry(t *testing.T, scope auth.Scope) *tools.Registry {
	t.Helper()
	r, err := tools.New(tools.Config{Scope: scope, Engine: env.Engine, Now: env.clock.Now})
	require.NoError(t, err)
	return r
}

func call(t *testing.T, r *tools.Registry, name string, input any) (map[string]any, tools.Result) {
	t.Helper()
	raw, err := json.Marshal(input)
	require.NoError(t, err)
	res, err := r.Execute(context.Background(), name, raw)
	require.NoError(t, err)
	out := map[string]any{}
	require.NoError(t, json.Unmarshal([]byte(res.Content), &out))
	return out, res
}

func repoFilters() repo.ActivityFilters { return repo.ActivityFilters{Limit: 50} }

func (env testEnv) activityCount(t *testing.T, ws string) int {
	t.Helper()
	n, err := env.Engine.Repo.CountActivities(env.Ctx, ws)
	require.NoError(t, err)
	return n
}

func TestNewRequiresWorkspace(t *testing.T) {
	env := newTestEnv(t)
	_, err := tools.New(tools.Config{Engine: env.Engine})
	require.Error(t, err)
}

func TestDefinitionsCoverCatalogue(t *testing.T) {
	env := newTestEnv(t)
	r := env.registry(t, env.workspace(t, "a@example.com"))
	defs := r.Definitions()
	names := make([]string, 0, len(defs))
	for _, d := range defs {
		names = append(names, d.Name)
		assert.Equal(t, "object", d.InputSchema["type"], d.Name)
		assert.NotEmpty(t, d.Description, d.Name)
		props, ok := d.InputSchema["properties"].(map[string]any)
		require.True(t, ok, d.Name)
		assert.NotContains(t, props, "workspaceId", d.Name)
	}
	assert.Equal(t, []string{
		tools.GetPipelineStatus, tools.GetBrandDetails, tools.GetCampaignStatus, tools.CreatePipelineEntry,
		tools.UpdatePipelineStage, tools.DraftEmail, tools.GeneratePitch, tools.CreateCampaign,
	}, names)

	for _, d := range defs {
		if d.Name != tools.UpdatePipelineStage {
			continue
		}
		props := d.InputSchema["properties"].(map[string]any)
		stage := props["newStage"].(map[string]any)
		assert.Len(t, stage["enum"], len(domain.PipelineStages))
		assert.ElementsMatch(t, []any{"brandName", "newStage"}, d.InputSchema["required"])
	}
}

func TestCreatePipelineEntryDefaultsToResearch(t *testing.T) {
	env := newTestEnv(t)
	scope := env.workspace(t, "a@example.com")
	r := env.registry(t, scope)

	out, res := call(t, r, tools.CreatePipelineEntry, map[string]any{"name": "Acme"})
	require.False(t, res.IsError, res.Content)
	assert.Equal(t, true, out["success"])
	brand := out["brand"].(map[string]any)
	assert.Equal(t, "research", brand["pipelineStage"])

	acts, err := env.Engine.Repo.ListActivities(env.Ctx, scope.WorkspaceID, repoFilters())
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, domain.ActivityBrandCreated, acts[0].Type)
	require.NotNil(t, acts[0].BrandID)
	assert.Equal(t, brand["id"], *acts[0].BrandID)
	require.NotNil(t, acts[0].UserID)
	assert.Equal(t, scope.UserID, *acts[0].UserID)
	assert.Equal(t, "agent", acts[0].Metadata["source"])
}

func TestUpdatePipelineStageSameStageIsNoop(t *testing.T) {
	env := newTestEnv(t)
	scope := env.workspace(t, "a@example.com")
	r := env.registry(t, scope)
	call(t, r, tools.CreatePipelineEntry, map[string]any{"name": "Acme"})
	before := env.activityCount(t, scope.WorkspaceID)

	out, res := call(t, r, tools.UpdatePipelineStage, map[string]any{"brandName": "acme", "newStage": "research"})
	require.False(t, res.IsError, res.Content)
	assert.Equal(t, true, out["success"])
	assert.Contains(t, out["message"], "already in research")
	assert.Equal(t, before, env.activityCount(t, scope.WorkspaceID))

	out, _ = call(t, r, tools.UpdatePipelineStage, map[string]any{"brandName": "ACME", "newStage": "outreach", "reason": "sent intro"})
	assert.Equal(t, "research", out["oldStage"])
	assert.Equal(t, "outreach", out["newStage"])
	assert.Equal(t, before+1, env.activityCount(t, scope.WorkspaceID))

	acts, err := env.Engine.Repo.ListActivities(env.Ctx, scope.WorkspaceID, repoFilters())
	require.NoError(t, err)
	assert.Equal(t, domain.ActivityStageChanged, acts[0].Type)
	assert.Equal(t, "research", acts[0].Metadata["oldStage"])
	assert.Equal(t, "outreach", acts[0].Metadata["newStage"])
	assert.Equal(t, "sent intro", acts[0].Metadata["reason"])
}

func TestEveryMutationLogsOneActivity(t *testing.T) {
	env := newTestEnv(t)
	scope := env.workspace(t, "a@example.com")
	r := env.registry(t, scope)

	steps := []struct {
		tool  string
		input map[string]any
		typ   string
	}{
		{tools.CreatePipelineEntry, map[string]any{"name": "Acme", "contactEmail": "deals@acme.test"}, domain.ActivityBrandCreated},
		{tools.UpdatePipelineStage, map[string]any{"brandName": "Acme", "newStage": "negotiation"}, domain.ActivityStageChanged},
		{tools.DraftEmail, map[string]any{"brandName": "Acme", "subject": "Hello", "body": "Let's work together"}, domain.ActivityEmailDrafted},
		{tools.CreateCampaign, map[string]any{"brandName": "Acme", "campaignName": "Spring launch"}, domain.ActivityCampaignCreated},
	}
	for _, step := range steps {
		before := env.activityCount(t, scope.WorkspaceID)
		_, res := call(t, r, step.tool, step.input)
		require.False(t, res.IsError, "%s: %s", step.tool, res.Content)
		assert.Equal(t, before+1, env.activityCount(t, scope.WorkspaceID), step.tool)
		acts, err := env.Engine.Repo.ListActivities(env.Ctx, scope.WorkspaceID, repoFilters())
		require.NoError(t, err)
		assert.Equal(t, step.typ, acts[0].Type, step.tool)
		assert.NotNil(t, acts[0].BrandID, step.tool)
	}
	acts, err := env.Engine.Repo.ListActivities(env.Ctx, scope.WorkspaceID, repoFilters())
	require.NoError(t, err)
	assert.NotNil(t, acts[0].CampaignID)
}

func TestNotFoundIsAValue(t *testing.T) {
	env := newTestEnv(t)
	scope := env.workspace(t, "a@example.com")
	r := env.registry(t, scope)

	cases := []struct {
		tool  string
		input map[string]any
	}{
		{tools.GetBrandDetails, map[string]any{"brandName": "Globex"}},
		{tools.GetCampaignStatus, map[string]any{"brandName": "Globex"}},
		{tools.UpdatePipelineStage, map[string]any{"brandName": "Globex", "newStage": "active"}},
		{tools.DraftEmail, map[string]any{"brandName": "Globex", "subject": "Hi", "body": "There"}},
		{tools.CreateCampaign, map[string]any{"brandName": "Globex", "campaignName": "Summer"}},
	}
	for _, tc := range cases {
		out, res := call(t, r, tc.tool, tc.input)
		assert.True(t, res.IsError, tc.tool)
		assert.Contains(t, out["error"], "Globex", tc.tool)
	}
	assert.Zero(t, env.activityCount(t, scope.WorkspaceID))
	n, err := env.Engine.Repo.CountEmails(env.Ctx, scope.WorkspaceID)
	require.NoError(t, err)
	assert.Zero(t, n)

	out, _ := call(t, r, tools.DraftEmail, map[string]any{"brandName": "Globex", "subject": "Hi", "body": "There"})
	assert.Regexp(t, `^No brand found matching "Globex"`, out["error"])
}

func TestTenantIsolation(t *testing.T) {
	env := newTestEnv(t)
	a := env.workspace(t, "a@example.com")
	b := env.workspace(t, "b@example.com")
	ra := env.registry(t, a)
	rb := env.registry(t, b)

	outA, _ := call(t, ra, tools.CreatePipelineEntry, map[string]any{"name": "Acme", "notes": "workspace A"})
	outB, _ := call(t, rb, tools.CreatePipelineEntry, map[string]any{"name": "Acme", "notes": "workspace B"})
	idA := outA["brand"].(map[string]any)["id"]
	idB := outB["brand"].(map[string]any)["id"]

	got, _ := call(t, ra, tools.GetBrandDetails, map[string]any{"brandName": "acme"})
	assert.Equal(t, idA, got["brand"].(map[string]any)["id"])
	assert.Equal(t, "workspace A", got["brand"].(map[string]any)["notes"])

	got, res := call(t, ra, tools.GetBrandDetails, map[string]any{"brandId": idB})
	assert.True(t, res.IsError)
	assert.Contains(t, got, "error")

	call(t, rb, tools.UpdatePipelineStage, map[string]any{"brandName": "Acme", "newStage": "lost"})
	got, _ = call(t, ra, tools.GetBrandDetails, map[string]any{"brandId": idA})
	assert.Equal(t, "research", got["brand"].(map[string]any)["pipelineStage"])

	status, _ := call(t, ra, tools.GetPipelineStatus, map[string]any{})
	assert.EqualValues(t, 1, status["totalBrands"])
	assert.Equal(t, 1, env.activityCount(t, a.WorkspaceID))
	assert.Equal(t, 2, env.activityCount(t, b.WorkspaceID))
}

func TestBrandNameTieBreak(t *testing.T) {
	env := newTestEnv(t)
	r := env.registry(t, env.workspace(t, "a@example.com"))
	call(t, r, tools.CreatePipelineEntry, map[string]any{"name": "Acme Studios"})
	call(t, r, tools.CreatePipelineEntry, map[string]any{"name": "Acme"})
	call(t, r, tools.CreatePipelineEntry, map[string]any{"name": "Acme Labs"})

	got, _ := call(t, r, tools.GetBrandDetails, map[string]any{"brandName": "ACME"})
	assert.Equal(t, "Acme", got["brand"].(map[string]any)["name"], "exact match wins")

	got, _ = call(t, r, tools.GetBrandDetails, map[string]any{"brandName": "cme"})
	assert.Equal(t, "Acme Labs", got["brand"].(map[string]any)["name"], "most recently updated wins")

	call(t, r, tools.UpdatePipelineStage, map[string]any{"brandName": "studios", "newStage": "outreach"})
	got, _ = call(t, r, tools.GetBrandDetails, map[string]any{"brandName": "cme"})
	assert.Equal(t, "Acme Studios", got["brand"].(map[string]any)["name"])
}

func TestBrandLookupFoldsNonASCIICase(t *testing.T) {
	env := newTestEnv(t)
	r := env.registry(t, env.workspace(t, "a@example.com"))
	call(t, r, tools.CreatePipelineEntry, map[string]any{"name": "Émile Co"})
	call(t, r, tools.CreatePipelineEntry, map[string]any{"name": "ÉMILE"})
	call(t, r, tools.CreatePipelineEntry, map[string]any{"name": "Émile Studio"})

	got, res := call(t, r, tools.GetBrandDetails, map[string]any{"brandName": "émile co"})
	require.False(t, res.IsError, res.Content)
	assert.Equal(t, "Émile Co", got["brand"].(map[string]any)["name"])

	got, _ = call(t, r, tools.GetBrandDetails, map[string]any{"brandName": "émile"})
	assert.Equal(t, "ÉMILE", got["brand"].(map[string]any)["name"], "exact match wins regardless of case")

	moved, res := call(t, r, tools.UpdatePipelineStage, map[string]any{"brandName": "STUDIO", "newStage": "outreach"})
	require.False(t, res.IsError, res.Content)
	assert.Equal(t, "Émile Studio", moved["brand"])
	assert.Equal(t, "research", moved["oldStage"])

	call(t, r, tools.CreateCampaign, map[string]any{"brandName": "émile co", "campaignName": "Ötzi Trail"})
	list, res := call(t, r, tools.GetCampaignStatus, map[string]any{"campaignName": "ötzi", "brandName": "ÉMILE CO"})
	require.False(t, res.IsError, res.Content)
	assert.EqualValues(t, 1, list["count"])
}

func TestPipelineStatusEmptyWorkspace(t *testing.T) {
	env := newTestEnv(t)
	r := env.registry(t, env.workspace(t, "a@example.com"))
	_, res := call(t, r, tools.GetPipelineStatus, map[string]any{})
	assert.JSONEq(t, `{"totalBrands":0,"totalPipelineValue":0,"stages":{},"overdueFollowUps":[]}`, res.Content)
}

func TestPipelineStatusAggregates(t *testing.T) {
	env := newTestEnv(t)
	scope := env.workspace(t, "a@example.com")
	r := env.registry(t, scope)
	out, _ := call(t, r, tools.CreatePipelineEntry, map[string]any{"name": "Acme", "estimatedValue": 1000})
	call(t, r, tools.CreatePipelineEntry, map[string]any{"name": "Globex", "estimatedValue": 2500.5, "pipelineStage": "negotiation"})
	call(t, r, tools.CreatePipelineEntry, map[string]any{"name": "Initech"})

	past := domain.FormatTime(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	acmeID := out["brand"].(map[string]any)["id"].(string)
	require.NoError(t, env.Engine.Repo.SetBrandFollowUp(env.Ctx, nil, scope.WorkspaceID, acmeID, &past))

	status, _ := call(t, r, tools.GetPipelineStatus, nil)
	assert.EqualValues(t, 3, status["totalBrands"])
	assert.InDelta(t, 3500.5, status["totalPipelineValue"], 0.001)
	stages := status["stages"].(map[string]any)
	assert.Len(t, stages, 2)
	research := stages["research"].(map[string]any)
	assert.EqualValues(t, 2, research["count"])
	assert.EqualValues(t, 1000, research["value"])
	overdue := status["overdueFollowUps"].([]any)
	require.Len(t, overdue, 1)
	assert.Equal(t, "Acme", overdue[0].(map[string]any)["name"])
}

func TestDraftEmailWithoutContactUsesEmptyRecipient(t *testing.T) {
	env := newTestEnv(t)
	r := env.registry(t, env.workspace(t, "a@example.com"))
	call(t, r, tools.CreatePipelineEntry, map[string]any{"name": "Acme"})
	call(t, r, tools.CreatePipelineEntry, map[string]any{"name": "Globex", "contactEmail": "pr@globex.test"})

	out, _ := call(t, r, tools.DraftEmail, map[string]any{"brandName": "acme", "subject": "Intro", "body": "Hi"})
	email := out["email"].(map[string]any)
	assert.Equal(t, "", email["toEmail"])
	assert.Equal(t, "draft", email["status"])
	assert.Equal(t, "outbound", email["direction"])

	out, _ = call(t, r, tools.DraftEmail, map[string]any{"brandName": "globex", "subject": "Intro", "body": "Hi"})
	assert.Equal(t, "pr@globex.test", out["email"].(map[string]any)["toEmail"])
}

func TestCreateCampaignIsDraftWithFee(t *testing.T) {
	env := newTestEnv(t)
	scope := env.workspace(t, "a@example.com")
	r := env.registry(t, scope)
	call(t, r, tools.CreatePipelineEntry, map[string]any{"name": "Acme"})
	before := env.activityCount(t, scope.WorkspaceID)

	out, res := call(t, r, tools.CreateCampaign, map[string]any{"brandName": "Acme", "campaignName": "Launch", "fee": 5000})
	require.False(t, res.IsError, res.Content)
	c := out["campaign"].(map[string]any)
	assert.Equal(t, "draft", c["status"])
	assert.EqualValues(t, 5000, c["fee"])
	assert.Equal(t, before+1, env.activityCount(t, scope.WorkspaceID))

	acts, err := env.Engine.Repo.ListActivities(env.Ctx, scope.WorkspaceID, repoFilters())
	require.NoError(t, err)
	assert.Equal(t, domain.ActivityCampaignCreated, acts[0].Type)
	require.NotNil(t, acts[0].CampaignID)
	assert.Equal(t, c["id"], *acts[0].CampaignID)
}

func TestCampaignStatusLookups(t *testing.T) {
	env := newTestEnv(t)
	scope := env.workspace(t, "a@example.com")
	r := env.registry(t, scope)
	call(t, r, tools.CreatePipelineEntry, map[string]any{"name": "Acme"})
	call(t, r, tools.CreatePipelineEntry, map[string]any{"name": "Globex"})
	out, _ := call(t, r, tools.CreateCampaign, map[string]any{"brandName": "Acme", "campaignName": "Spring launch"})
	call(t, r, tools.CreateCampaign, map[string]any{"brandName": "Globex", "campaignName": "Spring teaser"})
	id := out["campaign"].(map[string]any)["id"].(string)
	require.NoError(t, env.Engine.Repo.InsertDeliverable(env.Ctx, nil, scope.WorkspaceID, domain.Deliverable{ID: "d1", CampaignID: id, Title: "Reel"}))
	require.NoError(t, env.Engine.Repo.InsertInvoice(env.Ctx, nil, scope.WorkspaceID, domain.Invoice{ID: "i1", CampaignID: id, Number: "INV-001", Amount: 1200}))

	list, _ := call(t, r, tools.GetCampaignStatus, map[string]any{"campaignName": "spring"})
	assert.EqualValues(t, 2, list["count"])

	list, _ = call(t, r, tools.GetCampaignStatus, map[string]any{"campaignName": "spring", "brandName": "acme"})
	require.EqualValues(t, 1, list["count"])
	first := list["campaigns"].([]any)[0].(map[string]any)
	assert.EqualValues(t, 1, first["deliverableCount"])
	assert.EqualValues(t, 1, first["invoiceCount"])
	assert.Equal(t, "Acme", first["brandName"])

	detail, _ := call(t, r, tools.GetCampaignStatus, map[string]any{"campaignId": id})
	assert.Len(t, detail["deliverables"], 1)
	invoices := detail["invoices"].([]any)
	require.Len(t, invoices, 1)
	inv := invoices[0].(map[string]any)
	assert.Equal(t, "INV-001", inv["number"])
	assert.EqualValues(t, 1200, inv["amount"])
	assert.Equal(t, domain.StatusDraft, inv["status"])

	teaser, _ := call(t, r, tools.GetCampaignStatus, map[string]any{"campaignName": "teaser"})
	assert.EqualValues(t, 0, teaser["campaigns"].([]any)[0].(map[string]any)["invoiceCount"])

	all, _ := call(t, r, tools.GetCampaignStatus, map[string]any{})
	assert.EqualValues(t, 2, all["count"])

	_, res := call(t, r, tools.GetCampaignStatus, map[string]any{"campaignId": "nope"})
	assert.True(t, res.IsError)
}

func TestBrandDetailsNeedsAKey(t *testing.T) {
	env := newTestEnv(t)
	r := env.registry(t, env.workspace(t, "a@example.com"))
	out, res := call(t, r, tools.GetBrandDetails, map[string]any{})
	assert.True(t, res.IsError)
	assert.Contains(t, out["error"], "brandName or brandId")
}

func TestValidationRejectsBeforeExecute(t *testing.T) {
	env := newTestEnv(t)
	scope := env.workspace(t, "a@example.com")
	r := env.registry(t, scope)

	out, res := call(t, r, tools.CreatePipelineEntry, map[string]any{"industry": "games"})
	assert.True(t, res.IsError)
	assert.Contains(t, out["error"], "name is required")

	out, res = call(t, r, tools.UpdatePipelineStage, map[string]any{"brandName": "Acme", "newStage": "won"})
	assert.True(t, res.IsError)
	assert.Contains(t, out["error"], "newStage must be one of")

	res2, err := r.Execute(env.Ctx, tools.DraftEmail, json.RawMessage(`{"brandName": 12}`))
	require.NoError(t, err)
	assert.True(t, res2.IsError)

	res2, err = r.Execute(env.Ctx, "delete_everything", json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.True(t, res2.IsError)
	assert.Zero(t, env.activityCount(t, scope.WorkspaceID))
}

func TestGeneratePitchGathersContext(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head><title> Acme  Outdoors </title><meta name="description" content="Gear for trails"><script>var x=1;</script></head><body><h1>Built for   the wild</h1><p>Since 1999.</p></body></html>`))
	}))
	defer site.Close()

	env := newTestEnv(t)
	scope := env.workspace(t, "a@example.com")
	r, err := tools.New(tools.Config{Scope: scope, Engine: env.Engine, Fetcher: &tools.Fetcher{Client: site.Client(), Timeout: time.Second, MaxBytes: 4096}})
	require.NoError(t, err)

	rate := 4.2
	require.NoError(t, env.Engine.Repo.SaveProfile(env.Ctx, scope.WorkspaceID, domain.CreatorProfile{
		DisplayName: "Jo Trails",
		Niche:       "outdoors",
		Platforms:   []domain.PlatformStat{{Platform: "youtube", Handle: "@jotrails", Followers: 120000, AvgViews: 40000, EngagementRate: &rate}},
	}))
	call(t, r, tools.CreatePipelineEntry, map[string]any{"name": "Acme", "website": site.URL})
	call(t, r, tools.CreatePipelineEntry, map[string]any{"name": "Globex"})
	out, _ := call(t, r, tools.CreateCampaign, map[string]any{"brandName": "Globex", "campaignName": "Winter", "fee": 3000})
	require.NoError(t, env.Engine.Repo.UpdateCampaignStatus(env.Ctx, nil, scope.WorkspaceID, out["campaign"].(map[string]any)["id"].(string), domain.CampaignCompleted))
	before := env.activityCount(t, scope.WorkspaceID)

	pitch, res := call(t, r, tools.GeneratePitch, map[string]any{"brandName": "acme", "pitchType": "cold_outreach"})
	require.False(t, res.IsError, res.Content)
	assert.Equal(t, true, pitch["brandInPipeline"])
	website := pitch["website"].(map[string]any)
	assert.Equal(t, "Acme Outdoors", website["title"])
	assert.Equal(t, "Gear for trails", website["description"])
	assert.Equal(t, "Built for the wild Since 1999.", website["excerpt"])
	assert.Len(t, pitch["platformStats"], 1)
	studies := pitch["caseStudies"].([]any)
	require.Len(t, studies, 1)
	assert.Equal(t, "Globex", studies[0].(map[string]any)["brand"])
	assert.Equal(t, before, env.activityCount(t, scope.WorkspaceID))
}

func TestGeneratePitchSurvivesFetchFailure(t *testing.T) {
	env := newTestEnv(t)
	scope := env.workspace(t, "a@example.com")
	r, err := tools.New(tools.Config{Scope: scope, Engine: env.Engine, Fetcher: tools.NewFetcher(50*time.Millisecond, 1024)})
	require.NoError(t, err)
	call(t, r, tools.CreatePipelineEntry, map[string]any{"name": "Acme", "website": "http://127.0.0.1:1"})

	pitch, res := call(t, r, tools.GeneratePitch, map[string]any{"brandName": "Acme", "pitchType": "proposal"})
	require.False(t, res.IsError, res.Content)
	assert.NotContains(t, pitch, "website")
	assert.NotContains(t, pitch, "creator")

	pitch, res = call(t, r, tools.GeneratePitch, map[string]any{"brandName": "Unknown Co", "pitchType": "proposal"})
	require.False(t, res.IsError, res.Content)
	assert.Equal(t, false, pitch["brandInPipeline"])
	assert.Equal(t, "Unknown Co", pitch["brandName"])
}
