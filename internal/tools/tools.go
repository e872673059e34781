// Package tools is the workspace-scoped catalogue of operations the chat
// model may invoke. A Registry is bound to one workspace at construction;
// no tool input can name or override it.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"creatordesk/internal/engine"
	"creatordesk/internal/engine/auth"
	"creatordesk/internal/llm"
	"creatordesk/internal/repo"
)

// Tool names exposed to the model.
const (
	GetPipelineStatus   = "get_pipeline_status"
	GetBrandDetails     = "get_brand_details"
	GetCampaignStatus   = "get_campaign_status"
	CreatePipelineEntry = "create_pipeline_entry"
	UpdatePipelineStage = "update_pipeline_stage"
	DraftEmail          = "draft_email"
	GeneratePitch       = "generate_pitch"
	CreateCampaign      = "create_campaign"
)

// Result is the JSON payload handed back to the model. IsError is set when
// the payload is an {"error": ...} object.
type Result struct {
	Content string
	IsError bool
}

// Config holds what a Registry is closed over.
type Config struct {
	Scope   auth.Scope
	Engine  engine.Engine
	Fetcher *Fetcher
	Logger  *zap.Logger
	Now     func() time.Time
}

type handler func(ctx context.Context, raw json.RawMessage) (any, error)

type Registry struct {
	scope    auth.Scope
	engine   engine.Engine
	repo     repo.Repo
	fetcher  *Fetcher
	log      *zap.Logger
	now      func() time.Time
	validate *validator.Validate
	schemas  huma.Registry

	defs     []llm.ToolDefinition
	handlers map[string]handler
}

// New builds the registry for one workspace. It fails when the scope has no
// workspace id so that no tool can ever run unscoped.
func New(cfg Config) (*Registry, error) {
	if strings.TrimSpace(cfg.Scope.WorkspaceID) == "" {
		return nil, errors.New("tools: workspace id required")
	}
	r := &Registry{
		scope:    cfg.Scope,
		engine:   cfg.Engine,
		repo:     cfg.Engine.Repo,
		fetcher:  cfg.Fetcher,
		log:      cfg.Logger,
		now:      cfg.Now,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		schemas:  huma.NewMapRegistry("#/$defs/", huma.DefaultSchemaNamer),
		handlers: map[string]handler{},
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	if r.now == nil {
		r.now = time.Now
	}
	r.validate.RegisterTagNameFunc(jsonFieldName)

	register(r, GetPipelineStatus,
		"Summarize the creator's brand pipeline: brand counts and summed estimated value per stage, total pipeline value, and brands whose follow-up date has passed.",
		r.pipelineStatus)
	register(r, GetBrandDetails,
		"Look up one brand in the pipeline by (partial, case-insensitive) name or exact id. Returns the brand with its 5 most recent campaigns and emails.",
		r.brandDetails)
	register(r, GetCampaignStatus,
		"Look up campaigns. Give campaignId for one full record with deliverables and invoices, or filter by campaignName and/or brandName (partial match) for up to 10 summaries. With no filters, returns the 10 most recent campaigns.",
		r.campaignStatus)
	register(r, CreatePipelineEntry,
		"Add a new brand to the pipeline. Stage defaults to research.",
		r.createPipelineEntry)
	register(r, UpdatePipelineStage,
		"Move an existing brand to another pipeline stage. Moving a brand to the stage it is already in does nothing.",
		r.updatePipelineStage)
	register(r, DraftEmail,
		"Save a draft email for a brand. The brand must already exist in the pipeline; add it with create_pipeline_entry first. The draft is addressed to the brand's contact email when one is on file.",
		r.draftEmail)
	register(r, GeneratePitch,
		"Gather context for writing a pitch: brand info, the brand website summary when reachable, the creator profile with platform stats, and past case studies. Write the pitch yourself from the returned context.",
		r.generatePitch)
	register(r, CreateCampaign,
		"Create a draft campaign for a brand that already exists in the pipeline.",
		r.createCampaign)
	return r, nil
}

// Definitions returns the tool catalogue in registration order.
func (r *Registry) Definitions() []llm.ToolDefinition {
	out := make([]llm.ToolDefinition, len(r.defs))
	copy(out, r.defs)
	return out
}

// Execute runs one tool call. Unknown tools, malformed input, validation
// failures and lookups that match nothing come back as error results; only
// infrastructure faults are returned as errors.
func (r *Registry) Execute(ctx context.Context, name string, input json.RawMessage) (Result, error) {
	h, ok := r.handlers[name]
	if !ok {
		return errorResult(fmt.Sprintf("Unknown tool %q.", name)), nil
	}
	out, err := h(ctx, input)
	if err != nil {
		var ue userError
		if errors.As(err, &ue) {
			r.log.Debug("tool rejected call",
				zap.String("tool", name),
				zap.String("workspace_id", r.scope.WorkspaceID),
				zap.String("reason", ue.msg))
			return errorResult(ue.msg), nil
		}
		return Result{}, fmt.Errorf("%s: %w", name, err)
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return Result{}, fmt.Errorf("%s: encode result: %w", name, err)
	}
	return Result{Content: string(raw)}, nil
}

// userError is a failure the model should read and relay.
type userError struct{ msg string }

func (e userError) Error() string { return e.msg }

func failf(format string, args ...any) error {
	return userError{msg: fmt.Sprintf(format, args...)}
}

func errorResult(msg string) Result {
	raw, _ := json.Marshal(map[string]string{"error": msg})
	return Result{Content: string(raw), IsError: true}
}

func noBrand(name string) error {
	return failf("No brand found matching %q. The brand must be in the pipeline first; add it with %s.", name, CreatePipelineEntry)
}

// register binds a typed handler. Input is decoded into T and validated
// before fn runs.
func register[T any](r *Registry, name, description string, fn func(context.Context, T) (any, error)) {
	var zero T
	r.defs = append(r.defs, llm.ToolDefinition{
		Name:        name,
		Description: description,
		InputSchema: r.schemaFor(reflect.TypeOf(zero)),
	})
	r.handlers[name] = func(ctx context.Context, raw json.RawMessage) (any, error) {
		var in T
		if len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, &in); err != nil {
				return nil, failf("Invalid input for %s: %v", name, err)
			}
		}
		if err := r.validate.Struct(in); err != nil {
			return nil, failf("Invalid input for %s: %s", name, describeValidation(err))
		}
		return fn(ctx, in)
	}
}

func (r *Registry) schemaFor(t reflect.Type) map[string]any {
	s := huma.SchemaFromType(r.schemas, t)
	raw, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("tools: schema for %s: %v", t, err))
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(fmt.Sprintf("tools: schema for %s: %v", t, err))
	}
	delete(out, "$schema")
	if _, ok := out["properties"]; !ok {
		out["properties"] = map[string]any{}
	}
	return out
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fe.Field()+" is required")
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", ")))
		case "email":
			parts = append(parts, fe.Field()+" must be an email address")
		case "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		case "gte":
			parts = append(parts, fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
