package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"creatordesk/internal/agent"
	"creatordesk/internal/domain"
	"creatordesk/internal/engine/auth"
	"creatordesk/internal/llm"
	"creatordesk/internal/repo"
	"creatordesk/internal/tools"
)

const (
	// ConversationHeader carries the conversation id of a chat response.
	ConversationHeader = "X-Conversation-Id"
	// NDJSONContentType opts a chat request into typed event framing.
	NDJSONContentType = "application/x-ndjson"
	// ErrorMarker precedes an inline error once the text stream has started.
	ErrorMarker = "\n\n[error] "

	titleRunes = 60
)

// Stream event types beyond the orchestrator's own.
const (
	EventError = "error"
	EventDone  = "done"
)

// StreamEvent is one NDJSON line of a framed chat response.
type StreamEvent struct {
	Type           string `json:"type" enum:"text-delta,tool-start,tool-result,error,done"`
	Text           string `json:"text,omitempty"`
	Tool           string `json:"tool,omitempty"`
	CallID         string `json:"callId,omitempty"`
	IsError        bool   `json:"isError,omitempty"`
	Code           string `json:"code,omitempty"`
	Message        string `json:"message,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}

var (
	errMissingCredentials = newAPIError(http.StatusPreconditionFailed, "missing_credentials",
		"No model API key is configured for this workspace. Add your API key in Settings.", nil)
	errUnreadableCredentials = newAPIError(http.StatusPreconditionFailed, "missing_credentials",
		"The saved model API key could not be read. Save your API key again in Settings.", nil)
)

type chatInput struct {
	Accept string `header:"Accept"`
	Body   ChatRequest
}

func registerChat(api huma.API, s *server) {
	huma.Register(api, huma.Operation{
		OperationID: "chat",
		Method:      http.MethodPost,
		Path:        "/chat",
		Summary:     "Run one chat turn",
		Description: "Streams the assistant answer as plain text, or as NDJSON events when the request accepts " + NDJSONContentType + ". The conversation id is returned in the " + ConversationHeader + " header.",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusPreconditionFailed,
			http.StatusFailedDependency,
			http.StatusBadGateway,
		},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Streamed answer",
				Headers: map[string]*huma.Param{
					ConversationHeader: {Schema: &huma.Schema{Type: huma.TypeString}},
				},
				Content: map[string]*huma.MediaType{
					"text/plain":      {Schema: &huma.Schema{Type: huma.TypeString}},
					NDJSONContentType: {Schema: &huma.Schema{Type: huma.TypeString}},
				},
			},
		},
	}, func(ctx context.Context, input *chatInput) (*huma.StreamResponse, error) {
		scope, authErr := scopeFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := s.prepareTurn(ctx, scope, input.Body)
		if err != nil {
			return nil, err
		}
		t.framed = wantsFraming(input.Accept)
		return &huma.StreamResponse{Body: t.stream}, nil
	})
}

// turn is the per-request state of one chat turn. Nothing in it outlives
// the request.
type turn struct {
	s              *server
	scope          auth.Scope
	orch           *agent.Orchestrator
	history        []llm.Message
	conversationID string
	isNew          bool
	title          string
	userText       string
	framed         bool
	log            *zap.Logger

	hctx      huma.Context
	committed bool
}

func (s *server) prepareTurn(ctx context.Context, scope auth.Scope, req ChatRequest) (*turn, error) {
	if len(req.Messages) == 0 {
		return nil, newAPIError(http.StatusBadRequest, "bad_request", "messages required", nil)
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != domain.RoleUser || strings.TrimSpace(last.Content) == "" {
		return nil, newAPIError(http.StatusBadRequest, "bad_request", "the last message must be a non-empty user message", nil)
	}

	t := &turn{s: s, scope: scope, userText: last.Content}
	if id := strings.TrimSpace(req.ConversationID); id != "" {
		if _, err := s.engine.Repo.GetConversation(ctx, scope.WorkspaceID, scope.UserID, id); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, newAPIError(http.StatusNotFound, "not_found", "conversation not found", map[string]any{"conversationId": id})
			}
			return nil, s.handleError(err)
		}
		t.conversationID = id
	} else {
		t.conversationID = uuid.NewString()
		t.isNew = true
		t.title = conversationTitle(req.Messages)
	}
	t.log = s.log.With(
		zap.String("workspace_id", scope.WorkspaceID),
		zap.String("conversation_id", t.conversationID))

	model, apiErr := s.modelFor(ctx, scope, t.log)
	if apiErr != nil {
		return nil, apiErr
	}
	registry, err := tools.New(tools.Config{
		Scope:   scope,
		Engine:  s.engine,
		Fetcher: tools.NewFetcher(s.cfg.Chat.FetchTimeout, s.cfg.Chat.FetchMaxBytes),
		Logger:  t.log,
		Now:     s.cfg.Now,
	})
	if err != nil {
		return nil, s.handleError(err)
	}
	t.orch = &agent.Orchestrator{
		Model:     model,
		Tools:     registry,
		System:    agent.SystemPrompt(s.now(), s.cfg.Chat.SystemPromptExtra),
		MaxRounds: s.cfg.Chat.MaxRounds,
		MaxTokens: s.cfg.Chat.MaxTokens,
		Logger:    t.log,
		Metrics:   s.cfg.Metrics,
		Now:       s.cfg.Now,
	}
	for _, m := range req.Messages {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		t.history = append(t.history, llm.Message{Role: llm.Role(m.Role), Text: m.Content})
	}
	return t, nil
}

// modelFor opens the workspace credential and builds its client. The
// decrypted key lives only for the duration of this call and the returned
// client.
func (s *server) modelFor(ctx context.Context, scope auth.Scope, log *zap.Logger) (llm.Client, huma.StatusError) {
	cred, err := s.engine.Repo.GetCredential(ctx, scope.WorkspaceID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, errMissingCredentials
	}
	if err != nil {
		return nil, s.handleError(err)
	}
	key, err := s.cfg.Sealer.Open(scope.WorkspaceID, cred.SealedKey)
	if err != nil {
		log.Warn("credential unusable", zap.String("provider", cred.Provider), zap.String("reason", credentialFailure(err)))
		return nil, errUnreadableCredentials
	}
	model := ""
	if cred.Provider == s.cfg.Chat.Provider {
		model = s.cfg.Chat.Model
	}
	client, err := s.models(cred.Provider, key, model)
	if err != nil {
		log.Warn("model client unavailable", zap.String("provider", cred.Provider), zap.Error(err))
		return nil, newAPIError(http.StatusPreconditionFailed, "missing_credentials",
			"The saved API key belongs to an unsupported provider. Save your API key again in Settings.", nil)
	}
	return client, nil
}

func credentialFailure(err error) string {
	if strings.Contains(err.Error(), "passphrase") {
		return "no_passphrase"
	}
	return "decrypt"
}

// stream runs the turn. Headers are committed at the first event, so a
// failure before any event is still answered with a JSON error.
func (t *turn) stream(hctx huma.Context) {
	t.hctx = hctx
	ctx := hctx.Context()
	started := time.Now()
	result, err := t.orch.Run(ctx, t.history, t.emit)

	switch {
	case err == nil:
		if commitErr := t.commit(ctx); commitErr != nil {
			t.fail(ctx, result, commitErr)
			return
		}
		if t.framed {
			t.write(StreamEvent{Type: EventDone, ConversationID: t.conversationID})
		}
		t.saveAnswer(result.Text)
		t.log.Info("turn finished",
			zap.Int("rounds", result.Rounds),
			zap.Strings("tools", result.ToolCalls),
			zap.Duration("duration", time.Since(started)))
	case ctx.Err() != nil:
		t.log.Info("turn aborted", zap.Int("rounds", result.Rounds), zap.Strings("tools", result.ToolCalls))
	default:
		t.fail(ctx, result, err)
	}
}

func (t *turn) fail(ctx context.Context, result agent.Turn, err error) {
	status, code, msg := classifyTurnError(err)
	fields := []zap.Field{zap.Int("rounds", result.Rounds), zap.String("code", code), zap.Bool("streaming", t.committed)}
	var le *llm.Error
	if errors.As(err, &le) {
		fields = append(fields, zap.String("provider", le.Provider), zap.Stringer("error_type", le.Type), zap.Int("provider_status", le.StatusCode))
	} else {
		fields = append(fields, zap.Error(err))
	}
	t.log.Warn("turn failed", fields...)

	if !t.committed {
		t.hctx.SetHeader("Content-Type", "application/json")
		t.hctx.SetStatus(status)
		_ = json.NewEncoder(t.hctx.BodyWriter()).Encode(newAPIError(status, code, msg, nil))
		return
	}
	if t.framed {
		t.write(StreamEvent{Type: EventError, Code: code, Message: msg})
	} else {
		t.writeText(ErrorMarker + msg)
	}
	t.saveAnswer(result.Text + ErrorMarker + msg)
}

func (t *turn) emit(ev agent.Event) error {
	if err := t.commit(t.hctx.Context()); err != nil {
		return err
	}
	if t.framed {
		return t.write(StreamEvent{
			Type:    string(ev.Type),
			Text:    ev.Text,
			Tool:    ev.Tool,
			CallID:  ev.CallID,
			IsError: ev.IsError,
		})
	}
	if ev.Type == agent.EventTextDelta {
		return t.writeText(ev.Text)
	}
	return nil
}

// commit persists the conversation and user message, then sends headers.
func (t *turn) commit(ctx context.Context) error {
	if t.committed {
		return nil
	}
	r := t.s.engine.Repo
	if t.isNew {
		c := domain.Conversation{ID: t.conversationID, WorkspaceID: t.scope.WorkspaceID, UserID: t.scope.UserID}
		if t.title != "" {
			c.Title = &t.title
		}
		if err := r.InsertConversation(ctx, c); err != nil {
			return err
		}
	}
	if _, err := r.AppendMessage(ctx, t.scope.WorkspaceID, t.scope.UserID, domain.Message{
		ID:             uuid.NewString(),
		ConversationID: t.conversationID,
		Role:           domain.RoleUser,
		Content:        t.userText,
	}); err != nil {
		return err
	}
	t.hctx.SetHeader(ConversationHeader, t.conversationID)
	if t.framed {
		t.hctx.SetHeader("Content-Type", NDJSONContentType)
	} else {
		t.hctx.SetHeader("Content-Type", "text/plain; charset=utf-8")
	}
	t.hctx.SetHeader("Cache-Control", "no-cache")
	t.hctx.SetHeader("X-Accel-Buffering", "no")
	t.hctx.SetStatus(http.StatusOK)
	t.committed = true
	t.flush()
	return nil
}

func (t *turn) saveAnswer(text string) {
	if text == "" || !t.committed {
		return
	}
	// The request context may already be done once the body is written.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(t.hctx.Context()), 5*time.Second)
	defer cancel()
	if _, err := t.s.engine.Repo.AppendMessage(ctx, t.scope.WorkspaceID, t.scope.UserID, domain.Message{
		ID:             uuid.NewString(),
		ConversationID: t.conversationID,
		Role:           domain.RoleAssistant,
		Content:        text,
	}); err != nil {
		t.log.Error("save answer", zap.Error(err))
	}
}

func (t *turn) write(ev StreamEvent) error {
	line, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	if _, err := t.hctx.BodyWriter().Write(line); err != nil {
		return err
	}
	t.flush()
	return nil
}

func (t *turn) writeText(s string) error {
	if _, err := io.WriteString(t.hctx.BodyWriter(), s); err != nil {
		return err
	}
	t.flush()
	return nil
}

func (t *turn) flush() {
	if f, ok := t.hctx.BodyWriter().(http.Flusher); ok {
		f.Flush()
	}
}

// classifyTurnError maps a failed turn to a status, code and a fixed
// user-facing message. Provider messages are never passed through.
func classifyTurnError(err error) (int, string, string) {
	switch {
	case llm.IsAuth(err):
		return http.StatusFailedDependency, "invalid_credentials",
			"Your model provider rejected the saved API key. Update your API key in Settings."
	case errors.Is(err, agent.ErrNotConverged):
		return http.StatusBadGateway, "agent_not_converged",
			"The assistant could not finish this request (agent did not converge). Try asking in smaller steps."
	case llm.TypeOf(err) == llm.ErrorTypeRateLimit:
		return http.StatusBadGateway, "provider_error",
			"The model provider is rate limiting this key. Try again in a moment."
	}
	var le *llm.Error
	if errors.As(err, &le) {
		return http.StatusBadGateway, "provider_error",
			"The model provider could not complete the request. Try again in a moment."
	}
	return http.StatusInternalServerError, "internal_error",
		"Something went wrong while answering. Try again."
}

func wantsFraming(accept string) bool {
	for _, part := range strings.Split(accept, ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && mt == NDJSONContentType {
			return true
		}
	}
	return false
}

func conversationTitle(msgs []ChatMessage) string {
	for _, m := range msgs {
		if m.Role != domain.RoleUser {
			continue
		}
		title := strings.Join(strings.Fields(m.Content), " ")
		if utf8.RuneCountInString(title) > titleRunes {
			title = string([]rune(title)[:titleRunes])
		}
		return title
	}
	return ""
}
