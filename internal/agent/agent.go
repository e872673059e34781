// Package agent drives one conversational turn: model rounds, tool
// execution, and the ordered stream of events a transport renders.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"creatordesk/internal/llm"
	"creatordesk/internal/metrics"
	"creatordesk/internal/tools"
)

const (
	DefaultMaxRounds = 8
	MaxRoundsLimit   = 20
	DefaultMaxTokens = 4096
)

// ErrNotConverged is returned when the model still requests tools after the
// last allowed round.
var ErrNotConverged = errors.New("agent did not converge")

const toolFailureMessage = "The tool failed because of an internal error. Tell the user to try again shortly."

// Toolbox is the tool surface the orchestrator needs. *tools.Registry
// implements it.
type Toolbox interface {
	Definitions() []llm.ToolDefinition
	Execute(ctx context.Context, name string, input json.RawMessage) (tools.Result, error)
}

type EventType string

const (
	EventTextDelta  EventType = "text-delta"
	EventToolStart  EventType = "tool-start"
	EventToolResult EventType = "tool-result"
)

// Event is one observable step of a turn, delivered in order.
type Event struct {
	Type    EventType `json:"type"`
	Text    string    `json:"text,omitempty"`
	Tool    string    `json:"tool,omitempty"`
	CallID  string    `json:"callId,omitempty"`
	IsError bool      `json:"isError,omitempty"`
}

// Sink receives events. A non-nil error aborts the turn.
type Sink func(Event) error

// Orchestrator is built per request and closed over one workspace's tools.
type Orchestrator struct {
	Model     llm.Client
	Tools     Toolbox
	System    string
	MaxRounds int
	MaxTokens int
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	Now       func() time.Time
}

// Turn summarizes a finished (or failed) turn.
type Turn struct {
	// Text is everything streamed to the client, in order.
	Text      string
	Rounds    int
	ToolCalls []string
}

func (o *Orchestrator) log() *zap.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return zap.NewNop()
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Orchestrator) maxRounds() int {
	switch {
	case o.MaxRounds <= 0:
		return DefaultMaxRounds
	case o.MaxRounds > MaxRoundsLimit:
		return MaxRoundsLimit
	default:
		return o.MaxRounds
	}
}

// Run executes the turn for history, which must end with the user's
// message. Tool calls of a round run sequentially in the order the model
// returned them. The returned Turn is populated even when err is non-nil.
func (o *Orchestrator) Run(ctx context.Context, history []llm.Message, sink Sink) (Turn, error) {
	if o.Model == nil || o.Tools == nil {
		return Turn{}, errors.New("agent: model and tools required")
	}
	if sink == nil {
		sink = func(Event) error { return nil }
	}
	started := o.now()
	provider := o.Model.Provider()
	var turn Turn
	err := o.run(ctx, history, sink, &turn)
	o.Metrics.ObserveTurn(provider, outcome(err), o.now().Sub(started))
	return turn, err
}

func (o *Orchestrator) run(ctx context.Context, history []llm.Message, sink Sink, turn *Turn) error {
	msgs := make([]llm.Message, len(history))
	copy(msgs, history)
	defs := o.Tools.Definitions()
	maxTokens := o.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	var text strings.Builder
	defer func() { turn.Text = text.String() }()

	for round := 1; round <= o.maxRounds(); round++ {
		turn.Rounds = round
		roundCtx, cancel := context.WithCancel(ctx)
		var sinkErr error
		roundStarted := true
		onText := func(delta string) {
			if sinkErr != nil || delta == "" {
				return
			}
			if roundStarted && text.Len() > 0 && !strings.HasSuffix(text.String(), "\n") {
				delta = "\n\n" + delta
			}
			roundStarted = false
			if err := sink(Event{Type: EventTextDelta, Text: delta}); err != nil {
				sinkErr = err
				cancel()
				return
			}
			text.WriteString(delta)
		}

		t0 := o.now()
		resp, err := o.Model.Stream(roundCtx, llm.Request{
			System:    o.System,
			Messages:  msgs,
			Tools:     defs,
			MaxTokens: maxTokens,
		}, onText)
		cancel()
		o.Metrics.ObserveModelRound(o.Model.Provider(), o.Model.Model(), resp.Usage.InputTokens, resp.Usage.OutputTokens, err, o.now().Sub(t0))
		if sinkErr != nil {
			return sinkErr
		}
		if err != nil {
			return fmt.Errorf("model round %d: %w", round, err)
		}
		if len(resp.ToolCalls) == 0 {
			o.log().Debug("turn finished",
				zap.Int("rounds", round),
				zap.Strings("tools", turn.ToolCalls),
				zap.String("stop_reason", resp.StopReason))
			return nil
		}

		msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Text: resp.Text, ToolCalls: resp.ToolCalls})
		results := make([]llm.ToolResult, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			if err := ctx.Err(); err != nil {
				return err
			}
			turn.ToolCalls = append(turn.ToolCalls, call.Name)
			if err := sink(Event{Type: EventToolStart, Tool: call.Name, CallID: call.ID}); err != nil {
				return err
			}
			res := o.execute(ctx, call)
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := sink(Event{Type: EventToolResult, Tool: call.Name, CallID: call.ID, IsError: res.IsError}); err != nil {
				return err
			}
			results = append(results, llm.ToolResult{CallID: call.ID, Name: call.Name, Content: res.Content, IsError: res.IsError})
		}
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, ToolResults: results})
	}
	o.log().Warn("turn exceeded round limit",
		zap.Int("max_rounds", o.maxRounds()),
		zap.Strings("tools", turn.ToolCalls))
	return ErrNotConverged
}

// execute runs one call. Infrastructure faults are logged and reported to
// the model as an error result so the rest of the turn can continue.
func (o *Orchestrator) execute(ctx context.Context, call llm.ToolCall) tools.Result {
	t0 := o.now()
	res, err := o.Tools.Execute(ctx, call.Name, call.Input)
	d := o.now().Sub(t0)
	switch {
	case err != nil:
		o.Metrics.ObserveTool(call.Name, "failed", d)
		if ctx.Err() == nil {
			o.log().Error("tool failed", zap.String("tool", call.Name), zap.Error(err))
		}
		raw, _ := json.Marshal(map[string]string{"error": toolFailureMessage})
		return tools.Result{Content: string(raw), IsError: true}
	case res.IsError:
		o.Metrics.ObserveTool(call.Name, "error", d)
	default:
		o.Metrics.ObserveTool(call.Name, "ok", d)
	}
	return res
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotConverged):
		return "not_converged"
	case errors.Is(err, context.Canceled):
		return "aborted"
	default:
		return "error"
	}
}
