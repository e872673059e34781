// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"creatordesk/internal/llm"
)

// Round is one scripted model response. Chunks are streamed as text deltas
// before the round returns. A non-nil Err is returned instead of a response.
type Round struct {
	Chunks    []string
	ToolCalls []llm.ToolCall
	Err       error
	// Block makes the round wait until the request context is cancelled.
	Block bool
}

// Client replays Rounds in order and records every request it receives.
type Client struct {
	mu       sync.Mutex
	rounds   []Round
	requests []llm.Request
	Name     string
}

func New(rounds ...Round) *Client {
	return &Client{rounds: rounds, Name: "scripted"}
}

// Text returns a round that streams chunks and ends the turn.
func Text(chunks ...string) Round {
	return Round{Chunks: chunks}
}

// Call returns a round that requests a single tool call. input is marshalled
// to JSON.
func Call(id, name string, input any) Round {
	raw, err := json.Marshal(input)
	if err != nil {
		panic(err)
	}
	return Round{ToolCalls: []llm.ToolCall{{ID: id, Name: name, Input: raw}}}
}

func (c *Client) Provider() string { return c.Name }
func (c *Client) Model() string    { return "scripted-model" }

func (c *Client) Stream(ctx context.Context, req llm.Request, onText llm.TextFunc) (llm.Response, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	if len(c.rounds) == 0 {
		c.mu.Unlock()
		return llm.Response{}, fmt.Errorf("llmtest: no scripted round left (request %d)", len(c.requests))
	}
	round := c.rounds[0]
	c.rounds = c.rounds[1:]
	c.mu.Unlock()

	if round.Block {
		<-ctx.Done()
		return llm.Response{}, ctx.Err()
	}
	if round.Err != nil {
		return llm.Response{}, round.Err
	}
	resp := llm.Response{ToolCalls: round.ToolCalls, StopReason: "end_turn"}
	if len(round.ToolCalls) > 0 {
		resp.StopReason = "tool_use"
	}
	for _, chunk := range round.Chunks {
		if err := ctx.Err(); err != nil {
			return llm.Response{}, err
		}
		if onText != nil {
			onText(chunk)
		}
		resp.Text += chunk
	}
	return resp, nil
}

// Requests returns a copy of the requests received so far.
func (c *Client) Requests() []llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]llm.Request, len(c.requests))
	copy(out, c.requests)
	return out
}

// Remaining reports how many scripted rounds were not consumed.
func (c *Client) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rounds)
}

// Factory returns an llm.Factory that hands out c for any key, recording the
// keys it was asked for.
func (c *Client) Factory(keys *[]string) llm.Factory {
	var mu sync.Mutex
	return func(provider, apiKey, model string) (llm.Client, error) {
		if keys != nil {
			mu.Lock()
			*keys = append(*keys, apiKey)
			mu.Unlock()
		}
		return c, nil
	}
}
