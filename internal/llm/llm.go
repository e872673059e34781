// Package llm defines the provider-neutral contract between the agent loop
// and a streaming chat model with tool use.
package llm

import (
	"context"
	"encoding/json"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the model history. An assistant message may carry
// tool calls; the following user message carries their results.
type Message struct {
	Role        Role
	Text        string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

type ToolCall struct {
	ID    string
	Name  string
	Input json.RawMessage
}

type ToolResult struct {
	CallID  string
	Name    string
	Content string
	IsError bool
}

// ToolDefinition describes a tool to the model. InputSchema is a JSON Schema
// object.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]any
}

type Request struct {
	System    string
	Messages  []Message
	Tools     []ToolDefinition
	MaxTokens int
}

type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Response is the complete assistant message of one model round.
type Response struct {
	Text       string
	ToolCalls  []ToolCall
	StopReason string
	Usage      Usage
}

// TextFunc receives text deltas in generation order.
type TextFunc func(delta string)

// Client streams one model round. Text deltas are delivered through onText
// while the round is in flight; the returned Response holds the full text and
// every tool call of the round.
type Client interface {
	Stream(ctx context.Context, req Request, onText TextFunc) (Response, error)
	Provider() string
	Model() string
}

// Factory builds a client for a decrypted workspace key.
type Factory func(provider, apiKey, model string) (Client, error)

// UserText is a convenience constructor for a plain user message.
func UserText(text string) Message {
	return Message{Role: RoleUser, Text: text}
}

// AssistantText is a convenience constructor for a plain assistant message.
func AssistantText(text string) Message {
	return Message{Role: RoleAssistant, Text: text}
}
