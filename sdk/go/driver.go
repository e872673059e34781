package desksdk

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// Status is the driver's view of the current turn.
type Status string

const (
	// StatusReady means no turn is in flight.
	StatusReady Status = "ready"
	// StatusStreaming means the request is in flight or text is arriving.
	StatusStreaming Status = "streaming"
	// StatusActing means the server is running tools and no text is
	// arriving yet.
	StatusActing Status = "acting"
)

// DefaultActingAfter is how long an opened plain-text response may stay
// silent before the driver reports StatusActing.
const DefaultActingAfter = 300 * time.Millisecond

const streamCutMessage = "The connection closed before the answer finished."

var (
	ErrBusy    = errors.New("a turn is already in flight")
	ErrAborted = errors.New("turn aborted")
)

// StreamError is an error the server reported after streaming began.
type StreamError struct {
	Code    string
	Message string
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Snapshot is a consistent copy of the driver state.
type Snapshot struct {
	Status         Status
	ConversationID string
	Messages       []Message
	// Tool is the tool currently running, when the stream is framed.
	Tool string
	Err  error
}

// Driver holds one chat transcript and runs its turns against the server.
// Send blocks for the duration of a turn; Abort, Reset and Snapshot may be
// called from other goroutines.
type Driver struct {
	client *Client
	// Framed requests typed NDJSON events instead of plain text.
	Framed      bool
	ActingAfter time.Duration
	// OnChange is called after every state change, in order, never
	// concurrently.
	OnChange func(Snapshot)

	notifyMu sync.Mutex
	mu       sync.Mutex
	status   Status
	convID   string
	messages []Message
	partial  []byte
	tool     string
	err      error
	cancel   context.CancelFunc
	turn     int
}

func NewDriver(c *Client) *Driver {
	return &Driver{client: c, status: StatusReady, ActingAfter: DefaultActingAfter}
}

// Snapshot returns the current state. The in-flight assistant message is
// the last entry while a turn is running.
func (d *Driver) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

func (d *Driver) snapshotLocked() Snapshot {
	msgs := make([]Message, len(d.messages), len(d.messages)+1)
	copy(msgs, d.messages)
	if d.status != StatusReady {
		msgs = append(msgs, Message{Role: "assistant", Content: string(d.partial)})
	}
	return Snapshot{Status: d.status, ConversationID: d.convID, Messages: msgs, Tool: d.tool, Err: d.err}
}

func (d *Driver) notify() {
	d.notifyMu.Lock()
	defer d.notifyMu.Unlock()
	if d.OnChange == nil {
		return
	}
	d.OnChange(d.Snapshot())
}

// update applies fn under the lock when turn is still the current turn.
func (d *Driver) update(turn int, fn func()) bool {
	d.mu.Lock()
	if d.turn != turn || d.status == StatusReady {
		d.mu.Unlock()
		return false
	}
	fn()
	d.mu.Unlock()
	d.notify()
	return true
}

// Send appends the user message and runs one turn until the answer is
// complete, the server reports an error, or the turn is aborted. On abort
// the partial answer is dropped and ErrAborted is returned.
func (d *Driver) Send(ctx context.Context, text string) error {
	d.mu.Lock()
	if d.status != StatusReady {
		d.mu.Unlock()
		return ErrBusy
	}
	d.messages = append(d.messages, Message{Role: "user", Content: text})
	req := ChatRequest{Messages: append([]Message(nil), d.messages...), ConversationID: d.convID}
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.turn++
	turn := d.turn
	d.status = StatusStreaming
	d.partial = nil
	d.tool = ""
	d.err = nil
	d.mu.Unlock()
	d.notify()
	defer cancel()

	err := d.run(ctx, turn, req)

	d.mu.Lock()
	if d.turn != turn {
		// Reset or Load replaced the transcript while we were running.
		d.mu.Unlock()
		return ErrAborted
	}
	aborted := ctx.Err() != nil && !errors.As(err, new(*StreamError))
	switch {
	case aborted:
		err = ErrAborted
	case len(d.partial) > 0:
		d.messages = append(d.messages, Message{Role: "assistant", Content: string(d.partial)})
	}
	if err != nil && !aborted {
		d.err = err
	}
	d.status = StatusReady
	d.partial = nil
	d.tool = ""
	d.cancel = nil
	d.mu.Unlock()
	d.notify()
	return err
}

func (d *Driver) run(ctx context.Context, turn int, req ChatRequest) error {
	stream, err := d.client.Chat(ctx, req, d.Framed)
	if err != nil {
		return err
	}
	defer stream.Body.Close()
	if stream.ConversationID != "" {
		d.update(turn, func() { d.convID = stream.ConversationID })
	}
	if stream.Framed {
		return d.readEvents(turn, stream.Body)
	}
	return d.readText(turn, stream.Body)
}

// readText appends every received byte. Status becomes acting when the
// opened body stays silent for ActingAfter.
func (d *Driver) readText(turn int, body io.Reader) error {
	wait := d.ActingAfter
	if wait <= 0 {
		wait = DefaultActingAfter
	}
	timer := time.AfterFunc(wait, func() {
		d.update(turn, func() {
			if len(d.partial) == 0 {
				d.status = StatusActing
			}
		})
	})
	defer timer.Stop()

	buf := make([]byte, 4096)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			timer.Stop()
			chunk := append([]byte(nil), buf[:n]...)
			d.update(turn, func() {
				d.partial = append(d.partial, chunk...)
				d.status = StatusStreaming
			})
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

type wireEvent struct {
	Type           string `json:"type"`
	Text           string `json:"text"`
	Tool           string `json:"tool"`
	CallID         string `json:"callId"`
	IsError        bool   `json:"isError"`
	Code           string `json:"code"`
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
}

func (d *Driver) readEvents(turn int, body io.Reader) error {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64<<10), 4<<20)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev wireEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		switch ev.Type {
		case "text-delta":
			d.update(turn, func() {
				d.partial = append(d.partial, ev.Text...)
				d.status = StatusStreaming
				d.tool = ""
			})
		case "tool-start":
			d.update(turn, func() {
				d.status = StatusActing
				d.tool = ev.Tool
			})
		case "tool-result":
		case "error":
			d.update(turn, func() {
				d.partial = append(d.partial, ErrorMarker+ev.Message...)
			})
			return &StreamError{Code: ev.Code, Message: ev.Message}
		case "done":
			if ev.ConversationID != "" {
				d.update(turn, func() { d.convID = ev.ConversationID })
			}
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	// A framed stream always ends with done or error.
	d.update(turn, func() {
		d.partial = append(d.partial, ErrorMarker+streamCutMessage...)
	})
	return io.ErrUnexpectedEOF
}

// Abort cancels the in-flight turn, if any. Tool side effects already
// committed on the server are not rolled back.
func (d *Driver) Abort() {
	d.mu.Lock()
	cancel := d.cancel
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Reset aborts any turn and starts a new, empty conversation.
func (d *Driver) Reset() {
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	d.turn++
	d.status = StatusReady
	d.convID = ""
	d.messages = nil
	d.partial = nil
	d.tool = ""
	d.err = nil
	d.cancel = nil
	d.mu.Unlock()
	d.notify()
}

// Load aborts any turn and replaces the transcript with a stored
// conversation.
func (d *Driver) Load(ctx context.Context, id string) error {
	conv, err := d.client.Conversation(ctx, id)
	if err != nil {
		return err
	}
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	d.turn++
	d.status = StatusReady
	d.convID = conv.ID
	d.messages = append([]Message(nil), conv.Messages...)
	d.partial = nil
	d.tool = ""
	d.err = nil
	d.cancel = nil
	d.mu.Unlock()
	d.notify()
	return nil
}
