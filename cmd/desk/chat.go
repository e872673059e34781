package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	desksdk "creatordesk/sdk/go"
)

func chatCmd() *cobra.Command {
	var baseURL, basePath, conversationID string
	var framed bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the AI manager of your workspace",
		Long: `Interactive chat against a running server. Authenticate with DESK_TOKEN
(bearer token) or DESK_API_KEY. Ctrl-C stops the current answer; tool changes
already made stay in place.
Commands: /new starts a new conversation, /load <id> opens a stored one,
/quit exits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := desksdk.New(baseURL)
			c.BasePath = basePath
			c.BearerToken = viper.GetString("token")
			c.APIKey = viper.GetString("api-key")
			if c.BearerToken == "" && c.APIKey == "" {
				return errors.New("set DESK_TOKEN or DESK_API_KEY")
			}
			d := desksdk.NewDriver(c)
			d.Framed = framed
			out := &transcriptPrinter{w: os.Stdout}
			d.OnChange = out.render
			// Ctrl-C at the prompt exits; during a turn it only stops the answer.
			signal.Reset(os.Interrupt)
			if conversationID != "" {
				if err := d.Load(cmd.Context(), conversationID); err != nil {
					return err
				}
				out.history(d.Snapshot())
			}
			return chatLoop(cmd.Context(), d, out, os.Stdin)
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "http://127.0.0.1:8080", "server URL")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	cmd.Flags().StringVar(&conversationID, "conversation", "", "continue a stored conversation")
	cmd.Flags().BoolVar(&framed, "framed", true, "request typed events so tool runs are shown as they happen")
	return cmd
}

func chatLoop(ctx context.Context, d *desksdk.Driver, out *transcriptPrinter, in io.Reader) error {
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out.w, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out.w)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/new":
			d.Reset()
			fmt.Fprintln(out.w, "(new conversation)")
			continue
		case strings.HasPrefix(line, "/load "):
			if err := d.Load(ctx, strings.TrimSpace(strings.TrimPrefix(line, "/load "))); err != nil {
				fmt.Fprintln(out.w, "error:", err)
				continue
			}
			out.history(d.Snapshot())
			continue
		}

		out.begin()
		turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		err := d.Send(turnCtx, line)
		stop()
		fmt.Fprintln(out.w)
		var apiErr *desksdk.APIError
		var streamErr *desksdk.StreamError
		switch {
		case err == nil:
		case errors.Is(err, desksdk.ErrAborted):
			fmt.Fprintln(out.w, "(stopped)")
		case errors.As(err, &apiErr) && apiErr.Message != "":
			fmt.Fprintln(out.w, "error:", apiErr.Message)
		case errors.As(err, &streamErr):
			// Already printed inline.
		default:
			fmt.Fprintln(out.w, "error:", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// transcriptPrinter writes the in-flight answer incrementally.
type transcriptPrinter struct {
	w io.Writer

	mu      sync.Mutex
	printed int
	acting  bool
}

func (p *transcriptPrinter) begin() {
	p.mu.Lock()
	p.printed = 0
	p.acting = false
	p.mu.Unlock()
}

func (p *transcriptPrinter) render(s desksdk.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s.Status == desksdk.StatusReady || len(s.Messages) == 0 {
		return
	}
	if s.Status == desksdk.StatusActing && !p.acting {
		p.acting = true
		if s.Tool != "" {
			fmt.Fprintf(p.w, "\n[working: %s]\n", s.Tool)
		} else {
			fmt.Fprint(p.w, "\n[working...]\n")
		}
	}
	if s.Status == desksdk.StatusStreaming {
		p.acting = false
	}
	text := s.Messages[len(s.Messages)-1].Content
	if len(text) > p.printed {
		fmt.Fprint(p.w, text[p.printed:])
		p.printed = len(text)
	}
}

func (p *transcriptPrinter) history(s desksdk.Snapshot) {
	fmt.Fprintf(p.w, "(conversation %s)\n", s.ConversationID)
	for _, m := range s.Messages {
		prefix := "> "
		if m.Role == "assistant" {
			prefix = ""
		}
		fmt.Fprintf(p.w, "%s%s\n\n", prefix, m.Content)
	}
}
