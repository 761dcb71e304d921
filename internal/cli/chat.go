package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/agentgraph/internal/presentation/tui"
	"github.com/aretw0/agentgraph/internal/sanitize"
	"github.com/aretw0/agentgraph/pkg/domain"
)

// Engine is the part of agentgraph.Engine the chat drives.
type Engine interface {
	Run(ctx context.Context, threadID string, input *domain.Message) (*domain.State, error)
	Thread(ctx context.Context, threadID string) (*domain.Checkpoint, error)
}

// Chat drives one thread from a terminal.
type Chat struct {
	engine     Engine
	threadID   string
	transcript *tui.Transcript
	out        io.Writer
}

// NewChat creates a chat on threadID printing through transcript.
func NewChat(engine Engine, threadID string, transcript *tui.Transcript, out io.Writer) *Chat {
	return &Chat{
		engine:     engine,
		threadID:   threadID,
		transcript: transcript,
		out:        out,
	}
}

// ThreadID returns the thread the chat appends to.
func (c *Chat) ThreadID() string {
	return c.threadID
}

// system prints a standardized system line.
func (c *Chat) system(format string, args ...any) {
	fmt.Fprintf(c.out, ">>> %s\n", fmt.Sprintf(format, args...))
}

// History prints the stored conversation, if any.
func (c *Chat) History(ctx context.Context) error {
	cp, err := c.engine.Thread(ctx, c.threadID)
	if errors.Is(err, domain.ErrCheckpointNotFound) {
		c.system("Thread '%s' is new.", c.threadID)
		return nil
	}
	if err != nil {
		return err
	}
	c.system("Resuming thread '%s' at step %d.", c.threadID, cp.Step)
	c.transcript.Print(cp.State.Messages, true)
	return nil
}

// Send appends text as a user message, runs the thread and prints what the
// run appended. Messages checkpointed before an abort are printed as well.
func (c *Chat) Send(ctx context.Context, text string) error {
	clean, err := sanitize.Input(text)
	if err != nil {
		return err
	}
	msg := domain.UserMessage(clean)
	return c.run(ctx, &msg)
}

// Resume continues the thread without new input.
func (c *Chat) Resume(ctx context.Context) error {
	return c.run(ctx, nil)
}

func (c *Chat) run(ctx context.Context, input *domain.Message) error {
	before := 0
	cp, err := c.engine.Thread(ctx, c.threadID)
	switch {
	case err == nil:
		before = cp.State.Len()
	case !errors.Is(err, domain.ErrCheckpointNotFound):
		return err
	}

	state, runErr := c.engine.Run(ctx, c.threadID, input)
	if d := domain.Since(state, before); !d.IsEmpty() {
		c.transcript.Print(d.Appended, false)
	}
	return runErr
}

// Loop reads one message per line from in until EOF, "/exit" or ctx ends.
// Run failures are printed and the loop goes on.
func (c *Chat) Loop(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), sanitize.MaxInputSize()+1)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				readErr <- ctx.Err()
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		fmt.Fprint(c.out, "> ")
		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out)
			c.system("Interrupted.")
			return nil
		case line, ok = <-lines:
		}
		if !ok {
			fmt.Fprintln(c.out)
			if err := <-readErr; err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		}

		if err := c.Send(ctx, line); err != nil {
			if ctx.Err() != nil {
				c.system("Interrupted at step boundary.")
				return nil
			}
			c.transcript.Error(err)
		}
	}
}
