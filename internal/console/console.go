package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/vk/eventhost/internal/ctxlog"
	"github.com/vk/eventhost/internal/eventbus"
)

const usage = `Commands:
  trigger <event> [source] [json-array]   dispatch an event, e.g. trigger chat ws:1 ["hi"]
  events                                  list known event names
  help                                    show this help
  quit                                    leave the console
`

// LineReader is the part of *readline.Instance the console uses.
type LineReader interface {
	Readline() (string, error)
}

// Console reads commands and dispatches events on a bus.
type Console struct {
	bus *eventbus.Registry
	out io.Writer
}

// New creates a console writing replies to out.
func New(bus *eventbus.Registry, out io.Writer) *Console {
	return &Console{bus: bus, out: out}
}

// NewReadline opens an interactive readline prompt.
func NewReadline(prompt string) (*readline.Instance, error) {
	rl, err := readline.New(prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return rl, nil
}

// Run loops until quit, end of input, an interrupt or ctx is done.
func (c *Console) Run(ctx context.Context, rl LineReader) error {
	logger := ctxlog.FromContext(ctx)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}

		cmd, err := ParseLine(line)
		if err != nil {
			fmt.Fprintln(c.out, err)
			continue
		}

		switch cmd.Kind {
		case Empty:
		case Help:
			io.WriteString(c.out, usage)
		case List:
			fmt.Fprintln(c.out, strings.Join(c.bus.Names(), "\n"))
		case Quit:
			return nil
		case Trigger:
			logger.Debug("Console trigger.", "event", cmd.Event, "source", cmd.Source, "args", len(cmd.Args))
			if err := c.bus.Dispatch(ctx, cmd.Event, cmd.Source, cmd.Args...); err != nil {
				fmt.Fprintf(c.out, "dispatch failed: %v\n", err)
				continue
			}
			fmt.Fprintln(c.out, "ok")
		}
	}
}
