// Package console is an interactive prompt for raising events by hand.
package console

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DefaultSource is attributed to events triggered without an explicit source.
const DefaultSource = "console:stdin"

// Kind identifies a console command.
type Kind int

const (
	Empty Kind = iota
	Trigger
	List
	Help
	Quit
)

// Command is one parsed console line.
type Command struct {
	Kind   Kind
	Event  string
	Source string
	Args   []any
}

// ErrUnknownCommand is returned for a first word ParseLine does not know.
var ErrUnknownCommand = errors.New("unknown command")

// ParseLine parses a single line. The trigger form is
//
//	trigger <event> [source] [json-array]
//
// where the optional arguments are a JSON array, e.g. ["bob", 3].
func ParseLine(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{Kind: Empty}, nil
	}
	word, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(word) {
	case "events", "ls":
		return Command{Kind: List}, nil
	case "help", "?":
		return Command{Kind: Help}, nil
	case "quit", "exit", "q":
		return Command{Kind: Quit}, nil
	case "trigger", "t":
		return parseTrigger(rest)
	default:
		return Command{}, fmt.Errorf("%w %q, try 'help'", ErrUnknownCommand, word)
	}
}

func parseTrigger(rest string) (Command, error) {
	cmd := Command{Kind: Trigger, Source: DefaultSource}

	event, rest, _ := strings.Cut(rest, " ")
	if event == "" || strings.HasPrefix(event, "[") {
		return Command{}, errors.New("trigger needs an event name")
	}
	cmd.Event = event
	rest = strings.TrimSpace(rest)

	if rest != "" && !strings.HasPrefix(rest, "[") {
		var source string
		source, rest, _ = strings.Cut(rest, " ")
		cmd.Source = source
		rest = strings.TrimSpace(rest)
	}

	if rest != "" {
		if err := json.Unmarshal([]byte(rest), &cmd.Args); err != nil {
			return Command{}, fmt.Errorf("arguments must be a JSON array: %w", err)
		}
	}
	return cmd, nil
}
