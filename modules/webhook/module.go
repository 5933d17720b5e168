// Package webhook forwards events to an HTTP endpoint.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vk/eventhost/internal/ctxlog"
	"github.com/vk/eventhost/internal/eventbus"
	"github.com/vk/eventhost/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for a webhook subscription.
type Input struct {
	URL     string            `arg:"url"`
	Method  string            `arg:"method"`
	Headers map[string]string `arg:"headers"`
	Timeout time.Duration     `arg:"timeout"`
}

// Payload is the JSON body sent for every event.
type Payload struct {
	Event  string `json:"event"`
	Source string `json:"source"`
	Args   []any  `json:"args"`
}

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook responded with status %d: %s", e.StatusCode, e.Body)
}

// Build returns an asynchronous callback. The request runs in the
// background and the bus awaits its Task, so a failed delivery removes the
// subscription like any other callback failure.
func Build(event string, input any, deps *registry.Deps) (any, error) {
	in := input.(*Input)
	if in.URL == "" {
		return nil, errors.New("webhook: url is required")
	}
	if in.Method == "" {
		in.Method = http.MethodPost
	}
	client := http.DefaultClient
	if deps != nil && deps.Client != nil {
		client = deps.Client
	}

	return func(ctx context.Context, src eventbus.Source, args ...any) *eventbus.Task {
		if args == nil {
			args = []any{}
		}
		body, err := json.Marshal(Payload{Event: event, Source: string(src), Args: args})
		if err != nil {
			return eventbus.Done(fmt.Errorf("failed to encode payload: %w", err))
		}
		return eventbus.Go(func() error {
			return deliver(ctx, client, in, body)
		})
	}, nil
}

func deliver(ctx context.Context, client *http.Client, in *Input, body []byte) error {
	if in.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, in.Timeout)
		defer cancel()
	}
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Making HTTP request.", "method", in.Method, "url", in.URL)

	req, err := http.NewRequestWithContext(ctx, in.Method, in.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range in.Headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	logger.Debug("Received HTTP response.", "status", resp.Status)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Register registers the module with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterModule("webhook", &registry.RegisteredModule{
		NewInput: func() any { return new(Input) },
		Build:    Build,
	})
}
