// Copyright 2025 The A2A Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package a2aclient implements the outbound half of an A2A host: it resolves
// remote agents, dispatches task requests to them and feeds every observed
// update to a caller-supplied aggregation callback.
package a2aclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/a2aproject/a2a-host/a2a"
	"github.com/a2aproject/a2a-host/a2aclient/agentcard"
	"github.com/a2aproject/a2a-host/log"
)

// ErrNilAgentCard is returned when a Connection is created without a card.
var ErrNilAgentCard = errors.New("agent card is required")

// TaskUpdateFn folds one inbound update into caller-owned task state and
// returns the canonical Task after the fold. Every update observed by a
// dispatch call flows through this function and nowhere else; the dispatching
// Connection holds no task state of its own.
type TaskUpdateFn func(ctx context.Context, event a2a.Event, card *a2a.AgentCard) *a2a.Task

// Connection is a live link to one remote agent. It caches the agent's
// resolved card and drives task exchanges over the configured transport,
// choosing the streaming path when the card advertises streaming support.
// A Connection is safe for concurrent use by multiple goroutines.
type Connection struct {
	card      *a2a.AgentCard
	transport Transport
}

type connectionConfig struct {
	httpClient *http.Client
	header     http.Header
	transport  Transport
}

// ConnectionOption configures a [Connection] during construction.
type ConnectionOption func(*connectionConfig)

// WithHTTPClient sets the HTTP client used for card resolution and protocol
// exchanges. If unset, a client with a 3-minute timeout is used.
func WithHTTPClient(client *http.Client) ConnectionOption {
	return func(cfg *connectionConfig) {
		cfg.httpClient = client
	}
}

// WithRequestHeader attaches a header to every outbound request, including
// card resolution. Agents fronted by gateways commonly require auth tokens
// or API keys passed this way.
func WithRequestHeader(key string, values ...string) ConnectionOption {
	return func(cfg *connectionConfig) {
		if cfg.header == nil {
			cfg.header = http.Header{}
		}
		for _, v := range values {
			cfg.header.Add(key, v)
		}
	}
}

// WithTransport overrides the wire transport. Intended for tests and for
// agents reachable by other means than JSON-RPC over HTTP.
func WithTransport(t Transport) ConnectionOption {
	return func(cfg *connectionConfig) {
		cfg.transport = t
	}
}

// NewConnection creates a Connection to the agent described by card.
func NewConnection(card *a2a.AgentCard, opts ...ConnectionOption) (*Connection, error) {
	if card == nil {
		return nil, ErrNilAgentCard
	}

	cfg := &connectionConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	transport := cfg.transport
	if transport == nil {
		if card.URL == "" {
			return nil, fmt.Errorf("agent card %q carries no URL", card.Name)
		}
		transport = NewJSONRPCTransport(card.URL, cfg.httpClient, WithJSONRPCHeader(cfg.header))
	}

	return &Connection{card: card, transport: transport}, nil
}

// NewConnectionFromURL resolves the agent card published at url and creates a
// Connection to the agent it describes.
func NewConnectionFromURL(ctx context.Context, url string, opts ...ConnectionOption) (*Connection, error) {
	cfg := &connectionConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	var cardOpts []agentcard.ResolveOption
	for k, vals := range cfg.header {
		cardOpts = append(cardOpts, agentcard.WithRequestHeader(k, vals...))
	}

	card, err := agentcard.NewResolver(cfg.httpClient).Resolve(ctx, url, cardOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve agent card: %w", err)
	}

	return NewConnection(card, opts...)
}

// Card returns the card of the remote agent. The returned value is shared and
// must be treated as read-only.
func (c *Connection) Card() *a2a.AgentCard {
	return c.card
}

// SendTask dispatches a task request to the remote agent and reports every
// observed update through onUpdate. It never returns an error: transport
// failures, malformed streams and panics all collapse into a Task in
// [a2a.TaskStateFailed] with a human-readable status description, reported
// through onUpdate like any other outcome.
//
// When the agent supports streaming, updates are reported as they arrive and
// a synthetic submitted snapshot is reported before the first byte so
// observers see the task immediately. Otherwise one blocking exchange is
// performed and reported once. The returned Task is the last value produced
// by onUpdate; a nil onUpdate yields the last full snapshot observed.
func (c *Connection) SendTask(ctx context.Context, req *a2a.SendTaskRequest, onUpdate TaskUpdateFn) (task *a2a.Task) {
	defer func() {
		if r := recover(); r != nil {
			log.Error(ctx, "task dispatch panicked", fmt.Errorf("%v", r), "taskID", req.ID, "agent", c.card.Name)
			task = failedTask(req, fmt.Sprintf("unexpected dispatch error: %v", r))
		}
	}()

	if c.card.Capabilities.Streaming {
		return c.sendTaskStreaming(ctx, req, onUpdate)
	}
	return c.sendTaskBlocking(ctx, req, onUpdate)
}

func (c *Connection) sendTaskStreaming(ctx context.Context, req *a2a.SendTaskRequest, onUpdate TaskUpdateFn) *a2a.Task {
	// Observers learn about the task before the remote agent produced a
	// single byte.
	task := c.reportUpdate(ctx, a2a.NewSubmittedTask(req), onUpdate, nil)

	for event, err := range c.transport.SendTaskStreaming(ctx, req) {
		if err != nil {
			log.Error(ctx, "task stream failed", err, "taskID", req.ID, "agent", c.card.Name)
			return c.reportFailure(ctx, req, onUpdate, fmt.Sprintf("stream processing error: %v", err))
		}

		c.prepareUpdate(event, req)
		task = c.reportUpdate(ctx, event, onUpdate, task)

		if status, ok := event.(*a2a.TaskStatusUpdateEvent); ok && status.Final {
			break
		}
	}
	return task
}

func (c *Connection) sendTaskBlocking(ctx context.Context, req *a2a.SendTaskRequest, onUpdate TaskUpdateFn) *a2a.Task {
	result, err := c.transport.SendTask(ctx, req)
	if err != nil {
		log.Error(ctx, "task request failed", err, "taskID", req.ID, "agent", c.card.Name)
		return c.reportFailure(ctx, req, onUpdate, fmt.Sprintf("task processing error: %v", err))
	}

	c.prepareUpdate(result, req)
	return c.reportUpdate(ctx, result, onUpdate, result)
}

// GetTask fetches the remote agent's view of a task.
func (c *Connection) GetTask(ctx context.Context, taskID string) (*a2a.Task, error) {
	if taskID == "" {
		return nil, a2a.ErrEmptyTaskID
	}
	return c.transport.GetTask(ctx, taskID)
}

// CancelTask asks the remote agent to cancel an in-flight task.
func (c *Connection) CancelTask(ctx context.Context, taskID string) (*a2a.Task, error) {
	if taskID == "" {
		return nil, a2a.ErrEmptyTaskID
	}
	return c.transport.CancelTask(ctx, taskID)
}

func (c *Connection) reportUpdate(ctx context.Context, event a2a.Event, onUpdate TaskUpdateFn, prev *a2a.Task) *a2a.Task {
	if onUpdate == nil {
		if task, ok := event.(*a2a.Task); ok {
			return task
		}
		return prev
	}
	return onUpdate(ctx, event, c.card)
}

func (c *Connection) reportFailure(ctx context.Context, req *a2a.SendTaskRequest, onUpdate TaskUpdateFn, description string) *a2a.Task {
	failed := failedTask(req, description)
	if onUpdate == nil {
		return failed
	}
	if task := onUpdate(ctx, failed, c.card); task != nil {
		return task
	}
	return failed
}

// prepareUpdate rewrites an inbound event so downstream observers see the
// dispatching request's context: request metadata fills event metadata keys
// the agent did not set, and a status message additionally inherits the
// request message's metadata and gets a fresh message id chained to its
// previous one. The id chain is how follow-up turns are correlated with the
// turns that caused them.
func (c *Connection) prepareUpdate(event a2a.Event, req *a2a.SendTaskRequest) {
	switch e := event.(type) {
	case *a2a.Task:
		e.Metadata = mergeMetadata(e.Metadata, req.Metadata)
		prepareStatusMessage(e.Status.Message, req)
	case *a2a.TaskStatusUpdateEvent:
		e.Metadata = mergeMetadata(e.Metadata, req.Metadata)
		prepareStatusMessage(e.Status.Message, req)
	case *a2a.TaskArtifactUpdateEvent:
		e.Metadata = mergeMetadata(e.Metadata, req.Metadata)
	}
}

func prepareStatusMessage(msg *a2a.Message, req *a2a.SendTaskRequest) {
	if msg == nil {
		return
	}
	if req.Message != nil {
		msg.Metadata = mergeMetadata(msg.Metadata, req.Message.Metadata)
	}
	if id := msg.MessageID(); id != "" {
		msg.SetLastMessageID(id)
	}
	msg.SetMessageID(a2a.NewMessageID())
}

// mergeMetadata adds entries of src to dst for keys dst does not carry.
// Values already present in dst win.
func mergeMetadata(dst, src map[string]any) map[string]any {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		if _, ok := dst[k]; !ok {
			dst[k] = v
		}
	}
	return dst
}

// failedTask builds the terminal snapshot reported when an exchange cannot
// complete.
func failedTask(req *a2a.SendTaskRequest, description string) *a2a.Task {
	now := time.Now().UTC()
	return &a2a.Task{
		ID:        req.ID,
		Metadata:  req.Metadata,
		SessionID: req.SessionID,
		Status: a2a.TaskStatus{
			Description: description,
			State:       a2a.TaskStateFailed,
			Timestamp:   &now,
		},
	}
}
