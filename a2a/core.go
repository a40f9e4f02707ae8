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

// Package a2a defines the data model of the agent-to-agent task protocol as
// spoken by a coordinating host: tasks, statuses, messages, artifacts and the
// update events produced by remote agents.
package a2a

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ProtocolVersion is a string constant which represents a version of the protocol.
type ProtocolVersion string

// Version is the protocol version this host implements.
const Version ProtocolVersion = "0.1"

// Metadata keys with protocol-level meaning. Messages, tasks and requests
// carry open metadata maps; these keys are how hosts thread identity,
// causality and ownership through them.
const (
	// MessageIDKey holds the unique identifier of a message.
	MessageIDKey = "message_id"

	// LastMessageIDKey holds a back-reference to the message this one was
	// produced in response to, forming a causal chain.
	LastMessageIDKey = "last_message_id"

	// ConversationIDKey correlates tasks and messages belonging to one
	// conversation.
	ConversationIDKey = "conversation_id"

	// WalletAddressKey identifies the recipient owning the delivery
	// connections a task's updates are pushed to.
	WalletAddressKey = "wallet_address"
)

// TaskState represents the lifecycle state of a task.
type TaskState string

const (
	// TaskStateSubmitted means the task was received and acknowledged, but
	// processing has not started.
	TaskStateSubmitted TaskState = "submitted"

	// TaskStateWorking means the task is actively being processed.
	TaskStateWorking TaskState = "working"

	// TaskStateInputRequired means the task is paused waiting for input.
	TaskStateInputRequired TaskState = "input-required"

	// TaskStateCompleted means the task finished successfully.
	TaskStateCompleted TaskState = "completed"

	// TaskStateCanceled means the task was canceled.
	TaskStateCanceled TaskState = "canceled"

	// TaskStateFailed means the task ended due to an error.
	TaskStateFailed TaskState = "failed"

	// TaskStateUnknown means the state of the task cannot be determined.
	TaskStateUnknown TaskState = "unknown"
)

// Terminal returns true if a Task in the given state will never be updated again.
func (s TaskState) Terminal() bool {
	return s == TaskStateCompleted || s == TaskStateCanceled || s == TaskStateFailed || s == TaskStateUnknown
}

// MessageRole identifies the author of a message.
type MessageRole string

const (
	// MessageRoleUser marks messages authored by the requesting side.
	MessageRoleUser MessageRole = "user"

	// MessageRoleAgent marks messages authored by a remote agent.
	MessageRoleAgent MessageRole = "agent"
)

// Message is a single communication turn exchanged with an agent. Its
// identity lives in Metadata under [MessageIDKey].
type Message struct {
	// Metadata carries extension values. Well-known keys are [MessageIDKey],
	// [LastMessageIDKey], [ConversationIDKey] and [WalletAddressKey].
	Metadata map[string]any `json:"metadata,omitempty"`

	// Parts is the typed content of the message.
	Parts ContentParts `json:"parts"`

	// Role identifies the message author.
	Role MessageRole `json:"role"`
}

// NewMessageID generates a new random message identifier.
func NewMessageID() string {
	return newUUIDString()
}

// NewMessage creates a new message with a random identifier.
func NewMessage(role MessageRole, parts ...Part) *Message {
	return &Message{
		Metadata: map[string]any{MessageIDKey: NewMessageID()},
		Parts:    parts,
		Role:     role,
	}
}

// MessageID returns the message identifier, or "" when unset.
func (m *Message) MessageID() string {
	return MetadataString(m.Metadata, MessageIDKey)
}

// SetMessageID records the message identifier, allocating metadata if needed.
func (m *Message) SetMessageID(id string) {
	setMeta(&m.Metadata, MessageIDKey, id)
}

// LastMessageID returns the causal back-reference, or "" when unset.
func (m *Message) LastMessageID() string {
	return MetadataString(m.Metadata, LastMessageIDKey)
}

// SetLastMessageID records the causal back-reference, allocating metadata if needed.
func (m *Message) SetLastMessageID(id string) {
	setMeta(&m.Metadata, LastMessageIDKey, id)
}

// ConversationID returns the conversation correlation id, or "" when unset.
func (m *Message) ConversationID() string {
	return MetadataString(m.Metadata, ConversationIDKey)
}

// MetadataString extracts a string value from a metadata map, returning ""
// when the key is missing or holds a non-string value.
func MetadataString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	if s, ok := meta[key].(string); ok {
		return s
	}
	return ""
}

// TaskStatus describes the observed state of a task at a point in time.
type TaskStatus struct {
	// Description is a human-readable explanation of the state. It is set
	// when a dispatch failure is normalized into a failed task.
	Description string `json:"description,omitempty"`

	// Message carries additional status details, e.g. the agent turn that
	// produced the state change.
	Message *Message `json:"message,omitempty"`

	// State is the lifecycle state of the task.
	State TaskState `json:"state"`

	// Timestamp records when the status was produced.
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Task is a unit of work delegated to a remote agent, tracked from submission
// to a terminal state. Canonical Task values are owned by the aggregating
// host; all other components treat them as read-only.
type Task struct {
	// ID is a unique identifier for the task, stable across updates.
	ID string `json:"id"`

	// Artifacts holds the finished outputs of the task. A task holds exactly
	// one finished artifact per artifact index.
	Artifacts []*Artifact `json:"artifacts,omitempty"`

	// History is the append-only record of messages exchanged for this task,
	// deduplicated by message id.
	History []*Message `json:"history,omitempty"`

	// Metadata carries extension values propagated from the originating request.
	Metadata map[string]any `json:"metadata,omitempty"`

	// SessionID correlates the task with a conversation session.
	SessionID string `json:"sessionId"`

	// Status is the last observed status of the task.
	Status TaskStatus `json:"status"`
}

// ConversationID returns the conversation the task belongs to, resolved from
// task metadata first, then the status message, then history.
func (t *Task) ConversationID() string {
	if id := MetadataString(t.Metadata, ConversationIDKey); id != "" {
		return id
	}
	if t.Status.Message != nil {
		if id := t.Status.Message.ConversationID(); id != "" {
			return id
		}
	}
	for _, m := range t.History {
		if id := m.ConversationID(); id != "" {
			return id
		}
	}
	return ""
}

// NewTaskID generates a new random task identifier.
func NewTaskID() string {
	return newUUIDString()
}

// NewSubmittedTask is a utility for creating a Task in submitted state for a
// request whose remote outcome has not been observed yet. The request message
// becomes the task's status message and its first history entry.
func NewSubmittedTask(req *SendTaskRequest) *Task {
	now := time.Now().UTC()
	task := &Task{
		ID:        req.ID,
		Metadata:  req.Metadata,
		SessionID: req.SessionID,
		Status:    TaskStatus{State: TaskStateSubmitted, Timestamp: &now},
	}
	if req.Message != nil {
		task.Status.Message = req.Message
		task.History = []*Message{req.Message}
	}
	return task
}

// Artifact is a named output payload attached to a task. Large outputs arrive
// as several chunks sharing an index; Append and LastChunk describe how a
// chunk relates to the artifact being assembled at that index.
type Artifact struct {
	// Append indicates the chunk extends the in-progress artifact at Index
	// instead of starting a new one.
	Append bool `json:"append,omitempty"`

	// Description is a human-readable description of the artifact.
	Description string `json:"description,omitempty"`

	// Index is the artifact's position within the task's artifact stream.
	// It is not a byte offset.
	Index int `json:"index"`

	// LastChunk marks the chunk that completes the artifact at Index. Unset
	// is treated as true: a chunk carrying no continuation flag stands alone.
	LastChunk *bool `json:"lastChunk,omitempty"`

	// Metadata carries extension values.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Name is a short name for the artifact.
	Name string `json:"name,omitempty"`

	// Parts is the typed content of the artifact.
	Parts ContentParts `json:"parts"`
}

// FinalChunk reports whether this chunk completes the artifact at its index.
func (a *Artifact) FinalChunk() bool {
	return a.LastChunk == nil || *a.LastChunk
}

// Event is the tagged union over the update payloads a remote agent produces
// for a task: a full Task snapshot, a status update or an artifact chunk.
// The aggregating host dispatches on the concrete type at a single point.
type Event interface {
	isEvent()
}

func (*Task) isEvent()                    {}
func (*TaskStatusUpdateEvent) isEvent()   {}
func (*TaskArtifactUpdateEvent) isEvent() {}

// TaskStatusUpdateEvent notifies the host that the status of a task changed.
type TaskStatusUpdateEvent struct {
	// Final marks the terminal event of a streamed exchange.
	Final bool `json:"final,omitempty"`

	// ID is the id of the task the update belongs to.
	ID string `json:"id"`

	// Metadata carries extension values propagated from the originating request.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Status is the new status of the task.
	Status TaskStatus `json:"status"`
}

// TaskArtifactUpdateEvent carries one artifact chunk produced by a task.
type TaskArtifactUpdateEvent struct {
	// Artifact is the chunk payload.
	Artifact *Artifact `json:"artifact"`

	// ID is the id of the task the chunk belongs to.
	ID string `json:"id"`

	// Metadata carries extension values propagated from the originating request.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// UnmarshalEvent decodes one streamed update into its concrete event type.
// The wire format carries no type discriminator; stream events are
// distinguished by the payload field they carry ("status" or "artifact").
// Full Task snapshots never appear on a stream and are decoded directly.
func UnmarshalEvent(data []byte) (Event, error) {
	var probe struct {
		Artifact json.RawMessage `json:"artifact"`
		Status   json.RawMessage `json:"status"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	switch {
	case len(probe.Artifact) > 0:
		var event TaskArtifactUpdateEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal TaskArtifactUpdateEvent: %w", err)
		}
		return &event, nil
	case len(probe.Status) > 0:
		var event TaskStatusUpdateEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal TaskStatusUpdateEvent: %w", err)
		}
		return &event, nil
	default:
		return nil, ErrUnknownEventType
	}
}

// SendTaskRequest carries the parameters of one task submission to a remote agent.
type SendTaskRequest struct {
	// AcceptedOutputModes lists the output MIME types the caller can handle.
	AcceptedOutputModes []string `json:"acceptedOutputModes,omitempty"`

	// HistoryLength limits how much task history the agent should return.
	HistoryLength *int `json:"historyLength,omitempty"`

	// ID is the id of the task to create or resume.
	ID string `json:"id"`

	// Message is the user turn being submitted.
	Message *Message `json:"message"`

	// Metadata carries extension values. [ConversationIDKey] associates the
	// task with a conversation; it is propagated into every update event.
	Metadata map[string]any `json:"metadata,omitempty"`

	// SessionID correlates the task with a conversation session.
	SessionID string `json:"sessionId"`
}

// NewSendTaskRequest creates a submission for a new task carrying the provided message.
func NewSendTaskRequest(sessionID string, msg *Message) *SendTaskRequest {
	return &SendTaskRequest{
		ID:        NewTaskID(),
		Message:   msg,
		SessionID: sessionID,
	}
}

func newUUIDString() string {
	return uuid.Must(uuid.NewV7()).String()
}

func setMeta(m *map[string]any, k string, v any) {
	if *m == nil {
		*m = make(map[string]any)
	}
	(*m)[k] = v
}
