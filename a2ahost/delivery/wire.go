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

package delivery

import (
	"time"

	"github.com/a2aproject/a2a-host/a2a"
)

// MessageType discriminates the frames pushed to client connections.
type MessageType string

const (
	// TypeNewMessage announces a message added to a conversation.
	TypeNewMessage MessageType = "new_message"

	// TypeTaskUpdate announces a change to a task's canonical state.
	TypeTaskUpdate MessageType = "task_update"

	// TypeConnectionEstablished greets a connection right after the upgrade.
	TypeConnectionEstablished MessageType = "connection_established"

	// TypePing and TypePong are the application-level keepalive exchanged
	// with clients that cannot observe protocol-level ping frames.
	TypePing MessageType = "ping"
	TypePong MessageType = "pong"
)

// Message is one push frame. Clients must ignore frames with a type they do
// not recognize.
type Message struct {
	Type           MessageType     `json:"type"`
	ConversationID string          `json:"conversation_id,omitempty"`
	MessageID      string          `json:"message_id,omitempty"`
	Task           *TaskUpdate     `json:"task,omitempty"`
	NewMessage     *MessagePayload `json:"message,omitempty"`
}

// MessagePayload is the body of a new_message frame.
type MessagePayload struct {
	ID      string           `json:"id"`
	Role    a2a.MessageRole  `json:"role"`
	Content a2a.ContentParts `json:"content"`
}

// TaskUpdate is the body of a task_update frame: a client-facing projection
// of canonical task state.
type TaskUpdate struct {
	ID        string          `json:"id"`
	SessionID string          `json:"sessionId"`
	Status    StatusUpdate    `json:"status"`
	History   []*a2a.Message  `json:"history,omitempty"`
	Artifacts []*a2a.Artifact `json:"artifacts,omitempty"`
	StillOpen bool            `json:"task_still_open"`
}

// StatusUpdate flattens a task status into displayable fields.
type StatusUpdate struct {
	State     a2a.TaskState `json:"state"`
	Message   string        `json:"message"`
	Timestamp string        `json:"timestamp,omitempty"`
}

// NewTaskUpdate builds the frame announcing the current state of task.
func NewTaskUpdate(task *a2a.Task) *Message {
	update := &TaskUpdate{
		ID:        task.ID,
		SessionID: task.SessionID,
		Status: StatusUpdate{
			State:   task.Status.State,
			Message: statusText(task),
		},
		History:   task.History,
		Artifacts: task.Artifacts,
		StillOpen: !task.Status.State.Terminal(),
	}
	if task.Status.Timestamp != nil {
		update.Status.Timestamp = task.Status.Timestamp.Format(time.RFC3339)
	}
	return &Message{
		Type:           TypeTaskUpdate,
		ConversationID: task.ConversationID(),
		MessageID:      notificationMessageID(task),
		Task:           update,
	}
}

// NewMessageNotification builds the frame announcing msg within a
// conversation.
func NewMessageNotification(conversationID string, msg *a2a.Message) *Message {
	return &Message{
		Type:           TypeNewMessage,
		ConversationID: conversationID,
		MessageID:      msg.MessageID(),
		NewMessage: &MessagePayload{
			ID:      msg.MessageID(),
			Role:    msg.Role,
			Content: msg.Parts,
		},
	}
}

// NewConnectionEstablished builds the greeting frame written to a connection
// right after it is registered.
func NewConnectionEstablished() *Message {
	return &Message{Type: TypeConnectionEstablished}
}

// NewPong builds the reply to an inbound ping frame.
func NewPong() *Message {
	return &Message{Type: TypePong}
}

// statusText extracts the first text part of a task's status message. Tasks
// whose status carries no text yield an empty string.
func statusText(task *a2a.Task) string {
	if task.Status.Message == nil {
		return ""
	}
	for _, part := range task.Status.Message.Parts {
		if text, ok := part.(a2a.TextPart); ok {
			return text.Text
		}
	}
	return ""
}

// notificationMessageID resolves the message id a task_update frame is
// attributed to: the status message's id when present, otherwise the id of
// the first user message in history.
func notificationMessageID(task *a2a.Task) string {
	if task.Status.Message != nil {
		if id := task.Status.Message.MessageID(); id != "" {
			return id
		}
	}
	for _, msg := range task.History {
		if msg == nil || msg.Role != a2a.MessageRoleUser {
			continue
		}
		if id := msg.MessageID(); id != "" {
			return id
		}
	}
	return ""
}
