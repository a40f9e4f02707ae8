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

package a2a

import (
	"testing"

	"github.com/a2aproject/a2a-host/internal/utils"
)

func TestTaskStateTerminal(t *testing.T) {
	testCases := []struct {
		state TaskState
		want  bool
	}{
		{TaskStateSubmitted, false},
		{TaskStateWorking, false},
		{TaskStateInputRequired, false},
		{TaskStateCompleted, true},
		{TaskStateCanceled, true},
		{TaskStateFailed, true},
		{TaskStateUnknown, true},
	}

	for _, tc := range testCases {
		t.Run(string(tc.state), func(t *testing.T) {
			if got := tc.state.Terminal(); got != tc.want {
				t.Fatalf("Terminal() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMessageIDAccessors(t *testing.T) {
	var m Message
	if got := m.MessageID(); got != "" {
		t.Fatalf("MessageID() = %q, want empty", got)
	}

	m.SetMessageID("m1")
	if got := m.MessageID(); got != "m1" {
		t.Fatalf("MessageID() = %q, want %q", got, "m1")
	}

	m.SetLastMessageID("m0")
	if got := m.LastMessageID(); got != "m0" {
		t.Fatalf("LastMessageID() = %q, want %q", got, "m0")
	}

	// Non-string values are treated as unset.
	m.Metadata[MessageIDKey] = 42
	if got := m.MessageID(); got != "" {
		t.Fatalf("MessageID() = %q, want empty for non-string value", got)
	}
}

func TestNewMessageAssignsID(t *testing.T) {
	m := NewMessage(MessageRoleUser, NewTextPart("hi"))
	if m.MessageID() == "" {
		t.Fatal("NewMessage() produced a message without an id")
	}
	if m.Role != MessageRoleUser {
		t.Fatalf("NewMessage() role = %q, want %q", m.Role, MessageRoleUser)
	}
}

func TestTaskConversationID(t *testing.T) {
	statusMsg := &Message{Metadata: map[string]any{ConversationIDKey: "c-status"}}
	historyMsg := &Message{Metadata: map[string]any{ConversationIDKey: "c-history"}}

	testCases := []struct {
		name string
		task *Task
		want string
	}{
		{
			name: "from task metadata",
			task: &Task{
				Metadata: map[string]any{ConversationIDKey: "c-meta"},
				Status:   TaskStatus{Message: statusMsg},
				History:  []*Message{historyMsg},
			},
			want: "c-meta",
		},
		{
			name: "from status message",
			task: &Task{
				Status:  TaskStatus{Message: statusMsg},
				History: []*Message{historyMsg},
			},
			want: "c-status",
		},
		{
			name: "from history",
			task: &Task{History: []*Message{{}, historyMsg}},
			want: "c-history",
		},
		{
			name: "unset",
			task: &Task{},
			want: "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.task.ConversationID(); got != tc.want {
				t.Fatalf("ConversationID() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestArtifactFinalChunk(t *testing.T) {
	testCases := []struct {
		name     string
		artifact Artifact
		want     bool
	}{
		{name: "unset", artifact: Artifact{}, want: true},
		{name: "true", artifact: Artifact{LastChunk: utils.Ptr(true)}, want: true},
		{name: "false", artifact: Artifact{LastChunk: utils.Ptr(false)}, want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.artifact.FinalChunk(); got != tc.want {
				t.Fatalf("FinalChunk() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNewSubmittedTask(t *testing.T) {
	req := &SendTaskRequest{
		ID:        "t1",
		Message:   NewMessage(MessageRoleUser, NewTextPart("hi")),
		Metadata:  map[string]any{ConversationIDKey: "c1"},
		SessionID: "s1",
	}

	task := NewSubmittedTask(req)
	if task.ID != "t1" || task.SessionID != "s1" {
		t.Fatalf("NewSubmittedTask() ids = (%q, %q), want (%q, %q)", task.ID, task.SessionID, "t1", "s1")
	}
	if task.Status.State != TaskStateSubmitted {
		t.Fatalf("NewSubmittedTask() state = %q, want %q", task.Status.State, TaskStateSubmitted)
	}
	if task.Status.Timestamp == nil {
		t.Fatal("NewSubmittedTask() produced a status without a timestamp")
	}
	if got := MetadataString(task.Metadata, ConversationIDKey); got != "c1" {
		t.Fatalf("task metadata conversation id = %q, want %q", got, "c1")
	}
	if task.Status.Message != req.Message {
		t.Fatal("NewSubmittedTask() did not carry the request message in its status")
	}
	if len(task.History) != 1 || task.History[0] != req.Message {
		t.Fatalf("NewSubmittedTask() history = %v, want the request message", task.History)
	}
}

func TestNewSendTaskRequestAssignsTaskID(t *testing.T) {
	req := NewSendTaskRequest("s1", NewMessage(MessageRoleUser, NewTextPart("hi")))
	if req.ID == "" {
		t.Fatal("NewSendTaskRequest() produced a request without a task id")
	}
	if req.SessionID != "s1" {
		t.Fatalf("NewSendTaskRequest() session = %q, want %q", req.SessionID, "s1")
	}
}
