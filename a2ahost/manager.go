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

// Package a2ahost aggregates task update events from remote agents into
// canonical task state. The [Manager] is the single authority mutating a
// task: dispatch callbacks feed it events, it folds them in, persists the
// result and pushes the new state to the owning recipient's connections.
package a2ahost

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/a2aproject/a2a-host/a2a"
	"github.com/a2aproject/a2a-host/a2ahost/delivery"
	"github.com/a2aproject/a2a-host/a2ahost/taskstore"
	"github.com/a2aproject/a2a-host/internal/utils"
	"github.com/a2aproject/a2a-host/log"
)

// sideEffectTimeout bounds the detached persistence and delivery goroutines
// spawned after each applied event.
const sideEffectTimeout = 30 * time.Second

// Pusher delivers task update frames to a recipient's live connections.
// [delivery.Manager] implements it.
type Pusher interface {
	Send(ctx context.Context, recipientKey string, msg *delivery.Message)
}

var _ Pusher = (*delivery.Manager)(nil)

// Option configures a [Manager].
type Option func(*Manager)

// WithTimeProvider overrides the clock used to timestamp created tasks.
func WithTimeProvider(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager folds update events into canonical task state. Events for one task
// arrive in stream order because Apply runs synchronously inside the dispatch
// loop draining that stream; concurrent dispatches targeting the same task id
// are not serialized beyond the internal lock and may interleave.
type Manager struct {
	store    taskstore.Store
	delivery Pusher
	now      func() time.Time

	mu             sync.RWMutex
	tasks          map[string]*a2a.Task
	taskForMessage map[string]string
	nextMessage    map[string]string
	chunks         map[string]map[int]*a2a.Artifact
}

// NewManager creates the aggregation authority. A nil store falls back to an
// in-process store; a nil pusher disables delivery.
func NewManager(store taskstore.Store, pusher Pusher, opts ...Option) *Manager {
	if store == nil {
		store = taskstore.NewInMemory(nil)
	}
	m := &Manager{
		store:          store,
		delivery:       pusher,
		now:            time.Now,
		tasks:          make(map[string]*a2a.Task),
		taskForMessage: make(map[string]string),
		nextMessage:    make(map[string]string),
		chunks:         make(map[string]map[int]*a2a.Artifact),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Apply folds one update event into canonical state and returns a copy of the
// updated task, or nil when the event references nothing. It is the callback
// value handed to [a2aclient.Connection.SendTask]-style dispatch loops and
// never fails: malformed events are logged and skipped, and persistence and
// delivery run on detached fire-and-forget goroutines so a slow store or
// client cannot stall protocol progress.
func (m *Manager) Apply(ctx context.Context, event a2a.Event, card *a2a.AgentCard) *a2a.Task {
	var agent string
	if card != nil {
		agent = card.Name
	}

	m.mu.Lock()
	task, mutated := m.applyEventLocked(ctx, event)

	var snapshot *a2a.Task
	var recipient string
	if task != nil {
		copied, err := utils.DeepCopy(task)
		if err != nil {
			log.Error(ctx, "failed to snapshot task", err, "task_id", task.ID)
			mutated = false
		} else {
			snapshot = copied
			recipient = recipientKey(task)
		}
	}
	m.mu.Unlock()

	if snapshot == nil {
		return nil
	}
	if mutated {
		m.persistAndDeliver(ctx, recipient, snapshot, agent)
	}
	return snapshot
}

// Task returns a copy of the task with the given id, or nil if none exists.
func (m *Manager) Task(taskID string) *a2a.Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	task, ok := m.tasks[taskID]
	if !ok {
		return nil
	}
	copied, err := utils.DeepCopy(task)
	if err != nil {
		return nil
	}
	return copied
}

// TaskForMessage returns the id of the task a message belongs to. It resumes
// a task when a follow-up message references an id from its thread.
func (m *Manager) TaskForMessage(messageID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	taskID, ok := m.taskForMessage[messageID]
	return taskID, ok
}

// NextMessage follows the causal chain one step: it returns the id of the
// message that declared messageID as its predecessor.
func (m *Manager) NextMessage(messageID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	nextID, ok := m.nextMessage[messageID]
	return nextID, ok
}

// TasksForSession returns copies of every task belonging to the session,
// ordered by task id.
func (m *Manager) TasksForSession(sessionID string) []*a2a.Task {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var tasks []*a2a.Task
	for _, task := range m.tasks {
		if task.SessionID != sessionID {
			continue
		}
		copied, err := utils.DeepCopy(task)
		if err != nil {
			continue
		}
		tasks = append(tasks, copied)
	}
	slices.SortFunc(tasks, func(a, b *a2a.Task) int {
		return strings.Compare(a.ID, b.ID)
	})
	return tasks
}

// applyEventLocked dispatches on the event type and mutates canonical state.
// It returns the affected task (nil when the event references nothing) and
// whether state actually changed.
func (m *Manager) applyEventLocked(ctx context.Context, event a2a.Event) (*a2a.Task, bool) {
	switch e := event.(type) {
	case *a2a.TaskStatusUpdateEvent:
		if e == nil || e.ID == "" {
			log.Warn(ctx, "skipping status update without task id")
			return nil, false
		}
		return m.applyStatusLocked(ctx, e)

	case *a2a.TaskArtifactUpdateEvent:
		if e == nil || e.ID == "" {
			log.Warn(ctx, "skipping artifact update without task id")
			return nil, false
		}
		if e.Artifact == nil {
			log.Warn(ctx, "skipping artifact update without artifact", "task_id", e.ID)
			return m.tasks[e.ID], false
		}
		return m.applyArtifactLocked(ctx, e)

	case *a2a.Task:
		if e == nil || e.ID == "" {
			log.Warn(ctx, "skipping task snapshot without id")
			return nil, false
		}
		return m.applyTaskLocked(ctx, e)

	default:
		log.Warn(ctx, "skipping unsupported event", "type", fmt.Sprintf("%T", event))
		return nil, false
	}
}

// applyStatusLocked sets the task status wholesale and indexes the status
// message. Last write wins; no transition table is enforced.
func (m *Manager) applyStatusLocked(ctx context.Context, event *a2a.TaskStatusUpdateEvent) (*a2a.Task, bool) {
	status, err := utils.DeepCopy(event.Status)
	if err != nil {
		log.Error(ctx, "failed to copy status update", err, "task_id", event.ID)
		return m.tasks[event.ID], false
	}

	task := m.findOrCreateLocked(ctx, event.ID, event.Metadata)
	task.Status = status
	m.indexMessageLocked(task, status.Message)
	return task, true
}

// applyArtifactLocked folds one artifact chunk into the task.
func (m *Manager) applyArtifactLocked(ctx context.Context, event *a2a.TaskArtifactUpdateEvent) (*a2a.Task, bool) {
	chunk, err := utils.DeepCopy(event.Artifact)
	if err != nil {
		log.Error(ctx, "failed to copy artifact chunk", err, "task_id", event.ID)
		return m.tasks[event.ID], false
	}

	task := m.findOrCreateLocked(ctx, event.ID, event.Metadata)
	m.foldArtifactLocked(ctx, task, event.ID, chunk)
	return task, true
}

// applyTaskLocked inserts a full task snapshot or replaces the stored task's
// fields wholesale. History is deduplicated by message id so replayed
// snapshots do not grow it.
func (m *Manager) applyTaskLocked(ctx context.Context, event *a2a.Task) (*a2a.Task, bool) {
	incoming, err := utils.DeepCopy(event)
	if err != nil {
		log.Error(ctx, "failed to copy task snapshot", err, "task_id", event.ID)
		return m.tasks[event.ID], false
	}
	incoming.History = dedupeHistory(incoming.History)

	current, ok := m.tasks[incoming.ID]
	if ok && incoming.SessionID == "" {
		incoming.SessionID = current.SessionID
	}
	m.tasks[incoming.ID] = incoming
	m.indexMessageLocked(incoming, incoming.Status.Message)

	if !ok {
		log.Debug(ctx, "task created", "task_id", incoming.ID, "session_id", incoming.SessionID)
	}
	return incoming, true
}

// findOrCreateLocked returns the stored task or creates it in SUBMITTED state,
// with the session id taken from the event metadata.
func (m *Manager) findOrCreateLocked(ctx context.Context, taskID string, metadata map[string]any) *a2a.Task {
	if task, ok := m.tasks[taskID]; ok {
		return task
	}
	now := m.now().UTC()
	task := &a2a.Task{
		ID:        taskID,
		SessionID: a2a.MetadataString(metadata, a2a.ConversationIDKey),
		Status:    a2a.TaskStatus{State: a2a.TaskStateSubmitted, Timestamp: &now},
		Metadata:  maps.Clone(metadata),
	}
	m.tasks[taskID] = task
	log.Debug(ctx, "task created", "task_id", taskID, "session_id", task.SessionID)
	return task
}

// indexMessageLocked appends msg to the task history unless an entry with the
// same message id already exists, and records the resumption and causal-chain
// indexes. Messages without an id cannot be deduplicated or resumed and are
// not recorded.
func (m *Manager) indexMessageLocked(task *a2a.Task, msg *a2a.Message) {
	if msg == nil {
		return
	}
	id := msg.MessageID()
	if id == "" {
		return
	}

	m.taskForMessage[id] = task.ID
	if last := msg.LastMessageID(); last != "" {
		m.nextMessage[last] = id
	}
	if !historyContains(task.History, id) {
		task.History = append(task.History, msg)
	}
}

// persistAndDeliver runs the store save and the recipient push on detached
// goroutines. task is a private copy; both side effects only read it.
func (m *Manager) persistAndDeliver(ctx context.Context, recipientKey string, task *a2a.Task, agent string) {
	log.Debug(ctx, "task update applied",
		"task_id", task.ID, "state", string(task.Status.State), "agent", agent)

	detached := context.WithoutCancel(ctx)
	go func() {
		saveCtx, cancel := context.WithTimeout(detached, sideEffectTimeout)
		defer cancel()
		if err := m.store.Save(saveCtx, recipientKey, task); err != nil {
			log.Error(saveCtx, "failed to persist task", err, "task_id", task.ID)
		}
	}()

	if m.delivery == nil {
		return
	}
	if recipientKey == "" {
		log.Debug(ctx, "task has no recipient yet, skipping delivery", "task_id", task.ID)
		return
	}
	frame := delivery.NewTaskUpdate(task)
	go func() {
		sendCtx, cancel := context.WithTimeout(detached, sideEffectTimeout)
		defer cancel()
		m.delivery.Send(sendCtx, recipientKey, frame)
	}()
}

func historyContains(history []*a2a.Message, messageID string) bool {
	for _, msg := range history {
		if msg != nil && msg.MessageID() == messageID {
			return true
		}
	}
	return false
}

// dedupeHistory drops history entries repeating an earlier message id,
// keeping first occurrences and their order. Entries without an id are kept.
func dedupeHistory(history []*a2a.Message) []*a2a.Message {
	if len(history) == 0 {
		return history
	}
	seen := make(map[string]struct{}, len(history))
	deduped := history[:0]
	for _, msg := range history {
		if msg == nil {
			continue
		}
		if id := msg.MessageID(); id != "" {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
		}
		deduped = append(deduped, msg)
	}
	return deduped
}
