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

// Package delivery pushes task updates and conversation messages to client
// connections, keyed by recipient. Frames for offline recipients are queued
// and flushed on their next connect; transient write failures are retried on
// a bounded schedule.
package delivery

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/a2aproject/a2a-host/log"
)

const (
	defaultPendingLimit = 100
	defaultMaxRetries   = 3
	defaultRetryBase    = time.Second
	defaultRetryWorkers = 4
	defaultRetryBacklog = 64
)

// Conn is one live client connection the manager writes frames to.
type Conn interface {
	// WriteMessage hands one encoded frame to the client. It must not block
	// indefinitely; an error marks the connection dead and removes it.
	WriteMessage(data []byte) error

	// Close releases the connection. It must be safe to call more than once.
	Close() error
}

// Handle identifies one registered connection within a [Manager].
type Handle struct {
	recipientKey string
	conn         Conn
}

// RecipientKey returns the key the connection is registered under.
func (h *Handle) RecipientKey() string {
	return h.recipientKey
}

// Option configures a [Manager].
type Option func(*Manager)

// WithPendingLimit caps the number of frames queued per offline recipient.
// When the cap is reached the oldest frame is dropped, since newer frames
// supersede the state it carried. Default 100.
func WithPendingLimit(n int) Option {
	return func(m *Manager) { m.pendingLimit = n }
}

// WithMaxRetries bounds how many times a failed send is retried before the
// frames are left queued for the recipient's next connect. Default 3.
func WithMaxRetries(n int) Option {
	return func(m *Manager) { m.maxRetries = n }
}

// WithRetryPolicy overrides the delay policy for retried sends. The default
// backs off linearly from one second.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(m *Manager) { m.policy = p }
}

// Manager fans frames out to every live connection of a recipient. Recipients
// are identified by an opaque key, typically the wallet address a task was
// initiated under.
type Manager struct {
	pendingLimit int
	maxRetries   int
	policy       RetryPolicy
	retries      *retryScheduler

	connsMu sync.RWMutex
	conns   map[string]map[*Handle]struct{}

	pendingMu sync.Mutex
	pending   map[string][][]byte
}

// NewManager creates a delivery manager. Close must be called to release its
// retry workers.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		pendingLimit: defaultPendingLimit,
		maxRetries:   defaultMaxRetries,
		policy:       &LinearBackoff{BaseDelay: defaultRetryBase},
		conns:        make(map[string]map[*Handle]struct{}),
		pending:      make(map[string][][]byte),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.retries = newRetryScheduler(defaultRetryWorkers, defaultRetryBacklog, m.retry)
	return m
}

// Connect registers conn under recipientKey and flushes any frames queued
// while the recipient was offline, oldest first. The returned handle is
// passed to Disconnect when the connection goes away.
func (m *Manager) Connect(ctx context.Context, recipientKey string, conn Conn) *Handle {
	handle := &Handle{recipientKey: recipientKey, conn: conn}

	m.connsMu.Lock()
	set := m.conns[recipientKey]
	if set == nil {
		set = make(map[*Handle]struct{})
		m.conns[recipientKey] = set
	}
	set[handle] = struct{}{}
	m.connsMu.Unlock()

	log.Debug(ctx, "connection registered", "recipient", recipientKey)
	m.drainPending(ctx, recipientKey, handle)
	return handle
}

// Disconnect removes the connection from the live set and closes it. Queued
// frames are preserved for a future connect.
func (m *Manager) Disconnect(ctx context.Context, handle *Handle) {
	if handle == nil {
		return
	}

	m.connsMu.Lock()
	set := m.conns[handle.recipientKey]
	if _, ok := set[handle]; ok {
		delete(set, handle)
		if len(set) == 0 {
			delete(m.conns, handle.recipientKey)
		}
	}
	m.connsMu.Unlock()

	if err := handle.conn.Close(); err != nil {
		log.Debug(ctx, "connection close failed", "recipient", handle.recipientKey, "error", err)
	}
}

// Send delivers msg to every live connection of the recipient. With no live
// connections the frame is queued for the next connect. When every live write
// fails, the frame is queued and the queue is retried on a bounded schedule.
func (m *Manager) Send(ctx context.Context, recipientKey string, msg *Message) {
	if recipientKey == "" {
		log.Debug(ctx, "dropping frame without recipient key", "type", string(msg.Type))
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error(ctx, "failed to encode push frame", err, "type", string(msg.Type))
		return
	}
	m.send(ctx, recipientKey, data)
}

// Broadcast delivers msg to every recipient with at least one live
// connection.
func (m *Manager) Broadcast(ctx context.Context, msg *Message) {
	for _, key := range m.LiveRecipients() {
		m.Send(ctx, key, msg)
	}
}

// LiveRecipients returns the keys of every recipient with at least one live
// connection, sorted.
func (m *Manager) LiveRecipients() []string {
	m.connsMu.RLock()
	keys := make([]string, 0, len(m.conns))
	for key := range m.conns {
		keys = append(keys, key)
	}
	m.connsMu.RUnlock()

	slices.Sort(keys)
	return keys
}

// ConnectionCount returns the number of live connections registered for the
// recipient.
func (m *Manager) ConnectionCount(recipientKey string) int {
	m.connsMu.RLock()
	defer m.connsMu.RUnlock()
	return len(m.conns[recipientKey])
}

// PendingCount returns the number of frames queued for the recipient.
func (m *Manager) PendingCount(recipientKey string) int {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	return len(m.pending[recipientKey])
}

// Close stops the retry workers and closes every live connection. Queued
// frames are discarded.
func (m *Manager) Close() {
	m.retries.stop()

	m.connsMu.Lock()
	conns := m.conns
	m.conns = make(map[string]map[*Handle]struct{})
	m.connsMu.Unlock()

	m.pendingMu.Lock()
	m.pending = make(map[string][][]byte)
	m.pendingMu.Unlock()

	for _, set := range conns {
		for handle := range set {
			_ = handle.conn.Close()
		}
	}
}

func (m *Manager) send(ctx context.Context, recipientKey string, data []byte) {
	handles := m.liveConns(recipientKey)
	if len(handles) == 0 {
		m.enqueue(ctx, recipientKey, data)
		return
	}

	failed := m.writeAll(ctx, handles, data)
	m.prune(ctx, failed)
	if len(failed) == len(handles) {
		// Every connection refused the frame. Queue it and retry the queue
		// once the recipient is reachable again.
		m.enqueue(ctx, recipientKey, data)
		m.scheduleRetry(ctx, recipientKey, 1)
	}
}

// writeAll writes data to every handle concurrently and returns the handles
// whose write failed.
func (m *Manager) writeAll(ctx context.Context, handles []*Handle, data []byte) []*Handle {
	var (
		g      errgroup.Group
		mu     sync.Mutex
		failed []*Handle
	)
	for _, handle := range handles {
		g.Go(func() error {
			if err := handle.conn.WriteMessage(data); err != nil {
				log.Warn(ctx, "connection write failed",
					"recipient", handle.recipientKey, "error", err)
				mu.Lock()
				failed = append(failed, handle)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return failed
}

// drainPending flushes the recipient's queue oldest first. A non-nil conn
// restricts writes to that connection (the one that just registered);
// otherwise every live connection receives each frame. The drain stops, with
// the frame put back, as soon as no connection accepts it.
func (m *Manager) drainPending(ctx context.Context, recipientKey string, conn *Handle) {
	for {
		data, ok := m.dequeue(recipientKey)
		if !ok {
			return
		}

		handles := []*Handle{conn}
		if conn == nil {
			handles = m.liveConns(recipientKey)
		}
		if len(handles) == 0 {
			m.requeueFront(recipientKey, data)
			return
		}

		failed := m.writeAll(ctx, handles, data)
		m.prune(ctx, failed)
		if len(failed) == len(handles) {
			m.requeueFront(recipientKey, data)
			return
		}
	}
}

// retry drains the recipient's queue when a connection is live, rescheduling
// itself while frames remain, up to the retry bound.
func (m *Manager) retry(ctx context.Context, job retryJob) {
	if m.ConnectionCount(job.recipientKey) > 0 {
		m.drainPending(ctx, job.recipientKey, nil)
	}
	if m.PendingCount(job.recipientKey) == 0 {
		return
	}
	if job.attempt >= m.maxRetries {
		log.Warn(ctx, "delivery retries exhausted, frames stay queued",
			"recipient", job.recipientKey, "attempts", job.attempt)
		return
	}
	m.scheduleRetry(ctx, job.recipientKey, job.attempt+1)
}

func (m *Manager) scheduleRetry(ctx context.Context, recipientKey string, attempt int) {
	job := retryJob{
		recipientKey: recipientKey,
		attempt:      attempt,
		delay:        m.policy.NextDelay(attempt),
	}
	if !m.retries.schedule(job) {
		log.Warn(ctx, "retry backlog full, frames stay queued", "recipient", recipientKey)
	}
}

func (m *Manager) prune(ctx context.Context, handles []*Handle) {
	for _, handle := range handles {
		log.Info(ctx, "removing dead connection", "recipient", handle.recipientKey)
		m.Disconnect(ctx, handle)
	}
}

func (m *Manager) liveConns(recipientKey string) []*Handle {
	m.connsMu.RLock()
	defer m.connsMu.RUnlock()
	set := m.conns[recipientKey]
	handles := make([]*Handle, 0, len(set))
	for handle := range set {
		handles = append(handles, handle)
	}
	return handles
}

func (m *Manager) enqueue(ctx context.Context, recipientKey string, data []byte) {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	queue := m.pending[recipientKey]
	if len(queue) >= m.pendingLimit {
		// Newer frames supersede the state the oldest one carried.
		queue = queue[1:]
		log.Warn(ctx, "pending queue full, dropping oldest frame", "recipient", recipientKey)
	}
	m.pending[recipientKey] = append(queue, data)
}

func (m *Manager) dequeue(recipientKey string) ([]byte, bool) {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	queue := m.pending[recipientKey]
	if len(queue) == 0 {
		return nil, false
	}
	data := queue[0]
	if len(queue) == 1 {
		delete(m.pending, recipientKey)
	} else {
		m.pending[recipientKey] = queue[1:]
	}
	return data, true
}

func (m *Manager) requeueFront(recipientKey string, data []byte) {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	m.pending[recipientKey] = append([][]byte{data}, m.pending[recipientKey]...)
}
