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
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// fakeConn records written frames. failFirst makes the first n writes fail.
type fakeConn struct {
	mu        sync.Mutex
	frames    [][]byte
	failFirst int
	writes    int
	closed    bool
}

func (c *fakeConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes++
	if c.writes <= c.failFirst {
		return errors.New("write failed")
	}
	c.frames = append(c.frames, slices.Clone(data))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) frameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// messageIDs decodes the message_id of every recorded frame.
func (c *fakeConn) messageIDs(t *testing.T) []string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.frames))
	for _, data := range c.frames {
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("recorded frame is not valid JSON: %v", err)
		}
		ids = append(ids, msg.MessageID)
	}
	return ids
}

func note(id string) *Message {
	return &Message{Type: TypeNewMessage, MessageID: id}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestManagerSendToLiveConnections(t *testing.T) {
	m := NewManager()
	defer m.Close()

	c1, c2 := &fakeConn{}, &fakeConn{}
	m.Connect(t.Context(), "w1", c1)
	m.Connect(t.Context(), "w1", c2)

	m.Send(t.Context(), "w1", note("m1"))

	for _, conn := range []*fakeConn{c1, c2} {
		if got := conn.messageIDs(t); !slices.Equal(got, []string{"m1"}) {
			t.Errorf("connection frames = %v, want [m1]", got)
		}
	}
	if got := m.PendingCount("w1"); got != 0 {
		t.Errorf("PendingCount() = %d, want 0", got)
	}
}

func TestManagerSendPreservesOrder(t *testing.T) {
	m := NewManager()
	defer m.Close()

	conn := &fakeConn{}
	m.Connect(t.Context(), "w1", conn)

	m.Send(t.Context(), "w1", note("m1"))
	m.Send(t.Context(), "w1", note("m2"))

	if diff := cmp.Diff([]string{"m1", "m2"}, conn.messageIDs(t)); diff != "" {
		t.Errorf("frame order mismatch (-want +got):\n%s", diff)
	}
}

func TestManagerQueuesForOfflineRecipient(t *testing.T) {
	m := NewManager()
	defer m.Close()

	conn := &fakeConn{}
	handle := m.Connect(t.Context(), "w1", conn)
	m.Disconnect(t.Context(), handle)

	m.Send(t.Context(), "w1", note("m1"))
	m.Send(t.Context(), "w1", note("m2"))

	if got := conn.frameCount(); got != 0 {
		t.Errorf("disconnected connection received %d frames, want 0", got)
	}
	if got := m.PendingCount("w1"); got != 2 {
		t.Errorf("PendingCount() = %d, want 2", got)
	}

	// Reconnecting flushes the queue in send order.
	fresh := &fakeConn{}
	m.Connect(t.Context(), "w1", fresh)

	if diff := cmp.Diff([]string{"m1", "m2"}, fresh.messageIDs(t)); diff != "" {
		t.Errorf("drained frames mismatch (-want +got):\n%s", diff)
	}
	if got := m.PendingCount("w1"); got != 0 {
		t.Errorf("PendingCount() after connect = %d, want 0", got)
	}
}

func TestManagerPendingLimitDropsOldest(t *testing.T) {
	m := NewManager(WithPendingLimit(2))
	defer m.Close()

	m.Send(t.Context(), "w1", note("m1"))
	m.Send(t.Context(), "w1", note("m2"))
	m.Send(t.Context(), "w1", note("m3"))

	if got := m.PendingCount("w1"); got != 2 {
		t.Fatalf("PendingCount() = %d, want 2", got)
	}

	conn := &fakeConn{}
	m.Connect(t.Context(), "w1", conn)
	if diff := cmp.Diff([]string{"m2", "m3"}, conn.messageIDs(t)); diff != "" {
		t.Errorf("drained frames mismatch (-want +got):\n%s", diff)
	}
}

func TestManagerPrunesDeadConnections(t *testing.T) {
	m := NewManager()
	defer m.Close()

	healthy := &fakeConn{}
	dead := &fakeConn{failFirst: 100}
	m.Connect(t.Context(), "w1", healthy)
	m.Connect(t.Context(), "w1", dead)

	m.Send(t.Context(), "w1", note("m1"))

	if got := healthy.messageIDs(t); !slices.Equal(got, []string{"m1"}) {
		t.Errorf("healthy connection frames = %v, want [m1]", got)
	}
	if got := m.ConnectionCount("w1"); got != 1 {
		t.Errorf("ConnectionCount() = %d, want 1", got)
	}
	if !dead.isClosed() {
		t.Error("dead connection was not closed")
	}
	// One write succeeded, so nothing is queued.
	if got := m.PendingCount("w1"); got != 0 {
		t.Errorf("PendingCount() = %d, want 0", got)
	}
}

func TestManagerRetriesAfterTotalWriteFailure(t *testing.T) {
	m := NewManager(WithRetryPolicy(&LinearBackoff{BaseDelay: 10 * time.Millisecond}))
	defer m.Close()

	dead := &fakeConn{failFirst: 100}
	m.Connect(t.Context(), "w1", dead)
	m.Send(t.Context(), "w1", note("m1"))

	if got := m.ConnectionCount("w1"); got != 0 {
		t.Fatalf("ConnectionCount() = %d, want 0 after prune", got)
	}
	if got := m.PendingCount("w1"); got != 1 {
		t.Fatalf("PendingCount() = %d, want 1", got)
	}

	// Register a connection without the connect-time drain so that only the
	// scheduled retry can flush the queue.
	fresh := &fakeConn{}
	handle := &Handle{recipientKey: "w1", conn: fresh}
	m.connsMu.Lock()
	m.conns["w1"] = map[*Handle]struct{}{handle: {}}
	m.connsMu.Unlock()

	waitFor(t, "retry to flush the queue", func() bool {
		return fresh.frameCount() == 1 && m.PendingCount("w1") == 0
	})
	if diff := cmp.Diff([]string{"m1"}, fresh.messageIDs(t)); diff != "" {
		t.Errorf("retried frames mismatch (-want +got):\n%s", diff)
	}
}

func TestManagerRetriesGiveUpButKeepFrames(t *testing.T) {
	m := NewManager(
		WithRetryPolicy(&LinearBackoff{BaseDelay: time.Millisecond}),
		WithMaxRetries(1),
	)
	defer m.Close()

	dead := &fakeConn{failFirst: 100}
	m.Connect(t.Context(), "w1", dead)
	m.Send(t.Context(), "w1", note("m1"))

	// Give the single retry ample time to fire and give up.
	time.Sleep(100 * time.Millisecond)
	if got := m.PendingCount("w1"); got != 1 {
		t.Fatalf("PendingCount() after retries = %d, want 1", got)
	}

	// The frame survives for the next connect.
	fresh := &fakeConn{}
	m.Connect(t.Context(), "w1", fresh)
	if diff := cmp.Diff([]string{"m1"}, fresh.messageIDs(t)); diff != "" {
		t.Errorf("drained frames mismatch (-want +got):\n%s", diff)
	}
}

func TestManagerDisconnectLeavesOtherConnections(t *testing.T) {
	m := NewManager()
	defer m.Close()

	c1, c2 := &fakeConn{}, &fakeConn{}
	h1 := m.Connect(t.Context(), "w1", c1)
	m.Connect(t.Context(), "w1", c2)

	m.Disconnect(t.Context(), h1)
	m.Send(t.Context(), "w1", note("m1"))

	if got := c1.frameCount(); got != 0 {
		t.Errorf("disconnected connection received %d frames, want 0", got)
	}
	if got := c2.messageIDs(t); !slices.Equal(got, []string{"m1"}) {
		t.Errorf("remaining connection frames = %v, want [m1]", got)
	}
	if !c1.isClosed() {
		t.Error("Disconnect did not close the connection")
	}
}

func TestManagerBroadcast(t *testing.T) {
	m := NewManager()
	defer m.Close()

	c1, c2 := &fakeConn{}, &fakeConn{}
	m.Connect(t.Context(), "w1", c1)
	m.Connect(t.Context(), "w2", c2)
	m.Send(t.Context(), "w3", note("queued")) // offline recipient

	m.Broadcast(t.Context(), note("hello"))

	for _, conn := range []*fakeConn{c1, c2} {
		if got := conn.messageIDs(t); !slices.Equal(got, []string{"hello"}) {
			t.Errorf("connection frames = %v, want [hello]", got)
		}
	}
	// Broadcast targets live recipients only.
	if got := m.PendingCount("w3"); got != 1 {
		t.Errorf("PendingCount(w3) = %d, want 1", got)
	}
	if got := m.LiveRecipients(); !slices.Equal(got, []string{"w1", "w2"}) {
		t.Errorf("LiveRecipients() = %v, want [w1 w2]", got)
	}
}

func TestManagerSendWithoutRecipientKey(t *testing.T) {
	m := NewManager()
	defer m.Close()

	m.Send(t.Context(), "", note("m1"))

	if got := m.PendingCount(""); got != 0 {
		t.Errorf("PendingCount() = %d, want 0", got)
	}
}

func TestManagerClose(t *testing.T) {
	m := NewManager()

	conn := &fakeConn{}
	m.Connect(t.Context(), "w1", conn)
	m.Send(t.Context(), "w2", note("m1"))

	m.Close()

	if !conn.isClosed() {
		t.Error("Close did not close live connections")
	}
	if got := m.ConnectionCount("w1"); got != 0 {
		t.Errorf("ConnectionCount() = %d, want 0", got)
	}
	if got := m.PendingCount("w2"); got != 0 {
		t.Errorf("PendingCount() = %d, want 0", got)
	}
}
