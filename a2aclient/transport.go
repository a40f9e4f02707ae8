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

package a2aclient

import (
	"context"
	"iter"

	"github.com/a2aproject/a2a-host/a2a"
)

// Transport performs protocol calls against a single remote agent.
// Implementations are a translation layer between a2a core types and wire
// formats and must be safe for concurrent use by multiple goroutines.
type Transport interface {
	// SendTask performs one blocking request/response task exchange and
	// returns the agent's view of the task.
	SendTask(ctx context.Context, req *a2a.SendTaskRequest) (*a2a.Task, error)

	// SendTaskStreaming opens a server-streamed task exchange and yields
	// update events in arrival order. Iteration ends when the server closes
	// the stream, the consumer stops, or the context is canceled.
	SendTaskStreaming(ctx context.Context, req *a2a.SendTaskRequest) iter.Seq2[a2a.Event, error]

	// GetTask fetches the agent's current view of a task.
	GetTask(ctx context.Context, taskID string) (*a2a.Task, error)

	// CancelTask requests cancellation of an in-flight task.
	CancelTask(ctx context.Context, taskID string) (*a2a.Task, error)
}
