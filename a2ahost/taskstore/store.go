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

// Package taskstore persists canonical task state owned by an aggregating
// host. Stores key every task by the recipient owning its delivery
// connections so session listings never leak tasks across recipients.
package taskstore

import (
	"context"
	"errors"

	"github.com/a2aproject/a2a-host/a2a"
)

// ErrNilTask indicates that a nil task was passed for persistence.
var ErrNilTask = errors.New("nil task")

// Store is the interface the aggregating host uses for persisting and
// retrieving tasks. Implementations must be safe for concurrent use: the host
// saves tasks from fire-and-forget goroutines.
type Store interface {
	// Save upserts the task under the owning recipient key. Later saves of
	// the same task id replace the stored state wholesale.
	Save(ctx context.Context, recipientKey string, task *a2a.Task) error

	// ListBySession returns the recipient's tasks belonging to a session,
	// most recently updated first.
	ListBySession(ctx context.Context, sessionID, recipientKey string) ([]*a2a.Task, error)
}

func validateTask(task *a2a.Task) error {
	if task == nil {
		return ErrNilTask
	}
	if task.ID == "" {
		return a2a.ErrEmptyTaskID
	}
	return nil
}
