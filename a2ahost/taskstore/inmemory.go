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

package taskstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/a2aproject/a2a-host/a2a"
	"github.com/a2aproject/a2a-host/internal/utils"
)

type storedTask struct {
	task         *a2a.Task
	recipientKey string
	lastUpdated  time.Time
}

// InMemoryConfig is a configuration for the [InMemory] store.
type InMemoryConfig struct {
	TimeProvider func() time.Time
}

// InMemory is an implementation of [Store] which keeps tasks in memory.
// Store contents do not survive process restarts.
type InMemory struct {
	mu    sync.RWMutex
	tasks map[string]*storedTask

	config InMemoryConfig
}

var _ Store = (*InMemory)(nil)

// NewInMemory creates an empty [InMemory] store.
func NewInMemory(config *InMemoryConfig) *InMemory {
	s := &InMemory{tasks: make(map[string]*storedTask)}

	if config != nil {
		s.config = *config
	}

	if s.config.TimeProvider == nil {
		s.config.TimeProvider = time.Now
	}

	return s
}

// Save implements [Store].
func (s *InMemory) Save(ctx context.Context, recipientKey string, task *a2a.Task) error {
	if err := validateTask(task); err != nil {
		return err
	}

	copy, err := utils.DeepCopy(task)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = &storedTask{
		task:         copy,
		recipientKey: recipientKey,
		lastUpdated:  s.config.TimeProvider(),
	}
	return nil
}

// ListBySession implements [Store].
func (s *InMemory) ListBySession(ctx context.Context, sessionID, recipientKey string) ([]*a2a.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*storedTask
	for _, stored := range s.tasks {
		if stored.task.SessionID == sessionID && stored.recipientKey == recipientKey {
			matched = append(matched, stored)
		}
	}
	slices.SortFunc(matched, func(a, b *storedTask) int {
		return b.lastUpdated.Compare(a.lastUpdated)
	})

	tasks := make([]*a2a.Task, 0, len(matched))
	for _, stored := range matched {
		copy, err := utils.DeepCopy(stored.task)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, copy)
	}
	return tasks, nil
}
