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

package a2ahost

import (
	"context"
	"maps"

	"github.com/a2aproject/a2a-host/a2a"
	"github.com/a2aproject/a2a-host/log"
)

// foldArtifactLocked reassembles chunked artifacts and appends finished ones
// to task.Artifacts. Chunks are buffered per (task id, artifact index): a
// non-append chunk opens the buffer, append chunks extend it, and the chunk
// carrying lastChunk (or no continuation flag at all) completes it. Only the
// completing index is resolved; buffers at other indexes keep accumulating
// until their own final chunk arrives.
func (m *Manager) foldArtifactLocked(ctx context.Context, task *a2a.Task, taskID string, chunk *a2a.Artifact) {
	buffers := m.chunks[taskID]

	if !chunk.Append {
		if chunk.FinalChunk() {
			// Complete in one chunk. An open buffer at this index can never
			// finish now that the index is taken; drop it.
			if _, open := buffers[chunk.Index]; open {
				log.Warn(ctx, "discarding unfinished artifact buffer",
					"task_id", taskID, "index", chunk.Index)
				m.deleteBufferLocked(taskID, chunk.Index)
			}
			task.Artifacts = append(task.Artifacts, chunk)
			return
		}

		// First chunk of a multi-chunk artifact.
		if _, open := buffers[chunk.Index]; open {
			log.Warn(ctx, "replacing unfinished artifact buffer",
				"task_id", taskID, "index", chunk.Index)
		}
		if buffers == nil {
			buffers = make(map[int]*a2a.Artifact)
			m.chunks[taskID] = buffers
		}
		buffers[chunk.Index] = chunk
		return
	}

	buffer, open := buffers[chunk.Index]
	if !open {
		log.Warn(ctx, "dropping append chunk without open buffer",
			"task_id", taskID, "index", chunk.Index)
		return
	}

	buffer.Parts = append(buffer.Parts, chunk.Parts...)
	if len(chunk.Metadata) > 0 {
		if buffer.Metadata == nil {
			buffer.Metadata = make(map[string]any, len(chunk.Metadata))
		}
		maps.Copy(buffer.Metadata, chunk.Metadata)
	}

	if chunk.FinalChunk() {
		task.Artifacts = append(task.Artifacts, buffer)
		m.deleteBufferLocked(taskID, chunk.Index)
	}
}

func (m *Manager) deleteBufferLocked(taskID string, index int) {
	buffers := m.chunks[taskID]
	delete(buffers, index)
	if len(buffers) == 0 {
		delete(m.chunks, taskID)
	}
}
