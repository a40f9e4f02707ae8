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
	"context"
	"sync"
	"time"
)

// RetryPolicy determines how long to wait before a failed delivery is
// attempted again.
type RetryPolicy interface {
	// NextDelay returns the sleep duration before the given attempt.
	// Attempts are numbered starting from 1.
	NextDelay(attempt int) time.Duration
}

// LinearBackoff is a [RetryPolicy] whose delay grows linearly with the
// attempt number.
type LinearBackoff struct {
	// BaseDelay is the delay before the first retry; attempt n waits
	// n times this long.
	BaseDelay time.Duration
}

var _ RetryPolicy = (*LinearBackoff)(nil)

// NextDelay implements [RetryPolicy].
func (b *LinearBackoff) NextDelay(attempt int) time.Duration {
	return time.Duration(attempt) * b.BaseDelay
}

// retryJob asks for the pending queue of one recipient to be drained again.
type retryJob struct {
	recipientKey string
	attempt      int
	delay        time.Duration
}

// retryScheduler runs delivery retries on a bounded worker pool so that
// bursts of failed sends cannot fan out into unbounded goroutines.
type retryScheduler struct {
	jobs   chan retryJob
	run    func(ctx context.Context, job retryJob)
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newRetryScheduler(workers, backlog int, run func(context.Context, retryJob)) *retryScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &retryScheduler{
		jobs:   make(chan retryJob, backlog),
		run:    run,
		ctx:    ctx,
		cancel: cancel,
	}
	for range workers {
		s.wg.Add(1)
		go s.work()
	}
	return s
}

func (s *retryScheduler) work() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case job := <-s.jobs:
			timer := time.NewTimer(job.delay)
			select {
			case <-s.ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			s.run(s.ctx, job)
		}
	}
}

// schedule enqueues a retry without blocking. It reports false when the
// backlog is full or the scheduler is stopped; the frames stay queued for the
// recipient's next connect either way.
func (s *retryScheduler) schedule(job retryJob) bool {
	select {
	case <-s.ctx.Done():
		return false
	default:
	}
	select {
	case s.jobs <- job:
		return true
	default:
		return false
	}
}

// stop cancels pending retries and waits for in-flight ones to finish.
func (s *retryScheduler) stop() {
	s.cancel()
	s.wg.Wait()
}
