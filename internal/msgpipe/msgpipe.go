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

// Package msgpipe provides a closable buffered pipe of wire messages. One
// pipe feeds the write pump of one delivery connection: producers enqueue
// encoded frames, the pump drains them onto the socket.
package msgpipe

import (
	"context"
	"errors"
	"sync/atomic"
)

const defaultBufferSize = 256

var (
	// ErrClosed is returned for operations on a closed pipe.
	ErrClosed = errors.New("message pipe is closed")

	// ErrFull is returned by TryWrite when the buffer has no room. A full
	// buffer means the consuming connection cannot keep up.
	ErrFull = errors.New("message pipe is full")
)

// Reader is an interface for draining a pipe.
type Reader interface {
	// Read dequeues a message, blocking while the pipe is empty.
	Read(ctx context.Context) ([]byte, error)
}

// Writer is an interface for feeding a pipe.
type Writer interface {
	// Write enqueues a message, blocking while the buffer is full.
	Write(ctx context.Context, msg []byte) error

	// TryWrite enqueues a message without blocking, returning [ErrFull]
	// when the buffer has no room.
	TryWrite(msg []byte) error
}

type options struct {
	bufferSize int
}

// Option is a functional option for configuring a pipe.
type Option func(*options)

// WithBufferSize configures the size of the message buffer.
func WithBufferSize(size int) Option {
	return func(opts *options) {
		opts.bufferSize = size
	}
}

// Pipe is a buffered message pipe with a reader and a writer end.
type Pipe struct {
	Reader Reader
	Writer Writer

	closeWriter func()
}

// New creates a new message pipe.
func New(opts ...Option) *Pipe {
	o := &options{bufferSize: defaultBufferSize}
	for _, opt := range opts {
		opt(o)
	}
	msgs := make(chan []byte, o.bufferSize)

	writer := &pipeWriter{msgs: msgs, closeChan: make(chan struct{})}
	return &Pipe{
		Reader:      &pipeReader{msgs: msgs, closeChan: writer.closeChan},
		Writer:      writer,
		closeWriter: writer.close,
	}
}

// Close closes the pipe. Pending messages are discarded; both ends observe
// [ErrClosed]. Close is safe to call more than once.
func (p *Pipe) Close() {
	p.closeWriter()
}

type pipeWriter struct {
	msgs chan []byte

	closed    atomic.Bool
	closeChan chan struct{}
}

var _ Writer = (*pipeWriter)(nil)

func (w *pipeWriter) Write(ctx context.Context, msg []byte) error {
	if w.closed.Load() {
		return ErrClosed
	}

	select {
	case w.msgs <- msg:
		return nil
	case <-w.closeChan:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *pipeWriter) TryWrite(msg []byte) error {
	if w.closed.Load() {
		return ErrClosed
	}

	select {
	case w.msgs <- msg:
		return nil
	case <-w.closeChan:
		return ErrClosed
	default:
		return ErrFull
	}
}

func (w *pipeWriter) close() {
	if w.closed.CompareAndSwap(false, true) {
		close(w.closeChan)
	}
}

type pipeReader struct {
	msgs      chan []byte
	closeChan chan struct{}
}

var _ Reader = (*pipeReader)(nil)

func (r *pipeReader) Read(ctx context.Context) ([]byte, error) {
	select {
	case msg := <-r.msgs:
		return msg, nil
	case <-r.closeChan:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
