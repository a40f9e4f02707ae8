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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"time"

	"github.com/a2aproject/a2a-host/a2a"
	"github.com/a2aproject/a2a-host/internal/jsonrpc"
	"github.com/a2aproject/a2a-host/internal/sse"
	"github.com/a2aproject/a2a-host/log"
	"github.com/google/uuid"
)

// JSONRPCOption configures optional parameters for the JSON-RPC transport.
// Options are applied during NewJSONRPCTransport initialization.
type JSONRPCOption func(*jsonrpcTransport)

// WithJSONRPCHeader attaches extra headers to every request issued by the
// transport.
func WithJSONRPCHeader(header http.Header) JSONRPCOption {
	return func(t *jsonrpcTransport) {
		for k, vals := range header {
			for _, v := range vals {
				t.header.Add(k, v)
			}
		}
	}
}

// NewJSONRPCTransport creates a JSON-RPC 2.0 over HTTP transport for A2A task
// exchanges. By default, an HTTP client with a 3-minute timeout is used.
// For production deployments, provide a client with appropriate timeout,
// retry policy, and connection pooling configured for your requirements.
func NewJSONRPCTransport(url string, client *http.Client, opts ...JSONRPCOption) Transport {
	t := &jsonrpcTransport{
		url:        url,
		httpClient: client,
		header:     http.Header{},
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.httpClient == nil {
		t.httpClient = &http.Client{Timeout: 3 * time.Minute}
	}

	return t
}

// jsonrpcTransport implements Transport using JSON-RPC 2.0 over HTTP.
type jsonrpcTransport struct {
	url        string
	httpClient *http.Client
	header     http.Header
}

var _ Transport = (*jsonrpcTransport)(nil)

// taskIDParams is the request payload of protocol methods addressing a task
// by id.
type taskIDParams struct {
	ID string `json:"id"`
}

func (t *jsonrpcTransport) newHTTPRequest(ctx context.Context, method string, payload any) (*http.Request, error) {
	req := jsonrpc.ClientRequest{
		JSONRPC: jsonrpc.Version,
		Method:  method,
		Params:  payload,
		ID:      uuid.NewString(),
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", t.url, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", jsonrpc.ContentJSON)

	for k, vals := range t.header {
		for _, v := range vals {
			httpReq.Header.Add(k, v)
		}
	}

	return httpReq, nil
}

// sendRequest sends a non-streaming JSON-RPC request and returns the response.
func (t *jsonrpcTransport) sendRequest(ctx context.Context, method string, req any) (json.RawMessage, error) {
	httpReq, err := t.newHTTPRequest(ctx, method, req)
	if err != nil {
		return nil, err
	}

	httpResp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer func() {
		if err := httpResp.Body.Close(); err != nil {
			log.Error(ctx, "failed to close http response body", err)
		}
	}()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected HTTP status: %s", httpResp.Status)
	}

	var resp jsonrpc.ClientResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.Error != nil {
		return nil, resp.Error.ToA2AError()
	}

	return resp.Result, nil
}

// sendStreamingRequest sends a streaming JSON-RPC request and returns an SSE stream.
func (t *jsonrpcTransport) sendStreamingRequest(ctx context.Context, method string, req any) (io.ReadCloser, error) {
	httpReq, err := t.newHTTPRequest(ctx, method, req)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", sse.ContentEventStream)

	httpResp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send HTTP request: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		if err := httpResp.Body.Close(); err != nil {
			log.Error(ctx, "failed to close http response body", err)
		}
		return nil, fmt.Errorf("unexpected HTTP status: %s", httpResp.Status)
	}

	return httpResp.Body, nil
}

// parseSSEStream parses Server-Sent Events and yields JSON-RPC results.
func parseSSEStream(body io.Reader) iter.Seq2[json.RawMessage, error] {
	return func(yield func(json.RawMessage, error) bool) {
		for data, err := range sse.ParseDataStream(body) {
			if err != nil {
				yield(nil, err)
				return
			}
			var resp jsonrpc.ClientResponse
			if err := json.Unmarshal(data, &resp); err != nil {
				yield(nil, fmt.Errorf("failed to parse SSE data: %w", err))
				return
			}
			if resp.Error != nil {
				yield(nil, resp.Error.ToA2AError())
				return
			}
			if !yield(resp.Result, nil) {
				return
			}
		}
	}
}

// SendTask implements [Transport].
func (t *jsonrpcTransport) SendTask(ctx context.Context, req *a2a.SendTaskRequest) (*a2a.Task, error) {
	result, err := t.sendRequest(ctx, jsonrpc.MethodTasksSend, req)
	if err != nil {
		return nil, err
	}

	var task a2a.Task
	if err := json.Unmarshal(result, &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}

	return &task, nil
}

// SendTaskStreaming implements [Transport].
func (t *jsonrpcTransport) SendTaskStreaming(ctx context.Context, req *a2a.SendTaskRequest) iter.Seq2[a2a.Event, error] {
	return func(yield func(a2a.Event, error) bool) {
		body, err := t.sendStreamingRequest(ctx, jsonrpc.MethodTasksSendSubscribe, req)
		if err != nil {
			yield(nil, err)
			return
		}
		defer func() {
			if err := body.Close(); err != nil {
				log.Error(ctx, "failed to close http response body", err)
			}
		}()

		for result, err := range parseSSEStream(body) {
			if err != nil {
				yield(nil, err)
				return
			}

			event, err := a2a.UnmarshalEvent(result)
			if err != nil {
				yield(nil, err)
				return
			}

			if !yield(event, nil) {
				return
			}
		}
	}
}

// GetTask implements [Transport].
func (t *jsonrpcTransport) GetTask(ctx context.Context, taskID string) (*a2a.Task, error) {
	result, err := t.sendRequest(ctx, jsonrpc.MethodTasksGet, taskIDParams{ID: taskID})
	if err != nil {
		return nil, err
	}

	var task a2a.Task
	if err := json.Unmarshal(result, &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}

	return &task, nil
}

// CancelTask implements [Transport].
func (t *jsonrpcTransport) CancelTask(ctx context.Context, taskID string) (*a2a.Task, error) {
	result, err := t.sendRequest(ctx, jsonrpc.MethodTasksCancel, taskIDParams{ID: taskID})
	if err != nil {
		return nil, err
	}

	var task a2a.Task
	if err := json.Unmarshal(result, &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}

	return &task, nil
}
