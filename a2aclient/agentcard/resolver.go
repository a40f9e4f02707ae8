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

// Package agentcard fetches agent cards from their well-known location.
package agentcard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/a2aproject/a2a-host/a2a"
)

const defaultAgentCardPath = "/.well-known/agent.json"

// ErrStatusNotOK is returned when the card endpoint responds with a
// non-200 status code.
type ErrStatusNotOK struct {
	StatusCode int
	Status     string
}

func (e *ErrStatusNotOK) Error() string {
	return fmt.Sprintf("agent card request failed: %s", e.Status)
}

type resolveOptions struct {
	path   string
	header http.Header
}

// ResolveOption is a functional option for a single Resolve call.
type ResolveOption func(*resolveOptions)

// WithPath overrides the well-known agent card path. A missing leading
// slash is tolerated.
func WithPath(path string) ResolveOption {
	return func(opts *resolveOptions) {
		opts.path = path
	}
}

// WithRequestHeader adds a header to the card request, e.g. for agents
// that require an authentication token to serve their card.
func WithRequestHeader(key string, values ...string) ResolveOption {
	return func(opts *resolveOptions) {
		for _, v := range values {
			opts.header.Add(key, v)
		}
	}
}

// Resolver fetches and validates remote agent cards. The zero value
// resolves using [http.DefaultClient].
type Resolver struct {
	client *http.Client
}

// NewResolver creates a Resolver which uses the provided client for card
// requests. Passing nil is equivalent to using the zero value.
func NewResolver(client *http.Client) *Resolver {
	return &Resolver{client: client}
}

// Resolve fetches the agent card served at the agent's well-known path.
// The url may be a bare host, a base URL or a full card URL; a missing
// scheme defaults to http.
func (r *Resolver) Resolve(ctx context.Context, url string, opts ...ResolveOption) (*a2a.AgentCard, error) {
	options := &resolveOptions{path: defaultAgentCardPath, header: http.Header{}}
	for _, opt := range opts {
		opt(options)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cardURL(url, options.path), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent card request: %w", err)
	}
	for key, values := range options.header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	client := r.client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent card request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ErrStatusNotOK{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	card := &a2a.AgentCard{}
	if err := json.NewDecoder(resp.Body).Decode(card); err != nil {
		return nil, fmt.Errorf("failed to decode agent card: %w", err)
	}
	if err := checkProtocolVersion(card); err != nil {
		return nil, err
	}
	return card, nil
}

func cardURL(base, path string) string {
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if strings.HasSuffix(base, path) {
		return base
	}
	return strings.TrimSuffix(base, "/") + path
}

// checkProtocolVersion rejects cards stamped with a protocol the host
// does not speak. Cards without a version predate stamping and are
// accepted as-is.
func checkProtocolVersion(card *a2a.AgentCard) error {
	if card.ProtocolVersion == "" {
		return nil
	}
	if protocolMajor(string(card.ProtocolVersion)) != protocolMajor(string(a2a.Version)) {
		return fmt.Errorf("%w: agent speaks protocol %q", a2a.ErrVersionNotSupported, card.ProtocolVersion)
	}
	return nil
}

// protocolMajor normalizes a card version like "0.1" to its major semver
// component, e.g. "v0".
func protocolMajor(version string) string {
	if !strings.HasPrefix(version, "v") {
		version = "v" + version
	}
	return semver.Major(version)
}
