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

package sse

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseDataStream(t *testing.T) {
	stream := strings.Join([]string{
		"id: 1",
		"data: {\"a\":1}",
		"",
		": keep-alive",
		"data:{\"b\":2}",
		"",
		"event: done",
	}, "\n")

	var got []string
	for data, err := range ParseDataStream(strings.NewReader(stream)) {
		if err != nil {
			t.Fatalf("ParseDataStream() failed with: %v", err)
		}
		got = append(got, string(data))
	}

	want := []string{`{"a":1}`, `{"b":2}`}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ParseDataStream() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDataStreamStopsEarly(t *testing.T) {
	stream := "data: one\ndata: two\ndata: three\n"

	var got []string
	for data, err := range ParseDataStream(strings.NewReader(stream)) {
		if err != nil {
			t.Fatalf("ParseDataStream() failed with: %v", err)
		}
		got = append(got, string(data))
		if len(got) == 2 {
			break
		}
	}

	if len(got) != 2 {
		t.Fatalf("ParseDataStream() yielded %d items after break, want 2", len(got))
	}
}
