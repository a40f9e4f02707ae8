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

package a2a

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustMarshal(t *testing.T, data any) string {
	t.Helper()
	bytes, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("Marshal() failed with: %v", err)
	}
	return string(bytes)
}

func mustUnmarshal(t *testing.T, data []byte, out any) {
	t.Helper()
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("Unmarshal() failed with: %v", err)
	}
}

func TestContentPartsJSONCodec(t *testing.T) {
	parts := ContentParts{
		NewTextPart("hello, world"),
		NewDataPart(map[string]any{"foo": "bar"}),
		FilePart{File: FileURI{URI: "https://cats.com/1.png", FileMeta: FileMeta{Name: "cat"}}},
		FilePart{File: FileBytes{Bytes: "aGk=", FileMeta: FileMeta{MimeType: "text/plain"}}},
		TextPart{Text: "42", Metadata: map[string]any{"foo": "bar"}},
	}

	jsons := []string{
		`{"type":"text","text":"hello, world"}`,
		`{"type":"data","data":{"foo":"bar"}}`,
		`{"type":"file","file":{"name":"cat","uri":"https://cats.com/1.png"}}`,
		`{"type":"file","file":{"mimeType":"text/plain","bytes":"aGk="}}`,
		`{"type":"text","metadata":{"foo":"bar"},"text":"42"}`,
	}

	wantJSON := fmt.Sprintf("[%s]", strings.Join(jsons, ","))
	if got := mustMarshal(t, parts); got != wantJSON {
		t.Fatalf("Marshal() failed:\nwant %v\ngot: %s", wantJSON, got)
	}

	var got ContentParts
	mustUnmarshal(t, []byte(wantJSON), &got)
	if !reflect.DeepEqual(got, parts) {
		t.Fatalf("Unmarshal() failed:\nwant %#v\ngot: %#v", parts, got)
	}
}

func TestContentPartsUnmarshalUnknownType(t *testing.T) {
	var parts ContentParts
	err := json.Unmarshal([]byte(`[{"type":"video","url":"x"}]`), &parts)
	if !errors.Is(err, ErrUnsupportedPartType) {
		t.Fatalf("Unmarshal() error = %v, want %v", err, ErrUnsupportedPartType)
	}
}

func TestFilePartUnmarshalValidation(t *testing.T) {
	testCases := []struct {
		name string
		json string
	}{
		{
			name: "neither bytes nor uri",
			json: `{"type":"file","file":{"name":"a"}}`,
		},
		{
			name: "both bytes and uri",
			json: `{"type":"file","file":{"bytes":"aGk=","uri":"https://x"}}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var part FilePart
			if err := json.Unmarshal([]byte(tc.json), &part); err == nil {
				t.Fatalf("Unmarshal(%s) succeeded, want error", tc.json)
			}
		})
	}
}

func TestUnmarshalEvent(t *testing.T) {
	testCases := []struct {
		name string
		json string
		want Event
	}{
		{
			name: "status update",
			json: `{"id":"t1","status":{"state":"working"},"final":false}`,
			want: &TaskStatusUpdateEvent{ID: "t1", Status: TaskStatus{State: TaskStateWorking}},
		},
		{
			name: "final status update",
			json: `{"id":"t1","status":{"state":"completed"},"final":true}`,
			want: &TaskStatusUpdateEvent{ID: "t1", Status: TaskStatus{State: TaskStateCompleted}, Final: true},
		},
		{
			name: "artifact update",
			json: `{"id":"t1","artifact":{"name":"report","index":0,"parts":[{"type":"text","text":"hi"}]}}`,
			want: &TaskArtifactUpdateEvent{
				ID:       "t1",
				Artifact: &Artifact{Name: "report", Parts: ContentParts{TextPart{Text: "hi"}}},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := UnmarshalEvent([]byte(tc.json))
			if err != nil {
				t.Fatalf("UnmarshalEvent() failed with: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("UnmarshalEvent() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUnmarshalEventUnknownShape(t *testing.T) {
	_, err := UnmarshalEvent([]byte(`{"id":"t1","foo":"bar"}`))
	if !errors.Is(err, ErrUnknownEventType) {
		t.Fatalf("UnmarshalEvent() error = %v, want %v", err, ErrUnknownEventType)
	}
}
