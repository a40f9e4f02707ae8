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
	"fmt"
)

// Part is a single typed unit of content within a message or artifact. On the
// wire each part carries a "type" discriminator: "text", "data" or "file".
type Part interface {
	isPart()
}

func (TextPart) isPart() {}
func (DataPart) isPart() {}
func (FilePart) isPart() {}

// ContentParts is a list of typed parts with a JSON codec dispatching on the
// wire-level "type" discriminator.
type ContentParts []Part

// MarshalJSON implements json.Marshaler. A nil list encodes as an empty array
// because parts are a required field of messages and artifacts.
func (p ContentParts) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Part(p))
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *ContentParts) UnmarshalJSON(b []byte) error {
	type typedPart struct {
		Type string `json:"type"`
	}

	var arr []json.RawMessage
	if err := json.Unmarshal(b, &arr); err != nil {
		return err
	}

	result := make([]Part, len(arr))
	for i, raw := range arr {
		var tp typedPart
		if err := json.Unmarshal(raw, &tp); err != nil {
			return err
		}
		switch tp.Type {
		case "text":
			var part TextPart
			if err := json.Unmarshal(raw, &part); err != nil {
				return err
			}
			result[i] = part
		case "data":
			var part DataPart
			if err := json.Unmarshal(raw, &part); err != nil {
				return err
			}
			result[i] = part
		case "file":
			var part FilePart
			if err := json.Unmarshal(raw, &part); err != nil {
				return err
			}
			result[i] = part
		default:
			return fmt.Errorf("%w: %q", ErrUnsupportedPartType, tp.Type)
		}
	}

	*p = result
	return nil
}

// NewTextPart creates a text part.
func NewTextPart(text string) TextPart {
	return TextPart{Text: text}
}

// NewDataPart creates a structured data part.
func NewDataPart(data map[string]any) DataPart {
	return DataPart{Data: data}
}

// TextPart carries plain text content.
type TextPart struct {
	Metadata map[string]any `json:"metadata,omitempty"`
	Text     string         `json:"text"`
}

// MarshalJSON implements json.Marshaler.
func (p TextPart) MarshalJSON() ([]byte, error) {
	type wrapped TextPart
	type withType struct {
		Type string `json:"type"`
		wrapped
	}
	return json.Marshal(withType{Type: "text", wrapped: wrapped(p)})
}

// DataPart carries structured JSON content.
type DataPart struct {
	Data     map[string]any `json:"data"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (p DataPart) MarshalJSON() ([]byte, error) {
	type wrapped DataPart
	type withType struct {
		Type string `json:"type"`
		wrapped
	}
	return json.Marshal(withType{Type: "data", wrapped: wrapped(p)})
}

// FilePart carries file content, inline or by reference.
type FilePart struct {
	File     FileContent    `json:"file"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (p FilePart) MarshalJSON() ([]byte, error) {
	type wrapped FilePart
	type withType struct {
		Type string `json:"type"`
		wrapped
	}
	return json.Marshal(withType{Type: "file", wrapped: wrapped(p)})
}

// UnmarshalJSON implements json.Unmarshaler. Exactly one of the "bytes" and
// "uri" fields must be present.
func (p *FilePart) UnmarshalJSON(b []byte) error {
	type fileContentUnion struct {
		FileMeta
		Bytes string `json:"bytes"`
		URI   string `json:"uri"`
	}
	type partJSON struct {
		File     fileContentUnion `json:"file"`
		Metadata map[string]any   `json:"metadata"`
	}

	var decoded partJSON
	if err := json.Unmarshal(b, &decoded); err != nil {
		return err
	}

	if len(decoded.File.Bytes) == 0 && len(decoded.File.URI) == 0 {
		return fmt.Errorf("invalid file part: either Bytes or URI must be set")
	}
	if len(decoded.File.Bytes) > 0 && len(decoded.File.URI) > 0 {
		return fmt.Errorf("invalid file part: Bytes and URI cannot be set at the same time")
	}

	res := FilePart{Metadata: decoded.Metadata}
	if len(decoded.File.Bytes) > 0 {
		res.File = FileBytes{Bytes: decoded.File.Bytes, FileMeta: decoded.File.FileMeta}
	} else {
		res.File = FileURI{URI: decoded.File.URI, FileMeta: decoded.File.FileMeta}
	}

	*p = res
	return nil
}

// FileContent is the payload of a [FilePart]: inline base64 bytes or a URI.
type FileContent interface {
	isFileContent()
}

func (FileBytes) isFileContent() {}
func (FileURI) isFileContent()   {}

// FileMeta describes the file carried by a [FilePart].
type FileMeta struct {
	MimeType string `json:"mimeType,omitempty"`
	Name     string `json:"name,omitempty"`
}

// FileBytes is file content transferred inline, base64-encoded.
type FileBytes struct {
	FileMeta
	Bytes string `json:"bytes"`
}

// FileURI is file content referenced by URI.
type FileURI struct {
	FileMeta
	URI string `json:"uri"`
}
