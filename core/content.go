package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Conversation roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Content holds role + ordered parts.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// NewUserText creates a user message with a single text part.
func NewUserText(text string) Content {
	return Content{Role: RoleUser, Parts: []Part{TextPart{Text: text}}}
}

// NewSystemText creates a system message with a single text part.
func NewSystemText(text string) Content {
	return Content{Role: RoleSystem, Parts: []Part{TextPart{Text: text}}}
}

// NewAssistantText creates an assistant message with a single text part.
func NewAssistantText(text string) Content {
	return Content{Role: RoleAssistant, Parts: []Part{TextPart{Text: text}}}
}

// NewUserContent creates a user message from arbitrary parts (text, media).
func NewUserContent(parts ...Part) Content {
	return Content{Role: RoleUser, Parts: parts}
}

// NewToolResponse creates a tool message answering the call identified by id.
// A non-nil err is recorded in the response Error field.
func NewToolResponse(id, name string, result any, err error) Content {
	fr := FunctionResponse{ID: id, Name: name, Response: result}
	if err != nil {
		fr.Error = err.Error()
	}

	return Content{Role: RoleTool, Parts: []Part{FunctionResponsePart{FunctionResponse: fr}}}
}

// NewImageURL is a FilePart referencing an image by URL.
func NewImageURL(url, detail string) FilePart {
	return FilePart{File: FilePartFile{URI: url, Detail: detail}}
}

// NewInlineFile is a FilePart carrying base64 encoded bytes.
func NewInlineFile(b64, mimeType, name string) FilePart {
	return FilePart{File: FilePartFile{Bytes: b64, MimeType: mimeType, Name: name}}
}

// NewFileURI is a FilePart referencing media by URI with an explicit MIME type.
func NewFileURI(uri, mimeType string) FilePart {
	return FilePart{File: FilePartFile{URI: uri, MimeType: mimeType}}
}

// Text concatenates all text parts.
func (c Content) Text() string {
	var b strings.Builder
	for _, p := range c.Parts {
		if tp, ok := p.(TextPart); ok {
			b.WriteString(tp.Text)
		}
	}

	return b.String()
}

// FunctionCalls returns function call parts in order.
func (c Content) FunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, p := range c.Parts {
		if fc, ok := p.(FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}

	return calls
}

// FunctionResponses returns function response parts in order.
func (c Content) FunctionResponses() []FunctionResponse {
	var responses []FunctionResponse
	for _, p := range c.Parts {
		if fr, ok := p.(FunctionResponsePart); ok {
			responses = append(responses, fr.FunctionResponse)
		}
	}

	return responses
}

// HasFunctionCalls reports whether the content requests any tool execution.
func (c Content) HasFunctionCalls() bool {
	for _, p := range c.Parts {
		if _, ok := p.(FunctionCallPart); ok {
			return true
		}
	}

	return false
}

// partEnvelope is the wire form of a Part used by persistent checkpoint savers.
type partEnvelope struct {
	Type             string            `json:"type"`
	Text             string            `json:"text,omitempty"`
	Data             map[string]any    `json:"data,omitempty"`
	File             *FilePartFile     `json:"file,omitempty"`
	FunctionCall     *FunctionCall     `json:"function_call,omitempty"`
	FunctionResponse *FunctionResponse `json:"function_response,omitempty"`
	Metadata         map[string]any    `json:"metadata,omitempty"`
}

// MarshalJSON encodes the closed Part union with an explicit type tag.
func (c Content) MarshalJSON() ([]byte, error) {
	parts := make([]partEnvelope, 0, len(c.Parts))
	for _, p := range c.Parts {
		switch v := p.(type) {
		case TextPart:
			parts = append(parts, partEnvelope{Type: "text", Text: v.Text, Metadata: v.Metadata})
		case DataPart:
			parts = append(parts, partEnvelope{Type: "data", Data: v.Data, Metadata: v.Metadata})
		case FilePart:
			f := v.File
			parts = append(parts, partEnvelope{Type: "file", File: &f, Metadata: v.Metadata})
		case FunctionCallPart:
			fc := v.FunctionCall
			parts = append(parts, partEnvelope{Type: "function_call", FunctionCall: &fc, Metadata: v.Metadata})
		case FunctionResponsePart:
			fr := v.FunctionResponse
			parts = append(parts, partEnvelope{Type: "function_response", FunctionResponse: &fr, Metadata: v.Metadata})
		default:
			return nil, fmt.Errorf("unsupported part type %T", p)
		}
	}

	return json.Marshal(struct {
		Role  string         `json:"role,omitempty"`
		Parts []partEnvelope `json:"parts"`
	}{Role: c.Role, Parts: parts})
}

// UnmarshalJSON decodes the representation produced by MarshalJSON.
func (c *Content) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role  string         `json:"role"`
		Parts []partEnvelope `json:"parts"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.Role = raw.Role
	c.Parts = make([]Part, 0, len(raw.Parts))

	for _, p := range raw.Parts {
		switch p.Type {
		case "text":
			c.Parts = append(c.Parts, TextPart{Text: p.Text, Metadata: p.Metadata})
		case "data":
			c.Parts = append(c.Parts, DataPart{Data: p.Data, Metadata: p.Metadata})
		case "file":
			if p.File == nil {
				return fmt.Errorf("file part without file")
			}
			c.Parts = append(c.Parts, FilePart{File: *p.File, Metadata: p.Metadata})
		case "function_call":
			if p.FunctionCall == nil {
				return fmt.Errorf("function_call part without call")
			}
			c.Parts = append(c.Parts, FunctionCallPart{FunctionCall: *p.FunctionCall, Metadata: p.Metadata})
		case "function_response":
			if p.FunctionResponse == nil {
				return fmt.Errorf("function_response part without response")
			}
			c.Parts = append(c.Parts, FunctionResponsePart{FunctionResponse: *p.FunctionResponse, Metadata: p.Metadata})
		default:
			return fmt.Errorf("unknown part type %q", p.Type)
		}
	}

	return nil
}
