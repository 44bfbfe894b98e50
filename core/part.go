package core

// Part represents a polymorphic segment of role-based content. Concrete part
// types implement the unexported isPart marker enabling a closed set.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Text     string         // Plain UTF-8 text
	Metadata map[string]any // Optional producer-provided metadata
}

func (TextPart) isPart() {}

// DataPart is a structured data segment (e.g., JSON object map).
type DataPart struct {
	Data     map[string]any
	Metadata map[string]any
}

func (DataPart) isPart() {}

// FilePart is a media attachment: image, audio, video or document.
type FilePart struct {
	File     FilePartFile
	Metadata map[string]any
}

func (FilePart) isPart() {}

// FilePartFile references media either inline or by URI.
type FilePartFile struct {
	Bytes    string // Base64 encoded contents (if inlined)
	MimeType string // e.g. image/png, audio/wav, application/pdf
	Name     string // Original filename hint
	URI      string // External retrieval URI (if not inlined)
	Detail   string // Image fidelity hint: auto, low or high
}

// IsInline reports whether the file carries its own bytes.
func (f FilePartFile) IsInline() bool { return f.Bytes != "" }

// FunctionCall describes a tool/function invocation request.
type FunctionCall struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"` // JSON object
}

// FunctionCallPart wraps a FunctionCall as a content part.
type FunctionCallPart struct {
	FunctionCall FunctionCall
	Metadata     map[string]any
}

func (FunctionCallPart) isPart() {}

// FunctionResponse describes the outcome of a function call.
type FunctionResponse struct {
	ID       string `json:"id,omitempty"` // Matches originating FunctionCall ID
	Name     string `json:"name"`
	Response any    `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// FunctionResponsePart wraps a FunctionResponse as a content part.
type FunctionResponsePart struct {
	FunctionResponse FunctionResponse
	Metadata         map[string]any
}

func (FunctionResponsePart) isPart() {}
