package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"

	"github.com/hupe1980/agentcookbook/core"
	"github.com/hupe1980/agentcookbook/model"
)

// buildMessages converts normalized contents into OpenAI chat messages.
func buildMessages(req model.Request) ([]openai.ChatCompletionMessageParamUnion, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Contents)+1)

	if req.Instructions != "" {
		messages = append(messages, openai.SystemMessage(req.Instructions))
	}

	for _, c := range req.Contents {
		switch c.Role {
		case core.RoleSystem:
			messages = append(messages, openai.SystemMessage(c.Text()))
		case core.RoleAssistant:
			messages = append(messages, assistantMessage(c))
		case core.RoleTool:
			for _, fr := range c.FunctionResponses() {
				messages = append(messages, openai.ToolMessage(model.ToolResultText(fr), fr.ID))
			}
		default:
			msg, err := userMessage(c)
			if err != nil {
				return nil, err
			}

			messages = append(messages, msg)
		}
	}

	return messages, nil
}

func assistantMessage(c core.Content) openai.ChatCompletionMessageParamUnion {
	text := c.Text()

	var toolCalls []openai.ChatCompletionMessageToolCallParam

	for _, fc := range c.FunctionCalls() {
		args := fc.Arguments
		if args == "" {
			args = "{}"
		}

		toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
			ID: fc.ID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      fc.Name,
				Arguments: args,
			},
		})
	}

	if len(toolCalls) == 0 {
		return openai.AssistantMessage(text)
	}

	msg := openai.ChatCompletionAssistantMessageParam{ToolCalls: toolCalls}
	if text != "" {
		msg.Content = openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(text)}
	}

	return openai.ChatCompletionMessageParamUnion{OfAssistant: &msg}
}

// userMessage emits a plain string message for text-only content and a
// content-part array as soon as any file or data part is present.
func userMessage(c core.Content) (openai.ChatCompletionMessageParamUnion, error) {
	textOnly := true

	for _, p := range c.Parts {
		if _, ok := p.(core.TextPart); !ok {
			textOnly = false
			break
		}
	}

	if textOnly {
		return openai.UserMessage(c.Text()), nil
	}

	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(c.Parts))

	for _, p := range c.Parts {
		switch v := p.(type) {
		case core.TextPart:
			parts = append(parts, openai.TextContentPart(v.Text))
		case core.DataPart:
			b, err := json.Marshal(v.Data)
			if err != nil {
				return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("failed to encode data part: %w", err)
			}

			parts = append(parts, openai.TextContentPart(string(b)))
		case core.FilePart:
			part, err := filePart(v.File)
			if err != nil {
				return openai.ChatCompletionMessageParamUnion{}, err
			}

			parts = append(parts, part)
		}
	}

	return openai.UserMessage(parts), nil
}

func filePart(f core.FilePartFile) (openai.ChatCompletionContentPartUnionParam, error) {
	mime := f.MimeType

	switch {
	case mime == "" || strings.HasPrefix(mime, "image/"):
		url := f.URI
		if f.IsInline() {
			url = DataURL(mimeOr(mime, "image/jpeg"), f.Bytes)
		}

		img := openai.ChatCompletionContentPartImageImageURLParam{URL: url}
		if f.Detail != "" {
			img.Detail = f.Detail
		}

		return openai.ImageContentPart(img), nil
	case strings.HasPrefix(mime, "audio/"):
		if !f.IsInline() {
			return openai.ChatCompletionContentPartUnionParam{}, fmt.Errorf("openai: audio input must be inline base64, got uri %q", f.URI)
		}

		return openai.InputAudioContentPart(openai.ChatCompletionContentPartInputAudioInputAudioParam{
			Data:   f.Bytes,
			Format: AudioFormat(mime),
		}), nil
	case mime == "application/pdf":
		file := openai.ChatCompletionContentPartFileFileParam{}

		switch {
		case f.IsInline():
			file.FileData = openai.String(DataURL(mime, f.Bytes))
			file.Filename = openai.String(nameOr(f.Name, "document.pdf"))
		case strings.HasPrefix(f.URI, "file-"):
			file.FileID = openai.String(f.URI)
		default:
			return openai.ChatCompletionContentPartUnionParam{}, fmt.Errorf("openai: pdf input must be inline or an uploaded file id, got %q", f.URI)
		}

		return openai.FileContentPart(file), nil
	default:
		return openai.ChatCompletionContentPartUnionParam{}, fmt.Errorf("openai: unsupported file type %q", mime)
	}
}

// DataURL builds a base64 data URL.
func DataURL(mime, b64 string) string {
	return "data:" + mime + ";base64," + b64
}

// AudioFormat maps an audio MIME type to the input_audio format name.
func AudioFormat(mime string) string {
	switch mime {
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	default:
		return "wav"
	}
}

func mimeOr(mime, fallback string) string {
	if mime == "" {
		return fallback
	}

	return mime
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}

	return name
}
