package lessons

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/hupe1980/agentcookbook/core"
	"github.com/hupe1980/agentcookbook/model"
	"github.com/hupe1980/agentcookbook/structured"
)

const sampleImageURL = "https://picsum.photos/400/300"

// ImageAnalysis is a structured description of an image.
type ImageAnalysis struct {
	MainSubjects []string `json:"main_subjects" description:"Main objects or people in the image"`
	Colors       []string `json:"colors" description:"Predominant colors"`
	Mood         string   `json:"mood" description:"Mood or atmosphere of the image"`
	SceneType    string   `json:"scene_type" description:"Type of scene (indoor, outdoor, landscape, ...)"`
}

// inlineFile base64-encodes data as a file part. An empty mime type is
// guessed from the file name.
func inlineFile(data []byte, mimeType, name string) core.FilePart {
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(name))
	}

	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}

	return core.NewInlineFile(base64.StdEncoding.EncodeToString(data), mimeType, name)
}

// describeParts prints the shape of a multimodal message without its payload.
func describeParts(p *printer, c core.Content) {
	p.printf("  role: %s", c.Role)

	for i, part := range c.Parts {
		switch v := part.(type) {
		case core.TextPart:
			p.printf("  part %d: text %q", i+1, truncate(v.Text, 60))
		case core.FilePart:
			src := v.File.URI
			if v.File.IsInline() {
				src = fmt.Sprintf("inline, %d base64 chars", len(v.File.Bytes))
			}

			p.printf("  part %d: file %s (%s)", i+1, v.File.MimeType, src)
		}
	}
}

func ask(ctx context.Context, m model.Model, c core.Content) (string, error) {
	resp, err := model.Invoke(ctx, m, model.Request{Contents: []core.Content{c}})
	if err != nil {
		return "", err
	}

	return resp.Text(), nil
}

func runVision(ctx context.Context, env *Env) error {
	p := newPrinter(env.Out)
	p.title("LESSON 022 - VISION")

	m, err := env.Model(ctx, "", model.Settings{Temperature: model.Float(0)})
	if err != nil {
		return err
	}

	p.step(1, "Image by URL")

	text, err := ask(ctx, m, core.NewUserContent(
		core.TextPart{Text: "What do you see in this image? Describe it in detail."},
		core.NewImageURL(sampleImageURL, ""),
	))
	if err != nil {
		return err
	}

	p.answer(truncate(text, 400))

	p.step(2, "Image as base64")

	data, contentType, err := env.Fetch(ctx, sampleImageURL)
	if err != nil {
		return err
	}

	img := inlineFile(data, contentType, "image.jpg")
	p.printf("Downloaded %d bytes (%s)", len(data), img.File.MimeType)

	text, err = ask(ctx, m, core.NewUserContent(core.TextPart{Text: "Describe this image."}, img))
	if err != nil {
		return err
	}

	p.answer(truncate(text, 400))

	p.step(3, "Several images in one message")

	text, err = ask(ctx, m, core.NewUserContent(
		core.TextPart{Text: "Compare these two images. What are the differences?"},
		core.NewImageURL("https://picsum.photos/seed/image1/400/300", ""),
		core.NewImageURL("https://picsum.photos/seed/image2/400/300", ""),
	))
	if err != nil {
		return err
	}

	p.answer(truncate(text, 400))

	p.step(4, "Local image")

	if path := env.Config.Media.ImageFile; path != "" {
		data, err := env.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read image %s: %w", path, err)
		}

		text, err = ask(ctx, m, core.NewUserContent(
			core.TextPart{Text: "What is in this photo?"},
			inlineFile(data, "", filepath.Base(path)),
		))
		if err != nil {
			return err
		}

		p.answer(truncate(text, 400))
	} else {
		p.printf("No media.image_file configured. A local image is read, base64-encoded and")
		p.printf("sent as an inline file part with its mime type, exactly like step 2.")
	}

	p.step(5, "Detail level")

	text, err = ask(ctx, m, core.NewUserContent(
		core.TextPart{Text: "Analyse this image in high detail."},
		core.NewImageURL(sampleImageURL, "high"),
	))
	if err != nil {
		return err
	}

	p.answer(truncate(text, 400))

	p.step(6, "Text extraction")

	text, err = ask(ctx, m, core.NewUserContent(
		core.TextPart{Text: "Extract all visible text in this image. If there is no text, just describe what you see."},
		core.NewImageURL("https://picsum.photos/seed/text/400/300", ""),
	))
	if err != nil {
		return err
	}

	p.printf("Extracted text: %s", truncate(text, 400))

	p.step(7, "Structured output from an image")

	analysis, err := structured.NewModel[ImageAnalysis](m).Invoke(ctx, core.NewUserContent(
		core.TextPart{Text: "Analyse this image and provide the structured data."},
		core.NewImageURL("https://picsum.photos/seed/analysis/400/300", ""),
	))
	if err != nil {
		return err
	}

	p.printf("Main subjects: %s", strings.Join(analysis.MainSubjects, ", "))
	p.printf("Colors:        %s", strings.Join(analysis.Colors, ", "))
	p.printf("Mood:          %s", analysis.Mood)
	p.printf("Scene type:    %s", analysis.SceneType)

	p.notes(
		"Images travel as file parts next to text parts in a single user message.",
		"URLs are fetched by the provider; inline parts carry base64 bytes and a mime type.",
		"Detail trades image fidelity for tokens; structured output works on images too.",
	)

	return nil
}

func runMultimodalMedia(ctx context.Context, env *Env) error {
	p := newPrinter(env.Out)
	p.title("LESSON 023 - AUDIO, VIDEO AND DOCUMENTS")

	media := env.Config.Media

	var gm model.Model

	gemini := func() (model.Model, error) {
		if gm != nil {
			return gm, nil
		}

		m, err := env.Model(ctx, model.ProviderGemini+":", model.Settings{Temperature: model.Float(0)})
		if err != nil {
			return nil, err
		}

		gm = m

		return gm, nil
	}

	send := func(c core.Content) error {
		describeParts(p, c)

		m, err := gemini()
		if err != nil {
			return err
		}

		text, err := ask(ctx, m, c)
		if err != nil {
			return err
		}

		p.answer(truncate(text, 400))

		return nil
	}

	show := func(c core.Content, key string) {
		describeParts(p, c)
		p.printf("  (set media.%s to send this request)", key)
	}

	p.step(1, "Audio by URI")

	audioURI := media.AudioURI
	if audioURI == "" {
		audioURI = "https://example.com/audio.mp3"
	}

	audio := core.NewUserContent(
		core.TextPart{Text: "Transcribe and summarise this audio."},
		core.NewFileURI(audioURI, "audio/mp3"),
	)

	if media.AudioURI != "" {
		if err := send(audio); err != nil {
			return err
		}
	} else {
		show(audio, "audio_uri")
	}

	p.step(2, "Inline audio")

	var audioData []byte

	if media.AudioFile != "" {
		data, err := env.ReadFile(media.AudioFile)
		if err != nil {
			return fmt.Errorf("failed to read audio %s: %w", media.AudioFile, err)
		}

		audioData = data

		if err := send(core.NewUserContent(
			core.TextPart{Text: "Transcribe this audio."},
			inlineFile(data, "", filepath.Base(media.AudioFile)),
		)); err != nil {
			return err
		}
	} else {
		show(core.NewUserContent(
			core.TextPart{Text: "Transcribe this audio."},
			core.NewInlineFile("<base64>", "audio/mp3", "audio.mp3"),
		), "audio_file")
	}

	p.step(3, "Video by URI")

	videoURI := media.VideoURI
	if videoURI == "" {
		videoURI = "https://example.com/video.mp4"
	}

	video := core.NewUserContent(
		core.TextPart{Text: "Summarise this video in three key points."},
		core.NewFileURI(videoURI, "video/mp4"),
	)

	if media.VideoURI != "" {
		if err := send(video); err != nil {
			return err
		}
	} else {
		show(video, "video_uri")
	}

	p.step(4, "PDF document")

	pdfURI := media.PDFURI
	if pdfURI == "" {
		pdfURI = "https://example.com/document.pdf"
	}

	pdf := core.NewUserContent(
		core.TextPart{Text: "Summarise this PDF document."},
		core.NewFileURI(pdfURI, "application/pdf"),
	)

	if media.PDFURI != "" {
		if err := send(pdf); err != nil {
			return err
		}
	} else {
		show(pdf, "pdf_uri")
	}

	p.step(5, "Mixed modalities")

	mixed := core.NewUserContent(
		core.TextPart{Text: "Analyse this presentation:"},
		core.NewFileURI(sampleImageURL, "image/jpeg"),
		core.NewFileURI(audioURI, "audio/mp3"),
		core.TextPart{Text: "Compare the visual content with the narration."},
	)

	if media.AudioURI != "" {
		if err := send(mixed); err != nil {
			return err
		}
	} else {
		show(mixed, "audio_uri")
	}

	p.step(6, "Transcribe, then summarise")

	if audioData != nil {
		transcript, err := env.Transcribe(ctx, bytes.NewReader(audioData), filepath.Base(media.AudioFile))
		if err != nil {
			return err
		}

		p.printf("1. Transcript: %s", truncate(transcript, 200))

		m, err := env.Model(ctx, "", model.Settings{})
		if err != nil {
			return err
		}

		resp, err := model.Invoke(ctx, m, model.Prompt("Summarise this text: "+transcript))
		if err != nil {
			return err
		}

		p.printf("2. Summary: %s", truncate(resp.Text(), 300))
	} else {
		p.printf("1. audio file -> Whisper transcription -> text")
		p.printf("2. text -> chat model -> summary or analysis")
		p.printf("(set media.audio_file to run this workflow)")
	}

	p.notes(
		"Audio, video and documents are file parts with a mime type, by URI or inline bytes.",
		"Gemini accepts them in chat; OpenAI chat models take audio through a separate transcription call.",
		"Large media should be referenced by URI to stay within payload limits.",
	)

	return nil
}
