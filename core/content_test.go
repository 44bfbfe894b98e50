package core

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContent_Text(t *testing.T) {
	c := Content{Role: RoleUser, Parts: []Part{
		TextPart{Text: "Hello, "},
		NewImageURL("https://example.com/cat.png", "high"),
		TextPart{Text: "world"},
	}}

	assert.Equal(t, "Hello, world", c.Text())
	assert.False(t, c.HasFunctionCalls())
}

func TestContent_JSONRoundTrip(t *testing.T) {
	in := []Content{
		NewSystemText("be brief"),
		NewUserContent(TextPart{Text: "what is this?"}, NewInlineFile("aGVsbG8=", "image/png", "a.png")),
		{Role: RoleAssistant, Parts: []Part{FunctionCallPart{FunctionCall: FunctionCall{ID: "1", Name: "lookup", Arguments: `{"q":"x"}`}}}},
		NewToolResponse("1", "lookup", "found", nil),
		{Role: RoleUser, Parts: []Part{DataPart{Data: map[string]any{"k": "v"}}}},
	}

	b, err := json.Marshal(in)
	require.NoError(t, err)

	var out []Content
	require.NoError(t, json.Unmarshal(b, &out))
	require.Len(t, out, len(in))

	assert.Equal(t, "be brief", out[0].Text())

	fp, ok := out[1].Parts[1].(FilePart)
	require.True(t, ok)
	assert.Equal(t, "image/png", fp.File.MimeType)
	assert.True(t, fp.File.IsInline())

	calls := out[2].FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "lookup", calls[0].Name)

	resps := out[3].FunctionResponses()
	require.Len(t, resps, 1)
	assert.Equal(t, "found", resps[0].Response)

	dp, ok := out[4].Parts[0].(DataPart)
	require.True(t, ok)
	assert.Equal(t, "v", dp.Data["k"])
}

func TestContent_JSONPreservesConversation(t *testing.T) {
	in := []Content{
		NewUserText("What is 2 + 2?"),
		{Role: RoleAssistant, Parts: []Part{
			TextPart{Text: "Let me calculate."},
			FunctionCallPart{FunctionCall: FunctionCall{ID: "c1", Name: "calculate", Arguments: `{"expression":"2+2"}`}},
		}},
		{Role: RoleUser, Parts: []Part{NewFileURI("gs://bucket/doc.pdf", "application/pdf")}},
		NewAssistantText("4"),
	}

	b, err := json.Marshal(in)
	require.NoError(t, err)

	var out []Content
	require.NoError(t, json.Unmarshal(b, &out))

	if diff := cmp.Diff(in, out, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("conversation changed after JSON (-want +got):\n%s", diff)
	}
}

func TestContent_UnmarshalUnknownPart(t *testing.T) {
	var c Content
	err := json.Unmarshal([]byte(`{"role":"user","parts":[{"type":"hologram"}]}`), &c)
	assert.Error(t, err)
}

func TestState_CloneAndValues(t *testing.T) {
	s := NewState(map[string]any{"order_id": "PED001"})
	s.Append(NewUserText("hi"))
	s.Set("interaction_count", 2)

	clone := s.Clone()
	clone.Set("order_id", "PED002")
	clone.Append(NewAssistantText("hello"))

	assert.Equal(t, "PED001", s.StringValue("order_id"))
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 2, clone.Len())

	n, err := s.IntValue("interaction_count")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	s.Set("interaction_count", float64(3))
	n, err = s.IntValue("interaction_count")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	s.Set("interaction_count", "many")
	_, err = s.IntValue("interaction_count")
	assert.Error(t, err)

	last, ok := clone.LastMessage()
	require.True(t, ok)
	assert.Equal(t, "hello", last.Text())
}

func TestState_ConcurrentSet(t *testing.T) {
	s := NewState(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Set("k", i)
			_, _ = s.Get("k")
			s.Append(NewUserText("x"))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, s.Len())
}

func TestState_JSON(t *testing.T) {
	s := NewState(map[string]any{"customer_name": "Maria Santos"})
	s.Append(NewUserText("status?"))

	b, err := json.Marshal(s)
	require.NoError(t, err)

	var out State
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, "Maria Santos", out.StringValue("customer_name"))
	assert.Equal(t, "status?", out.Messages[0].Text())
}
