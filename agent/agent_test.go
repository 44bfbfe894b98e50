package agent

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hupe1980/agentcookbook/checkpoint"
	"github.com/hupe1980/agentcookbook/core"
	"github.com/hupe1980/agentcookbook/internal/testutil"
	"github.com/hupe1980/agentcookbook/logging"
	"github.com/hupe1980/agentcookbook/model"
	"github.com/hupe1980/agentcookbook/run"
	"github.com/hupe1980/agentcookbook/structured"
	"github.com/hupe1980/agentcookbook/tool"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type cityArgs struct {
	City string `json:"city" description:"City name"`
}

func weatherTool() tool.Tool {
	return tool.NewTyped("get_weather", "Get the weather for a city", func(_ *core.ToolContext, a cityArgs) (any, error) {
		return "It's always sunny in " + a.City + "!", nil
	})
}

func TestAgent_FinalAnswer(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.AddResponse("How far is the sun?", "About 150 million km.")

	a := New(m, WithInstruction("You are an astronomy expert."))

	res, err := a.Invoke(context.Background(), Text("How far is the sun?"))
	require.NoError(t, err)
	assert.Equal(t, "About 150 million km.", res.Text())
	assert.Len(t, res.Messages, 2)
	assert.Equal(t, 1, res.ModelCalls)
	assert.Equal(t, "You are an astronomy expert.", m.Requests()[0].Instructions)
}

func TestAgent_ToolLoop(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.Enqueue(
		testutil.NewResponseBuilder().Call("get_weather", `{"city":"Vitória"}`).Build(),
		testutil.NewResponseBuilder().Text("Sunny pun!").Build(),
	)

	a := New(m, WithTools(weatherTool()))

	res, err := a.Invoke(context.Background(), Text("weather?"))
	require.NoError(t, err)
	assert.Equal(t, "Sunny pun!", res.Text())
	require.Len(t, res.Messages, 4)

	frs := res.Messages[2].FunctionResponses()
	require.Len(t, frs, 1)
	assert.Equal(t, "It's always sunny in Vitória!", frs[0].Response)

	reqs := m.Requests()
	require.Len(t, reqs, 2)
	assert.Len(t, reqs[0].Tools, 1)
	assert.Len(t, reqs[1].Contents, 3)
}

func TestAgent_LogsModelAndToolCalls(t *testing.T) {
	m := model.NewMockModel("mock-small", "mock")
	m.Enqueue(
		testutil.NewResponseBuilder().Call("get_weather", `{"city":"Oslo"}`).Build(),
		testutil.NewResponseBuilder().Text("Sunny.").Build(),
	)

	var buf bytes.Buffer

	l := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelInfo, Format: "json", Output: &buf})
	a := New(m, WithTools(weatherTool()), WithLogger(l))

	_, err := a.Invoke(context.Background(), Text("weather?"))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"msg":"tool.call.completed"`)
	assert.Contains(t, out, `"tool_name":"get_weather"`)
	assert.Contains(t, out, `"msg":"model.call.completed"`)
	assert.Contains(t, out, `"model":"mock-small"`)
}

func TestAgent_ToolFailuresBecomeResponses(t *testing.T) {
	boom := tool.NewFunctionTool("boom", "Panics", nil, func(*core.ToolContext, map[string]any) (any, error) {
		panic("kaboom")
	})

	m := model.NewMockModel("mock", "mock")
	m.Enqueue(
		testutil.NewResponseBuilder().
			Call("get_weather", `{"city":"Rome"}`).
			Call("boom", `{}`).
			Call("missing", `{}`).
			Call("get_weather", `not json`).
			Build(),
		testutil.NewResponseBuilder().Text("done").Build(),
	)

	a := New(m, WithTools(weatherTool(), boom), func(o *Options) { o.MaxParallelTools = 2 })

	res, err := a.Invoke(context.Background(), Text("go"))
	require.NoError(t, err)

	toolMsgs := res.Messages[2:6]
	ids := make([]string, 0, 4)

	for _, msg := range toolMsgs {
		require.Equal(t, core.RoleTool, msg.Role)
		ids = append(ids, msg.FunctionResponses()[0].ID)
	}

	assert.Equal(t, []string{"call_1", "call_2", "call_3", "call_4"}, ids)
	assert.Empty(t, toolMsgs[0].FunctionResponses()[0].Error)
	assert.Contains(t, toolMsgs[1].FunctionResponses()[0].Error, tool.CodePanic)
	assert.Contains(t, toolMsgs[2].FunctionResponses()[0].Error, tool.CodeNotFound)
	assert.Contains(t, toolMsgs[3].FunctionResponses()[0].Error, tool.CodeValidation)
	assert.Equal(t, "done", res.Text())
}

func TestAgent_MaxModelCalls(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.SetHandler(func(context.Context, model.Request) (model.Response, error) {
		return testutil.NewResponseBuilder().Call("get_weather", `{"city":"Oslo"}`).Build(), nil
	})

	a := New(m, WithTools(weatherTool()), func(o *Options) { o.MaxModelCalls = 3 })

	_, err := a.Invoke(context.Background(), Text("loop forever"))
	require.ErrorIs(t, err, ErrMaxModelCalls)
	assert.Len(t, m.Requests(), 3)
}

func TestAgent_CheckpointerRemembersPerThread(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	saver := checkpoint.NewMemorySaver()
	a := New(m, WithCheckpointer(saver))
	ctx := context.Background()

	_, err := a.Invoke(ctx, Text("Hi, I'm Luciano"), WithThread("1"))
	require.NoError(t, err)

	res, err := a.Invoke(ctx, Text("What's my name?"), WithThread("1"))
	require.NoError(t, err)
	assert.Len(t, res.Messages, 4)
	assert.Equal(t, "Hi, I'm Luciano", res.Messages[0].Text())

	other, err := a.Invoke(ctx, Text("What's my name?"), WithThread("2"))
	require.NoError(t, err)
	assert.Len(t, other.Messages, 2)

	ids, err := saver.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, ids)

	// Without a thread id nothing is remembered.
	res, err = a.Invoke(ctx, Text("Who am I?"))
	require.NoError(t, err)
	assert.Len(t, res.Messages, 2)
}

type contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func TestAgent_ToolStrategyRetriesInvalidOutput(t *testing.T) {
	format := structured.For[contact](func(f *structured.Format) { f.Name = "ContactInfo" })

	m := model.NewMockModel("mock", "mock")
	m.Enqueue(
		testutil.NewResponseBuilder().Call("ContactInfo", `{"name":"John"}`).Build(),
		testutil.NewResponseBuilder().Call("ContactInfo", `{"name":"John","email":"john@example.com"}`).Build(),
	)

	a := New(m, WithResponseFormat(structured.ToolStrategy(format)))

	res, err := a.Invoke(context.Background(), Text("John, john@example.com"))
	require.NoError(t, err)

	c, err := Structured[contact](res)
	require.NoError(t, err)
	assert.Equal(t, contact{Name: "John", Email: "john@example.com"}, c)

	retry := res.Messages[2].FunctionResponses()[0]
	assert.Contains(t, retry.Error, "email")

	reqs := m.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "ContactInfo", reqs[0].Tools[0].Function.Name)
}

type productReview struct {
	ProductName string `json:"product_name"`
	Rating      int    `json:"rating" minimum:"1" maximum:"5"`
}

func TestAgent_ToolStrategyRetriesNullRequiredField(t *testing.T) {
	format := structured.For[productReview](func(f *structured.Format) { f.Name = "ProductReview" })

	m := model.NewMockModel("mock", "mock")
	m.Enqueue(
		testutil.NewResponseBuilder().Call("ProductReview", `{"product_name":"Phone","rating":null}`).Build(),
		testutil.NewResponseBuilder().Call("ProductReview", `{"product_name":"Phone","rating":4}`).Build(),
	)

	res, err := New(m, WithResponseFormat(structured.ToolStrategy(format))).Invoke(context.Background(), Text("Phone, 4 stars"))
	require.NoError(t, err)

	r, err := Structured[productReview](res)
	require.NoError(t, err)
	assert.Equal(t, 4, r.Rating)

	retry := res.Messages[2].FunctionResponses()[0]
	assert.Contains(t, retry.Error, "rating")
	assert.Len(t, m.Requests(), 2)
}

func TestAgent_ToolStrategyGivesUp(t *testing.T) {
	format := structured.For[contact](func(f *structured.Format) { f.Name = "ContactInfo" })

	m := model.NewMockModel("mock", "mock")
	m.SetHandler(func(context.Context, model.Request) (model.Response, error) {
		return testutil.NewResponseBuilder().Call("ContactInfo", `{}`).Build(), nil
	})

	strategy := structured.ToolStrategy(format)
	strategy.MaxRetries = 1

	_, err := New(m, WithResponseFormat(strategy)).Invoke(context.Background(), Text("x"))
	require.Error(t, err)
	assert.Len(t, m.Requests(), 2)
}

func TestAgent_ProviderStrategy(t *testing.T) {
	format := structured.For[contact]()
	m := testutil.NewAutoModel("auto", "mock", func(o *testutil.AutoOptions) {
		o.Args = map[string]any{"email": "a@b.c"}
	})

	res, err := New(m, WithResponseFormat(structured.ProviderStrategy(format))).Invoke(context.Background(), Text("x"))
	require.NoError(t, err)

	var c contact
	require.NoError(t, res.Decode(&c))
	assert.Equal(t, "a@b.c", c.Email)
	assert.NotNil(t, m.Requests()[0].ResponseFormat)
}

func TestAgent_DecodeWithoutStructuredResponse(t *testing.T) {
	res := &Result{}
	assert.ErrorIs(t, res.Decode(&contact{}), structured.ErrNoStructuredResponse)
}

func TestAgent_Middleware(t *testing.T) {
	basic := model.NewMockModel("basic", "mock")
	advanced := model.NewMockModel("advanced", "mock")

	failing := tool.NewFunctionTool("divide", "Divide", nil, func(*core.ToolContext, map[string]any) (any, error) {
		return nil, errors.New("division by zero")
	})

	basic.Enqueue(testutil.NewResponseBuilder().Call("divide", `{}`).Build())

	var seen []string

	a := New(basic,
		WithTools(failing),
		WithMiddleware(
			BeforeModel("count", func(_ context.Context, st *core.State, _ any) error {
				n, _ := st.IntValue("interaction_count")
				st.Set("interaction_count", n+1)

				return nil
			}),
			SelectModel(func(req *ModelRequest) model.Model {
				if len(req.Request.Contents) > 2 {
					return advanced
				}

				return nil
			}),
			DynamicPrompt(func(req *ModelRequest) string {
				seen = append(seen, req.Model.Info().Name)
				return "prompt for " + req.Model.Info().Name
			}),
			HandleToolErrors(func(call *ToolCall, err error) string {
				return "Friendly: " + call.Call.Name + " failed (" + err.Error() + ")"
			}),
		),
	)

	res, err := a.Invoke(context.Background(), Text("1/0"))
	require.NoError(t, err)

	assert.Equal(t, []string{"basic", "advanced"}, seen)
	assert.Equal(t, "prompt for advanced", advanced.Requests()[0].Instructions)

	fr := res.Messages[2].FunctionResponses()[0]
	assert.Empty(t, fr.Error)
	assert.Contains(t, fr.Response, "Friendly: divide failed")

	count, err := res.State.IntValue("interaction_count")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

type role struct{ UserRole string }

func TestAgent_RuntimeAndStateDefaults(t *testing.T) {
	returnTool := tool.NewFunctionTool("get_investment_return", "Return", nil, func(tc *core.ToolContext, _ map[string]any) (any, error) {
		rt, ok := core.RuntimeAs[role](tc)
		if !ok {
			return nil, errors.New("missing runtime")
		}

		return rt.UserRole + "/" + tc.State().StringValue("order_id"), nil
	})

	m := model.NewMockModel("mock", "mock")
	m.Enqueue(
		testutil.NewResponseBuilder().Call("get_investment_return", `{}`).Build(),
		testutil.NewResponseBuilder().Text("ok").Build(),
	)

	a := New(m, WithTools(returnTool), func(o *Options) {
		o.StateDefaults = map[string]any{"order_id": "PED001", "customer_name": "João Silva"}
	})

	res, err := a.Invoke(context.Background(), Input{
		Messages: []core.Content{core.NewUserText("invest")},
		State:    map[string]any{"customer_name": "Maria Santos"},
	}, WithRuntime(role{UserRole: "aggressive"}))
	require.NoError(t, err)

	assert.Equal(t, "aggressive/PED001", res.Messages[2].FunctionResponses()[0].Response)
	assert.Equal(t, "Maria Santos", res.State.StringValue("customer_name"))
}

func TestAgent_DynamicInstruction(t *testing.T) {
	m := model.NewMockModel("mock", "mock")

	a := New(m, func(o *Options) {
		o.Instruction = NewInstructionFromFunc(func(_ context.Context, ic InstructionContext) (string, error) {
			return "level " + ic.Runtime.(string), nil
		})
	})

	_, err := a.Invoke(context.Background(), Text("explain"), WithRuntime("expert"))
	require.NoError(t, err)
	assert.Equal(t, "level expert", m.Requests()[0].Instructions)
}

func TestAgent_RunHandlers(t *testing.T) {
	var (
		mu    sync.Mutex
		types []run.EventType
	)

	ctx := run.WithConfig(context.Background(), run.Config{
		Handlers: []run.Handler{run.HandlerFunc(func(_ context.Context, ev run.Event) {
			mu.Lock()
			defer mu.Unlock()

			types = append(types, ev.Type)
		})},
	})

	m := model.NewMockModel("mock", "mock")
	m.Enqueue(
		testutil.NewResponseBuilder().Call("get_weather", `{"city":"Lima"}`).Build(),
		testutil.NewResponseBuilder().Text("ok").Build(),
	)

	_, err := New(m, WithTools(weatherTool())).Invoke(ctx, Text("weather"))
	require.NoError(t, err)

	assert.Equal(t, []run.EventType{
		run.EventAgentStart,
		run.EventModelStart, run.EventModelEnd,
		run.EventToolStart, run.EventToolEnd,
		run.EventModelStart, run.EventModelEnd,
		run.EventAgentEnd,
	}, types)
}

func TestAgent_Stream(t *testing.T) {
	script := func() *model.MockModel {
		m := model.NewMockModel("mock", "mock")
		m.Enqueue(
			testutil.NewResponseBuilder().Call("get_weather", `{"city":"Quito"}`).Build(),
			testutil.NewResponseBuilder().Text("ok").Build(),
		)

		return m
	}

	collect := func(mode StreamMode) []core.Event {
		events, errs := New(script(), WithTools(weatherTool())).Stream(context.Background(), Text("weather"), mode)

		var out []core.Event
		for ev := range events {
			out = append(out, ev)
		}

		require.NoError(t, <-errs)

		return out
	}

	values := collect(StreamValues)
	require.Len(t, values, 4)
	assert.Equal(t, []string{core.NodeInput, core.NodeModel, core.NodeTools, core.NodeModel},
		[]string{values[0].Node, values[1].Node, values[2].Node, values[3].Node})
	assert.Len(t, values[0].Messages, 1)
	assert.Len(t, values[3].Messages, 4)
	assert.Equal(t, 4, values[3].State.Len())

	updates := collect(StreamUpdates)
	require.Len(t, updates, 3)
	assert.Len(t, updates[1].Messages, 1)
	assert.Len(t, updates[1].FunctionResponses(), 1)
}

func TestAgent_StreamCancel(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.SetHandler(func(context.Context, model.Request) (model.Response, error) {
		return testutil.NewResponseBuilder().Call("get_weather", `{"city":"Lima"}`).Build(), nil
	})

	ctx, cancel := context.WithCancel(context.Background())

	events, errs := New(m, WithTools(weatherTool())).Stream(ctx, Text("x"), StreamUpdates)

	<-events
	cancel()

	for range events { //nolint:revive // drain
	}

	assert.ErrorIs(t, <-errs, context.Canceled)
}
