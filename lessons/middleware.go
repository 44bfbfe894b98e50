package lessons

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/hupe1980/agentcookbook/agent"
	"github.com/hupe1980/agentcookbook/core"
	"github.com/hupe1980/agentcookbook/internal/calc"
	"github.com/hupe1980/agentcookbook/model"
	"github.com/hupe1980/agentcookbook/tool"
)

var (
	errInvalidValue = errors.New("invalid value")
	errUserNotFound = errors.New("user not found")
)

type numberArgs struct {
	Number float64 `json:"number" description:"The number"`
}

func squareTool() tool.Tool {
	return tool.NewTyped("calculate_square", "Calculate the square of a number.",
		func(_ *core.ToolContext, args numberArgs) (any, error) {
			return args.Number * args.Number, nil
		})
}

// selectByLength switches to the advanced model once the conversation holds
// more than ten messages.
func selectByLength(p *printer, basic, advanced model.Model) agent.Middleware {
	return agent.SelectModel(func(req *agent.ModelRequest) model.Model {
		n := req.State.Len()
		if n > 10 {
			p.printf("Using advanced model (%s) - %d messages in the conversation", advanced.Info().Name, n)
			return advanced
		}

		p.printf("Using basic model (%s) - %d messages in the conversation", basic.Info().Name, n)

		return basic
	})
}

func runDynamicModel(ctx context.Context, env *Env) error {
	p := newPrinter(env.Out)
	p.title("LESSON 010 - DYNAMIC MODEL SELECTION")

	basic, err := env.Model(ctx, "openai:gpt-4o-mini", model.Settings{})
	if err != nil {
		return err
	}

	advanced, err := env.Model(ctx, "openai:gpt-4o", model.Settings{})
	if err != nil {
		return err
	}

	a := env.newAgent(basic,
		agent.WithInstruction("You are a very smart and helpful assistant who can answer questions about many topics."),
		agent.WithTools(squareTool()),
		agent.WithMiddleware(selectByLength(p, basic, advanced)),
	)

	p.step(1, "Short conversation")

	res, err := a.Invoke(ctx, agent.Text("Hello! How are you?"))
	if err != nil {
		return err
	}

	p.answer(res.Text())

	p.step(2, "Long conversation")

	var msgs []core.Content
	for i := 1; i <= 6; i++ {
		msgs = append(msgs,
			core.NewUserText(fmt.Sprintf("Question %d", i)),
			core.NewAssistantText(fmt.Sprintf("Answer %d", i)),
		)
	}

	msgs = append(msgs, core.NewUserText("What is the square of 7?"))

	res, err = a.Invoke(ctx, agent.Messages(msgs...))
	if err != nil {
		return err
	}

	p.answer(res.Text())

	p.notes(
		"Model middleware sees the request and the state before every model call.",
		"Short chats use the cheap model; long ones switch to the stronger one.",
		"The tool loop keeps running with whichever model was selected per call.",
	)

	return nil
}

type divideArgs struct {
	Dividend float64 `json:"dividend" description:"Number to divide"`
	Divisor  float64 `json:"divisor" description:"Number to divide by"`
}

type userArgs struct {
	UserID string `json:"user_id" description:"User id such as user_001"`
}

var userAges = map[string]int{
	"user_001": 25,
	"user_002": 34,
	"user_003": 42,
}

func faultyTools() []tool.Tool {
	divide := tool.NewTyped("divide_numbers", "Divide two numbers. Fails when the divisor is zero.",
		func(_ *core.ToolContext, args divideArgs) (any, error) {
			if args.Divisor == 0 {
				return nil, calc.ErrDivisionByZero
			}

			return args.Dividend / args.Divisor, nil
		})

	sqrt := tool.NewTyped("calculate_square_root", "Calculate the square root of a number. Fails for negative numbers.",
		func(_ *core.ToolContext, args numberArgs) (any, error) {
			if args.Number < 0 {
				return nil, fmt.Errorf("%w: cannot take the square root of a negative number in the reals", errInvalidValue)
			}

			return math.Sqrt(args.Number), nil
		})

	age := tool.NewTyped("get_user_age", "Get the age of a user by id. Fails when the user does not exist.",
		func(_ *core.ToolContext, args userArgs) (any, error) {
			a, ok := userAges[args.UserID]
			if !ok {
				return nil, fmt.Errorf("%w: %s", errUserNotFound, args.UserID)
			}

			return a, nil
		})

	return []tool.Tool{divide, sqrt, age}
}

// friendlyToolError maps tool failures to messages the model can relay.
func friendlyToolError(_ *agent.ToolCall, err error) string {
	var te *tool.ToolError
	if errors.As(err, &te) && te.Cause != nil {
		err = te.Cause
	}

	switch {
	case errors.Is(err, calc.ErrDivisionByZero):
		return "Error: division by zero is not possible. Please provide a non-zero divisor."
	case errors.Is(err, errInvalidValue):
		return fmt.Sprintf("Value error: %v.", err)
	case errors.Is(err, errUserNotFound):
		return "Error: user not found in the system. Check the id you provided."
	default:
		return fmt.Sprintf("Unexpected error: %v. Please try again or rephrase your question.", err)
	}
}

func runToolErrors(ctx context.Context, env *Env) error {
	p := newPrinter(env.Out)
	p.title("LESSON 011 - TOOL ERROR HANDLING")

	m, err := env.Model(ctx, "", model.Settings{
		Temperature: model.Float(0.3),
		Timeout:     10 * time.Second,
		MaxTokens:   model.Int(1000),
	})
	if err != nil {
		return err
	}

	a := env.newAgent(m,
		agent.WithInstruction(`You are a very smart and helpful math and data analysis expert.
You have access to the following tools:
- divide_numbers: for divisions
- calculate_square_root: for square roots
- get_user_age: to look up a user's age
If a tool returns an error, explain to the user in a friendly way what happened and suggest an alternative if possible.`),
		agent.WithTools(faultyTools()...),
		agent.WithMiddleware(agent.HandleToolErrors(friendlyToolError)),
	)

	prompts := []string{
		"What is 10 divided by 2?",
		"What is 10 divided by 0?",
		"What is the square root of -16?",
		"How old is user user_999?",
		"How old is user user_002?",
	}

	for i, prompt := range prompts {
		p.step(i+1, "%s", prompt)

		res, err := a.Invoke(ctx, agent.Text(prompt))
		if err != nil {
			return err
		}

		for _, msg := range res.Messages {
			for _, fr := range msg.FunctionResponses() {
				p.printf("Tool %s returned: %s", fr.Name, model.ToolResultText(fr))
			}
		}

		p.answer(res.Text())
	}

	p.notes(
		"Tool-call middleware wraps every execution and can replace failures with a result.",
		"Errors keep their cause, so the middleware branches with errors.Is.",
		"The model receives a readable message instead of a stack trace and keeps going.",
	)

	return nil
}

const techBasePrompt = "You are a very smart and helpful technology and programming expert."

// ExpertiseContext selects the explanation level of lesson 012.
type ExpertiseContext struct {
	UserRole string
}

func expertisePrompt(role string) string {
	switch role {
	case "beginner":
		return techBasePrompt + `
When answering:
- Use simple language and avoid technical jargon
- Give practical everyday examples
- Explain basic concepts when needed
- Be patient and didactic
- Use analogies to ease understanding`
	case "intermediate":
		return techBasePrompt + `
When answering:
- Balance simplicity and technical detail
- Mention technical terms but explain them briefly
- Give code examples when relevant
- Assume basic programming knowledge`
	case "expert":
		return techBasePrompt + `
When answering:
- Give detailed technical answers
- Use specialised terminology without hesitation
- Discuss design patterns, architecture and best practices
- Assume advanced programming knowledge
- Focus on technical nuances and optimisations`
	default:
		return techBasePrompt
	}
}

type conceptArgs struct {
	Concept string `json:"concept" description:"Concept such as REST API or function"`
}

var codeExamples = map[string]string{
	"REST API": `package main

import (
	"encoding/json"
	"net/http"
)

func main() {
	http.HandleFunc("/api/users/42", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 42, "name": "João Silva"})
	})
	_ = http.ListenAndServe(":8080", nil)
}`,
	"function": `func rectangleArea(width, height float64) float64 {
	return width * height
}`,
}

func codeExampleTool() tool.Tool {
	return tool.NewTyped("get_code_example", "Get a code example for a specific concept.",
		func(_ *core.ToolContext, args conceptArgs) (any, error) {
			if ex, ok := codeExamples[args.Concept]; ok {
				return ex, nil
			}

			return "No example available for this concept.", nil
		})
}

func runDynamicPrompt(ctx context.Context, env *Env) error {
	p := newPrinter(env.Out)
	p.title("LESSON 012 - DYNAMIC SYSTEM PROMPT")

	m, err := env.Model(ctx, "", model.Settings{
		Temperature: model.Float(0.7),
		Timeout:     15 * time.Second,
		MaxTokens:   model.Int(1500),
	})
	if err != nil {
		return err
	}

	byRole := agent.DynamicPrompt(func(req *agent.ModelRequest) string {
		ec, ok := req.Runtime.(ExpertiseContext)
		if !ok {
			return expertisePrompt("intermediate")
		}

		return expertisePrompt(ec.UserRole)
	})

	a := env.newAgent(m, agent.WithTools(codeExampleTool()), agent.WithMiddleware(byRole))

	cases := []struct {
		role     string
		question string
	}{
		{"beginner", "Explain what a REST API is"},
		{"intermediate", "Explain what a REST API is"},
		{"expert", "Explain what a REST API is"},
		{"beginner", "Show me a REST API code example"},
	}

	for i, c := range cases {
		p.step(i+1, "%s user", c.role)
		p.printf("Question: %s", c.question)

		res, err := a.Invoke(ctx, agent.Text(c.question), agent.WithRuntime(ExpertiseContext{UserRole: c.role}))
		if err != nil {
			return err
		}

		p.answer(truncate(res.Text(), 600))
	}

	p.notes(
		"The system prompt is computed per model call from the runtime context.",
		"One agent adapts its register to beginners, intermediates and experts.",
		"Unknown roles fall back to the base prompt.",
	)

	return nil
}
