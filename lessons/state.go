package lessons

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hupe1980/agentcookbook/agent"
	"github.com/hupe1980/agentcookbook/core"
	"github.com/hupe1980/agentcookbook/model"
	"github.com/hupe1980/agentcookbook/tool"
)

const (
	stateInteractionCount = "interaction_count"
	stateUserPreferences  = "user_preferences"
	stateOrderID          = "order_id"
	stateCustomerName     = "customer_name"
)

func preferences(st *core.State) map[string]any {
	v, _ := st.Get(stateUserPreferences)
	prefs, _ := v.(map[string]any)

	return prefs
}

func prefValue(prefs map[string]any, key, fallback string) string {
	if s, ok := prefs[key].(string); ok && s != "" {
		return s
	}

	return fallback
}

// preferencesMiddleware counts interactions and reports the preferences in
// effect before every model call.
func preferencesMiddleware(p *printer) agent.Middleware {
	return agent.BeforeModel("preferences", func(_ context.Context, st *core.State, _ any) error {
		count, err := st.IntValue(stateInteractionCount)
		if err != nil {
			return err
		}

		prefs := preferences(st)
		p.printf("[middleware] interaction #%d", count+1)
		p.printf("[middleware] style: %s, verbosity: %s", prefValue(prefs, "style", "balanced"), prefValue(prefs, "verbosity", "normal"))

		st.Set(stateInteractionCount, count+1)

		return nil
	})
}

func preferenceTools() []tool.Tool {
	prefsTool := tool.NewFunctionTool("get_preferences", "Get the user's current preferences.", nil,
		func(tc *core.ToolContext, _ map[string]any) (any, error) {
			prefs := preferences(tc.State())
			if len(prefs) == 0 {
				return "No preferences set.", nil
			}

			return fmt.Sprintf("User preferences:\n- Style: %s\n- Verbosity: %s",
				prefValue(prefs, "style", "not set"), prefValue(prefs, "verbosity", "not set")), nil
		})

	countTool := tool.NewStateReader("get_interaction_count", "Get the number of interactions so far.", stateInteractionCount)

	return []tool.Tool{prefsTool, countTool}
}

func runCustomState(ctx context.Context, env *Env) error {
	p := newPrinter(env.Out)
	p.title("LESSON 016 - CUSTOM STATE")

	m, err := env.Model(ctx, "", model.Settings{
		Temperature: model.Float(0.5),
		Timeout:     15 * time.Second,
		MaxTokens:   model.Int(1500),
	})
	if err != nil {
		return err
	}

	a := env.newAgent(m,
		agent.WithInstruction(`You are a smart assistant who adapts the style of your answers to the user's preferences.
You have access to the following tools:
- get_preferences: to check the user's preferences
- get_interaction_count: to see how many interactions have happened
Adapt your answers to the preferences:
- Style "technical": use technical terms and be precise
- Style "casual": use simple language and everyday examples
- Verbosity "concise": short and direct answers
- Verbosity "detailed": complete answers with examples`),
		agent.WithTools(preferenceTools()...),
		agent.WithMiddleware(preferencesMiddleware(p)),
	)

	casual := map[string]any{"style": "casual", "verbosity": "concise"}

	cases := []struct {
		title    string
		question string
		prefs    map[string]any
	}{
		{"Technical preferences", "Explain what a REST API is", map[string]any{"style": "technical", "verbosity": "detailed"}},
		{"Switch to casual and concise", "Now explain what Docker is", casual},
		{"Check preferences with a tool", "What preferences do I have configured?", casual},
		{"Check the interaction count", "How many times have we talked?", casual},
	}

	count := 0

	for i, c := range cases {
		p.step(i+1, "%s", c.title)

		res, err := a.Invoke(ctx, agent.Input{
			Messages: []core.Content{core.NewUserText(c.question)},
			State:    map[string]any{stateUserPreferences: c.prefs, stateInteractionCount: count},
		})
		if err != nil {
			return err
		}

		if count, err = res.State.IntValue(stateInteractionCount); err != nil {
			return err
		}

		p.answer(truncate(res.Text(), 400))
		p.printf("Interaction count: %d", count)
	}

	p.notes(
		"Middleware owns extra state values next to the messages.",
		"The before-model hook updates the state; tools read it through their ToolContext.",
		"Without a checkpointer the caller feeds the state back into the next invocation.",
	)

	return nil
}

var orderStatuses = map[string]string{
	"PED001": "Preparing",
	"PED002": "Out for delivery",
	"PED003": "Delivered",
}

var vipCustomers = []string{"João Silva", "Maria Santos"}

type orderArgs struct {
	OrderID string `json:"order_id" description:"Order id such as PED001, or current for the active order"`
}

type amountArgs struct {
	Amount float64 `json:"amount" description:"Purchase amount"`
}

func orderTools() []tool.Tool {
	info := tool.NewFunctionTool("get_order_info", "Get information about the current order.", nil,
		func(tc *core.ToolContext, _ map[string]any) (any, error) {
			st := tc.State()

			orderID := st.StringValue(stateOrderID)
			if orderID == "" {
				return "No active order at the moment.", nil
			}

			customer := st.StringValue(stateCustomerName)
			if customer == "" {
				customer = "not provided"
			}

			return fmt.Sprintf("Order information:\n- Order id: %s\n- Customer: %s", orderID, customer), nil
		})

	status := tool.NewTyped("check_order_status", "Check the status of an order.",
		func(tc *core.ToolContext, args orderArgs) (any, error) {
			current := tc.State().StringValue(stateOrderID)

			id := strings.ToUpper(strings.TrimSpace(args.OrderID))
			if strings.EqualFold(id, "current") {
				id = current
			}

			s, ok := orderStatuses[id]
			if !ok {
				s = "Order not found"
			}

			marker := ""
			if id != "" && id == current {
				marker = " (your current order)"
			}

			return fmt.Sprintf("Status of order %s%s: %s", id, marker, s), nil
		})

	discount := tool.NewTyped("calculate_discount", "Calculate the discount for the current customer.",
		func(tc *core.ToolContext, args amountArgs) (any, error) {
			customer := tc.State().StringValue(stateCustomerName)

			if !slices.Contains(vipCustomers, customer) {
				return fmt.Sprintf("Amount: %.2f\nNo discount available for this customer.", args.Amount), nil
			}

			off := args.Amount * 0.15

			return fmt.Sprintf("VIP customer: 15%% discount!\nOriginal amount: %.2f\nDiscount: %.2f\nFinal amount: %.2f",
				args.Amount, off, args.Amount-off), nil
		})

	return []tool.Tool{info, status, discount}
}

func runStateSchema(ctx context.Context, env *Env) error {
	p := newPrinter(env.Out)
	p.title("LESSON 017 - STATE DEFAULTS")

	m, err := env.Model(ctx, "", model.Settings{
		Temperature: model.Float(0.5),
		Timeout:     15 * time.Second,
		MaxTokens:   model.Int(1500),
	})
	if err != nil {
		return err
	}

	a := env.newAgent(m,
		agent.WithInstruction(`You are a customer service assistant for an online store.
You have access to the following tools:
- get_order_info: to show the current order
- check_order_status: to look up the status of an order
- calculate_discount: to compute discounts for the customer
Help customers in a friendly and efficient way.`),
		agent.WithTools(orderTools()...),
		func(o *agent.Options) {
			o.StateDefaults = map[string]any{stateOrderID: "", stateCustomerName: ""}
		},
	)

	cases := []struct {
		title    string
		question string
		order    string
		customer string
	}{
		{"VIP customer checks an order", "What is the status of my order PED001?", "PED001", "João Silva"},
		{"Discount for a VIP customer", "How much would a purchase of 100.00 cost?", "PED001", "João Silva"},
		{"Regular customer without discount", "How much would a purchase of 100.00 cost?", "PED002", "Pedro Costa"},
		{"Current order information", "Show me my order information", "PED003", "Maria Santos"},
		{"Customer without an active order", "What is my order?", "", "Ana Lima"},
	}

	for i, c := range cases {
		p.step(i+1, "%s", c.title)

		res, err := a.Invoke(ctx, agent.Input{
			Messages: []core.Content{core.NewUserText(c.question)},
			State:    map[string]any{stateOrderID: c.order, stateCustomerName: c.customer},
		})
		if err != nil {
			return err
		}

		p.answer(truncate(res.Text(), 400))
		p.printf("State: customer=%q order=%q", res.State.StringValue(stateCustomerName), res.State.StringValue(stateOrderID))
	}

	p.notes(
		"State defaults declare the extra keys every thread starts with.",
		"Input state is merged over the defaults for each invocation.",
		"Tools read typed values from the state instead of asking the user again.",
	)

	return nil
}
