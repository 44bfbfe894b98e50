package lessons

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcookbook/agent"
	"github.com/hupe1980/agentcookbook/core"
	"github.com/hupe1980/agentcookbook/internal/calc"
	"github.com/hupe1980/agentcookbook/model"
	"github.com/hupe1980/agentcookbook/tool"
)

func findTool(t *testing.T, tools []tool.Tool, name string) tool.Tool {
	t.Helper()

	for _, tl := range tools {
		if tl.Name() == name {
			return tl
		}
	}

	require.FailNow(t, "tool not found", name)

	return nil
}

func invokeTool(t *testing.T, tl tool.Tool, args map[string]any, optFns ...func(o *core.ToolContextOptions)) string {
	t.Helper()

	out, err := tl.Call(core.NewToolContext(context.Background(), "call_1", tl.Name(), optFns...), args)
	require.NoError(t, err)

	s, ok := out.(string)
	require.True(t, ok, "unexpected result type %T", out)

	return s
}

func withState(values map[string]any) func(o *core.ToolContextOptions) {
	return func(o *core.ToolContextOptions) { o.State = core.NewState(values) }
}

func TestRoleMultiplier(t *testing.T) {
	tests := []struct {
		role string
		want float64
	}{
		{"conservative", 1.05},
		{"balanced", 1.10},
		{"aggressive", 1.20},
		{"", 1.0},
		{"reckless", 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			assert.InDelta(t, tt.want, roleMultiplier(tt.role), 1e-9)
		})
	}
}

func TestInvestmentTool_UsesRuntimeRole(t *testing.T) {
	got := invokeTool(t, investmentTool(), map[string]any{"investment_value": 1000.0}, func(o *core.ToolContextOptions) {
		o.Runtime = InvestorContext{UserRole: "aggressive"}
	})
	assert.Equal(t, "The investment return will be 1200.00.", got)
}

func TestFriendlyToolError(t *testing.T) {
	sqrtErr := fmt.Errorf("%w: cannot take the square root of a negative number in the reals", errInvalidValue)

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"division by zero", calc.ErrDivisionByZero, "Error: division by zero is not possible. Please provide a non-zero divisor."},
		{"wrapped division by zero", &tool.ToolError{Tool: "divide_numbers", Message: "x", Code: tool.CodeExecution, Cause: calc.ErrDivisionByZero}, "Error: division by zero is not possible. Please provide a non-zero divisor."},
		{"invalid value", sqrtErr, "Value error: invalid value: cannot take the square root of a negative number in the reals."},
		{"wrapped invalid value", &tool.ToolError{Tool: "calculate_square_root", Message: "x", Code: tool.CodeExecution, Cause: sqrtErr}, "Value error: invalid value: cannot take the square root of a negative number in the reals."},
		{"user not found", fmt.Errorf("%w: user_999", errUserNotFound), "Error: user not found in the system. Check the id you provided."},
		{"other", errors.New("disk full"), "Unexpected error: disk full. Please try again or rephrase your question."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, friendlyToolError(nil, tt.err))
		})
	}
}

func TestFaultyTools(t *testing.T) {
	tools := faultyTools()

	_, err := findTool(t, tools, "divide_numbers").Call(core.NewToolContext(context.Background(), "c", "divide_numbers"), map[string]any{"dividend": 1.0, "divisor": 0.0})
	assert.ErrorIs(t, err, calc.ErrDivisionByZero)

	_, err = findTool(t, tools, "get_user_age").Call(core.NewToolContext(context.Background(), "c", "get_user_age"), map[string]any{"user_id": "user_999"})
	assert.ErrorIs(t, err, errUserNotFound)

	out, err := findTool(t, tools, "get_user_age").Call(core.NewToolContext(context.Background(), "c", "get_user_age"), map[string]any{"user_id": "user_002"})
	require.NoError(t, err)
	assert.Equal(t, 34, out)
}

func TestCheckOrderStatus(t *testing.T) {
	status := findTool(t, orderTools(), "check_order_status")

	tests := []struct {
		name    string
		current string
		orderID string
		want    string
	}{
		{"preparing", "", "PED001", "Status of order PED001: Preparing"},
		{"out for delivery", "", "ped002", "Status of order PED002: Out for delivery"},
		{"delivered", "", "PED003", "Status of order PED003: Delivered"},
		{"unknown", "", "PED999", "Status of order PED999: Order not found"},
		{"current", "PED002", "current", "Status of order PED002 (your current order): Out for delivery"},
		{"explicit current", "PED003", "PED003", "Status of order PED003 (your current order): Delivered"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := invokeTool(t, status, map[string]any{"order_id": tt.orderID}, withState(map[string]any{stateOrderID: tt.current}))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCalculateDiscount(t *testing.T) {
	discount := findTool(t, orderTools(), "calculate_discount")

	got := invokeTool(t, discount, map[string]any{"amount": 100.0}, withState(map[string]any{stateCustomerName: "João Silva"}))
	assert.Contains(t, got, "VIP customer: 15% discount!")
	assert.Contains(t, got, "Discount: 15.00")
	assert.Contains(t, got, "Final amount: 85.00")

	got = invokeTool(t, discount, map[string]any{"amount": 100.0}, withState(map[string]any{stateCustomerName: "Pedro Costa"}))
	assert.Equal(t, "Amount: 100.00\nNo discount available for this customer.", got)
}

func TestGetOrderInfo(t *testing.T) {
	info := findTool(t, orderTools(), "get_order_info")

	assert.Equal(t, "No active order at the moment.", invokeTool(t, info, map[string]any{}))

	got := invokeTool(t, info, map[string]any{}, withState(map[string]any{stateOrderID: "PED003"}))
	assert.Contains(t, got, "Order id: PED003")
	assert.Contains(t, got, "Customer: not provided")
}

func TestGetUserLocation(t *testing.T) {
	location := findTool(t, weatherTools(), "get_user_location")

	tests := []struct {
		userID string
		want   string
	}{
		{"1", "Cachoeiro de Itapemirim"},
		{"2", "Vitória"},
		{"3", "São Paulo"},
	}

	for _, tt := range tests {
		t.Run(tt.userID, func(t *testing.T) {
			got := invokeTool(t, location, map[string]any{}, func(o *core.ToolContextOptions) {
				o.Runtime = UserContext{UserID: tt.userID}
			})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCalculateStatistics(t *testing.T) {
	env, _, _ := newTestEnv(t)
	stats := findTool(t, researchTools(env), "calculate_statistics")

	assert.Equal(t, "Empty list provided.", invokeTool(t, stats, map[string]any{"numbers": []any{}}))
	assert.Equal(t, "Statistics: mean=2.00, min=1, max=3", invokeTool(t, stats, map[string]any{"numbers": []any{3.0, 1.0, 2.0}}))
}

func TestSelectByLength(t *testing.T) {
	basic := model.NewMockModel("gpt-4o-mini", model.ProviderOpenAI)
	advanced := model.NewMockModel("gpt-4o", model.ProviderOpenAI)
	mw := selectByLength(newPrinter(io.Discard), basic, advanced)

	tests := []struct {
		messages int
		want     model.Model
	}{
		{1, basic},
		{10, basic},
		{11, advanced},
		{13, advanced},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.messages), func(t *testing.T) {
			st := core.NewState(nil)
			for i := range tt.messages {
				st.Append(core.NewUserText(fmt.Sprintf("message %d", i)))
			}

			var used model.Model

			_, err := mw.WrapModelCall(context.Background(), &agent.ModelRequest{Model: basic, State: st},
				func(_ context.Context, req *agent.ModelRequest) (*model.Response, error) {
					used = req.Model
					return &model.Response{}, nil
				})
			require.NoError(t, err)
			assert.Same(t, tt.want, used)
		})
	}
}
