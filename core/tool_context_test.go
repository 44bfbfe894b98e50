package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type userContext struct {
	UserRole string
}

func TestToolContext_Accessors(t *testing.T) {
	state := NewState(map[string]any{"order_id": "PED003"})

	tc := NewToolContext(context.Background(), "fc-1", "check_order_status", func(o *ToolContextOptions) {
		o.Runtime = userContext{UserRole: "aggressive"}
		o.State = state
	})

	assert.Equal(t, "fc-1", tc.FunctionCallID())
	assert.Equal(t, "check_order_status", tc.ToolName())
	assert.NotNil(t, tc.Logger())
	assert.NotNil(t, tc.Context())

	v, ok := tc.GetState("order_id")
	assert.True(t, ok)
	assert.Equal(t, "PED003", v)

	tc.SetState("last_tool", "check_order_status")
	assert.Equal(t, "check_order_status", state.StringValue("last_tool"))

	rc, ok := RuntimeAs[userContext](tc)
	assert.True(t, ok)
	assert.Equal(t, "aggressive", rc.UserRole)
}

func TestRuntimeAs_PointerAndMissing(t *testing.T) {
	tc := NewToolContext(context.Background(), "fc-2", "t", func(o *ToolContextOptions) {
		o.Runtime = &userContext{UserRole: "balanced"}
	})

	rc, ok := RuntimeAs[userContext](tc)
	assert.True(t, ok)
	assert.Equal(t, "balanced", rc.UserRole)

	_, ok = RuntimeAs[string](tc)
	assert.False(t, ok)

	empty := NewToolContext(context.Background(), "fc-3", "t")
	_, ok = RuntimeAs[userContext](empty)
	assert.False(t, ok)
}
