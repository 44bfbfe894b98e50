package calc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEval(t *testing.T) {
	tests := []struct {
		expr string
		want float64
	}{
		{"12 * 8 + 5", 101},
		{"15 * 8 + 42", 162},
		{"7 / 2", 3.5},
		{"(2 + 3) * 4", 20},
		{"-3 + 10", 7},
		{"sqrt(16) + pow(2, 3)", 12},
		{"abs(-2.5)", 2.5},
		{"1 / 4 / 2", 0.125},
		{"sqrt(9 / 4)", 1.5},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Eval(context.Background(), tt.expr)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestEval_Errors(t *testing.T) {
	for _, expr := range []string{"1 / 0", "-1 / 0", "0 / 0", "2 * (1 / (3 - 3))", "abs(1 / 0) * 0"} {
		_, err := Eval(context.Background(), expr)
		assert.ErrorIs(t, err, ErrDivisionByZero, expr)
	}

	for _, expr := range []string{"pow(10, 400)", "-pow(10, 400)", "pow(10, 300) * pow(10, 300)"} {
		_, err := Eval(context.Background(), expr)
		assert.ErrorIs(t, err, ErrOverflow, expr)
		assert.NotErrorIs(t, err, ErrDivisionByZero, expr)
	}

	for _, expr := range []string{"", "os.Exit(1)", "2 ^ 3", "(1 + 2", "1 + 2)", `"a"`, "1..2"} {
		_, err := Eval(context.Background(), expr)
		assert.ErrorIs(t, err, ErrInvalidExpression, expr)
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "101", Format(101))
	assert.Equal(t, "3.5", Format(3.5))
}
