// Package calc evaluates arithmetic expressions coming from model tool calls.
//
// Expressions are tokenized against a small allow-list (numbers, + - * / ( ) ,
// and the functions sqrt, pow, abs) and then evaluated as Go code by the yaegi
// interpreter, so precedence and float semantics are exactly Go's. Divisions
// are routed through a helper that records a zero divisor.
package calc

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

var (
	// ErrDivisionByZero is returned when an expression divides by zero.
	ErrDivisionByZero = errors.New("division by zero")

	// ErrOverflow is returned when the result does not fit in a float64.
	ErrOverflow = errors.New("result out of range")

	// ErrInvalidExpression is returned for expressions outside the allow-list.
	ErrInvalidExpression = errors.New("invalid expression")
)

var functions = map[string]string{
	"sqrt": "math.Sqrt",
	"pow":  "math.Pow",
	"abs":  "math.Abs",
}

// Eval evaluates expr and returns its value.
func Eval(ctx context.Context, expr string) (float64, error) {
	body, err := translate(expr)
	if err != nil {
		return 0, err
	}

	body, err = guardDivisions(body)
	if err != nil {
		return 0, err
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return 0, fmt.Errorf("failed to load stdlib: %w", err)
	}

	src := fmt.Sprintf(`package main

import "math"

var _ = math.Pi

var zeroDivisor bool

func div(a, b float64) float64 {
	if b == 0 {
		zeroDivisor = true
	}

	return a / b
}

func Eval() (float64, bool) {
	v := %s

	return v, zeroDivisor
}
`, body)

	if _, err := i.EvalWithContext(ctx, src); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}

	fn, err := i.EvalWithContext(ctx, "main.Eval")
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}

	if fn.Kind() != reflect.Func {
		return 0, fmt.Errorf("%w: unexpected %s", ErrInvalidExpression, fn.Kind())
	}

	eval, ok := fn.Interface().(func() (float64, bool))
	if !ok {
		return 0, fmt.Errorf("%w: unexpected signature", ErrInvalidExpression)
	}

	result, zeroDivisor := eval()

	switch {
	case zeroDivisor:
		return 0, ErrDivisionByZero
	case math.IsInf(result, 0):
		return 0, ErrOverflow
	case math.IsNaN(result):
		return 0, fmt.Errorf("%w: result is not a number", ErrInvalidExpression)
	}

	return result, nil
}

// Format renders a result without trailing zeros ("101", "2.5").
func Format(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// translate rewrites expr into a Go expression over float64 values. Number
// literals become float64 conversions so integer division and constant
// folding never apply.
func translate(expr string) (string, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidExpression)
	}

	var (
		b     strings.Builder
		runes = []rune(expr)
		depth int
	)

	for i := 0; i < len(runes); {
		r := runes[i]

		switch {
		case unicode.IsSpace(r):
			i++
		case unicode.IsDigit(r) || r == '.':
			start := i
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}

			lit := string(runes[start:i])
			if _, err := strconv.ParseFloat(lit, 64); err != nil {
				return "", fmt.Errorf("%w: bad number %q", ErrInvalidExpression, lit)
			}

			b.WriteString("float64(" + lit + ")")
		case unicode.IsLetter(r):
			start := i
			for i < len(runes) && unicode.IsLetter(runes[i]) {
				i++
			}

			name := strings.ToLower(string(runes[start:i]))

			fn, ok := functions[name]
			if !ok {
				return "", fmt.Errorf("%w: unknown identifier %q", ErrInvalidExpression, name)
			}

			b.WriteString(fn)
		case strings.ContainsRune("+-*/,", r):
			b.WriteRune(r)
			i++
		case r == '(':
			depth++
			b.WriteRune(r)
			i++
		case r == ')':
			depth--
			if depth < 0 {
				return "", fmt.Errorf("%w: unbalanced parentheses", ErrInvalidExpression)
			}

			b.WriteRune(r)
			i++
		default:
			return "", fmt.Errorf("%w: unexpected character %q", ErrInvalidExpression, r)
		}
	}

	if depth != 0 {
		return "", fmt.Errorf("%w: unbalanced parentheses", ErrInvalidExpression)
	}

	return b.String(), nil
}

// guardDivisions rewrites every a / b in the Go expression body into div(a, b).
func guardDivisions(body string) (string, error) {
	e, err := parser.ParseExpr(body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}

	var b strings.Builder
	if err := printer.Fprint(&b, token.NewFileSet(), rewriteDivisions(e)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}

	return b.String(), nil
}

func rewriteDivisions(e ast.Expr) ast.Expr {
	switch n := e.(type) {
	case *ast.BinaryExpr:
		x, y := rewriteDivisions(n.X), rewriteDivisions(n.Y)
		if n.Op == token.QUO {
			return &ast.CallExpr{Fun: ast.NewIdent("div"), Args: []ast.Expr{x, y}}
		}

		n.X, n.Y = x, y
	case *ast.ParenExpr:
		n.X = rewriteDivisions(n.X)
	case *ast.UnaryExpr:
		n.X = rewriteDivisions(n.X)
	case *ast.CallExpr:
		for i, arg := range n.Args {
			n.Args[i] = rewriteDivisions(arg)
		}
	}

	return e
}
