package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/expr-lang/expr"
)

// Calculator evaluates mathematical expressions. Expressions are compiled in
// a closed environment exposing only math functions and constants, so no
// arbitrary code can run.
type Calculator struct {
	env map[string]any
}

func NewCalculator() *Calculator {
	return &Calculator{
		env: map[string]any{
			"sqrt":  math.Sqrt,
			"cbrt":  math.Cbrt,
			"sin":   math.Sin,
			"cos":   math.Cos,
			"tan":   math.Tan,
			"asin":  math.Asin,
			"acos":  math.Acos,
			"atan":  math.Atan,
			"log":   math.Log,
			"log2":  math.Log2,
			"log10": math.Log10,
			"exp":   math.Exp,
			"pow":   math.Pow,
			"abs":   math.Abs,
			"floor": math.Floor,
			"ceil":  math.Ceil,
			"round": math.Round,
			"mod":   math.Mod,
			"pi":    math.Pi,
			"e":     math.E,
		},
	}
}

func (c *Calculator) Name() string { return "calculator" }

func (c *Calculator) Description() string {
	return "Evaluate a mathematical expression, e.g. \"2 + 2\", \"sqrt(16)\", \"sin(pi/2)\"."
}

func (c *Calculator) Run(_ context.Context, input json.RawMessage) (string, error) {
	var args struct {
		Expression string `json:"expression"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("tools.Calculator.Run: decoding input: %w", err)
	}
	if args.Expression == "" {
		return "", fmt.Errorf("tools.Calculator.Run: expression is required")
	}

	program, err := expr.Compile(args.Expression, expr.Env(c.env), expr.AsFloat64())
	if err != nil {
		return "", fmt.Errorf("tools.Calculator.Run: invalid expression %q: %w", args.Expression, err)
	}

	out, err := expr.Run(program, c.env)
	if err != nil {
		return "", fmt.Errorf("tools.Calculator.Run: evaluating %q: %w", args.Expression, err)
	}

	result, ok := out.(float64)
	if !ok {
		return "", fmt.Errorf("tools.Calculator.Run: expression %q did not yield a number", args.Expression)
	}

	return strconv.FormatFloat(result, 'g', -1, 64), nil
}
