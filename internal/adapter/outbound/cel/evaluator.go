// Package cel provides a CEL-based guard-expression evaluator for optional
// per-allowlist-entry conditions layered on top of the static
// domain/method/path allowlist match.
package cel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/sentinelgate/egressproxy/internal/domain/allowlist"
)

// maxExpressionLength is the maximum allowed length for a guard expression.
const maxExpressionLength = 1024

// maxCostBudget is the CEL runtime cost limit to prevent cost-exhaustion DoS.
const maxCostBudget = 100_000

// maxNestingDepth is the maximum allowed parenthesis/bracket nesting depth.
const maxNestingDepth = 50

// evalTimeout is the maximum time allowed for a single CEL evaluation.
const evalTimeout = 5 * time.Second

// interruptCheckFreq is how often (in comprehension iterations) context
// cancellation is checked.
const interruptCheckFreq = 100

// Evaluator compiles and evaluates CEL guard expressions, caching compiled
// programs by source expression so a hot allowlist entry is not
// recompiled on every request.
type Evaluator struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

// NewEvaluator creates a new Evaluator with the allowlist guard
// environment.
func NewEvaluator() (*Evaluator, error) {
	env, err := NewAllowlistGuardEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create guard environment: %w", err)
	}
	return &Evaluator{env: env, programs: make(map[string]cel.Program)}, nil
}

// Compile parses and type-checks a CEL expression, returning a compiled
// program.
func (e *Evaluator) Compile(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compilation failed: %w", issues.Err())
	}

	prg, err := e.env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(maxCostBudget),
		cel.InterruptCheckFrequency(interruptCheckFreq),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation failed: %w", err)
	}

	return prg, nil
}

// validateNesting checks that the expression does not exceed the maximum
// allowed nesting depth for parentheses, brackets, and braces.
func validateNesting(expr string) error {
	var depth, maxDepth int
	for _, ch := range expr {
		switch ch {
		case '(', '[', '{':
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case ')', ']', '}':
			depth--
		}
	}
	if maxDepth > maxNestingDepth {
		return fmt.Errorf("expression nesting too deep: %d levels (max %d)", maxDepth, maxNestingDepth)
	}
	return nil
}

// ValidateExpression checks that a CEL expression is syntactically valid and
// safe for guard evaluation. It performs compile-time validation and
// enforces safety limits (expression length, nesting depth).
func (e *Evaluator) ValidateExpression(expr string) error {
	if len(expr) > maxExpressionLength {
		return fmt.Errorf("expression too long: %d characters (max %d)", len(expr), maxExpressionLength)
	}
	if expr == "" {
		return errors.New("expression is empty")
	}
	if err := validateNesting(expr); err != nil {
		return err
	}
	if _, err := e.Compile(expr); err != nil {
		return fmt.Errorf("invalid CEL expression: %w", err)
	}
	return nil
}

// EvaluateGuard satisfies allowlist.GuardEvaluator: it compiles expr (once,
// caching by source text) and evaluates it against vars, returning true iff
// the expression is present and evaluates to boolean true.
func (e *Evaluator) EvaluateGuard(expr string, vars map[string]any) (bool, error) {
	e.mu.RLock()
	prg, ok := e.programs[expr]
	e.mu.RUnlock()

	if !ok {
		compiled, err := e.Compile(expr)
		if err != nil {
			return false, fmt.Errorf("guard: %w", err)
		}
		e.mu.Lock()
		e.programs[expr] = compiled
		e.mu.Unlock()
		prg = compiled
	}

	ctx, cancel := context.WithTimeout(context.Background(), evalTimeout)
	defer cancel()

	result, _, err := prg.ContextEval(ctx, vars)
	if err != nil {
		return false, fmt.Errorf("guard evaluation failed: %w", err)
	}

	boolResult, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("guard expression did not return a boolean, got %T", result.Value())
	}
	return boolResult, nil
}

var _ allowlist.GuardEvaluator = (*Evaluator)(nil)
