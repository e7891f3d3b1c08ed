// Package fieldrule compiles per-field value rules written in CEL. A rule
// sees the candidate value under the name "value" and must evaluate to bool.
// Programs are compiled once and cached by expression text, so rule checks on
// the request path never re-parse.
package fieldrule

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
)

// ErrValueRejected reports a well-typed value the rule evaluated to false for.
var ErrValueRejected = errors.New("fieldrule: value rejected")

var newRuleEnv = func() (*cel.Env, error) {
	return cel.NewEnv(cel.Variable("value", cel.DynType))
}

var newRuleProgram = func(env *cel.Env, ast *cel.Ast) (cel.Program, error) {
	return env.Program(ast)
}

var ruleCache sync.Map

// Rule is a compiled boolean expression over a single candidate value.
type Rule struct {
	expr    string
	program cel.Program
}

// Compile parses and type-checks expr, failing when the expression does not
// produce bool. Compilation errors are configuration errors: callers compile
// at startup, not per request.
func Compile(expr string) (*Rule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.New("fieldrule: expression required")
	}
	if cached, ok := ruleCache.Load(expr); ok {
		return cached.(*Rule), nil
	}

	env, err := newRuleEnv()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	if ast.OutputType() != cel.BoolType {
		return nil, errors.New("fieldrule: expression must evaluate to bool")
	}
	program, err := newRuleProgram(env, ast)
	if err != nil {
		return nil, err
	}

	rule := &Rule{expr: expr, program: program}
	ruleCache.Store(expr, rule)
	return rule, nil
}

// Expr returns the source expression text.
func (r *Rule) Expr() string { return r.expr }

// Eval runs the rule against v.
func (r *Rule) Eval(v any) (bool, error) {
	out, _, err := r.program.Eval(map[string]any{"value": v})
	if err != nil {
		return false, err
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, errors.New("fieldrule: non-bool result")
	}
	return b, nil
}

// Check adapts Eval to the error-only shape field policies consume: nil for
// accepted values, ErrValueRejected or the evaluation error otherwise.
func (r *Rule) Check(v any) error {
	ok, err := r.Eval(v)
	if err != nil {
		return err
	}
	if !ok {
		return ErrValueRejected
	}
	return nil
}
