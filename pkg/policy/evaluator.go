// Package policy implements the optional CEL acceptance hook the
// signing-status engine can consult beyond §3's invariants, e.g. an
// org-specific signer allow-list ("at least two of the signed names
// must belong to the release team"). It never replaces §3's checks —
// a rule only ever tightens a status that has already passed them.
package policy

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
)

// Evaluator compiles and runs a single CEL expression against a
// map[string]any input built from a role's derived SigningStatus.
type Evaluator struct {
	validator *validator
	env       *cel.Env
}

// Result is the outcome of one Evaluate call.
type Result struct {
	Value interface{}
	Error *EvalError
}

// EvalError describes why a rule could not produce a usable result,
// distinguishing a rejected-by-validator expression from a runtime
// failure during evaluation.
type EvalError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEvaluator builds an Evaluator with the single "input" variable a
// signing rule expression is evaluated against.
func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("input", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("policy: build CEL env: %w", err)
	}
	return &Evaluator{validator: &validator{env: env}, env: env}, nil
}

// Evaluate validates, compiles, and runs expr against input, returning a
// Result rather than an error for expression-level problems so callers
// can report them as a role's status message instead of a Go error.
func (e *Evaluator) Evaluate(expr string, input interface{}) (*Result, error) {
	res, err := e.validator.Validate(expr)
	if err != nil {
		return nil, fmt.Errorf("policy: parse rule: %w", err)
	}
	if !res.Valid {
		msgs := make([]string, 0, len(res.Issues))
		for _, iss := range res.Issues {
			msgs = append(msgs, iss.Message)
		}
		return &Result{Error: &EvalError{Code: "validation_failed", Message: strings.Join(msgs, "; ")}}, nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("policy: compile rule: %w", issues.Err())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("policy: build program: %w", err)
	}

	val, _, err := prg.Eval(input)
	if err != nil {
		return &Result{Error: &EvalError{Code: "runtime_error", Message: err.Error()}}, nil
	}
	return &Result{Value: val.Value()}, nil
}
