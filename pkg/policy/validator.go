package policy

import (
	"github.com/google/cel-go/cel"
	exprpb "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// issue is one structural problem found in a rule expression before it
// is ever compiled or run.
type issue struct {
	Message  string
	Severity string // ERROR
}

// validationResult is the outcome of statically checking a rule
// expression for constructs this engine refuses to evaluate.
type validationResult struct {
	Valid  bool
	Issues []issue
}

// validator rejects CEL expressions that would make a signing rule
// non-deterministic: the core's own clock is injected (§9 Design Notes)
// rather than read from wall-clock time, and status computation must
// reproduce the same verdict on every invocation.
type validator struct {
	env *cel.Env
}

func (v *validator) Validate(exprSource string) (*validationResult, error) {
	parsedAST, issues := v.env.Parse(exprSource)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}

	result := &validationResult{Valid: true, Issues: []issue{}}
	expr := parsedAST.Expr() //nolint:staticcheck // deprecated but no alternative for AST traversal yet
	checkRecursively(expr, &result.Issues)
	if len(result.Issues) > 0 {
		result.Valid = false
	}
	return result, nil
}

func checkRecursively(e *exprpb.Expr, issues *[]issue) {
	if e == nil {
		return
	}

	switch k := e.ExprKind.(type) {
	case *exprpb.Expr_ConstExpr:
		c := k.ConstExpr
		if _, ok := c.ConstantKind.(*exprpb.Constant_DoubleValue); ok {
			*issues = append(*issues, issue{Message: "floating point literals are forbidden", Severity: "ERROR"})
		}

	case *exprpb.Expr_CallExpr:
		call := k.CallExpr
		if call.Function == "now" {
			*issues = append(*issues, issue{Message: "now() is forbidden; signing rules must not read wall-clock time", Severity: "ERROR"})
		}
		if call.Function == "keys" || call.Function == "values" {
			*issues = append(*issues, issue{Message: "map iteration (keys/values) is forbidden: Go map order is non-deterministic", Severity: "ERROR"})
		}
		if call.Target != nil {
			checkRecursively(call.Target, issues)
		}
		for _, arg := range call.Args {
			checkRecursively(arg, issues)
		}

	case *exprpb.Expr_SelectExpr:
		checkRecursively(k.SelectExpr.Operand, issues)

	case *exprpb.Expr_IdentExpr:
		// no children

	case *exprpb.Expr_ListExpr:
		for _, el := range k.ListExpr.Elements {
			checkRecursively(el, issues)
		}

	case *exprpb.Expr_StructExpr:
		for _, entry := range k.StructExpr.Entries {
			if entry.GetMapKey() != nil {
				checkRecursively(entry.GetMapKey(), issues)
			}
			checkRecursively(entry.Value, issues)
		}

	case *exprpb.Expr_ComprehensionExpr:
		comp := k.ComprehensionExpr
		checkRecursively(comp.IterRange, issues)
		checkRecursively(comp.AccuInit, issues)
		checkRecursively(comp.LoopCondition, issues)
		checkRecursively(comp.LoopStep, issues)
		checkRecursively(comp.Result, issues)
	}
}
