package policy

import "fmt"

// SigningRule is one compiled CEL expression consulted by the
// signing-status engine after §3's invariants already pass, for
// organization-specific acceptance rules the core doesn't encode (e.g.
// "at least two signers must be members of the release team"). It is
// optional: a role with no configured rule is judged by §3 alone.
type SigningRule struct {
	expr string
	eval *Evaluator
}

// NewSigningRule builds the evaluator for expr. The expression is not
// checked here: every Check call validates, compiles and runs it anew.
func NewSigningRule(expr string) (*SigningRule, error) {
	eval, err := NewEvaluator()
	if err != nil {
		return nil, err
	}
	return &SigningRule{expr: expr, eval: eval}, nil
}

// Check evaluates the rule against one role's derived signing status. A
// non-nil error means the role should be reported invalid even though it
// already satisfied §3, with the error's message surfaced as the
// status's Error field.
func (r *SigningRule) Check(role string, signed, missing []string, threshold int) error {
	input := map[string]interface{}{
		"role":      role,
		"signed":    toDynList(signed),
		"missing":   toDynList(missing),
		"threshold": int64(threshold),
	}

	res, err := r.eval.Evaluate(r.expr, input)
	if err != nil {
		return fmt.Errorf("policy rule %q: %w", r.expr, err)
	}
	if res.Error != nil {
		return fmt.Errorf("policy rule %q: %s", r.expr, res.Error.Message)
	}
	ok, isBool := res.Value.(bool)
	if !isBool {
		return fmt.Errorf("policy rule %q: must evaluate to a bool, got %T", r.expr, res.Value)
	}
	if !ok {
		return fmt.Errorf("policy rule %q rejected this signing status for role %q", r.expr, role)
	}
	return nil
}

func toDynList(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
