package policy

import "testing"

func TestEvaluator(t *testing.T) {
	eval, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}

	tests := []struct {
		name      string
		expr      string
		input     interface{}
		wantValue interface{}
		wantCode  string
	}{
		{name: "valid integer math", expr: "1 + 2", wantValue: int64(3)},
		{name: "validation failure (float)", expr: "1.0 + 2.0", wantCode: "validation_failed"},
		{name: "runtime error (divide by zero)", expr: "1 / 0", wantCode: "runtime_error"},
		{name: "valid input access", expr: "input.foo == 'bar'", input: map[string]interface{}{"foo": "bar"}, wantValue: true},
		{name: "runtime error (missing field)", expr: "input.missing_field", input: map[string]interface{}{"foo": "bar"}, wantCode: "runtime_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			activation := map[string]interface{}{"input": tt.input}
			res, err := eval.Evaluate(tt.expr, activation)
			if err != nil {
				t.Fatalf("Evaluate(%q) unexpected error: %v", tt.expr, err)
			}
			if tt.wantCode != "" {
				if res.Error == nil {
					t.Fatalf("Evaluate(%q) expected error code %q, got value %v", tt.expr, tt.wantCode, res.Value)
				}
				if res.Error.Code != tt.wantCode {
					t.Errorf("Evaluate(%q) code = %q, want %q", tt.expr, res.Error.Code, tt.wantCode)
				}
				return
			}
			if res.Error != nil {
				t.Fatalf("Evaluate(%q) unexpected error result: %s", tt.expr, res.Error.Message)
			}
			if res.Value != tt.wantValue {
				t.Errorf("Evaluate(%q) value = %v, want %v", tt.expr, res.Value, tt.wantValue)
			}
		})
	}
}

func TestSigningRule(t *testing.T) {
	rule, err := NewSigningRule(`size(input.signed) >= input.threshold`)
	if err != nil {
		t.Fatalf("NewSigningRule: %v", err)
	}

	if err := rule.Check("root", []string{"@alice", "@bob"}, nil, 2); err != nil {
		t.Errorf("expected rule to accept a satisfied threshold, got %v", err)
	}
	if err := rule.Check("root", []string{"@alice"}, []string{"@bob"}, 2); err == nil {
		t.Error("expected rule to reject an unsatisfied threshold")
	}
}
