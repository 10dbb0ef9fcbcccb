package policy

import (
	"strings"
	"testing"

	"github.com/google/cel-go/cel"
)

func newTestValidator(t *testing.T) *validator {
	t.Helper()
	env, err := cel.NewEnv()
	if err != nil {
		t.Fatalf("build CEL env: %v", err)
	}
	return &validator{env: env}
}

func TestValidator(t *testing.T) {
	v := newTestValidator(t)

	tests := []struct {
		name      string
		expr      string
		wantValid bool
		wantIssue string
	}{
		{name: "valid integer math", expr: "1 + 2", wantValid: true},
		{name: "valid string ops", expr: "'hello'.startsWith('h')", wantValid: true},
		{name: "forbidden float literal", expr: "1.5 + 2.0", wantValid: false, wantIssue: "floating point literals"},
		{name: "forbidden now()", expr: "now() > timestamp('2023-01-01T00:00:00Z')", wantValid: false, wantIssue: "now() is forbidden"},
		{name: "forbidden map keys", expr: "{'a': 1}.keys()", wantValid: false, wantIssue: "map iteration"},
		{name: "forbidden map values", expr: "{'a': 1}.values()", wantValid: false, wantIssue: "map iteration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := v.Validate(tt.expr)
			if err != nil {
				t.Fatalf("Validate(%q) unexpected error: %v", tt.expr, err)
			}
			if result.Valid != tt.wantValid {
				t.Errorf("Validate(%q) valid = %v, want %v, issues=%v", tt.expr, result.Valid, tt.wantValid, result.Issues)
			}
			if !tt.wantValid && tt.wantIssue != "" {
				found := false
				for _, iss := range result.Issues {
					if strings.Contains(iss.Message, tt.wantIssue) {
						found = true
						break
					}
				}
				if !found {
					t.Errorf("Validate(%q) issues %v, expected to contain %q", tt.expr, result.Issues, tt.wantIssue)
				}
			}
		})
	}
}
